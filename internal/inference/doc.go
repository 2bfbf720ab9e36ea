// Package inference holds the HTTP clients for the model services the counter
// depends on: a person tracker and an open-vocabulary door detector.
//
// Both services accept a JPEG frame as the multipart field "file" plus form
// fields, and answer with {"detections": [{"bbox": [x1,y1,x2,y2],
// "confidence": c, ...}]}. The tracker adds a nullable "track_id".
//
// # Endpoints
//
//	POST /track   file, conf_threshold, classes=0, persist=true, model
//	POST /detect  file, prompt, conf_threshold, model
//	GET  /health  {"status", "device", "model_loaded"}
package inference
