// Package uploader samples frames from a video and delivers them in batches
// to the ingestion service, then asks the service to finalize its summary of
// the video.
//
// A run reads one frame per SampleInterval. File sources are sampled by
// seeking; live sources by waiting. Items are posted once BatchSize frames
// are collected or FlushInterval has passed since the last post, never closer
// together than MinPostInterval. Transport failures are retried with linear
// backoff; an error status from the service is logged and not retried.
//
// Launcher adapts an uploader to dispatch.Launcher so crossing events can
// trigger clip uploads.
package uploader
