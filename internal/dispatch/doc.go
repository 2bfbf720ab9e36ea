// Package dispatch turns crossing events into side effects that must never
// stall the frame loop: room risk checks and clip uploads.
//
// Risk checks run inline with a timeout. Uploads run on goroutines owned by a
// Supervisor; the loop calls Dispatcher.Poll once per frame to collect
// completions, and Dispatcher.Shutdown at the end to log uploads still in
// flight. Running uploads are never cancelled.
package dispatch
