// Package pipeline runs the counting loop over a video.
//
// For each frame the runner:
//
//  1. Refreshes the door boundaries on the configured cadence, adopting a
//     new set only when it is not smaller than the current one
//  2. Asks the tracker for identified persons
//  3. Feeds their foot points to the counting session
//  4. Hands each crossing event to the dispatcher and the event sinks
//  5. Polls finished uploads and renders the annotated frame
//
// The first frame is used both to resolve the initial boundaries and as
// frame 0 of the count. At the end the runner reports every room's entered,
// left and occupancy counters together with uploads still running.
package pipeline
