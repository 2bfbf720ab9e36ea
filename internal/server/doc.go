// Package server implements a JSON-RPC 2.0 tool server for inspecting door
// detection and boundary geometry on saved frames.
//
// It speaks the MCP (Model Context Protocol) framing over stdio so the same
// tools can be driven by hand, from scripts, or by an MCP client:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Frames:
//   - image_load: Load a frame snapshot and report its metadata
//
// Door geometry:
//   - door_fit_gate: Fit the floor threshold gate inside a door box
//   - door_split_box: Split a wide box covering two doors
//   - door_edges: Canny edge image of a door box
//   - door_overlay: Draw boxes, fitted gates and labels on a frame
//
// Boundaries:
//   - boundary_side: Classify points against a gate segment
//   - rooms_validate: Check a rooms config and resolve its boundaries
//
// Every door tool runs the same code as automatic door detection, so a
// frame saved from a run reproduces the gates the counter used.
//
// # Frame Caching
//
// Loaded frames are kept in a bounded snapshot cache keyed by path and
// reused across calls.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: Additional error details (typically the Go error string)
//
// An invalid rooms config is not a tool failure: rooms_validate reports it
// in its result.
package server
