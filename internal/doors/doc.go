// Package doors derives counting boundaries from a single video frame.
//
// An open-vocabulary PromptDetector is asked for boxes matching each door
// prompt. The pooled boxes are reduced to distinct doors, filtered, and for
// every surviving door a threshold line is fitted from image edges.
//
// # Pipeline
//
//  1. Optional preprocessing (CLAHE on Lab lightness, then gamma)
//  2. One query per positive prompt, and per negative prompt when configured
//  3. Class-agnostic NMS on each set
//  4. Optional split of wide boxes at a central vertical divider, then NMS again
//  5. Candidates checked by confidence: door capacity, minimum width, maximum
//     height ratio, negative-prompt overlap, and edge requirement
//  6. Gate fitting with FitGateLineFromBox
//  7. Accepted gates ordered by horizontal midpoint and named room_N
//
// Every candidate is kept in the Result with its Reason, so rejected boxes can
// be drawn and counted when debugging.
//
// # Gate Fitting
//
// The threshold of a door is usually the strongest near-horizontal edge in the
// lower part of its box. FitGateLineFromBox looks for it with Canny and a
// Hough transform from the imaging and detection packages, and falls back to a
// flat line just above the box bottom when nothing qualifies.
package doors
