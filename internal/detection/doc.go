// Package detection provides the geometric building blocks of door
// detection: scored bounding boxes with IoU and non-maximum suppression, and
// line segment extraction from edge maps.
//
// # Boxes
//
// Box uses (X1,Y1) top-left and (X2,Y2) bottom-right in pixel coordinates.
// NMS is class-agnostic: detections from every prompt compete with each
// other, and the highest-confidence box of an overlapping group survives.
//
// # Line Segments
//
// HoughSegments runs a progressive Hough transform over an imaging.EdgeMap:
//
//  1. Vote: every edge pixel votes for all (rho, theta) lines through it
//  2. Peaks: local maxima at or above the vote threshold, strongest first
//  3. Walk: each peak line is traced across the map collecting edge pixels,
//     bridging gaps up to MaxLineGap
//  4. Consume: pixels of accepted segments are removed so weaker peaks
//     cannot report them again
//
// # Coordinate System
//
// All coordinates use the standard image convention: origin at the
// top-left corner, X rightward, Y downward.
//
// # Performance Considerations
//
// The vote step costs O(edgePixels * angles) and the peak scan
// O(rho * angles). Door regions are small crops, so both stay cheap in
// practice; running HoughSegments over full frames is possible but slower.
package detection
