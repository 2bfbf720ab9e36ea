// Package geometry provides the planar primitives used to classify a person's
// position against a doorway boundary.
//
// All coordinates are image pixels: (0,0) is the top-left corner, X increases
// rightward and Y increases downward. A boundary is a Segment; a position is
// classified as Above (-1), Below (+1) or Unknown (0) relative to it.
//
// # Sides
//
// For a non-vertical segment the side is decided by comparing the point's Y
// with the segment's Y interpolated at the point's X. For a vertical segment
// the X coordinates are compared instead, so Above means "left of" and Below
// means "right of". A margin band around the line always classifies as Unknown,
// which callers treat as "do not update state".
//
// # Directions
//
// A move from Above to Below is DirectionDown; Below to Above is DirectionUp.
// Any other pair of sides has no direction.
//
// # Zones
//
// UnitNormalToward, BuildOffsetZone and PointInPolygon build and query the
// inside/outside quadrilaterals used by zone counting. Polygon containment and
// edge distances are computed with github.com/paulmach/orb/planar.
package geometry
