package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/ironsheep/occupancy-counter/internal/detection"
	"github.com/ironsheep/occupancy-counter/internal/doors"
	"github.com/ironsheep/occupancy-counter/internal/geometry"
	"github.com/ironsheep/occupancy-counter/internal/imaging"
	"github.com/ironsheep/occupancy-counter/internal/rooms"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "image_load", "door_fit_gate").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(params.Name, params.Arguments)
	if err != nil {
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

func (s *Server) executeTool(name string, args json.RawMessage) (interface{}, error) {
	switch name {
	case "image_load":
		return s.handleImageLoad(args)

	// Door geometry
	case "door_fit_gate":
		return s.handleDoorFitGate(args)
	case "door_split_box":
		return s.handleDoorSplitBox(args)
	case "door_edges":
		return s.handleDoorEdges(args)
	case "door_overlay":
		return s.handleDoorOverlay(args)

	// Boundaries
	case "boundary_side":
		return s.handleBoundarySide(args)
	case "rooms_validate":
		return s.handleRoomsValidate(args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure it returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

type imageLoadArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleImageLoad(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return imaging.DescribeSnapshot(s.cache, a.Path)
}

// === Door Geometry Handlers ===

// boxArgs is the door box shared by the door tools.
type boxArgs struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

func (b boxArgs) box() (detection.Box, error) {
	box := detection.Box{X1: b.X1, Y1: b.Y1, X2: b.X2, Y2: b.Y2}
	if box.Width() <= 0 || box.Height() <= 0 {
		return box, fmt.Errorf("invalid box (%g,%g)-(%g,%g): need x2 > x1 and y2 > y1", b.X1, b.Y1, b.X2, b.Y2)
	}
	return box, nil
}

type doorFitGateArgs struct {
	Path string `json:"path"`
	boxArgs
	LineOffset     *int    `json:"line_offset"`
	MaxAngle       float64 `json:"max_angle"`
	MinBottomRatio float64 `json:"min_bottom_ratio"`
}

func (a doorFitGateArgs) params() doors.GateParams {
	p := doors.DefaultGateParams()
	if a.LineOffset != nil {
		p.LineOffset = *a.LineOffset
	}
	if a.MaxAngle != 0 {
		p.MaxAngle = a.MaxAngle
	}
	if a.MinBottomRatio != 0 {
		p.MinBottomRatio = a.MinBottomRatio
	}
	return p
}

func (s *Server) handleDoorFitGate(args json.RawMessage) (interface{}, error) {
	var a doorFitGateArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	box, err := a.box()
	if err != nil {
		return nil, err
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	gate := doors.FitGateLineFromBox(img, box, a.params())
	return &gate, nil
}

type doorSplitBoxArgs struct {
	Path string `json:"path"`
	boxArgs
	MinWidth    int     `json:"min_width"`
	Ratio       float64 `json:"ratio"`
	StdMultiple float64 `json:"std_multiple"`
}

// SplitResult lists the boxes a door box was split into.
type SplitResult struct {
	Split bool            `json:"split"`
	Boxes []detection.Box `json:"boxes"`
}

func (s *Server) handleDoorSplitBox(args json.RawMessage) (interface{}, error) {
	var a doorSplitBoxArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	box, err := a.box()
	if err != nil {
		return nil, err
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}

	def := doors.DefaultConfig()
	p := doors.SplitParams{MinWidth: def.MinWidth, Ratio: def.SplitRatio, StdMultiple: def.SplitStdMultiple}
	if a.MinWidth != 0 {
		p.MinWidth = a.MinWidth
	}
	if a.Ratio != 0 {
		p.Ratio = a.Ratio
	}
	if a.StdMultiple != 0 {
		p.StdMultiple = a.StdMultiple
	}

	boxes := doors.SplitWideBox(img, box, p)
	return &SplitResult{Split: len(boxes) > 1, Boxes: boxes}, nil
}

type doorEdgesArgs struct {
	Path string `json:"path"`
	boxArgs
	ThresholdLow  int     `json:"threshold_low"`
	ThresholdHigh int     `json:"threshold_high"`
	Preprocess    string  `json:"preprocess"`
	Gamma         float64 `json:"gamma"`
}

func (s *Server) handleDoorEdges(args json.RawMessage) (interface{}, error) {
	var a doorEdgesArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.ThresholdLow == 0 {
		a.ThresholdLow = 50
	}
	if a.ThresholdHigh == 0 {
		a.ThresholdHigh = 150
	}
	if a.Preprocess == "" {
		a.Preprocess = imaging.PreprocessNone
	}
	if a.Gamma == 0 {
		a.Gamma = 1
	}
	box, err := a.box()
	if err != nil {
		return nil, err
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	img, err = imaging.Preprocess(img, a.Preprocess, a.Gamma)
	if err != nil {
		return nil, err
	}
	roi, err := imaging.CropRegion(img, box.Rect())
	if err != nil {
		return nil, err
	}
	return imaging.EdgeDetect(roi, a.ThresholdLow, a.ThresholdHigh)
}

type overlayBoxArgs struct {
	boxArgs
	Label string `json:"label"`
	Color string `json:"color"`
}

type doorOverlayArgs struct {
	Path       string           `json:"path"`
	Boxes      []overlayBoxArgs `json:"boxes"`
	LineOffset *int             `json:"line_offset"`
	MaxSide    int              `json:"max_side"`
}

// OverlayResult is an annotated frame with the gates fitted for it.
type OverlayResult struct {
	imaging.EncodedImage
	Gates []doors.Gate `json:"gates"`
}

var overlayDefaultColor = color.RGBA{0, 200, 0, 255}

func (s *Server) handleDoorOverlay(args json.RawMessage) (interface{}, error) {
	var a doorOverlayArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if len(a.Boxes) == 0 {
		return nil, errors.New("boxes must not be empty")
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}

	params := doors.DefaultGateParams()
	if a.LineOffset != nil {
		params.LineOffset = *a.LineOffset
	}

	notes := make([]imaging.Annotation, 0, len(a.Boxes))
	gates := make([]doors.Gate, 0, len(a.Boxes))
	for i, b := range a.Boxes {
		box, err := b.box()
		if err != nil {
			return nil, fmt.Errorf("box %d: %w", i, err)
		}
		col := overlayDefaultColor
		if b.Color != "" {
			if col, err = imaging.ParseHexColor(b.Color); err != nil {
				return nil, fmt.Errorf("box %d: %w", i, err)
			}
		}
		gate := doors.FitGateLineFromBox(img, box, params)
		gates = append(gates, gate)
		line := [2]image.Point{image.Pt(gate.X1, gate.Y1), image.Pt(gate.X2, gate.Y2)}
		notes = append(notes, imaging.Annotation{
			Box:       box.Rect(),
			Line:      &line,
			Label:     b.Label,
			Color:     col,
			Thickness: 2,
		})
	}

	var annotated image.Image = imaging.Annotate(img, notes)
	if a.MaxSide > 0 {
		annotated = imaging.Downscale(annotated, a.MaxSide)
	}
	enc, err := imaging.EncodePNG(annotated)
	if err != nil {
		return nil, err
	}
	return &OverlayResult{EncodedImage: *enc, Gates: gates}, nil
}

// === Boundary Handlers ===

type boundarySideArgs struct {
	boxArgs
	Margin *float64         `json:"margin"`
	Points []geometry.Point `json:"points"`
}

// SideResult is the classification of one point.
type SideResult struct {
	Point geometry.Point `json:"point"`
	Side  string         `json:"side"`
}

func (s *Server) handleBoundarySide(args json.RawMessage) (interface{}, error) {
	var a boundarySideArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	margin := 6.0
	if a.Margin != nil {
		margin = *a.Margin
	}
	seg := geometry.Segment{A: geometry.Point{X: a.X1, Y: a.Y1}, B: geometry.Point{X: a.X2, Y: a.Y2}}
	if seg.A == seg.B {
		return nil, errors.New("gate segment has zero length")
	}

	out := make([]SideResult, 0, len(a.Points))
	for _, p := range a.Points {
		out = append(out, SideResult{Point: p, Side: geometry.SideOfSegment(p, seg, margin).String()})
	}
	return out, nil
}

type roomsValidateArgs struct {
	Path             string `json:"path"`
	Width            int    `json:"width"`
	Direction        string `json:"direction"`
	Margin           *int   `json:"margin"`
	Thickness        int    `json:"thickness"`
	InitialOccupancy int    `json:"initial_occupancy"`
}

// ValidateResult reports whether a rooms config is usable.
type ValidateResult struct {
	Valid      bool             `json:"valid"`
	Error      string           `json:"error,omitempty"`
	Field      string           `json:"field,omitempty"`
	Index      int              `json:"index,omitempty"`
	Boundaries []rooms.Boundary `json:"boundaries,omitempty"`
	Signature  string           `json:"signature,omitempty"`
}

func (s *Server) handleRoomsValidate(args json.RawMessage) (interface{}, error) {
	var a roomsValidateArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Width <= 0 {
		return nil, fmt.Errorf("width must be positive, got %d", a.Width)
	}
	if a.Direction == "" {
		a.Direction = string(geometry.DirectionDown)
	}
	dir, err := geometry.ParseDirection(a.Direction)
	if err != nil {
		return nil, err
	}
	defaults := rooms.Defaults{Direction: dir, Margin: 6, Thickness: 2, InitialOccupancy: a.InitialOccupancy}
	if a.Margin != nil {
		defaults.Margin = *a.Margin
	}
	if a.Thickness > 0 {
		defaults.Thickness = a.Thickness
	}

	bs, err := rooms.LoadRoomsConfig(a.Path, a.Width, defaults)
	var cfgErr *rooms.ConfigError
	switch {
	case errors.As(err, &cfgErr):
		return &ValidateResult{Error: cfgErr.Error(), Field: cfgErr.Field, Index: cfgErr.Index}, nil
	case err != nil:
		return nil, err
	}
	return &ValidateResult{Valid: true, Boundaries: bs, Signature: rooms.Signature(bs)}, nil
}
