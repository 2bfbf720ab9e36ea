package server

import (
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/occupancy-counter/internal/detection"
	"github.com/ironsheep/occupancy-counter/internal/doors"
	"github.com/ironsheep/occupancy-counter/internal/imaging"
)

// writeFrame encodes img as a PNG in a temp dir and returns its path.
func writeFrame(t *testing.T, img image.Image) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "frame.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
	return path
}

// floorStepFrame is dark above floorY and bright from floorY down.
func floorStepFrame(width, height, floorY int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		level := uint8(60)
		if y >= floorY {
			level = 220
		}
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{level, level, level, 255})
		}
	}
	return img
}

// dividedFrame is bright with a dark vertical bar at barX.
func dividedFrame(width, height, barX, barWidth int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			level := uint8(200)
			if x >= barX && x < barX+barWidth {
				level = 20
			}
			img.Set(x, y, color.RGBA{level, level, level, 255})
		}
	}
	return img
}

// callTool runs a tools/call request and decodes the text content into out.
func callTool(t *testing.T, s *Server, name string, args map[string]interface{}, out interface{}) *MCPError {
	t.Helper()

	params, err := json.Marshal(map[string]interface{}{"name": name, "arguments": args})
	require.NoError(t, err)

	resp := s.handleRequest(&MCPRequest{JSONRPC: "2.0", ID: 1, Method: "tools/call", Params: params})
	require.NotNil(t, resp)
	if resp.Error != nil {
		return resp.Error
	}

	content := resp.Result.(map[string]interface{})["content"].([]map[string]interface{})
	require.Len(t, content, 1)
	assert.Equal(t, "text", content[0]["type"])
	if out != nil {
		require.NoError(t, json.Unmarshal([]byte(content[0]["text"].(string)), out))
	}
	return nil
}

func TestHandleToolsCall_ImageLoad(t *testing.T) {
	s := New("dev")
	path := writeFrame(t, floorStepFrame(100, 80, 60))

	var info imaging.SnapshotInfo
	require.Nil(t, callTool(t, s, "image_load", map[string]interface{}{"path": path}, &info))
	assert.Equal(t, 100, info.Width)
	assert.Equal(t, 80, info.Height)
	assert.Equal(t, "png", info.Format)
	assert.Equal(t, 1, s.cache.Len())
}

func TestHandleToolsCall_ImageLoadMissing(t *testing.T) {
	s := New("dev")
	mcpErr := callTool(t, s, "image_load", map[string]interface{}{"path": "/nonexistent.png"}, nil)
	require.NotNil(t, mcpErr)
	assert.Equal(t, -32000, mcpErr.Code)
}

func TestHandleToolsCall_InvalidParams(t *testing.T) {
	s := New("dev")
	resp := s.handleRequest(&MCPRequest{JSONRPC: "2.0", ID: 1, Method: "tools/call", Params: json.RawMessage(`[1,2]`)})
	require.NotNil(t, resp.Error)
	assert.Equal(t, -32602, resp.Error.Code)
}

func TestHandleDoorFitGate(t *testing.T) {
	s := New("dev")
	path := writeFrame(t, floorStepFrame(640, 480, 360))
	box := map[string]interface{}{"path": path, "x1": 100, "y1": 100, "x2": 300, "y2": 400}

	var gate doors.Gate
	require.Nil(t, callTool(t, s, "door_fit_gate", box, &gate))
	assert.Equal(t, doors.GateEdge, gate.Source)
	assert.Equal(t, 100, gate.X1)
	assert.Equal(t, 300, gate.X2)
	assert.InDelta(t, 354, gate.Y1, 4)

	flat := writeFrame(t, floorStepFrame(640, 480, 1000))
	box["path"] = flat
	box["line_offset"] = 10
	require.Nil(t, callTool(t, s, "door_fit_gate", box, &gate))
	assert.Equal(t, doors.Gate{X1: 100, Y1: 390, X2: 300, Y2: 390, Source: doors.GateFallback}, gate)
}

func TestHandleDoorFitGate_InvalidBox(t *testing.T) {
	s := New("dev")
	path := writeFrame(t, floorStepFrame(64, 48, 40))
	mcpErr := callTool(t, s, "door_fit_gate", map[string]interface{}{"path": path, "x1": 50, "y1": 10, "x2": 20, "y2": 40}, nil)
	require.NotNil(t, mcpErr)
	assert.Contains(t, mcpErr.Data, "invalid box")
}

func TestHandleDoorSplitBox(t *testing.T) {
	s := New("dev")
	path := writeFrame(t, dividedFrame(640, 480, 300, 6))

	var res SplitResult
	require.Nil(t, callTool(t, s, "door_split_box", map[string]interface{}{"path": path, "x1": 100, "y1": 200, "x2": 500, "y2": 400}, &res))
	assert.True(t, res.Split)
	require.Len(t, res.Boxes, 2)
	assert.InDelta(t, 302, res.Boxes[0].X2, 6)

	require.Nil(t, callTool(t, s, "door_split_box", map[string]interface{}{"path": path, "x1": 250, "y1": 100, "x2": 350, "y2": 400}, &res))
	assert.False(t, res.Split)
	assert.Equal(t, []detection.Box{{X1: 250, Y1: 100, X2: 350, Y2: 400}}, res.Boxes)
}

func TestHandleDoorEdges(t *testing.T) {
	s := New("dev")
	path := writeFrame(t, floorStepFrame(200, 160, 100))

	var res imaging.EdgeDetectResult
	require.Nil(t, callTool(t, s, "door_edges", map[string]interface{}{"path": path, "x1": 20, "y1": 40, "x2": 120, "y2": 150}, &res))
	assert.Equal(t, 100, res.Width)
	assert.Equal(t, 110, res.Height)
	assert.Equal(t, "image/png", res.MimeType)
	assert.Greater(t, res.EdgePixels, 50)
	assert.NotEmpty(t, res.ImageBase64)

	mcpErr := callTool(t, s, "door_edges", map[string]interface{}{"path": path, "x1": 20, "y1": 40, "x2": 120, "y2": 150, "preprocess": "sharpen"}, nil)
	assert.NotNil(t, mcpErr)
}

func TestHandleDoorOverlay(t *testing.T) {
	s := New("dev")
	path := writeFrame(t, floorStepFrame(640, 480, 360))

	var res OverlayResult
	require.Nil(t, callTool(t, s, "door_overlay", map[string]interface{}{
		"path": path,
		"boxes": []map[string]interface{}{
			{"x1": 100, "y1": 100, "x2": 300, "y2": 400, "label": "door 0.81 accepted_edge"},
			{"x1": 400, "y1": 100, "x2": 560, "y2": 400, "color": "#FF8000"},
		},
		"max_side": 320,
	}, &res))
	assert.Equal(t, 320, res.Width)
	assert.Equal(t, 240, res.Height)
	require.Len(t, res.Gates, 2)
	assert.Equal(t, doors.GateEdge, res.Gates[0].Source)

	mcpErr := callTool(t, s, "door_overlay", map[string]interface{}{
		"path":  path,
		"boxes": []map[string]interface{}{{"x1": 1, "y1": 1, "x2": 50, "y2": 50, "color": "orange"}},
	}, nil)
	assert.NotNil(t, mcpErr)

	mcpErr = callTool(t, s, "door_overlay", map[string]interface{}{"path": path}, nil)
	require.NotNil(t, mcpErr)
	assert.Contains(t, mcpErr.Data, "boxes must not be empty")
}

func TestHandleBoundarySide(t *testing.T) {
	s := New("dev")

	var res []SideResult
	require.Nil(t, callTool(t, s, "boundary_side", map[string]interface{}{
		"x1": 100, "y1": 200, "x2": 300, "y2": 200,
		"points": []map[string]interface{}{
			{"x": 200, "y": 150},
			{"x": 200, "y": 203},
			{"x": 200, "y": 260},
			{"x": 50, "y": 260},
		},
	}, &res))

	var sides []string
	for _, r := range res {
		sides = append(sides, r.Side)
	}
	assert.Equal(t, []string{"above", "unknown", "below", "unknown"}, sides)

	require.Nil(t, callTool(t, s, "boundary_side", map[string]interface{}{
		"x1": 100, "y1": 200, "x2": 300, "y2": 200, "margin": 0,
		"points": []map[string]interface{}{{"x": 200, "y": 203}},
	}, &res))
	assert.Equal(t, "below", res[0].Side)

	mcpErr := callTool(t, s, "boundary_side", map[string]interface{}{"x1": 5, "y1": 5, "x2": 5, "y2": 5}, nil)
	assert.NotNil(t, mcpErr)
}

func TestHandleRoomsValidate(t *testing.T) {
	s := New("dev")
	dir := t.TempDir()

	good := filepath.Join(dir, "rooms.json")
	require.NoError(t, os.WriteFile(good, []byte(`{"rooms":[{"room_id":"lab","line":300},{"room_id":"office","gate_x1":10,"gate_y1":200,"gate_x2":200,"gate_y2":220,"direction":"up"}]}`), 0o644))

	var res ValidateResult
	require.Nil(t, callTool(t, s, "rooms_validate", map[string]interface{}{"path": good, "width": 640}, &res))
	require.True(t, res.Valid, res.Error)
	require.Len(t, res.Boundaries, 2)
	assert.Equal(t, "lab", res.Boundaries[0].ID)
	assert.Equal(t, 640, res.Boundaries[0].X2)
	assert.NotEmpty(t, res.Signature)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"rooms":[{"room_id":"lab","line":300,"direction":"sideways"}]}`), 0o644))
	require.Nil(t, callTool(t, s, "rooms_validate", map[string]interface{}{"path": bad, "width": 640}, &res))
	assert.False(t, res.Valid)
	assert.Equal(t, 1, res.Index)
	assert.NotEmpty(t, res.Error)

	mcpErr := callTool(t, s, "rooms_validate", map[string]interface{}{"path": filepath.Join(dir, "missing.json"), "width": 640}, nil)
	assert.NotNil(t, mcpErr)

	mcpErr = callTool(t, s, "rooms_validate", map[string]interface{}{"path": good}, nil)
	assert.NotNil(t, mcpErr)
}
