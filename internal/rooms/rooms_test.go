package rooms

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/occupancy-counter/internal/geometry"
)

var testDefaults = Defaults{
	Direction:        geometry.DirectionDown,
	Margin:           6,
	Thickness:        2,
	InitialOccupancy: 5,
}

func intPtr(v int) *int { return &v }

func TestParseRoomsConfig(t *testing.T) {
	data := []byte(`{"rooms": [
		{"room_id": "lab", "gate_x1": 10, "gate_y1": 300, "gate_x2": 600, "gate_y2": 320,
		 "direction": "up", "line_margin": 4, "initial_occupancy": 3, "line_thickness": 0,
		 "risk_room_id": "lab-42"},
		{"id": 7, "line": "240", "x1": 900, "x2": -5},
		{"line": 100}
	]}`)

	got, err := ParseRoomsConfig(data, 640, testDefaults)
	require.NoError(t, err)

	want := []Boundary{
		{ID: "lab", X1: 10, Y1: 300, X2: 600, Y2: 320, Direction: geometry.DirectionUp,
			Margin: 4, Thickness: 1, InitialOccupancy: 3, RiskRoomID: "lab-42"},
		{ID: "7", X1: 0, Y1: 240, X2: 640, Y2: 240, Direction: geometry.DirectionDown,
			Margin: 6, Thickness: 2},
		{ID: "room_3", X1: 0, Y1: 100, X2: 640, Y2: 100, Direction: geometry.DirectionDown,
			Margin: 6, Thickness: 2},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("boundaries mismatch (-want +got):\n%s", diff)
	}
}

func TestParseRoomsConfig_BareList(t *testing.T) {
	got, err := ParseRoomsConfig([]byte(`[{"line": 50, "x1": 20, "x2": 200}]`), 640, testDefaults)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "room_1", got[0].ID)
	assert.Equal(t, 20, got[0].X1)
	assert.Equal(t, 200, got[0].X2)
}

func TestParseRoomsConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantIdx int
		wantMsg string
	}{
		{"invalid json", `{"rooms": [`, 0, "rooms-config is not valid JSON"},
		{"empty list", `[]`, 0, "rooms-config must contain a non-empty list of rooms"},
		{"object without rooms", `{"room_id": "x"}`, 0, "rooms-config must contain a non-empty list of rooms"},
		{"not an object", `[{"line": 10}, 5]`, 2, "Room #2 must be an object"},
		{"no geometry", `[{"room_id": "a"}]`, 1, "Room #1 must include either gate points or a line field"},
		{"partial gate", `[{"gate_x1": 1, "gate_y1": 2, "gate_x2": 3}]`, 1, "Room #1 must include either gate points or a line field"},
		{"bad direction", `[{"room_id": "a", "line": 10, "direction": "sideways"}]`, 1,
			`Room #1 (a) direction must be 'down' or 'up', got "sideways"`},
		{"direction case", `[{"line": 10, "direction": "Down"}]`, 1,
			`Room #1 (room_1) direction must be 'down' or 'up', got "Down"`},
		{"bad integer", `[{"line": "abc"}]`, 1, "Room #1 (room_1) line must be an integer"},
		{"duplicate id", `[{"id": "a", "line": 1}, {"id": "a", "line": 2}]`, 2, "Room #2 (a) room_id duplicates Room #1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRoomsConfig([]byte(tt.data), 640, testDefaults)
			require.Error(t, err)

			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr), "want *ConfigError, got %T", err)
			assert.Equal(t, tt.wantIdx, cfgErr.Index)
			assert.Equal(t, tt.wantMsg, err.Error())
		})
	}
}

func TestManualLine(t *testing.T) {
	t.Run("full width", func(t *testing.T) {
		got, err := ManualLine{Y: intPtr(300)}.Boundaries(640, testDefaults)
		require.NoError(t, err)
		want := []Boundary{{ID: "room_1", X1: 0, Y1: 300, X2: 640, Y2: 300,
			Direction: geometry.DirectionDown, Margin: 6, Thickness: 2, InitialOccupancy: 5}}
		assert.Equal(t, want, got)
	})

	t.Run("clamped span", func(t *testing.T) {
		got, err := ManualLine{Y: intPtr(10), X1: intPtr(700), X2: intPtr(100)}.Boundaries(640, testDefaults)
		require.NoError(t, err)
		assert.Equal(t, 100, got[0].X1)
		assert.Equal(t, 640, got[0].X2)
	})

	t.Run("missing line", func(t *testing.T) {
		_, err := ManualLine{}.Boundaries(640, testDefaults)
		var cfgErr *ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "line", cfgErr.Field)
	})

	t.Run("one x only", func(t *testing.T) {
		_, err := ManualLine{Y: intPtr(10), X1: intPtr(5)}.Boundaries(640, testDefaults)
		require.Error(t, err)
	})

	t.Run("bad direction", func(t *testing.T) {
		d := testDefaults
		d.Direction = "left"
		_, err := ManualLine{Y: intPtr(10)}.Boundaries(640, d)
		require.Error(t, err)
	})
}

func TestSignature(t *testing.T) {
	a := []Boundary{{ID: "room_1", X1: 0, Y1: 10, X2: 100, Y2: 10, Direction: geometry.DirectionDown, Margin: 6, Thickness: 2}}
	b := Clone(a)
	b[0].Thickness = 9
	b[0].InitialOccupancy = 4
	assert.Equal(t, Signature(a), Signature(b), "render-only fields must not change the signature")

	b[0].Y2 = 11
	assert.NotEqual(t, Signature(a), Signature(b))
	assert.Empty(t, Signature(nil))
}

func TestBoundary_ResolveRiskRoomID(t *testing.T) {
	b := Boundary{ID: "room_1"}
	assert.Equal(t, "room_1", b.ResolveRiskRoomID(""))
	assert.Equal(t, "site-7", b.ResolveRiskRoomID("site-7"))
	b.RiskRoomID = "override"
	assert.Equal(t, "override", b.ResolveRiskRoomID("site-7"))
}

type fakeDetector struct {
	results [][]Boundary
	calls   int
	err     error
}

func (f *fakeDetector) DetectBoundaries(_ context.Context, _ image.Image) ([]Boundary, error) {
	if f.err != nil {
		return nil, f.err
	}
	i := f.calls
	f.calls++
	if i >= len(f.results) {
		return nil, nil
	}
	return f.results[i], nil
}

func gates(ids ...string) []Boundary {
	out := make([]Boundary, len(ids))
	for i, id := range ids {
		out[i] = Boundary{ID: id, X1: i * 100, Y1: 300, X2: i*100 + 80, Y2: 300, Direction: geometry.DirectionDown}
	}
	return out
}

func TestRegistry_Precedence(t *testing.T) {
	frame := image.NewRGBA(image.Rect(0, 0, 640, 480))
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "rooms.json")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`[{"room_id": "cfg", "line": 200}]`), 0o644))

	det := &fakeDetector{results: [][]Boundary{gates("room_1")}}

	t.Run("config wins", func(t *testing.T) {
		r := NewRegistry(Options{ConfigPath: cfgPath, AutoDetect: true, Detector: det, Manual: ManualLine{Y: intPtr(5)}, Defaults: testDefaults})
		require.NoError(t, r.Load(context.Background(), frame))
		assert.Equal(t, SourceConfig, r.Source())
		assert.Equal(t, "cfg", r.Boundaries()[0].ID)
		assert.False(t, r.Refreshable())
		assert.Equal(t, 0, det.calls)
	})

	t.Run("auto before manual", func(t *testing.T) {
		r := NewRegistry(Options{AutoDetect: true, Detector: det, Manual: ManualLine{Y: intPtr(5)}, Defaults: testDefaults})
		require.NoError(t, r.Load(context.Background(), frame))
		assert.Equal(t, SourceAuto, r.Source())
		assert.Len(t, r.Boundaries(), 1)
	})

	t.Run("manual", func(t *testing.T) {
		r := NewRegistry(Options{Manual: ManualLine{Y: intPtr(5)}, Defaults: testDefaults})
		require.NoError(t, r.Load(context.Background(), frame))
		assert.Equal(t, SourceManual, r.Source())
	})

	t.Run("auto without detector", func(t *testing.T) {
		r := NewRegistry(Options{AutoDetect: true, Defaults: testDefaults})
		require.Error(t, r.Load(context.Background(), frame))
	})

	t.Run("missing config file", func(t *testing.T) {
		r := NewRegistry(Options{ConfigPath: filepath.Join(dir, "nope.json"), Defaults: testDefaults})
		require.Error(t, r.Load(context.Background(), frame))
	})
}

func TestRegistry_RefreshPolicy(t *testing.T) {
	frame := image.NewRGBA(image.Rect(0, 0, 640, 480))
	det := &fakeDetector{results: [][]Boundary{
		gates("room_1", "room_2"),
		nil,
		gates("room_1"),
		gates("room_1", "room_2", "room_3"),
	}}
	r := NewRegistry(Options{AutoDetect: true, Detector: det, Defaults: testDefaults})
	require.NoError(t, r.Load(context.Background(), frame))
	require.Len(t, r.Boundaries(), 2)

	changed, err := r.Refresh(context.Background(), frame)
	require.NoError(t, err)
	assert.False(t, changed, "empty detection keeps the current set")
	assert.Len(t, r.Boundaries(), 2)

	changed, err = r.Refresh(context.Background(), frame)
	require.NoError(t, err)
	assert.False(t, changed, "a smaller set is not adopted")
	assert.Len(t, r.Boundaries(), 2)

	changed, err = r.Refresh(context.Background(), frame)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Len(t, r.Boundaries(), 3)
}

func TestRegistry_LockOnDetect(t *testing.T) {
	frame := image.NewRGBA(image.Rect(0, 0, 640, 480))
	det := &fakeDetector{results: [][]Boundary{nil, gates("room_1"), gates("room_1", "room_2")}}
	r := NewRegistry(Options{AutoDetect: true, Detector: det, LockOnDetect: true, Defaults: testDefaults})

	require.NoError(t, r.Load(context.Background(), frame))
	assert.Empty(t, r.Boundaries())
	assert.False(t, r.Locked(), "nothing detected yet, so nothing to lock")

	changed, err := r.Refresh(context.Background(), frame)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.True(t, r.Locked())

	changed, err = r.Refresh(context.Background(), frame)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, 2, det.calls, "a locked registry does not consult the detector")
}

func TestRegistry_RefreshError(t *testing.T) {
	frame := image.NewRGBA(image.Rect(0, 0, 640, 480))
	det := &fakeDetector{err: errors.New("detector down")}
	r := NewRegistry(Options{AutoDetect: true, Detector: det, Defaults: testDefaults})
	err := r.Load(context.Background(), frame)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "detector down")
}
