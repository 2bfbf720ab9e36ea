package dispatch

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/occupancy-counter/internal/counting"
	"github.com/ironsheep/occupancy-counter/internal/geometry"
	"github.com/ironsheep/occupancy-counter/internal/httputil"
	"github.com/ironsheep/occupancy-counter/internal/rooms"
	"github.com/ironsheep/occupancy-counter/internal/timeutil"
)

type fakeRisk struct {
	mu      sync.Mutex
	high    bool
	err     error
	rooms   []string
	timeout time.Duration
}

func (f *fakeRisk) CheckRoom(ctx context.Context, roomID string) (*RiskResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rooms = append(f.rooms, roomID)
	if dl, ok := ctx.Deadline(); ok {
		f.timeout = time.Until(dl)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &RiskResult{RoomID: roomID, Found: true, IsHighRisk: f.high, RiskScore: 0.9, RiskThreshold: 0.5}, nil
}

// blockingLauncher records requests and finishes each one when released.
type blockingLauncher struct {
	mu       sync.Mutex
	requests []UploadRequest
	release  chan error
}

func newBlockingLauncher() *blockingLauncher {
	return &blockingLauncher{release: make(chan error, 16)}
}

func (l *blockingLauncher) Launch(ctx context.Context, req UploadRequest) error {
	l.mu.Lock()
	l.requests = append(l.requests, req)
	l.mu.Unlock()
	return <-l.release
}

func (l *blockingLauncher) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.requests)
}

var testBoundary = rooms.Boundary{ID: "room_1", Direction: geometry.DirectionDown}

func entry(videoTime time.Duration) counting.CrossingEvent {
	return counting.CrossingEvent{BoundaryID: "room_1", Kind: counting.KindEntry, Direction: geometry.DirectionDown, VideoTime: videoTime}
}

func exit() counting.CrossingEvent {
	return counting.CrossingEvent{BoundaryID: "room_1", Kind: counting.KindExit, Direction: geometry.DirectionUp}
}

func TestDispatcher_EscalatingThreshold(t *testing.T) {
	risk := &fakeRisk{high: true}
	launcher := newBlockingLauncher()
	sup := NewSupervisor(launcher, 8, nil)
	d := NewDispatcher(DefaultConfig(), risk, sup)
	ctx := context.Background()

	// Not enough exits yet.
	d.OnEvent(ctx, entry(time.Second), testBoundary)
	assert.Equal(t, 0, d.Triggers())

	d.OnEvent(ctx, exit(), testBoundary)
	d.OnEvent(ctx, exit(), testBoundary)
	d.OnEvent(ctx, entry(5*time.Second), testBoundary)
	assert.Equal(t, 1, d.Triggers())
	assert.Equal(t, 4, d.ExitThreshold())

	// The exit counter restarted, so two exits are no longer enough.
	d.OnEvent(ctx, exit(), testBoundary)
	d.OnEvent(ctx, exit(), testBoundary)
	d.OnEvent(ctx, entry(6*time.Second), testBoundary)
	assert.Equal(t, 1, d.Triggers())

	d.OnEvent(ctx, exit(), testBoundary)
	d.OnEvent(ctx, exit(), testBoundary)
	d.OnEvent(ctx, entry(9*time.Second), testBoundary)
	assert.Equal(t, 2, d.Triggers())
	assert.Equal(t, 6, d.ExitThreshold())

	for i := 0; i < 6; i++ {
		d.OnEvent(ctx, exit(), testBoundary)
	}
	d.OnEvent(ctx, entry(20*time.Second), testBoundary)
	assert.Equal(t, 3, d.Triggers())

	// The cap holds no matter how many exits follow.
	for i := 0; i < 20; i++ {
		d.OnEvent(ctx, exit(), testBoundary)
	}
	d.OnEvent(ctx, entry(30*time.Second), testBoundary)
	assert.Equal(t, 3, d.Triggers())

	assert.Len(t, risk.rooms, 6, "every entry is checked")

	require.Eventually(t, func() bool { return launcher.count() == 3 }, time.Second, time.Millisecond)
	launcher.mu.Lock()
	assert.Equal(t, 5*time.Second, launcher.requests[0].ClipDuration)
	assert.Equal(t, "room_1", launcher.requests[0].RoomID)
	launcher.mu.Unlock()

	pending := d.Shutdown()
	assert.Len(t, pending, 3, "unfinished uploads are reported, not cancelled")

	for i := 0; i < 3; i++ {
		launcher.release <- nil
	}
	sup.Wait()
	assert.Len(t, d.Poll(), 3)
	assert.Empty(t, sup.Pending())
}

func TestDispatcher_LowRiskNeverUploads(t *testing.T) {
	launcher := newBlockingLauncher()
	d := NewDispatcher(DefaultConfig(), &fakeRisk{high: false}, NewSupervisor(launcher, 4, nil))

	for i := 0; i < 10; i++ {
		d.OnEvent(context.Background(), exit(), testBoundary)
	}
	d.OnEvent(context.Background(), entry(time.Second), testBoundary)
	assert.Equal(t, 0, d.Triggers())
	assert.Empty(t, d.Shutdown())
}

func TestDispatcher_RiskErrorIgnored(t *testing.T) {
	risk := &fakeRisk{err: errors.New("timeout")}
	d := NewDispatcher(DefaultConfig(), risk, NewSupervisor(newBlockingLauncher(), 4, nil))

	d.OnEvent(context.Background(), exit(), testBoundary)
	d.OnEvent(context.Background(), exit(), testBoundary)
	d.OnEvent(context.Background(), entry(time.Second), testBoundary)
	d.OnEvent(context.Background(), entry(time.Second), testBoundary)

	assert.Equal(t, 0, d.Triggers())
	assert.Len(t, risk.rooms, 2, "failed checks are not retried")
}

func TestDispatcher_RiskRoomIDAndTimeout(t *testing.T) {
	risk := &fakeRisk{}
	cfg := DefaultConfig()
	cfg.RunRoomID = "site-9"
	cfg.RiskTimeout = 3 * time.Second
	d := NewDispatcher(cfg, risk, nil)

	d.OnEvent(context.Background(), entry(0), testBoundary)
	override := testBoundary
	override.RiskRoomID = "lab-1"
	d.OnEvent(context.Background(), entry(0), override)

	assert.Equal(t, []string{"site-9", "lab-1"}, risk.rooms)
	assert.LessOrEqual(t, risk.timeout, 3*time.Second)
	assert.Greater(t, risk.timeout, 2*time.Second)
}

func TestDispatcher_NilCollaborators(t *testing.T) {
	d := NewDispatcher(DefaultConfig(), nil, nil)
	d.OnEvent(context.Background(), entry(0), testBoundary)
	assert.Nil(t, d.Poll())
	assert.Nil(t, d.Shutdown())

	risk := &fakeRisk{high: true}
	d = NewDispatcher(DefaultConfig(), risk, nil)
	d.OnEvent(context.Background(), exit(), testBoundary)
	d.OnEvent(context.Background(), exit(), testBoundary)
	d.OnEvent(context.Background(), entry(0), testBoundary)
	assert.Equal(t, 0, d.Triggers())
}

func TestSupervisor_PollNonBlocking(t *testing.T) {
	launcher := newBlockingLauncher()
	clock := timeutil.NewMockClock(time.Unix(100, 0))
	sup := NewSupervisor(launcher, 2, clock)

	ctx, cancel := context.WithCancel(context.Background())
	task := sup.Start(ctx, UploadRequest{RoomID: "r"})
	cancel()
	assert.NotEmpty(t, task.ID)
	assert.Empty(t, sup.Poll())
	assert.Len(t, sup.Pending(), 1)

	boom := errors.New("upload failed")
	launcher.release <- boom
	sup.Wait()

	done := sup.Poll()
	require.Len(t, done, 1)
	assert.Equal(t, task.ID, done[0].ID)
	assert.ErrorIs(t, done[0].Err, boom)
	assert.Empty(t, sup.Pending())
}

func TestRiskClient_CheckRoom(t *testing.T) {
	mock := httputil.NewMockHTTPClient()
	mock.AddResponse(http.StatusOK, `{"room_id":"304","found":true,"risk_score":0.82,"risk_threshold":0.7,"is_high_risk":true}`)
	mock.AddResponse(http.StatusUnauthorized, `{"error":"bad key"}`)

	c := NewRiskClient(mock, "http://next.local:3000/", "k3y")
	res, err := c.CheckRoom(context.Background(), "304")
	require.NoError(t, err)
	assert.Equal(t, &RiskResult{RoomID: "304", Found: true, RiskScore: 0.82, RiskThreshold: 0.7, IsHighRisk: true}, res)

	req := mock.GetRequest(0)
	assert.Equal(t, "http://next.local:3000/api/cv/room-risk", req.URL.String())
	assert.Equal(t, "k3y", req.Header.Get(APIKeyHeader))
	assert.JSONEq(t, `{"room_id":"304"}`, mock.GetBody(0))

	_, err = c.CheckRoom(context.Background(), "304")
	var statusErr *httputil.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
}
