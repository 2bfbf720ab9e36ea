package publish

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/occupancy-counter/internal/counting"
	"github.com/ironsheep/occupancy-counter/internal/geometry"
)

// fakeToken is a completed (or never completing) mqtt.Token.
type fakeToken struct {
	done chan struct{}
	err  error
}

func doneToken(err error) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool {
	<-t.done
	return true
}

func (t *fakeToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}

func (t *fakeToken) Done() <-chan struct{} { return t.done }
func (t *fakeToken) Error() error          { return t.err }

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakeClient struct {
	msgs  []published
	token *fakeToken
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.msgs = append(c.msgs, published{topic, qos, retained, payload.([]byte)})
	if c.token != nil {
		return c.token
	}
	return doneToken(nil)
}

func testEvent() counting.CrossingEvent {
	return counting.CrossingEvent{
		BoundaryID: "room_2",
		Direction:  geometry.DirectionDown,
		Kind:       counting.KindEntry,
		TrackID:    17,
		Frame:      240,
		VideoTime:  8 * time.Second,
		Foot:       geometry.Point{X: 320, Y: 310},
		Occupancy:  3,
	}
}

func TestHandleEvent_Publishes(t *testing.T) {
	client := &fakeClient{}
	p := NewPublisher(client, "site/lobby/")
	p.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	require.NoError(t, p.HandleEvent(context.Background(), testEvent()))

	require.Len(t, client.msgs, 1)
	msg := client.msgs[0]
	assert.Equal(t, "site/lobby/room_2/entry", msg.topic)
	assert.Equal(t, byte(1), msg.qos)
	assert.False(t, msg.retained)

	var got EventPayload
	require.NoError(t, json.Unmarshal(msg.payload, &got))
	assert.Equal(t, EventPayload{
		RoomID:      "room_2",
		Direction:   "down",
		Kind:        "entry",
		TrackID:     17,
		Frame:       240,
		VideoTS:     8,
		FootX:       320,
		FootY:       310,
		Occupancy:   3,
		PublishedAt: "2026-01-02T03:04:05Z",
	}, got)

	assert.Equal(t, map[string]uint64{"site/lobby/room_2/entry": 1}, p.Stats().Published)
}

func TestNewPublisher_DefaultTopic(t *testing.T) {
	p := NewPublisher(&fakeClient{}, "")
	ev := testEvent()
	ev.Kind = counting.KindExit
	assert.Equal(t, "occupancy/events/room_2/exit", p.Topic(ev))
}

func TestHandleEvent_Errors(t *testing.T) {
	client := &fakeClient{token: doneToken(errors.New("not connected"))}
	p := NewPublisher(client, "")

	err := p.HandleEvent(context.Background(), testEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not connected")

	// A token that never completes gives way to the caller's context.
	client.token = &fakeToken{done: make(chan struct{})}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = p.HandleEvent(ctx, testEvent())
	assert.ErrorIs(t, err, context.Canceled)

	stats := p.Stats()
	assert.Equal(t, uint64(2), stats.Errors)
	assert.Empty(t, stats.Published)
}
