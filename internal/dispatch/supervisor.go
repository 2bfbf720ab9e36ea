package dispatch

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ironsheep/occupancy-counter/internal/timeutil"
)

// UploadRequest describes one clip upload.
type UploadRequest struct {
	// RoomID is the room identifier the clip is filed under.
	RoomID     string
	BoundaryID string
	TrackID    int
	Frame      int
	// ClipDuration is how much video, from the start, to upload.
	ClipDuration time.Duration
}

// Launcher performs an upload. Launch blocks until the upload finishes; the
// Supervisor runs it on its own goroutine.
type Launcher interface {
	Launch(ctx context.Context, req UploadRequest) error
}

// Task is a launched upload.
type Task struct {
	ID      string
	Request UploadRequest
	Started time.Time
}

// Completion reports a finished task.
type Completion struct {
	Task
	Finished time.Time
	Err      error
}

// Supervisor runs upload tasks in the background and reports their
// completions through a buffered channel that the caller polls.
type Supervisor struct {
	launcher Launcher
	clock    timeutil.Clock

	mu      sync.Mutex
	pending map[string]Task
	done    chan Completion
	wg      sync.WaitGroup
}

// NewSupervisor returns a supervisor for launcher. buffer sizes the
// completion channel; a full channel delays finishing tasks until Poll runs.
func NewSupervisor(launcher Launcher, buffer int, clock timeutil.Clock) *Supervisor {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Supervisor{
		launcher: launcher,
		clock:    clock,
		pending:  make(map[string]Task),
		done:     make(chan Completion, max(1, buffer)),
	}
}

// Start launches req without blocking and returns the task. The task keeps
// running when ctx is cancelled.
func (s *Supervisor) Start(ctx context.Context, req UploadRequest) Task {
	task := Task{ID: uuid.NewString(), Request: req, Started: s.clock.Now()}

	s.mu.Lock()
	s.pending[task.ID] = task
	s.mu.Unlock()

	runCtx := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		err := s.launcher.Launch(runCtx, req)
		s.done <- Completion{Task: task, Finished: s.clock.Now(), Err: err}
	}()
	return task
}

// Poll returns the completions reported since the last call without
// blocking.
func (s *Supervisor) Poll() []Completion {
	var out []Completion
	for {
		select {
		case c := <-s.done:
			s.mu.Lock()
			delete(s.pending, c.ID)
			s.mu.Unlock()
			out = append(out, c)
		default:
			return out
		}
	}
}

// Pending returns the tasks not yet reported through Poll, oldest first.
func (s *Supervisor) Pending() []Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Task, 0, len(s.pending))
	for _, t := range s.pending {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Started.Equal(out[j].Started) {
			return out[i].ID < out[j].ID
		}
		return out[i].Started.Before(out[j].Started)
	})
	return out
}

// Wait blocks until every started task has finished. It does not drain the
// completion channel, so it must only be used while Poll keeps up or the
// buffer is large enough.
func (s *Supervisor) Wait() {
	s.wg.Wait()
}
