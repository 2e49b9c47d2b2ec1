package recorder

import (
	"context"
	"errors"
	"math"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"zonewatch/internal/logger"
	"zonewatch/internal/metrics"
	"zonewatch/internal/model"
)

// ErrStopped is returned by Begin once the recorder has been stopped.
var ErrStopped = errors.New("recorder stopped")

// VideoWriter encodes frames into one output artifact.
type VideoWriter interface {
	Write(frame model.Frame) error
	Close() error
}

// WriterFactory opens a writer for a clip of the given geometry.
type WriterFactory func(path string, fps float64, width, height int) (VideoWriter, error)

// State is the lifecycle stage of a recording session.
type State int

const (
	StateSeeding State = iota + 1
	StateRecording
	StateFinalizing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateSeeding:
		return "seeding"
	case StateRecording:
		return "recording"
	case StateFinalizing:
		return "finalizing"
	case StateClosed:
		return "closed"
	}
	return "idle"
}

// Result describes a finished session. Err is a *model.TransientIOError when
// the clip could not be written; the partial file is removed in that case.
type Result struct {
	SessionID string
	Path      string
	StartedAt time.Time
	Frames    int
	Target    int
	Err       error
}

// Status is a point-in-time view of the recorder.
type Status struct {
	Active        bool      `json:"active"`
	SessionID     string    `json:"session_id,omitempty"`
	Path          string    `json:"path,omitempty"`
	State         string    `json:"state"`
	FramesWritten int       `json:"frames_written"`
	TargetFrames  int       `json:"target_frames"`
	StartedAt     time.Time `json:"started_at,omitempty"`
}

type session struct {
	id           string
	path         string
	startedAt    time.Time
	targetFrames int

	// guarded by Recorder.mu
	state    State
	accepted int

	written atomic.Int64
	frames  chan model.Frame
	done    chan struct{}
}

// Recorder writes at most one clip at a time. Pre-event frames are written
// first, then fed frames, until the target frame count is reached.
type Recorder struct {
	fps        float64
	newWriter  WriterFactory
	onComplete func(Result)
	logger     *logger.Logger

	mu      sync.Mutex
	active  *session
	stopped bool
}

// New creates a recorder producing clips at fps. onComplete, when set, is
// called from the writer goroutine after each session closes and before
// Stop returns.
func New(fps float64, newWriter WriterFactory, onComplete func(Result), logger *logger.Logger) *Recorder {
	return &Recorder{
		fps:        fps,
		newWriter:  newWriter,
		onComplete: onComplete,
		logger:     logger,
	}
}

// TargetFrames returns round(duration × fps), at least one.
func (r *Recorder) TargetFrames(duration time.Duration) int {
	n := int(math.Round(duration.Seconds() * r.fps))
	if n < 1 {
		return 1
	}
	return n
}

// Begin starts a session seeded with pre. It returns model.ErrBusy, leaving the
// running session untouched, when another session is active.
func (r *Recorder) Begin(pre []model.Frame, target time.Duration, path string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return "", ErrStopped
	}
	if r.active != nil {
		return "", model.ErrBusy
	}

	s := &session{
		id:           uuid.NewString(),
		path:         path,
		startedAt:    time.Now(),
		targetFrames: r.TargetFrames(target),
		state:        StateSeeding,
		done:         make(chan struct{}),
	}
	// The queue holds a whole clip so neither Begin nor Feed ever block.
	s.frames = make(chan model.Frame, s.targetFrames)

	if len(pre) > s.targetFrames {
		pre = pre[len(pre)-s.targetFrames:]
	}
	for _, frame := range pre {
		s.frames <- frame
	}
	s.accepted = len(pre)

	s.state = StateRecording
	if s.accepted >= s.targetFrames {
		r.finalizeLocked(s)
	}

	r.active = s
	metrics.SetRecorderActive(true)
	go r.write(s)

	r.logger.Info("🎥 Recording %s started (%d pre-event frames, %d target)", path, len(pre), s.targetFrames)
	return s.id, nil
}

// Feed appends a live frame to the active session. It is a no-op unless a
// session is recording.
func (r *Recorder) Feed(frame model.Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.active
	if s == nil || s.state != StateRecording {
		return
	}

	s.frames <- frame
	s.accepted++
	if s.accepted >= s.targetFrames {
		r.finalizeLocked(s)
	}
}

// IsActive reports whether a session is in progress.
func (r *Recorder) IsActive() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active != nil
}

// Status returns the current session state.
func (r *Recorder) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.active
	if s == nil {
		return Status{State: "idle"}
	}
	return Status{
		Active:        true,
		SessionID:     s.id,
		Path:          s.path,
		State:         s.state.String(),
		FramesWritten: int(s.written.Load()),
		TargetFrames:  s.targetFrames,
		StartedAt:     s.startedAt,
	}
}

// Stop refuses new sessions and finalizes the active one with the frames
// received so far. It waits for the clip to be closed until ctx is done.
func (r *Recorder) Stop(ctx context.Context) error {
	r.mu.Lock()
	r.stopped = true
	s := r.active
	if s != nil && s.state == StateRecording {
		r.logger.Info("Finalizing %s early at %d/%d frames", s.path, s.accepted, s.targetFrames)
		r.finalizeLocked(s)
	}
	r.mu.Unlock()

	if s == nil {
		return nil
	}

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		r.logger.Warning("Timed out waiting for %s to close", s.path)
		return ctx.Err()
	}
}

func (r *Recorder) finalizeLocked(s *session) {
	s.state = StateFinalizing
	close(s.frames)
}

// write drains the session queue into the output file on its own goroutine.
func (r *Recorder) write(s *session) {
	var (
		w   VideoWriter
		err error
	)

	for frame := range s.frames {
		if w == nil {
			w, err = r.newWriter(s.path, r.fps, frame.Width, frame.Height)
			if err != nil {
				err = &model.TransientIOError{Op: "open clip", Path: s.path, Err: err}
				break
			}
		}
		if werr := w.Write(frame); werr != nil {
			err = &model.TransientIOError{Op: "write clip", Path: s.path, Err: werr}
			break
		}
		s.written.Add(1)
	}

	if err != nil {
		// Detach first so Feed stops queueing into an abandoned session.
		r.detach(s)
	}

	if w != nil {
		if cerr := w.Close(); cerr != nil && err == nil {
			err = &model.TransientIOError{Op: "close clip", Path: s.path, Err: cerr}
		}
	}
	if err != nil {
		if rmErr := os.Remove(s.path); rmErr != nil && !os.IsNotExist(rmErr) {
			r.logger.Warning("Could not remove partial clip %s: %v", s.path, rmErr)
		}
		r.logger.Error("Recording %s discarded: %v", s.path, err)
	} else {
		r.logger.Info("✅ Clip saved: %s (%d frames)", s.path, s.written.Load())
	}

	r.detach(s)
	metrics.RecordClip(err == nil)

	// Stop waits on done, so callers observe the completion callback as well.
	defer close(s.done)
	if r.onComplete != nil {
		r.onComplete(Result{
			SessionID: s.id,
			Path:      s.path,
			StartedAt: s.startedAt,
			Frames:    int(s.written.Load()),
			Target:    s.targetFrames,
			Err:       err,
		})
	}
}

func (r *Recorder) detach(s *session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s.state = StateClosed
	if r.active == s {
		r.active = nil
		metrics.SetRecorderActive(false)
	}
}
