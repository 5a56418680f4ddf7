// Package job drives a single transcoding job: it subscribes to the worker's
// progress stream, submits the job, and waits for one completion signal.
package job

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"vidsqueeze/internal/events"
	"vidsqueeze/internal/model"
	"vidsqueeze/internal/progress"
	"vidsqueeze/internal/source"
)

// DefaultTimeout bounds how long a job may go without progress or completion.
const DefaultTimeout = 5 * time.Minute

// Bridge is the invoke side of the worker.
type Bridge interface {
	Probe(ctx context.Context, src source.Media) ([]model.VideoStats, error)
	// Submit returns once the worker accepted the job, not when it finished.
	Submit(ctx context.Context, jobID string, src source.Media, p model.CompressionParameters) error
	Cancel(ctx context.Context, jobID string) error
}

// Events is the event side of the worker.
type Events interface {
	Listen(topic string, h events.Handler) events.Unlisten
	Once(topic string) (<-chan events.Event, events.Unlisten)
}

// Controller runs at most one job at a time. A submit while a job is
// submitting or running is rejected with ErrJobInProgress.
type Controller struct {
	bridge  Bridge
	events  Events
	timeout time.Duration
	logger  *zap.Logger
	newID   func() string

	mu     sync.Mutex
	state  State
	active *Handle
	hooks  []func(from, to State)
}

// Option configures a Controller.
type Option func(*Controller)

// WithTimeout sets the stall timeout. Zero or negative disables it.
func WithTimeout(d time.Duration) Option {
	return func(c *Controller) {
		c.timeout = d
	}
}

// WithLogger attaches a logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithIDGenerator overrides job ID generation (useful for testing).
func WithIDGenerator(f func() string) Option {
	return func(c *Controller) {
		if f != nil {
			c.newID = f
		}
	}
}

// WithStateHook registers f to observe every state transition.
func WithStateHook(f func(from, to State)) Option {
	return func(c *Controller) {
		if f != nil {
			c.hooks = append(c.hooks, f)
		}
	}
}

// NewController constructs a Controller over the given worker bridge.
func NewController(b Bridge, ev Events, opts ...Option) *Controller {
	c := &Controller{
		bridge:  b,
		events:  ev,
		timeout: DefaultTimeout,
		logger:  zap.NewNop(),
		newID:   uuid.NewString,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Active returns the in-flight handle, or nil.
func (c *Controller) Active() *Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Probe fetches stream metadata for src through the bridge.
func (c *Controller) Probe(ctx context.Context, src source.Media) ([]model.VideoStats, error) {
	if src.IsZero() {
		return nil, ErrMissingSource
	}
	stats, err := c.bridge.Probe(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProbe, err)
	}
	if len(stats) == 0 {
		return nil, fmt.Errorf("%w: no video stream in %s", ErrProbe, src)
	}
	return stats, nil
}

// Submit starts a job for src with the parameter snapshot p. The progress
// subscription is open before the worker is asked to start, so no early
// event is lost. The stall timer starts once the worker accepts the job,
// so the controller is freed even if Wait is never called. onProgress may
// be nil.
func (c *Controller) Submit(ctx context.Context, src source.Media, p model.CompressionParameters, onProgress func(progress.Event)) (*Handle, error) {
	if src.IsZero() {
		return nil, ErrMissingSource
	}

	c.mu.Lock()
	if c.active != nil {
		c.mu.Unlock()
		return nil, ErrJobInProgress
	}
	h := newHandle(c, c.newID(), src, p, onProgress)
	c.active = h
	c.mu.Unlock()
	c.transition(StateSubmitting)

	h.unlistenStats = c.events.Listen(progress.StatsTopic(h.id), h.onStats)
	h.done, h.unlistenDone = c.events.Once(progress.CompleteTopic(h.id))

	log := c.logger.With(zap.String("job_id", h.id), zap.String("source", src.Path()))
	if err := c.bridge.Submit(ctx, h.id, src, p); err != nil {
		h.release()
		c.finish(h, StateFailed)
		log.Warn("job submission failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrSubmission, err)
	}
	c.transition(StateRunning)
	log.Info("job accepted",
		zap.String("preset", string(p.Preset)),
		zap.Stringer("resolution", p.Resolution),
		zap.Bool("crop", p.CropVideo),
	)
	go h.supervise()
	return h, nil
}

// Run submits a job and waits for it to finish.
func (c *Controller) Run(ctx context.Context, src source.Media, p model.CompressionParameters, onProgress func(progress.Event)) (progress.Completion, error) {
	h, err := c.Submit(ctx, src, p, onProgress)
	if err != nil {
		return progress.Completion{}, err
	}
	return h.Wait(ctx)
}

func (c *Controller) transition(to State) {
	c.mu.Lock()
	from := c.state
	c.state = to
	hooks := append([]func(from, to State){}, c.hooks...)
	c.mu.Unlock()
	for _, f := range hooks {
		f(from, to)
	}
}

// finish moves to a terminal state and frees the controller for the next job.
func (c *Controller) finish(h *Handle, to State) {
	c.mu.Lock()
	if c.active == h {
		c.active = nil
	}
	c.mu.Unlock()
	c.transition(to)
}
