package job

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"vidsqueeze/internal/events"
	"vidsqueeze/internal/model"
	"vidsqueeze/internal/progress"
	"vidsqueeze/internal/source"
)

// cancelTimeout bounds the best-effort worker cancel on abort paths.
const cancelTimeout = 5 * time.Second

// Handle is one in-flight job. It owns the progress subscription and
// releases it exactly once on every exit path.
type Handle struct {
	c      *Controller
	id     string
	src    source.Media
	params model.CompressionParameters

	onProgress func(progress.Event)
	activity   chan struct{}

	unlistenStats events.Unlisten
	unlistenDone  events.Unlisten
	done          <-chan events.Event

	closed      atomic.Bool
	releaseOnce sync.Once

	cancelOnce sync.Once
	cancelCh   chan struct{}
	cause      error

	finished chan struct{}
	result   progress.Completion
	err      error

	mu   sync.Mutex
	last progress.Event
}

func newHandle(c *Controller, id string, src source.Media, p model.CompressionParameters, onProgress func(progress.Event)) *Handle {
	return &Handle{
		c:          c,
		id:         id,
		src:        src,
		params:     p,
		onProgress: onProgress,
		activity:   make(chan struct{}, 1),
		cancelCh:   make(chan struct{}),
		finished:   make(chan struct{}),
	}
}

// ID returns the job topic identifier.
func (h *Handle) ID() string { return h.id }

// Source returns the media being transcoded.
func (h *Handle) Source() source.Media { return h.src }

// Params returns the submitted parameter snapshot.
func (h *Handle) Params() model.CompressionParameters { return h.params }

// Last returns the most recent progress event.
func (h *Handle) Last() progress.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.last
}

// Cancel aborts the job. It is safe to call at any time.
func (h *Handle) Cancel() {
	h.stop(ErrCancelled)
}

// Done is closed once the job has reached a terminal state.
func (h *Handle) Done() <-chan struct{} { return h.finished }

// Wait blocks until the job completes, stalls, or is cancelled. Cancelling
// ctx aborts the job. Every caller observes the same outcome.
func (h *Handle) Wait(ctx context.Context) (progress.Completion, error) {
	select {
	case <-h.finished:
	case <-ctx.Done():
		h.stop(fmt.Errorf("%w: %v", ErrCancelled, ctx.Err()))
		<-h.finished
	}
	return h.result, h.err
}

func (h *Handle) stop(cause error) {
	h.cancelOnce.Do(func() {
		h.cause = cause
		close(h.cancelCh)
	})
}

// supervise runs from acceptance until the job ends. It does not depend
// on Wait being called.
func (h *Handle) supervise() {
	h.result, h.err = h.watch()
	close(h.finished)
}

func (h *Handle) watch() (progress.Completion, error) {
	var (
		timer   *time.Timer
		timeout <-chan time.Time
	)
	if h.c.timeout > 0 {
		timer = time.NewTimer(h.c.timeout)
		defer timer.Stop()
		timeout = timer.C
	}
	log := h.c.logger.With(zap.String("job_id", h.id))

	for {
		select {
		case ev := <-h.done:
			h.release()
			comp, _ := ev.Payload.(progress.Completion)
			comp.JobID = h.id
			if comp.Err != nil {
				h.c.finish(h, StateFailed)
				log.Warn("job failed", zap.Error(comp.Err))
				return comp, fmt.Errorf("%w: %v", ErrTranscode, comp.Err)
			}
			h.c.finish(h, StateCompleted)
			log.Info("job completed",
				zap.String("output", comp.OutputPath),
				zap.Int64("bytes", comp.Bytes),
				zap.Int64("frames", comp.Stats.Frame),
			)
			return comp, nil

		case <-h.activity:
			if timer != nil {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(h.c.timeout)
			}

		case <-timeout:
			log.Warn("job stalled", zap.Duration("timeout", h.c.timeout))
			return h.abort(fmt.Errorf("%w (%s)", ErrStalledJob, h.c.timeout))

		case <-h.cancelCh:
			log.Info("job cancelled", zap.Error(h.cause))
			return h.abort(h.cause)
		}
	}
}

// abort stops the worker job, releases the subscription and fails the job.
func (h *Handle) abort(cause error) (progress.Completion, error) {
	ctx, cancel := context.WithTimeout(context.Background(), cancelTimeout)
	defer cancel()
	if err := h.c.bridge.Cancel(ctx, h.id); err != nil {
		h.c.logger.Debug("worker cancel failed", zap.String("job_id", h.id), zap.Error(err))
	}
	h.release()
	h.c.finish(h, StateFailed)
	return progress.Completion{JobID: h.id, Stats: h.Last()}, cause
}

func (h *Handle) onStats(ev events.Event) {
	if h.closed.Load() {
		return
	}
	pe, ok := ev.Payload.(progress.Event)
	if !ok {
		return
	}
	h.mu.Lock()
	h.last = pe
	h.mu.Unlock()
	if h.onProgress != nil {
		h.onProgress(pe)
	}
	select {
	case h.activity <- struct{}{}:
	default:
	}
}

func (h *Handle) release() {
	h.releaseOnce.Do(func() {
		h.closed.Store(true)
		if h.unlistenStats != nil {
			h.unlistenStats()
		}
		if h.unlistenDone != nil {
			h.unlistenDone()
		}
	})
}
