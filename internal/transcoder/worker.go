// Package transcoder runs ffprobe and ffmpeg on behalf of jobs. It is the
// worker side of the job bridge: Submit returns once ffmpeg is launched and
// progress and completion are published on an event bus.
package transcoder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"vidsqueeze/internal/model"
	"vidsqueeze/internal/progress"
	"vidsqueeze/internal/source"
	"vidsqueeze/internal/util"
	"vidsqueeze/internal/util/media"
)

// ErrOutputBusy is returned when another job holds the output file lock.
var ErrOutputBusy = errors.New("output is being written by another job")

// ErrUnknownJob is returned by Cancel for a job that is not running.
var ErrUnknownJob = errors.New("unknown job")

// Emitter publishes worker events.
type Emitter interface {
	Emit(topic string, payload any)
}

// Worker launches transcodes. Each accepted job runs in its own goroutine
// until ffmpeg exits.
type Worker struct {
	ffmpegPath   string
	ffprobePath  string
	progressDir  string
	keepProgress bool
	runner       util.CmdRunner
	emitter      Emitter
	logger       *zap.Logger

	mu   sync.Mutex
	jobs map[string]context.CancelFunc
	wg   sync.WaitGroup
}

// Option configures a Worker.
type Option func(*Worker)

// WithFFmpegPath sets the ffmpeg binary path.
func WithFFmpegPath(p string) Option {
	return func(w *Worker) {
		w.ffmpegPath = p
	}
}

// WithFFprobePath sets the ffprobe binary path.
func WithFFprobePath(p string) Option {
	return func(w *Worker) {
		w.ffprobePath = p
	}
}

// WithProgressDir sets where ffmpeg progress files are written.
func WithProgressDir(dir string) Option {
	return func(w *Worker) {
		w.progressDir = dir
	}
}

// WithKeepProgress leaves progress files on disk after a job ends.
func WithKeepProgress(keep bool) Option {
	return func(w *Worker) {
		w.keepProgress = keep
	}
}

// WithRunner injects a custom command runner (useful for testing).
func WithRunner(r util.CmdRunner) Option {
	return func(w *Worker) {
		w.runner = r
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Worker) {
		if l != nil {
			w.logger = l
		}
	}
}

// NewWorker constructs a Worker publishing on em.
func NewWorker(em Emitter, opts ...Option) *Worker {
	w := &Worker{
		emitter: em,
		logger:  zap.NewNop(),
		jobs:    make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.runner == nil {
		w.runner = util.NewDefaultRunner()
	}
	if w.progressDir == "" {
		w.progressDir = os.TempDir()
	}
	return w
}

// Probe reports the first video stream of src.
func (w *Worker) Probe(ctx context.Context, src source.Media) ([]model.VideoStats, error) {
	if w.ffprobePath == "" {
		return nil, errors.New("ffprobe path not configured")
	}
	res, err := w.runner.Run(ctx, util.CmdSpec{
		Path:          w.ffprobePath,
		Args:          ProbeArgs(src.Path()),
		CaptureStdout: true,
	})
	if err != nil {
		return nil, fmt.Errorf("ffprobe: %w", err)
	}
	return ParseProbe(res.Stdout)
}

// Version returns the first line of `ffmpeg -version`.
func (w *Worker) Version(ctx context.Context) (string, error) {
	if w.ffmpegPath == "" {
		return "", errors.New("ffmpeg path not configured")
	}
	res, err := w.runner.Run(ctx, util.CmdSpec{
		Path:          w.ffmpegPath,
		Args:          []string{"-version"},
		CaptureStdout: true,
	})
	if err != nil {
		return "", err
	}
	line, _, _ := strings.Cut(string(res.Stdout), "\n")
	return strings.TrimSpace(line), nil
}

// Submit validates the request, takes the output lock, and starts ffmpeg.
// It returns before the transcode finishes; ctx only bounds acceptance.
func (w *Worker) Submit(ctx context.Context, jobID string, src source.Media, p model.CompressionParameters) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	switch {
	case w.ffmpegPath == "":
		return errors.New("ffmpeg path not configured")
	case src.IsZero():
		return errors.New("no source")
	case p.Resolution.Width < 1 || p.Resolution.Height < 1:
		return fmt.Errorf("invalid resolution %s", p.Resolution)
	case !p.Preset.Valid():
		return fmt.Errorf("invalid preset %q", p.Preset)
	}

	if err := util.EnsureDir(w.progressDir); err != nil {
		return fmt.Errorf("progress dir: %w", err)
	}
	progressPath := filepath.Join(w.progressDir, fmt.Sprintf("ffmpeg-progress-%s.txt", uuid.NewString()))
	if err := os.WriteFile(progressPath, nil, 0o644); err != nil {
		return fmt.Errorf("create progress file: %w", err)
	}

	outPath := media.OutputPath(src.Path())
	lock := flock.New(outPath + ".lock")
	locked, err := lock.TryLock()
	if err != nil || !locked {
		_ = os.Remove(progressPath)
		if err != nil {
			return fmt.Errorf("lock %s: %w", outPath, err)
		}
		return fmt.Errorf("%w: %s", ErrOutputBusy, outPath)
	}

	jobCtx, cancel := context.WithCancel(context.Background())
	w.mu.Lock()
	if _, dup := w.jobs[jobID]; dup {
		w.mu.Unlock()
		cancel()
		w.unlock(lock)
		_ = os.Remove(progressPath)
		return fmt.Errorf("job %s already running", jobID)
	}
	w.jobs[jobID] = cancel
	w.mu.Unlock()

	if ew, eh := EvenDimensions(p.Resolution); ew != p.Resolution.Width || eh != p.Resolution.Height {
		w.logger.Info("resolution adjusted to even size",
			zap.String("job_id", jobID),
			zap.Stringer("requested", p.Resolution),
			zap.Stringer("encoded", model.Resolution{Width: ew, Height: eh}),
		)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		comp := w.transcode(jobCtx, jobID, src.Path(), outPath, progressPath, p)
		// Unlock before publishing: the next job may reuse the output.
		w.unlock(lock)
		w.forget(jobID)
		cancel()
		w.emitter.Emit(progress.CompleteTopic(jobID), comp)
	}()
	return nil
}

// Cancel stops a running job. Its completion is still published, carrying
// the kill error.
func (w *Worker) Cancel(_ context.Context, jobID string) error {
	w.mu.Lock()
	cancel, ok := w.jobs[jobID]
	w.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, jobID)
	}
	cancel()
	return nil
}

// Close cancels every running job and waits for their goroutines.
func (w *Worker) Close() {
	w.mu.Lock()
	for _, cancel := range w.jobs {
		cancel()
	}
	w.mu.Unlock()
	w.wg.Wait()
}

func (w *Worker) transcode(ctx context.Context, jobID, inPath, outPath, progressPath string, p model.CompressionParameters) progress.Completion {
	log := w.logger.With(zap.String("job_id", jobID))
	args := BuildArgs(inPath, outPath, progressPath, p)

	var (
		state  ProgressState
		runErr error
	)
	ffDone := make(chan struct{})
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(ffDone)
		_, runErr = w.runner.Run(ctx, util.CmdSpec{Path: w.ffmpegPath, Args: args})
		return nil
	})
	g.Go(func() error {
		return Tail(gctx, progressPath, ffDone, func(line string) {
			if ev, ok := state.UpdateFromLine(line); ok {
				w.emitter.Emit(progress.StatsTopic(jobID), ev)
			}
		}, log)
	})
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Warn("progress tail failed", zap.String("path", progressPath), zap.Error(err))
	}

	comp := progress.Completion{JobID: jobID, Stats: state.Stats(), OutputPath: outPath}
	switch {
	case runErr != nil:
		comp.Err = runErr
	case ctx.Err() != nil:
		comp.Err = ctx.Err()
	default:
		size, err := util.FileSize(outPath)
		if err != nil {
			comp.Err = fmt.Errorf("output missing: %w", err)
		}
		comp.Bytes = size
	}
	if comp.Err != nil {
		_ = util.RemoveIfExists(outPath)
		log.Warn("ffmpeg failed", zap.Error(comp.Err))
	} else {
		log.Debug("ffmpeg finished", zap.Int64("bytes", comp.Bytes), zap.Bool("progress_end", state.Ended()))
	}

	if !w.keepProgress {
		if err := util.RemoveIfExists(progressPath); err != nil {
			log.Debug("remove progress file", zap.Error(err))
		}
	}
	return comp
}

func (w *Worker) forget(jobID string) {
	w.mu.Lock()
	delete(w.jobs, jobID)
	w.mu.Unlock()
}

func (w *Worker) unlock(lock *flock.Flock) {
	if err := lock.Unlock(); err != nil {
		w.logger.Debug("unlock output", zap.String("path", lock.Path()), zap.Error(err))
	}
	_ = os.Remove(lock.Path())
}
