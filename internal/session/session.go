// Package session ties the selected source, the parameter form and the job
// controller together for one front end.
package session

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"vidsqueeze/internal/job"
	"vidsqueeze/internal/model"
	"vidsqueeze/internal/params"
	"vidsqueeze/internal/progress"
	"vidsqueeze/internal/source"
)

// Session is owned by a single front end goroutine.
type Session struct {
	ctrl   *job.Controller
	form   *params.Model
	logger *zap.Logger
	open   func(string) (source.Media, error)

	src   source.Media
	stats model.VideoStats
}

// Option configures a Session.
type Option func(*Session)

// WithLogger attaches a logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithOpener replaces the source resolver (useful for testing).
func WithOpener(f func(string) (source.Media, error)) Option {
	return func(s *Session) {
		if f != nil {
			s.open = f
		}
	}
}

// WithParams seeds the form instead of using params.New.
func WithParams(m *params.Model) Option {
	return func(s *Session) {
		if m != nil {
			s.form = m
		}
	}
}

// New creates a Session over ctrl.
func New(ctrl *job.Controller, opts ...Option) *Session {
	s := &Session{
		ctrl:   ctrl,
		form:   params.New(),
		logger: zap.NewNop(),
		open:   source.Open,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Params exposes the form for editing.
func (s *Session) Params() *params.Model { return s.form }

// Source returns the selected media; zero when none.
func (s *Session) Source() source.Media { return s.src }

// Stats returns the probed stats of the selected source.
func (s *Session) Stats() model.VideoStats { return s.stats }

// Controller returns the underlying job controller.
func (s *Session) Controller() *job.Controller { return s.ctrl }

// SelectSource resolves path, probes it and, on success, makes it the
// selected media. Any failure is reported as job.ErrProbe and leaves the
// previous selection, stats and resolution in place.
func (s *Session) SelectSource(ctx context.Context, path string) (model.VideoStats, error) {
	m, err := s.open(path)
	if err != nil {
		s.logger.Warn("open source failed", zap.String("path", path), zap.Error(err))
		return model.VideoStats{}, fmt.Errorf("%w: %v", job.ErrProbe, err)
	}

	streams, err := s.ctrl.Probe(ctx, m)
	if err != nil {
		s.logger.Warn("probe failed", zap.String("source", m.Path()), zap.Error(err))
		return model.VideoStats{}, err
	}
	first := streams[0]
	if err := s.form.SetResolutionFromProbe(first); err != nil {
		return model.VideoStats{}, fmt.Errorf("%w: %v", job.ErrProbe, err)
	}
	s.src = m
	s.stats = first
	s.logger.Info("source probed",
		zap.String("source", m.Path()),
		zap.Int("width", first.Width),
		zap.Int("height", first.Height),
		zap.Int64("bit_rate", first.BitRate),
		zap.Int64("packets", first.PacketCount),
	)
	return first, nil
}

// Submit starts a job with the current form snapshot.
func (s *Session) Submit(ctx context.Context, onProgress func(progress.Event)) (*job.Handle, error) {
	return s.ctrl.Submit(ctx, s.src, s.form.Snapshot(), onProgress)
}

// Run starts a job and waits for it.
func (s *Session) Run(ctx context.Context, onProgress func(progress.Event)) (progress.Completion, error) {
	return s.ctrl.Run(ctx, s.src, s.form.Snapshot(), onProgress)
}
