package cmd

import (
	"go.uber.org/zap"

	"vidsqueeze/internal/config"
	"vidsqueeze/internal/dirs"
	"vidsqueeze/internal/events"
	"vidsqueeze/internal/job"
	"vidsqueeze/internal/logging"
	"vidsqueeze/internal/session"
	"vidsqueeze/internal/transcoder"
	"vidsqueeze/internal/util"
	"vidsqueeze/internal/util/deps"
)

// app holds the wired components for one invocation.
type app struct {
	cfg    config.Config
	logger *zap.Logger
	worker *transcoder.Worker
	ctrl   *job.Controller
	sess   *session.Session
}

type appOptions struct {
	// plain adds stderr to the log outputs; the TUI owns the terminal otherwise.
	plain bool
	// probeOnly skips the ffmpeg lookup.
	probeOnly bool
}

func newApp(cfg config.Config, opts appOptions) (*app, error) {
	var ffmpegPath string
	if !opts.probeOnly {
		p, err := deps.FindFFmpeg(cfg.FFmpegPath)
		if err != nil {
			return nil, &ExitError{Code: ExitMissingDep, Err: err}
		}
		ffmpegPath = p
	}
	ffprobePath, err := deps.FindFFprobe(cfg.FFprobePath)
	if err != nil {
		return nil, &ExitError{Code: ExitMissingDep, Err: err}
	}

	logger := newLogger(cfg, opts.plain)
	progressDir, err := dirs.ProgressDir()
	if err != nil {
		logger.Warn("no state directory, progress files go to the temp dir", zap.Error(err))
		progressDir = ""
	}

	bus := events.NewBus()
	runner := &util.ExecRunner{Logger: logger.Named("exec"), Verbose: cfg.Verbose}
	worker := transcoder.NewWorker(bus,
		transcoder.WithFFmpegPath(ffmpegPath),
		transcoder.WithFFprobePath(ffprobePath),
		transcoder.WithProgressDir(progressDir),
		transcoder.WithKeepProgress(cfg.KeepProgress),
		transcoder.WithRunner(runner),
		transcoder.WithLogger(logger.Named("transcoder")),
	)
	ctrl := job.NewController(worker, bus,
		job.WithTimeout(cfg.Timeout),
		job.WithLogger(logger.Named("job")),
	)
	return &app{
		cfg:    cfg,
		logger: logger,
		worker: worker,
		ctrl:   ctrl,
		sess:   session.New(ctrl, session.WithLogger(logger.Named("session"))),
	}, nil
}

// Close stops any running transcode and flushes logs.
func (a *app) Close() {
	a.worker.Close()
	_ = a.logger.Sync()
}

// newLogger logs to the state log file, and to stderr in plain mode. A
// logger that cannot be built degrades to stderr or nothing.
func newLogger(cfg config.Config, plain bool) *zap.Logger {
	var outputs []string
	if path, err := dirs.LogPath(); err == nil {
		outputs = append(outputs, path)
	}
	if plain {
		outputs = append(outputs, "stderr")
	}
	if len(outputs) == 0 {
		return zap.NewNop()
	}
	logger, err := logging.New(logging.Options{
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
		OutputPaths: outputs,
	})
	if err != nil {
		if !plain {
			return zap.NewNop()
		}
		fallback, ferr := logging.New(logging.Options{Level: "info", OutputPaths: []string{"stderr"}})
		if ferr != nil {
			return zap.NewNop()
		}
		fallback.Warn("logger config rejected, using defaults", zap.Error(err))
		return fallback
	}
	return logger
}
