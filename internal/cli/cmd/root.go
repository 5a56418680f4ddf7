package cmd

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"vidsqueeze/internal/config"
	"vidsqueeze/internal/job"
)

const (
	ExitOK             = 0
	ExitCLIError       = 1
	ExitMissingDep     = 2
	ExitProbeError     = 3
	ExitTranscodeError = 4
)

// ExitError wraps an error with a process exit code.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// exitFor maps job errors to exit codes.
func exitFor(err error) *ExitError {
	var ee *ExitError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &ee):
		return ee
	case errors.Is(err, job.ErrProbe):
		return &ExitError{Code: ExitProbeError, Err: err}
	case errors.Is(err, job.ErrSubmission),
		errors.Is(err, job.ErrTranscode),
		errors.Is(err, job.ErrStalledJob),
		errors.Is(err, job.ErrCancelled):
		return &ExitError{Code: ExitTranscodeError, Err: err}
	default:
		return &ExitError{Code: ExitCLIError, Err: err}
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "vidsqueeze [file]",
		Short: "Shrink a video to a chosen size and x264 preset",
		Long: "vidsqueeze re-encodes a local video with ffmpeg. Pick a file, adjust the target " +
			"resolution (aspect ratio locked by default, optional crop) and the x264 preset, " +
			"and follow the progress until the compressed copy is saved next to the original.",
		SilenceUsage:      true,
		SilenceErrors:     true,
		Args:              cobra.MaximumNArgs(1),
		PersistentPreRunE: loadConfig,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExecute(cmd, args, runMode{ForceTUI: false})
		},
	}

	// Persistent flags available to all subcommands
	root.PersistentFlags().BoolP("verbose", "v", false, "Log subprocess commands and output")
	root.PersistentFlags().String("ffmpeg", "", "Path to the ffmpeg binary")
	root.PersistentFlags().String("ffprobe", "", "Path to the ffprobe binary")
	root.PersistentFlags().Bool("keep-progress", false, "Keep ffmpeg progress files in the state directory")
	root.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn, error")
	root.PersistentFlags().String("log-format", "console", "Log format: console, json")

	// Compression flags also live on root, so `vidsqueeze <file> --width 720` works.
	bindCompressFlags(root.Flags())

	// Subcommands
	root.AddCommand(newCompressCmd())
	root.AddCommand(newProbeCmd())
	root.AddCommand(newTuiCmd())
	root.AddCommand(newDoctorCmd())
	root.AddCommand(newCompletionCmd())

	return root
}

func bindCompressFlags(fs *pflag.FlagSet) {
	fs.String("preset", "", "x264 preset: ultrafast, fast, medium, slow (default from config, else medium)")
	fs.Int("width", 0, "Target width in px; 0 keeps the probed width")
	fs.Int("height", 0, "Target height in px; 0 keeps the probed height")
	fs.Bool("no-aspect-lock", false, "Let width and height change independently")
	fs.Bool("crop", false, "Scale to cover the target size and crop the overflow (needs aspect lock)")
	fs.Duration("timeout", 0, "Abort when ffmpeg reports no progress for this long (default from config, else 5m)")
	fs.Bool("no-ui", false, "Disable TUI; use plain textual output")
}

type ctxKey string

const configKey ctxKey = "config"

// loadConfig resolves flags, env and config file once per invocation.
func loadConfig(cmd *cobra.Command, _ []string) error {
	if err := config.Init(cmd.Root()); err != nil {
		return &ExitError{Code: ExitCLIError, Err: err}
	}
	cfg, err := config.Load()
	if err != nil {
		return &ExitError{Code: ExitCLIError, Err: err}
	}
	cmd.SetContext(context.WithValue(cmd.Context(), configKey, cfg))
	return nil
}

func configFrom(cmd *cobra.Command) config.Config {
	if ctx := cmd.Context(); ctx != nil {
		if v, ok := ctx.Value(configKey).(config.Config); ok {
			return v
		}
	}
	cfg := config.Config{}
	_ = cfg.Validate()
	return cfg
}

// Execute runs the CLI with the provided context.
func Execute(ctx context.Context) error {
	root := newRootCmd()
	return root.ExecuteContext(ctx)
}
