package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"vidsqueeze/internal/dirs"
	"vidsqueeze/internal/util/deps"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:           "doctor",
		Short:         "Diagnose external dependencies (ffmpeg, ffprobe)",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := configFrom(cmd)
			out := cmd.OutOrStdout()

			ff, ferr := deps.FindFFmpeg(cfg.FFmpegPath)
			if ferr != nil {
				return &ExitError{Code: ExitMissingDep, Err: ferr}
			}
			fp, perr := deps.FindFFprobe(cfg.FFprobePath)
			if perr != nil {
				return &ExitError{Code: ExitMissingDep, Err: perr}
			}

			a, err := newApp(cfg, appOptions{plain: true})
			if err != nil {
				return exitFor(err)
			}
			defer a.Close()
			version, verr := a.worker.Version(cmd.Context())
			if verr != nil {
				return &ExitError{Code: ExitMissingDep, Err: fmt.Errorf("ffmpeg -version: %w", verr)}
			}

			fmt.Fprintf(out, "FFmpeg:    %s\n", ff)
			fmt.Fprintf(out, "FFprobe:   %s\n", fp)
			fmt.Fprintf(out, "Version:   %s\n", version)
			if used := viper.ConfigFileUsed(); used != "" {
				fmt.Fprintf(out, "Config:    %s\n", used)
			}
			if p, err := dirs.LogPath(); err == nil {
				fmt.Fprintf(out, "Log file:  %s\n", p)
			}
			return nil
		},
	}
}
