package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"vidsqueeze/internal/config"
	"vidsqueeze/internal/model"
	"vidsqueeze/internal/params"
	"vidsqueeze/internal/progress"
	"vidsqueeze/internal/ui"
	"vidsqueeze/internal/util"
	"vidsqueeze/internal/util/format"
)

type runMode struct {
	ForceTUI bool
}

func newCompressCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "compress <file>",
		Short:         "Compress one video with the given size and preset",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExecute(cmd, args, runMode{ForceTUI: false})
		},
	}
	bindCompressFlags(cmd.Flags())
	return cmd
}

type runInputs struct {
	Path       string
	Preset     model.Preset
	Width      int
	Height     int
	WidthSet   bool
	HeightSet  bool
	AspectLock bool
	Crop       bool
	NoUI       bool
	Config     config.Config
}

func assembleRunInputs(cmd *cobra.Command, args []string) (runInputs, error) {
	cfg := configFrom(cmd)
	in := runInputs{Config: cfg, Preset: cfg.PresetValue()}
	if len(args) > 0 {
		in.Path = args[0]
	}

	fs := cmd.Flags()
	if s, _ := fs.GetString("preset"); s != "" {
		p, err := model.ParsePreset(s)
		if err != nil {
			return runInputs{}, fmt.Errorf("invalid --preset: %w", err)
		}
		in.Preset = p
	}

	in.Width, _ = fs.GetInt("width")
	in.Height, _ = fs.GetInt("height")
	in.WidthSet = fs.Changed("width")
	in.HeightSet = fs.Changed("height")
	if in.WidthSet && in.Width <= 0 {
		return runInputs{}, fmt.Errorf("invalid --width: %d (must be positive)", in.Width)
	}
	if in.HeightSet && in.Height <= 0 {
		return runInputs{}, fmt.Errorf("invalid --height: %d (must be positive)", in.Height)
	}

	noLock, _ := fs.GetBool("no-aspect-lock")
	in.AspectLock = !noLock
	in.Crop, _ = fs.GetBool("crop")
	if in.Crop && !in.AspectLock {
		return runInputs{}, fmt.Errorf("--crop needs the aspect lock; drop --no-aspect-lock")
	}
	in.NoUI, _ = fs.GetBool("no-ui")

	if fs.Changed("timeout") {
		d, _ := fs.GetDuration("timeout")
		if d <= 0 {
			return runInputs{}, fmt.Errorf("invalid --timeout: %s (must be positive)", d)
		}
		in.Config.Timeout = d
	}
	return in, nil
}

// applyFlags layers the command line choices over the probed form. When both
// dimensions are given they are taken as is.
func applyFlags(form *params.Model, in runInputs) error {
	form.SetPreset(in.Preset)
	form.SetAspectLock(in.AspectLock)
	switch {
	case in.WidthSet && in.HeightSet:
		form.SetAspectLock(false)
		if !form.SetWidth(float64(in.Width)) || !form.SetHeight(float64(in.Height)) {
			return fmt.Errorf("invalid size %dx%d", in.Width, in.Height)
		}
		form.SetAspectLock(in.AspectLock)
	case in.WidthSet:
		if !form.SetWidth(float64(in.Width)) {
			return fmt.Errorf("invalid --width: %d", in.Width)
		}
	case in.HeightSet:
		if !form.SetHeight(float64(in.Height)) {
			return fmt.Errorf("invalid --height: %d", in.Height)
		}
	}
	form.SetCrop(in.Crop && form.CropEnabled())
	return nil
}

func runExecute(cmd *cobra.Command, args []string, mode runMode) error {
	in, err := assembleRunInputs(cmd, args)
	if err != nil {
		return &ExitError{Code: ExitCLIError, Err: err}
	}

	// TUI path (forced or auto if TTY and not disabled)
	useTUI := mode.ForceTUI || (!in.NoUI && isTerminal())
	if !useTUI && in.Path == "" {
		return &ExitError{Code: ExitCLIError, Err: fmt.Errorf("a video file is required without the TUI")}
	}

	a, err := newApp(in.Config, appOptions{plain: !useTUI})
	if err != nil {
		return exitFor(err)
	}
	defer a.Close()

	if useTUI {
		// Size flags are not applied here: the TUI probes and the user edits.
		form := a.sess.Params()
		form.SetPreset(in.Preset)
		form.SetAspectLock(in.AspectLock)
		form.SetCrop(in.Crop)
		if err := ui.Run(cmd.Context(), a.sess, ui.Options{InitialPath: in.Path, Logger: a.logger}); err != nil {
			return exitFor(err)
		}
		return nil
	}
	return compressPlain(cmd, a, in)
}

func compressPlain(cmd *cobra.Command, a *app, in runInputs) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	stats, err := a.sess.SelectSource(ctx, in.Path)
	if err != nil {
		return exitFor(err)
	}
	if err := applyFlags(a.sess.Params(), in); err != nil {
		return &ExitError{Code: ExitCLIError, Err: err}
	}

	p := a.sess.Params().Snapshot()
	crop := ""
	if p.CropVideo {
		crop = ", cropped"
	}
	fmt.Fprintf(out, "Compressing %s: %dx%d -> %s, preset %s%s\n",
		a.sess.Source().Path(), stats.Width, stats.Height, p.Resolution, p.Preset, crop)

	start := time.Now()
	comp, err := a.sess.Run(ctx, func(ev progress.Event) {
		if pct := ev.Percent(stats.PacketCount); pct >= 0 {
			fmt.Fprintf(out, "%5.1f%%  %s\n", pct, ev)
			return
		}
		fmt.Fprintln(out, ev)
	})
	if err != nil {
		return exitFor(err)
	}
	size := format.HumanizeBytes(comp.Bytes)
	if before, err := util.FileSize(a.sess.Source().Path()); err == nil {
		if r := format.Reduction(before, comp.Bytes); r != "" {
			size += ", " + r
		}
	}
	fmt.Fprintf(out, "Saved: %s (%s) in %s\n", comp.OutputPath, size, time.Since(start).Round(time.Second))
	return nil
}

func isTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}
