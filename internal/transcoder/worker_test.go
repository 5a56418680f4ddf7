package transcoder

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"vidsqueeze/internal/events"
	"vidsqueeze/internal/model"
	"vidsqueeze/internal/progress"
	"vidsqueeze/internal/source"
	"vidsqueeze/internal/util"
)

// fakeRunner stands in for ffmpeg and ffprobe.
type fakeRunner struct {
	mu    sync.Mutex
	specs []util.CmdSpec

	probeOut string
	progress []string // written to the -progress file by "ffmpeg"
	ffmpeg   error
	block    bool // block until ctx is cancelled
	started  chan struct{}
}

func (f *fakeRunner) Run(ctx context.Context, spec util.CmdSpec) (util.CmdResult, error) {
	f.mu.Lock()
	f.specs = append(f.specs, spec)
	f.mu.Unlock()

	switch {
	case strings.HasSuffix(spec.Path, "ffprobe"):
		return util.CmdResult{Stdout: []byte(f.probeOut)}, nil
	case len(spec.Args) == 1 && spec.Args[0] == "-version":
		return util.CmdResult{Stdout: []byte("ffmpeg version 6.1 Copyright (c)\nbuilt with gcc\n")}, nil
	}

	if f.started != nil {
		close(f.started)
	}
	if path := argAfter(spec.Args, "-progress"); path != "" && len(f.progress) > 0 {
		if err := os.WriteFile(path, []byte(strings.Join(f.progress, "\n")+"\n"), 0o644); err != nil {
			return util.CmdResult{Code: -1}, err
		}
	}
	if f.block {
		<-ctx.Done()
		return util.CmdResult{Code: -1}, ctx.Err()
	}
	if f.ffmpeg != nil {
		return util.CmdResult{Code: 1}, f.ffmpeg
	}
	out := spec.Args[len(spec.Args)-1]
	if err := os.WriteFile(out, []byte("0123456789"), 0o644); err != nil {
		return util.CmdResult{Code: -1}, err
	}
	return util.CmdResult{}, nil
}

func (f *fakeRunner) ffmpegSpec(t *testing.T) util.CmdSpec {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.specs {
		if strings.HasSuffix(s.Path, "ffmpeg") && argAfter(s.Args, "-i") != "" {
			return s
		}
	}
	t.Fatal("ffmpeg was not run")
	return util.CmdSpec{}
}

func argAfter(args []string, flag string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

type workerHarness struct {
	bus    *events.Bus
	runner *fakeRunner
	worker *Worker
	dir    string
	src    source.Media
}

func newWorkerHarness(t *testing.T, r *fakeRunner, opts ...Option) *workerHarness {
	t.Helper()
	dir := t.TempDir()
	bus := events.NewBus()
	opts = append([]Option{
		WithFFmpegPath("/usr/bin/ffmpeg"),
		WithFFprobePath("/usr/bin/ffprobe"),
		WithProgressDir(filepath.Join(dir, "progress")),
		WithRunner(r),
	}, opts...)
	w := NewWorker(bus, opts...)
	t.Cleanup(w.Close)
	return &workerHarness{
		bus:    bus,
		runner: r,
		worker: w,
		dir:    dir,
		src:    source.New(filepath.Join(dir, "clip.mov")),
	}
}

var testParams = model.CompressionParameters{
	Resolution: model.Resolution{Width: 1280, Height: 720},
	Preset:     model.PresetFast,
}

func TestWorker_SubmitPublishesProgressAndCompletion(t *testing.T) {
	r := &fakeRunner{
		progress: []string{
			"frame=10", "fps=30.0", "out_time_ms=333000", "progress=continue",
			"frame=30", "fps=30.0", "out_time_ms=1000000", "progress=end",
		},
	}
	h := newWorkerHarness(t, r)

	var (
		mu    sync.Mutex
		stats []progress.Event
	)
	stop := h.bus.Listen(progress.StatsTopic("job-1"), func(ev events.Event) {
		mu.Lock()
		stats = append(stats, ev.Payload.(progress.Event))
		mu.Unlock()
	})
	defer stop()
	done, stopDone := h.bus.Once(progress.CompleteTopic("job-1"))
	defer stopDone()

	if err := h.worker.Submit(context.Background(), "job-1", h.src, testParams); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	var comp progress.Completion
	select {
	case ev := <-done:
		comp = ev.Payload.(progress.Completion)
	case <-time.After(5 * time.Second):
		t.Fatal("no completion published")
	}

	if comp.Err != nil {
		t.Fatalf("completion error = %v", comp.Err)
	}
	wantOut := filepath.Join(h.dir, "clip-output.mp4")
	if comp.OutputPath != wantOut {
		t.Errorf("OutputPath = %q, want %q", comp.OutputPath, wantOut)
	}
	if comp.Bytes != 10 {
		t.Errorf("Bytes = %d, want 10", comp.Bytes)
	}
	if comp.Stats.Frame != 30 {
		t.Errorf("Stats.Frame = %d, want 30", comp.Stats.Frame)
	}

	mu.Lock()
	if len(stats) != 2 || stats[0].Frame != 10 || stats[1].Frame != 30 {
		t.Errorf("stats = %+v", stats)
	}
	mu.Unlock()

	spec := r.ffmpegSpec(t)
	if got := argAfter(spec.Args, "-preset"); got != "fast" {
		t.Errorf("-preset %q", got)
	}
	progressPath := argAfter(spec.Args, "-progress")
	if !strings.HasPrefix(filepath.Base(progressPath), "ffmpeg-progress-") {
		t.Errorf("progress path = %q", progressPath)
	}
	if _, err := os.Stat(progressPath); !os.IsNotExist(err) {
		t.Errorf("progress file should be removed, stat err = %v", err)
	}

	// The output lock is free again.
	lock := flock.New(wantOut + ".lock")
	ok, err := lock.TryLock()
	if err != nil || !ok {
		t.Errorf("output lock still held: ok=%v err=%v", ok, err)
	}
	_ = lock.Unlock()
}

func TestWorker_SubmitLogsEvenAdjustment(t *testing.T) {
	tests := []struct {
		name    string
		res     model.Resolution
		encoded string
	}{
		{name: "odd size", res: model.Resolution{Width: 1281, Height: 721}, encoded: "1280x720"},
		{name: "even size", res: model.Resolution{Width: 1280, Height: 720}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.InfoLevel)
			h := newWorkerHarness(t, &fakeRunner{progress: []string{"frame=1", "progress=end"}}, WithLogger(zap.New(core)))
			done, stop := h.bus.Once(progress.CompleteTopic("job-1"))
			defer stop()

			p := testParams
			p.Resolution = tt.res
			if err := h.worker.Submit(context.Background(), "job-1", h.src, p); err != nil {
				t.Fatalf("Submit() error = %v", err)
			}
			select {
			case <-done:
			case <-time.After(5 * time.Second):
				t.Fatal("no completion published")
			}

			entries := logs.FilterMessage("resolution adjusted to even size").All()
			if tt.encoded == "" {
				if len(entries) != 0 {
					t.Errorf("unexpected adjustment log: %v", entries)
				}
				return
			}
			if len(entries) != 1 {
				t.Fatalf("adjustment logs = %d, want 1", len(entries))
			}
			fields := entries[0].ContextMap()
			if fields["requested"] != tt.res.String() || fields["encoded"] != tt.encoded {
				t.Errorf("fields = %v, want requested=%s encoded=%s", fields, tt.res, tt.encoded)
			}
		})
	}
}

func TestWorker_KeepProgress(t *testing.T) {
	r := &fakeRunner{progress: []string{"frame=1", "progress=end"}}
	h := newWorkerHarness(t, r, WithKeepProgress(true))
	done, stop := h.bus.Once(progress.CompleteTopic("job-1"))
	defer stop()
	if err := h.worker.Submit(context.Background(), "job-1", h.src, testParams); err != nil {
		t.Fatal(err)
	}
	<-done
	path := argAfter(r.ffmpegSpec(t).Args, "-progress")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("progress file should be kept: %v", err)
	}
	if !strings.Contains(string(data), "progress=end") {
		t.Errorf("progress file = %q", data)
	}
}

func TestWorker_FFmpegFailure(t *testing.T) {
	r := &fakeRunner{ffmpeg: errors.New("exit status 1: Invalid argument")}
	h := newWorkerHarness(t, r)
	done, stop := h.bus.Once(progress.CompleteTopic("job-1"))
	defer stop()
	if err := h.worker.Submit(context.Background(), "job-1", h.src, testParams); err != nil {
		t.Fatal(err)
	}
	comp := (<-done).Payload.(progress.Completion)
	if comp.Err == nil || !strings.Contains(comp.Err.Error(), "Invalid argument") {
		t.Errorf("completion error = %v", comp.Err)
	}
	if comp.Bytes != 0 {
		t.Errorf("Bytes = %d", comp.Bytes)
	}
}

func TestWorker_Cancel(t *testing.T) {
	r := &fakeRunner{block: true, started: make(chan struct{})}
	h := newWorkerHarness(t, r)
	done, stop := h.bus.Once(progress.CompleteTopic("job-1"))
	defer stop()
	if err := h.worker.Submit(context.Background(), "job-1", h.src, testParams); err != nil {
		t.Fatal(err)
	}
	<-r.started
	if err := h.worker.Cancel(context.Background(), "job-1"); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	comp := (<-done).Payload.(progress.Completion)
	if !errors.Is(comp.Err, context.Canceled) {
		t.Errorf("completion error = %v, want context.Canceled", comp.Err)
	}

	// Cancel after the job ended.
	deadline := time.Now().Add(2 * time.Second)
	for {
		err := h.worker.Cancel(context.Background(), "job-1")
		if errors.Is(err, ErrUnknownJob) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("Cancel() after completion = %v, want ErrUnknownJob", err)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWorker_SubmitRejects(t *testing.T) {
	tests := []struct {
		name   string
		opts   []Option
		src    func(h *workerHarness) source.Media
		params model.CompressionParameters
		want   string
	}{
		{
			name:   "no source",
			src:    func(*workerHarness) source.Media { return source.Media{} },
			params: testParams,
			want:   "no source",
		},
		{
			name:   "bad resolution",
			params: model.CompressionParameters{Resolution: model.Resolution{Width: 0, Height: 720}, Preset: model.PresetFast},
			want:   "invalid resolution",
		},
		{
			name:   "bad preset",
			params: model.CompressionParameters{Resolution: model.Resolution{Width: 10, Height: 10}, Preset: "veryslow"},
			want:   "invalid preset",
		},
		{
			name:   "no ffmpeg",
			opts:   []Option{WithFFmpegPath("")},
			params: testParams,
			want:   "ffmpeg path",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newWorkerHarness(t, &fakeRunner{}, tt.opts...)
			src := h.src
			if tt.src != nil {
				src = tt.src(h)
			}
			err := h.worker.Submit(context.Background(), "job-1", src, tt.params)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Submit() error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestWorker_OutputBusy(t *testing.T) {
	h := newWorkerHarness(t, &fakeRunner{})
	lock := flock.New(filepath.Join(h.dir, "clip-output.mp4.lock"))
	if ok, err := lock.TryLock(); err != nil || !ok {
		t.Fatalf("TryLock: ok=%v err=%v", ok, err)
	}
	defer lock.Unlock()

	err := h.worker.Submit(context.Background(), "job-1", h.src, testParams)
	if !errors.Is(err, ErrOutputBusy) {
		t.Fatalf("Submit() error = %v, want ErrOutputBusy", err)
	}
	entries, _ := os.ReadDir(filepath.Join(h.dir, "progress"))
	if len(entries) != 0 {
		t.Errorf("progress dir not cleaned: %v", entries)
	}
}

func TestWorker_ProbeAndVersion(t *testing.T) {
	r := &fakeRunner{probeOut: `{"streams":[{"width":1920,"height":800,"bit_rate":"8000000","nb_read_packets":"1440"}]}`}
	h := newWorkerHarness(t, r)

	stats, err := h.worker.Probe(context.Background(), h.src)
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	want := model.VideoStats{Width: 1920, Height: 800, BitRate: 8000000, PacketCount: 1440}
	if len(stats) != 1 || stats[0] != want {
		t.Errorf("Probe() = %+v, want %+v", stats, want)
	}

	v, err := h.worker.Version(context.Background())
	if err != nil {
		t.Fatalf("Version() error = %v", err)
	}
	if v != "ffmpeg version 6.1 Copyright (c)" {
		t.Errorf("Version() = %q", v)
	}
}
