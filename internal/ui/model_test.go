package ui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"vidsqueeze/internal/events"
	"vidsqueeze/internal/job"
	"vidsqueeze/internal/model"
	"vidsqueeze/internal/progress"
	"vidsqueeze/internal/session"
	"vidsqueeze/internal/source"
)

// stubBridge answers probes and finishes every job during Submit.
type stubBridge struct {
	bus     *events.Bus
	stats   model.VideoStats
	failJob error
	params  []model.CompressionParameters
}

func (b *stubBridge) Probe(context.Context, source.Media) ([]model.VideoStats, error) {
	return []model.VideoStats{b.stats}, nil
}

func (b *stubBridge) Submit(_ context.Context, jobID string, src source.Media, p model.CompressionParameters) error {
	b.params = append(b.params, p)
	b.bus.Emit(progress.StatsTopic(jobID), progress.Event{Frame: 12, FPS: 30})
	b.bus.Emit(progress.CompleteTopic(jobID), progress.Completion{
		JobID:      jobID,
		Stats:      progress.Event{Frame: 24, FPS: 30},
		OutputPath: "/videos/clip-output.mp4",
		Bytes:      2048,
		Err:        b.failJob,
	})
	return nil
}

func (b *stubBridge) Cancel(context.Context, string) error { return nil }

func newTestModel(t *testing.T, initialPath string) (Model, *stubBridge) {
	t.Helper()
	bus := events.NewBus()
	br := &stubBridge{bus: bus, stats: model.VideoStats{Width: 1280, Height: 720, BitRate: 4_000_000, PacketCount: 48}}
	ctrl := job.NewController(br, bus, job.WithIDGenerator(func() string { return "job-1" }))
	sess := session.New(ctrl, session.WithOpener(func(p string) (source.Media, error) {
		return source.New(p), nil
	}))
	m := NewModel(context.Background(), sess, Options{InitialPath: initialPath, StartDir: t.TempDir()})
	t.Cleanup(m.cancel)
	return m, br
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	return nm, cmd
}

func press(t *testing.T, m Model, keys ...tea.KeyMsg) Model {
	t.Helper()
	for _, k := range keys {
		m, _ = update(t, m, k)
	}
	return m
}

func runes(s string) []tea.KeyMsg {
	var out []tea.KeyMsg
	for _, r := range s {
		out = append(out, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return out
}

var (
	keyTab       = tea.KeyMsg{Type: tea.KeyTab}
	keyEnter     = tea.KeyMsg{Type: tea.KeyEnter}
	keyRight     = tea.KeyMsg{Type: tea.KeyRight}
	keySpace     = tea.KeyMsg{Type: tea.KeySpace}
	keyBackspace = tea.KeyMsg{Type: tea.KeyBackspace}
)

func probe(t *testing.T, m Model, path string) Model {
	t.Helper()
	msg := m.probeCmd(path)()
	m, _ = update(t, m, msg)
	return m
}

func TestModel_ProbeFillsForm(t *testing.T) {
	m, _ := newTestModel(t, "/videos/clip.mp4")
	if m.screen != screenProbing {
		t.Fatalf("screen = %v, want probing", m.screen)
	}
	m = probe(t, m, "/videos/clip.mp4")
	if m.screen != screenForm {
		t.Fatalf("screen = %v, want form", m.screen)
	}
	if m.width.Value() != "1280" || m.height.Value() != "720" {
		t.Errorf("inputs = %q x %q, want 1280 x 720", m.width.Value(), m.height.Value())
	}
	view := m.View()
	for _, want := range []string{"clip.mp4", "1280x720", "4.00 Mb/s", "‹Medium›"} {
		if !strings.Contains(view, want) {
			t.Errorf("View() missing %q:\n%s", want, view)
		}
	}
}

func TestModel_WidthEditKeepsAspect(t *testing.T) {
	m, _ := newTestModel(t, "/videos/clip.mp4")
	m = probe(t, m, "/videos/clip.mp4")

	m = press(t, m, keyBackspace, keyBackspace, keyBackspace, keyBackspace)
	m = press(t, m, runes("640")...)

	res := m.sess.Params().Resolution()
	if res != (model.Resolution{Width: 640, Height: 360}) {
		t.Errorf("resolution = %v, want 640x360", res)
	}
	if m.height.Value() != "360" {
		t.Errorf("height input = %q, want 360", m.height.Value())
	}
}

func TestModel_PresetAndToggles(t *testing.T) {
	m, _ := newTestModel(t, "/videos/clip.mp4")
	m = probe(t, m, "/videos/clip.mp4")

	m = press(t, m, keyTab, keyTab, keyRight)
	if got := m.sess.Params().Preset(); got != model.PresetSlow {
		t.Errorf("preset = %q, want slow", got)
	}
	m = press(t, m, keyRight)
	if got := m.sess.Params().Preset(); got != model.PresetUltrafast {
		t.Errorf("preset should wrap to ultrafast, got %q", got)
	}

	// Aspect lock off disables crop and focus skips it.
	m = press(t, m, keyTab, keySpace)
	if m.sess.Params().AspectLock() {
		t.Fatal("aspect lock still on")
	}
	m = press(t, m, keyTab)
	if m.focus != fieldStart {
		t.Errorf("focus = %v, want start (crop skipped)", m.focus)
	}
}

func TestModel_SubmitWithoutSource(t *testing.T) {
	m, _ := newTestModel(t, "")
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.screen != screenForm {
		t.Fatalf("esc in picker should show the form, screen = %v", m.screen)
	}
	m.focus = fieldStart
	m, cmd := update(t, m, keyEnter)
	if cmd != nil {
		t.Error("no job should start without a source")
	}
	if !errors.Is(m.err, job.ErrMissingSource) {
		t.Errorf("err = %v, want ErrMissingSource", m.err)
	}
}

func runJob(t *testing.T, m Model) Model {
	t.Helper()
	m.focus = fieldStart
	m, cmd := update(t, m, keyEnter)
	if m.screen != screenRunning || cmd == nil {
		t.Fatalf("screen = %v, cmd = %v", m.screen, cmd)
	}
	m, cmd = update(t, m, cmd())
	if cmd == nil {
		t.Fatalf("job did not start: %v", m.err)
	}
	m, _ = update(t, m, cmd())
	return m
}

func TestModel_RunJob(t *testing.T) {
	m, br := newTestModel(t, "/videos/clip.mp4")
	m = probe(t, m, "/videos/clip.mp4")
	m = runJob(t, m)

	if m.screen != screenDone {
		t.Fatalf("screen = %v, want done", m.screen)
	}
	if m.Err() != nil {
		t.Errorf("Err() = %v", m.Err())
	}
	if len(br.params) != 1 || br.params[0].Resolution != (model.Resolution{Width: 1280, Height: 720}) {
		t.Errorf("submitted params = %+v", br.params)
	}
	if !strings.Contains(m.View(), "clip-output.mp4 (2.0 KB)") {
		t.Errorf("View() = %s", m.View())
	}
}

func TestModel_RunJobFailure(t *testing.T) {
	m, br := newTestModel(t, "/videos/clip.mp4")
	br.failJob = errors.New("exit status 1")
	m = probe(t, m, "/videos/clip.mp4")
	m = runJob(t, m)

	if !errors.Is(m.Err(), job.ErrTranscode) {
		t.Errorf("Err() = %v, want ErrTranscode", m.Err())
	}
	if !strings.Contains(m.View(), "exit status 1") {
		t.Errorf("View() = %s", m.View())
	}
}
