package ui

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/key"
	bubblesprogress "github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"vidsqueeze/internal/job"
	"vidsqueeze/internal/model"
	"vidsqueeze/internal/params"
	"vidsqueeze/internal/progress"
	"vidsqueeze/internal/session"
	"vidsqueeze/internal/source"
)

type screen int

const (
	screenPick screen = iota
	screenProbing
	screenForm
	screenRunning
	screenDone
)

type field int

const (
	fieldWidth field = iota
	fieldHeight
	fieldPreset
	fieldAspectLock
	fieldCrop
	fieldStart
	fieldCount
)

// Options configures the TUI.
type Options struct {
	// InitialPath skips the file picker and probes this file first.
	InitialPath string
	// StartDir is where the file picker opens; defaults to the working directory.
	StartDir string
	Logger   *zap.Logger
}

type Model struct {
	ctx    context.Context
	cancel context.CancelFunc
	sess   *session.Session
	logger *zap.Logger

	screen screen
	focus  field
	picker filepicker.Model
	width  textinput.Model
	height textinput.Model
	bar    bubblesprogress.Model
	spin   spinner.Model
	styles Styles

	initialPath string
	status      string
	err         error
	stats       model.VideoStats
	last        progress.Event
	handle      *job.Handle
	result      *progress.Completion

	// Progress callbacks feed tea messages through here.
	eventCh chan tea.Msg
}

func NewModel(ctx context.Context, sess *session.Session, opts Options) Model {
	c, cancel := context.WithCancel(ctx)
	sty := defaultStyles()

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	fp := filepicker.New()
	fp.AllowedTypes = source.VideoExtensions
	fp.CurrentDirectory = opts.StartDir
	if fp.CurrentDirectory == "" {
		if wd, err := os.Getwd(); err == nil {
			fp.CurrentDirectory = wd
		}
	}
	fp.Height = 12
	// Escape leaves the picker with no selection.
	fp.KeyMap.Back = key.NewBinding(key.WithKeys("h", "backspace", "left"), key.WithHelp("h", "back"))

	sp := spinner.New()
	sp.Style = sty.Spinner

	m := Model{
		ctx:         c,
		cancel:      cancel,
		sess:        sess,
		logger:      logger,
		screen:      screenPick,
		picker:      fp,
		width:       newDimensionInput("width"),
		height:      newDimensionInput("height"),
		bar:         bubblesprogress.New(bubblesprogress.WithDefaultGradient(), bubblesprogress.WithWidth(40)),
		spin:        sp,
		styles:      sty,
		initialPath: opts.InitialPath,
		eventCh:     make(chan tea.Msg, 256),
	}
	if m.initialPath != "" {
		m.screen = screenProbing
		m.status = "Probing " + filepath.Base(m.initialPath)
	}
	m.syncInputs()
	return m
}

func newDimensionInput(placeholder string) textinput.Model {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.CharLimit = 5
	ti.Width = 6
	ti.Prompt = ""
	return ti
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spin.Tick, m.listenEventsCmd()}
	if m.initialPath != "" {
		cmds = append(cmds, m.probeCmd(m.initialPath))
	} else {
		cmds = append(cmds, m.picker.Init())
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if w := msg.Width - 20; w > 10 && w < 60 {
			m.bar.Width = w
		}
		if m.screen == screenPick {
			var cmd tea.Cmd
			m.picker, cmd = m.picker.Update(msg)
			return m, cmd
		}
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m.quit()
		}
		switch m.screen {
		case screenPick:
			return m.updatePicker(msg)
		case screenForm:
			return m.updateForm(msg)
		case screenRunning:
			switch msg.String() {
			case "esc", "x":
				if m.handle != nil {
					m.handle.Cancel()
					m.status = "Cancelling…"
				}
			}
			return m, nil
		case screenDone:
			switch msg.String() {
			case "q", "esc":
				return m.quit()
			case "o":
				return m.openPicker()
			case "enter":
				m.screen = screenForm
				m.err = nil
				m.status = ""
				cmd := m.setFocus(fieldWidth)
				return m, cmd
			}
		}
		return m, nil

	case probedMsg:
		m.screen = screenForm
		m.err = msg.Err
		if msg.Err != nil {
			m.status = "Could not load " + filepath.Base(msg.Path)
		} else {
			m.stats = msg.Stats
			m.status = "Loaded " + filepath.Base(msg.Path)
		}
		m.syncInputs()
		cmd := m.setFocus(fieldWidth)
		return m, cmd

	case jobStartedMsg:
		if msg.Err != nil {
			m.screen = screenForm
			m.err = msg.Err
			m.status = "Submission failed"
			return m, nil
		}
		m.handle = msg.Handle
		m.status = "Compressing " + filepath.Base(m.sess.Source().Path())
		return m, m.waitCmd(msg.Handle)

	case jobProgressMsg:
		if m.screen == screenRunning {
			m.last = msg.Event
		}
		return m, m.listenEventsCmd()

	case jobDoneMsg:
		m.handle = nil
		m.screen = screenDone
		m.err = msg.Err
		comp := msg.Completion
		m.result = &comp
		if msg.Err == nil {
			m.last = comp.Stats
		}
		return m, nil

	case closedMsg:
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	if m.screen == screenPick {
		var cmd tea.Cmd
		m.picker, cmd = m.picker.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) updatePicker(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "esc" {
		m.screen = screenForm
		if m.sess.Source().IsZero() {
			m.status = "No file selected"
		}
		cmd := m.setFocus(fieldWidth)
		return m, cmd
	}
	var cmd tea.Cmd
	m.picker, cmd = m.picker.Update(msg)
	if ok, path := m.picker.DidSelectFile(msg); ok {
		m.screen = screenProbing
		m.err = nil
		m.status = "Probing " + filepath.Base(path)
		return m, tea.Batch(cmd, m.probeCmd(path))
	}
	if ok, path := m.picker.DidSelectDisabledFile(msg); ok {
		m.status = filepath.Base(path) + " is not a supported video"
	}
	return m, cmd
}

func (m Model) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	form := m.sess.Params()
	k := msg.String()

	switch k {
	case "tab", "down":
		cmd := m.setFocus(m.nextField(1))
		return m, cmd
	case "shift+tab", "up":
		cmd := m.setFocus(m.nextField(-1))
		return m, cmd
	case "ctrl+o":
		return m.openPicker()
	case "esc":
		return m.quit()
	case "enter":
		if m.focus == fieldStart {
			return m.submit()
		}
		cmd := m.setFocus(m.nextField(1))
		return m, cmd
	}

	switch m.focus {
	case fieldWidth, fieldHeight:
		var cmd tea.Cmd
		if m.focus == fieldWidth {
			m.width, cmd = m.width.Update(msg)
			if form.SetWidth(params.ParseDimension(m.width.Value())) {
				m.err = nil
			}
		} else {
			m.height, cmd = m.height.Update(msg)
			if form.SetHeight(params.ParseDimension(m.height.Value())) {
				m.err = nil
			}
		}
		m.syncInputs()
		return m, cmd
	case fieldPreset:
		switch k {
		case "left", "h":
			form.SetPreset(cyclePreset(form.Preset(), -1))
		case "right", "l", " ":
			form.SetPreset(cyclePreset(form.Preset(), 1))
		}
	case fieldAspectLock:
		if k == " " || k == "left" || k == "right" {
			form.SetAspectLock(!form.AspectLock())
		}
	case fieldCrop:
		if (k == " " || k == "left" || k == "right") && form.CropEnabled() {
			form.SetCrop(!form.Crop())
		}
	case fieldStart:
		if k == " " {
			return m.submit()
		}
	}
	if k == "q" {
		return m.quit()
	}
	return m, nil
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	if m.sess.Source().IsZero() {
		m.err = job.ErrMissingSource
		m.status = "Pick a file first (ctrl+o)"
		return m, nil
	}
	res := m.sess.Params().Resolution()
	if !m.inputMatches(m.width, res.Width) || !m.inputMatches(m.height, res.Height) {
		m.err = fmt.Errorf("invalid size %q x %q", m.width.Value(), m.height.Value())
		m.status = "Width and height must be positive numbers"
		return m, nil
	}
	m.screen = screenRunning
	m.err = nil
	m.result = nil
	m.last = progress.Event{}
	m.status = "Submitting…"
	m.width.Blur()
	m.height.Blur()
	return m, m.startCmd()
}

func (m Model) openPicker() (tea.Model, tea.Cmd) {
	m.screen = screenPick
	m.status = ""
	m.width.Blur()
	m.height.Blur()
	return m, m.picker.Init()
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	if m.handle != nil {
		m.handle.Cancel()
	}
	m.cancel()
	return m, tea.Quit
}

// nextField moves focus by dir, skipping crop while it is disabled.
func (m Model) nextField(dir int) field {
	f := m.focus
	for i := 0; i < int(fieldCount); i++ {
		f = field((int(f) + dir + int(fieldCount)) % int(fieldCount))
		if f == fieldCrop && !m.sess.Params().CropEnabled() {
			continue
		}
		return f
	}
	return m.focus
}

func (m *Model) setFocus(f field) tea.Cmd {
	m.focus = f
	m.width.Blur()
	m.height.Blur()
	m.syncInputs()
	switch f {
	case fieldWidth:
		return m.width.Focus()
	case fieldHeight:
		return m.height.Focus()
	}
	return nil
}

// syncInputs copies the form's resolution into the inputs, leaving the one
// being edited alone.
func (m *Model) syncInputs() {
	res := m.sess.Params().Resolution()
	if !(m.focus == fieldWidth && m.width.Focused()) {
		m.width.SetValue(strconv.Itoa(res.Width))
	}
	if !(m.focus == fieldHeight && m.height.Focused()) {
		m.height.SetValue(strconv.Itoa(res.Height))
	}
}

func (m Model) inputMatches(ti textinput.Model, v int) bool {
	d := params.ParseDimension(ti.Value())
	return !math.IsNaN(d) && int(math.Round(d)) == v
}

func cyclePreset(p model.Preset, dir int) model.Preset {
	idx := 0
	for i, v := range model.Presets {
		if v == p {
			idx = i
		}
	}
	n := len(model.Presets)
	return model.Presets[(idx+dir+n)%n]
}

func (m Model) listenEventsCmd() tea.Cmd {
	ctx, ch := m.ctx, m.eventCh
	return func() tea.Msg {
		select {
		case <-ctx.Done():
			return closedMsg{}
		case msg := <-ch:
			return msg
		}
	}
}

func (m Model) probeCmd(path string) tea.Cmd {
	ctx, sess := m.ctx, m.sess
	return func() tea.Msg {
		stats, err := sess.SelectSource(ctx, path)
		return probedMsg{Path: path, Stats: stats, Err: err}
	}
}

func (m Model) startCmd() tea.Cmd {
	ctx, sess, ch := m.ctx, m.sess, m.eventCh
	return func() tea.Msg {
		h, err := sess.Submit(ctx, func(ev progress.Event) {
			select {
			case ch <- jobProgressMsg{Event: ev}:
			default:
			}
		})
		return jobStartedMsg{Handle: h, Err: err}
	}
}

func (m Model) waitCmd(h *job.Handle) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		comp, err := h.Wait(ctx)
		return jobDoneMsg{Completion: comp, Err: err}
	}
}

// Err returns the error of the last finished job, if any.
func (m Model) Err() error {
	if m.result == nil {
		return nil
	}
	return m.err
}
