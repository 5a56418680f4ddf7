package ui

import (
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"vidsqueeze/internal/model"
	"vidsqueeze/internal/util/format"
)

func (m Model) View() string {
	var body string
	switch m.screen {
	case screenPick:
		body = m.viewPicker()
	case screenProbing:
		body = m.styles.Spinner.Render(m.spin.View()) + " " + m.styles.Faint.Render(m.status)
	case screenForm:
		body = m.viewForm()
	case screenRunning:
		body = m.viewRunning()
	case screenDone:
		body = m.viewDone()
	}
	return m.viewHeader() + "\n\n" + m.styles.Box.Render(body) + "\n"
}

func (m Model) viewHeader() string {
	title := m.styles.Title.Render("vidsqueeze")
	var keys string
	switch m.screen {
	case screenPick:
		keys = "enter: select • h: up • esc: skip • ctrl+c: quit"
	case screenForm:
		keys = "tab/↑↓: move • ←→/space: change • enter: start • ctrl+o: open file • esc: quit"
	case screenRunning:
		keys = "x: cancel • ctrl+c: quit"
	case screenDone:
		keys = "enter: adjust • o: open file • q: quit"
	default:
		keys = "ctrl+c: quit"
	}
	return title + "\n" + m.styles.Subtitle.Render(keys)
}

func (m Model) viewPicker() string {
	var b strings.Builder
	b.WriteString(m.styles.Label.Render("Pick a video"))
	b.WriteString(m.styles.Faint.Render(m.picker.CurrentDirectory))
	b.WriteString("\n\n")
	b.WriteString(m.picker.View())
	if m.status != "" {
		b.WriteString("\n")
		b.WriteString(m.styles.Warning.Render(m.status))
	}
	return b.String()
}

func (m Model) viewForm() string {
	form := m.sess.Params()
	var b strings.Builder

	src := m.sess.Source()
	if src.IsZero() {
		b.WriteString(m.row(-1, "Source", m.styles.Faint.Render("none")))
	} else {
		b.WriteString(m.row(-1, "Source", filepath.Base(src.Path())))
		if m.stats.Width > 0 {
			b.WriteString(m.row(-1, "Original", m.styles.Stats.Render(fmt.Sprintf("%dx%d • %s • %d packets",
				m.stats.Width, m.stats.Height, format.HumanizeBitrate(m.stats.BitRate), m.stats.PacketCount))))
		}
	}
	b.WriteString("\n")

	b.WriteString(m.row(fieldWidth, "Width", m.width.View()))
	b.WriteString(m.row(fieldHeight, "Height", m.height.View()))
	b.WriteString(m.row(fieldPreset, "Preset", presetChoices(form.Preset())))
	b.WriteString(m.row(fieldAspectLock, "Aspect lock", checkbox(form.AspectLock())))
	crop := checkbox(form.Crop())
	if !form.CropEnabled() {
		crop = m.styles.Disabled.Render(crop)
	}
	b.WriteString(m.row(fieldCrop, "Crop", crop))
	b.WriteString(m.row(fieldStart, "", "[ Compress ]"))

	b.WriteString(m.viewStatus())
	return b.String()
}

func (m Model) viewRunning() string {
	var b strings.Builder
	b.WriteString(m.row(-1, "Source", filepath.Base(m.sess.Source().Path())))
	b.WriteString(m.row(-1, "Target", m.sess.Params().Resolution().String()+" • "+presetLabel(m.sess.Params().Preset())))
	b.WriteString("\n")

	if pct := m.last.Percent(m.stats.PacketCount); pct >= 0 {
		b.WriteString(fmt.Sprintf("%s %5.1f%%\n", m.bar.ViewAs(pct/100.0), pct))
	} else {
		b.WriteString(m.styles.Spinner.Render(m.spin.View()) + " " + m.styles.Faint.Render("waiting for ffmpeg") + "\n")
	}
	if m.last.Frame > 0 {
		b.WriteString(m.styles.Stats.Render(m.last.String()) + "\n")
	}
	b.WriteString(m.viewStatus())
	return b.String()
}

func (m Model) viewDone() string {
	var b strings.Builder
	if m.err != nil {
		b.WriteString(m.styles.Error.Render("✗ " + m.err.Error()))
		b.WriteString("\n")
		return b.String()
	}
	if m.result != nil {
		b.WriteString(m.styles.Success.Render(fmt.Sprintf("✓ Saved: %s (%s)", m.result.OutputPath, format.HumanizeBytes(m.result.Bytes))))
		b.WriteString("\n")
		b.WriteString(m.styles.Stats.Render(m.result.Stats.String()))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) viewStatus() string {
	switch {
	case m.err != nil:
		return "\n" + m.styles.Error.Render(m.err.Error()) + "\n"
	case m.status != "":
		return "\n" + m.styles.Faint.Render(m.status) + "\n"
	}
	return ""
}

func (m Model) row(f field, label, value string) string {
	style := m.styles.Label
	if f >= 0 && f == m.focus && m.screen == screenForm {
		style = m.styles.Focused
	}
	return style.Render(label) + m.styles.Value.Render(value) + "\n"
}

func presetChoices(current model.Preset) string {
	parts := make([]string, 0, len(model.Presets))
	for _, p := range model.Presets {
		label := presetLabel(p)
		if p == current {
			label = "‹" + label + "›"
		}
		parts = append(parts, label)
	}
	return strings.Join(parts, " ")
}

func presetLabel(p model.Preset) string {
	return cases.Title(language.English).String(string(p))
}

func checkbox(on bool) string {
	if on {
		return "[x]"
	}
	return "[ ]"
}
