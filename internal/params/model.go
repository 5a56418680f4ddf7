// Package params holds the compression form state and keeps the target
// resolution consistent with the probed source.
package params

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"vidsqueeze/internal/model"
)

// Model is the editable set of compression parameters.
// It is not safe for concurrent use; the owning front end serializes edits.
type Model struct {
	preset      model.Preset
	resolution  model.Resolution
	aspectRatio float64
	aspectLock  bool
	crop        bool
}

// New returns a Model with the default preset and resolution and aspect lock on.
func New() *Model {
	r := model.DefaultResolution
	return &Model{
		preset:      model.PresetMedium,
		resolution:  r,
		aspectRatio: float64(r.Width) / float64(r.Height),
		aspectLock:  true,
	}
}

// SetPreset stores p. Invalid presets are ignored.
func (m *Model) SetPreset(p model.Preset) {
	if !p.Valid() {
		return
	}
	m.preset = p
}

// SetResolutionFromProbe adopts the probed frame size and recomputes the
// aspect ratio. Stats without a usable size are rejected.
func (m *Model) SetResolutionFromProbe(stats model.VideoStats) error {
	if stats.Width <= 0 || stats.Height <= 0 {
		return fmt.Errorf("probe reported invalid size %dx%d", stats.Width, stats.Height)
	}
	m.resolution = model.Resolution{Width: stats.Width, Height: stats.Height}
	m.aspectRatio = float64(stats.Width) / float64(stats.Height)
	return nil
}

// SetWidth sets the width and, with aspect lock on, derives the height.
// It returns false without touching the resolution when w is not a usable size.
func (m *Model) SetWidth(w float64) bool {
	width, ok := pixels(w)
	if !ok {
		return false
	}
	height := m.resolution.Height
	if m.aspectLock {
		height = clampPixels(math.Round(float64(width) / m.aspectRatio))
	}
	m.resolution = model.Resolution{Width: width, Height: height}
	return true
}

// SetHeight sets the height and, with aspect lock on, derives the width.
func (m *Model) SetHeight(h float64) bool {
	height, ok := pixels(h)
	if !ok {
		return false
	}
	width := m.resolution.Width
	if m.aspectLock {
		width = clampPixels(math.Round(float64(height) * m.aspectRatio))
	}
	m.resolution = model.Resolution{Width: width, Height: height}
	return true
}

func (m *Model) SetAspectLock(on bool) { m.aspectLock = on }

func (m *Model) SetCrop(on bool) { m.crop = on }

func (m *Model) Preset() model.Preset { return m.preset }

func (m *Model) Resolution() model.Resolution { return m.resolution }

func (m *Model) AspectRatio() float64 { return m.aspectRatio }

func (m *Model) AspectLock() bool { return m.aspectLock }

func (m *Model) Crop() bool { return m.crop }

// CropEnabled reports whether the crop control is usable.
// Cropping only makes sense while the aspect ratio is locked.
func (m *Model) CropEnabled() bool { return m.aspectLock }

// Snapshot returns the parameters to submit with a job.
func (m *Model) Snapshot() model.CompressionParameters {
	return model.CompressionParameters{
		Resolution: m.resolution,
		Preset:     m.preset,
		CropVideo:  m.crop,
	}
}

// ParseDimension parses a width or height typed by the user.
// Empty or malformed input yields NaN, which the setters reject.
func ParseDimension(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

func pixels(v float64) (int, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0, false
	}
	r := math.Round(v)
	if r < 1 || r > math.MaxInt32 {
		return 0, false
	}
	return int(r), true
}

func clampPixels(v float64) int {
	if v < 1 {
		return 1
	}
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(v)
}
