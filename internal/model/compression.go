package model

import (
	"fmt"
	"strings"
)

// Preset is the x264 speed/quality tradeoff passed to ffmpeg.
type Preset string

const (
	PresetUltrafast Preset = "ultrafast"
	PresetFast      Preset = "fast"
	PresetMedium    Preset = "medium"
	PresetSlow      Preset = "slow"
)

// Presets lists the supported presets from fastest to slowest.
var Presets = []Preset{PresetUltrafast, PresetFast, PresetMedium, PresetSlow}

// Valid reports whether p is one of the supported presets.
func (p Preset) Valid() bool {
	for _, v := range Presets {
		if v == p {
			return true
		}
	}
	return false
}

// ParsePreset parses a preset name case-insensitively.
func ParsePreset(s string) (Preset, error) {
	p := Preset(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("invalid preset %q (valid: ultrafast|fast|medium|slow)", s)
	}
	return p, nil
}

// Resolution is a target frame size in pixels.
type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// DefaultResolution is used until a probe reports the source size.
var DefaultResolution = Resolution{Width: 1920, Height: 1080}

// VideoStats holds probed metadata for one video stream.
type VideoStats struct {
	BitRate     int64 `json:"bit_rate"`
	Width       int   `json:"width"`
	Height      int   `json:"height"`
	PacketCount int64 `json:"nb_packets"`
}

// CompressionParameters is the snapshot submitted with a job.
type CompressionParameters struct {
	Resolution Resolution `json:"resolution"`
	Preset     Preset     `json:"preset"`
	CropVideo  bool       `json:"cropVideo"`
}
