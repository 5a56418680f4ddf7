package transcoder

import (
	"strconv"
	"strings"

	"vidsqueeze/internal/progress"
)

// ProgressState accumulates ffmpeg -progress key=value lines. Frame, fps
// and out time are kept as running maxima.
type ProgressState struct {
	stats progress.Event
	dirty bool
	ended bool
}

// UpdateFromLine parses one line of ffmpeg progress output. At the end of
// each block ("progress=continue" or "progress=end") it returns the
// accumulated event and true if anything changed since the previous block.
func (ps *ProgressState) UpdateFromLine(line string) (progress.Event, bool) {
	key, val, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok {
		return progress.Event{}, false
	}
	key = strings.TrimSpace(key)
	val = strings.TrimSpace(val)

	switch key {
	case "frame":
		if v, err := strconv.ParseInt(val, 10, 64); err == nil && v > ps.stats.Frame {
			ps.stats.Frame = v
			ps.dirty = true
		}
	case "fps":
		if v, err := strconv.ParseFloat(val, 64); err == nil && v > ps.stats.FPS {
			ps.stats.FPS = v
			ps.dirty = true
		}
	case "out_time_ms", "out_time_us":
		// "N/A" until the first packet is muxed.
		if v, err := strconv.ParseInt(val, 10, 64); err == nil && v > ps.stats.OutTimeMs {
			ps.stats.OutTimeMs = v
			ps.dirty = true
		}
	case "progress":
		if val == "end" {
			ps.ended = true
		}
		if ps.dirty {
			ps.dirty = false
			return ps.stats, true
		}
	}
	return progress.Event{}, false
}

// Stats returns the accumulated event.
func (ps *ProgressState) Stats() progress.Event { return ps.stats }

// Ended reports whether ffmpeg wrote its final progress block.
func (ps *ProgressState) Ended() bool { return ps.ended }
