package transcoder

import (
	"encoding/json"
	"fmt"
	"strconv"

	"vidsqueeze/internal/model"
)

type probeOutput struct {
	Streams []probeStream `json:"streams"`
}

// ffprobe prints bit_rate and nb_read_packets as strings.
type probeStream struct {
	Width         int    `json:"width"`
	Height        int    `json:"height"`
	BitRate       string `json:"bit_rate"`
	NbReadPackets string `json:"nb_read_packets"`
}

// ParseProbe decodes ffprobe JSON output into per-stream stats. Missing or
// "N/A" numeric fields become zero.
func ParseProbe(data []byte) ([]model.VideoStats, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}
	stats := make([]model.VideoStats, 0, len(out.Streams))
	for _, s := range out.Streams {
		stats = append(stats, model.VideoStats{
			Width:       s.Width,
			Height:      s.Height,
			BitRate:     parseCount(s.BitRate),
			PacketCount: parseCount(s.NbReadPackets),
		})
	}
	return stats, nil
}

func parseCount(s string) int64 {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}
