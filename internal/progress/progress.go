// Package progress defines the events a transcoding job publishes while it runs.
package progress

import "fmt"

// Topic prefixes for job events. The job ID is appended after a colon.
const (
	StatsTopicPrefix    = "video-processing-stats"
	CompleteTopicPrefix = "video-processing-complete"
)

// StatsTopic returns the topic carrying Event values for jobID.
func StatsTopic(jobID string) string {
	return StatsTopicPrefix + ":" + jobID
}

// CompleteTopic returns the topic carrying the single Completion for jobID.
func CompleteTopic(jobID string) string {
	return CompleteTopicPrefix + ":" + jobID
}

// Event is a progress sample reported by ffmpeg.
type Event struct {
	Frame     int64   `json:"frame"`
	FPS       float64 `json:"fps"`
	OutTimeMs int64   `json:"out_time_ms"` // ffmpeg reports microseconds under this key
}

// Percent estimates completion from the frame count against the probed
// packet count. It returns -1 when unknown.
func (e Event) Percent(packetCount int64) float64 {
	if packetCount <= 0 || e.Frame <= 0 {
		return -1
	}
	p := float64(e.Frame) / float64(packetCount) * 100
	if p > 100 {
		p = 100
	}
	return p
}

func (e Event) String() string {
	return fmt.Sprintf("frame=%d fps=%.1f time=%.1fs", e.Frame, e.FPS, float64(e.OutTimeMs)/1e6)
}

// Completion is published once when a job ends.
type Completion struct {
	JobID      string
	Stats      Event
	OutputPath string
	Bytes      int64
	Err        error // nil on success
}
