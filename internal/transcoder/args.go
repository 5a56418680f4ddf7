package transcoder

import (
	"fmt"

	"vidsqueeze/internal/model"
)

// AudioBitrate is the fixed AAC bitrate of the output.
const AudioBitrate = "128k"

// BuildArgs constructs ffmpeg arguments for one transcode. ffmpeg writes
// key=value progress blocks to progressPath. The output path is always last.
func BuildArgs(inputPath, outputPath, progressPath string, p model.CompressionParameters) []string {
	preset := p.Preset
	if !preset.Valid() {
		preset = model.PresetMedium
	}
	args := []string{
		"-hide_banner",
		"-y",
		"-i", inputPath,
		// Flush after each packet so progress tracks real output.
		"-flush_packets", "1",
		"-c:v", "libx264",
		"-preset", string(preset),
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-b:a", AudioBitrate,
		"-movflags", "+faststart",
		"-vf", VideoFilter(p.Resolution, p.CropVideo),
	}
	if progressPath != "" {
		args = append(args, "-progress", progressPath, "-nostats")
	}
	return append(args, outputPath)
}

// VideoFilter returns the scale (and optional crop) filter for r.
// With crop the frame is scaled to cover r and the overflow is cut,
// otherwise it is scaled to exactly r.
func VideoFilter(r model.Resolution, crop bool) string {
	w, h := EvenDimensions(r)
	if crop {
		return fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d", w, h, w, h)
	}
	return fmt.Sprintf("scale=%d:%d", w, h)
}

// EvenDimensions rounds r down to even sizes of at least 2 pixels, as
// required by libx264 with yuv420p.
func EvenDimensions(r model.Resolution) (int, int) {
	return even(r.Width), even(r.Height)
}

func even(v int) int {
	v -= v % 2
	if v < 2 {
		return 2
	}
	return v
}

// ProbeArgs returns ffprobe arguments reporting the first video stream's
// size, bitrate and packet count as JSON.
func ProbeArgs(inputPath string) []string {
	return []string{
		"-v", "error",
		"-select_streams", "v:0",
		"-count_packets",
		"-show_entries", "stream=width,height,nb_read_packets,bit_rate",
		"-of", "json",
		inputPath,
	}
}
