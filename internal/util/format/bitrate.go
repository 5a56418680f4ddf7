package format

import "strconv"

// HumanizeBitrate renders bits per second as kb/s or Mb/s.
// Zero or negative values render as "unknown".
func HumanizeBitrate(bps int64) string {
	switch {
	case bps <= 0:
		return "unknown"
	case bps < 1_000:
		return strconv.FormatInt(bps, 10) + " b/s"
	case bps < 1_000_000:
		return strconv.FormatFloat(float64(bps)/1_000, 'f', 0, 64) + " kb/s"
	default:
		return strconv.FormatFloat(float64(bps)/1_000_000, 'f', 2, 64) + " Mb/s"
	}
}
