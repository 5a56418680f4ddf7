// Package format renders sizes and rates for humans.
package format

import "strconv"

var byteUnits = []string{"KB", "MB", "GB", "TB", "PB"}

// HumanizeBytes renders b in binary units with one decimal, e.g. "1.5 MB".
func HumanizeBytes(b int64) string {
	if b < 1024 {
		return strconv.FormatInt(b, 10) + " B"
	}
	v := float64(b) / 1024
	exp := 0
	for v >= 1024 && exp < len(byteUnits)-1 {
		v /= 1024
		exp++
	}
	return strconv.FormatFloat(v, 'f', 1, 64) + " " + byteUnits[exp]
}

// Reduction describes how much smaller after is than before, e.g.
// "62% smaller". Growth renders as "12% larger"; an unknown
// original size renders as "".
func Reduction(before, after int64) string {
	if before <= 0 || after < 0 {
		return ""
	}
	pct := (1 - float64(after)/float64(before)) * 100
	if pct >= 0 {
		return strconv.FormatFloat(pct, 'f', 0, 64) + "% smaller"
	}
	return strconv.FormatFloat(-pct, 'f', 0, 64) + "% larger"
}
