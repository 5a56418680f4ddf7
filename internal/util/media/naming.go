package media

import (
	"path/filepath"
	"strings"
)

// OutputSuffix is appended to the source basename to form the output name.
const OutputSuffix = "-output"

// OutputPath returns the transcoded file path next to the input:
// "/videos/clip.mov" becomes "/videos/clip-output.mp4".
func OutputPath(inputPath string) string {
	dir := filepath.Dir(inputPath)
	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	if base == "" {
		base = "video"
	}
	return filepath.Join(dir, base+OutputSuffix+".mp4")
}
