// Package source resolves and validates the video file a job reads from.
package source

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
)

// VideoExtensions are the file types offered by the file picker.
var VideoExtensions = []string{".mp4", ".webm", ".ogg", ".mov", ".avi", ".flv", ".mkv"}

// Media identifies the selected input file. The zero value means none.
type Media struct {
	path string
}

// Path returns the absolute path of the media file.
func (m Media) Path() string { return m.path }

// IsZero reports whether no media has been selected.
func (m Media) IsZero() bool { return m.path == "" }

func (m Media) String() string { return m.path }

// New wraps an already validated path without touching the file system.
func New(path string) Media {
	return Media{path: path}
}

// Parse accepts a plain file path or a file:// URL and returns its absolute,
// cleaned path. Other URL schemes are rejected.
func Parse(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("empty source path")
	}
	p := raw
	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", fmt.Errorf("invalid source URL %q: %w", raw, err)
		}
		if u.Scheme != "file" {
			return "", fmt.Errorf("unsupported source URL %q: only local files are supported", raw)
		}
		p = u.Path
		if u.Host != "" && u.Host != "localhost" {
			p = "//" + u.Host + u.Path
		}
	}
	abs, err := filepath.Abs(filepath.FromSlash(p))
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", raw, err)
	}
	return abs, nil
}

// Open resolves raw and checks that it names a readable video file.
func Open(raw string) (Media, error) {
	p, err := Parse(raw)
	if err != nil {
		return Media{}, err
	}
	fi, err := os.Stat(p)
	if err != nil {
		return Media{}, fmt.Errorf("open source: %w", err)
	}
	if !fi.Mode().IsRegular() {
		return Media{}, fmt.Errorf("source %q is not a regular file", p)
	}
	kind, err := filetype.MatchFile(p)
	if err != nil {
		return Media{}, fmt.Errorf("read source header: %w", err)
	}
	switch {
	case kind == filetype.Unknown:
		// Sniffing misses some containers; trust a known extension.
		if !HasVideoExtension(p) {
			return Media{}, fmt.Errorf("source %q does not look like a video", p)
		}
	case kind.MIME.Type == "video":
	case kind.MIME.Type == "audio" && HasVideoExtension(p):
		// Ogg containers sniff as audio.
	default:
		return Media{}, fmt.Errorf("source %q is %s, not a video", p, kind.MIME.Value)
	}
	return Media{path: p}, nil
}

// HasVideoExtension reports whether path ends in one of VideoExtensions.
func HasVideoExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range VideoExtensions {
		if e == ext {
			return true
		}
	}
	return false
}
