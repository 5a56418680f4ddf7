package dirs

import (
	"path/filepath"
	"runtime"
	"testing"
)

func TestXDGOverrides(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG layout applies to linux only")
	}
	base := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(base, "config"))
	t.Setenv("XDG_STATE_HOME", filepath.Join(base, "state"))

	cfg, err := ConfigDir()
	if err != nil || cfg != filepath.Join(base, "config", "vidsqueeze") {
		t.Errorf("ConfigDir() = %q, %v", cfg, err)
	}
	progress, err := ProgressDir()
	if err != nil || progress != filepath.Join(base, "state", "vidsqueeze", "progress") {
		t.Errorf("ProgressDir() = %q, %v", progress, err)
	}
	logPath, err := LogPath()
	if err != nil || logPath != filepath.Join(base, "state", "vidsqueeze", "vidsqueeze.log") {
		t.Errorf("LogPath() = %q, %v", logPath, err)
	}
	if err := EnsureAll(); err != nil {
		t.Errorf("EnsureAll() error: %v", err)
	}
}

func TestEnsureEmpty(t *testing.T) {
	if err := Ensure(""); err == nil {
		t.Error("Ensure(\"\") should fail")
	}
}
