package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"

	"vidsqueeze/internal/job"
	"vidsqueeze/internal/model"
)

func newViper(t *testing.T, yaml string) *viper.Viper {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	if yaml != "" {
		path := filepath.Join(t.TempDir(), "config.yaml")
		if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
			t.Fatal(err)
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			t.Fatalf("ReadInConfig: %v", err)
		}
	}
	return v
}

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom(newViper(t, ""))
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.PresetValue() != model.PresetMedium {
		t.Errorf("Preset = %q", cfg.Preset)
	}
	if cfg.Timeout != job.DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", cfg.Timeout, job.DefaultTimeout)
	}
	if cfg.LogLevel != "info" || cfg.LogFormat != "console" {
		t.Errorf("log = %q/%q", cfg.LogLevel, cfg.LogFormat)
	}
}

func TestLoadFrom_File(t *testing.T) {
	cfg, err := LoadFrom(newViper(t, strings.Join([]string{
		"ffmpeg_path: /opt/ffmpeg/bin/ffmpeg",
		"preset: Slow",
		"timeout: 90s",
		"keep_progress: true",
		"log_format: json",
		"verbose: true",
	}, "\n")))
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.FFmpegPath != "/opt/ffmpeg/bin/ffmpeg" {
		t.Errorf("FFmpegPath = %q", cfg.FFmpegPath)
	}
	if cfg.PresetValue() != model.PresetSlow {
		t.Errorf("Preset = %q", cfg.Preset)
	}
	if cfg.Timeout != 90*time.Second {
		t.Errorf("Timeout = %v", cfg.Timeout)
	}
	if !cfg.KeepProgress {
		t.Error("KeepProgress = false")
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("verbose should force debug, got %q", cfg.LogLevel)
	}
}

func TestLoadFrom_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{name: "preset", yaml: "preset: placebo", want: "preset"},
		{name: "timeout", yaml: "timeout: -1m", want: "timeout"},
		{name: "duration syntax", yaml: "timeout: soon", want: "decode config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFrom(newViper(t, tt.yaml))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("LoadFrom() error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestLoadFrom_Env(t *testing.T) {
	t.Setenv("VIDSQUEEZE_PRESET", "ultrafast")
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix("VIDSQUEEZE")
	v.AutomaticEnv()
	cfg, err := LoadFrom(v)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.PresetValue() != model.PresetUltrafast {
		t.Errorf("Preset = %q, want ultrafast", cfg.Preset)
	}
}
