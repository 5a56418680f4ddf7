package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"vidsqueeze/internal/dirs"
	"vidsqueeze/internal/job"
	"vidsqueeze/internal/model"
)

// Config is the resolved application configuration.
type Config struct {
	FFmpegPath   string        `mapstructure:"ffmpeg_path"`
	FFprobePath  string        `mapstructure:"ffprobe_path"`
	Preset       string        `mapstructure:"preset"`
	Timeout      time.Duration `mapstructure:"timeout"`
	KeepProgress bool          `mapstructure:"keep_progress"`
	LogLevel     string        `mapstructure:"log_level"`
	LogFormat    string        `mapstructure:"log_format"`
	Verbose      bool          `mapstructure:"verbose"`
}

// Flag names bound to config keys when present on the root command.
var flagKeys = map[string]string{
	"ffmpeg":        "ffmpeg_path",
	"ffprobe":       "ffprobe_path",
	"keep-progress": "keep_progress",
	"log-level":     "log_level",
	"log-format":    "log_format",
	"verbose":       "verbose",
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("preset", string(model.PresetMedium))
	v.SetDefault("timeout", job.DefaultTimeout.String())
	v.SetDefault("keep_progress", false)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
	v.SetDefault("verbose", false)
}

// Init wires Viper with config paths, env, defaults, and flag bindings.
// It is non-fatal: any errors are returned for optional handling by caller.
func Init(root *cobra.Command) error {
	// Ensure base directories exist
	_ = dirs.EnsureAll()

	// Setup config search path
	if cfgDir, err := dirs.ConfigDir(); err == nil {
		viper.AddConfigPath(cfgDir)
	}
	viper.SetConfigName("config") // supports config.{yaml|yml|json|toml}

	// Environment variables: VIDSQUEEZE_*
	viper.SetEnvPrefix("VIDSQUEEZE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	SetDefaults(viper.GetViper())

	// Bind root persistent flags to Viper keys
	for flag, key := range flagKeys {
		if f := root.PersistentFlags().Lookup(flag); f != nil {
			_ = viper.BindPFlag(key, f)
		}
	}

	// Read config file if present (ignore not found)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

// Load decodes the global Viper state.
func Load() (Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom decodes and validates the configuration held by v.
func LoadFrom(v *viper.Viper) (Config, error) {
	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate normalizes cfg and rejects values that cannot be used.
func (c *Config) Validate() error {
	if c.Preset == "" {
		c.Preset = string(model.PresetMedium)
	}
	p, err := model.ParsePreset(c.Preset)
	if err != nil {
		return fmt.Errorf("config preset: %w", err)
	}
	c.Preset = string(p)
	if c.Timeout < 0 {
		return fmt.Errorf("config timeout: must not be negative, got %s", c.Timeout)
	}
	if c.Timeout == 0 {
		c.Timeout = job.DefaultTimeout
	}
	if c.Verbose {
		c.LogLevel = "debug"
	}
	return nil
}

// PresetValue returns the configured preset.
func (c Config) PresetValue() model.Preset {
	return model.Preset(c.Preset)
}
