// Package config holds the pipeline feature flags and their TOML persistence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
	"github.com/pelletier/go-toml/v2"
)

// DefaultFile is the settings location used when no explicit path is given.
const DefaultFile = "~/.config/oxy/pipeline.toml"

// Config is the full on-disk settings document.
type Config struct {
	Features Features       `toml:"features"`
	Renderer RendererConfig `toml:"renderer"`
	Shaders  ShaderConfig   `toml:"shaders"`
	Log      LogConfig      `toml:"log"`
}

// RendererConfig holds device and target sizing settings that are not shader-visible.
type RendererConfig struct {
	// VSync selects FIFO presentation instead of immediate.
	VSync bool `toml:"vsync"`

	// ForceFallbackAdapter requests a software adapter.
	ForceFallbackAdapter bool `toml:"force_fallback_adapter"`

	// ShadowMapSize is the edge length in texels of every shadow depth map.
	ShadowMapSize uint32 `toml:"shadow_map_size"`

	// HistoryWeight is the share of the previous composed frame blended into the current one.
	HistoryWeight float32 `toml:"history_weight"`
}

// ShaderConfig controls where shader sources come from.
type ShaderConfig struct {
	// Dir is an on-disk shader root. When empty the embedded shader set is used.
	Dir string `toml:"dir"`

	// HotReload watches Dir and refreshes pipelines when a source changes.
	HotReload bool `toml:"hot_reload"`

	// PreloadWorkers bounds the worker pool that preprocesses variants at init.
	PreloadWorkers int `toml:"preload_workers"`
}

// LogConfig controls the engine logger.
type LogConfig struct {
	Level string `toml:"level"`
}

// Default returns the settings used when no file exists.
//
// Returns:
//   - Config: the default configuration
func Default() Config {
	return Config{
		Features: DefaultFeatures(),
		Renderer: RendererConfig{
			VSync:         true,
			ShadowMapSize: 2048,
			HistoryWeight: 0.1,
		},
		Shaders: ShaderConfig{
			PreloadWorkers: 4,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// DefaultPath expands DefaultFile against the current user's home directory.
//
// Returns:
//   - string: the absolute settings path
//   - error: an error if the home directory cannot be determined
func DefaultPath() (string, error) {
	p, err := homedir.Expand(DefaultFile)
	if err != nil {
		return "", fmt.Errorf("failed to expand config path: %w", err)
	}
	return p, nil
}

// Load reads settings from path, starting from Default so missing keys keep their defaults.
// A missing file is not an error; the defaults are returned.
//
// Parameters:
//   - path: the TOML file to read, "~" is expanded
//
// Returns:
//   - Config: the loaded configuration
//   - error: an error if the file exists but cannot be read or parsed
func Load(path string) (Config, error) {
	cfg := Default()
	expanded, err := homedir.Expand(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to expand config path %q: %w", path, err)
	}

	data, err := os.ReadFile(expanded)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("failed to read config %s: %w", expanded, err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", expanded, err)
	}
	cfg.Features = cfg.Features.Normalize()
	return cfg, nil
}

// Save writes cfg to path as TOML, creating parent directories as needed.
//
// Parameters:
//   - path: the TOML file to write, "~" is expanded
//   - cfg: the configuration to persist
//
// Returns:
//   - error: an error if encoding or writing fails
func Save(path string, cfg Config) error {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return fmt.Errorf("failed to expand config path %q: %w", path, err)
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(expanded, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config %s: %w", expanded, err)
	}
	return nil
}
