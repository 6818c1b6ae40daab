// Package config loads jarvish's process-wide configuration snapshot: the
// TOML file at {config_dir}/jarvish/config.toml, plus a local .env file
// loaded into the environment before the config is read.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"

	"github.com/kiosk404/jarvish/internal/logging"
)

const component = "config"

// AI holds the model-client knobs.
type AI struct {
	Model     string `mapstructure:"model" toml:"model"`
	MaxRounds int    `mapstructure:"max_rounds" toml:"max_rounds"`
}

// Prompt holds prompt-rendering options.
type Prompt struct {
	NerdFont bool `mapstructure:"nerd_font" toml:"nerd_font"`
}

// Config is the process-wide immutable configuration snapshot described in
// spec.md §3 ("Configuration"). The toml tags drive writeDefaultFile's
// go-toml/v2 marshaling; the mapstructure tags drive viper's unmarshal on
// read, so both directions agree on section/key names.
type Config struct {
	AI     AI                `mapstructure:"ai" toml:"ai"`
	Alias  map[string]string `mapstructure:"alias" toml:"alias"`
	Export map[string]string `mapstructure:"export" toml:"export"`
	Prompt Prompt            `mapstructure:"prompt" toml:"prompt"`

	// path is the file this configuration was loaded from.
	path string
}

// Path returns the config file path this Config was loaded from.
func (c *Config) Path() string { return c.path }

func defaults() *Config {
	return &Config{
		AI: AI{
			Model:     "gpt-4o",
			MaxRounds: 10,
		},
		Alias: map[string]string{
			"g":  "git",
			"ll": "ls -la",
		},
		Export: map[string]string{
			"PATH": "/usr/local/bin:$PATH",
		},
		Prompt: Prompt{NerdFont: true},
	}
}

// DefaultConfigPath returns {config_dir}/jarvish/config.toml for the current
// platform, using os.UserConfigDir as the base.
func DefaultConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(dir, "jarvish", "config.toml"), nil
}

// DataDir returns the OS data directory for jarvish's persisted state
// (history.db, blobs/, logs/), honoring $XDG_DATA_HOME when set.
func DataDir() (string, error) {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "jarvish"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	switch {
	case runtime.GOOS == "darwin":
		return filepath.Join(home, "Library", "Application Support", "jarvish"), nil
	default:
		return filepath.Join(home, ".local", "share", "jarvish"), nil
	}
}

// LoadDotEnv loads a local .env file into the process environment, if
// present. A missing file is not an error.
func LoadDotEnv(path string) {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !os.IsNotExist(err) {
		logging.WarnX(component, "failed to load %s: %v", path, err)
	}
}

// Load reads the TOML config at path, writing platform defaults if the file
// does not exist. Unknown keys are ignored. Invalid TOML aborts startup.
func Load(path string) (*Config, error) {
	if path == "" {
		var err error
		path, err = DefaultConfigPath()
		if err != nil {
			return nil, err
		}
	}

	cfg := defaults()
	cfg.path = path

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := writeDefaultFile(path, cfg); err != nil {
			return nil, fmt.Errorf("write default config: %w", err)
		}
		expandExports(cfg)
		return cfg, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.path = path

	expandExports(cfg)
	return cfg, nil
}

// Watch installs a callback invoked whenever the underlying config file
// changes on disk. main uses it to re-apply the config automatically through
// the same reload function the `source` built-in calls.
func Watch(path string, onChange func()) (*fsnotify.Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}
	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Name == path && (ev.Op&(fsnotify.Write|fsnotify.Create) != 0) {
					onChange()
				}
			case _, ok := <-w.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return w, nil
}

// expandExports resolves $VAR references within export values against the
// current process environment, per spec.md's config format comment.
func expandExports(cfg *Config) {
	for k, v := range cfg.Export {
		cfg.Export[k] = os.Expand(v, os.Getenv)
	}
}

// writeDefaultFile marshals cfg with go-toml/v2 (which sorts map keys
// alphabetically, so the [alias]/[export] tables come out in a deterministic
// order across runs) and writes it as the seed config.toml.
func writeDefaultFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}
	return os.WriteFile(path, b, 0o644)
}
