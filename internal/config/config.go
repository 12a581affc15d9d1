// Package config loads glim settings from config files, GLIM_* environment
// variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/viper"

	"github.com/sprite-ai/glim/internal/engine"
	"github.com/sprite-ai/glim/internal/identity"
)

// Config is the complete glim configuration.
type Config struct {
	Engine EngineConfig `mapstructure:"engine"`
	Noise  NoiseConfig  `mapstructure:"noise"`
	Diff   DiffConfig   `mapstructure:"diff"`
	Ignore []string     `mapstructure:"ignore"`
	Log    LogConfig    `mapstructure:"log"`

	// File is the config file that was read, empty when none was found.
	File string `mapstructure:"-"`
}

type EngineConfig struct {
	CosmeticDiscount          float64 `mapstructure:"cosmetic_discount"`
	RenameConfidenceThreshold float64 `mapstructure:"rename_confidence_threshold"`
	NameWeight                float64 `mapstructure:"name_weight"`
	Workers                   int     `mapstructure:"workers"`
	MaxBodyTokens             int     `mapstructure:"max_body_tokens"`
}

type NoiseConfig struct {
	Normalizer string `mapstructure:"normalizer"`
}

type DiffConfig struct {
	Context int `mapstructure:"context"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"` // the review TUI logs nowhere unless set
}

// New returns a viper instance with glim's defaults and environment binding.
// Callers bind their flags to it before Load.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault("engine.cosmetic_discount", 0.1)
	v.SetDefault("engine.rename_confidence_threshold", 0.6)
	v.SetDefault("engine.name_weight", 0.25)
	v.SetDefault("engine.workers", runtime.GOMAXPROCS(0))
	v.SetDefault("engine.max_body_tokens", 4000)
	v.SetDefault("noise.normalizer", "table")
	v.SetDefault("diff.context", 3)
	v.SetDefault("ignore", []string{})
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.file", "")

	v.SetEnvPrefix("GLIM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the first config file found (explicit path, then .glim.yaml in
// repoRoot, then the user config dir) and validates the result. A missing file
// is not an error.
func Load(v *viper.Viper, explicit, repoRoot string) (*Config, error) {
	file := explicit
	if file == "" {
		file = findConfig(repoRoot)
	}
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config %s: %w", file, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	cfg.File = file
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration with no file, env or flags applied.
func Default() *Config {
	var cfg Config
	// Defaults always decode.
	_ = New().Unmarshal(&cfg)
	return &cfg
}

func findConfig(repoRoot string) string {
	var candidates []string
	if repoRoot != "" {
		candidates = append(candidates, filepath.Join(repoRoot, ".glim.yaml"), filepath.Join(repoRoot, ".glim.yml"))
	}
	if dir, err := os.UserConfigDir(); err == nil {
		candidates = append(candidates, filepath.Join(dir, "glim", "config.yaml"))
	}
	for _, c := range candidates {
		if st, err := os.Stat(c); err == nil && !st.IsDir() {
			return c
		}
	}
	return ""
}

// Validate rejects out-of-range policy constants and bad ignore globs.
func (c *Config) Validate() error {
	e := c.Engine
	switch {
	case e.CosmeticDiscount < 0 || e.CosmeticDiscount > 1:
		return fmt.Errorf("engine.cosmetic_discount must be in [0,1], got %v", e.CosmeticDiscount)
	case e.RenameConfidenceThreshold < 0 || e.RenameConfidenceThreshold > 1:
		return fmt.Errorf("engine.rename_confidence_threshold must be in [0,1], got %v", e.RenameConfidenceThreshold)
	case e.NameWeight < 0 || e.NameWeight > 1:
		return fmt.Errorf("engine.name_weight must be in [0,1], got %v", e.NameWeight)
	case e.Workers < 1:
		return fmt.Errorf("engine.workers must be at least 1, got %d", e.Workers)
	case e.MaxBodyTokens < 0:
		return fmt.Errorf("engine.max_body_tokens must not be negative, got %d", e.MaxBodyTokens)
	case c.Diff.Context < 0:
		return fmt.Errorf("diff.context must not be negative, got %d", c.Diff.Context)
	}
	switch c.Noise.Normalizer {
	case "table", "lexer":
	default:
		return fmt.Errorf("noise.normalizer must be table or lexer, got %q", c.Noise.Normalizer)
	}
	for _, p := range c.Ignore {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("ignore: invalid pattern %q", p)
		}
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// EngineOptions converts the configuration to engine options.
func (c *Config) EngineOptions() engine.Options {
	return engine.Options{
		CosmeticDiscount: c.Engine.CosmeticDiscount,
		Identity: identity.Options{
			Threshold:     c.Engine.RenameConfidenceThreshold,
			NameWeight:    c.Engine.NameWeight,
			MaxBodyTokens: c.Engine.MaxBodyTokens,
		},
		Workers:    c.Engine.Workers,
		Normalizer: c.Noise.Normalizer,
	}
}

// Ignored reports whether a repository path matches an ignore glob.
func (c *Config) Ignored(path string) bool {
	for _, p := range c.Ignore {
		if ok, _ := doublestar.Match(p, path); ok {
			return true
		}
	}
	return false
}

// LogLevel returns the configured slog level.
func (c *Config) LogLevel() slog.Level {
	l, _ := parseLevel(c.Log.Level)
	return l
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelWarn, fmt.Errorf("log.level: %w", err)
	}
	return l, nil
}
