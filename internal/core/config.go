package core

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigFileName is the name of the config file at the vault root.
const ConfigFileName = "backlinks.yaml"

// Config represents the backlinks.yaml configuration file.
type Config struct {
	Debounce        time.Duration  `yaml:"debounce"`
	SafeTimeout     time.Duration  `yaml:"safe_timeout"`
	StaleRetryDelay time.Duration  `yaml:"stale_retry_delay"`
	StaleDeadline   time.Duration  `yaml:"stale_deadline"`
	SortOrder       SortOrder      `yaml:"sort_order"`
	NotifyOnChange  bool           `yaml:"notify_on_change"`
	LogLevel        string         `yaml:"log_level"`
	Canvas          CanvasConfig   `yaml:"canvas"`
	Exclude         ExcludeConfig  `yaml:"exclude"`
	Resolver        ResolverConfig `yaml:"resolver"`
}

// CanvasConfig holds container-document settings.
type CanvasConfig struct {
	Enabled *bool `yaml:"enabled"` // nil = enabled
}

// ExcludeConfig holds exclusion patterns from the config file.
type ExcludeConfig struct {
	Paths []string `yaml:"paths"`
}

// ResolverConfig holds link resolution settings.
type ResolverConfig struct {
	CacheSize int `yaml:"cache_size"`
}

// DefaultConfig returns the settings used when no config file exists.
func DefaultConfig() Config {
	return Config{
		Debounce:        500 * time.Millisecond,
		SafeTimeout:     30 * time.Second,
		StaleRetryDelay: 100 * time.Millisecond,
		StaleDeadline:   5 * time.Second,
		SortOrder:       SortAlphabetical,
		LogLevel:        "info",
		Resolver:        ResolverConfig{CacheSize: defaultResolverCacheSize},
	}
}

// LoadConfig reads backlinks.yaml from the vault root.
// Returns DefaultConfig and nil error if the file does not exist.
func LoadConfig(vaultPath string) (Config, error) {
	p := filepath.Join(vaultPath, ConfigFileName)
	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return Config{}, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%s: %w", ConfigFileName, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", ConfigFileName, err)
	}
	return cfg.withDefaults(), nil
}

// withDefaults fills zero values with defaults.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Debounce <= 0 {
		c.Debounce = def.Debounce
	}
	if c.SafeTimeout <= 0 {
		c.SafeTimeout = def.SafeTimeout
	}
	if c.StaleRetryDelay <= 0 {
		c.StaleRetryDelay = def.StaleRetryDelay
	}
	if c.StaleDeadline <= 0 {
		c.StaleDeadline = def.StaleDeadline
	}
	if c.SortOrder == "" {
		c.SortOrder = def.SortOrder
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.Resolver.CacheSize <= 0 {
		c.Resolver.CacheSize = def.Resolver.CacheSize
	}
	return c
}

// Validate rejects settings that cannot be applied.
func (c Config) Validate() error {
	for name, d := range map[string]time.Duration{
		"debounce":          c.Debounce,
		"safe_timeout":      c.SafeTimeout,
		"stale_retry_delay": c.StaleRetryDelay,
		"stale_deadline":    c.StaleDeadline,
	} {
		if d < 0 {
			return fmt.Errorf("%s must not be negative: %s", name, d)
		}
	}
	if _, err := ParseSortOrder(string(c.SortOrder)); err != nil {
		return err
	}
	if c.LogLevel != "" {
		if _, err := ParseLogLevel(c.LogLevel); err != nil {
			return err
		}
	}
	return validateGlobPatterns(c.Exclude.Paths)
}

// CanvasEnabled reports whether container documents are indexed.
func (c Config) CanvasEnabled() bool {
	return c.Canvas.Enabled == nil || *c.Canvas.Enabled
}

// Excluded reports whether path matches an exclusion pattern.
func (c Config) Excluded(path string) bool {
	for _, p := range c.Exclude.Paths {
		if globMatch(p, path) {
			return true
		}
	}
	return false
}

// ParseLogLevel maps a level name to a slog.Level.
func ParseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, fmt.Errorf("unknown log level: %s", s)
	}
	return level, nil
}

// validateGlobPatterns checks that none of the patterns use unsupported character classes.
func validateGlobPatterns(patterns []string) error {
	for _, p := range patterns {
		if strings.Contains(p, "[") {
			return fmt.Errorf("unsupported glob pattern (character class): %s", p)
		}
	}
	return nil
}

// globMatch implements SQLite GLOB semantics.
// '*' matches any sequence of characters (including '/').
// '?' matches exactly one character.
// '[' is treated as a literal character (character classes not supported).
func globMatch(pattern, s string) bool {
	return globMatchImpl([]rune(pattern), []rune(s))
}

func globMatchImpl(pattern, s []rune) bool {
	for len(pattern) > 0 {
		switch pattern[0] {
		case '*':
			// Skip consecutive '*'.
			for len(pattern) > 0 && pattern[0] == '*' {
				pattern = pattern[1:]
			}
			if len(pattern) == 0 {
				return true
			}
			// Try matching the rest of the pattern at every position.
			for i := 0; i <= len(s); i++ {
				if globMatchImpl(pattern, s[i:]) {
					return true
				}
			}
			return false
		case '?':
			if len(s) == 0 {
				return false
			}
			pattern = pattern[1:]
			s = s[1:]
		default:
			if len(s) == 0 || pattern[0] != s[0] {
				return false
			}
			pattern = pattern[1:]
			s = s[1:]
		}
	}
	return len(s) == 0
}
