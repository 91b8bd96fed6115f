package core

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_NotFound(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.True(t, cfg.CanvasEnabled())
}

func TestLoadConfig_Valid(t *testing.T) {
	dir := t.TempDir()
	content := `debounce: 250ms
safe_timeout: 2s
stale_deadline: 1s
sort_order: byModifiedTime
notify_on_change: true
log_level: debug
canvas:
  enabled: false
exclude:
  paths:
    - "daily/*"
    - "templates/*"
resolver:
  cache_size: 16
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(content), 0o644))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, cfg.Debounce)
	assert.Equal(t, 2*time.Second, cfg.SafeTimeout)
	assert.Equal(t, 100*time.Millisecond, cfg.StaleRetryDelay, "unset keys keep defaults")
	assert.Equal(t, time.Second, cfg.StaleDeadline)
	assert.Equal(t, SortByModifiedTime, cfg.SortOrder)
	assert.True(t, cfg.NotifyOnChange)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.False(t, cfg.CanvasEnabled())
	assert.Equal(t, []string{"daily/*", "templates/*"}, cfg.Exclude.Paths)
	assert.Equal(t, 16, cfg.Resolver.CacheSize)
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(":::invalid"), 0o644))
	_, err := LoadConfig(dir)
	assert.Error(t, err)
}

func TestLoadConfig_Empty(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(""), 0o644))
	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfig_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown sort order", "sort_order: byName\n"},
		{"negative debounce", "debounce: -1s\n"},
		{"unknown log level", "log_level: loud\n"},
		{"bracket pattern", "exclude:\n  paths: [\"[abc]/*\"]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(tt.content), 0o644))
			_, err := LoadConfig(dir)
			assert.Error(t, err)
		})
	}
}

func TestConfigExcluded(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Exclude.Paths = []string{"daily/*", "*.excalidraw.md"}

	assert.True(t, cfg.Excluded("daily/2024-01-01.md"))
	assert.True(t, cfg.Excluded("art/sketch.excalidraw.md"))
	assert.False(t, cfg.Excluded("notes/daily.md"))
}

func TestParseLogLevel(t *testing.T) {
	level, err := ParseLogLevel("warn")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, level)

	_, err = ParseLogLevel("verbose")
	assert.Error(t, err)
}

func TestGlobMatch(t *testing.T) {
	tests := []struct {
		pattern string
		s       string
		want    bool
	}{
		{"Daily/*", "Daily/2024.md", true},
		{"Daily/*", "Daily/sub/x.md", true},
		{"Daily/*", "Other/x.md", false},
		{"Daily/*", "daily/2024.md", false}, // case-sensitive
		{"*", "anything", true},
		{"*", "", true},
		{"?", "a", true},
		{"?", "", false},
		{"?", "ab", false},
		{"a*b", "ab", true},
		{"a*b", "axyzb", true},
		{"a*b", "axyzc", false},
		{"*.md", "test.md", true},
		{"*.md", "dir/test.md", true},
		{"exact", "exact", true},
		{"exact", "exactx", false},
		{"[literal", "[literal", true}, // '[' treated as literal
		{"a?c", "abc", true},
		{"a?c", "ac", false},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+"_"+tt.s, func(t *testing.T) {
			assert.Equal(t, tt.want, globMatch(tt.pattern, tt.s))
		})
	}
}
