package config

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bawdo/sqldivider/binding"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sqldivider.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func testFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("pattern", "", "")
	fs.Int("max-rows", 0, "")
	fs.String("log-level", "", "")
	return fs
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "mybatis", cfg.Pattern)
	assert.Equal(t, binding.MyBatis, cfg.BindPattern())
	assert.Equal(t, 1000, cfg.MaxRows)
	assert.Equal(t, 10*time.Second, cfg.HandoffTimeout)
	assert.Equal(t, 50*time.Millisecond, cfg.HandoffInterval)
	assert.Equal(t, 128, cfg.DecomposeCacheSize)
	assert.Equal(t, "settings.db", filepath.Base(cfg.SettingsPath))
	assert.Empty(t, cfg.File)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
pattern: jpa
max_rows: 50
handoff_timeout: 2s
log_level: debug
`)
	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, binding.JPA, cfg.BindPattern())
	assert.Equal(t, 50, cfg.MaxRows)
	assert.Equal(t, 2*time.Second, cfg.HandoffTimeout)
	assert.Equal(t, path, cfg.File)
}

func TestLoadFindsFileInWorkingDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultConfigFile), []byte("pattern: dapper\n"), 0o600))
	t.Chdir(dir)

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, binding.Dapper, cfg.BindPattern())
	assert.Equal(t, DefaultConfigFile, cfg.File)
}

func TestPrecedence(t *testing.T) {
	path := writeConfig(t, "pattern: jpa\nmax_rows: 50\nlog_level: info\n")
	t.Setenv("SQLDIVIDER_PATTERN", "dapper")
	t.Setenv("SQLDIVIDER_MAX_ROWS", "70")

	fs := testFlags()
	require.NoError(t, fs.Parse([]string{"--pattern", "log"}))

	cfg, err := Load(path, fs)
	require.NoError(t, err)
	assert.Equal(t, binding.Log, cfg.BindPattern(), "flag beats env")
	assert.Equal(t, 70, cfg.MaxRows, "env beats file")
	assert.Equal(t, "info", cfg.LogLevel, "file beats default")
}

func TestUnsetFlagsDoNotOverride(t *testing.T) {
	path := writeConfig(t, "max_rows: 50\n")
	cfg, err := Load(path, testFlags())
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.MaxRows)
	assert.Equal(t, "mybatis", cfg.Pattern)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"pattern", "pattern: sprintf\n"},
		{"log level", "log_level: loud\n"},
		{"max rows", "max_rows: -1\n"},
		{"timeout", "handoff_timeout: 0s\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content), nil)
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := &Config{LogLevel: "info"}
	l := cfg.NewLogger(&buf)
	l.Debug("hidden")
	l.Info("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestLoggerContext(t *testing.T) {
	l := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	ctx := WithLogger(context.Background(), l)
	assert.Same(t, l, GetLogger(ctx))
	assert.NotNil(t, GetLogger(context.Background()))
}
