package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestLoad_YAML(t *testing.T) {
	p := writeTempFile(t, "cfg.yaml", "log_level: debug\nlog_dispatch: true\njournal: trace.db\n")

	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, Config{LogLevel: "debug", LogDispatch: true, Journal: "trace.db"}, cfg)
}

func TestLoad_JSON(t *testing.T) {
	p := writeTempFile(t, "cfg.json", `{"freeze_check":true,"metrics_namespace":"app"}`)

	cfg, err := Load(p)
	require.NoError(t, err)
	assert.True(t, cfg.FreezeCheck)
	assert.Equal(t, "app", cfg.MetricsNamespace)
}

func TestLoad_TOML(t *testing.T) {
	p := writeTempFile(t, "cfg.toml", "log_level = \"warn\"\njournal = \"/tmp/j.db\"\n")

	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "/tmp/j.db", cfg.Journal)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		path    func(t *testing.T) string
		wantErr string
	}{
		{"empty path", func(*testing.T) string { return "" }, "empty config path"},
		{"missing file", func(*testing.T) string { return "/definitely/not/here.yaml" }, "read config"},
		{"bad yaml", func(t *testing.T) string { return writeTempFile(t, "bad.yaml", "log_level: [\n") }, "parse yaml"},
		{"bad json", func(t *testing.T) string { return writeTempFile(t, "bad.json", `{"journal":}`) }, "parse json"},
		{"bad toml", func(t *testing.T) string { return writeTempFile(t, "bad.toml", "journal\n") }, "parse toml"},
		{"unknown extension", func(t *testing.T) string { return writeTempFile(t, "cfg.ini", "x=1") }, "unsupported config extension"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.path(t))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadOrDefault(t *testing.T) {
	cfg, err := LoadOrDefault("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	p := writeTempFile(t, "cfg.yaml", "journal: run.db\n")
	cfg, err = LoadOrDefault(p)
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "statecore", cfg.MetricsNamespace)
	assert.Equal(t, "run.db", cfg.Journal)
}

func TestLoadOrDefault_Invalid(t *testing.T) {
	p := writeTempFile(t, "cfg.yaml", "log_level: loud\n")

	_, err := LoadOrDefault(p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `log_level "loud"`)
}

func TestValidate_Namespace(t *testing.T) {
	cfg := Default()
	cfg.MetricsNamespace = "my-app"
	assert.Error(t, cfg.Validate())
}

func TestMerge_KeepsDefaultsForZeroFields(t *testing.T) {
	merged := Default().Merge(Config{FreezeCheck: true})
	assert.Equal(t, "info", merged.LogLevel)
	assert.True(t, merged.FreezeCheck)
	assert.False(t, merged.LogDispatch)
}

func TestLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, Config{LogLevel: "DEBUG"}.Level())
	assert.Equal(t, slog.LevelWarn, Config{LogLevel: "warning"}.Level())
	assert.Equal(t, slog.LevelError, Config{LogLevel: "error"}.Level())
	assert.Equal(t, slog.LevelInfo, Config{}.Level())
	assert.Equal(t, slog.LevelInfo, Config{LogLevel: "nonsense"}.Level())
}
