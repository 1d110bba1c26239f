package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir moves into an empty directory so no stray .env or lifesync.yaml
// is picked up.
func chdir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t)

	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, 4000, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, int64(4096), cfg.MaxMessageSize)
	assert.Equal(t, 10*time.Second, cfg.ShutdownWait)
	assert.Equal(t, GridConfig{Width: 40, Height: 40, Rule: "B3/S23"}, cfg.Grid)
}

func TestLoad_Env(t *testing.T) {
	chdir(t)
	t.Setenv("PORT", "5000")
	t.Setenv("GRID_WIDTH", "10")
	t.Setenv("GRID_TICK", "250ms")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.Port)
	assert.Equal(t, 10, cfg.Grid.Width)
	assert.Equal(t, 250*time.Millisecond, cfg.Grid.Tick)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
}

func TestLoad_FlagsOverrideEnv(t *testing.T) {
	chdir(t)
	t.Setenv("PORT", "5000")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	Flags(fs)
	require.NoError(t, fs.Parse([]string{"--port", "6000", "--log-level", "warn"}))

	cfg, err := Load(fs)
	require.NoError(t, err)
	assert.Equal(t, 6000, cfg.Port)
	assert.Equal(t, slog.LevelWarn, cfg.SlogLevel())
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := chdir(t)
	path := filepath.Join(dir, "lifesync.yaml")
	require.NoError(t, os.WriteFile(path, []byte("grid:\n  width: 8\n  height: 6\n  rule: B36/S23\n"), 0o644))

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Grid.Width)
	assert.Equal(t, 6, cfg.Grid.Height)
	assert.Equal(t, "B36/S23", cfg.Grid.Rule)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := chdir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("GRID_HEIGHT=12\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("GRID_HEIGHT") })

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.Grid.Height)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	chdir(t)
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	Flags(fs)
	require.NoError(t, fs.Parse([]string{"--config", "nope.yaml"}))

	_, err := Load(fs)
	assert.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "port", env: map[string]string{"PORT": "70000"}},
		{name: "width", env: map[string]string{"GRID_WIDTH": "0"}},
		{name: "tick", env: map[string]string{"GRID_TICK": "-1s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chdir(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(nil)
			assert.Error(t, err)
		})
	}
}
