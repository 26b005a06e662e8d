package config

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "viz.measurements", cfg.NATSSubjectPrefix)
	assert.Equal(t, 1200.0, cfg.CanvasWidth)
	assert.Equal(t, 800.0, cfg.CanvasHeight)
	assert.Equal(t, []string{"localhost:5173", "localhost:3000"}, cfg.OriginHosts())
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("CANVAS_WIDTH", "640")
	t.Setenv("ALLOWED_ORIGINS", " a.example , ,b.example")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 640.0, cfg.CanvasWidth)
	assert.Equal(t, []string{"a.example", "b.example"}, cfg.Origins())
	assert.Equal(t, []string{"a.example", "b.example"}, cfg.OriginHosts())
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
}

func TestLoad_InvalidPort(t *testing.T) {
	t.Setenv("PORT", "eighty")
	_, err := Load()
	assert.Error(t, err)
}
