package injector

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/gamecore/internal/core/config"
	"github.com/zeusync/gamecore/internal/core/observability/log"
)

func TestNewApp(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		app, err := NewApp(context.Background(), "")
		require.NoError(t, err)
		t.Cleanup(func() { _ = app.Engine.Close() })

		assert.Equal(t, config.Default().Tick.Rate, app.Engine.Loop().Rate())
		assert.Nil(t, app.Inspector)
		assert.NotNil(t, app.Engine.Metrics())
	})

	t.Run("inspector enabled", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "gamecore.yaml")
		require.NoError(t, os.WriteFile(path, []byte("tick:\n  rate: 60\nserver:\n  enabled: true\n  addr: 127.0.0.1:0\nlog:\n  level: debug\n"), 0o600))

		app, err := NewApp(context.Background(), ConfigPath(path))
		require.NoError(t, err)
		t.Cleanup(func() { _ = app.Engine.Close() })

		assert.Equal(t, 60, app.Engine.Loop().Rate())
		assert.NotNil(t, app.Inspector)
		assert.Equal(t, log.LevelDebug, app.Logger.GetLevel())
	})

	t.Run("invalid", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "gamecore.yaml")
		require.NoError(t, os.WriteFile(path, []byte("physics:\n  backend: havok\n"), 0o600))

		_, err := NewApp(context.Background(), ConfigPath(path))
		assert.ErrorIs(t, err, config.ErrInvalid)
	})
}

func TestProvideLoggerFallsBackToInfo(t *testing.T) {
	cfg := config.Default()
	cfg.Log.Level = "verbose"
	assert.Equal(t, log.LevelInfo, ProvideLogger(cfg).GetLevel())
}
