package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/config"
)

func loggingProvider(t *testing.T, logging map[string]interface{}) config.Provider {
	t.Helper()
	p, err := config.NewStaticProvider(map[string]interface{}{"logging": logging})
	require.NoError(t, err)
	return p
}

func TestNewSugaredLogger(t *testing.T) {
	t.Run("production json", func(t *testing.T) {
		logger, err := NewSugaredLogger(loggingProvider(t, map[string]interface{}{
			"level":    "info",
			"encoding": "json",
		}))
		require.NoError(t, err)
		assert.NotNil(t, logger)
	})

	t.Run("development console", func(t *testing.T) {
		logger, err := NewSugaredLogger(loggingProvider(t, map[string]interface{}{
			"level":       "debug",
			"development": true,
			"encoding":    "console",
		}))
		require.NoError(t, err)
		assert.NotNil(t, logger)
	})

	t.Run("invalid level", func(t *testing.T) {
		_, err := NewSugaredLogger(loggingProvider(t, map[string]interface{}{
			"level": "loudest",
		}))
		require.Error(t, err)
	})

	t.Run("custom output path", func(t *testing.T) {
		path := t.TempDir() + "/lsproxy.log"
		logger, err := NewSugaredLogger(loggingProvider(t, map[string]interface{}{
			"level":       "info",
			"outputPaths": []string{path},
		}))
		require.NoError(t, err)
		logger.Infow("started")
		require.NoError(t, logger.Sync())

		assert.FileExists(t, path)
	})
}

func TestNewLogger(t *testing.T) {
	sugar, err := NewSugaredLogger(loggingProvider(t, map[string]interface{}{"level": "info"}))
	require.NoError(t, err)
	assert.NotNil(t, NewLogger(sugar))
}
