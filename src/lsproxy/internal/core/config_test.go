package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func writeConfigDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, contents := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(contents), 0644))
	}
	return dir
}

func TestNewConfig(t *testing.T) {
	t.Run("loads listed files in order", func(t *testing.T) {
		dir := writeConfigDir(t, map[string]string{
			"meta.yaml": "files:\n  - base.yaml\n  - override.yaml\n",
			"base.yaml": "logging:\n  level: info\njsonrpc:\n  address: 127.0.0.1:27883\n",
			"override.yaml": "logging:\n  level: debug\n",
		})
		t.Setenv("LSPROXY_CONFIG_DIR", dir)

		provider, err := NewConfig()
		require.NoError(t, err)

		var level string
		require.NoError(t, provider.Get("logging.level").Populate(&level))
		assert.Equal(t, "debug", level, "later files must override earlier ones")

		var address string
		require.NoError(t, provider.Get("jsonrpc.address").Populate(&address))
		assert.Equal(t, "127.0.0.1:27883", address)
	})

	t.Run("skips missing files", func(t *testing.T) {
		dir := writeConfigDir(t, map[string]string{
			"meta.yaml": "files:\n  - base.yaml\n  - local.yaml\n",
			"base.yaml": "logging:\n  level: warn\n",
		})
		t.Setenv("LSPROXY_CONFIG_DIR", dir)

		provider, err := NewConfig()
		require.NoError(t, err)

		var level string
		require.NoError(t, provider.Get("logging.level").Populate(&level))
		assert.Equal(t, "warn", level)
	})

	t.Run("expands environment variables", func(t *testing.T) {
		dir := writeConfigDir(t, map[string]string{
			"meta.yaml": "files:\n  - base.yaml\n",
			"base.yaml": "jsonrpc:\n  address: ${TEST_CONTROL_ADDRESS:\"127.0.0.1:0\"}\n",
		})
		t.Setenv("LSPROXY_CONFIG_DIR", dir)
		t.Setenv("TEST_CONTROL_ADDRESS", "127.0.0.1:4242")

		provider, err := NewConfig()
		require.NoError(t, err)

		var address string
		require.NoError(t, provider.Get("jsonrpc.address").Populate(&address))
		assert.Equal(t, "127.0.0.1:4242", address)
	})

	t.Run("no files found", func(t *testing.T) {
		dir := writeConfigDir(t, map[string]string{
			"meta.yaml": "files:\n  - missing.yaml\n",
		})
		t.Setenv("LSPROXY_CONFIG_DIR", dir)

		_, err := NewConfig()
		require.Error(t, err)
	})

	t.Run("missing meta", func(t *testing.T) {
		t.Setenv("LSPROXY_CONFIG_DIR", t.TempDir())
		_, err := NewConfig()
		require.Error(t, err)
	})
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
