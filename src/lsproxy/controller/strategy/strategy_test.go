package strategy

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/config"
	"go.uber.org/fx/fxtest"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/devcontainer-tools/lsproxy/src/lsproxy/entity"
	"github.com/devcontainer-tools/lsproxy/src/lsproxy/internal/fs"
)

func newTestController(t *testing.T, cfg map[string]interface{}) (Controller, *fxtest.Lifecycle) {
	t.Helper()
	provider, err := config.NewStaticProvider(map[string]interface{}{"strategy": cfg})
	require.NoError(t, err)

	lc := fxtest.NewLifecycle(t)
	ctrl, err := New(Params{
		Lifecycle: lc,
		Config:    provider,
		Logger:    zap.NewNop().Sugar(),
		FS:        fs.New(),
	})
	require.NoError(t, err)
	return ctrl, lc
}

func TestSelect(t *testing.T) {
	ctx := context.Background()

	t.Run("proxied builds relay client config", func(t *testing.T) {
		ctrl, _ := newTestController(t, map[string]interface{}{
			"servers": map[string]interface{}{
				"gopls": map[string]interface{}{"strategy": "proxied"},
			},
		})

		st, err := ctrl.Select(ctx, "gopls", "0123456789abcdef", "/home/user/project")
		require.NoError(t, err)
		assert.Equal(t, entity.StrategyProxied, st.Kind)
		require.NotNil(t, st.Client)
		assert.Equal(t, []string{"lsproxy", "relay", "--container", "0123456789abcdef", "--server", "gopls", "--root", "/home/user/project"}, st.Client.Command)
		assert.Equal(t, "/home/user/project", st.Client.RootDir)
		assert.Equal(t, "gopls-0123456789ab", st.Client.ClientName)
	})

	t.Run("direct has no client config", func(t *testing.T) {
		ctrl, _ := newTestController(t, map[string]interface{}{
			"servers": map[string]interface{}{
				"clangd": map[string]interface{}{"strategy": "direct"},
			},
		})

		st, err := ctrl.Select(ctx, "clangd", "c1", "/home/user/project")
		require.NoError(t, err)
		assert.Equal(t, entity.StrategyDirect, st.Kind)
		assert.Nil(t, st.Client)
	})

	t.Run("unknown server uses default", func(t *testing.T) {
		ctrl, _ := newTestController(t, map[string]interface{}{"default": "direct"})

		st, err := ctrl.Select(ctx, "unheard-of", "c1", "/home/user/project")
		require.NoError(t, err)
		assert.Equal(t, entity.StrategyDirect, st.Kind)
	})

	t.Run("default falls back to proxied", func(t *testing.T) {
		ctrl, _ := newTestController(t, map[string]interface{}{})

		st, err := ctrl.Select(ctx, "unheard-of", "c1", "/home/user/project")
		require.NoError(t, err)
		assert.Equal(t, entity.StrategyProxied, st.Kind)
	})

	t.Run("result is cached per server and container", func(t *testing.T) {
		ctrl, _ := newTestController(t, map[string]interface{}{})

		first, err := ctrl.Select(ctx, "gopls", "c1", "/home/user/project")
		require.NoError(t, err)
		second, err := ctrl.Select(ctx, "gopls", "c1", "/somewhere/else")
		require.NoError(t, err)
		assert.Equal(t, first, second, "a cached selection must not re-resolve")

		other, err := ctrl.Select(ctx, "gopls", "c2", "/home/user/project")
		require.NoError(t, err)
		assert.NotEqual(t, first.Client.ClientName, other.Client.ClientName)
	})
}

func TestServerCommand(t *testing.T) {
	ctrl, _ := newTestController(t, map[string]interface{}{
		"servers": map[string]interface{}{
			"gopls": map[string]interface{}{"command": []string{"gopls", "serve"}},
		},
	})

	assert.Equal(t, []string{"gopls", "serve"}, ctrl.ServerCommand("gopls"))
	assert.Equal(t, []string{"rust-analyzer"}, ctrl.ServerCommand("rust-analyzer"))
}

func TestMapping(t *testing.T) {
	ctrl, _ := newTestController(t, map[string]interface{}{"containerRoot": "/workspace"})

	m, err := ctrl.Mapping("/home/user/project/")
	require.NoError(t, err)
	assert.Equal(t, entity.PathMapping{HostRoot: "/home/user/project", ContainerRoot: "/workspace"}, m)
}

func TestPolicyFileReload(t *testing.T) {
	dir := t.TempDir()
	policyPath := filepath.Join(dir, "policy.yaml")
	require.NoError(t, os.WriteFile(policyPath, []byte("gopls:\n  strategy: direct\n"), 0644))

	ctrl, lc := newTestController(t, map[string]interface{}{
		"policyFile": policyPath,
	})
	lc.RequireStart()
	defer lc.RequireStop()

	ctx := context.Background()
	st, err := ctrl.Select(ctx, "gopls", "c1", "/home/user/project")
	require.NoError(t, err)
	assert.Equal(t, entity.StrategyDirect, st.Kind)

	require.NoError(t, os.WriteFile(policyPath, []byte("gopls:\n  strategy: proxied\n"), 0644))

	assert.Eventually(t, func() bool {
		st, err := ctrl.Select(ctx, "gopls", "c1", "/home/user/project")
		return err == nil && st.Kind == entity.StrategyProxied
	}, 3*time.Second, 50*time.Millisecond, "rewriting the policy file must invalidate cached selections")
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
