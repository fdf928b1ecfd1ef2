package container

import (
	"context"
	"io"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/config"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/devcontainer-tools/lsproxy/src/lsproxy/internal/errors"
	"github.com/devcontainer-tools/lsproxy/src/lsproxy/internal/executor"
)

func staticProvider(t *testing.T, data map[string]interface{}) config.Provider {
	t.Helper()
	p, err := config.NewStaticProvider(data)
	require.NoError(t, err)
	return p
}

func TestNewSelectsRuntime(t *testing.T) {
	t.Run("cli", func(t *testing.T) {
		r, err := New(Params{
			Config:   staticProvider(t, map[string]interface{}{"container": map[string]interface{}{"runtime": "cli"}}),
			Executor: executor.NewExecutor(),
			Logger:   zap.NewNop().Sugar(),
		})
		require.NoError(t, err)
		assert.IsType(t, &cliRuntime{}, r)
	})

	t.Run("api is the default", func(t *testing.T) {
		r, err := New(Params{
			Config:   staticProvider(t, map[string]interface{}{}),
			Executor: executor.NewExecutor(),
			Logger:   zap.NewNop().Sugar(),
		})
		require.NoError(t, err)
		assert.IsType(t, &apiRuntime{}, r)
	})

	t.Run("unknown runtime", func(t *testing.T) {
		_, err := New(Params{
			Config:   staticProvider(t, map[string]interface{}{"container": map[string]interface{}{"runtime": "podman-someday"}}),
			Executor: executor.NewExecutor(),
			Logger:   zap.NewNop().Sugar(),
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown container runtime")
	})
}

func TestNewAPIRuntime(t *testing.T) {
	// Constructing the client reads the environment but does not dial.
	r, err := NewAPIRuntime(zap.NewNop().Sugar())
	require.NoError(t, err)
	assert.NotNil(t, r)
}

func TestCLIRuntimeExec(t *testing.T) {
	// Substituting echo for the container CLI exercises the full process
	// lifecycle without a daemon: the command prints its args and exits 0.
	cfg := staticProvider(t, map[string]interface{}{"container": map[string]interface{}{"cliBinary": "echo"}})
	r, err := NewCLIRuntime(cfg, executor.NewExecutor(), zap.NewNop().Sugar())
	require.NoError(t, err)

	h, err := r.Exec(context.Background(), "c1", []string{"gopls", "serve"})
	require.NoError(t, err)
	defer h.Close()

	out, err := io.ReadAll(h.Stdout())
	require.NoError(t, err)
	assert.Equal(t, "exec -i c1 gopls serve\n", string(out))

	select {
	case status := <-h.Done():
		assert.Zero(t, status.Code)
		assert.NoError(t, status.Err)
	case <-time.After(5 * time.Second):
		t.Fatal("exit status never delivered")
	}
}

func TestCLIRuntimeSpawnFailure(t *testing.T) {
	ex := executor.NewExecutor(executor.WithStartFunc(func(cmd *exec.Cmd) error {
		return exec.ErrNotFound
	}))
	r, err := NewCLIRuntime(staticProvider(t, map[string]interface{}{}), ex, zap.NewNop().Sugar())
	require.NoError(t, err)

	_, err = r.Exec(context.Background(), "c1", []string{"gopls"})
	require.Error(t, err)
	require.True(t, errors.IsSpawnError(err))
	var se *errors.SpawnError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "c1", se.ContainerID)
}

func TestCLIRuntimeCloseIsIdempotent(t *testing.T) {
	cfg := staticProvider(t, map[string]interface{}{"container": map[string]interface{}{"cliBinary": "echo"}})
	r, err := NewCLIRuntime(cfg, executor.NewExecutor(), zap.NewNop().Sugar())
	require.NoError(t, err)

	h, err := r.Exec(context.Background(), "c1", []string{"gopls"})
	require.NoError(t, err)

	require.NoError(t, h.Close())
	require.NoError(t, h.Close())

	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("exit status never delivered after close")
	}
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
