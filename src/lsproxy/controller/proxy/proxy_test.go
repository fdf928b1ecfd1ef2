package proxy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tally "github.com/uber-go/tally/v4"
	"go.uber.org/config"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"github.com/devcontainer-tools/lsproxy/src/lsproxy/entity"
	"github.com/devcontainer-tools/lsproxy/src/lsproxy/factory"
	"github.com/devcontainer-tools/lsproxy/src/lsproxy/gateway/container"
	"github.com/devcontainer-tools/lsproxy/src/lsproxy/gateway/container/containermock"
	"github.com/devcontainer-tools/lsproxy/src/lsproxy/internal/clock"
	"github.com/devcontainer-tools/lsproxy/src/lsproxy/internal/errors"
	"github.com/devcontainer-tools/lsproxy/src/lsproxy/repository/registry"
)

func newController(t *testing.T, runtime container.Runtime, cfg map[string]interface{}) Controller {
	t.Helper()
	provider, err := config.NewStaticProvider(cfg)
	require.NoError(t, err)

	ctrl, err := New(Params{
		Config:   provider,
		Logger:   zap.NewNop().Sugar(),
		Runtime:  runtime,
		Sessions: registry.New(tally.NewTestScope("testing", nil), zap.NewNop().Sugar()),
		Clock:    clock.New(),
		Stats:    tally.NewTestScope("testing", nil),
	})
	require.NoError(t, err)
	return ctrl
}

func TestNewReadsTimingConfig(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := newController(t, containermock.NewMockRuntime(ctrl), map[string]interface{}{
		"proxy": map[string]interface{}{
			"pendingStalenessSeconds": 30,
			"sweepIntervalSeconds":    5,
		},
	})

	impl := c.(*controller)
	assert.Equal(t, 30*time.Second, impl.staleness)
	assert.Equal(t, 5*time.Second, impl.sweepInterval)
}

func TestNewDefaultsTiming(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := newController(t, containermock.NewMockRuntime(ctrl), map[string]interface{}{})

	impl := c.(*controller)
	assert.Equal(t, _defaultStaleness, impl.staleness)
	assert.Equal(t, _defaultSweepInterval, impl.sweepInterval)
}

func TestSessionSpawnsOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	runtime := containermock.NewMockRuntime(ctrl)
	key := factory.SessionKey(1)
	serverCmd := []string{"gopls", "serve"}

	runtime.EXPECT().
		Exec(gomock.Any(), key.ContainerID, serverCmd).
		DoAndReturn(func(ctx context.Context, containerID string, cmd []string) (container.Handle, error) {
			return newFakeHandle(), nil
		}).
		Times(1)

	c := newController(t, runtime, map[string]interface{}{})

	first, err := c.Session(context.Background(), key, factory.PathMapping(), serverCmd)
	require.NoError(t, err)
	t.Cleanup(func() { first.Shutdown(context.Background()) })

	second, err := c.Session(context.Background(), key, factory.PathMapping(), serverCmd)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, key, first.Entity().Key)
	assert.Equal(t, entity.StateStarting, first.Entity().State)
}

func TestSessionSpawnFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	runtime := containermock.NewMockRuntime(ctrl)
	key := factory.SessionKey(2)

	runtime.EXPECT().
		Exec(gomock.Any(), key.ContainerID, gomock.Any()).
		Return(nil, &errors.SpawnError{ContainerID: key.ContainerID, Command: []string{"gopls"}, Err: context.DeadlineExceeded})

	c := newController(t, runtime, map[string]interface{}{})

	_, err := c.Session(context.Background(), key, factory.PathMapping(), []string{"gopls"})
	require.Error(t, err)
	assert.True(t, errors.IsSpawnError(err))
}

func TestTeardownContainer(t *testing.T) {
	ctrl := gomock.NewController(t)
	runtime := containermock.NewMockRuntime(ctrl)
	key := factory.SessionKey(3)

	runtime.EXPECT().
		Exec(gomock.Any(), key.ContainerID, gomock.Any()).
		DoAndReturn(func(ctx context.Context, containerID string, cmd []string) (container.Handle, error) {
			return newFakeHandle(), nil
		})

	c := newController(t, runtime, map[string]interface{}{})

	sess, err := c.Session(context.Background(), key, factory.PathMapping(), []string{"gopls"})
	require.NoError(t, err)
	require.Len(t, c.Snapshots(context.Background()), 1)

	require.NoError(t, c.TeardownContainer(context.Background(), key.ContainerID))
	assert.Empty(t, c.Snapshots(context.Background()))
	assert.Equal(t, entity.StateStopped, sess.Entity().State)
}
