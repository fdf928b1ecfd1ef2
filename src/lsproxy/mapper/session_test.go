package mapper

import (
	"context"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devcontainer-tools/lsproxy/src/lsproxy/entity"
	"github.com/devcontainer-tools/lsproxy/src/lsproxy/internal/errors"
)

func sampleSession() *entity.ProxySession {
	return &entity.ProxySession{
		UUID: uuid.Must(uuid.NewV4()),
		Key:  entity.SessionKey{ContainerID: "c1", ServerName: "gopls"},
		Mapping: entity.PathMapping{
			HostRoot:      "/home/user/project",
			ContainerRoot: "/workspace",
		},
		State:     entity.StateReady,
		StartedAt: time.Now().Truncate(time.Second),
	}
}

func TestSessionModelRoundTrip(t *testing.T) {
	in := sampleSession()

	m := SessionToModel(in)
	out, err := ModelToSession(m)
	require.NoError(t, err)

	assert.Equal(t, in, out)
}

func TestContextSessionKey(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		key := entity.SessionKey{ContainerID: "c1", ServerName: "gopls"}
		ctx := ContextWithSessionKey(context.Background(), key)

		got, err := ContextToSessionKey(ctx)
		require.NoError(t, err)
		assert.Equal(t, key, got)
	})

	t.Run("missing key", func(t *testing.T) {
		_, err := ContextToSessionKey(context.Background())
		var nf *errors.NoSessionFoundError
		require.ErrorAs(t, err, &nf)
	})
}
