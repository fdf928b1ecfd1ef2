package mapper

import (
	"context"

	"github.com/devcontainer-tools/lsproxy/src/lsproxy/entity"
	"github.com/devcontainer-tools/lsproxy/src/lsproxy/internal/errors"
	"github.com/devcontainer-tools/lsproxy/src/lsproxy/model"
)

// SessionToModel maps a ProxySession entity to its model equivalent.
func SessionToModel(s *entity.ProxySession) *model.Session {
	return &model.Session{
		UUID:          s.UUID,
		ContainerID:   s.Key.ContainerID,
		ServerName:    s.Key.ServerName,
		HostRoot:      s.Mapping.HostRoot,
		ContainerRoot: s.Mapping.ContainerRoot,
		State:         string(s.State),
		StartedAt:     s.StartedAt,
	}
}

// ModelToSession maps a model Session to its entity equivalent.
func ModelToSession(m *model.Session) (*entity.ProxySession, error) {
	return &entity.ProxySession{
		UUID: m.UUID,
		Key: entity.SessionKey{
			ContainerID: m.ContainerID,
			ServerName:  m.ServerName,
		},
		Mapping: entity.PathMapping{
			HostRoot:      m.HostRoot,
			ContainerRoot: m.ContainerRoot,
		},
		State:     entity.SessionState(m.State),
		StartedAt: m.StartedAt,
	}, nil
}

// ContextToSessionKey extracts the session key from a context.
func ContextToSessionKey(c context.Context) (entity.SessionKey, error) {
	k, ok := c.Value(entity.SessionContextKey).(entity.SessionKey)
	if !ok {
		return entity.SessionKey{}, &errors.NoSessionFoundError{}
	}
	return k, nil
}

// ContextWithSessionKey stamps the session key onto a context for downstream logging and routing.
func ContextWithSessionKey(c context.Context, k entity.SessionKey) context.Context {
	return context.WithValue(c, entity.SessionContextKey, k)
}
