// Package proxy implements the proxy session business logic: spawning the
// language server inside its container and relaying translated traffic
// between the editor and the server.
package proxy

import (
	"context"
	"fmt"
	"io"
	"time"

	tally "github.com/uber-go/tally/v4"
	"go.uber.org/config"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/devcontainer-tools/lsproxy/src/lsproxy/entity"
	"github.com/devcontainer-tools/lsproxy/src/lsproxy/gateway/container"
	"github.com/devcontainer-tools/lsproxy/src/lsproxy/internal/clock"
	"github.com/devcontainer-tools/lsproxy/src/lsproxy/mapper"
	"github.com/devcontainer-tools/lsproxy/src/lsproxy/repository/registry"
)

const (
	// Configuration keys
	_configKeyStalenessSeconds = "proxy.pendingStalenessSeconds"
	_configKeySweepSeconds     = "proxy.sweepIntervalSeconds"

	_defaultStaleness     = 120 * time.Second
	_defaultSweepInterval = 15 * time.Second
)

// Controller orchestrates proxy sessions.
type Controller interface {
	// Session returns the live session for the key, creating it if needed.
	// Creation spawns serverCmd inside the container.
	Session(ctx context.Context, key entity.SessionKey, mapping entity.PathMapping, serverCmd []string) (registry.Session, error)
	// Attach relays an editor-side byte stream through the session until the
	// stream closes or the session stops.
	Attach(ctx context.Context, key entity.SessionKey, mapping entity.PathMapping, serverCmd []string, rwc io.ReadWriteCloser) error
	// TeardownContainer shuts down every session for the container.
	TeardownContainer(ctx context.Context, containerID string) error
	// Snapshots exposes the read-only introspection view of all sessions.
	Snapshots(ctx context.Context) []entity.SessionSnapshot
}

// Params are inbound parameters to initialize a new controller.
type Params struct {
	fx.In

	Config   config.Provider
	Logger   *zap.SugaredLogger
	Runtime  container.Runtime
	Sessions registry.Repository
	Clock    clock.Clock
	Stats    tally.Scope
}

type controller struct {
	runtime       container.Runtime
	sessions      registry.Repository
	clk           clock.Clock
	logger        *zap.SugaredLogger
	stats         tally.Scope
	staleness     time.Duration
	sweepInterval time.Duration
}

// New constructs the proxy session controller.
func New(p Params) (Controller, error) {
	c := &controller{
		runtime:       p.Runtime,
		sessions:      p.Sessions,
		clk:           p.Clock,
		logger:        p.Logger,
		stats:         p.Stats.SubScope("proxy"),
		staleness:     _defaultStaleness,
		sweepInterval: _defaultSweepInterval,
	}

	var stalenessSeconds int64
	if err := p.Config.Get(_configKeyStalenessSeconds).Populate(&stalenessSeconds); err != nil {
		return nil, fmt.Errorf("getting config field %q: %w", _configKeyStalenessSeconds, err)
	}
	if stalenessSeconds > 0 {
		c.staleness = time.Duration(stalenessSeconds) * time.Second
	}

	var sweepSeconds int64
	if err := p.Config.Get(_configKeySweepSeconds).Populate(&sweepSeconds); err != nil {
		return nil, fmt.Errorf("getting config field %q: %w", _configKeySweepSeconds, err)
	}
	if sweepSeconds > 0 {
		c.sweepInterval = time.Duration(sweepSeconds) * time.Second
	}

	return c, nil
}

// Session returns the session for the key, spawning the language server on
// first use. Concurrent callers for the same key share one creation.
func (c *controller) Session(ctx context.Context, key entity.SessionKey, mapping entity.PathMapping, serverCmd []string) (registry.Session, error) {
	return c.sessions.GetOrCreate(ctx, key, func(ctx context.Context) (registry.Session, error) {
		ctx = mapper.ContextWithSessionKey(ctx, key)
		handle, err := c.runtime.Exec(ctx, key.ContainerID, serverCmd)
		if err != nil {
			return nil, err
		}
		c.logger.Infow("spawned language server", "key", key, "command", serverCmd)
		return newSession(key, mapping, handle, c.sessions, c.clk, c.logger, c.stats, c.staleness, c.sweepInterval), nil
	})
}

// Attach binds rwc to the session for the key, creating the session first
// when necessary.
func (c *controller) Attach(ctx context.Context, key entity.SessionKey, mapping entity.PathMapping, serverCmd []string, rwc io.ReadWriteCloser) error {
	sess, err := c.Session(ctx, key, mapping, serverCmd)
	if err != nil {
		return err
	}
	live, ok := sess.(*session)
	if !ok {
		return fmt.Errorf("session for %s is not attachable", key)
	}
	return live.Attach(ctx, rwc)
}

// TeardownContainer is fired on container-stop.
func (c *controller) TeardownContainer(ctx context.Context, containerID string) error {
	return c.sessions.RemoveContainer(ctx, containerID)
}

// Snapshots exposes session state for health-check and diagnostic tooling.
func (c *controller) Snapshots(ctx context.Context) []entity.SessionSnapshot {
	return c.sessions.Snapshots(ctx)
}
