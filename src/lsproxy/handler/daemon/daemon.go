// Package daemon implements the lsproxy daemon's control-plane JSON-RPC handlers.
package daemon

import (
	"context"
	"fmt"

	"github.com/gofrs/uuid"
	tally "github.com/uber-go/tally/v4"
	"go.lsp.dev/jsonrpc2"
	"go.uber.org/zap"

	"github.com/devcontainer-tools/lsproxy/src/lsproxy/controller/proxy"
	"github.com/devcontainer-tools/lsproxy/src/lsproxy/controller/strategy"
	"github.com/devcontainer-tools/lsproxy/src/lsproxy/internal/jsonrpcfx"
)

// Handler exposes the daemon's control-plane surface. It exists so the fx
// graph instantiates the connection manager and binds it to the JSON-RPC
// inbound at startup.
type Handler interface {
	ConnectionManager() jsonrpcfx.ConnectionManager
}

type handler struct {
	connectionManager jsonrpcfx.ConnectionManager
}

// New constructs the control-plane handler and registers its connection manager with the JSON-RPC inbound.
func New(proxyCtrl proxy.Controller, strategyCtrl strategy.Controller, jsonrpcmod jsonrpcfx.JSONRPCModule, logger *zap.SugaredLogger, stats tally.Scope) (Handler, error) {
	c := jsonRPCConnectionManager{
		proxy:    proxyCtrl,
		strategy: strategyCtrl,
		logger:   logger,
		stats:    stats.SubScope("json_rpc"),
	}
	if err := jsonrpcmod.RegisterConnectionManager(&c); err != nil {
		return nil, err
	}

	return &handler{connectionManager: &c}, nil
}

func (h *handler) ConnectionManager() jsonrpcfx.ConnectionManager {
	return h.connectionManager
}

type jsonRPCConnectionManager struct {
	proxy    proxy.Controller
	strategy strategy.Controller
	logger   *zap.SugaredLogger
	stats    tally.Scope
}

// NewConnection assigns a fresh UUID to the connection and returns a router bound to it.
func (c *jsonRPCConnectionManager) NewConnection(ctx context.Context, conn *jsonrpc2.Conn) (jsonrpcfx.Router, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("error while creating new connection: %w", err)
	}
	c.stats.Counter("connections").Inc(1)

	r := jsonRPCRouter{
		proxy:    c.proxy,
		strategy: c.strategy,
		uuid:     id,
		logger:   c.logger,
		stats:    c.stats,
	}

	return &r, nil
}

// RemoveConnection cleans up a closed connection. Sessions outlive control
// connections, so there is nothing to tear down here.
func (c *jsonRPCConnectionManager) RemoveConnection(ctx context.Context, id uuid.UUID) {
	c.logger.Debugw("control connection removed", zap.Stringer("uuid", id))
}
