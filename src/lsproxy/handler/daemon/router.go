package daemon

import (
	"context"

	"github.com/gofrs/uuid"
	tally "github.com/uber-go/tally/v4"
	"go.lsp.dev/jsonrpc2"
	"go.uber.org/zap"

	"github.com/devcontainer-tools/lsproxy/src/lsproxy/controller/proxy"
	"github.com/devcontainer-tools/lsproxy/src/lsproxy/controller/strategy"
)

const (
	// MethodClientConfig resolves the integration strategy and editor-facing
	// client configuration for a (server, container) pair.
	MethodClientConfig = "proxy/clientConfig"

	// MethodTeardownContainer shuts down every session belonging to a container.
	MethodTeardownContainer = "proxy/teardownContainer"

	// MethodListSessions returns read-only snapshots of all live sessions.
	MethodListSessions = "proxy/listSessions"
)

type jsonRPCRouter struct {
	proxy    proxy.Controller
	strategy strategy.Controller
	uuid     uuid.UUID
	logger   *zap.SugaredLogger
	stats    tally.Scope
}

// HandleReq handles routing for a single request.
func (r *jsonRPCRouter) HandleReq(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	switch req.Method() {
	case MethodClientConfig:
		return r.ClientConfig(ctx, reply, req)

	case MethodTeardownContainer:
		return r.TeardownContainer(ctx, reply, req)

	case MethodListSessions:
		return r.ListSessions(ctx, reply, req)

	default:
		return jsonrpc2.MethodNotFoundHandler(ctx, reply, req)
	}
}

func (r *jsonRPCRouter) UUID() uuid.UUID {
	return r.uuid
}
