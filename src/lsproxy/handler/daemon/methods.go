package daemon

import (
	"context"

	"go.lsp.dev/jsonrpc2"

	"github.com/devcontainer-tools/lsproxy/src/lsproxy/mapper"
)

// ClientConfig extracts entity.ClientConfigRequest from the request and
// resolves the integration strategy for the named server and container.
func (r *jsonRPCRouter) ClientConfig(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	params, err := mapper.RequestToClientConfigRequest(req)
	if err != nil {
		return reply(ctx, nil, err)
	}

	result, err := r.strategy.Select(ctx, params.Server, params.Container, params.HostRoot)
	if err != nil {
		return reply(ctx, nil, err)
	}

	r.stats.Counter("client_config").Inc(1)
	return reply(ctx, result, nil)
}

// TeardownContainer shuts down all sessions for the container named in the
// request. The editor integration sends this when a container stops.
func (r *jsonRPCRouter) TeardownContainer(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	params, err := mapper.RequestToTeardownContainerRequest(req)
	if err != nil {
		return reply(ctx, nil, err)
	}

	err = r.proxy.TeardownContainer(ctx, params.Container)
	if err == nil {
		r.stats.Counter("teardown_container").Inc(1)
	}
	return reply(ctx, nil, err)
}

// ListSessions returns snapshots of all live sessions for diagnostics.
func (r *jsonRPCRouter) ListSessions(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	return reply(ctx, r.proxy.Snapshots(ctx), nil)
}
