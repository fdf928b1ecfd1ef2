package app

import (
	"context"
	"time"

	tally "github.com/uber-go/tally/v4"
	"go.uber.org/fx"

	"github.com/devcontainer-tools/lsproxy/src/lsproxy/gateway"
	"github.com/devcontainer-tools/lsproxy/src/lsproxy/handler"
	"github.com/devcontainer-tools/lsproxy/src/lsproxy/internal/clock"
	"github.com/devcontainer-tools/lsproxy/src/lsproxy/internal/core"
	"github.com/devcontainer-tools/lsproxy/src/lsproxy/internal/executor"
	"github.com/devcontainer-tools/lsproxy/src/lsproxy/internal/fs"
	"github.com/devcontainer-tools/lsproxy/src/lsproxy/internal/jsonrpcfx"
	"github.com/devcontainer-tools/lsproxy/src/lsproxy/internal/serverinfofile"
)

// Module defines the lsproxy daemon application module.
var Module = fx.Options(
	gateway.Module, // outbounds
	handler.Module, // inbounds
	jsonrpcfx.Module,
	fs.Module,
	executor.Module,
	clock.Module,
	serverinfofile.Module,
	core.ConfigModule,
	core.LoggerModule,
	fx.Provide(newRootScope),
	fx.Decorate(decorateEnvContext),
	fx.Decorate(decorateConfigProvider),
	fx.Provide(func() Context {
		return Context{
			Environment:        EnvLocal,
			RuntimeEnvironment: EnvLocal,
		}
	}),
)

func newRootScope(lc fx.Lifecycle) tally.Scope {
	rs, closer := tally.NewRootScope(tally.ScopeOptions{
		Tags: map[string]string{
			"service": "lsproxy-daemon",
		},
	}, 1*time.Second)

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return closer.Close()
		},
	})

	return rs
}
