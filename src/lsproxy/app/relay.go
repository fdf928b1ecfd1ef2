package app

import (
	"context"
	"io"
	"os"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/devcontainer-tools/lsproxy/src/lsproxy/controller"
	"github.com/devcontainer-tools/lsproxy/src/lsproxy/controller/proxy"
	"github.com/devcontainer-tools/lsproxy/src/lsproxy/controller/strategy"
	"github.com/devcontainer-tools/lsproxy/src/lsproxy/entity"
	"github.com/devcontainer-tools/lsproxy/src/lsproxy/gateway"
	"github.com/devcontainer-tools/lsproxy/src/lsproxy/internal/clock"
	"github.com/devcontainer-tools/lsproxy/src/lsproxy/internal/core"
	"github.com/devcontainer-tools/lsproxy/src/lsproxy/internal/executor"
	"github.com/devcontainer-tools/lsproxy/src/lsproxy/internal/fs"
	"github.com/devcontainer-tools/lsproxy/src/lsproxy/repository/registry"
)

// RelayOptions carries the identity of one relay invocation, parsed from the
// command line the editor was configured with.
type RelayOptions struct {
	ContainerID string
	ServerName  string
	HostRoot    string
}

// RelayModule assembles the reduced application used by `lsproxy relay`.
// It binds the process's stdin/stdout to a proxy session and exits when the
// editor closes the stream or the session stops. Stdout carries only LSP
// frames; logs go to stderr.
func RelayModule(opts RelayOptions) fx.Option {
	return fx.Options(
		gateway.Module,
		controller.Module,
		fx.Provide(registry.New),
		fs.Module,
		executor.Module,
		clock.Module,
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
		fx.Supply(opts),
		fx.Invoke(runRelay),
	)
}

// RelayParams are the dependencies of the relay runner.
type RelayParams struct {
	fx.In

	Lifecycle  fx.Lifecycle
	Shutdowner fx.Shutdowner
	Options    RelayOptions
	Proxy      proxy.Controller
	Strategy   strategy.Controller
	Logger     *zap.SugaredLogger
}

func runRelay(p RelayParams) {
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go relayLoop(p)
			return nil
		},
	})
}

func relayLoop(p RelayParams) {
	// The hook context expires once startup completes; the relay itself is
	// bounded by the editor stream, not by a deadline.
	ctx := context.Background()

	key := entity.SessionKey{
		ContainerID: p.Options.ContainerID,
		ServerName:  p.Options.ServerName,
	}
	mapping, err := p.Strategy.Mapping(p.Options.HostRoot)
	if err != nil {
		p.Logger.Errorw("resolving path mapping", "key", key, "error", err)
		p.Shutdowner.Shutdown()
		return
	}

	serverCmd := p.Strategy.ServerCommand(p.Options.ServerName)
	if err := p.Proxy.Attach(ctx, key, mapping, serverCmd, stdioStream{}); err != nil {
		p.Logger.Warnw("relay ended", "key", key, "error", err)
	}
	p.Shutdowner.Shutdown()
}

// stdioStream adapts the process's standard streams to the session's
// editor-side ReadWriteCloser.
type stdioStream struct{}

func (stdioStream) Read(b []byte) (int, error)  { return os.Stdin.Read(b) }
func (stdioStream) Write(b []byte) (int, error) { return os.Stdout.Write(b) }

func (stdioStream) Close() error {
	// Leave stdout open so a final in-flight frame is not truncated.
	return os.Stdin.Close()
}

var _ io.ReadWriteCloser = stdioStream{}
