// Package container provides the gateway used to run language server
// commands inside a target container. The proxy does not manage container
// lifecycle, images, or mounts; it only requires that the named container is
// running and exposes an exec-like primitive.
package container

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/config"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/devcontainer-tools/lsproxy/src/lsproxy/internal/executor"
)

const (
	_configKeyRuntime = "container.runtime"

	// RuntimeAPI selects the Docker Engine API implementation.
	RuntimeAPI = "api"
	// RuntimeCLI selects the docker CLI fallback implementation.
	RuntimeCLI = "cli"
)

// Module is the Fx module for this package.
var Module = fx.Provide(New)

// ExitStatus reports how an exec'd process ended. A stream closure or exit
// is always delivered on the Handle's Done channel, never silently dropped.
type ExitStatus struct {
	Code int
	Err  error
}

// Handle wires a running in-container process to the proxy. Closing the
// handle tears the process down; no orphans survive an editor-side teardown.
type Handle interface {
	Stdin() io.WriteCloser
	Stdout() io.Reader
	Stderr() io.Reader
	// Done delivers exactly one ExitStatus when the process ends.
	Done() <-chan ExitStatus
	Close() error
}

// Runtime executes a command inside a running container and exposes its
// standard streams. Spawn failures surface synchronously as a SpawnError.
type Runtime interface {
	Exec(ctx context.Context, containerID string, cmd []string) (Handle, error)
}

// Params define values used to construct the container runtime.
type Params struct {
	fx.In

	Config   config.Provider
	Executor executor.Executor
	Logger   *zap.SugaredLogger
}

// New selects a Runtime implementation from configuration. The Docker
// Engine API is the default; the CLI fallback shells out to `docker exec`.
func New(p Params) (Runtime, error) {
	var kind string
	if err := p.Config.Get(_configKeyRuntime).Populate(&kind); err != nil {
		return nil, fmt.Errorf("getting config field %q: %w", _configKeyRuntime, err)
	}

	switch kind {
	case RuntimeCLI:
		return NewCLIRuntime(p.Config, p.Executor, p.Logger)
	case RuntimeAPI, "":
		return NewAPIRuntime(p.Logger)
	default:
		return nil, fmt.Errorf("unknown container runtime %q", kind)
	}
}
