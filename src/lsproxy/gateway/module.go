package gateway

import (
	"go.uber.org/fx"

	"github.com/devcontainer-tools/lsproxy/src/lsproxy/gateway/container"
)

// Module provides the service's outbound gateways into an Fx application.
var Module = fx.Options(
	container.Module,
)
