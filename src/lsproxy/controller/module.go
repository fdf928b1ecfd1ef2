package controller

import (
	"github.com/devcontainer-tools/lsproxy/src/lsproxy/controller/proxy"
	"github.com/devcontainer-tools/lsproxy/src/lsproxy/controller/strategy"
	"go.uber.org/fx"
)

// Module provides the service controllers into an Fx application.
var Module = fx.Options(
	fx.Provide(proxy.New),
	fx.Provide(strategy.New),
)
