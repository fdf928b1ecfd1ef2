package handler

import (
	"go.uber.org/fx"

	"github.com/devcontainer-tools/lsproxy/src/lsproxy/controller"
	"github.com/devcontainer-tools/lsproxy/src/lsproxy/handler/daemon"
	"github.com/devcontainer-tools/lsproxy/src/lsproxy/repository/registry"
)

// Module provides the lsproxy daemon control plane into an Fx application.
var Module = fx.Options(
	controller.Module,
	fx.Provide(registry.New),
	fx.Provide(daemon.New),
	fx.Invoke(func(h daemon.Handler) {}),
)
