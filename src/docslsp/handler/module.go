package handler

import (
	controller "github.com/docsys/docs-lsp/src/docslsp/controller"
	docsdaemonctrl "github.com/docsys/docs-lsp/src/docslsp/controller/docs-daemon"
	handler "github.com/docsys/docs-lsp/src/docslsp/handler/docs-daemon"
	"github.com/docsys/docs-lsp/src/docslsp/repository/session"
	"go.uber.org/fx"
)

// Module provides the docs-lsp daemon server into an Fx application.
var Module = fx.Options(
	controller.Module,
	fx.Provide(session.New),
	fx.Provide(handler.New),
	fx.Invoke(outputProcessInfo),
	fx.Invoke(func(m handler.Handler) {}),
	fx.Invoke(func(c docsdaemonctrl.Controller) {}),
)
