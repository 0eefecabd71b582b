package controller

import (
	buildmanager "github.com/docsys/docs-lsp/src/docslsp/controller/build-manager"
	docsdaemon "github.com/docsys/docs-lsp/src/docslsp/controller/docs-daemon"
	projectworker "github.com/docsys/docs-lsp/src/docslsp/controller/project-worker"
	"github.com/docsys/docs-lsp/src/docslsp/repository/workers"
	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(docsdaemon.New),
	fx.Provide(buildmanager.New),
	fx.Provide(projectworker.NewFactory),
	fx.Provide(workers.New),
)
