package app

import (
	"context"
	"time"

	tally "github.com/uber-go/tally"
	ideclient "github.com/docsys/docs-lsp/src/docslsp/gateway/ide-client"
	"github.com/docsys/docs-lsp/src/docslsp/handler"
	"github.com/docsys/docs-lsp/src/docslsp/internal/core"
	"github.com/docsys/docs-lsp/src/docslsp/internal/executor"
	"github.com/docsys/docs-lsp/src/docslsp/internal/fs"
	"github.com/docsys/docs-lsp/src/docslsp/internal/jsonrpcfx"
	"github.com/docsys/docs-lsp/src/docslsp/internal/serverinfofile"
	"go.uber.org/fx"
)

// Module defines the docs-lsp daemon application module.
var Module = fx.Options(
	handler.Module, // inbounds
	jsonrpcfx.Module,
	fs.Module,
	executor.Module,
	serverinfofile.Module,
	core.ConfigModule,
	core.LoggerModule,
	fx.Provide(ideclient.New), // outbounds
	fx.Provide(func(lc fx.Lifecycle) tally.Scope {
		rs, closer := tally.NewRootScope(tally.ScopeOptions{
			Tags: map[string]string{
				"service": "docs-lsp",
			},
		}, 1*time.Second)

		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return closer.Close()
			},
		})

		return rs
	}),
	fx.Decorate(decorateEnvContext),
	fx.Decorate(decorateConfigProvider),
	fx.Provide(func() Context {
		return Context{
			Environment:        "local",
			RuntimeEnvironment: "local",
		}
	}),
)
