package main

import (
	"context"
	"os"

	"github.com/docsys/docs-lsp/src/docslsp/app"
	"github.com/docsys/docs-lsp/src/docslsp/worker"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// The same binary serves both roles: with no arguments it runs the shared
// daemon, and with the build-worker subcommand it runs a single project
// worker speaking framed messages over stdin/stdout.
const _workerSubcommand = "build-worker"

func opts() fx.Option {
	return fx.Options(
		app.Module,
	)
}

func main() {
	if len(os.Args) > 1 && os.Args[1] == _workerSubcommand {
		os.Exit(runWorker())
	}

	fx.New(opts()).Run()
}

// runWorker serves one build worker over stdin/stdout.
// Logs go to stderr only, since stdout carries the framed protocol.
func runWorker() int {
	logger := newWorkerLogger()
	defer logger.Sync()

	if err := worker.Run(context.Background(), os.Stdin, os.Stdout, logger); err != nil {
		logger.Errorw("worker terminated", "error", err)
		return 1
	}
	return 0
}

func newWorkerLogger() *zap.SugaredLogger {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop().Sugar()
	}
	return logger.Sugar()
}
