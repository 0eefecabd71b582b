package worker

import (
	"context"
	stderrors "errors"
	"io"

	"github.com/docsys/docs-lsp/src/docslsp/entity"
	"github.com/docsys/docs-lsp/src/docslsp/internal/executor"
	"github.com/docsys/docs-lsp/src/docslsp/internal/wire"
	"go.uber.org/zap"
)

// Run drives the worker main loop over the given streams until the peer
// disconnects or sends worker/exit. It is the entrypoint of the build-worker
// subcommand; in tests it can be run against in-memory pipes.
func Run(ctx context.Context, in io.Reader, out io.Writer, logger *zap.SugaredLogger) error {
	writer := wire.NewWriter(out)
	notify := func(method string, params interface{}) {
		msg, err := wire.NewNotification(method, params)
		if err == nil {
			err = writer.Write(msg)
		}
		if err != nil {
			logger.Warnw("sending notification", "method", method, "error", err)
		}
	}

	engine := NewCLIEngine(executor.NewExecutor(executor.WithLogger(logger)), notify, logger)
	registry := NewRegistry(engine, logger)
	return Serve(ctx, in, writer, registry, logger)
}

// Serve pumps inbound frames through the registry and writes replies.
func Serve(ctx context.Context, in io.Reader, writer *wire.Writer, registry *Registry, logger *zap.SugaredLogger) error {
	reader := wire.NewReader(in)
	for {
		msg, err := reader.Read()
		if err == io.EOF {
			// Daemon went away. Exit cleanly.
			return nil
		}
		if err != nil {
			var parseErr *wire.ParseError
			if stderrors.As(err, &parseErr) {
				logger.Warnw("discarding unparsable frame", "error", parseErr.Cause)
				continue
			}
			return err
		}

		if msg.IsNotification() && msg.Method == entity.MethodExit {
			logger.Infow("exit requested")
			return nil
		}

		if reply := registry.Dispatch(ctx, msg); reply != nil {
			if err := writer.Write(reply); err != nil {
				return err
			}
		}
	}
}
