package docsdaemon

import (
	"context"

	"go.lsp.dev/protocol"
)

// Document lifecycle events feed the build manager, which decides whether a
// worker spawn or a rebuild is warranted.

func (c *controller) DidOpen(ctx context.Context, params *protocol.DidOpenTextDocumentParams) error {
	return c.buildManager.DidOpen(ctx, params)
}

func (c *controller) DidChange(ctx context.Context, params *protocol.DidChangeTextDocumentParams) error {
	return c.buildManager.DidChange(ctx, params)
}

func (c *controller) DidSave(ctx context.Context, params *protocol.DidSaveTextDocumentParams) error {
	return c.buildManager.DidSave(ctx, params)
}

func (c *controller) DidClose(ctx context.Context, params *protocol.DidCloseTextDocumentParams) error {
	return c.buildManager.DidClose(ctx, params)
}

func (c *controller) DidChangeWatchedFiles(ctx context.Context, params *protocol.DidChangeWatchedFilesParams) error {
	return c.buildManager.DidChangeWatchedFiles(ctx, params)
}
