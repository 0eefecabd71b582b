package docsdaemon

import (
	"context"

	"github.com/docsys/docs-lsp/src/docslsp/mapper"
	"go.lsp.dev/jsonrpc2"
)

func (r *jsonRPCRouter) DidOpen(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	params, err := mapper.RequestToDidOpenTextDocumentParams(req)
	if err != nil {
		return reply(ctx, nil, err)
	}

	err = r.docsdaemon.DidOpen(ctx, params)
	return reply(ctx, nil, err)
}

func (r *jsonRPCRouter) DidChange(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	params, err := mapper.RequestToDidChangeTextDocumentParams(req)
	if err != nil {
		return reply(ctx, nil, err)
	}

	err = r.docsdaemon.DidChange(ctx, params)
	return reply(ctx, nil, err)
}

func (r *jsonRPCRouter) DidSave(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	params, err := mapper.RequestToDidSaveTextDocumentParams(req)
	if err != nil {
		return reply(ctx, nil, err)
	}

	err = r.docsdaemon.DidSave(ctx, params)
	return reply(ctx, nil, err)
}

func (r *jsonRPCRouter) DidClose(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	params, err := mapper.RequestToDidCloseTextDocumentParams(req)
	if err != nil {
		return reply(ctx, nil, err)
	}

	err = r.docsdaemon.DidClose(ctx, params)
	return reply(ctx, nil, err)
}

func (r *jsonRPCRouter) DidChangeWatchedFiles(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	params, err := mapper.RequestToDidChangeWatchedFilesParams(req)
	if err != nil {
		return reply(ctx, nil, err)
	}

	err = r.docsdaemon.DidChangeWatchedFiles(ctx, params)
	return reply(ctx, nil, err)
}
