// Package docsdaemon wires inbound JSON-RPC connections to the docs-lsp daemon controller.
package docsdaemon

import (
	"context"
	"fmt"

	"github.com/gofrs/uuid"
	tally "github.com/uber-go/tally"
	controller "github.com/docsys/docs-lsp/src/docslsp/controller/docs-daemon"
	"github.com/docsys/docs-lsp/src/docslsp/entity"
	"github.com/docsys/docs-lsp/src/docslsp/internal/jsonrpcfx"
	"go.lsp.dev/jsonrpc2"
)

// Handler represents the docs-lsp daemon's inbound API.
type Handler interface {
	// ConnectionManager exposes the manager registered with the JSON-RPC
	// transport, one router per IDE connection.
	ConnectionManager() jsonrpcfx.ConnectionManager
}

type handler struct {
	docsdaemon        controller.Controller
	connectionManager jsonrpcfx.ConnectionManager
	stats             tally.Scope
}

// New constructs a new docs-lsp daemon Handler.
func New(ctrl controller.Controller, jsonrpcmod jsonrpcfx.JSONRPCModule, stats tally.Scope) Handler {
	c := jsonRPCConnectionManager{
		ctrl:  ctrl,
		stats: stats.SubScope("json_rpc"),
	}
	jsonrpcmod.RegisterConnectionManager(&c)

	return &handler{
		docsdaemon:        ctrl,
		connectionManager: &c,
		stats:             stats,
	}
}

func (h *handler) ConnectionManager() jsonrpcfx.ConnectionManager {
	return h.connectionManager
}

type jsonRPCConnectionManager struct {
	ctrl  controller.Controller
	stats tally.Scope
}

// NewConnection will store a new connection and return a router that includes its UUID.
func (c *jsonRPCConnectionManager) NewConnection(ctx context.Context, conn *jsonrpc2.Conn) (router jsonrpcfx.Router, err error) {
	id, err := c.ctrl.InitSession(ctx, conn)
	if err != nil {
		return nil, fmt.Errorf("error while creating new connection: %w", err)
	}

	r := jsonRPCRouter{
		docsdaemon: c.ctrl,
		uuid:       id,
		stats:      c.stats,
	}

	return &r, nil
}

// RemoveConnection cleans up a closed connection.
func (c *jsonRPCConnectionManager) RemoveConnection(ctx context.Context, id uuid.UUID) {
	// Ensure session is removed even if no Exit call has been received.
	ctx = context.WithValue(ctx, entity.SessionContextKey, id)
	c.ctrl.EndSession(ctx, id)
}
