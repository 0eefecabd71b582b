// Package entity contains the domain types for the docs-lsp service.
package entity

import (
	"github.com/gofrs/uuid"
	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
)

type keyType string

// SessionContextKey indicates the key to be used to identify the session UUID in the context.
const SessionContextKey keyType = "SessionUUID"

// Session entity representing a single connected editor.
type Session struct {
	UUID             uuid.UUID                  `json:"uuid" zap:"uuid"`
	InitializeParams *protocol.InitializeParams `json:"-" zap:"-"`
	Conn             *jsonrpc2.Conn             `json:"-" zap:"-"`
	WorkspaceRoot    string                     `json:"workspaceRoot" zap:"workspaceRoot"`
	Env              []string                   `json:"-" zap:"-"`
}
