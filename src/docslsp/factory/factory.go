// Package factory provides user-defined factories for commonly constructed
// test values.
package factory

import (
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/docsys/docs-lsp/src/docslsp/entity"
	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
	lsturi "go.lsp.dev/uri"
)

// UUID is a user-defined factory for a random uuid.UUID.
func UUID() uuid.UUID {
	return uuid.Must(uuid.NewV4())
}

// JSONRPCRequest is a user-defined factory for a JSON-RPC request containing the specified method and parameters.
func JSONRPCRequest(method string, params interface{}) jsonrpc2.Request {
	req, _ := jsonrpc2.NewCall(jsonrpc2.NewNumberID(5), method, params)
	return req
}

// JSONRPCNotification is a user-defined factory for a JSON-RPC notification containing the specified method and parameters.
func JSONRPCNotification(method string, params interface{}) jsonrpc2.Request {
	req, _ := jsonrpc2.NewNotification(method, params)
	return req
}

// WorkerInfo is a factory for the metadata a freshly created worker reports.
func WorkerInfo(root string) *entity.WorkerInfo {
	return &entity.WorkerInfo{
		ID:          UUID().String(),
		BuilderName: "html",
		SrcDir:      root,
		BuildDir:    root + "/_build",
		ConfDir:     root,
	}
}

// BuildResult is a factory for a build result reporting a single diagnostic
// in each of the given files.
func BuildResult(files ...string) *entity.BuildResult {
	diags := make(map[lsturi.URI][]protocol.Diagnostic, len(files))
	for i, f := range files {
		diags[lsturi.File(f)] = []protocol.Diagnostic{{
			Severity: protocol.DiagnosticSeverityError,
			Message:  fmt.Sprintf("problem %d", i+1),
			Source:   "html",
		}}
	}
	return &entity.BuildResult{Diagnostics: diags}
}
