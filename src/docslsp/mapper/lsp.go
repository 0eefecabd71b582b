package mapper

import (
	"encoding/json"
	"fmt"

	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
)

// RequestToInitializeParams maps the parameters from a jsconrpc2.Request into protocol.InitializeParams.
func RequestToInitializeParams(req jsonrpc2.Request) (*protocol.InitializeParams, error) {
	params := protocol.InitializeParams{}
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return nil, wrapErrParse(err)
	}
	return &params, nil
}

// RequestToInitializedParams maps the parameters from a jsconrpc2.Request into protocol.InitializedParams.
func RequestToInitializedParams(req jsonrpc2.Request) (*protocol.InitializedParams, error) {
	params := protocol.InitializedParams{}
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return nil, wrapErrParse(err)
	}
	return &params, nil
}

// RequestToDidOpenTextDocumentParams maps the parameters from a jsconrpc2.Request into protocol.DidOpenTextDocumentParams.
func RequestToDidOpenTextDocumentParams(req jsonrpc2.Request) (*protocol.DidOpenTextDocumentParams, error) {
	params := protocol.DidOpenTextDocumentParams{}
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return nil, wrapErrParse(err)
	}
	return &params, nil
}

// RequestToDidSaveTextDocumentParams maps the parameters from a jsconrpc2.Request into protocol.DidSaveTextDocumentParams.
func RequestToDidSaveTextDocumentParams(req jsonrpc2.Request) (*protocol.DidSaveTextDocumentParams, error) {
	params := protocol.DidSaveTextDocumentParams{}
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return nil, wrapErrParse(err)
	}
	return &params, nil
}

// RequestToDidCloseTextDocumentParams maps the parameters from a jsconrpc2.Request into protocol.DidCloseTextDocumentParams.
func RequestToDidCloseTextDocumentParams(req jsonrpc2.Request) (*protocol.DidCloseTextDocumentParams, error) {
	params := protocol.DidCloseTextDocumentParams{}
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return nil, wrapErrParse(err)
	}
	return &params, nil
}

// RequestToDidChangeTextDocumentParams maps the parameters from a jsconrpc2.Request into protocol.DidChangeTextDocumentParams.
func RequestToDidChangeTextDocumentParams(req jsonrpc2.Request) (*protocol.DidChangeTextDocumentParams, error) {
	params := protocol.DidChangeTextDocumentParams{}
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return nil, wrapErrParse(err)
	}
	return &params, nil
}

// RequestToDidChangeWatchedFilesParams maps the parameters from a jsconrpc2.Request into protocol.DidChangeWatchedFilesParams.
func RequestToDidChangeWatchedFilesParams(req jsonrpc2.Request) (*protocol.DidChangeWatchedFilesParams, error) {
	params := protocol.DidChangeWatchedFilesParams{}
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return nil, wrapErrParse(err)
	}
	return &params, nil
}

// RequestToExecuteCommandParams maps the parameters from a jsconrpc2.Request into protocol.ExecuteCommandParams.
func RequestToExecuteCommandParams(req jsonrpc2.Request) (*protocol.ExecuteCommandParams, error) {
	params := protocol.ExecuteCommandParams{}
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return nil, wrapErrParse(err)
	}

	// store params.Arguments as []byte instead of []map[string]interface{}
	// so handlers can unmarshal the arguments themselves
	rawArgs := []interface{}{}
	for _, arg := range params.Arguments {
		rawArg, err := json.Marshal(arg)
		if err != nil {
			return nil, wrapErrParse(err)
		}
		rawArgs = append(rawArgs, rawArg)
	}

	params.Arguments = rawArgs
	return &params, nil
}

// wrapErrParse keeps jsonrpc2.ErrParse in the chain so callers can map the
// failure to a JSON-RPC parse error code, alongside the unmarshal cause.
func wrapErrParse(err error) error {
	return fmt.Errorf("%w: %w", jsonrpc2.ErrParse, err)
}
