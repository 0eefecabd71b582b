package mapper

import (
	"context"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/docsys/docs-lsp/src/docslsp/entity"
	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"
)

func TestSessionRoundTrip(t *testing.T) {
	s := &entity.Session{
		UUID:          uuid.Must(uuid.NewV4()),
		WorkspaceRoot: "/repo",
		Env:           []string{"KEY=value"},
	}

	back, err := ModelToSession(SessionToModel(s))
	require.NoError(t, err)
	assert.Equal(t, s, back)
}

func TestUUIDToSession(t *testing.T) {
	id := uuid.Must(uuid.NewV4())
	s := UUIDToSession(id, nil)
	assert.Equal(t, id, s.UUID)
}

func TestContextToSessionUUID(t *testing.T) {
	id := uuid.Must(uuid.NewV4())
	ctx := context.WithValue(context.Background(), entity.SessionContextKey, id)

	got, err := ContextToSessionUUID(ctx)
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = ContextToSessionUUID(context.Background())
	assert.Error(t, err)
}

func TestRequestToDidSaveTextDocumentParams(t *testing.T) {
	req, err := jsonrpc2.NewNotification(protocol.MethodTextDocumentDidSave, &protocol.DidSaveTextDocumentParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: uri.File("/repo/docs/index.rst")},
	})
	require.NoError(t, err)

	params, err := RequestToDidSaveTextDocumentParams(req)
	require.NoError(t, err)
	assert.Equal(t, uri.File("/repo/docs/index.rst"), params.TextDocument.URI)
}

func TestRequestToParamsParseError(t *testing.T) {
	req, err := jsonrpc2.NewNotification(protocol.MethodTextDocumentDidOpen, "not an object")
	require.NoError(t, err)

	_, err = RequestToDidOpenTextDocumentParams(req)
	assert.ErrorIs(t, err, jsonrpc2.ErrParse)
}

func TestRequestToExecuteCommandParamsKeepsRawArguments(t *testing.T) {
	req, err := jsonrpc2.NewCall(jsonrpc2.NewNumberID(1), protocol.MethodWorkspaceExecuteCommand, &protocol.ExecuteCommandParams{
		Command:   "docs-lsp.restartWorker",
		Arguments: []interface{}{map[string]interface{}{"root": "/repo/docs"}},
	})
	require.NoError(t, err)

	params, err := RequestToExecuteCommandParams(req)
	require.NoError(t, err)
	require.Len(t, params.Arguments, 1)
	assert.JSONEq(t, `{"root":"/repo/docs"}`, string(params.Arguments[0].([]byte)))
}

func TestBuildResultToPublishDiagnostics(t *testing.T) {
	docURI := uri.File("/repo/docs/index.rst")
	staleURI := uri.File("/repo/docs/old.rst")
	result := &entity.BuildResult{
		Diagnostics: map[uri.URI][]protocol.Diagnostic{
			docURI: {{Message: "broken reference"}},
		},
	}

	payloads := BuildResultToPublishDiagnostics(result, []uri.URI{docURI, staleURI})
	require.Len(t, payloads, 2)

	byURI := map[uri.URI]*protocol.PublishDiagnosticsParams{}
	for _, p := range payloads {
		byURI[p.URI] = p
	}
	require.Len(t, byURI[docURI].Diagnostics, 1)
	assert.Equal(t, "broken reference", byURI[docURI].Diagnostics[0].Message)
	assert.Empty(t, byURI[staleURI].Diagnostics)

	assert.ElementsMatch(t, []uri.URI{docURI}, BuildResultURIs(result))
}
