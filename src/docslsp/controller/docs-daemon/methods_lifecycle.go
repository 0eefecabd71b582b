package docsdaemon

import (
	"context"
	"fmt"

	"net/url"

	"github.com/gofrs/uuid"
	"github.com/docsys/docs-lsp/src/docslsp/mapper"
	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
)

// Initialize will store information about a new connection and perform any setup needed.
func (c *controller) Initialize(ctx context.Context, params *protocol.InitializeParams) (*protocol.InitializeResult, error) {
	s, err := c.sessions.GetFromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting session from context: %w", err)
	}

	s.InitializeParams = params
	s.WorkspaceRoot = workspaceRootFromParams(params)
	if err := c.sessions.Set(ctx, s); err != nil {
		return nil, fmt.Errorf("setting updated session state: %w", err)
	}

	return &protocol.InitializeResult{
		ServerInfo: &protocol.ServerInfo{
			Name: _serverName,
		},
		Capabilities: protocol.ServerCapabilities{
			TextDocumentSync: protocol.TextDocumentSyncOptions{
				OpenClose: true,
				// Full sync: each change carries the whole buffer, which is
				// what build workers receive as content overrides.
				Change: protocol.TextDocumentSyncKindFull,
				Save:   &protocol.SaveOptions{},
			},
			ExecuteCommandProvider: &protocol.ExecuteCommandOptions{
				Commands: []string{CommandRestartWorker},
			},
		},
	}, nil
}

// Initialized handles any actions that need to occur immediately after initialization.
func (c *controller) Initialized(ctx context.Context, params *protocol.InitializedParams) error {
	return c.ideGateway.ShowMessage(ctx, &protocol.ShowMessageParams{
		Message: fmt.Sprintf("Connection to %s is now initialized.", _serverName),
		Type:    protocol.MessageTypeInfo,
	})
}

// Shutdown is sent just before Exit to indicate that the session will exit.
func (c *controller) Shutdown(ctx context.Context) error {
	return nil
}

// Exit will be used to either clean up from an individual connection, or shutdown the whole server.
func (c *controller) Exit(ctx context.Context) error {
	if c.fullShutdown {
		// Zero out the timer to trigger immediate shutdown.
		c.idleTimerMu.Lock()
		c.idleTimer.Reset(0)
		c.idleTimerMu.Unlock()
		return nil
	}

	s, err := c.sessions.GetFromContext(ctx)
	if err != nil {
		return fmt.Errorf("error during session exit: %w", err)
	}
	return c.EndSession(ctx, s.UUID)
}

// RequestFullShutdown will set the controller to treat subsequent Shutdown and Exit requests as requests to exit the entire process.
func (c *controller) RequestFullShutdown(ctx context.Context) error {
	c.fullShutdown = true

	return nil
}

// InitSession creates a new empty session and returns its UUID.
func (c *controller) InitSession(ctx context.Context, conn *jsonrpc2.Conn) (uuid.UUID, error) {
	defer c.refreshIdleTimer(ctx)

	id, err := uuid.NewV4()
	if err != nil {
		return uuid.Nil, err
	}

	session := mapper.UUIDToSession(id, conn)
	if err := c.ideGateway.RegisterClient(ctx, id, conn); err != nil {
		return uuid.Nil, err
	}

	if err := c.sessions.Set(ctx, session); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// EndSession includes any cleanup at the end of the session, during or after the last JSON-RPC request.
func (c *controller) EndSession(ctx context.Context, uuid uuid.UUID) error {
	defer c.refreshIdleTimer(ctx)

	if err := c.ideGateway.DeregisterClient(ctx, uuid); err != nil {
		c.logger.Error(err)
	}

	return c.sessions.Delete(ctx, uuid)
}

// workspaceRootFromParams derives the workspace root from the first workspace
// folder, falling back to the legacy rootUri and rootPath fields.
func workspaceRootFromParams(params *protocol.InitializeParams) string {
	if len(params.WorkspaceFolders) > 0 {
		if u, err := url.Parse(params.WorkspaceFolders[0].URI); err == nil {
			return u.Path
		}
	}
	if params.RootURI != "" {
		return params.RootURI.Filename()
	}
	return params.RootPath
}
