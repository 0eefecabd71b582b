// Package docsdaemon implements the docs-lsp daemon business logic.
package docsdaemon

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gofrs/uuid"
	buildmanager "github.com/docsys/docs-lsp/src/docslsp/controller/build-manager"
	ideclient "github.com/docsys/docs-lsp/src/docslsp/gateway/ide-client"
	"github.com/docsys/docs-lsp/src/docslsp/repository/session"
	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
	"go.uber.org/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	_serverName = "Docs Language Server"

	// Configuration keys
	_idleTimeoutMinutesKey = "idleTimeoutMinutes"
)

// CommandRestartWorker restarts the build worker covering the document given
// as the command's first argument.
const CommandRestartWorker = "docs-lsp.restartWorker"

// Module is the Fx module for this package.
var Module = fx.Options(
	fx.Provide(New),
)

// Controller orchestrates the business logic for each request.
type Controller interface {
	// LSP Methods defined per protocol.
	Initialize(ctx context.Context, params *protocol.InitializeParams) (*protocol.InitializeResult, error)
	Initialized(ctx context.Context, params *protocol.InitializedParams) error
	Shutdown(ctx context.Context) error
	Exit(ctx context.Context) error

	// Document related methods.
	DidOpen(ctx context.Context, params *protocol.DidOpenTextDocumentParams) error
	DidChange(ctx context.Context, params *protocol.DidChangeTextDocumentParams) error
	DidSave(ctx context.Context, params *protocol.DidSaveTextDocumentParams) error
	DidClose(ctx context.Context, params *protocol.DidCloseTextDocumentParams) error
	DidChangeWatchedFiles(ctx context.Context, params *protocol.DidChangeWatchedFilesParams) error

	// Workspace related methods.
	ExecuteCommand(ctx context.Context, params *protocol.ExecuteCommandParams) (interface{}, error)

	// Custom methods for use within this service.
	RequestFullShutdown(ctx context.Context) error
	InitSession(ctx context.Context, conn *jsonrpc2.Conn) (uuid.UUID, error)
	EndSession(ctx context.Context, uuid uuid.UUID) error
}

// Params are inbound parameters to initialize a new controller.
type Params struct {
	fx.In

	Shutdowner   fx.Shutdowner
	Sessions     session.Repository
	IdeGateway   ideclient.Gateway
	BuildManager buildmanager.Controller
	Logger       *zap.SugaredLogger
	Config       config.Provider
}

type controller struct {
	sessions     session.Repository
	shutdowner   fx.Shutdowner
	ideGateway   ideclient.Gateway
	buildManager buildmanager.Controller
	logger       *zap.SugaredLogger

	fullShutdown       bool
	idleTimer          *time.Timer
	idleTimerMu        sync.Mutex
	idleTimeoutMinutes time.Duration
}

// New constructs a new top-level controller for the service.
func New(p Params) (Controller, error) {
	ctx := context.Background()

	var timeoutMinutesRaw int64
	if err := p.Config.Get(_idleTimeoutMinutesKey).Populate(&timeoutMinutesRaw); err != nil || timeoutMinutesRaw == 0 {
		return nil, fmt.Errorf("unable to get idle timeout from config: %w", err)
	}

	c := &controller{
		sessions:     p.Sessions,
		shutdowner:   p.Shutdowner,
		ideGateway:   p.IdeGateway,
		buildManager: p.BuildManager,
		logger:       p.Logger,

		idleTimeoutMinutes: time.Duration(timeoutMinutesRaw) * time.Minute,
	}
	c.refreshIdleTimer(ctx)

	return c, nil
}

// refreshIdleTimer ensures that the service shuts down after a defined inactivity period with no connections.
func (c *controller) refreshIdleTimer(ctx context.Context) error {
	c.idleTimerMu.Lock()
	defer c.idleTimerMu.Unlock()

	// First call initializes new timer and leaves it running prior to first connection.
	if c.idleTimer == nil {
		c.idleTimer = time.NewTimer(c.idleTimeoutMinutes)
		go func() {
			<-c.idleTimer.C
			c.logger.Info("Shutdown signal received.")
			if err := c.shutdowner.Shutdown(); err != nil {
				c.logger.Errorw("shutting down", "error", err)
			}
		}()
		return nil
	}

	// Subsequent calls stop the timer and reset it only if no connections are active.
	currentSessions, err := c.sessions.SessionCount(ctx)
	if err != nil {
		return fmt.Errorf("error resetting timeout: %w", err)
	}

	c.idleTimer.Stop()
	if currentSessions == 0 {
		c.idleTimer.Reset(c.idleTimeoutMinutes)
	}
	return nil
}
