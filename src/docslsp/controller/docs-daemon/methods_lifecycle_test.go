package docsdaemon

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/docsys/docs-lsp/idl/mock/fxmock"
	"github.com/docsys/docs-lsp/idl/mock/jsonrpc2mock"
	"github.com/docsys/docs-lsp/src/docslsp/entity"
	"github.com/docsys/docs-lsp/src/docslsp/factory"
	"github.com/docsys/docs-lsp/src/docslsp/gateway/ide-client/ideclientmock"
	"github.com/docsys/docs-lsp/src/docslsp/repository/session/repositorymock"
	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
)

func TestInitialize(t *testing.T) {
	ctrl := gomock.NewController(t)
	s := &entity.Session{
		UUID: factory.UUID(),
	}
	ctx := context.WithValue(context.Background(), entity.SessionContextKey, s.UUID)

	t.Run("initialize success", func(t *testing.T) {
		sessionRepository := repositorymock.NewMockRepository(ctrl)
		sessionRepository.EXPECT().GetFromContext(gomock.Any()).Return(s, nil)
		sessionRepository.EXPECT().Set(gomock.Any(), gomock.Any()).Return(nil)

		c := controller{
			logger:   zap.NewNop().Sugar(),
			sessions: sessionRepository,
		}

		params := &protocol.InitializeParams{}
		params.WorkspaceFolders = []protocol.WorkspaceFolder{
			{
				URI: "file:///foo/bar",
			},
		}

		res, err := c.Initialize(ctx, params)
		assert.NoError(t, err, "Unexpected initialize error.")
		assert.Equal(t, "/foo/bar", s.WorkspaceRoot)
		assert.Same(t, params, s.InitializeParams)
		assert.Equal(t, "Docs Language Server", res.ServerInfo.Name)
		assert.Equal(t, protocol.TextDocumentSyncOptions{
			OpenClose: true,
			Change:    protocol.TextDocumentSyncKindFull,
			Save:      &protocol.SaveOptions{},
		}, res.Capabilities.TextDocumentSync)
		assert.Equal(t, []string{CommandRestartWorker}, res.Capabilities.ExecuteCommandProvider.Commands)
	})

	t.Run("session not found", func(t *testing.T) {
		sessionRepository := repositorymock.NewMockRepository(ctrl)
		sessionRepository.EXPECT().GetFromContext(gomock.Any()).Return(nil, assert.AnError)

		c := controller{
			logger:   zap.NewNop().Sugar(),
			sessions: sessionRepository,
		}

		_, err := c.Initialize(context.Background(), &protocol.InitializeParams{})
		assert.Error(t, err)
	})
}

func TestInitialized(t *testing.T) {
	ctrl := gomock.NewController(t)

	mockIdeGateway := ideclientmock.NewMockGateway(ctrl)
	mockIdeGateway.EXPECT().ShowMessage(gomock.Any(), gomock.Any()).Return(nil)

	c := controller{
		logger:     zap.NewNop().Sugar(),
		ideGateway: mockIdeGateway,
	}
	assert.NoError(t, c.Initialized(context.Background(), &protocol.InitializedParams{}))
}

func TestShutdown(t *testing.T) {
	c := controller{logger: zap.NewNop().Sugar()}
	assert.NoError(t, c.Shutdown(context.Background()))
}

func TestExit(t *testing.T) {
	ctrl := gomock.NewController(t)

	sessionRepository := repositorymock.NewMockRepository(ctrl)
	s := &entity.Session{
		UUID: factory.UUID(),
	}
	sessionRepository.EXPECT().SessionCount(gomock.Any()).Return(1, nil)
	sessionRepository.EXPECT().GetFromContext(gomock.Any()).Return(s, nil)
	sessionRepository.EXPECT().Delete(gomock.Any(), s.UUID).Return(nil)

	ctx := context.WithValue(context.Background(), entity.SessionContextKey, s.UUID)

	mockIdeGateway := ideclientmock.NewMockGateway(ctrl)
	mockIdeGateway.EXPECT().DeregisterClient(gomock.Any(), s.UUID).Return(nil)

	c := controller{
		logger:             zap.NewNop().Sugar(),
		sessions:           sessionRepository,
		ideGateway:         mockIdeGateway,
		idleTimer:          time.NewTimer(time.Hour),
		idleTimeoutMinutes: time.Hour,
	}
	assert.NoError(t, c.Exit(ctx))
}

func TestExitFullShutdown(t *testing.T) {
	c := controller{
		logger:       zap.NewNop().Sugar(),
		fullShutdown: true,
		idleTimer:    time.NewTimer(time.Hour),
	}
	assert.NoError(t, c.Exit(context.Background()))

	// Timer was zeroed out and fires immediately.
	select {
	case <-c.idleTimer.C:
	case <-time.After(time.Second):
		t.Fatal("full shutdown did not zero out the idle timer")
	}
}

func TestRequestFullShutdown(t *testing.T) {
	c := controller{logger: zap.NewNop().Sugar()}
	c.RequestFullShutdown(context.Background())
	assert.True(t, c.fullShutdown)

	// Duplicate calls have no effect
	c.RequestFullShutdown(context.Background())
	assert.True(t, c.fullShutdown)
}

func TestInitSession(t *testing.T) {
	ctrl := gomock.NewController(t)

	sessionRepository := repositorymock.NewMockRepository(ctrl)
	ctx := context.Background()

	mockShutdowner := fxmock.NewMockShutdowner(ctrl)
	mockShutdowner.EXPECT().Shutdown().Return(nil).AnyTimes()

	mockIdeGateway := ideclientmock.NewMockGateway(ctrl)

	c := controller{
		sessions:           sessionRepository,
		shutdowner:         mockShutdowner,
		logger:             zap.NewNop().Sugar(),
		idleTimer:          time.NewTimer(time.Hour),
		idleTimeoutMinutes: time.Hour,
		ideGateway:         mockIdeGateway,
	}

	mockConn := jsonrpc2mock.NewMockConn(ctrl)
	var conn jsonrpc2.Conn = mockConn

	t.Run("value set successfully", func(t *testing.T) {
		mockIdeGateway.EXPECT().RegisterClient(gomock.Any(), gomock.Any(), &conn).Return(nil)
		sessionRepository.EXPECT().Set(gomock.Any(), gomock.Any()).Return(nil)
		sessionRepository.EXPECT().SessionCount(gomock.Any()).Return(1, nil)

		id, err := c.InitSession(ctx, &conn)
		assert.NoError(t, err)
		assert.NotEqual(t, id.String(), "")
	})

	t.Run("registration failure", func(t *testing.T) {
		mockIdeGateway.EXPECT().RegisterClient(gomock.Any(), gomock.Any(), &conn).Return(assert.AnError)
		sessionRepository.EXPECT().SessionCount(gomock.Any()).Return(1, nil)

		_, err := c.InitSession(ctx, &conn)
		assert.Error(t, err)
	})

	t.Run("repository failure", func(t *testing.T) {
		mockIdeGateway.EXPECT().RegisterClient(gomock.Any(), gomock.Any(), &conn).Return(nil)
		sessionRepository.EXPECT().Set(gomock.Any(), gomock.Any()).Return(assert.AnError)
		sessionRepository.EXPECT().SessionCount(gomock.Any()).Return(1, nil)

		_, err := c.InitSession(ctx, &conn)
		assert.Error(t, err)
	})
}

func TestEndSession(t *testing.T) {
	ctrl := gomock.NewController(t)
	id := factory.UUID()

	sessionRepository := repositorymock.NewMockRepository(ctrl)
	sessionRepository.EXPECT().Delete(gomock.Any(), id).Return(nil)
	sessionRepository.EXPECT().SessionCount(gomock.Any()).Return(0, nil)

	mockIdeGateway := ideclientmock.NewMockGateway(ctrl)
	mockIdeGateway.EXPECT().DeregisterClient(gomock.Any(), id).Return(nil)

	c := controller{
		sessions:           sessionRepository,
		logger:             zap.NewNop().Sugar(),
		idleTimer:          time.NewTimer(time.Hour),
		idleTimeoutMinutes: time.Hour,
		ideGateway:         mockIdeGateway,
	}
	assert.NoError(t, c.EndSession(context.Background(), id))
}

func TestWorkspaceRootFromParams(t *testing.T) {
	tests := []struct {
		name   string
		params *protocol.InitializeParams
		want   string
	}{
		{
			name: "workspace folder",
			params: &protocol.InitializeParams{
				WorkspaceFolders: []protocol.WorkspaceFolder{{URI: "file:///repo/docs"}},
				RootURI:          "file:///ignored",
			},
			want: "/repo/docs",
		},
		{
			name:   "root uri fallback",
			params: &protocol.InitializeParams{RootURI: "file:///repo/docs"},
			want:   "/repo/docs",
		},
		{
			name:   "root path fallback",
			params: &protocol.InitializeParams{RootPath: "/repo/docs"},
			want:   "/repo/docs",
		},
		{
			name:   "empty",
			params: &protocol.InitializeParams{},
			want:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, workspaceRootFromParams(tt.params))
		})
	}
}
