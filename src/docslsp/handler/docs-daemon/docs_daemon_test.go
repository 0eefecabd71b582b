package docsdaemon

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	tally "github.com/uber-go/tally"
	"github.com/docsys/docs-lsp/idl/mock/jsonrpc2mock"
	"github.com/docsys/docs-lsp/src/docslsp/controller/docs-daemon/docsdaemonmock"
	"github.com/docsys/docs-lsp/src/docslsp/factory"
	"github.com/docsys/docs-lsp/src/docslsp/internal/jsonrpcfx/jsonrpcfxmock"
	"go.lsp.dev/jsonrpc2"
	"go.uber.org/goleak"
	"go.uber.org/mock/gomock"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestNew(t *testing.T) {
	ctrl := gomock.NewController(t)
	jsonRPCMock := jsonrpcfxmock.NewMockJSONRPCModule(ctrl)
	jsonRPCMock.EXPECT().RegisterConnectionManager(gomock.Any())

	testScope := tally.NewTestScope("testing", make(map[string]string, 0))

	c := docsdaemonmock.NewMockController(ctrl)
	h := New(c, jsonRPCMock, testScope)
	assert.NotNil(t, h.ConnectionManager())
}

func TestNewConnection(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)

	c := docsdaemonmock.NewMockController(ctrl)
	testScope := tally.NewTestScope("testing", make(map[string]string, 0))

	mgr := jsonRPCConnectionManager{
		stats: testScope,
		ctrl:  c,
	}

	mockConn := jsonrpc2mock.NewMockConn(ctrl)
	var conn jsonrpc2.Conn = mockConn

	t.Run("create success", func(t *testing.T) {
		c.EXPECT().InitSession(gomock.Any(), gomock.Any()).Return(factory.UUID(), nil)
		router, err := mgr.NewConnection(ctx, &conn)
		assert.IsType(t, &jsonRPCRouter{}, router)
		assert.NoError(t, err)
	})

	t.Run("create failure", func(t *testing.T) {
		c.EXPECT().InitSession(gomock.Any(), gomock.Any()).Return(factory.UUID(), errors.New("sample"))
		_, err := mgr.NewConnection(ctx, &conn)
		assert.Error(t, err)
	})
}

func TestRemoveConnection(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)

	c := docsdaemonmock.NewMockController(ctrl)
	id := factory.UUID()
	c.EXPECT().EndSession(gomock.Any(), id).Return(nil)

	mgr := jsonRPCConnectionManager{
		stats: tally.NoopScope,
		ctrl:  c,
	}
	mgr.RemoveConnection(ctx, id)
}

func newMockReplier() jsonrpc2.Replier {
	return func(ctx context.Context, result interface{}, err error) error {
		return err
	}
}
