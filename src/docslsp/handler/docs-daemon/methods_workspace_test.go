package docsdaemon

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	tally "github.com/uber-go/tally"
	controller "github.com/docsys/docs-lsp/src/docslsp/controller/docs-daemon"
	"github.com/docsys/docs-lsp/src/docslsp/controller/docs-daemon/docsdaemonmock"
	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
	"go.uber.org/mock/gomock"
)

func TestExecuteCommand(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		params    interface{}
		setReturn func(c *docsdaemonmock.MockController)
		wantErr   bool
	}{
		{
			name: "restart worker",
			params: &protocol.ExecuteCommandParams{
				Command:   controller.CommandRestartWorker,
				Arguments: []interface{}{"file:///repo/docs/index.rst"},
			},
			setReturn: func(c *docsdaemonmock.MockController) {
				c.EXPECT().ExecuteCommand(gomock.Any(), gomock.Any()).Return(nil, nil)
			},
		},
		{
			name: "controller failure",
			params: &protocol.ExecuteCommandParams{
				Command: controller.CommandRestartWorker,
			},
			setReturn: func(c *docsdaemonmock.MockController) {
				c.EXPECT().ExecuteCommand(gomock.Any(), gomock.Any()).Return(nil, errors.New("sample"))
			},
			wantErr: true,
		},
		{
			name:    "invalid params",
			params:  []string{"invalid"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			c := docsdaemonmock.NewMockController(ctrl)
			if tt.setReturn != nil {
				tt.setReturn(c)
			}

			r := jsonRPCRouter{docsdaemon: c, stats: tally.NoopScope}
			req, _ := jsonrpc2.NewCall(jsonrpc2.NewNumberID(5), protocol.MethodWorkspaceExecuteCommand, tt.params)
			err := r.ExecuteCommand(ctx, newMockReplier(), req)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
