package docsdaemon

import (
	"context"
	"fmt"

	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"
)

func (c *controller) ExecuteCommand(ctx context.Context, params *protocol.ExecuteCommandParams) (interface{}, error) {
	switch params.Command {
	case CommandRestartWorker:
		if len(params.Arguments) == 0 {
			return nil, fmt.Errorf("%s requires a document URI argument", CommandRestartWorker)
		}
		raw, ok := params.Arguments[0].(string)
		if !ok {
			return nil, fmt.Errorf("%s: document URI argument must be a string, got %T", CommandRestartWorker, params.Arguments[0])
		}
		return nil, c.buildManager.Restart(ctx, uri.URI(raw))
	default:
		return nil, fmt.Errorf("unsupported command: %q", params.Command)
	}
}
