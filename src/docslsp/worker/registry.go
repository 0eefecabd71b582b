package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"

	"github.com/docsys/docs-lsp/src/docslsp/entity"
	"github.com/docsys/docs-lsp/src/docslsp/internal/wire"
	"go.uber.org/zap"
)

// handlerEntry pairs a method's parameter type with its handler.
type handlerEntry struct {
	newParams func() interface{}
	handle    func(ctx context.Context, params interface{}) (interface{}, error)
}

// Registry dispatches decoded wire messages to typed handlers against one
// shared State. The method table is built once at worker startup; there is no
// runtime handler discovery.
type Registry struct {
	engine  Engine
	state   *State
	logger  *zap.SugaredLogger
	entries map[string]handlerEntry
}

// NewRegistry builds the method table for this worker process.
func NewRegistry(engine Engine, logger *zap.SugaredLogger) *Registry {
	r := &Registry{
		engine: engine,
		state:  NewState(),
		logger: logger,
	}
	r.entries = map[string]handlerEntry{
		entity.MethodCreateApplication: {
			newParams: func() interface{} { return &entity.CreateApplicationParams{} },
			handle: func(ctx context.Context, params interface{}) (interface{}, error) {
				return r.createApplication(ctx, params.(*entity.CreateApplicationParams))
			},
		},
		entity.MethodBuild: {
			newParams: func() interface{} { return &entity.BuildParams{} },
			handle: func(ctx context.Context, params interface{}) (interface{}, error) {
				return r.build(ctx, params.(*entity.BuildParams))
			},
		},
	}
	return r
}

// State exposes the shared worker state, for inspection in tests.
func (r *Registry) State() *State {
	return r.state
}

// Dispatch routes one inbound message. For requests it always returns a
// response message: a result on success, otherwise an error response carrying
// a code, message and diagnostic trace. Notification failures are logged and
// dropped. Handler panics are caught at this boundary so a misbehaving
// handler cannot take the worker down.
func (r *Registry) Dispatch(ctx context.Context, msg *wire.Message) *wire.Message {
	if msg.Method == "" {
		r.logger.Warnw("discarding message without method")
		return nil
	}

	entry, ok := r.entries[msg.Method]
	if !ok {
		if msg.IsCall() {
			return r.errorResponse(msg, wire.CodeMethodNotFound, fmt.Sprintf("unknown method %q", msg.Method), nil)
		}
		r.logger.Warnw("dropping notification for unknown method", "method", msg.Method)
		return nil
	}

	params := entry.newParams()
	if len(msg.Params) > 0 {
		if err := json.Unmarshal(msg.Params, params); err != nil {
			if msg.IsCall() {
				return r.errorResponse(msg, wire.CodeInvalidParams, fmt.Sprintf("decoding %q params: %v", msg.Method, err), nil)
			}
			r.logger.Warnw("dropping notification with undecodable params", "method", msg.Method, "error", err)
			return nil
		}
	}

	result, err := r.invoke(ctx, entry, params)
	if err != nil {
		if msg.IsCall() {
			return r.errorResponse(msg, wire.CodeInternalError, err.Error(), string(debug.Stack()))
		}
		r.logger.Warnw("notification handler failed", "method", msg.Method, "error", err)
		return nil
	}

	if !msg.IsCall() {
		return nil
	}
	resp, respErr := wire.NewResponse(msg.ID, result)
	if respErr != nil {
		return r.errorResponse(msg, wire.CodeInternalError, fmt.Sprintf("encoding %q result: %v", msg.Method, respErr), nil)
	}
	return resp
}

// invoke runs a handler, converting panics into errors.
func (r *Registry) invoke(ctx context.Context, entry handlerEntry, params interface{}) (result interface{}, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("handler panic: %v", p)
		}
	}()
	return entry.handle(ctx, params)
}

func (r *Registry) errorResponse(msg *wire.Message, code int32, message string, data interface{}) *wire.Message {
	resp, err := wire.NewErrorResponse(msg.ID, code, message, data)
	if err != nil {
		r.logger.Errorw("building error response", "method", msg.Method, "error", err)
		resp, _ = wire.NewErrorResponse(msg.ID, wire.CodeInternalError, message, nil)
	}
	return resp
}

func (r *Registry) createApplication(ctx context.Context, params *entity.CreateApplicationParams) (interface{}, error) {
	app, err := r.engine.CreateApplication(ctx, params)
	if err != nil {
		return nil, err
	}
	if err := r.state.SetApp(app); err != nil {
		return nil, err
	}
	r.logger.Infow("application created", "id", app.Info.ID, "builder", app.Info.BuilderName)
	return app.Info, nil
}

func (r *Registry) build(ctx context.Context, params *entity.BuildParams) (interface{}, error) {
	app, err := r.state.App()
	if err != nil {
		return nil, err
	}
	return r.engine.Build(ctx, app, params)
}
