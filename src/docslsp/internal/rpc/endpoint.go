// Package rpc provides request/response correlation on top of the wire
// framing, for the daemon side of a worker connection.
package rpc

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/docsys/docs-lsp/src/docslsp/internal/errors"
	"github.com/docsys/docs-lsp/src/docslsp/internal/wire"
	"go.uber.org/zap"
)

// NotificationHandler receives inbound notifications from the remote peer.
type NotificationHandler func(ctx context.Context, method string, params json.RawMessage)

type pendingResult struct {
	result json.RawMessage
	err    error
}

// Endpoint correlates outbound requests with inbound responses over a single
// worker wire. Outbound writes go to the writer passed at construction,
// inbound traffic is pumped by ReadFrom. Once the endpoint closes, every
// outstanding call fails with a TransportClosedError; no call is ever left
// unresolved.
type Endpoint struct {
	writer *wire.Writer
	logger *zap.SugaredLogger

	notifMu      sync.RWMutex
	notifHandler NotificationHandler

	nextID int64

	mu       sync.Mutex
	pending  map[string]chan pendingResult
	closed   bool
	closeErr error
}

// NewEndpoint returns an Endpoint writing outbound frames to w.
func NewEndpoint(w io.Writer, logger *zap.SugaredLogger) *Endpoint {
	return &Endpoint{
		writer:  wire.NewWriter(w),
		logger:  logger,
		pending: make(map[string]chan pendingResult),
	}
}

// SetNotificationHandler registers the callback for inbound notifications.
// Must be called before ReadFrom; later notifications with no handler are
// logged and dropped.
func (e *Endpoint) SetNotificationHandler(h NotificationHandler) {
	e.notifMu.Lock()
	defer e.notifMu.Unlock()
	e.notifHandler = h
}

// Call sends a request and blocks until the matching response, an error
// response, transport closure, or context cancellation.
func (e *Endpoint) Call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	id := atomic.AddInt64(&e.nextID, 1)
	msg, err := wire.NewRequest(id, method, params)
	if err != nil {
		return nil, fmt.Errorf("building %q request: %w", method, err)
	}

	key := string(msg.ID)
	ch := make(chan pendingResult, 1)

	e.mu.Lock()
	if e.closed {
		closeErr := e.closeErr
		e.mu.Unlock()
		return nil, &errors.TransportClosedError{Cause: closeErr}
	}
	e.pending[key] = ch
	e.mu.Unlock()

	if err := e.writer.Write(msg); err != nil {
		e.unregister(key)
		return nil, fmt.Errorf("sending %q request: %w", method, err)
	}

	select {
	case r := <-ch:
		return r.result, r.err
	case <-ctx.Done():
		e.unregister(key)
		return nil, ctx.Err()
	}
}

// Notify sends a notification. No pending call is registered.
func (e *Endpoint) Notify(ctx context.Context, method string, params interface{}) error {
	msg, err := wire.NewNotification(method, params)
	if err != nil {
		return fmt.Errorf("building %q notification: %w", method, err)
	}
	if err := e.writer.Write(msg); err != nil {
		return fmt.Errorf("sending %q notification: %w", method, err)
	}
	return nil
}

// ReadFrom pumps inbound frames off r until the stream closes, dispatching
// responses to their pending calls and notifications to the registered
// handler. It always leaves the endpoint closed before returning, so no
// pending call outlives it.
func (e *Endpoint) ReadFrom(ctx context.Context, r io.Reader) error {
	reader := wire.NewReader(r)
	for {
		msg, err := reader.Read()
		if err == io.EOF {
			e.Close(nil)
			return nil
		}
		if err != nil {
			var parseErr *wire.ParseError
			if stderrors.As(err, &parseErr) {
				// Malformed body on an otherwise healthy stream. Drop the
				// frame and keep reading.
				e.logger.Warnw("discarding unparsable frame", "error", parseErr.Cause)
				continue
			}
			e.Close(err)
			return err
		}

		switch {
		case msg.IsResponse():
			e.resolve(msg)
		case msg.IsNotification():
			e.dispatchNotification(ctx, msg)
		case msg.IsCall():
			// Workers do not issue requests to the daemon. Answer rather
			// than leave the peer hanging.
			resp, err := wire.NewErrorResponse(msg.ID, wire.CodeMethodNotFound, fmt.Sprintf("unsupported method %q", msg.Method), nil)
			if err == nil {
				err = e.writer.Write(resp)
			}
			if err != nil {
				e.logger.Warnw("rejecting unexpected worker request", "method", msg.Method, "error", err)
			}
		default:
			e.logger.Warnw("discarding message with no method or id")
		}
	}
}

// Close fails every pending call with a TransportClosedError carrying cause.
// Further calls fail immediately. Close is idempotent.
func (e *Endpoint) Close(cause error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	e.closed = true
	e.closeErr = cause

	for key, ch := range e.pending {
		ch <- pendingResult{err: &errors.TransportClosedError{Cause: cause}}
		delete(e.pending, key)
	}
}

// PendingCount returns the number of unresolved calls.
func (e *Endpoint) PendingCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}

func (e *Endpoint) resolve(msg *wire.Message) {
	key := string(msg.ID)

	e.mu.Lock()
	ch, ok := e.pending[key]
	if ok {
		delete(e.pending, key)
	}
	e.mu.Unlock()

	if !ok {
		// Response for an unknown or already-cancelled call. Not fatal.
		e.logger.Warnw("discarding response with unmatched id", "id", key)
		return
	}

	if msg.Error != nil {
		ch <- pendingResult{err: msg.Error}
		return
	}
	ch <- pendingResult{result: msg.Result}
}

func (e *Endpoint) dispatchNotification(ctx context.Context, msg *wire.Message) {
	e.notifMu.RLock()
	h := e.notifHandler
	e.notifMu.RUnlock()

	if h == nil {
		e.logger.Debugw("dropping notification with no handler", "method", msg.Method)
		return
	}
	h(ctx, msg.Method, msg.Params)
}

func (e *Endpoint) unregister(key string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.pending, key)
}
