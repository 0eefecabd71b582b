// Package wire implements the Content-Length framed JSON message protocol
// spoken between the daemon and its build worker subprocesses.
package wire

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

// Version is the JSON-RPC protocol version stamped on every message.
const Version = "2.0"

// Well-known JSON-RPC error codes.
const (
	CodeParseError     int32 = -32700
	CodeInvalidRequest int32 = -32600
	CodeMethodNotFound int32 = -32601
	CodeInvalidParams  int32 = -32602
	CodeInternalError  int32 = -32603
)

// Message is the envelope for every frame on the worker wire.
// A request carries ID and Method, a notification carries Method only,
// and a response carries ID plus either Result or Error.
type Message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ResponseError  `json:"error,omitempty"`
}

// ResponseError is the error member of a failed response.
type ResponseError struct {
	Code    int32           `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *ResponseError) Error() string {
	return e.Message
}

// IsCall reports whether the message is a request expecting a response.
func (m *Message) IsCall() bool {
	return m.Method != "" && len(m.ID) > 0
}

// IsNotification reports whether the message is a fire-and-forget notification.
func (m *Message) IsNotification() bool {
	return m.Method != "" && len(m.ID) == 0
}

// IsResponse reports whether the message answers a previously sent request.
func (m *Message) IsResponse() bool {
	return m.Method == "" && len(m.ID) > 0
}

// NewRequest returns a request message with the given numeric id.
func NewRequest(id int64, method string, params interface{}) (*Message, error) {
	raw, err := marshalParams(params)
	if err != nil {
		return nil, err
	}
	return &Message{
		JSONRPC: Version,
		ID:      json.RawMessage(strconv.FormatInt(id, 10)),
		Method:  method,
		Params:  raw,
	}, nil
}

// NewNotification returns a notification message, which carries no id.
func NewNotification(method string, params interface{}) (*Message, error) {
	raw, err := marshalParams(params)
	if err != nil {
		return nil, err
	}
	return &Message{
		JSONRPC: Version,
		Method:  method,
		Params:  raw,
	}, nil
}

// NewResponse returns a response answering the request with the given raw id.
func NewResponse(id json.RawMessage, result interface{}) (*Message, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("marshalling result: %w", err)
	}
	return &Message{
		JSONRPC: Version,
		ID:      id,
		Result:  raw,
	}, nil
}

// NewErrorResponse returns an error response answering the request with the given raw id.
func NewErrorResponse(id json.RawMessage, code int32, message string, data interface{}) (*Message, error) {
	respErr := &ResponseError{
		Code:    code,
		Message: message,
	}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("marshalling error data: %w", err)
		}
		respErr.Data = raw
	}
	return &Message{
		JSONRPC: Version,
		ID:      id,
		Error:   respErr,
	}, nil
}

func marshalParams(params interface{}) (json.RawMessage, error) {
	if params == nil {
		return nil, nil
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshalling params: %w", err)
	}
	return raw, nil
}

var _contentLengthPattern = regexp.MustCompile(`^Content-Length: *(\d+)\s*$`)

// Reader decodes framed messages off a byte stream.
type Reader struct {
	r *bufio.Reader
}

// NewReader returns a Reader that frames messages off r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Read returns the next framed message on the stream.
// Lines that do not match the Content-Length header are skipped rather than
// treated as fatal, so a worker that writes stray output to its stdout does
// not take the read loop down. Read returns io.EOF once the stream ends
// cleanly between frames, and io.ErrUnexpectedEOF if it ends mid-frame.
func (r *Reader) Read() (*Message, error) {
	contentLength, err := r.scanHeaders()
	if err != nil {
		return nil, err
	}

	body := make([]byte, contentLength)
	if _, err := io.ReadFull(r.r, body); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("reading %d byte frame body: %w", contentLength, err)
	}

	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, &ParseError{Body: body, Cause: err}
	}
	return &msg, nil
}

// scanHeaders consumes lines until a Content-Length header and the blank
// end-of-headers line have both been seen, returning the announced body size.
func (r *Reader) scanHeaders() (int, error) {
	contentLength := -1
	for {
		line, err := r.r.ReadString('\n')
		if err != nil {
			if err == io.EOF && line == "" && contentLength < 0 {
				return 0, io.EOF
			}
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return 0, fmt.Errorf("reading frame header: %w", err)
		}

		trimmed := strings.TrimRight(line, "\r\n")
		if trimmed == "" {
			if contentLength >= 0 {
				return contentLength, nil
			}
			// Blank line before any length header. Keep scanning.
			continue
		}

		match := _contentLengthPattern.FindStringSubmatch(trimmed)
		if match == nil {
			// Unrecognized header or stray output. Keep scanning.
			continue
		}
		n, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		contentLength = n
	}
}

// ParseError reports a frame whose body was not valid JSON.
type ParseError struct {
	Body  []byte
	Cause error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing frame body: %v", e.Cause)
}

// Unwrap returns the underlying JSON error.
func (e *ParseError) Unwrap() error {
	return e.Cause
}

// Writer encodes framed messages onto a byte stream. Writes are serialized,
// so a Writer may be shared between the request and notification paths.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriter returns a Writer that frames messages onto w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write frames and writes a single message.
func (w *Writer) Write(msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshalling frame body: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Content-Length: %d\r\n\r\n", len(body))
	buf.Write(body)
	if _, err := w.w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("writing frame: %w", err)
	}
	return nil
}
