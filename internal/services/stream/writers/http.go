package writers

import (
	"bufio"

	"github.com/argoproxy/goproxy/internal/services/stream/contracts"

	"github.com/valyala/fasthttp"
)

// HTTPStreamWriter writes framed SSE data to the client, tracking the
// connection so emission stops promptly on disconnect. When sendDone is
// set, Close appends the chat-style [DONE] sentinel; responses streams
// terminate on their own completed event instead and leave it unset.
type HTTPStreamWriter struct {
	writer     *bufio.Writer
	connState  contracts.ConnectionState
	requestID  string
	totalBytes int64
	sendDone   bool
}

// NewHTTPStreamWriter creates a new HTTP stream writer.
func NewHTTPStreamWriter(writer *bufio.Writer, connState contracts.ConnectionState, requestID string, sendDone bool) *HTTPStreamWriter {
	return &HTTPStreamWriter{
		writer:    writer,
		connState: connState,
		requestID: requestID,
		sendDone:  sendDone,
	}
}

// Write writes data to the HTTP stream.
func (w *HTTPStreamWriter) Write(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if !w.connState.IsConnected() {
		return contracts.NewClientDisconnectError(w.requestID)
	}

	n, err := w.writer.Write(data)
	if n > 0 {
		w.totalBytes += int64(n)
	}
	if err != nil {
		return w.classify(err, "write failed")
	}
	return nil
}

// Flush flushes buffered data to the client.
func (w *HTTPStreamWriter) Flush() error {
	if !w.connState.IsConnected() {
		return contracts.NewClientDisconnectError(w.requestID)
	}
	if err := w.writer.Flush(); err != nil {
		return w.classify(err, "flush failed")
	}
	return nil
}

// Close terminates the stream, emitting the [DONE] sentinel when this
// writer is framing a chat or legacy completion stream.
func (w *HTTPStreamWriter) Close() error {
	if !w.connState.IsConnected() {
		return nil
	}
	if w.sendDone {
		n, err := w.writer.WriteString("data: [DONE]\n\n")
		w.totalBytes += int64(n)
		if err != nil {
			return w.classify(err, "write failed")
		}
	}
	if err := w.writer.Flush(); err != nil {
		return w.classify(err, "flush failed")
	}
	return nil
}

// TotalBytes returns total bytes written.
func (w *HTTPStreamWriter) TotalBytes() int64 {
	return w.totalBytes
}

func (w *HTTPStreamWriter) classify(err error, message string) error {
	if contracts.IsConnectionClosed(err) {
		return contracts.NewClientDisconnectError(w.requestID)
	}
	return contracts.NewInternalError(w.requestID, message, err)
}

// FastHTTPConnectionState wraps the fasthttp context for connection state.
type FastHTTPConnectionState struct {
	ctx *fasthttp.RequestCtx
}

// NewFastHTTPConnectionState creates connection state from the fasthttp context.
func NewFastHTTPConnectionState(ctx *fasthttp.RequestCtx) *FastHTTPConnectionState {
	return &FastHTTPConnectionState{ctx: ctx}
}

// IsConnected checks if the client is still connected.
func (c *FastHTTPConnectionState) IsConnected() bool {
	if c.ctx == nil {
		return false
	}
	select {
	case <-c.ctx.Done():
		return false
	default:
		return true
	}
}

// Done returns a channel that closes when the client disconnects.
func (c *FastHTTPConnectionState) Done() <-chan struct{} {
	if c.ctx == nil {
		done := make(chan struct{})
		close(done)
		return done
	}
	return c.ctx.Done()
}
