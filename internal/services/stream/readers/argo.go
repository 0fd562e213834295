package readers

import (
	"context"
	"errors"
	"io"
	"sync"
)

// ArgoStreamReader provides pure I/O reading of the upstream stream body.
// Upstream chunks are opaque UTF-8 text; no framing is assumed, each Read
// hands whatever the connection delivered to the processor layer.
type ArgoStreamReader struct {
	body      io.ReadCloser
	requestID string
	closeOnce sync.Once
	closeErr  error
}

// NewArgoStreamReader wraps a live upstream reply body.
func NewArgoStreamReader(body io.ReadCloser, requestID string) *ArgoStreamReader {
	return &ArgoStreamReader{body: body, requestID: requestID}
}

// Read implements io.Reader. Context cancellation surfaced by the
// underlying transport is treated as normal termination so a client
// disconnect doesn't get logged as an upstream failure.
func (r *ArgoStreamReader) Read(p []byte) (int, error) {
	n, err := r.body.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return n, io.EOF
		}
	}
	return n, err
}

// Close implements io.Closer; closing releases the upstream connection.
func (r *ArgoStreamReader) Close() error {
	r.closeOnce.Do(func() {
		r.closeErr = r.body.Close()
	})
	return r.closeErr
}
