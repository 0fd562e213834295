package processors

import (
	"context"
)

// PassthroughProcessor hands upstream bytes to the client unmodified.
// Used by the untranslated /v1/chat stream path.
type PassthroughProcessor struct {
	requestID string
}

// NewPassthroughProcessor creates a new passthrough processor.
func NewPassthroughProcessor(requestID string) *PassthroughProcessor {
	return &PassthroughProcessor{requestID: requestID}
}

// Begin emits nothing.
func (p *PassthroughProcessor) Begin(ctx context.Context) ([]byte, error) {
	return nil, nil
}

// Process passes data through without modification.
func (p *PassthroughProcessor) Process(ctx context.Context, data []byte) ([]byte, error) {
	return data, nil
}

// Finish emits nothing.
func (p *PassthroughProcessor) Finish(ctx context.Context) ([]byte, error) {
	return nil, nil
}
