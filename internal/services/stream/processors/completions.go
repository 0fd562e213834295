package processors

import (
	"context"
	"time"

	"github.com/argoproxy/goproxy/internal/models"
)

// CompletionChunkProcessor frames upstream text chunks as legacy
// text_completion events, carrying the delta in the choice's text field.
type CompletionChunkProcessor struct {
	id        string
	created   int64
	model     string
	requestID string
}

// NewCompletionChunkProcessor creates a legacy completion stream processor.
func NewCompletionChunkProcessor(model, requestID string) *CompletionChunkProcessor {
	return &CompletionChunkProcessor{
		id:        models.NewCompletionID(),
		created:   time.Now().Unix(),
		model:     model,
		requestID: requestID,
	}
}

// Begin emits nothing; the legacy framing has no role prologue.
func (p *CompletionChunkProcessor) Begin(ctx context.Context) ([]byte, error) {
	return nil, nil
}

// Process frames one upstream text chunk.
func (p *CompletionChunkProcessor) Process(ctx context.Context, data []byte) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	if len(data) == 0 {
		return nil, nil
	}
	return frame(p.chunk(string(data), ""))
}

// Finish emits the terminal chunk with the finish reason.
func (p *CompletionChunkProcessor) Finish(ctx context.Context) ([]byte, error) {
	return frame(p.chunk("", "stop"))
}

func (p *CompletionChunkProcessor) chunk(text, finishReason string) *models.Completion {
	return &models.Completion{
		ID:      p.id,
		Object:  "text_completion",
		Created: p.created,
		Model:   p.model,
		Choices: []models.CompletionChoice{{
			Index:        0,
			Text:         text,
			FinishReason: finishReason,
		}},
	}
}
