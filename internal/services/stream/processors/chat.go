// Package processors turns raw upstream text chunks into framed SSE
// events, one processor per client-facing stream format.
package processors

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/argoproxy/goproxy/internal/models"
)

// frame serializes v and wraps it as one SSE data frame.
func frame(v any) ([]byte, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal SSE payload: %w", err)
	}
	return []byte(fmt.Sprintf("data: %s\n\n", payload)), nil
}

// ChatChunkProcessor frames upstream text chunks as chat.completion.chunk
// events. All chunks of one stream share the same id, created timestamp,
// and resolved model.
type ChatChunkProcessor struct {
	id        string
	created   int64
	model     string
	requestID string
}

// NewChatChunkProcessor creates a chat stream processor for one request.
func NewChatChunkProcessor(model, requestID string) *ChatChunkProcessor {
	return &ChatChunkProcessor{
		id:        models.NewChatCompletionID(),
		created:   time.Now().Unix(),
		model:     model,
		requestID: requestID,
	}
}

// Begin emits the role-announcing chunk clients use to open the message.
func (p *ChatChunkProcessor) Begin(ctx context.Context) ([]byte, error) {
	return frame(p.chunk(models.ChatCompletionChunkChoiceDelta{Role: "assistant"}, ""))
}

// Process frames one upstream text chunk as a content delta.
func (p *ChatChunkProcessor) Process(ctx context.Context, data []byte) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	if len(data) == 0 {
		return nil, nil
	}
	return frame(p.chunk(models.ChatCompletionChunkChoiceDelta{Content: string(data)}, ""))
}

// Finish emits the terminal chunk carrying the finish reason; the [DONE]
// sentinel itself belongs to the writer.
func (p *ChatChunkProcessor) Finish(ctx context.Context) ([]byte, error) {
	return frame(p.chunk(models.ChatCompletionChunkChoiceDelta{}, "stop"))
}

func (p *ChatChunkProcessor) chunk(delta models.ChatCompletionChunkChoiceDelta, finishReason string) *models.ChatCompletionChunk {
	return &models.ChatCompletionChunk{
		ID:      p.id,
		Object:  "chat.completion.chunk",
		Created: p.created,
		Model:   p.model,
		Choices: []models.ChatCompletionChunkChoice{{
			Index:        0,
			Delta:        delta,
			FinishReason: finishReason,
		}},
	}
}
