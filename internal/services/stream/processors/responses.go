package processors

import (
	"bytes"
	"context"
	"time"

	"github.com/argoproxy/goproxy/internal/models"
	"github.com/argoproxy/goproxy/internal/tokens"
	"github.com/argoproxy/goproxy/internal/utils"
)

// ResponsesStreamProcessor drives the responses event sequence: the
// in_progress prologue before the first upstream byte, one
// output_text.delta per chunk, and the done/completed epilogue once the
// upstream stream ends. Sequence numbers are monotonic from 0 and the
// accumulated text and output tokens are computed exactly once, at the
// completed event.
type ResponsesStreamProcessor struct {
	responseID   string
	messageID    string
	model        string
	requestID    string
	createdAt    int64
	promptTokens int64
	seq          int64
	cumulated    *bytes.Buffer
}

// NewResponsesStreamProcessor creates the per-request state machine.
func NewResponsesStreamProcessor(model, requestID string, promptTokens int64) *ResponsesStreamProcessor {
	return &ResponsesStreamProcessor{
		responseID:   models.NewResponseID(),
		messageID:    models.NewMessageID(),
		model:        model,
		requestID:    requestID,
		createdAt:    time.Now().Unix(),
		promptTokens: promptTokens,
		cumulated:    &bytes.Buffer{},
	}
}

const (
	outputIndex  = int64(0)
	contentIndex = int64(0)
)

func (p *ResponsesStreamProcessor) next() int64 {
	n := p.seq
	p.seq++
	return n
}

func (p *ResponsesStreamProcessor) snapshot(status string, output []models.ResponseOutputMessage, usage *models.ResponseUsage) *models.Response {
	if output == nil {
		output = []models.ResponseOutputMessage{}
	}
	return &models.Response{
		ID:        p.responseID,
		Object:    "response",
		CreatedAt: p.createdAt,
		Model:     p.model,
		Status:    status,
		Output:    output,
		Usage:     usage,
	}
}

func (p *ResponsesStreamProcessor) message(status string, content []models.ResponseOutputText) *models.ResponseOutputMessage {
	if content == nil {
		content = []models.ResponseOutputText{}
	}
	return &models.ResponseOutputMessage{
		ID:      p.messageID,
		Type:    "message",
		Role:    "assistant",
		Status:  status,
		Content: content,
	}
}

// Begin emits response.created, response.in_progress,
// response.output_item.added, and response.content_part.added, in that
// order, before any delta.
func (p *ResponsesStreamProcessor) Begin(ctx context.Context) ([]byte, error) {
	oi, ci := outputIndex, contentIndex
	emptyPart := models.NewResponseOutputText("")

	events := []models.ResponseStreamEvent{
		{
			Type:           "response.created",
			SequenceNumber: p.next(),
			Response:       p.snapshot("in_progress", nil, nil),
		},
		{
			Type:           "response.in_progress",
			SequenceNumber: p.next(),
			Response:       p.snapshot("in_progress", nil, nil),
		},
		{
			Type:           "response.output_item.added",
			SequenceNumber: p.next(),
			OutputIndex:    &oi,
			Item:           p.message("in_progress", nil),
		},
		{
			Type:           "response.content_part.added",
			SequenceNumber: p.next(),
			ItemID:         p.messageID,
			OutputIndex:    &oi,
			ContentIndex:   &ci,
			Part:           &emptyPart,
		},
	}
	return frameAll(events)
}

// Process emits one response.output_text.delta event and accumulates the
// chunk into the cumulated text.
func (p *ResponsesStreamProcessor) Process(ctx context.Context, data []byte) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	if len(data) == 0 {
		return nil, nil
	}

	p.cumulated.Write(data)

	oi, ci := outputIndex, contentIndex
	return frame(models.ResponseStreamEvent{
		Type:           "response.output_text.delta",
		SequenceNumber: p.next(),
		ItemID:         p.messageID,
		OutputIndex:    &oi,
		ContentIndex:   &ci,
		Delta:          string(data),
	})
}

// Finish emits response.output_text.done, response.content_part.done,
// response.output_item.done, and the terminal response.completed event
// carrying the filled usage block.
func (p *ResponsesStreamProcessor) Finish(ctx context.Context) ([]byte, error) {
	oi, ci := outputIndex, contentIndex
	text := p.cumulated.String()
	part := models.NewResponseOutputText(text)
	outputTokens := int64(tokens.Count(text, p.model))

	done := p.message("completed", []models.ResponseOutputText{part})
	usage := &models.ResponseUsage{
		InputTokens:  p.promptTokens,
		OutputTokens: outputTokens,
		TotalTokens:  p.promptTokens + outputTokens,
	}

	events := []models.ResponseStreamEvent{
		{
			Type:           "response.output_text.done",
			SequenceNumber: p.next(),
			ItemID:         p.messageID,
			OutputIndex:    &oi,
			ContentIndex:   &ci,
			Text:           text,
		},
		{
			Type:           "response.content_part.done",
			SequenceNumber: p.next(),
			ItemID:         p.messageID,
			OutputIndex:    &oi,
			ContentIndex:   &ci,
			Part:           &part,
		},
		{
			Type:           "response.output_item.done",
			SequenceNumber: p.next(),
			OutputIndex:    &oi,
			Item:           done,
		},
		{
			Type:           "response.completed",
			SequenceNumber: p.next(),
			Response:       p.snapshot("completed", []models.ResponseOutputMessage{*done}, usage),
		},
	}
	return frameAll(events)
}

// frameAll concatenates the SSE frames of several events using a pooled
// buffer for assembly.
func frameAll(events []models.ResponseStreamEvent) ([]byte, error) {
	buf := utils.Get()
	defer utils.Put(buf)

	for _, ev := range events {
		framed, err := frame(ev)
		if err != nil {
			return nil, err
		}
		buf.B = append(buf.B, framed...)
	}

	out := make([]byte, len(buf.B))
	copy(out, buf.B)
	return out, nil
}
