// Package stream_simulator synthesizes client-visible streaming from a
// buffered non-streaming upstream reply. The reply text is re-emitted as
// fixed-size windows with a short inter-window delay, through the same
// framing the real stream paths use, so the client cannot tell the two
// apart.
package stream_simulator

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/openai/openai-go/v2"
	"github.com/valyala/fasthttp"

	"github.com/argoproxy/goproxy/internal/funccall"
	"github.com/argoproxy/goproxy/internal/models"
	"github.com/argoproxy/goproxy/internal/services/stream/processors"
)

const (
	windowSize  = 20
	windowDelay = 20 * time.Millisecond
)

// windows splits text into fixed-size rune windows, never splitting a
// UTF-8 sequence. Empty text yields a single empty window so every stream
// emits at least one delta.
func windows(text string, size int) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return []string{""}
	}
	var out []string
	for i := 0; i < len(runes); i += size {
		end := min(i+size, len(runes))
		out = append(out, string(runes[i:end]))
	}
	return out
}

func setSSEHeaders(c *fiber.Ctx) *fasthttp.RequestCtx {
	fasthttpCtx := c.Context()
	c.Set("Content-Type", "text/event-stream; charset=utf-8")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	return fasthttpCtx
}

func writeFrame(w *bufio.Writer, fasthttpCtx *fasthttp.RequestCtx, requestID string, payload any) bool {
	data, err := json.Marshal(payload)
	if err != nil {
		fiberlog.Errorf("[%s] Failed to marshal simulated chunk: %v", requestID, err)
		return false
	}
	if _, err := w.WriteString(fmt.Sprintf("data: %s\n\n", data)); err != nil {
		fiberlog.Errorf("[%s] Failed to write simulated chunk: %v", requestID, err)
		return false
	}
	if err := w.Flush(); err != nil {
		fiberlog.Errorf("[%s] Failed to flush simulated chunk: %v", requestID, err)
		return false
	}
	return true
}

func disconnected(fasthttpCtx *fasthttp.RequestCtx) bool {
	select {
	case <-fasthttpCtx.Done():
		return true
	default:
		return false
	}
}

// StreamChatCompletion re-emits a buffered chat reply as
// chat.completion.chunk frames terminated by [DONE]. With translateTools
// set and a FUNCTION_CALL-shaped reply, the terminal chunk carries the
// parsed tool call instead of a stop finish.
func StreamChatCompletion(c *fiber.Ctx, text, model, requestID string, translateTools bool) error {
	fiberlog.Infof("[%s] Simulating chat stream for non-streamable model %s", requestID, model)

	var call funccall.Call
	isToolCall := false
	if translateTools {
		call, isToolCall = funccall.Parse(text)
	}

	id := models.NewChatCompletionID()
	created := time.Now().Unix()
	chunk := func(delta models.ChatCompletionChunkChoiceDelta, finishReason string) *models.ChatCompletionChunk {
		return &models.ChatCompletionChunk{
			ID:      id,
			Object:  "chat.completion.chunk",
			Created: created,
			Model:   model,
			Choices: []models.ChatCompletionChunkChoice{{
				Index:        0,
				Delta:        delta,
				FinishReason: finishReason,
			}},
		}
	}

	fasthttpCtx := setSSEHeaders(c)
	fasthttpCtx.SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		if !writeFrame(w, fasthttpCtx, requestID, chunk(models.ChatCompletionChunkChoiceDelta{Role: "assistant"}, "")) {
			return
		}

		if !isToolCall {
			for _, window := range windows(text, windowSize) {
				if disconnected(fasthttpCtx) {
					fiberlog.Infof("[%s] Client disconnected during simulated stream", requestID)
					return
				}
				if !writeFrame(w, fasthttpCtx, requestID, chunk(models.ChatCompletionChunkChoiceDelta{Content: window}, "")) {
					return
				}
				time.Sleep(windowDelay)
			}
		}

		final := models.ChatCompletionChunkChoiceDelta{}
		finishReason := "stop"
		if isToolCall {
			final.ToolCalls = []openai.ChatCompletionChunkChoiceDeltaToolCall{{
				Index: 0,
				ID:    call.ID,
				Type:  "function",
				Function: openai.ChatCompletionChunkChoiceDeltaToolCallFunction{
					Name:      call.Name,
					Arguments: call.Arguments,
				},
			}}
			finishReason = "tool_calls"
		}
		if !writeFrame(w, fasthttpCtx, requestID, chunk(final, finishReason)) {
			return
		}

		if _, err := w.WriteString("data: [DONE]\n\n"); err != nil {
			fiberlog.Errorf("[%s] Failed to write [DONE]: %v", requestID, err)
			return
		}
		if err := w.Flush(); err != nil {
			fiberlog.Errorf("[%s] Failed to flush [DONE]: %v", requestID, err)
		}
	}))

	return nil
}

// StreamCompletion re-emits a buffered legacy completion reply as
// text_completion frames terminated by [DONE].
func StreamCompletion(c *fiber.Ctx, text, model, requestID string) error {
	fiberlog.Infof("[%s] Simulating completion stream for non-streamable model %s", requestID, model)

	id := models.NewCompletionID()
	created := time.Now().Unix()
	chunk := func(delta, finishReason string) *models.Completion {
		return &models.Completion{
			ID:      id,
			Object:  "text_completion",
			Created: created,
			Model:   model,
			Choices: []models.CompletionChoice{{
				Index:        0,
				Text:         delta,
				FinishReason: finishReason,
			}},
		}
	}

	fasthttpCtx := setSSEHeaders(c)
	fasthttpCtx.SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		wins := windows(text, windowSize)
		for i, window := range wins {
			if disconnected(fasthttpCtx) {
				fiberlog.Infof("[%s] Client disconnected during simulated stream", requestID)
				return
			}
			finishReason := ""
			if i == len(wins)-1 {
				finishReason = "stop"
			}
			if !writeFrame(w, fasthttpCtx, requestID, chunk(window, finishReason)) {
				return
			}
			time.Sleep(windowDelay)
		}

		if _, err := w.WriteString("data: [DONE]\n\n"); err != nil {
			fiberlog.Errorf("[%s] Failed to write [DONE]: %v", requestID, err)
			return
		}
		if err := w.Flush(); err != nil {
			fiberlog.Errorf("[%s] Failed to flush [DONE]: %v", requestID, err)
		}
	}))

	return nil
}

// StreamResponses re-emits a buffered reply through the responses event
// state machine, so simulated and real responses streams share one event
// sequence implementation.
func StreamResponses(c *fiber.Ctx, text, model, requestID string, promptTokens int64) error {
	fiberlog.Infof("[%s] Simulating responses stream for non-streamable model %s", requestID, model)

	proc := processors.NewResponsesStreamProcessor(model, requestID, promptTokens)

	fasthttpCtx := setSSEHeaders(c)
	fasthttpCtx.SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		emit := func(frames []byte, err error) bool {
			if err != nil {
				fiberlog.Errorf("[%s] Failed to build simulated events: %v", requestID, err)
				return false
			}
			if len(frames) == 0 {
				return true
			}
			if _, werr := w.Write(frames); werr != nil {
				fiberlog.Errorf("[%s] Failed to write simulated events: %v", requestID, werr)
				return false
			}
			if ferr := w.Flush(); ferr != nil {
				fiberlog.Errorf("[%s] Failed to flush simulated events: %v", requestID, ferr)
				return false
			}
			return true
		}

		if !emit(proc.Begin(context.Background())) {
			return
		}
		for _, window := range windows(text, windowSize) {
			if disconnected(fasthttpCtx) {
				fiberlog.Infof("[%s] Client disconnected during simulated stream", requestID)
				return
			}
			if !emit(proc.Process(context.Background(), []byte(window))) {
				return
			}
			time.Sleep(windowDelay)
		}
		emit(proc.Finish(context.Background()))
	}))

	return nil
}
