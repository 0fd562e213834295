package handlers

import (
	"bufio"

	"github.com/argoproxy/goproxy/internal/services/stream/contracts"
	"github.com/argoproxy/goproxy/internal/services/stream/writers"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/valyala/fasthttp"
)

// HandleSSE commits stream headers and runs the orchestrated pipeline
// inside the fasthttp body stream writer. cleanup runs when the stream
// ends for any reason; it cancels the upstream request so the connection
// is released promptly after a client disconnect.
func HandleSSE(c *fiber.Ctx, reader contracts.StreamReader, processor contracts.ChunkProcessor, requestID string, sendDone bool, cleanup func()) error {
	fiberlog.Infof("[%s] Starting SSE stream", requestID)

	fasthttpCtx := c.Context()
	c.Set("Content-Type", "text/event-stream; charset=utf-8")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")

	orchestrator := NewStreamOrchestrator(reader, processor, requestID)

	fasthttpCtx.SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		if cleanup != nil {
			defer cleanup()
		}

		connState := writers.NewFastHTTPConnectionState(fasthttpCtx)
		httpWriter := writers.NewHTTPStreamWriter(w, connState, requestID, sendDone)

		if err := orchestrator.Handle(fasthttpCtx, httpWriter); err != nil {
			if !contracts.IsExpectedError(err) {
				fiberlog.Errorf("[%s] Stream error: %v", requestID, err)
			} else {
				fiberlog.Infof("[%s] Stream ended: %v", requestID, err)
			}
		}
	}))

	return nil
}
