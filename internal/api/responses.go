package api

import (
	"context"
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"

	"github.com/argoproxy/goproxy/internal/apperr"
	"github.com/argoproxy/goproxy/internal/config"
	"github.com/argoproxy/goproxy/internal/models"
	"github.com/argoproxy/goproxy/internal/registry"
	"github.com/argoproxy/goproxy/internal/services/argo"
	"github.com/argoproxy/goproxy/internal/services/format_adapter"
	"github.com/argoproxy/goproxy/internal/services/stream/handlers"
	"github.com/argoproxy/goproxy/internal/services/stream/processors"
	"github.com/argoproxy/goproxy/internal/services/stream/readers"
	"github.com/argoproxy/goproxy/internal/services/stream/stream_simulator"
	"github.com/argoproxy/goproxy/internal/shaper"
	"github.com/argoproxy/goproxy/internal/tokens"
)

// ResponsesHandler serves /v1/responses, the event-sequence reply
// protocol. Streams terminate on the response.completed event rather than
// a [DONE] sentinel.
type ResponsesHandler struct {
	cfg    *config.Config
	reg    *registry.Registry
	client *argo.Client
}

// NewResponsesHandler wires up the responses route.
func NewResponsesHandler(cfg *config.Config, reg *registry.Registry, client *argo.Client) *ResponsesHandler {
	return &ResponsesHandler{cfg: cfg, reg: reg, client: client}
}

// Responses handles POST /v1/responses.
func (h *ResponsesHandler) Responses(c *fiber.Ctx) error {
	requestID := GetRequestID(c)
	fiberlog.Infof("[%s] starting responses request", requestID)

	raw := c.Body()
	if len(raw) == 0 {
		return handleAppError(c, requestID, apperr.NewBadRequest("request body is required", nil))
	}

	res, err := shaper.Shape(raw, shaper.Responses, h.cfg, h.reg)
	if err != nil {
		return handleAppError(c, requestID, err)
	}

	promptTokens := int64(tokens.Count(res.PromptText, res.UpstreamModel))
	timeout := h.cfg.RequestTimeout(bodyTimeoutSeconds(raw))

	if res.ForwardStream {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		sr, err := h.client.PostStream(ctx, h.cfg.ArgoStreamURL, res.Payload)
		if err != nil {
			cancel()
			return handleAppError(c, requestID, err)
		}
		argo.CopyUpstreamHeaders(sr.Header, c)

		reader := readers.NewArgoStreamReader(sr.Body, requestID)
		proc := processors.NewResponsesStreamProcessor(res.UpstreamModel, requestID, promptTokens)
		return handlers.HandleSSE(c, reader, proc, requestID, false, cancel)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	_, header, body, err := h.client.PostJSON(ctx, h.cfg.ArgoURL, res.Payload)
	if err != nil {
		return handleAppError(c, requestID, err)
	}

	var reply models.UpstreamChatReply
	if err := json.Unmarshal(body, &reply); err != nil {
		return handleAppError(c, requestID, apperr.NewUnexpected(err))
	}

	if res.ClientStream {
		return stream_simulator.StreamResponses(c, reply.Response, res.UpstreamModel, requestID, promptTokens)
	}

	argo.CopyUpstreamHeaders(header, c)
	return c.JSON(format_adapter.ArgoToOpenAI.ConvertResponse(&reply, res.UpstreamModel, promptTokens))
}
