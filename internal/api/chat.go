package api

import (
	"context"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"

	"github.com/argoproxy/goproxy/internal/apperr"
	"github.com/argoproxy/goproxy/internal/config"
	"github.com/argoproxy/goproxy/internal/registry"
	"github.com/argoproxy/goproxy/internal/services/argo"
	"github.com/argoproxy/goproxy/internal/services/stream/handlers"
	"github.com/argoproxy/goproxy/internal/services/stream/processors"
	"github.com/argoproxy/goproxy/internal/services/stream/readers"
	"github.com/argoproxy/goproxy/internal/shaper"
)

// ChatHandler serves the untranslated /v1/chat route: the body is shaped
// for the upstream contract but the reply passes through verbatim.
type ChatHandler struct {
	cfg    *config.Config
	reg    *registry.Registry
	client *argo.Client
}

// NewChatHandler wires up the passthrough chat route.
func NewChatHandler(cfg *config.Config, reg *registry.Registry, client *argo.Client) *ChatHandler {
	return &ChatHandler{cfg: cfg, reg: reg, client: client}
}

// Chat handles POST /v1/chat.
func (h *ChatHandler) Chat(c *fiber.Ctx) error {
	requestID := GetRequestID(c)
	fiberlog.Infof("[%s] starting passthrough chat request", requestID)

	raw := c.Body()
	if len(raw) == 0 {
		return handleAppError(c, requestID, apperr.NewBadRequest("request body is required", nil))
	}

	res, err := shaper.Shape(raw, shaper.ChatPassthrough, h.cfg, h.reg)
	if err != nil {
		return handleAppError(c, requestID, err)
	}

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
		proc := processors.NewPassthroughProcessor(requestID)
		return handlers.HandleSSE(c, reader, proc, requestID, false, cancel)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	_, header, body, err := h.client.PostJSON(ctx, h.cfg.ArgoURL, res.Payload)
	if err != nil {
		return handleAppError(c, requestID, err)
	}

	argo.CopyUpstreamHeaders(header, c)
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(body)
}
