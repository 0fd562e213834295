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
	"github.com/argoproxy/goproxy/internal/services/stream/contracts"
	"github.com/argoproxy/goproxy/internal/services/stream/handlers"
	"github.com/argoproxy/goproxy/internal/services/stream/processors"
	"github.com/argoproxy/goproxy/internal/services/stream/readers"
	"github.com/argoproxy/goproxy/internal/services/stream/stream_simulator"
	"github.com/argoproxy/goproxy/internal/shaper"
	"github.com/argoproxy/goproxy/internal/tokens"
)

// CompletionHandler serves the OpenAI chat-completions and legacy
// text-completions routes: shape the body, dispatch upstream, translate
// the reply, choosing between the real-stream, fake-stream, and
// non-stream paths.
type CompletionHandler struct {
	cfg    *config.Config
	reg    *registry.Registry
	client *argo.Client
}

// NewCompletionHandler wires up the completion routes' dependencies.
func NewCompletionHandler(cfg *config.Config, reg *registry.Registry, client *argo.Client) *CompletionHandler {
	return &CompletionHandler{cfg: cfg, reg: reg, client: client}
}

// ChatCompletion handles POST /v1/chat/completions.
func (h *CompletionHandler) ChatCompletion(c *fiber.Ctx) error {
	return h.handle(c, shaper.ChatCompletions)
}

// Completion handles POST /v1/completions.
func (h *CompletionHandler) Completion(c *fiber.Ctx) error {
	return h.handle(c, shaper.Completions)
}

func (h *CompletionHandler) handle(c *fiber.Ctx, kind shaper.Kind) error {
	requestID := GetRequestID(c)
	fiberlog.Infof("[%s] starting completion request", requestID)

	raw := c.Body()
	if len(raw) == 0 {
		return handleAppError(c, requestID, apperr.NewBadRequest("request body is required", nil))
	}

	res, err := shaper.Shape(raw, kind, h.cfg, h.reg)
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
		var proc contracts.ChunkProcessor
		if kind == shaper.ChatCompletions {
			proc = processors.NewChatChunkProcessor(res.UpstreamModel, requestID)
		} else {
			proc = processors.NewCompletionChunkProcessor(res.UpstreamModel, requestID)
		}
		return handlers.HandleSSE(c, reader, proc, requestID, true, cancel)
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
		if kind == shaper.ChatCompletions {
			return stream_simulator.StreamChatCompletion(c, reply.Response, res.UpstreamModel, requestID, h.cfg.TranslateTools)
		}
		return stream_simulator.StreamCompletion(c, reply.Response, res.UpstreamModel, requestID)
	}

	argo.CopyUpstreamHeaders(header, c)
	if kind == shaper.ChatCompletions {
		return c.JSON(format_adapter.ArgoToOpenAI.ConvertChatCompletion(&reply, res.UpstreamModel, promptTokens, h.cfg.TranslateTools))
	}
	return c.JSON(format_adapter.ArgoToOpenAI.ConvertCompletion(&reply, res.UpstreamModel, promptTokens))
}
