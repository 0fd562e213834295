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
	"github.com/argoproxy/goproxy/internal/shaper"
	"github.com/argoproxy/goproxy/internal/tokens"
)

// EmbeddingHandler serves /v1/embeddings. Embeddings never stream.
type EmbeddingHandler struct {
	cfg    *config.Config
	reg    *registry.Registry
	client *argo.Client
}

// NewEmbeddingHandler wires up the embeddings route.
func NewEmbeddingHandler(cfg *config.Config, reg *registry.Registry, client *argo.Client) *EmbeddingHandler {
	return &EmbeddingHandler{cfg: cfg, reg: reg, client: client}
}

// Embeddings handles POST /v1/embeddings.
func (h *EmbeddingHandler) Embeddings(c *fiber.Ctx) error {
	requestID := GetRequestID(c)
	fiberlog.Infof("[%s] starting embeddings request", requestID)

	raw := c.Body()
	if len(raw) == 0 {
		return handleAppError(c, requestID, apperr.NewBadRequest("request body is required", nil))
	}

	res, err := shaper.Shape(raw, shaper.Embeddings, h.cfg, h.reg)
	if err != nil {
		return handleAppError(c, requestID, err)
	}

	promptTokens := int64(tokens.Count(res.PromptText, res.UpstreamModel))

	ctx, cancel := context.WithTimeout(context.Background(), h.cfg.RequestTimeout(bodyTimeoutSeconds(raw)))
	defer cancel()

	_, header, body, err := h.client.PostJSON(ctx, h.cfg.ArgoEmbeddingURL, res.Payload)
	if err != nil {
		return handleAppError(c, requestID, err)
	}

	var reply models.UpstreamEmbedReply
	if err := json.Unmarshal(body, &reply); err != nil {
		return handleAppError(c, requestID, apperr.NewUnexpected(err))
	}

	argo.CopyUpstreamHeaders(header, c)
	return c.JSON(format_adapter.ArgoToOpenAI.ConvertEmbeddings(&reply, res.UpstreamModel, promptTokens))
}
