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

// statusProbeBody is the canonical chat request /v1/status sends upstream.
const statusProbeBody = `{"model":"argo:gpt-4o","messages":[{"role":"user","content":"Say hello"}]}`

// docsPointer is the plain-text reply of /v1/docs.
const docsPointer = "Documentation: https://github.com/argoproxy/goproxy#readme\n"

// HealthHandler serves the liveness, status-probe, and docs routes.
type HealthHandler struct {
	cfg    *config.Config
	reg    *registry.Registry
	client *argo.Client
}

// NewHealthHandler wires up the health routes.
func NewHealthHandler(cfg *config.Config, reg *registry.Registry, client *argo.Client) *HealthHandler {
	return &HealthHandler{cfg: cfg, reg: reg, client: client}
}

// Health handles GET /health.
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "healthy"})
}

// Status handles GET /v1/status: a live chat probe against the upstream,
// translated the same way a client chat request would be.
func (h *HealthHandler) Status(c *fiber.Ctx) error {
	requestID := GetRequestID(c)
	fiberlog.Infof("[%s] issuing upstream status probe", requestID)

	res, err := shaper.Shape([]byte(statusProbeBody), shaper.ChatCompletions, h.cfg, h.reg)
	if err != nil {
		return handleAppError(c, requestID, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.cfg.RequestTimeout(0))
	defer cancel()

	_, _, body, err := h.client.PostJSON(ctx, h.cfg.ArgoURL, res.Payload)
	if err != nil {
		return handleAppError(c, requestID, err)
	}

	var reply models.UpstreamChatReply
	if err := json.Unmarshal(body, &reply); err != nil {
		return handleAppError(c, requestID, apperr.NewUnexpected(err))
	}

	promptTokens := int64(tokens.Count(res.PromptText, res.UpstreamModel))
	return c.JSON(format_adapter.ArgoToOpenAI.ConvertChatCompletion(&reply, res.UpstreamModel, promptTokens, false))
}

// Docs handles GET /v1/docs.
func (h *HealthHandler) Docs(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.SendString(docsPointer)
}
