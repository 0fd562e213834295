package api

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/argoproxy/goproxy/internal/models"
	"github.com/argoproxy/goproxy/internal/registry"
)

// ModelsHandler serves the static /v1/models catalogue.
type ModelsHandler struct {
	reg *registry.Registry
}

// NewModelsHandler wires up the model catalogue route.
func NewModelsHandler(reg *registry.Registry) *ModelsHandler {
	return &ModelsHandler{reg: reg}
}

// Models handles GET /v1/models, combining the chat and embedding alias
// tables into OpenAI model objects.
func (h *ModelsHandler) Models(c *fiber.Ctx) error {
	now := time.Now().Unix()

	aliases := append(h.reg.ListChat(), h.reg.ListEmbed()...)
	data := make([]models.Model, len(aliases))
	for i, alias := range aliases {
		data[i] = models.Model{
			ID:      alias,
			Object:  "model",
			Created: now,
			OwnedBy: "system",
		}
	}

	return c.JSON(models.ModelList{Object: "list", Data: data})
}
