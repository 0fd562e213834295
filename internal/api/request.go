package api

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/tidwall/gjson"

	"github.com/argoproxy/goproxy/internal/apperr"
)

// GetRequestID returns the client-supplied X-Request-ID or mints one.
func GetRequestID(c *fiber.Ctx) string {
	if id := c.Get("X-Request-ID"); id != "" {
		return id
	}
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		return "req-unknown"
	}
	return hex.EncodeToString(b)
}

// handleAppError maps an error onto its HTTP status and JSON error body.
// Only valid before stream headers are committed.
func handleAppError(c *fiber.Ctx, requestID string, err error) error {
	appErr := apperr.As(err)
	if appErr.Kind == apperr.Unexpected {
		fiberlog.Errorf("[%s] %v", requestID, appErr)
	} else {
		fiberlog.Infof("[%s] %v", requestID, appErr)
	}
	return c.Status(appErr.HTTPStatus()).JSON(appErr.Body())
}

// bodyTimeoutSeconds reads the per-request timeout override from the raw
// request body.
func bodyTimeoutSeconds(raw []byte) float64 {
	return gjson.GetBytes(raw, "timeout").Float()
}
