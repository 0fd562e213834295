package config

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/argoproxy/goproxy/internal/config"
)

// Builder provides a fluent interface for assembling a proxy
// configuration in code, for embedders that don't load a YAML file.
type Builder struct {
	cfg         *config.Config
	middlewares []fiber.Handler
}

// New creates a configuration builder with the proxy's defaults.
func New() *Builder {
	return &Builder{
		cfg: &config.Config{
			Host:       "0.0.0.0",
			Port:       "8080",
			NumWorkers: 4,
			Timeout:    600 * time.Second,
		},
		middlewares: []fiber.Handler{},
	}
}

// Host sets the bind host.
func (b *Builder) Host(host string) *Builder {
	b.cfg.Host = host
	return b
}

// Port sets the bind port.
func (b *Builder) Port(port string) *Builder {
	b.cfg.Port = port
	return b
}

// User sets the upstream user identity stamped on every forwarded payload.
func (b *Builder) User(user string) *Builder {
	b.cfg.User = user
	return b
}

// ArgoURL sets the non-streaming upstream chat endpoint.
func (b *Builder) ArgoURL(url string) *Builder {
	b.cfg.ArgoURL = url
	return b
}

// ArgoStreamURL sets the streaming upstream chat endpoint.
func (b *Builder) ArgoStreamURL(url string) *Builder {
	b.cfg.ArgoStreamURL = url
	return b
}

// ArgoEmbeddingURL sets the upstream embeddings endpoint.
func (b *Builder) ArgoEmbeddingURL(url string) *Builder {
	b.cfg.ArgoEmbeddingURL = url
	return b
}

// Verbose toggles debug logging.
func (b *Builder) Verbose(verbose bool) *Builder {
	b.cfg.Verbose = verbose
	return b
}

// NumWorkers bounds the number of concurrent upstream dispatches.
func (b *Builder) NumWorkers(n int) *Builder {
	b.cfg.NumWorkers = n
	return b
}

// Timeout sets the default per-request timeout.
func (b *Builder) Timeout(d time.Duration) *Builder {
	b.cfg.Timeout = d
	return b
}

// TranslateTools toggles the function-calling bridge.
func (b *Builder) TranslateTools(enabled bool) *Builder {
	b.cfg.TranslateTools = enabled
	return b
}

// Use registers a custom middleware ahead of route dispatch.
func (b *Builder) Use(middleware fiber.Handler) *Builder {
	b.middlewares = append(b.middlewares, middleware)
	return b
}

// Build returns the assembled configuration.
func (b *Builder) Build() *config.Config {
	return b.cfg
}

// GetMiddlewares returns the registered custom middlewares.
func (b *Builder) GetMiddlewares() []fiber.Handler {
	return b.middlewares
}
