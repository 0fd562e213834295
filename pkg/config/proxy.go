// Package config provides the embeddable proxy server: fiber app
// construction, middleware, route registration, and lifecycle.
package config

import (
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"gopkg.in/yaml.v3"

	"github.com/argoproxy/goproxy/internal/api"
	"github.com/argoproxy/goproxy/internal/config"
	"github.com/argoproxy/goproxy/internal/registry"
	"github.com/argoproxy/goproxy/internal/services/argo"
)

// Proxy is one translating-proxy server instance. The config, registry,
// and upstream client are constructed once and shared read-only across
// request handlers.
type Proxy struct {
	config      *config.Config
	app         *fiber.App
	reg         *registry.Registry
	client      *argo.Client
	middlewares []fiber.Handler
}

// NewProxy creates a Proxy from an already-loaded configuration.
func NewProxy(cfg *config.Config) *Proxy {
	if cfg == nil {
		panic("config cannot be nil - use config.Load() or the config builder")
	}
	return &Proxy{config: cfg}
}

// NewProxyWithBuilder creates a Proxy from a configuration builder,
// carrying over any custom middlewares registered on it.
func NewProxyWithBuilder(b *Builder) *Proxy {
	return &Proxy{
		config:      b.Build(),
		middlewares: b.GetMiddlewares(),
	}
}

// Run starts the proxy server and blocks until shutdown. A non-nil return
// means startup or shutdown failed and the process should exit non-zero.
func (p *Proxy) Run() error {
	if err := p.config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	setupLogLevel(p.config)

	if p.config.ShowConfig {
		if out, err := yaml.Marshal(p.config); err == nil {
			fmt.Printf("Effective configuration:\n%s", out)
		}
	}

	p.buildApp()

	listenAddr := p.config.Host + ":" + p.config.Port
	fmt.Printf("argoproxy starting on %s (workers=%d, go=%s)\n",
		listenAddr, p.config.NumWorkers, runtime.Version())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		if err := p.app.Listen(listenAddr); err != nil {
			serverErrChan <- err
		}
	}()

	select {
	case sig := <-sigChan:
		fiberlog.Infof("Received signal: %v. Starting graceful shutdown...", sig)
	case err := <-serverErrChan:
		return fmt.Errorf("server error: %w", err)
	}

	if err := p.app.ShutdownWithTimeout(30 * time.Second); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	p.client.Close()
	fiberlog.Info("Server shutdown completed")
	return nil
}

// buildApp assembles the fiber app, shared services, middleware chain,
// and routes. Split from Run so tests can drive the app in-process.
func (p *Proxy) buildApp() *fiber.App {
	p.reg = registry.New()
	p.client = argo.NewClient(p.config)
	p.app = createFiberApp(p.config)

	setupMiddleware(p.app, p.config)
	for _, m := range p.middlewares {
		p.app.Use(m)
	}
	setupRoutes(p.app, p.config, p.reg, p.client)
	return p.app
}

func createFiberApp(cfg *config.Config) *fiber.App {
	return fiber.New(fiber.Config{
		AppName:               "argoproxy",
		ServerHeader:          "argoproxy",
		DisableStartupMessage: !cfg.Verbose,
		ReadTimeout:           2 * time.Minute,
		// Write timeout must outlast the slowest allowed upstream stream.
		WriteTimeout:   cfg.Timeout + time.Minute,
		IdleTimeout:    5 * time.Minute,
		ReadBufferSize: 8192,
		CaseSensitive:  true,
	})
}

func setupMiddleware(app *fiber.App, cfg *config.Config) {
	app.Use(recover.New(recover.Config{
		EnableStackTrace: cfg.Verbose,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:               1000,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
	}))

	if cfg.Verbose {
		app.Use(logger.New(logger.Config{
			Format: "[${time}] ${status} - ${latency} ${method} ${path} ${error}\n",
			Output: os.Stdout,
		}))
	} else {
		app.Use(logger.New(logger.Config{
			Format: "${time} ${status} ${method} ${path} ${latency}\n",
			Output: os.Stdout,
		}))
	}

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	app.Use(cors.New())
}

func setupLogLevel(cfg *config.Config) {
	if cfg.Verbose {
		fiberlog.SetLevel(fiberlog.LevelDebug)
	} else {
		fiberlog.SetLevel(fiberlog.LevelInfo)
	}
}

func setupRoutes(app *fiber.App, cfg *config.Config, reg *registry.Registry, client *argo.Client) {
	chatHandler := api.NewChatHandler(cfg, reg, client)
	completionHandler := api.NewCompletionHandler(cfg, reg, client)
	embeddingHandler := api.NewEmbeddingHandler(cfg, reg, client)
	responsesHandler := api.NewResponsesHandler(cfg, reg, client)
	modelsHandler := api.NewModelsHandler(reg)
	healthHandler := api.NewHealthHandler(cfg, reg, client)

	app.Get("/health", healthHandler.Health)

	v1 := app.Group("/v1")
	v1.Post("/chat", chatHandler.Chat)
	v1.Post("/chat/completions", completionHandler.ChatCompletion)
	v1.Post("/completions", completionHandler.Completion)
	v1.Post("/embeddings", embeddingHandler.Embeddings)
	v1.Post("/responses", responsesHandler.Responses)
	v1.Get("/models", modelsHandler.Models)
	v1.Get("/status", healthHandler.Status)
	v1.Get("/docs", healthHandler.Docs)
}
