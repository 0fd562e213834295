package main

import (
	"github.com/argoproxy/goproxy/internal/config"
	pkgconfig "github.com/argoproxy/goproxy/pkg/config"

	fiberlog "github.com/gofiber/fiber/v2/log"
)

func main() {
	// Load environment files explicitly
	envFiles := []string{".env.local", ".env.development", ".env"}
	config.LoadEnvFiles(envFiles)

	// Resolve and load the YAML configuration, env overrides applied
	cfg, err := config.Load()
	if err != nil {
		fiberlog.Fatalf("Failed to load config: %v", err)
	}

	proxy := pkgconfig.NewProxy(cfg)

	if err := proxy.Run(); err != nil {
		fiberlog.Fatalf("Server failed: %v", err)
	}
}
