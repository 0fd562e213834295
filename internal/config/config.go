// Package config loads and validates the proxy's immutable startup configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the complete, immutable proxy configuration. It is constructed
// once at startup and shared read-only across all request handlers.
type Config struct {
	Host             string        `yaml:"host"`
	Port             string        `yaml:"port"`
	User             string        `yaml:"user"`
	ArgoURL          string        `yaml:"argo_url"`
	ArgoStreamURL    string        `yaml:"argo_stream_url"`
	ArgoEmbeddingURL string        `yaml:"argo_embedding_url"`
	Verbose          bool          `yaml:"verbose"`
	NumWorkers       int           `yaml:"num_workers"`
	Timeout          time.Duration `yaml:"-"`
	TimeoutSeconds   int           `yaml:"timeout"`
	TranslateTools   bool          `yaml:"translate_tools"`
	ShowConfig       bool          `yaml:"-"`
}

// defaultConfigPaths are tried in order when CONFIG_PATH is not set.
func defaultConfigPaths() []string {
	home, _ := os.UserHomeDir()
	paths := []string{"./config.yaml"}
	if home != "" {
		paths = append(paths,
			filepath.Join(home, ".config", "argoproxy", "config.yaml"),
			filepath.Join(home, ".argoproxy", "config.yaml"),
		)
	}
	return paths
}

// rejectedUser is a placeholder upstream identity that must never reach
// production; the loader treats it as a validation failure.
const rejectedUser = "cels"

// Load resolves the config path (env override, then the default search
// path candidates), loads the YAML file, applies environment overrides,
// and validates the result.
func Load() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		for _, candidate := range defaultConfigPaths() {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}
	if path == "" {
		path = "./config.yaml"
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file with environment
// variable substitution applied to the raw file content first.
func LoadFromFile(configPath string) (*Config, error) {
	cleanPath := filepath.Clean(configPath)
	if strings.Contains(cleanPath, "..") {
		return nil, fmt.Errorf("invalid config path: path traversal not allowed")
	}
	ext := filepath.Ext(cleanPath)
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("invalid config file: only .yaml and .yml files are allowed")
	}

	data, err := os.ReadFile(cleanPath) // #nosec G304 - path is validated above
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", cleanPath, err)
	}

	content := substituteEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(content), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if cfg.TimeoutSeconds > 0 {
		cfg.Timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}

	return &cfg, nil
}

// LoadEnvFiles loads .env files in order of precedence; the first file
// that sets a variable wins, and variables already set in the process are
// never overridden.
func LoadEnvFiles(envFiles []string) {
	for _, envFile := range envFiles {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err == nil {
				fmt.Printf("Loaded environment variables from %s\n", envFile)
			}
		}
	}
}

// substituteEnvVars replaces ${VAR_NAME} and ${VAR_NAME:-default} patterns
// with environment variable values.
func substituteEnvVars(content string) string {
	re := regexp.MustCompile(`\$\{([^}:]+)(?::(-[^}]*))?\}`)

	return re.ReplaceAllStringFunc(content, func(match string) string {
		submatches := re.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		defaultValue := ""
		if len(submatches) > 2 && submatches[2] != "" {
			defaultValue = strings.TrimPrefix(submatches[2], "-")
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultValue
	})
}

// applyEnvOverrides applies CONFIG_PATH-adjacent env vars on top of the
// loaded file, per the external-interfaces contract.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("HOST"); v != "" {
		c.Host = v
	}
	if v := os.Getenv("PORT"); v != "" {
		c.Port = v
	}
	if v := os.Getenv("NUM_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.NumWorkers = n
		}
	}
	if v := os.Getenv("VERBOSE"); v != "" {
		c.Verbose = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("SHOW_CONFIG"); v != "" {
		c.ShowConfig = strings.EqualFold(v, "true") || v == "1"
	}
}

func (c *Config) applyDefaults() {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == "" {
		c.Port = "8080"
	}
	if c.NumWorkers <= 0 {
		c.NumWorkers = 4
	}
	if c.Timeout <= 0 {
		c.Timeout = 600 * time.Second
	}
}

// Validate checks structural invariants of the loaded configuration.
func (c *Config) Validate() error {
	if c.User == rejectedUser {
		return fmt.Errorf("user %q is not an allowed upstream identity", rejectedUser)
	}
	if c.ArgoURL == "" {
		return fmt.Errorf("argo_url is required")
	}
	if c.ArgoStreamURL == "" {
		return fmt.Errorf("argo_stream_url is required")
	}
	if c.ArgoEmbeddingURL == "" {
		return fmt.Errorf("argo_embedding_url is required")
	}
	return nil
}

// RequestTimeout returns the per-request timeout, honoring a body-supplied
// override (seconds) when positive.
func (c *Config) RequestTimeout(overrideSeconds float64) time.Duration {
	if overrideSeconds > 0 {
		return time.Duration(overrideSeconds * float64(time.Second))
	}
	return c.Timeout
}
