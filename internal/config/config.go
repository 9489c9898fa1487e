// Package config provides configuration management for the semantic indexing core.
// It supports loading configuration from environment variables and an optional
// YAML config file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all deployment configuration recognized by the service, per
// the "Configuration recognized options" list.
type Config struct {
	// EmbeddingProvider selects the C2 variant: "local" or "api".
	EmbeddingProvider string `mapstructure:"embeddingProvider"`
	// EmbeddingModelDir is the path to the C1+C2a tokenizer/model assets.
	EmbeddingModelDir string `mapstructure:"embeddingModelDir"`
	// EmbeddingModelVecDim is the declared embedding dimension D.
	EmbeddingModelVecDim int `mapstructure:"embeddingModelVecDim"`

	// MaxTokenLengthCap and MinTokenLengthCap bound padding-length estimation.
	MaxTokenLengthCap int `mapstructure:"maxTokenLengthCap"`
	MinTokenLengthCap int `mapstructure:"minTokenLengthCap"`

	// LLMThreads is the intra-op thread count of the local ONNX session.
	LLMThreads int `mapstructure:"llmThreads"`

	// EmbeddingApiUrl, EmbeddingApiModel, LLMHFKey target the remote C2b provider.
	EmbeddingApiUrl   string `mapstructure:"embeddingApiUrl"`
	EmbeddingApiModel string `mapstructure:"embeddingApiModel"`
	LLMHFKey          string `mapstructure:"llmHFKey"`

	// OpenSearchUrl, OpenSearchUser, OpenSearchKey, OpenSearchDefaultIndex target C6.
	OpenSearchUrl          string `mapstructure:"openSearchUrl"`
	OpenSearchUser         string `mapstructure:"openSearchUser"`
	OpenSearchKey          string `mapstructure:"openSearchKey"`
	OpenSearchDefaultIndex string `mapstructure:"openSearchDefaultIndex"`

	// DataDir is the data and pad-length registry root.
	DataDir string `mapstructure:"dataDir"`

	// EngineName is the HNSW backend name threaded into every index mapping
	// (resolves the spec's open question on nmslib vs faiss).
	EngineName string `mapstructure:"engineName"`

	// Scale and ZeroPoint dequantize uint8 embedding outputs (required when
	// the local provider emits uint8 vectors; never a literal).
	EmbeddingScale     float64 `mapstructure:"embeddingScale"`
	EmbeddingZeroPoint int     `mapstructure:"embeddingZeroPoint"`

	// PositionInputName/TokenTypeInputName resolve the position_ids vs
	// token_type_ids ONNX input-binding ambiguity; both configurable, never
	// silently aliased. UsePositionIds selects which one is actually bound
	// as the third session input for this deployment's model.
	PositionInputName  string `mapstructure:"positionInputName"`
	TokenTypeInputName string `mapstructure:"tokenTypeInputName"`
	UsePositionIds     bool   `mapstructure:"usePositionIds"`

	// Server holds the ambient AdminServer (C12) settings.
	Server ServerConfig `mapstructure:"server"`

	// Log holds ambient structured-logging settings.
	Log LogConfig `mapstructure:"log"`

	// Cache holds result-cache settings. The query orchestrator does not
	// read it; its cache has a fixed capacity of 10,000 entries.
	Cache CacheConfig `mapstructure:"cache"`

	// BusEncryptKey is the deployment secret the auth-key-check collaborator
	// compares incoming request auth keys against.
	BusEncryptKey string `mapstructure:"busEncryptKey"`
}

// ServerConfig holds the AdminServer's HTTP settings.
type ServerConfig struct {
	HTTPPort            int           `mapstructure:"httpPort"`
	ShutdownGracePeriod time.Duration `mapstructure:"shutdownGracePeriod"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
}

// CacheConfig holds a result-cache capacity setting; it is loaded and
// defaulted but not passed to the query orchestrator.
type CacheConfig struct {
	Capacity int `mapstructure:"capacity"`
}

// Default configuration values.
var defaults = map[string]interface{}{
	"embeddingProvider":      "local",
	"embeddingModelVecDim":   384,
	"maxTokenLengthCap":      512,
	"minTokenLengthCap":      16,
	"llmThreads":             4,
	"dataDir":                "./data",
	"engineName":             "faiss",
	"embeddingScale":         1.0,
	"embeddingZeroPoint":     0,
	"positionInputName":      "position_ids",
	"tokenTypeInputName":     "token_type_ids",
	"usePositionIds":         false,

	"server.httpPort":            8090,
	"server.shutdownGracePeriod": "10s",

	"log.level":  "info",
	"log.format": "console",

	"cache.capacity": 10000,
}

// Load loads configuration from environment variables and an optional
// config file. Environment variables are prefixed with NETMON_ and use
// underscores in place of nested dots.
func Load() (*Config, error) {
	v := viper.New()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix("NETMON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("semanticidx")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/semanticidx")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// Validate rejects configuration combinations that cannot be served.
func (c *Config) Validate() error {
	if c.EmbeddingProvider != "local" && c.EmbeddingProvider != "api" {
		return fmt.Errorf("invalid embeddingProvider: %s (valid: local, api)", c.EmbeddingProvider)
	}
	if c.EmbeddingModelDir == "" {
		return fmt.Errorf("embeddingModelDir is required: both provider variants tokenize through it")
	}
	if c.EmbeddingProvider == "api" && c.EmbeddingApiUrl == "" {
		return fmt.Errorf("embeddingApiUrl is required when embeddingProvider=api")
	}
	if c.EmbeddingModelVecDim <= 0 {
		return fmt.Errorf("embeddingModelVecDim must be positive, got %d", c.EmbeddingModelVecDim)
	}
	if c.MinTokenLengthCap <= 0 || c.MaxTokenLengthCap <= 0 {
		return fmt.Errorf("minTokenLengthCap and maxTokenLengthCap must be positive")
	}
	if c.MinTokenLengthCap > c.MaxTokenLengthCap {
		return fmt.Errorf("minTokenLengthCap (%d) must not exceed maxTokenLengthCap (%d)", c.MinTokenLengthCap, c.MaxTokenLengthCap)
	}
	if c.DataDir == "" {
		return fmt.Errorf("dataDir is required")
	}
	if c.OpenSearchUrl == "" {
		return fmt.Errorf("openSearchUrl is required")
	}
	if c.Server.HTTPPort < 1 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid server.httpPort: %d", c.Server.HTTPPort)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Log.Level] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", c.Log.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[c.Log.Format] {
		return fmt.Errorf("invalid log format: %s (valid: json, console)", c.Log.Format)
	}

	return nil
}

// String returns a string representation of the config without sensitive values.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{EmbeddingProvider: %s, EngineName: %s, OpenSearchUrl: %s, DataDir: %s, LogLevel: %s}",
		c.EmbeddingProvider,
		c.EngineName,
		c.OpenSearchUrl,
		c.DataDir,
		c.Log.Level,
	)
}
