// Package main provides the entry point for the semantic indexing service.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/netmonitor/semantic-index/internal/bus"
	"github.com/netmonitor/semantic-index/internal/config"
	"github.com/netmonitor/semantic-index/internal/embedding"
	"github.com/netmonitor/semantic-index/internal/embedding/local"
	"github.com/netmonitor/semantic-index/internal/embedding/remote"
	"github.com/netmonitor/semantic-index/internal/indexing"
	"github.com/netmonitor/semantic-index/internal/metrics"
	"github.com/netmonitor/semantic-index/internal/padregistry"
	"github.com/netmonitor/semantic-index/internal/query"
	"github.com/netmonitor/semantic-index/internal/ratelimit"
	"github.com/netmonitor/semantic-index/internal/searchengine"
	"github.com/netmonitor/semantic-index/internal/server"
	"github.com/netmonitor/semantic-index/internal/strategy"
	"github.com/netmonitor/semantic-index/internal/tokenizer"
)

// Build-time variables (set via ldflags).
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting semantic index service",
		zap.String("version", Version),
		zap.String("commit", Commit),
		zap.String("build_time", BuildTime),
	)

	tok, err := tokenizer.New(cfg.EmbeddingModelDir)
	if err != nil {
		return fmt.Errorf("failed to load tokenizer: %w", err)
	}
	defer tok.Close()

	m := metrics.New("semanticidx")

	provider, closeProvider, err := initProvider(cfg, tok, m)
	if err != nil {
		return fmt.Errorf("failed to initialize embedding provider: %w", err)
	}
	defer func() {
		if err := closeProvider(); err != nil {
			logger.Error("failed to close embedding provider", zap.Error(err))
		}
	}()

	engine := searchengine.New(searchengine.Config{
		BaseURL:  cfg.OpenSearchUrl,
		Username: cfg.OpenSearchUser,
		Password: cfg.OpenSearchKey,
		Metrics:  m,
	})

	strategies := strategy.NewRegistry(
		strategy.NewDocumentStrategy(),
		strategy.NewSecurityBookStrategy(),
		strategy.NewMitreStrategy(),
	)
	pads := padregistry.New(cfg.DataDir)

	indexingOrch := indexing.New(indexing.Config{
		Strategies: strategies,
		Provider:   provider,
		Tokens:     tok,
		Pads:       pads,
		Engine:     engine,
		DataDir:    cfg.DataDir,
		Dimension:  cfg.EmbeddingModelVecDim,
		EngineName: cfg.EngineName,
		MinCap:     cfg.MinTokenLengthCap,
		MaxCap:     cfg.MaxTokenLengthCap,
		Logger:     logger,
		Metrics:    m,
	})

	queryOrch, err := query.New(query.Config{
		Strategies:  strategies,
		Provider:    provider,
		Pads:        pads,
		Engine:      engine,
		MinTokenCap: cfg.MinTokenLengthCap,
		Logger:      logger,
		Metrics:     m,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize query orchestrator: %w", err)
	}

	localBus := bus.NewLocalBus()
	adapter := bus.New(bus.Config{
		Bus:        localBus,
		Auth:       bus.StaticKeyAuth{Key: cfg.BusEncryptKey},
		EncryptKey: cfg.BusEncryptKey,
		Indexing:   indexingOrch,
		Query:      queryOrch,
		Engine:     engine,
		Logger:     logger,
		Metrics:    m,
	})
	if err := adapter.Start(); err != nil {
		return fmt.Errorf("failed to start bus adapter: %w", err)
	}

	srv := server.New(server.Config{
		HTTPPort:            cfg.Server.HTTPPort,
		ShutdownGracePeriod: cfg.Server.ShutdownGracePeriod,
		LogLevel:            cfg.Log.Level,
		Metrics:             m,
	}, readierFunc(func(ctx context.Context) error {
		_, err := engine.Exists(ctx, cfg.OpenSearchDefaultIndex)
		return err
	}), logger)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownGracePeriod)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	logger.Info("server stopped gracefully")
	return nil
}

// readierFunc adapts a plain function to server.Readier.
type readierFunc func(ctx context.Context) error

func (f readierFunc) Ready(ctx context.Context) error { return f(ctx) }

func initProvider(cfg *config.Config, tok *tokenizer.Tokenizer, m *metrics.Metrics) (embedding.Provider, func() error, error) {
	switch cfg.EmbeddingProvider {
	case "local":
		p, err := local.NewFromConfig(cfg, m)
		if err != nil {
			return nil, nil, err
		}
		return p, p.Close, nil
	case "api":
		p := remote.New(remote.ProviderConfig{
			URL:       cfg.EmbeddingApiUrl,
			Model:     cfg.EmbeddingApiModel,
			APIKey:    cfg.LLMHFKey,
			Dimension: cfg.EmbeddingModelVecDim,
			Metrics:   m,
		}, tok, ratelimit.New())
		return p, func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown embedding provider %q", cfg.EmbeddingProvider)
	}
}

func initLogger(cfg *config.Config) (*zap.Logger, error) {
	var level zapcore.Level
	switch cfg.Log.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Log.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return zapCfg.Build()
}
