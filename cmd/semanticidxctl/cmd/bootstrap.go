package cmd

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/netmonitor/semantic-index/internal/config"
	"github.com/netmonitor/semantic-index/internal/embedding"
	"github.com/netmonitor/semantic-index/internal/embedding/local"
	"github.com/netmonitor/semantic-index/internal/embedding/remote"
	"github.com/netmonitor/semantic-index/internal/indexing"
	"github.com/netmonitor/semantic-index/internal/padregistry"
	"github.com/netmonitor/semantic-index/internal/query"
	"github.com/netmonitor/semantic-index/internal/ratelimit"
	"github.com/netmonitor/semantic-index/internal/searchengine"
	"github.com/netmonitor/semantic-index/internal/strategy"
	"github.com/netmonitor/semantic-index/internal/tokenizer"
)

// toolkit bundles the components a one-shot CLI invocation needs. It reads
// the same configuration the service process reads (env vars, semanticidx.yaml)
// so an operator runs semanticidxctl against the exact deployment it targets.
type toolkit struct {
	cfg        *config.Config
	tok        *tokenizer.Tokenizer
	provider   embedding.Provider
	closeTok   bool
	engine     *searchengine.Client
	strategies *strategy.Registry
	pads       *padregistry.Registry
	indexing   *indexing.Orchestrator
	query      *query.Orchestrator
}

// newToolkit loads configuration and wires every component a CLI command
// might need. Commands that only need a subset still pay the full wiring
// cost; this mirrors the service process's own startup and keeps the two
// in lockstep.
func newToolkit() (*toolkit, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	tok, err := tokenizer.New(cfg.EmbeddingModelDir)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}

	var provider embedding.Provider
	closeTok := true
	switch cfg.EmbeddingProvider {
	case "local":
		provider, err = local.NewFromConfig(cfg, nil)
	case "api":
		provider = remote.New(remote.ProviderConfig{
			URL:       cfg.EmbeddingApiUrl,
			Model:     cfg.EmbeddingApiModel,
			APIKey:    cfg.LLMHFKey,
			Dimension: cfg.EmbeddingModelVecDim,
		}, tok, ratelimit.New())
		// The remote provider owns tok and closes it itself.
		closeTok = false
	default:
		err = fmt.Errorf("unknown embedding provider %q", cfg.EmbeddingProvider)
	}
	if err != nil {
		return nil, fmt.Errorf("init embedding provider: %w", err)
	}

	engine := searchengine.New(searchengine.Config{
		BaseURL:  cfg.OpenSearchUrl,
		Username: cfg.OpenSearchUser,
		Password: cfg.OpenSearchKey,
	})

	strategies := strategy.NewRegistry(
		strategy.NewDocumentStrategy(),
		strategy.NewSecurityBookStrategy(),
		strategy.NewMitreStrategy(),
	)
	pads := padregistry.New(cfg.DataDir)

	logger := zap.NewNop()

	idx := indexing.New(indexing.Config{
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
	})

	qry, err := query.New(query.Config{
		Strategies:  strategies,
		Provider:    provider,
		Pads:        pads,
		Engine:      engine,
		MinTokenCap: cfg.MinTokenLengthCap,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init query orchestrator: %w", err)
	}

	return &toolkit{
		cfg:        cfg,
		tok:        tok,
		provider:   provider,
		closeTok:   closeTok,
		engine:     engine,
		strategies: strategies,
		pads:       pads,
		indexing:   idx,
		query:      qry,
	}, nil
}

// Close releases the tokenizer and embedding provider resources.
func (tk *toolkit) Close() {
	_ = tk.provider.Close()
	if tk.closeTok {
		tk.tok.Close()
	}
}
