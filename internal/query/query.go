// Package query implements the end-to-end query operation: validate,
// consult the result cache, embed the query text, dispatch a single- or
// multi-field k-NN search, and project hits to result pairs.
package query

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/netmonitor/semantic-index/internal/embedding"
	"github.com/netmonitor/semantic-index/internal/metrics"
	"github.com/netmonitor/semantic-index/internal/padregistry"
	"github.com/netmonitor/semantic-index/internal/searchengine"
	"github.com/netmonitor/semantic-index/internal/strategy"
)

// ErrInvalidRequest is returned when indexName or queryText is empty.
var ErrInvalidRequest = errors.New("indexName and queryText are required")

const (
	singleFieldK   = 3
	multiFieldKPer = 3
)

// Request is a query operation's input.
type Request struct {
	IndexName       string
	QueryText       string
	VectorSearchMode string // empty means multi-field weighted search
}

// Orchestrator drives query requests against a strategy registry, a shared
// embedding provider, the pad-length registry, the engine client, and an
// advisory result cache.
type Orchestrator struct {
	strategies *strategy.Registry
	provider   embedding.Provider
	pads       *padregistry.Registry
	engine     *searchengine.Client
	cache      *resultCache
	minTokenCap int
	log        *zap.Logger
	metrics    *metrics.Metrics
}

// Config configures an Orchestrator.
type Config struct {
	Strategies  *strategy.Registry
	Provider    embedding.Provider
	Pads        *padregistry.Registry
	Engine      *searchengine.Client
	MinTokenCap int
	Logger      *zap.Logger
	// Metrics is optional; when nil no series are recorded.
	Metrics *metrics.Metrics
}

// New creates an Orchestrator with its own result cache.
func New(cfg Config) (*Orchestrator, error) {
	cache, err := newResultCache()
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Orchestrator{
		strategies:  cfg.Strategies,
		provider:    cfg.Provider,
		pads:        cfg.Pads,
		engine:      cfg.Engine,
		cache:       cache,
		minTokenCap: cfg.MinTokenCap,
		log:         logger,
		metrics:     cfg.Metrics,
	}, nil
}

// Query runs the six-step query algorithm and returns the projected result
// pairs.
func (o *Orchestrator) Query(ctx context.Context, req Request) ([]ResultPair, error) {
	start := time.Now()
	hits, err := o.query(ctx, req)
	if o.metrics != nil && req.IndexName != "" {
		status := "success"
		if err != nil {
			status = "failure"
		}
		o.metrics.QueryOperationsTotal.WithLabelValues(req.IndexName, status).Inc()
		o.metrics.QueryOperationDuration.WithLabelValues(req.IndexName).Observe(time.Since(start).Seconds())
	}
	return hits, err
}

func (o *Orchestrator) query(ctx context.Context, req Request) ([]ResultPair, error) {
	if req.IndexName == "" || req.QueryText == "" {
		return nil, ErrInvalidRequest
	}

	if hits, ok := o.cache.get(req.IndexName, req.QueryText); ok {
		if o.metrics != nil {
			o.metrics.QueryCacheHitsTotal.Inc()
		}
		return hits, nil
	}
	if o.metrics != nil {
		o.metrics.QueryCacheMissesTotal.Inc()
	}

	strat, err := o.strategies.ForIndexName(req.IndexName)
	if err != nil {
		return nil, err
	}

	padToTokens := o.minTokenCap
	if rec, err := o.pads.Get(req.IndexName); err == nil {
		padToTokens = rec.PadToTokens
	} else if !errors.Is(err, padregistry.ErrNotFound) {
		return nil, err
	}

	vector, err := o.provider.Embed(ctx, req.QueryText, padToTokens, false)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	var engineHits []searchengine.Hit
	if req.VectorSearchMode != "" {
		field := strat.VectorField(req.VectorSearchMode)
		engineHits, err = o.engine.KNNSearch(ctx, req.IndexName, field, vector, singleFieldK)
	} else {
		engineHits, err = o.engine.MultiFieldKNNSearch(ctx, req.IndexName, strat.DefaultFieldWeights(), vector, multiFieldKPer)
	}
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	hits := projectHits(engineHits)
	o.cache.set(req.IndexName, req.QueryText, hits)
	return hits, nil
}

func projectHits(engineHits []searchengine.Hit) []ResultPair {
	hits := make([]ResultPair, 0, len(engineHits))
	for _, h := range engineHits {
		var source struct {
			Input  string `json:"input"`
			Output string `json:"output"`
		}
		if err := json.Unmarshal(h.Source, &source); err != nil {
			continue
		}
		hits = append(hits, ResultPair{Input: source.Input, Output: source.Output})
	}
	return hits
}
