// Package indexing implements the end-to-end bulk-index and single-file
// index operations: strategy selection, pad-length discovery, index
// lifecycle, and per-item embedding plus write.
package indexing

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/netmonitor/semantic-index/internal/embedding"
	"github.com/netmonitor/semantic-index/internal/metrics"
	"github.com/netmonitor/semantic-index/internal/padregistry"
	"github.com/netmonitor/semantic-index/internal/searchengine"
	"github.com/netmonitor/semantic-index/internal/strategy"
)

// ErrPadLengthUnknown is returned by the single-file path when no pad
// length is registered for the target index.
var ErrPadLengthUnknown = errors.New("pad length unknown for index")

const indexConfigDirName = "index_config"

// Result is the structured outcome of a bulk or single-file index
// operation, published back onto the bus.
type Result struct {
	Success     bool
	Message     string
	IndexedIDs  []string
	FailedIDs   []string
	Diagnostics []string
}

// Orchestrator drives indexing requests against a strategy registry, a
// shared embedding provider, the pad-length registry, and the engine
// client.
type Orchestrator struct {
	strategies *strategy.Registry
	provider   embedding.Provider
	tokens     strategy.TokenCounter
	pads       *padregistry.Registry
	engine     *searchengine.Client
	dataDir    string
	dimension  int
	engineName string
	minCap     int
	maxCap     int
	log        *zap.Logger
	metrics    *metrics.Metrics
}

// Config configures an Orchestrator.
type Config struct {
	Strategies *strategy.Registry
	Provider   embedding.Provider
	Tokens     strategy.TokenCounter
	Pads       *padregistry.Registry
	Engine     *searchengine.Client
	DataDir    string
	Dimension  int
	EngineName string
	MinCap     int
	MaxCap     int
	Logger     *zap.Logger
	// Metrics is optional; when nil no series are recorded.
	Metrics *metrics.Metrics
}

// New creates an Orchestrator.
func New(cfg Config) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		strategies: cfg.Strategies,
		provider:   cfg.Provider,
		tokens:     cfg.Tokens,
		pads:       cfg.Pads,
		engine:     cfg.Engine,
		dataDir:    cfg.DataDir,
		dimension:  cfg.Dimension,
		engineName: cfg.EngineName,
		minCap:     cfg.MinCap,
		maxCap:     cfg.MaxCap,
		log:        logger,
		metrics:    cfg.Metrics,
	}
}

// BulkIndexRequest requests a full rescan of the data directory hierarchy.
type BulkIndexRequest struct {
	RecreateIndex bool
}

// BulkIndex enumerates {dataDir}/{indexName}/*.json for every subdirectory,
// indexing each in directory order.
func (o *Orchestrator) BulkIndex(ctx context.Context, req BulkIndexRequest) (*Result, error) {
	result := &Result{Success: true}

	entries, err := os.ReadDir(o.dataDir)
	if err != nil {
		return nil, fmt.Errorf("enumerate data dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() || e.Name() == indexConfigDirName {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, indexName := range names {
		if err := o.indexOneDirectory(ctx, indexName, req.RecreateIndex, result); err != nil {
			o.log.Error("index directory failed", zap.String("index", indexName), zap.Error(err))
			result.Success = false
			result.Diagnostics = append(result.Diagnostics, fmt.Sprintf("%s: %v", indexName, err))
		}
	}

	return result, nil
}

func (o *Orchestrator) indexOneDirectory(ctx context.Context, indexName string, recreate bool, result *Result) error {
	start := time.Now()
	err := o.indexOneDirectoryInner(ctx, indexName, recreate, result)
	if o.metrics != nil {
		status := "success"
		if err != nil {
			status = "failure"
		}
		o.metrics.IndexOperationsTotal.WithLabelValues(indexName, status).Inc()
		o.metrics.IndexOperationDuration.WithLabelValues(indexName).Observe(time.Since(start).Seconds())
	}
	return err
}

func (o *Orchestrator) indexOneDirectoryInner(ctx context.Context, indexName string, recreate bool, result *Result) error {
	dir := filepath.Join(o.dataDir, indexName)
	files, err := discoverJSONFiles(dir)
	if err != nil {
		return fmt.Errorf("discover files: %w", err)
	}
	if len(files) == 0 {
		o.log.Info("no json files, skipping", zap.String("index", indexName))
		return nil
	}

	strat, err := o.strategies.ForIndexName(indexName)
	if err != nil {
		result.Diagnostics = append(result.Diagnostics, fmt.Sprintf("%s: no strategy registered, skipped", indexName))
		return nil
	}

	padToTokens, err := o.resolvePadLength(strat, indexName, files)
	if err != nil {
		return fmt.Errorf("resolve pad length: %w", err)
	}

	if err := o.ensureIndex(ctx, strat, indexName, recreate); err != nil {
		return fmt.Errorf("ensure index: %w", err)
	}

	return o.indexFiles(ctx, strat, indexName, files, padToTokens, result)
}

func (o *Orchestrator) resolvePadLength(strat strategy.Strategy, indexName string, files []string) (int, error) {
	if rec, err := o.pads.Get(indexName); err == nil {
		return rec.PadToTokens, nil
	} else if !errors.Is(err, padregistry.ErrNotFound) {
		return 0, err
	}

	start := time.Now()
	pad, observedMax, err := strat.EstimatePadding(files, o.tokens, o.minCap, o.maxCap)
	if o.metrics != nil {
		o.metrics.PadEstimationDuration.WithLabelValues(indexName).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return 0, fmt.Errorf("estimate padding: %w", err)
	}

	if err := o.pads.Set(indexName, padregistry.Record{PadToTokens: pad, ActualMaxTokens: observedMax}); err != nil {
		return 0, fmt.Errorf("persist pad length: %w", err)
	}
	if o.metrics != nil {
		o.metrics.PadLengthTokens.WithLabelValues(indexName).Set(float64(pad))
	}
	return pad, nil
}

func (o *Orchestrator) ensureIndex(ctx context.Context, strat strategy.Strategy, indexName string, recreate bool) error {
	exists, err := o.engine.Exists(ctx, indexName)
	if err != nil {
		return err
	}

	if recreate {
		if exists {
			if err := o.engine.Delete(ctx, indexName); err != nil {
				return err
			}
		}
		exists = false
	}

	if exists {
		return nil
	}

	mapping, err := strat.EngineMapping(o.dimension, o.engineName)
	if err != nil {
		return fmt.Errorf("build mapping: %w", err)
	}
	return o.engine.Create(ctx, indexName, mapping)
}

func (o *Orchestrator) indexFiles(ctx context.Context, strat strategy.Strategy, indexName string, files []string, padToTokens int, result *Result) error {
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		items := strat.Deserialize(data)
		for _, item := range items {
			id, skipped, err := o.indexOneItem(ctx, strat, indexName, item, padToTokens)
			if err != nil {
				o.log.Warn("item index failed", zap.String("index", indexName), zap.String("file", path), zap.Error(err))
				result.FailedIDs = append(result.FailedIDs, id)
				result.Success = false
				if o.metrics != nil {
					o.metrics.ItemsFailedTotal.WithLabelValues(indexName, "index_error").Inc()
				}
				continue
			}
			if id != "" {
				result.IndexedIDs = append(result.IndexedIDs, id)
			}
			if o.metrics != nil {
				if skipped {
					o.metrics.ItemsSkippedTotal.WithLabelValues(indexName).Inc()
				} else {
					o.metrics.ItemsIndexedTotal.WithLabelValues(indexName).Inc()
				}
			}
		}
	}
	return nil
}

func (o *Orchestrator) indexOneItem(ctx context.Context, strat strategy.Strategy, indexName string, item strategy.Item, padToTokens int) (id string, skipped bool, err error) {
	id = strat.ComputeID(item)

	if err := strat.EnsureEmbeddings(ctx, item, o.provider, padToTokens); err != nil {
		return id, false, err
	}

	exists, err := o.engine.ExistsDoc(ctx, indexName, id)
	if err != nil {
		return id, false, err
	}
	if exists {
		return id, true, nil
	}

	if err := o.engine.IndexDoc(ctx, indexName, id, strat.BuildIndexDocument(item)); err != nil {
		return id, false, err
	}
	return id, false, nil
}

// SingleFileIndexRequest indexes one already-known index's single file.
// The index's pad length must already be registered.
type SingleFileIndexRequest struct {
	IndexName string
	JSONFile  string
}

// IndexFile indexes a single file against an already-provisioned index and
// a pre-registered pad length.
func (o *Orchestrator) IndexFile(ctx context.Context, req SingleFileIndexRequest) (*Result, error) {
	strat, err := o.strategies.ForIndexName(req.IndexName)
	if err != nil {
		return nil, err
	}

	rec, err := o.pads.Get(req.IndexName)
	if err != nil {
		if errors.Is(err, padregistry.ErrNotFound) {
			return nil, ErrPadLengthUnknown
		}
		return nil, err
	}

	result := &Result{Success: true}
	if err := o.indexFiles(ctx, strat, req.IndexName, []string{req.JSONFile}, rec.PadToTokens, result); err != nil {
		return nil, err
	}
	return result, nil
}

func discoverJSONFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}
