// Package strategy implements the per-artefact-kind indexing contract: one
// Strategy per logical index, dispatched polymorphically by the
// orchestrators so the rest of the pipeline never branches on artefact
// shape.
package strategy

import (
	"context"
	"errors"
	"os"

	"github.com/netmonitor/semantic-index/internal/embedding"
)

// Common errors for strategy operations.
var (
	ErrEmbeddingFailed  = errors.New("embedding failed for field")
	ErrUnknownArtefact  = errors.New("item is not handled by this strategy")
	ErrNoStrategy       = errors.New("no strategy registered for index")
)

// vectorModes are the recognized search modes; an unrecognized mode degrades
// to "content".
const (
	ModeContent  = "content"
	ModeQuestion = "question"
	ModeSummary  = "summary"
)

// TokenCounter is the subset of the tokenizer used for padding estimation.
type TokenCounter interface {
	Count(text string) int
}

// Item is an artefact instance carried through deserialize, ensure-embeddings,
// and build-index-document. Concrete strategies type-assert to their own
// backing struct.
type Item interface{}

// Strategy is the polymorphic contract implemented once per artefact kind.
type Strategy interface {
	// IndexName is the static, unique logical index name.
	IndexName() string

	// CanHandleItem reports whether item is this strategy's concrete type.
	CanHandleItem(item Item) bool

	// CanHandleIndexName reports whether name addresses this strategy.
	CanHandleIndexName(name string) bool

	// Deserialize parses a JSON document body into a list of items. A
	// malformed body yields an empty list, not an error.
	Deserialize(data []byte) []Item

	// Fields returns the text fields to be embedded, used by padding
	// estimation.
	Fields(item Item) []string

	// EnsureEmbeddings fills every empty embedding field by calling provider
	// on its corresponding text field. Already-filled fields are left
	// untouched.
	EnsureEmbeddings(ctx context.Context, item Item, provider embedding.Provider, padToTokens int) error

	// ComputeID derives the document id, a hex SHA-256 digest over the
	// deterministic source field.
	ComputeID(item Item) string

	// BuildIndexDocument produces the structured body written to the engine:
	// text fields plus all vector fields under their engine names.
	BuildIndexDocument(item Item) map[string]any

	// VectorField maps a search mode to the vector field name to query.
	// Unknown modes degrade to ModeContent.
	VectorField(mode string) string

	// DefaultFieldWeights returns the fallback weights for multi-field
	// search when a request supplies none.
	DefaultFieldWeights() map[string]float64

	// EngineMapping produces the engine index mapping JSON: text fields and
	// one knn_vector field per vector field, dimension D, HNSW/L2.
	EngineMapping(dimension int, engineName string) ([]byte, error)

	// EstimatePadding scans files in order, tokenizing every embeddable
	// field, and returns the clamped pad length plus the raw observed
	// maximum.
	EstimatePadding(files []string, counter TokenCounter, minCap, maxCap int) (pad int, observedMax int, err error)
}

// estimatePadding implements the shared scanning algorithm: open each file
// in order, tokenize every text field of every item, track the running
// maximum, and short-circuit as soon as it reaches maxCap. The final result
// is clamped to [minCap, maxCap].
func estimatePadding(files []string, counter TokenCounter, minCap, maxCap int, deserialize func([]byte) []Item, fields func(Item) []string) (int, int, error) {
	observedMax := 0
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return 0, 0, err
		}
		for _, item := range deserialize(data) {
			for _, text := range fields(item) {
				n := counter.Count(text)
				if n > observedMax {
					observedMax = n
				}
				if observedMax >= maxCap {
					return clamp(observedMax, minCap, maxCap), observedMax, nil
				}
			}
		}
	}
	return clamp(observedMax, minCap, maxCap), observedMax, nil
}

func clamp(n, min, max int) int {
	if n < min {
		return min
	}
	if n > max {
		return max
	}
	return n
}

// Registry selects a Strategy by artefact or by index name.
type Registry struct {
	strategies []Strategy
}

// NewRegistry builds a registry over the given strategies, tried in order.
func NewRegistry(strategies ...Strategy) *Registry {
	return &Registry{strategies: strategies}
}

// ForItem returns the first strategy that can handle item.
func (r *Registry) ForItem(item Item) (Strategy, error) {
	for _, s := range r.strategies {
		if s.CanHandleItem(item) {
			return s, nil
		}
	}
	return nil, ErrUnknownArtefact
}

// ForIndexName returns the first strategy that can handle name.
func (r *Registry) ForIndexName(name string) (Strategy, error) {
	for _, s := range r.strategies {
		if s.CanHandleIndexName(name) {
			return s, nil
		}
	}
	return nil, ErrNoStrategy
}

// All returns every registered strategy, in registration order.
func (r *Registry) All() []Strategy {
	return r.strategies
}
