package strategy

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/netmonitor/semantic-index/internal/embedding"
)

const documentIndexName = "documents"

// Document is a question/answer artefact: a text input, its output answer,
// and independent embeddings for each.
type Document struct {
	Input  string `json:"input"`
	Output string `json:"output"`

	InputEmbedding  []float32 `json:"input_embedding,omitempty"`
	OutputEmbedding []float32 `json:"output_embedding,omitempty"`
}

// DocumentStrategy handles the Document artefact kind.
type DocumentStrategy struct{}

// NewDocumentStrategy returns the Document strategy.
func NewDocumentStrategy() *DocumentStrategy { return &DocumentStrategy{} }

func (s *DocumentStrategy) IndexName() string { return documentIndexName }

func (s *DocumentStrategy) CanHandleItem(item Item) bool {
	_, ok := item.(*Document)
	return ok
}

func (s *DocumentStrategy) CanHandleIndexName(name string) bool {
	return name == documentIndexName
}

func (s *DocumentStrategy) Deserialize(data []byte) []Item {
	var docs []*Document
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil
	}
	items := make([]Item, 0, len(docs))
	for _, d := range docs {
		items = append(items, d)
	}
	return items
}

func (s *DocumentStrategy) Fields(item Item) []string {
	d, ok := item.(*Document)
	if !ok {
		return nil
	}
	return []string{d.Input, d.Output}
}

func (s *DocumentStrategy) EnsureEmbeddings(ctx context.Context, item Item, provider embedding.Provider, padToTokens int) error {
	d, ok := item.(*Document)
	if !ok {
		return ErrUnknownArtefact
	}

	if len(d.InputEmbedding) == 0 {
		vec, err := provider.Embed(ctx, d.Input, padToTokens, true)
		if err != nil {
			return fmt.Errorf("input embedding: %w", err)
		}
		if len(vec) == 0 {
			return fmt.Errorf("%w: input", ErrEmbeddingFailed)
		}
		d.InputEmbedding = vec
	}

	if len(d.OutputEmbedding) == 0 {
		vec, err := provider.Embed(ctx, d.Output, padToTokens, true)
		if err != nil {
			return fmt.Errorf("output embedding: %w", err)
		}
		if len(vec) == 0 {
			return fmt.Errorf("%w: output", ErrEmbeddingFailed)
		}
		d.OutputEmbedding = vec
	}

	return nil
}

func (s *DocumentStrategy) ComputeID(item Item) string {
	d, ok := item.(*Document)
	if !ok {
		return ""
	}
	sum := sha256.Sum256([]byte(d.Output))
	return hex.EncodeToString(sum[:])
}

func (s *DocumentStrategy) BuildIndexDocument(item Item) map[string]any {
	d, ok := item.(*Document)
	if !ok {
		return nil
	}
	return map[string]any{
		"input":            d.Input,
		"output":           d.Output,
		"input_embedding":  d.InputEmbedding,
		"output_embedding": d.OutputEmbedding,
	}
}

func (s *DocumentStrategy) VectorField(mode string) string {
	switch mode {
	case ModeQuestion:
		return "input_embedding"
	default:
		return "output_embedding"
	}
}

func (s *DocumentStrategy) DefaultFieldWeights() map[string]float64 {
	return map[string]float64{
		"input_embedding":  1.0,
		"output_embedding": 1.0,
	}
}

func (s *DocumentStrategy) EngineMapping(dimension int, engineName string) ([]byte, error) {
	return buildEngineMapping(dimension, engineName,
		[]string{"input", "output"},
		[]string{"input_embedding", "output_embedding"})
}

func (s *DocumentStrategy) EstimatePadding(files []string, counter TokenCounter, minCap, maxCap int) (int, int, error) {
	return estimatePadding(files, counter, minCap, maxCap, s.Deserialize, s.Fields)
}

var _ Strategy = (*DocumentStrategy)(nil)
