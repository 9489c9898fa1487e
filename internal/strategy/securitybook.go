package strategy

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/netmonitor/semantic-index/internal/embedding"
)

const securityBookIndexName = "security_books"

// SecurityBook is a three-field artefact: an input prompt, an output body,
// and an independent summary, each with its own embedding.
type SecurityBook struct {
	Input   string `json:"input"`
	Output  string `json:"output"`
	Summary string `json:"summary"`

	InputEmbedding   []float32 `json:"input_embedding,omitempty"`
	OutputEmbedding  []float32 `json:"output_embedding,omitempty"`
	SummaryEmbedding []float32 `json:"summary_embedding,omitempty"`
}

// SecurityBookStrategy handles the SecurityBook artefact kind.
type SecurityBookStrategy struct{}

// NewSecurityBookStrategy returns the SecurityBook strategy.
func NewSecurityBookStrategy() *SecurityBookStrategy { return &SecurityBookStrategy{} }

func (s *SecurityBookStrategy) IndexName() string { return securityBookIndexName }

func (s *SecurityBookStrategy) CanHandleItem(item Item) bool {
	_, ok := item.(*SecurityBook)
	return ok
}

func (s *SecurityBookStrategy) CanHandleIndexName(name string) bool {
	return name == securityBookIndexName
}

func (s *SecurityBookStrategy) Deserialize(data []byte) []Item {
	var books []*SecurityBook
	if err := json.Unmarshal(data, &books); err != nil {
		return nil
	}
	items := make([]Item, 0, len(books))
	for _, b := range books {
		items = append(items, b)
	}
	return items
}

func (s *SecurityBookStrategy) Fields(item Item) []string {
	b, ok := item.(*SecurityBook)
	if !ok {
		return nil
	}
	return []string{b.Input, b.Output, b.Summary}
}

func (s *SecurityBookStrategy) EnsureEmbeddings(ctx context.Context, item Item, provider embedding.Provider, padToTokens int) error {
	b, ok := item.(*SecurityBook)
	if !ok {
		return ErrUnknownArtefact
	}

	fields := []struct {
		name string
		text string
		dest *[]float32
	}{
		{"input", b.Input, &b.InputEmbedding},
		{"output", b.Output, &b.OutputEmbedding},
		{"summary", b.Summary, &b.SummaryEmbedding},
	}

	for _, f := range fields {
		if len(*f.dest) > 0 {
			continue
		}
		vec, err := provider.Embed(ctx, f.text, padToTokens, true)
		if err != nil {
			return fmt.Errorf("%s embedding: %w", f.name, err)
		}
		if len(vec) == 0 {
			return fmt.Errorf("%w: %s", ErrEmbeddingFailed, f.name)
		}
		*f.dest = vec
	}

	return nil
}

func (s *SecurityBookStrategy) ComputeID(item Item) string {
	b, ok := item.(*SecurityBook)
	if !ok {
		return ""
	}
	sum := sha256.Sum256([]byte(b.Output))
	return hex.EncodeToString(sum[:])
}

func (s *SecurityBookStrategy) BuildIndexDocument(item Item) map[string]any {
	b, ok := item.(*SecurityBook)
	if !ok {
		return nil
	}
	return map[string]any{
		"input":             b.Input,
		"output":            b.Output,
		"summary":           b.Summary,
		"input_embedding":   b.InputEmbedding,
		"output_embedding":  b.OutputEmbedding,
		"summary_embedding": b.SummaryEmbedding,
	}
}

func (s *SecurityBookStrategy) VectorField(mode string) string {
	switch mode {
	case ModeQuestion:
		return "input_embedding"
	case ModeSummary:
		return "summary_embedding"
	default:
		return "output_embedding"
	}
}

func (s *SecurityBookStrategy) DefaultFieldWeights() map[string]float64 {
	return map[string]float64{
		"input_embedding":   1.0,
		"output_embedding":  1.0,
		"summary_embedding": 1.0,
	}
}

func (s *SecurityBookStrategy) EngineMapping(dimension int, engineName string) ([]byte, error) {
	return buildEngineMapping(dimension, engineName,
		[]string{"input", "output", "summary"},
		[]string{"input_embedding", "output_embedding", "summary_embedding"})
}

func (s *SecurityBookStrategy) EstimatePadding(files []string, counter TokenCounter, minCap, maxCap int) (int, int, error) {
	return estimatePadding(files, counter, minCap, maxCap, s.Deserialize, s.Fields)
}

var _ Strategy = (*SecurityBookStrategy)(nil)
