package strategy

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/netmonitor/semantic-index/internal/embedding"
)

const mitreIndexName = "mitre"

// Mitre is a single-embedding artefact: an input technique description and
// an output narrative, sharing one embedding vector.
type Mitre struct {
	Input  string `json:"input"`
	Output string `json:"output"`

	Embedding []float32 `json:"embedding,omitempty"`
}

// MitreStrategy handles the Mitre artefact kind.
type MitreStrategy struct{}

// NewMitreStrategy returns the Mitre strategy.
func NewMitreStrategy() *MitreStrategy { return &MitreStrategy{} }

func (s *MitreStrategy) IndexName() string { return mitreIndexName }

func (s *MitreStrategy) CanHandleItem(item Item) bool {
	_, ok := item.(*Mitre)
	return ok
}

func (s *MitreStrategy) CanHandleIndexName(name string) bool {
	return name == mitreIndexName
}

func (s *MitreStrategy) Deserialize(data []byte) []Item {
	var entries []*Mitre
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil
	}
	items := make([]Item, 0, len(entries))
	for _, e := range entries {
		items = append(items, e)
	}
	return items
}

func (s *MitreStrategy) Fields(item Item) []string {
	m, ok := item.(*Mitre)
	if !ok {
		return nil
	}
	return []string{m.Input, m.Output}
}

func (s *MitreStrategy) EnsureEmbeddings(ctx context.Context, item Item, provider embedding.Provider, padToTokens int) error {
	m, ok := item.(*Mitre)
	if !ok {
		return ErrUnknownArtefact
	}

	if len(m.Embedding) > 0 {
		return nil
	}

	vec, err := provider.Embed(ctx, m.Output, padToTokens, true)
	if err != nil {
		return fmt.Errorf("embedding: %w", err)
	}
	if len(vec) == 0 {
		return fmt.Errorf("%w: output", ErrEmbeddingFailed)
	}
	m.Embedding = vec
	return nil
}

func (s *MitreStrategy) ComputeID(item Item) string {
	m, ok := item.(*Mitre)
	if !ok {
		return ""
	}
	sum := sha256.Sum256([]byte(m.Output))
	return hex.EncodeToString(sum[:])
}

func (s *MitreStrategy) BuildIndexDocument(item Item) map[string]any {
	m, ok := item.(*Mitre)
	if !ok {
		return nil
	}
	return map[string]any{
		"input":     m.Input,
		"output":    m.Output,
		"embedding": m.Embedding,
	}
}

func (s *MitreStrategy) VectorField(mode string) string {
	return "embedding"
}

func (s *MitreStrategy) DefaultFieldWeights() map[string]float64 {
	return map[string]float64{"embedding": 1.0}
}

func (s *MitreStrategy) EngineMapping(dimension int, engineName string) ([]byte, error) {
	return buildEngineMapping(dimension, engineName,
		[]string{"input", "output"},
		[]string{"embedding"})
}

func (s *MitreStrategy) EstimatePadding(files []string, counter TokenCounter, minCap, maxCap int) (int, int, error) {
	return estimatePadding(files, counter, minCap, maxCap, s.Deserialize, s.Fields)
}

var _ Strategy = (*MitreStrategy)(nil)
