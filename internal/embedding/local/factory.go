package local

import (
	"github.com/netmonitor/semantic-index/internal/config"
	"github.com/netmonitor/semantic-index/internal/metrics"
)

// NewFromConfig builds a local provider from deployment Config, applying the
// position_ids/token_type_ids and uint8 dequantization bindings the spec
// leaves as required, never-aliased configuration. m may be nil.
func NewFromConfig(cfg *config.Config, m *metrics.Metrics) (*Provider, error) {
	return New(ProviderConfig{
		ModelDir:             cfg.EmbeddingModelDir,
		Dimension:            cfg.EmbeddingModelVecDim,
		Threads:              cfg.LLMThreads,
		PositionInputName:    cfg.PositionInputName,
		TokenTypeInputName:   cfg.TokenTypeInputName,
		ThirdInputIsPosition: cfg.UsePositionIds,
		Scale:                cfg.EmbeddingScale,
		ZeroPoint:            cfg.EmbeddingZeroPoint,
		Metrics:              m,
	})
}
