// Package local implements the ONNX-backed EmbeddingProvider variant: a
// shared inference session and tokenizer gated behind a single-lane,
// cancellable FIFO queue, producing mean-pooled, attention-masked vectors.
package local

import (
	"context"
	"errors"
	"fmt"
	"time"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/netmonitor/semantic-index/internal/embedding"
	"github.com/netmonitor/semantic-index/internal/metrics"
	"github.com/netmonitor/semantic-index/internal/tokenizer"
)

// ProviderConfig configures the local ONNX embedding provider.
type ProviderConfig struct {
	// ModelDir holds tokenizer.json, tokenizer_config.json, vocab.json/txt,
	// and model.onnx.
	ModelDir string

	// Dimension is the declared output vector length D.
	Dimension int

	// Threads is the intra-op thread count of the inference session.
	Threads int

	// PositionInputName and TokenTypeInputName name the third ONNX input.
	// Exactly one is bound per call, chosen by ThirdInputIsPosition; never
	// silently aliased between the two conventions.
	PositionInputName   string
	TokenTypeInputName  string
	ThirdInputIsPosition bool

	// Scale and ZeroPoint dequantize a uint8 output as (q - ZeroPoint) * Scale.
	Scale     float64
	ZeroPoint int

	// Metrics is optional; when nil no series are recorded.
	Metrics *metrics.Metrics
}

// Provider implements embedding.Provider over a non-thread-safe ONNX session,
// serializing every call through a single-lane, cancellable gate.
type Provider struct {
	cfg     ProviderConfig
	tok     *tokenizer.Tokenizer
	session *ort.DynamicAdvancedSession
	gate    chan struct{}
}

// New creates a local provider from modelDir, loading the tokenizer and the
// ONNX session at model.onnx inside it.
func New(cfg ProviderConfig) (*Provider, error) {
	if cfg.Dimension <= 0 {
		return nil, errors.New("dimension must be positive")
	}

	tok, err := tokenizer.New(cfg.ModelDir)
	if err != nil {
		return nil, err
	}

	session, err := newSession(cfg)
	if err != nil {
		_ = tok.Close()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &Provider{
		cfg:     cfg,
		tok:     tok,
		session: session,
		gate:    make(chan struct{}, 1),
	}, nil
}

func newSession(cfg ProviderConfig) (*ort.DynamicAdvancedSession, error) {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer func() { _ = options.Destroy() }()

	if cfg.Threads > 0 {
		if err := options.SetIntraOpNumThreads(cfg.Threads); err != nil {
			return nil, fmt.Errorf("failed to set thread count: %w", err)
		}
	}

	thirdInput := cfg.TokenTypeInputName
	if cfg.ThirdInputIsPosition {
		thirdInput = cfg.PositionInputName
	}

	inputNames := []string{"input_ids", "attention_mask", thirdInput}
	outputNames := []string{"last_hidden_state"}

	modelPath := cfg.ModelDir + "/model.onnx"
	return ort.NewDynamicAdvancedSession(modelPath, inputNames, outputNames, options)
}

// acquire blocks until the gate is free or ctx is cancelled.
func (p *Provider) acquire(ctx context.Context) error {
	select {
	case p.gate <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Provider) release() { <-p.gate }

// Embed tokenizes text (padded or natural length per pad), runs inference
// under the single-lane gate, and mean-pools the result with the attention
// mask. Empty text still yields a D-vector, pooled over the tokenizer's
// implicit special-token sequence.
func (p *Provider) Embed(ctx context.Context, text string, padToTokens int, pad bool) ([]float32, error) {
	start := time.Now()
	vec, err := p.embed(ctx, text, padToTokens, pad)
	if p.cfg.Metrics != nil {
		p.cfg.Metrics.RecordEmbeddingOperation("local", err == nil, time.Since(start).Seconds())
	}
	return vec, err
}

func (p *Provider) embed(ctx context.Context, text string, padToTokens int, pad bool) ([]float32, error) {
	var input *tokenizer.Input
	if pad {
		input = p.tok.Tokenize(text, padToTokens)
	} else {
		input = p.tok.TokenizeNoPad(text)
	}

	if err := p.acquire(ctx); err != nil {
		return nil, err
	}
	defer p.release()

	return p.runInference(input)
}

func (p *Provider) runInference(input *tokenizer.Input) ([]float32, error) {
	l := int64(len(input.InputIDs))
	shape := ort.NewShape(1, l)

	inputIDsTensor, err := ort.NewTensor(shape, input.InputIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to create input_ids tensor: %w", err)
	}
	defer func() { _ = inputIDsTensor.Destroy() }()

	attentionTensor, err := ort.NewTensor(shape, input.AttentionMask)
	if err != nil {
		return nil, fmt.Errorf("failed to create attention_mask tensor: %w", err)
	}
	defer func() { _ = attentionTensor.Destroy() }()

	third := input.TokenTypeIDs
	if p.cfg.ThirdInputIsPosition {
		third = positionIDs(len(input.InputIDs))
	}
	thirdTensor, err := ort.NewTensor(shape, third)
	if err != nil {
		return nil, fmt.Errorf("failed to create third input tensor: %w", err)
	}
	defer func() { _ = thirdTensor.Destroy() }()

	outputs := []ort.Value{nil}
	inputs := []ort.Value{inputIDsTensor, attentionTensor, thirdTensor}
	if err := p.session.Run(inputs, outputs); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	if outputs[0] == nil {
		return nil, embedding.ErrUnsupportedOutput
	}
	defer destroyOutput(outputs[0])

	return p.meanPool(outputs[0], input.AttentionMask)
}

func destroyOutput(output ort.Value) {
	switch t := output.(type) {
	case *ort.Tensor[float32]:
		_ = t.Destroy()
	case *ort.Tensor[ort.Float16]:
		_ = t.Destroy()
	case *ort.Tensor[uint8]:
		_ = t.Destroy()
	}
}

func positionIDs(l int) []int64 {
	ids := make([]int64, l)
	for i := range ids {
		ids[i] = int64(i)
	}
	return ids
}

// meanPool inspects the session output's element type (float32, else
// float16, else uint8; ErrUnsupportedOutput otherwise), widening float16 and
// dequantizing uint8, then mean-pools over positions with mask==1.
func (p *Provider) meanPool(output ort.Value, mask []int64) ([]float32, error) {
	dim := p.cfg.Dimension
	seqLen := len(mask)

	var flat []float32
	switch t := output.(type) {
	case *ort.Tensor[float32]:
		flat = t.GetData()
	case *ort.Tensor[ort.Float16]:
		raw := t.GetData()
		flat = make([]float32, len(raw))
		for i, v := range raw {
			flat[i] = v.ToFloat32()
		}
	case *ort.Tensor[uint8]:
		raw := t.GetData()
		flat = make([]float32, len(raw))
		for i, v := range raw {
			flat[i] = (float32(v) - float32(p.cfg.ZeroPoint)) * float32(p.cfg.Scale)
		}
	default:
		return nil, embedding.ErrUnsupportedOutput
	}

	result := make([]float32, dim)
	var count float32
	for i := 0; i < seqLen; i++ {
		if mask[i] == 0 {
			continue
		}
		count++
		offset := i * dim
		for d := 0; d < dim; d++ {
			result[d] += flat[offset+d]
		}
	}
	if count == 0 {
		return result, nil
	}
	for d := 0; d < dim; d++ {
		result[d] /= count
	}
	return result, nil
}

// Dimension returns D.
func (p *Provider) Dimension() int { return p.cfg.Dimension }

// Close releases the tokenizer and ONNX session.
func (p *Provider) Close() error {
	if err := p.tok.Close(); err != nil {
		return err
	}
	return p.session.Destroy()
}

var _ embedding.Provider = (*Provider)(nil)
