// Package remote implements the HTTP-backed EmbeddingProvider variant: an
// OpenAI-compatible embeddings endpoint paced by an adaptive rate limiter,
// with context-length-aware truncation and retry.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/netmonitor/semantic-index/internal/embedding"
	"github.com/netmonitor/semantic-index/internal/metrics"
	"github.com/netmonitor/semantic-index/internal/ratelimit"
)

const (
	maxAttempts       = 10
	truncateStep      = 500
	minTruncatedCap   = 500
	maxContextMessage = "maximum context length"
)

// ProviderConfig configures the remote embedding provider.
type ProviderConfig struct {
	URL       string
	Model     string
	APIKey    string
	Dimension int
	Timeout   time.Duration
	// Metrics is optional; when nil no series are recorded.
	Metrics *metrics.Metrics
}

// tokenCounter is the subset of the tokenizer this provider needs: counting
// and truncate-then-decode. It never builds padded input tensors — that is
// the local provider's job.
type tokenCounter interface {
	Count(text string) int
	Encode(text string) []int64
	Decode(ids []int64) string
	Close() error
}

// Provider implements embedding.Provider over a remote OpenAI-compatible
// embeddings endpoint.
type Provider struct {
	cfg     ProviderConfig
	tok     tokenCounter
	limiter *ratelimit.Limiter
	client  *http.Client
}

// New creates a remote provider. tok is used only for token counting and
// truncation (never for building model input tensors).
func New(cfg ProviderConfig, tok tokenCounter, limiter *ratelimit.Limiter) *Provider {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Provider{
		cfg:     cfg,
		tok:     tok,
		limiter: limiter,
		client:  &http.Client{Timeout: timeout},
	}
}

type embeddingRequest struct {
	Model          string `json:"model"`
	Input          string `json:"input"`
	EncodingFormat string `json:"encoding_format"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed implements the remote provider's call sequence: initial cap from
// padToTokens, rate-limiter wait, tokenize/truncate-if-needed, POST, and a
// context-length-aware retry loop capped at 10 total attempts. pad is
// ignored: text over the cap is truncated, never padded, and the vector
// returned is the endpoint's own (no pooling happens here). Empty text is
// sent as is.
func (p *Provider) Embed(ctx context.Context, text string, padToTokens int, pad bool) ([]float32, error) {
	start := time.Now()
	vec, err := p.embed(ctx, text, padToTokens, pad)
	if p.cfg.Metrics != nil {
		p.cfg.Metrics.RecordEmbeddingOperation("remote", err == nil, time.Since(start).Seconds())
		p.cfg.Metrics.SetRateLimiterDelay(p.limiter.Delay().Seconds())
	}
	return vec, err
}

func (p *Provider) embed(ctx context.Context, text string, padToTokens int, pad bool) ([]float32, error) {
	tokenCap := padToTokens
	if tokenCap <= 0 {
		tokenCap = p.tok.Count(text)
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		p.limiter.Wait()

		sendText := text
		if count := p.tok.Count(text); count > tokenCap {
			ids := p.tok.Encode(text)
			if tokenCap < len(ids) {
				ids = ids[:tokenCap]
			}
			sendText = p.tok.Decode(ids)
		}

		vec, retryContextLength, rateLimited, err := p.call(ctx, sendText)
		if err == nil {
			p.limiter.NotifySuccess()
			return vec, nil
		}

		if retryContextLength {
			if p.cfg.Metrics != nil {
				p.cfg.Metrics.RecordEmbeddingRetry("context_length")
			}
			tokenCap = tokenCap - truncateStep
			if tokenCap < minTruncatedCap {
				tokenCap = minTruncatedCap
			}
			continue
		}

		if rateLimited && p.cfg.Metrics != nil {
			p.cfg.Metrics.RecordRateLimited()
		}
		p.limiter.NotifyFailure(rateLimited)
		return nil, fmt.Errorf("%w: %s", embedding.ErrEmbeddingFailed, err)
	}

	return nil, embedding.ErrContextLengthExceeded
}

// call performs one POST attempt, returning the embedding vector, whether
// the failure should trigger a context-length retry, and whether the
// failure was an HTTP 429 (for rate-limiter notification).
func (p *Provider) call(ctx context.Context, text string) (vec []float32, retryContextLength bool, rateLimited bool, err error) {
	body, err := json.Marshal(embeddingRequest{
		Model:          p.cfg.Model,
		Input:          text,
		EncodingFormat: "float",
	})
	if err != nil {
		return nil, false, false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return nil, false, false, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, false, false, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, false, err
	}

	if resp.StatusCode != http.StatusOK {
		if strings.Contains(strings.ToLower(string(respBody)), maxContextMessage) {
			return nil, true, false, fmt.Errorf("context length exceeded: %s", respBody)
		}
		return nil, false, resp.StatusCode == http.StatusTooManyRequests,
			fmt.Errorf("remote embedding call failed with status %d: %s", resp.StatusCode, respBody)
	}

	var parsed embeddingResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, false, false, err
	}
	if len(parsed.Data) == 0 || len(parsed.Data[0].Embedding) == 0 {
		return nil, false, false, embedding.ErrEmbeddingFailed
	}

	return parsed.Data[0].Embedding, false, false, nil
}

// Dimension returns D.
func (p *Provider) Dimension() int { return p.cfg.Dimension }

// Close releases the tokenizer used for counting/truncation.
func (p *Provider) Close() error { return p.tok.Close() }

var _ embedding.Provider = (*Provider)(nil)
