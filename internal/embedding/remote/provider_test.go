package remote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netmonitor/semantic-index/internal/embedding"
	"github.com/netmonitor/semantic-index/internal/ratelimit"
)

// fakeTokenizer is a minimal tokenCounter: one id per whitespace-separated
// word, decode re-joins by space.
type fakeTokenizer struct{}

func (fakeTokenizer) Count(text string) int { return len(strings.Fields(text)) }

func (fakeTokenizer) Encode(text string) []int64 {
	words := strings.Fields(text)
	ids := make([]int64, len(words))
	for i := range words {
		ids[i] = int64(i)
	}
	return ids
}

func (fakeTokenizer) Decode(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, " ")
}

func (fakeTokenizer) Close() error { return nil }

func TestEmbed_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"embedding":[0.1,0.2,0.3]}]}`))
	}))
	defer server.Close()

	p := New(ProviderConfig{URL: server.URL, Model: "test-model", Dimension: 3}, fakeTokenizer{}, ratelimit.New())

	vec, err := p.Embed(context.Background(), "hello world", 10, true)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
}

func TestEmbed_EmptyTextStillEmbeds(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"embedding":[0.1,0.2,0.3]}]}`))
	}))
	defer server.Close()

	p := New(ProviderConfig{URL: server.URL, Model: "test-model", Dimension: 3}, fakeTokenizer{}, ratelimit.New())

	vec, err := p.Embed(context.Background(), "", 10, true)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
}

func TestEmbed_ContextLengthRetriesThenSucceeds(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"maximum context length exceeded"}`))
			return
		}
		w.Write([]byte(`{"data":[{"embedding":[1,2]}]}`))
	}))
	defer server.Close()

	p := New(ProviderConfig{URL: server.URL, Dimension: 2}, fakeTokenizer{}, ratelimit.New())

	vec, err := p.Embed(context.Background(), "one two three four five six seven eight nine ten", 10, true)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, vec)
	assert.Equal(t, 2, calls)
}

func TestEmbed_NonContextLengthFailureNotifiesLimiterAndReturnsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer server.Close()

	limiter := ratelimit.New()
	p := New(ProviderConfig{URL: server.URL, Dimension: 2}, fakeTokenizer{}, limiter)

	_, err := p.Embed(context.Background(), "hello", 10, true)
	require.Error(t, err)
	assert.ErrorIs(t, err, embedding.ErrEmbeddingFailed)
	// a 429 backs the limiter off from 1s to 2*1s+1s.
	assert.Equal(t, 3*time.Second, limiter.Delay())
}

func TestEmbed_EmptyEmbeddingReturnsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[]}`))
	}))
	defer server.Close()

	p := New(ProviderConfig{URL: server.URL, Dimension: 2}, fakeTokenizer{}, ratelimit.New())

	_, err := p.Embed(context.Background(), "hello", 10, true)
	require.Error(t, err)
}
