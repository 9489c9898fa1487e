package query

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netmonitor/semantic-index/internal/padregistry"
	"github.com/netmonitor/semantic-index/internal/searchengine"
	"github.com/netmonitor/semantic-index/internal/strategy"
)

type fakeProvider struct {
	dim   int
	calls []struct {
		text string
		pad  bool
	}
}

func (f *fakeProvider) Embed(_ context.Context, text string, _ int, pad bool) ([]float32, error) {
	f.calls = append(f.calls, struct {
		text string
		pad  bool
	}{text, pad})
	return make([]float32, f.dim), nil
}
func (f *fakeProvider) Dimension() int { return f.dim }
func (f *fakeProvider) Close() error   { return nil }

func newTestOrchestrator(t *testing.T, handler http.HandlerFunc) (*Orchestrator, *fakeProvider) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	provider := &fakeProvider{dim: 4}
	o, err := New(Config{
		Strategies:  strategy.NewRegistry(strategy.NewDocumentStrategy()),
		Provider:    provider,
		Pads:        padregistry.New(t.TempDir()),
		Engine:      searchengine.New(searchengine.Config{BaseURL: server.URL}),
		MinTokenCap: 8,
	})
	require.NoError(t, err)
	return o, provider
}

func TestQuery_RejectsEmptyFields(t *testing.T) {
	o, _ := newTestOrchestrator(t, func(w http.ResponseWriter, r *http.Request) {})
	_, err := o.Query(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestQuery_EmbedsUnpaddedAndDispatchesMultiField(t *testing.T) {
	var gotBody map[string]any
	o, provider := newTestOrchestrator(t, func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		w.Write([]byte(`{"hits":{"hits":[{"_id":"1","_score":0.9,"_source":{"input":"q","output":"a"}}]}}`))
	})

	hits, err := o.Query(context.Background(), Request{IndexName: "documents", QueryText: "hello"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "a", hits[0].Output)

	require.Len(t, provider.calls, 1)
	assert.False(t, provider.calls[0].pad, "query embedding must not be padded")

	q := gotBody["query"].(map[string]any)
	boolClause, ok := q["bool"].(map[string]any)
	require.True(t, ok, "no mode sends a bool-should multi-field query")
	assert.Len(t, boolClause["should"], 2)
}

func TestQuery_SingleFieldModeUsesKNNSearch(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	o, _ := newTestOrchestrator(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		w.Write([]byte(`{"hits":{"hits":[]}}`))
	})

	_, err := o.Query(context.Background(), Request{
		IndexName: "documents", QueryText: "hello", VectorSearchMode: "question",
	})
	require.NoError(t, err)
	assert.Equal(t, "/documents/_search", gotPath)

	q := gotBody["query"].(map[string]any)
	knn, ok := q["knn"].(map[string]any)
	require.True(t, ok, "a search mode sends a single top-level knn query")
	assert.Contains(t, knn, "input_embedding")
}

func TestQuery_SecondCallHitsCache(t *testing.T) {
	calls := 0
	o, _ := newTestOrchestrator(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"hits":{"hits":[{"_id":"1","_score":0.9,"_source":{"input":"q","output":"a"}}]}}`))
	})

	_, err := o.Query(context.Background(), Request{IndexName: "documents", QueryText: "hello"})
	require.NoError(t, err)
	_, err = o.Query(context.Background(), Request{IndexName: "documents", QueryText: "hello"})
	require.NoError(t, err)

	assert.Equal(t, 1, calls, "second identical query is served from cache")
}

func TestQuery_FallsBackToMinTokenCapWhenPadLengthUnknown(t *testing.T) {
	var gotPad int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"hits":{"hits":[]}}`))
	}))
	t.Cleanup(server.Close)

	provider := &recordingPadProvider{dim: 4, out: &gotPad}
	o, err := New(Config{
		Strategies:  strategy.NewRegistry(strategy.NewDocumentStrategy()),
		Provider:    provider,
		Pads:        padregistry.New(t.TempDir()),
		Engine:      searchengine.New(searchengine.Config{BaseURL: server.URL}),
		MinTokenCap: 42,
	})
	require.NoError(t, err)

	_, err = o.Query(context.Background(), Request{IndexName: "documents", QueryText: "hello"})
	require.NoError(t, err)
	assert.Equal(t, 42, gotPad)
}

type recordingPadProvider struct {
	dim int
	out *int
}

func (p *recordingPadProvider) Embed(_ context.Context, _ string, padToTokens int, _ bool) ([]float32, error) {
	*p.out = padToTokens
	return make([]float32, p.dim), nil
}
func (p *recordingPadProvider) Dimension() int { return p.dim }
func (p *recordingPadProvider) Close() error   { return nil }
