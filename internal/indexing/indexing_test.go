package indexing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netmonitor/semantic-index/internal/padregistry"
	"github.com/netmonitor/semantic-index/internal/searchengine"
	"github.com/netmonitor/semantic-index/internal/strategy"
)

type fakeProvider struct{ dim int }

func (f *fakeProvider) Embed(_ context.Context, text string, _ int, _ bool) ([]float32, error) {
	return make([]float32, f.dim), nil
}
func (f *fakeProvider) Dimension() int { return f.dim }
func (f *fakeProvider) Close() error   { return nil }

type countingTokenizer struct{}

func (countingTokenizer) Count(text string) int { return len(text) }

// newTestEngine spins up an in-memory engine server tracking created
// indices and indexed doc ids.
func newTestEngine(t *testing.T) (*searchengine.Client, func() []string, func() int) {
	t.Helper()

	created := map[string]bool{}
	docs := map[string]bool{}
	var docOrder []string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodHead && r.URL.Path == "/documents":
			if created["documents"] {
				w.WriteHeader(http.StatusOK)
			} else {
				w.WriteHeader(http.StatusNotFound)
			}
		case r.Method == http.MethodPut && r.URL.Path == "/documents":
			created["documents"] = true
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodDelete && r.URL.Path == "/documents":
			delete(created, "documents")
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodHead && filepath.Dir(r.URL.Path) == "/documents/_doc":
			id := filepath.Base(r.URL.Path)
			if docs[id] {
				w.WriteHeader(http.StatusOK)
			} else {
				w.WriteHeader(http.StatusNotFound)
			}
		case r.Method == http.MethodPut && filepath.Dir(r.URL.Path) == "/documents/_doc":
			id := filepath.Base(r.URL.Path)
			docs[id] = true
			docOrder = append(docOrder, id)
			w.WriteHeader(http.StatusCreated)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)

	client := searchengine.New(searchengine.Config{BaseURL: server.URL})
	return client, func() []string { return docOrder }, func() int { return len(created) }
}

func writeDocs(t *testing.T, dir string, docs []strategy.Document) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, "docs.json")
	data, err := json.Marshal(docs)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestBulkIndex_EstimatesPadCreatesIndexAndWritesDocs(t *testing.T) {
	dataDir := t.TempDir()
	writeDocs(t, filepath.Join(dataDir, "documents"), []strategy.Document{
		{Input: "q1", Output: "a1"},
		{Input: "q2", Output: "a2"},
	})

	engine, docOrder, _ := newTestEngine(t)
	o := New(Config{
		Strategies: strategy.NewRegistry(strategy.NewDocumentStrategy()),
		Provider:   &fakeProvider{dim: 4},
		Tokens:     countingTokenizer{},
		Pads:       padregistry.New(dataDir),
		Engine:     engine,
		DataDir:    dataDir,
		Dimension:  4,
		EngineName: "nmslib",
		MinCap:     8,
		MaxCap:     64,
	})

	result, err := o.BulkIndex(context.Background(), BulkIndexRequest{})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Len(t, result.IndexedIDs, 2)
	assert.Len(t, docOrder(), 2)

	pads := padregistry.New(dataDir)
	rec, err := pads.Get("documents")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, rec.PadToTokens, 8)
}

func TestBulkIndex_SkipsAlreadyIndexedDoc(t *testing.T) {
	dataDir := t.TempDir()
	writeDocs(t, filepath.Join(dataDir, "documents"), []strategy.Document{
		{Input: "q1", Output: "a1"},
	})

	engine, docOrder, _ := newTestEngine(t)
	pads := padregistry.New(dataDir)
	require.NoError(t, pads.Set("documents", padregistry.Record{PadToTokens: 16, ActualMaxTokens: 10}))

	o := New(Config{
		Strategies: strategy.NewRegistry(strategy.NewDocumentStrategy()),
		Provider:   &fakeProvider{dim: 4},
		Tokens:     countingTokenizer{},
		Pads:       pads,
		Engine:     engine,
		DataDir:    dataDir,
		Dimension:  4,
		MinCap:     8,
		MaxCap:     64,
	})

	_, err := o.BulkIndex(context.Background(), BulkIndexRequest{})
	require.NoError(t, err)
	first := len(docOrder())

	_, err = o.BulkIndex(context.Background(), BulkIndexRequest{})
	require.NoError(t, err)
	assert.Equal(t, first, len(docOrder()), "second run finds the doc already indexed and writes nothing new")
}

func TestBulkIndex_SkipsDirectoryWithNoStrategy(t *testing.T) {
	dataDir := t.TempDir()
	writeDocs(t, filepath.Join(dataDir, "unknown_kind"), []strategy.Document{{Input: "q", Output: "a"}})

	engine, _, _ := newTestEngine(t)
	o := New(Config{
		Strategies: strategy.NewRegistry(strategy.NewDocumentStrategy()),
		Provider:   &fakeProvider{dim: 4},
		Tokens:     countingTokenizer{},
		Pads:       padregistry.New(dataDir),
		Engine:     engine,
		DataDir:    dataDir,
		MinCap:     8,
		MaxCap:     64,
	})

	result, err := o.BulkIndex(context.Background(), BulkIndexRequest{})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.NotEmpty(t, result.Diagnostics)
}

func TestBulkIndex_SkipsIndexConfigDirectory(t *testing.T) {
	dataDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dataDir, "index_config"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "index_config", "stray.json"), []byte(`{}`), 0o644))

	engine, _, _ := newTestEngine(t)
	o := New(Config{
		Strategies: strategy.NewRegistry(strategy.NewDocumentStrategy()),
		Provider:   &fakeProvider{dim: 4},
		Tokens:     countingTokenizer{},
		Pads:       padregistry.New(dataDir),
		Engine:     engine,
		DataDir:    dataDir,
		MinCap:     8,
		MaxCap:     64,
	})

	result, err := o.BulkIndex(context.Background(), BulkIndexRequest{})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Empty(t, result.IndexedIDs)
}

func TestIndexFile_FailsWithPadLengthUnknown(t *testing.T) {
	dataDir := t.TempDir()
	path := writeDocs(t, filepath.Join(dataDir, "documents"), []strategy.Document{{Input: "q", Output: "a"}})

	engine, _, _ := newTestEngine(t)
	o := New(Config{
		Strategies: strategy.NewRegistry(strategy.NewDocumentStrategy()),
		Provider:   &fakeProvider{dim: 4},
		Tokens:     countingTokenizer{},
		Pads:       padregistry.New(dataDir),
		Engine:     engine,
		DataDir:    dataDir,
		MinCap:     8,
		MaxCap:     64,
	})

	_, err := o.IndexFile(context.Background(), SingleFileIndexRequest{IndexName: "documents", JSONFile: path})
	assert.ErrorIs(t, err, ErrPadLengthUnknown)
}

func TestIndexFile_SucceedsWhenPadLengthKnown(t *testing.T) {
	dataDir := t.TempDir()
	path := writeDocs(t, filepath.Join(dataDir, "documents"), []strategy.Document{{Input: "q", Output: "a"}})

	engine, docOrder, _ := newTestEngine(t)
	pads := padregistry.New(dataDir)
	require.NoError(t, pads.Set("documents", padregistry.Record{PadToTokens: 16, ActualMaxTokens: 10}))

	o := New(Config{
		Strategies: strategy.NewRegistry(strategy.NewDocumentStrategy()),
		Provider:   &fakeProvider{dim: 4},
		Tokens:     countingTokenizer{},
		Pads:       pads,
		Engine:     engine,
		DataDir:    dataDir,
		MinCap:     8,
		MaxCap:     64,
	})

	result, err := o.IndexFile(context.Background(), SingleFileIndexRequest{IndexName: "documents", JSONFile: path})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Len(t, docOrder(), 1)
}
