// Package searchengine implements a thin HTTP adapter over the external
// k-NN-capable search engine: index lifecycle, document indexing, k-NN
// search, and snapshot pass-through.
package searchengine

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/netmonitor/semantic-index/internal/metrics"
)

// ErrEngineRejected wraps any non-2xx response from the engine, carrying the
// status code and body for diagnostics.
var ErrEngineRejected = errors.New("search engine rejected request")

// DefaultTimeout is the client timeout applied when Config.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// Config configures the engine client. The deployment is intra-cluster and
// the server certificate is commonly self-signed, so TLS verification is
// intentionally permissive here.
type Config struct {
	BaseURL  string
	Username string
	Password string
	Timeout  time.Duration
	// Metrics is optional; when nil no series are recorded.
	Metrics *metrics.Metrics
}

// Client is a thin adapter over the external k-NN engine's HTTP API.
type Client struct {
	cfg        Config
	httpClient *http.Client
	metrics    *metrics.Metrics
}

// New creates a Client. All requests carry HTTP basic auth and tolerate a
// self-signed server certificate.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec
			},
		},
		metrics: cfg.Metrics,
	}
}

// Hit is one matched document from a k-NN search.
type Hit struct {
	ID     string          `json:"id"`
	Score  float64         `json:"score"`
	Source json.RawMessage `json:"source"`
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, []byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return nil, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Username != "" {
		req.SetBasicAuth(c.cfg.Username, c.cfg.Password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp, nil, fmt.Errorf("read response: %w", err)
	}

	return resp, respBody, nil
}

// observe records an engine call's outcome and duration. No-op when metrics
// were not configured.
func (c *Client) observe(operation string, start time.Time, failed bool) {
	if c.metrics == nil {
		return
	}
	status := "success"
	if failed {
		status = "failure"
		c.metrics.EngineCallsFailed.WithLabelValues(operation).Inc()
	}
	c.metrics.EngineCallsTotal.WithLabelValues(operation, status).Inc()
	c.metrics.EngineCallDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// Exists reports whether index exists.
func (c *Client) Exists(ctx context.Context, index string) (bool, error) {
	start := time.Now()
	resp, _, err := c.do(ctx, http.MethodHead, "/"+index, nil)
	c.observe("exists", start, err != nil)
	if err != nil {
		return false, err
	}
	return resp.StatusCode == http.StatusOK, nil
}

// Create creates index from a raw engine mapping JSON body.
func (c *Client) Create(ctx context.Context, index string, mapping json.RawMessage) error {
	start := time.Now()
	resp, body, err := c.do(ctx, http.MethodPut, "/"+index, mapping)
	if err != nil {
		c.observe("create", start, true)
		return err
	}
	if resp.StatusCode >= 300 {
		c.observe("create", start, true)
		return fmt.Errorf("%w: create %s: %d: %s", ErrEngineRejected, index, resp.StatusCode, body)
	}
	c.observe("create", start, false)
	return nil
}

// Delete deletes index. A 404 is treated as success (already absent).
func (c *Client) Delete(ctx context.Context, index string) error {
	start := time.Now()
	resp, body, err := c.do(ctx, http.MethodDelete, "/"+index, nil)
	if err != nil {
		c.observe("delete", start, true)
		return err
	}
	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusNotFound {
		c.observe("delete", start, true)
		return fmt.Errorf("%w: delete %s: %d: %s", ErrEngineRejected, index, resp.StatusCode, body)
	}
	c.observe("delete", start, false)
	return nil
}

// ExistsDoc reports whether a document with the given id exists in index.
func (c *Client) ExistsDoc(ctx context.Context, index, id string) (bool, error) {
	start := time.Now()
	resp, _, err := c.do(ctx, http.MethodHead, "/"+index+"/_doc/"+id, nil)
	c.observe("exists_doc", start, err != nil)
	if err != nil {
		return false, err
	}
	return resp.StatusCode == http.StatusOK, nil
}

// IndexDoc writes body under id in index, creating or overwriting it.
func (c *Client) IndexDoc(ctx context.Context, index, id string, body map[string]any) error {
	start := time.Now()
	resp, respBody, err := c.do(ctx, http.MethodPut, "/"+index+"/_doc/"+id, body)
	if err != nil {
		c.observe("index_doc", start, true)
		return err
	}
	if resp.StatusCode >= 300 {
		c.observe("index_doc", start, true)
		return fmt.Errorf("%w: index_doc %s/%s: %d: %s", ErrEngineRejected, index, id, resp.StatusCode, respBody)
	}
	c.observe("index_doc", start, false)
	return nil
}

type knnClause struct {
	Vector []float32 `json:"vector"`
	K      int       `json:"k"`
}

type knnSearchBody struct {
	Size  int `json:"size"`
	Query struct {
		KNN map[string]knnClause `json:"knn"`
	} `json:"query"`
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string          `json:"_id"`
			Score  float64         `json:"_score"`
			Source json.RawMessage `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// KNNSearch performs a single-field k-NN search for the nearest k documents
// to vector in vectorField.
func (c *Client) KNNSearch(ctx context.Context, index, vectorField string, vector []float32, k int) ([]Hit, error) {
	var body knnSearchBody
	body.Size = k
	body.Query.KNN = map[string]knnClause{
		vectorField: {Vector: vector, K: k},
	}
	return c.search(ctx, index, body)
}

type functionScoreClause struct {
	FunctionScore struct {
		KNN    map[string]knnClause `json:"knn"`
		Weight float64              `json:"weight"`
	} `json:"function_score"`
}

type multiFieldSearchBody struct {
	Size  int `json:"size"`
	Query struct {
		Bool struct {
			Should []functionScoreClause `json:"should"`
		} `json:"bool"`
	} `json:"query"`
}

// MultiFieldKNNSearch performs a weighted multi-field k-NN search: a
// boolean-should of one weighted function-score k-NN clause per field.
func (c *Client) MultiFieldKNNSearch(ctx context.Context, index string, fieldWeights map[string]float64, vector []float32, kPerField int) ([]Hit, error) {
	var body multiFieldSearchBody
	body.Size = kPerField * len(fieldWeights)

	for field, weight := range fieldWeights {
		var clause functionScoreClause
		clause.FunctionScore.KNN = map[string]knnClause{
			field: {Vector: vector, K: kPerField},
		}
		clause.FunctionScore.Weight = weight
		body.Query.Bool.Should = append(body.Query.Bool.Should, clause)
	}

	return c.search(ctx, index, body)
}

func (c *Client) search(ctx context.Context, index string, body any) ([]Hit, error) {
	start := time.Now()
	resp, respBody, err := c.do(ctx, http.MethodPost, "/"+index+"/_search", body)
	if err != nil {
		c.observe("search", start, true)
		return nil, err
	}
	if resp.StatusCode >= 300 {
		c.observe("search", start, true)
		return nil, fmt.Errorf("%w: search %s: %d: %s", ErrEngineRejected, index, resp.StatusCode, respBody)
	}
	c.observe("search", start, false)

	var parsed searchResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	hits := make([]Hit, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		hits = append(hits, Hit{ID: h.ID, Score: h.Score, Source: h.Source})
	}
	return hits, nil
}

// SnapshotCreate issues PUT /_snapshot/{repo}/{name} restricted to indices.
func (c *Client) SnapshotCreate(ctx context.Context, repo, name string, indices []string) error {
	start := time.Now()
	resp, body, err := c.do(ctx, http.MethodPut, "/_snapshot/"+repo+"/"+name, map[string]any{
		"indices": indices,
	})
	if err != nil {
		c.observe("snapshot_create", start, true)
		return err
	}
	if resp.StatusCode >= 300 {
		c.observe("snapshot_create", start, true)
		return fmt.Errorf("%w: snapshot_create %s/%s: %d: %s", ErrEngineRejected, repo, name, resp.StatusCode, body)
	}
	c.observe("snapshot_create", start, false)
	return nil
}

// SnapshotRestore issues POST /_snapshot/{repo}/{name}/_restore restricted
// to indices.
func (c *Client) SnapshotRestore(ctx context.Context, repo, name string, indices []string) error {
	start := time.Now()
	resp, body, err := c.do(ctx, http.MethodPost, "/_snapshot/"+repo+"/"+name+"/_restore", map[string]any{
		"indices": indices,
	})
	if err != nil {
		c.observe("snapshot_restore", start, true)
		return err
	}
	if resp.StatusCode >= 300 {
		c.observe("snapshot_restore", start, true)
		return fmt.Errorf("%w: snapshot_restore %s/%s: %d: %s", ErrEngineRejected, repo, name, resp.StatusCode, body)
	}
	c.observe("snapshot_restore", start, false)
	return nil
}
