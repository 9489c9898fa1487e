// Package bus binds the three logical message-bus endpoints — createIndex,
// queryIndex, createSnapshot — to the indexing and query orchestrators. The
// transport itself (connection lifecycle, delivery, acknowledgment wiring)
// is an external collaborator named only by the Bus interface; this
// package owns only endpoint binding, request decoding, the pre-handler
// auth-key check, and result encoding.
package bus

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"github.com/netmonitor/semantic-index/internal/indexing"
	"github.com/netmonitor/semantic-index/internal/metrics"
	"github.com/netmonitor/semantic-index/internal/query"
	"github.com/netmonitor/semantic-index/internal/searchengine"
)

// ErrUnauthorized is returned when the auth-key check fails.
var ErrUnauthorized = errors.New("unauthorized")

const (
	EndpointCreateIndex    = "createIndex"
	EndpointQueryIndex     = "queryIndex"
	EndpointCreateSnapshot = "createSnapshot"

	defaultPrefetch = 1
)

// Handler processes one decoded message body and returns the reply payload
// to publish. Returning an error aborts the handler without acking (a
// decoding or infrastructure failure); a reply with success=false is still
// an ack-worthy outcome.
type Handler func(ctx context.Context, body []byte) (reply any, err error)

// Bus is the abstract message-bus capability this package depends on. The
// concrete transport (its connection, retry, and delivery semantics) is
// out of scope for this core and is supplied by the hosting process.
type Bus interface {
	// Consume binds handler to endpoint with the given prefetch, acking a
	// delivery iff handler returns a nil error.
	Consume(endpoint string, prefetch int, handler Handler) error

	// Publish sends payload on the reply destination associated with
	// endpoint (exchange/routing-key conventions are the transport's
	// concern).
	Publish(ctx context.Context, endpoint string, payload any) error
}

// AuthChecker is the external authentication-key-check collaborator. A
// false result (or error) aborts the handler with ErrUnauthorized before
// any orchestrator runs.
type AuthChecker interface {
	Check(ctx context.Context, encryptKey, authKey, appID string) (bool, error)
}

// ResultObj is the shared success/failure envelope surfaced to the bus.
type ResultObj struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// CreateIndexRequest is the createIndex endpoint's request body.
type CreateIndexRequest struct {
	IndexName             string          `json:"indexName"`
	JSONFile              string          `json:"jsonFile,omitempty"`
	JSONMapping           json.RawMessage `json:"jsonMapping,omitempty"`
	RecreateIndex         bool            `json:"recreateIndex"`
	CreateFromJSONDataDir bool            `json:"createFromJsonDataDir"`
	AppID                 string          `json:"appId"`
	AuthKey               string          `json:"authKey"`
	MessageID             string          `json:"messageId"`
}

// CreateIndexResult is the createIndex endpoint's reply envelope.
type CreateIndexResult struct {
	AppID string    `json:"appId"`
	Result ResultObj `json:"result"`
}

// QueryIndexRequest is the queryIndex endpoint's request body.
type QueryIndexRequest struct {
	IndexName        string `json:"indexName"`
	QueryText        string `json:"queryText"`
	VectorSearchMode string `json:"vectorSearchMode,omitempty"`
	AppID            string `json:"appId"`
	AuthKey          string `json:"authKey"`
	RoutingKey       string `json:"routingKey"`
}

// QueryResultPair mirrors query.ResultPair on the wire.
type QueryResultPair struct {
	Input  string `json:"input"`
	Output string `json:"output"`
}

// QueryIndexResult is the queryIndex endpoint's reply envelope.
type QueryIndexResult struct {
	AppID        string            `json:"appId"`
	Result       ResultObj         `json:"result"`
	QueryResults []QueryResultPair `json:"queryResults"`
}

// CreateSnapshotRequest is the createSnapshot endpoint's request body.
type CreateSnapshotRequest struct {
	SnapshotRepo string   `json:"snapshotRepo"`
	SnapshotName string   `json:"snapshotName"`
	Indices      []string `json:"indices"`
	AppID        string   `json:"appId"`
	AuthKey      string   `json:"authKey"`
}

// Config wires the collaborators an Adapter needs to bind its endpoints.
type Config struct {
	Bus        Bus
	Auth       AuthChecker
	EncryptKey string
	Indexing   *indexing.Orchestrator
	Query      *query.Orchestrator
	Engine     *searchengine.Client
	Logger     *zap.Logger
	// Metrics is optional; when nil no series are recorded.
	Metrics *metrics.Metrics
}

// Adapter binds the three logical endpoints to their orchestrator entry
// points, performing the auth-key check ahead of every handler invocation.
type Adapter struct {
	cfg Config
	log *zap.Logger
}

// New creates an Adapter. Call Start to bind the endpoints.
func New(cfg Config) *Adapter {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{cfg: cfg, log: logger}
}

func (a *Adapter) recordOutcome(endpoint, outcome string) {
	if a.cfg.Metrics == nil {
		return
	}
	a.cfg.Metrics.RecordBusMessage(endpoint, outcome)
}

// Start binds all three endpoints on the underlying Bus with prefetch=1.
func (a *Adapter) Start() error {
	if err := a.cfg.Bus.Consume(EndpointCreateIndex, defaultPrefetch, a.handleCreateIndex); err != nil {
		return err
	}
	if err := a.cfg.Bus.Consume(EndpointQueryIndex, defaultPrefetch, a.handleQueryIndex); err != nil {
		return err
	}
	if err := a.cfg.Bus.Consume(EndpointCreateSnapshot, defaultPrefetch, a.handleCreateSnapshot); err != nil {
		return err
	}
	return nil
}

func (a *Adapter) checkAuth(ctx context.Context, authKey, appID string) error {
	ok, err := a.cfg.Auth.Check(ctx, a.cfg.EncryptKey, authKey, appID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUnauthorized
	}
	return nil
}

func (a *Adapter) handleCreateIndex(ctx context.Context, body []byte) (any, error) {
	var req CreateIndexRequest
	if err := json.Unmarshal(body, &req); err != nil {
		a.log.Error("createIndex decode failed", zap.Error(err))
		a.recordOutcome(EndpointCreateIndex, "decode_error")
		return nil, err
	}

	if err := a.checkAuth(ctx, req.AuthKey, req.AppID); err != nil {
		a.log.Warn("createIndex unauthorized", zap.String("appId", req.AppID))
		a.recordOutcome(EndpointCreateIndex, "unauthorized")
		return CreateIndexResult{AppID: req.AppID, Result: ResultObj{Success: false, Message: ErrUnauthorized.Error()}}, nil
	}

	var result *indexing.Result
	var err error
	if req.JSONFile != "" {
		result, err = a.cfg.Indexing.IndexFile(ctx, indexing.SingleFileIndexRequest{
			IndexName: req.IndexName,
			JSONFile:  req.JSONFile,
		})
	} else {
		result, err = a.cfg.Indexing.BulkIndex(ctx, indexing.BulkIndexRequest{
			RecreateIndex: req.RecreateIndex,
		})
	}
	if err != nil {
		a.recordOutcome(EndpointCreateIndex, "failure")
		return CreateIndexResult{AppID: req.AppID, Result: ResultObj{Success: false, Message: err.Error()}}, nil
	}

	outcome := "success"
	if !result.Success {
		outcome = "partial_failure"
	}
	a.recordOutcome(EndpointCreateIndex, outcome)
	return CreateIndexResult{AppID: req.AppID, Result: ResultObj{Success: result.Success, Message: summarize(result)}}, nil
}

func (a *Adapter) handleQueryIndex(ctx context.Context, body []byte) (any, error) {
	var req QueryIndexRequest
	if err := json.Unmarshal(body, &req); err != nil {
		a.log.Error("queryIndex decode failed", zap.Error(err))
		a.recordOutcome(EndpointQueryIndex, "decode_error")
		return nil, err
	}

	if err := a.checkAuth(ctx, req.AuthKey, req.AppID); err != nil {
		a.log.Warn("queryIndex unauthorized", zap.String("appId", req.AppID))
		a.recordOutcome(EndpointQueryIndex, "unauthorized")
		return QueryIndexResult{AppID: req.AppID, Result: ResultObj{Success: false, Message: ErrUnauthorized.Error()}}, nil
	}

	hits, err := a.cfg.Query.Query(ctx, query.Request{
		IndexName:        req.IndexName,
		QueryText:        req.QueryText,
		VectorSearchMode: req.VectorSearchMode,
	})
	if err != nil {
		a.recordOutcome(EndpointQueryIndex, "failure")
		return QueryIndexResult{AppID: req.AppID, Result: ResultObj{Success: false, Message: err.Error()}}, nil
	}

	pairs := make([]QueryResultPair, 0, len(hits))
	for _, h := range hits {
		pairs = append(pairs, QueryResultPair{Input: h.Input, Output: h.Output})
	}

	a.recordOutcome(EndpointQueryIndex, "success")
	return QueryIndexResult{
		AppID:        req.AppID,
		Result:       ResultObj{Success: true, Message: "ok"},
		QueryResults: pairs,
	}, nil
}

func (a *Adapter) handleCreateSnapshot(ctx context.Context, body []byte) (any, error) {
	var req CreateSnapshotRequest
	if err := json.Unmarshal(body, &req); err != nil {
		a.log.Error("createSnapshot decode failed", zap.Error(err))
		a.recordOutcome(EndpointCreateSnapshot, "decode_error")
		return nil, err
	}

	if err := a.checkAuth(ctx, req.AuthKey, req.AppID); err != nil {
		a.log.Warn("createSnapshot unauthorized", zap.String("appId", req.AppID))
		a.recordOutcome(EndpointCreateSnapshot, "unauthorized")
		return ResultObj{Success: false, Message: ErrUnauthorized.Error()}, nil
	}

	if err := a.cfg.Engine.SnapshotCreate(ctx, req.SnapshotRepo, req.SnapshotName, req.Indices); err != nil {
		a.recordOutcome(EndpointCreateSnapshot, "failure")
		return ResultObj{Success: false, Message: err.Error()}, nil
	}

	a.recordOutcome(EndpointCreateSnapshot, "success")
	return ResultObj{Success: true, Message: "ok"}, nil
}

func summarize(result *indexing.Result) string {
	if result.Success {
		return "ok"
	}
	if len(result.Diagnostics) == 0 {
		return "indexing completed with failed items"
	}
	return result.Diagnostics[0]
}
