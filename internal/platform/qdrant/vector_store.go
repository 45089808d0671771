package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/deepen-live/deepen-backend/internal/platform/ctxutil"
	"github.com/deepen-live/deepen-backend/internal/platform/logger"
)

const maxErrorBodyBytes = 1024

// Point is one embedded chunk of a document, ready for upsert.
type Point struct {
	ID      string  `json:"id"`
	Vector  []float32 `json:"vector"`
	Payload Payload `json:"payload"`
}

// Payload is the per-point payload stored alongside every vector. The owner_id
// field must always match the document's true owner.
type Payload struct {
	Text       string `json:"text"`
	OwnerID    string `json:"owner_id"`
	DocumentID string `json:"document_id"`
	ChunkIndex int    `json:"chunk_index"`
	CreatedAt  string `json:"created_at"`
}

// ScoredPoint is a search hit with its payload attached. Score is the index's
// native cosine similarity, carried as-is.
type ScoredPoint struct {
	Text       string
	DocumentID string
	ChunkIndex int
	Score      float64
}

// EnsureResult reports what an idempotent-create operation actually did.
type EnsureResult string

const (
	EnsureCreated       EnsureResult = "created"
	EnsureAlreadyExists EnsureResult = "already_exists"
)

type Store interface {
	// Ping checks the index is reachable. Called once at startup; a failure is
	// surfaced to the caller, which decides whether to warn or abort.
	Ping(ctx context.Context) error
	// EnsureCollection creates the collection if it does not exist (idempotent).
	EnsureCollection(ctx context.Context) (EnsureResult, error)
	// EnsurePayloadIndexes creates keyword payload indexes on owner_id and
	// document_id. "Already exists" responses are treated as success.
	EnsurePayloadIndexes(ctx context.Context) error
	Upsert(ctx context.Context, points []Point) error
	Search(ctx context.Context, vector []float32, filter SearchFilter, limit int) ([]ScoredPoint, error)
	// DeleteByDocument removes all points for one document owned by ownerID.
	// Deleting a document with no indexed points is not an error.
	DeleteByDocument(ctx context.Context, ownerID, documentID string) error
	// HasDocumentPoints probes for at least one indexed point of a document.
	// Used only for post-upsert verification, never for correctness gating.
	HasDocumentPoints(ctx context.Context, documentID string) (bool, error)
}

type vectorStore struct {
	log     *logger.Logger
	cfg     Config
	baseURL string
	http    *http.Client
}

type qdrantEnvelope struct {
	Result json.RawMessage `json:"result"`
	Status json.RawMessage `json:"status"`
	Time   float64         `json:"time"`
}

type searchResultItem struct {
	ID      json.RawMessage `json:"id"`
	Score   float64         `json:"score"`
	Payload Payload         `json:"payload"`
}

func NewStore(log *logger.Logger, cfg Config) (Store, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	return &vectorStore{
		log:     log.With("service", "QdrantStore"),
		cfg:     cfg,
		baseURL: strings.TrimRight(cfg.URL, "/"),
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}, nil
}

func (s *vectorStore) Ping(ctx context.Context) error {
	const op = "ping"

	req, err := http.NewRequestWithContext(ctxutil.Default(ctx), http.MethodGet, s.baseURL+"/readyz", nil)
	if err != nil {
		return opErr(op, OperationErrorTransportFailed, "build ready request failed", err)
	}
	s.setHeaders(req)
	resp, err := s.http.Do(req)
	if err != nil {
		return classifyHTTPCallError(op, "qdrant ready check failed", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &OperationError{
			Code:       OperationErrorQueryFailed,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("qdrant ready check returned status=%d", resp.StatusCode),
		}
	}
	return nil
}

func (s *vectorStore) EnsureCollection(ctx context.Context) (EnsureResult, error) {
	const op = "ensure_collection"

	var info struct {
		Config struct {
			Params struct {
				Vectors struct {
					Size     int    `json:"size"`
					Distance string `json:"distance"`
				} `json:"vectors"`
			} `json:"params"`
		} `json:"config"`
	}
	err := s.doJSON(ctx, op, http.MethodGet, s.collectionPath(""), nil, &info)
	if err == nil {
		size := info.Config.Params.Vectors.Size
		if size != 0 && size != s.cfg.VectorDim {
			return "", &OperationError{
				Code:      OperationErrorValidation,
				Operation: op,
				Message: fmt.Sprintf(
					"collection %q vector size mismatch: expected=%d actual=%d",
					s.cfg.Collection,
					s.cfg.VectorDim,
					size,
				),
			}
		}
		return EnsureAlreadyExists, nil
	}

	var opErrTyped *OperationError
	if !errors.As(err, &opErrTyped) || opErrTyped.StatusCode != http.StatusNotFound {
		return "", err
	}

	createReq := map[string]any{
		"vectors": map[string]any{
			"size":     s.cfg.VectorDim,
			"distance": "Cosine",
		},
	}
	if err := s.doJSON(ctx, op, http.MethodPut, s.collectionPath(""), createReq, nil); err != nil {
		return "", err
	}
	s.log.Info("Created vector collection",
		"collection", s.cfg.Collection,
		"vector_dim", s.cfg.VectorDim,
		"distance", "Cosine",
	)
	return EnsureCreated, nil
}

func (s *vectorStore) EnsurePayloadIndexes(ctx context.Context) error {
	for _, field := range []string{payloadOwnerIDKey, payloadDocumentIDKey} {
		result, err := s.ensurePayloadIndex(ctx, field)
		if err != nil {
			return err
		}
		if result == EnsureCreated {
			s.log.Info("Created payload index", "collection", s.cfg.Collection, "field", field)
		}
	}
	return nil
}

func (s *vectorStore) ensurePayloadIndex(ctx context.Context, field string) (EnsureResult, error) {
	const op = "ensure_payload_index"

	req := map[string]any{
		"field_name":   field,
		"field_schema": "keyword",
	}
	err := s.doJSON(ctx, op, http.MethodPut, s.collectionPath("/index?wait=true"), req, nil)
	if err == nil {
		return EnsureCreated, nil
	}

	// Qdrant answers 409 for an index that already exists; that is success for
	// an idempotent create. No string-matching on provider error text.
	var opErrTyped *OperationError
	if errors.As(err, &opErrTyped) && opErrTyped.StatusCode == http.StatusConflict {
		return EnsureAlreadyExists, nil
	}
	return "", err
}

func (s *vectorStore) Upsert(ctx context.Context, points []Point) error {
	const op = "upsert"
	if len(points) == 0 {
		return nil
	}

	body := make([]map[string]any, 0, len(points))
	for _, p := range points {
		pointID := strings.TrimSpace(p.ID)
		if pointID == "" {
			return opErr(op, OperationErrorValidation, "point id is required", nil)
		}
		if len(p.Vector) != s.cfg.VectorDim {
			return opErr(
				op,
				OperationErrorValidation,
				fmt.Sprintf(
					"point %q dimension mismatch: expected=%d got=%d",
					pointID,
					s.cfg.VectorDim,
					len(p.Vector),
				),
				nil,
			)
		}
		body = append(body, map[string]any{
			"id":      pointID,
			"vector":  p.Vector,
			"payload": p.Payload,
		})
	}

	req := map[string]any{"points": body}
	return s.doJSON(ctx, op, http.MethodPut, s.collectionPath("/points?wait=true"), req, nil)
}

func (s *vectorStore) Search(ctx context.Context, vector []float32, filter SearchFilter, limit int) ([]ScoredPoint, error) {
	const op = "search"
	if len(vector) == 0 {
		return nil, opErr(op, OperationErrorValidation, "query vector required", nil)
	}
	if len(vector) != s.cfg.VectorDim {
		return nil, opErr(
			op,
			OperationErrorValidation,
			fmt.Sprintf("query vector dimension mismatch: expected=%d got=%d", s.cfg.VectorDim, len(vector)),
			nil,
		)
	}
	if strings.TrimSpace(filter.OwnerID) == "" {
		return nil, opErr(op, OperationErrorValidation, "owner filter is required", nil)
	}
	if limit <= 0 {
		limit = 5
	}

	req := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
		"with_vector":  false,
		"filter":       filter.asMap(),
	}
	var rawResults []searchResultItem
	if err := s.doJSON(
		ctx,
		op,
		http.MethodPost,
		s.collectionPath("/points/search"),
		req,
		&rawResults,
	); err != nil {
		return nil, err
	}

	// Native similarity order from the index; no re-ranking here.
	out := make([]ScoredPoint, 0, len(rawResults))
	for _, item := range rawResults {
		out = append(out, ScoredPoint{
			Text:       item.Payload.Text,
			DocumentID: item.Payload.DocumentID,
			ChunkIndex: item.Payload.ChunkIndex,
			Score:      item.Score,
		})
	}
	return out, nil
}

func (s *vectorStore) DeleteByDocument(ctx context.Context, ownerID, documentID string) error {
	const op = "delete"
	if strings.TrimSpace(ownerID) == "" || strings.TrimSpace(documentID) == "" {
		return opErr(op, OperationErrorValidation, "owner and document ids are required", nil)
	}

	req := map[string]any{"filter": documentFilter(ownerID, documentID)}
	return s.doJSON(
		ctx,
		op,
		http.MethodPost,
		s.collectionPath("/points/delete?wait=true"),
		req,
		nil,
	)
}

func (s *vectorStore) HasDocumentPoints(ctx context.Context, documentID string) (bool, error) {
	const op = "scroll_probe"
	if strings.TrimSpace(documentID) == "" {
		return false, opErr(op, OperationErrorValidation, "document id is required", nil)
	}

	req := map[string]any{
		"filter":       documentOnlyFilter(documentID),
		"limit":        1,
		"with_payload": false,
		"with_vector":  false,
	}
	var result struct {
		Points []json.RawMessage `json:"points"`
	}
	if err := s.doJSON(
		ctx,
		op,
		http.MethodPost,
		s.collectionPath("/points/scroll"),
		req,
		&result,
	); err != nil {
		return false, err
	}
	return len(result.Points) > 0, nil
}

func (s *vectorStore) doJSON(ctx context.Context, op, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(in); err != nil {
			return opErr(op, OperationErrorEncodeFailed, "encode request failed", err)
		}
		body = &buf
	}

	req, err := http.NewRequestWithContext(ctxutil.Default(ctx), method, s.baseURL+path, body)
	if err != nil {
		return opErr(op, OperationErrorTransportFailed, "build request failed", err)
	}
	s.setHeaders(req)

	resp, err := s.http.Do(req)
	if err != nil {
		return classifyHTTPCallError(op, "qdrant request failed", err)
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 10*maxErrorBodyBytes))
	if readErr != nil {
		return opErr(op, OperationErrorDecodeFailed, "read response failed", readErr)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		code := OperationErrorQueryFailed
		if resp.StatusCode == http.StatusNotFound {
			code = OperationErrorNotFound
		}
		return &OperationError{
			Code:       code,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("qdrant http status=%d body=%q", resp.StatusCode, truncateBody(raw)),
		}
	}

	var envelope qdrantEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return opErr(op, OperationErrorDecodeFailed, "decode qdrant envelope failed", err)
	}
	if statusErr := parseEnvelopeStatus(envelope.Status); statusErr != "" {
		return &OperationError{
			Code:       OperationErrorQueryFailed,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    statusErr,
		}
	}

	if out == nil {
		return nil
	}
	if len(envelope.Result) == 0 || string(envelope.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return opErr(op, OperationErrorDecodeFailed, "decode qdrant result failed", err)
	}
	return nil
}

func (s *vectorStore) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.APIKey != "" {
		req.Header.Set("api-key", s.cfg.APIKey)
	}
}

func (s *vectorStore) collectionPath(suffix string) string {
	path := "/collections/" + s.cfg.Collection
	if strings.TrimSpace(suffix) == "" {
		return path
	}
	return path + suffix
}

func classifyHTTPCallError(op, message string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return opErr(op, OperationErrorTimeout, message, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return opErr(op, OperationErrorTimeout, message, err)
	}
	return opErr(op, OperationErrorTransportFailed, message, err)
}

func parseEnvelopeStatus(raw json.RawMessage) string {
	status := strings.TrimSpace(string(raw))
	if status == "" || status == "null" {
		return ""
	}

	var statusString string
	if err := json.Unmarshal(raw, &statusString); err == nil {
		if strings.EqualFold(statusString, "ok") || strings.EqualFold(statusString, "acknowledged") || strings.EqualFold(statusString, "completed") {
			return ""
		}
		return fmt.Sprintf("qdrant status=%q", statusString)
	}

	var statusObject struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &statusObject); err == nil {
		if strings.TrimSpace(statusObject.Error) != "" {
			return strings.TrimSpace(statusObject.Error)
		}
	}

	return fmt.Sprintf("qdrant status=%s", status)
}

func truncateBody(raw []byte) string {
	if len(raw) <= maxErrorBodyBytes {
		return string(raw)
	}
	return string(raw[:maxErrorBodyBytes]) + "..."
}
