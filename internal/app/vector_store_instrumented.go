package app

import (
	"context"
	"time"

	"github.com/deepen-live/deepen-backend/internal/observability"
	"github.com/deepen-live/deepen-backend/internal/platform/qdrant"
)

type instrumentedVectorStore struct {
	inner   qdrant.Store
	metrics *observability.Metrics
}

// instrumentVectorStore records per-operation counts and latency around the
// store. Pass-through when metrics are disabled.
func instrumentVectorStore(inner qdrant.Store, metrics *observability.Metrics) qdrant.Store {
	if inner == nil || metrics == nil {
		return inner
	}
	return &instrumentedVectorStore{inner: inner, metrics: metrics}
}

func (s *instrumentedVectorStore) Ping(ctx context.Context) error {
	start := time.Now()
	err := s.inner.Ping(ctx)
	s.observe("ping", err, time.Since(start))
	return err
}

func (s *instrumentedVectorStore) EnsureCollection(ctx context.Context) (qdrant.EnsureResult, error) {
	start := time.Now()
	out, err := s.inner.EnsureCollection(ctx)
	s.observe("ensure_collection", err, time.Since(start))
	return out, err
}

func (s *instrumentedVectorStore) EnsurePayloadIndexes(ctx context.Context) error {
	start := time.Now()
	err := s.inner.EnsurePayloadIndexes(ctx)
	s.observe("ensure_payload_indexes", err, time.Since(start))
	return err
}

func (s *instrumentedVectorStore) Upsert(ctx context.Context, points []qdrant.Point) error {
	start := time.Now()
	err := s.inner.Upsert(ctx, points)
	s.observe("upsert", err, time.Since(start))
	if err == nil {
		s.metrics.AddVectorPoints("upsert", len(points))
	}
	return err
}

func (s *instrumentedVectorStore) Search(ctx context.Context, vector []float32, filter qdrant.SearchFilter, limit int) ([]qdrant.ScoredPoint, error) {
	start := time.Now()
	out, err := s.inner.Search(ctx, vector, filter, limit)
	s.observe("search", err, time.Since(start))
	return out, err
}

func (s *instrumentedVectorStore) DeleteByDocument(ctx context.Context, ownerID, documentID string) error {
	start := time.Now()
	err := s.inner.DeleteByDocument(ctx, ownerID, documentID)
	s.observe("delete_by_document", err, time.Since(start))
	return err
}

func (s *instrumentedVectorStore) HasDocumentPoints(ctx context.Context, documentID string) (bool, error) {
	start := time.Now()
	out, err := s.inner.HasDocumentPoints(ctx, documentID)
	s.observe("has_document_points", err, time.Since(start))
	return out, err
}

func (s *instrumentedVectorStore) observe(operation string, err error, dur time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
	}
	s.metrics.ObserveVectorOp(operation, status, dur)
}
