package app

import (
	"context"
	"errors"

	"github.com/deepen-live/deepen-backend/internal/platform/qdrant"
)

// ErrVectorStoreDisabled is returned by every operation when no vector index
// is configured. Search paths degrade to empty results; indexing jobs fail
// and are surfaced on the capture's processing status.
var ErrVectorStoreDisabled = errors.New("vector store disabled: QDRANT_URL not set")

type disabledVectorStore struct{}

func (disabledVectorStore) Ping(ctx context.Context) error { return ErrVectorStoreDisabled }

func (disabledVectorStore) EnsureCollection(ctx context.Context) (qdrant.EnsureResult, error) {
	return "", ErrVectorStoreDisabled
}

func (disabledVectorStore) EnsurePayloadIndexes(ctx context.Context) error {
	return ErrVectorStoreDisabled
}

func (disabledVectorStore) Upsert(ctx context.Context, points []qdrant.Point) error {
	return ErrVectorStoreDisabled
}

func (disabledVectorStore) Search(ctx context.Context, vector []float32, filter qdrant.SearchFilter, limit int) ([]qdrant.ScoredPoint, error) {
	return nil, ErrVectorStoreDisabled
}

func (disabledVectorStore) DeleteByDocument(ctx context.Context, ownerID, documentID string) error {
	return ErrVectorStoreDisabled
}

func (disabledVectorStore) HasDocumentPoints(ctx context.Context, documentID string) (bool, error) {
	return false, ErrVectorStoreDisabled
}
