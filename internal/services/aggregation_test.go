package services

import (
  "context"
  "errors"
  "testing"

  "github.com/google/uuid"
  "github.com/deepen-live/deepen-backend/internal/platform/qdrant"
  "github.com/deepen-live/deepen-backend/internal/types"
)

func newAggregation(t *testing.T, captureRepo *fakeCaptureRepo, collectionRepo *fakeCollectionRepo, embed *fakeEmbedder, store *fakeVectorStore) AggregationService {
  t.Helper()
  log := newTestLogger(t)
  scope := NewContextScopeService(log, captureRepo, collectionRepo)
  search := NewRAGSearchService(log, embed, store)
  return NewAggregationService(log, scope, search, captureRepo)
}

func TestAggregateEmptyScopeShortCircuits(t *testing.T) {
  store := &fakeVectorStore{}
  embed := &fakeEmbedder{vector: []float32{1}}
  svc := newAggregation(t, newFakeCaptureRepo(), newFakeCollectionRepo(), embed, store)

  result, err := svc.AggregateContext(context.Background(), ContextQuery{
    UserID:      uuid.New(),
    APIKey:      "key",
    Query:       "q",
    ContextType: ContextAll,
  })
  if err != nil {
    t.Fatalf("AggregateContext: %v", err)
  }
  if len(result.Sources) != 0 || len(result.RetrievedChunks) != 0 || result.TotalSources != 0 {
    t.Fatalf("want empty result, got=%+v", result)
  }
  if len(store.searchCalls) != 0 {
    t.Fatalf("index touched despite empty scope")
  }
  if len(embed.calls) != 0 {
    t.Fatalf("embedder called despite empty scope")
  }
}

func TestAggregateFillsTitlesAndCounts(t *testing.T) {
  owner := uuid.New()
  captureRepo := newFakeCaptureRepo()
  capture := newCapture(owner, func(c *types.Capture) { c.Title = "Saved article" })
  captureRepo.add(capture)

  store := &fakeVectorStore{hits: []qdrant.ScoredPoint{
    {Text: "chunk a", DocumentID: capture.ID.String(), ChunkIndex: 0, Score: 0.7},
    {Text: "chunk b", DocumentID: capture.ID.String(), ChunkIndex: 1, Score: 0.9},
  }}
  embed := &fakeEmbedder{vector: []float32{1}}
  svc := newAggregation(t, captureRepo, newFakeCollectionRepo(), embed, store)

  result, err := svc.AggregateContext(context.Background(), ContextQuery{
    UserID:      owner,
    APIKey:      "key",
    Query:       "q",
    ContextType: ContextAll,
  })
  if err != nil {
    t.Fatalf("AggregateContext: %v", err)
  }
  if result.TotalSources != 1 {
    t.Fatalf("total sources: want=1 got=%d", result.TotalSources)
  }
  if result.Sources[0].Title != "Saved article" {
    t.Fatalf("title: got=%q", result.Sources[0].Title)
  }
  if result.Sources[0].RelevanceScore != 0.9 {
    t.Fatalf("relevance: want=0.9 got=%v", result.Sources[0].RelevanceScore)
  }
  if len(result.RetrievedChunks) != 2 {
    t.Fatalf("chunks: want=2 got=%d", len(result.RetrievedChunks))
  }
}

func TestAggregateUsesDefaultLimit(t *testing.T) {
  owner := uuid.New()
  captureRepo := newFakeCaptureRepo()
  captureRepo.add(newCapture(owner, nil))
  store := &fakeVectorStore{}
  svc := newAggregation(t, captureRepo, newFakeCollectionRepo(), &fakeEmbedder{vector: []float32{1}}, store)

  if _, err := svc.AggregateContext(context.Background(), ContextQuery{
    UserID: owner, APIKey: "key", Query: "q", ContextType: ContextAll,
  }); err != nil {
    t.Fatalf("AggregateContext: %v", err)
  }
  if store.searchCalls[0].Limit != DefaultAggregationLimit {
    t.Fatalf("limit: want=%d got=%d", DefaultAggregationLimit, store.searchCalls[0].Limit)
  }
}

func TestAggregateSearchFailureDegradesToEmpty(t *testing.T) {
  owner := uuid.New()
  captureRepo := newFakeCaptureRepo()
  captureRepo.add(newCapture(owner, nil))
  store := &fakeVectorStore{searchErr: errors.New("index down")}
  svc := newAggregation(t, captureRepo, newFakeCollectionRepo(), &fakeEmbedder{vector: []float32{1}}, store)

  result, err := svc.AggregateContext(context.Background(), ContextQuery{
    UserID: owner, APIKey: "key", Query: "q", ContextType: ContextAll,
  })
  if err != nil {
    t.Fatalf("search failure should degrade, got error: %v", err)
  }
  if len(result.Sources) != 0 || len(result.RetrievedChunks) != 0 {
    t.Fatalf("want empty degraded result, got=%+v", result)
  }
}

func TestAggregateScopeFailureAborts(t *testing.T) {
  captureRepo := newFakeCaptureRepo()
  captureRepo.err = errors.New("db down")
  svc := newAggregation(t, captureRepo, newFakeCollectionRepo(), &fakeEmbedder{vector: []float32{1}}, &fakeVectorStore{})

  if _, err := svc.AggregateContext(context.Background(), ContextQuery{
    UserID: uuid.New(), APIKey: "key", Query: "q", ContextType: ContextAll,
  }); err == nil {
    t.Fatalf("expected scope-resolution failure to abort aggregation")
  }
}

func TestAggregatePassesResolvedScopeToSearch(t *testing.T) {
  owner := uuid.New()
  captureRepo := newFakeCaptureRepo()
  capture := newCapture(owner, nil)
  captureRepo.add(capture)
  store := &fakeVectorStore{}
  svc := newAggregation(t, captureRepo, newFakeCollectionRepo(), &fakeEmbedder{vector: []float32{1}}, store)

  if _, err := svc.AggregateContext(context.Background(), ContextQuery{
    UserID:      owner,
    APIKey:      "key",
    Query:       "q",
    ContextType: ContextSpecific,
    Items:       []ContextItem{{Type: ContextItemCapture, ID: capture.ID}},
  }); err != nil {
    t.Fatalf("AggregateContext: %v", err)
  }
  filter := store.searchCalls[0].Filter
  if len(filter.DocumentIDs) != 1 || filter.DocumentIDs[0] != capture.ID.String() {
    t.Fatalf("resolved scope not forwarded: %v", filter.DocumentIDs)
  }
  if filter.OwnerID != owner.String() {
    t.Fatalf("owner filter missing: %v", filter.OwnerID)
  }
}
