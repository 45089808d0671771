package services

import (
  "context"
  "errors"
  "strings"
  "testing"

  "github.com/google/uuid"
  "github.com/deepen-live/deepen-backend/internal/chunker"
  "github.com/deepen-live/deepen-backend/internal/platform/gemini"
)

func vectorOfDim(dim int) []float32 {
  v := make([]float32, dim)
  for i := range v {
    v[i] = 0.1
  }
  return v
}

func newIndexing(t *testing.T, embed *fakeEmbedder, store *fakeVectorStore) IndexingService {
  t.Helper()
  split := chunker.NewWordChunker(50, 10)
  return NewIndexingService(newTestLogger(t), embed, store, split, 3)
}

func TestIndexCaptureHappyPath(t *testing.T) {
  embed := &fakeEmbedder{vector: vectorOfDim(3)}
  store := &fakeVectorStore{hasPoints: true}
  svc := newIndexing(t, embed, store)

  captureID := uuid.New()
  userID := uuid.New()
  text := strings.Repeat("knowledge capture ", 20)

  report, err := svc.IndexCapture(context.Background(), text, captureID, userID, "key")
  if err != nil {
    t.Fatalf("IndexCapture: %v", err)
  }
  if report.Upserted == 0 {
    t.Fatalf("no points upserted")
  }
  if !report.Verified {
    t.Fatalf("verification not recorded")
  }
  for _, call := range embed.calls {
    if call.Task != gemini.TaskDocument {
      t.Fatalf("document task expected, got=%s", call.Task)
    }
  }
  if store.ensured != 1 || store.indexed != 1 {
    t.Fatalf("collection/index ensure calls: ensured=%d indexed=%d", store.ensured, store.indexed)
  }

  points := store.upserted[0]
  if len(points) != report.Upserted {
    t.Fatalf("points: want=%d got=%d", report.Upserted, len(points))
  }
  for i, p := range points {
    if p.Payload.OwnerID != userID.String() {
      t.Fatalf("point %d owner: got=%s", i, p.Payload.OwnerID)
    }
    if p.Payload.DocumentID != captureID.String() {
      t.Fatalf("point %d document: got=%s", i, p.Payload.DocumentID)
    }
    if p.Payload.ChunkIndex != i {
      t.Fatalf("point %d chunk index: got=%d", i, p.Payload.ChunkIndex)
    }
  }
}

func TestIndexCaptureEmptyTextIsNoop(t *testing.T) {
  embed := &fakeEmbedder{vector: vectorOfDim(3)}
  store := &fakeVectorStore{}
  svc := newIndexing(t, embed, store)

  report, err := svc.IndexCapture(context.Background(), "   ", uuid.New(), uuid.New(), "key")
  if err != nil {
    t.Fatalf("IndexCapture: %v", err)
  }
  if report.Upserted != 0 || len(report.Outcomes) != 0 {
    t.Fatalf("want empty report, got=%+v", report)
  }
  if len(store.upserted) != 0 {
    t.Fatalf("nothing should be upserted for empty text")
  }
}

func TestIndexCaptureSkipsFailedChunks(t *testing.T) {
  // Deterministic two-chunk input.
  chunkA := strings.Repeat("a", 30)
  chunkB := strings.Repeat("b", 30)
  text := chunkA + " " + chunkB

  embed := &fakeEmbedder{
    vector: vectorOfDim(3),
    errByText: map[string]error{},
  }
  store := &fakeVectorStore{hasPoints: true}
  svc := newIndexing(t, embed, store)

  // Force the first chunk to fail; the second still indexes.
  split := chunker.NewWordChunker(50, 10)
  chunks := split.Split(text)
  if len(chunks) < 2 {
    t.Fatalf("test input did not split: %v", chunks)
  }
  embed.errByText[chunks[0]] = errors.New("embed boom")

  report, err := svc.IndexCapture(context.Background(), text, uuid.New(), uuid.New(), "key")
  if err != nil {
    t.Fatalf("IndexCapture: %v", err)
  }

  var skipped, embedded int
  for _, outcome := range report.Outcomes {
    switch outcome.Status {
    case ChunkSkipped:
      skipped++
      if outcome.Reason == "" {
        t.Fatalf("skipped outcome missing reason")
      }
    case ChunkEmbedded:
      embedded++
    }
  }
  if skipped != 1 || embedded != len(chunks)-1 {
    t.Fatalf("outcomes: skipped=%d embedded=%d chunks=%d", skipped, embedded, len(chunks))
  }
  if report.Upserted != len(chunks)-1 {
    t.Fatalf("upserted: want=%d got=%d", len(chunks)-1, report.Upserted)
  }
}

func TestIndexCaptureSkipsDimensionMismatch(t *testing.T) {
  embed := &fakeEmbedder{vector: vectorOfDim(5)}
  store := &fakeVectorStore{}
  svc := newIndexing(t, embed, store)

  report, err := svc.IndexCapture(context.Background(), "short note", uuid.New(), uuid.New(), "key")
  if err != nil {
    t.Fatalf("IndexCapture: %v", err)
  }
  if len(report.Outcomes) != 1 || report.Outcomes[0].Status != ChunkSkipped {
    t.Fatalf("outcomes: %+v", report.Outcomes)
  }
  if len(store.upserted) != 0 {
    t.Fatalf("mismatched vectors must never be upserted")
  }
}

func TestIndexCaptureAllChunksFailQuietAbort(t *testing.T) {
  embed := &fakeEmbedder{err: errors.New("provider down")}
  store := &fakeVectorStore{}
  svc := newIndexing(t, embed, store)

  report, err := svc.IndexCapture(context.Background(), "some capture text", uuid.New(), uuid.New(), "key")
  if err != nil {
    t.Fatalf("zero valid embeddings must not be an error, got: %v", err)
  }
  if report.Upserted != 0 {
    t.Fatalf("upserted: want=0 got=%d", report.Upserted)
  }
  if len(store.upserted) != 0 || store.ensured != 0 {
    t.Fatalf("index must not be touched when nothing embedded")
  }
}

func TestIndexCaptureUpsertFailureIsError(t *testing.T) {
  embed := &fakeEmbedder{vector: vectorOfDim(3)}
  store := &fakeVectorStore{upsertErr: errors.New("write refused")}
  svc := newIndexing(t, embed, store)

  if _, err := svc.IndexCapture(context.Background(), "some capture text", uuid.New(), uuid.New(), "key"); err == nil {
    t.Fatalf("expected upsert failure to surface")
  }
}

func TestIndexCaptureVerificationFailureIsNonFatal(t *testing.T) {
  embed := &fakeEmbedder{vector: vectorOfDim(3)}
  store := &fakeVectorStore{hasErr: errors.New("scroll down")}
  svc := newIndexing(t, embed, store)

  report, err := svc.IndexCapture(context.Background(), "some capture text", uuid.New(), uuid.New(), "key")
  if err != nil {
    t.Fatalf("verification failure must be non-fatal: %v", err)
  }
  if report.Verified {
    t.Fatalf("verification should not be recorded on probe failure")
  }
  if report.Upserted == 0 {
    t.Fatalf("upsert should have happened")
  }
}

func TestDeleteCaptureIdempotent(t *testing.T) {
  embed := &fakeEmbedder{}
  store := &fakeVectorStore{}
  svc := newIndexing(t, embed, store)

  captureID := uuid.New()
  userID := uuid.New()
  // Never indexed; delete still succeeds.
  if err := svc.DeleteCapture(context.Background(), captureID, userID); err != nil {
    t.Fatalf("DeleteCapture: %v", err)
  }
  if len(store.deleted) != 1 || store.deleted[0] != captureID.String() {
    t.Fatalf("deleted: %v", store.deleted)
  }
}

func TestPointIDDeterministic(t *testing.T) {
  captureID := uuid.New()
  if pointID(captureID, 0) != pointID(captureID, 0) {
    t.Fatalf("point id not deterministic")
  }
  if pointID(captureID, 0) == pointID(captureID, 1) {
    t.Fatalf("point ids collide across chunk indexes")
  }
}
