package services

import (
  "context"
  "fmt"
  "time"
  "github.com/google/uuid"
  "github.com/deepen-live/deepen-backend/internal/chunker"
  "github.com/deepen-live/deepen-backend/internal/platform/gemini"
  "github.com/deepen-live/deepen-backend/internal/platform/logger"
  "github.com/deepen-live/deepen-backend/internal/platform/qdrant"
  "github.com/deepen-live/deepen-backend/internal/platform/retry"
)

// ChunkStatus is the typed per-chunk outcome of an indexing run.
type ChunkStatus string

const (
  ChunkEmbedded ChunkStatus = "embedded"
  ChunkSkipped  ChunkStatus = "skipped"
)

type ChunkOutcome struct {
  Index  int
  Status ChunkStatus
  Reason string
}

// IndexReport summarizes one IndexCapture run.
type IndexReport struct {
  Outcomes []ChunkOutcome
  Upserted int
  Verified bool
}

// IndexingService turns capture text into indexed vectors and removes them
// again on delete.
type IndexingService interface {
  IndexCapture(ctx context.Context, text string, captureID, userID uuid.UUID, apiKey string) (IndexReport, error)
  // DeleteCapture is idempotent: removing a capture that was never indexed
  // succeeds.
  DeleteCapture(ctx context.Context, captureID, userID uuid.UUID) error
}

type indexingService struct {
  log    *logger.Logger
  embed  gemini.Client
  store  qdrant.Store
  split  *chunker.WordChunker
  dim    int
}

func NewIndexingService(log *logger.Logger, embed gemini.Client, store qdrant.Store, split *chunker.WordChunker, vectorDim int) IndexingService {
  serviceLog := log.With("service", "IndexingService")
  if vectorDim <= 0 {
    vectorDim = qdrant.DefaultVectorDim
  }
  return &indexingService{
    log:   serviceLog,
    embed: embed,
    store: store,
    split: split,
    dim:   vectorDim,
  }
}

func (is *indexingService) IndexCapture(ctx context.Context, text string, captureID, userID uuid.UUID, apiKey string) (IndexReport, error) {
  report := IndexReport{}

  chunks := is.split.Split(text)
  if len(chunks) == 0 {
    return report, nil
  }

  createdAt := time.Now().UTC().Format(time.RFC3339)
  points := make([]qdrant.Point, 0, len(chunks))

  // Chunks embed one at a time; a bad chunk is skipped and logged, it never
  // takes down the rest of the document.
  for i, chunk := range chunks {
    vector, err := is.embed.Embed(ctx, apiKey, chunk, gemini.TaskDocument)
    if err != nil {
      if ctx.Err() != nil {
        return report, ctx.Err()
      }
      is.log.Warn("Skipping chunk: embedding failed",
        "capture_id", captureID.String(),
        "chunk_index", i,
        "error", err.Error(),
      )
      report.Outcomes = append(report.Outcomes, ChunkOutcome{
        Index:  i,
        Status: ChunkSkipped,
        Reason: fmt.Sprintf("embed failed: %v", err),
      })
      continue
    }
    if len(vector) != is.dim {
      is.log.Warn("Skipping chunk: unexpected embedding dimension",
        "capture_id", captureID.String(),
        "chunk_index", i,
        "expected", is.dim,
        "got", len(vector),
      )
      report.Outcomes = append(report.Outcomes, ChunkOutcome{
        Index:  i,
        Status: ChunkSkipped,
        Reason: fmt.Sprintf("dimension mismatch: expected=%d got=%d", is.dim, len(vector)),
      })
      continue
    }

    report.Outcomes = append(report.Outcomes, ChunkOutcome{Index: i, Status: ChunkEmbedded})
    points = append(points, qdrant.Point{
      ID:     pointID(captureID, i),
      Vector: vector,
      Payload: qdrant.Payload{
        Text:       chunk,
        OwnerID:    userID.String(),
        DocumentID: captureID.String(),
        ChunkIndex: i,
        CreatedAt:  createdAt,
      },
    })
  }

  // Nothing embedded is a quiet no-op, not an error: the document simply
  // stays unindexed.
  if len(points) == 0 {
    is.log.Warn("No valid embeddings produced; skipping upsert",
      "capture_id", captureID.String(),
      "chunks", len(chunks),
    )
    return report, nil
  }

  if _, err := is.store.EnsureCollection(ctx); err != nil {
    return report, fmt.Errorf("Failed to ensure vector collection: %w", err)
  }
  if err := is.store.EnsurePayloadIndexes(ctx); err != nil {
    return report, fmt.Errorf("Failed to ensure payload indexes: %w", err)
  }

  if err := retry.Do(ctx, is.log, "vector_upsert", retry.UpsertPolicy(), func(ctx context.Context) error {
    return is.store.Upsert(ctx, points)
  }); err != nil {
    return report, fmt.Errorf("Failed to upsert vectors: %w", err)
  }
  report.Upserted = len(points)

  // Verification is telemetry only; a failed probe never fails the run.
  found, vErr := is.store.HasDocumentPoints(ctx, captureID.String())
  if vErr != nil {
    is.log.Warn("Post-upsert verification probe failed",
      "capture_id", captureID.String(),
      "error", vErr.Error(),
    )
  } else if !found {
    is.log.Warn("Post-upsert verification found no points",
      "capture_id", captureID.String(),
      "upserted", len(points),
    )
  } else {
    report.Verified = true
  }

  is.log.Info("Indexed capture",
    "capture_id", captureID.String(),
    "owner_id", userID.String(),
    "chunks", len(chunks),
    "upserted", len(points),
    "skipped", len(chunks)-len(points),
  )
  return report, nil
}

func (is *indexingService) DeleteCapture(ctx context.Context, captureID, userID uuid.UUID) error {
  if err := is.store.DeleteByDocument(ctx, userID.String(), captureID.String()); err != nil {
    return fmt.Errorf("Failed to delete capture vectors: %w", err)
  }
  is.log.Info("Deleted capture vectors",
    "capture_id", captureID.String(),
    "owner_id", userID.String(),
  )
  return nil
}

func pointID(captureID uuid.UUID, chunkIndex int) string {
  // Deterministic per chunk so re-indexing overwrites instead of duplicating.
  return uuid.NewSHA1(captureID, []byte(fmt.Sprintf("chunk:%d", chunkIndex))).String()
}
