package services

import (
  "context"
  "fmt"
  "github.com/google/uuid"
  "github.com/deepen-live/deepen-backend/internal/platform/gemini"
  "github.com/deepen-live/deepen-backend/internal/platform/logger"
  "github.com/deepen-live/deepen-backend/internal/platform/qdrant"
)

const DefaultSearchLimit = 5

// RetrievedChunk is one search hit, score and order exactly as the index
// returned them.
type RetrievedChunk struct {
  Text       string    `json:"text"`
  SourceID   uuid.UUID `json:"source_id"`
  SourceType string    `json:"source_type"`
  Score      float64   `json:"score"`
  ChunkIndex int       `json:"chunk_index"`
}

// RAGSearchService runs filtered semantic search over a user's indexed
// content.
type RAGSearchService interface {
  // Search embeds the query and retrieves the nearest chunks. When scoped is
  // false the whole of the user's content is searched; scoped with an empty
  // docScope short-circuits to zero results without touching the index.
  Search(ctx context.Context, query string, userID uuid.UUID, apiKey string, docScope []uuid.UUID, scoped bool, limit int) ([]RetrievedChunk, error)
}

type ragSearchService struct {
  log    *logger.Logger
  embed  gemini.Client
  store  qdrant.Store
}

func NewRAGSearchService(log *logger.Logger, embed gemini.Client, store qdrant.Store) RAGSearchService {
  serviceLog := log.With("service", "RAGSearchService")
  return &ragSearchService{
    log:   serviceLog,
    embed: embed,
    store: store,
  }
}

func (rs *ragSearchService) Search(ctx context.Context, query string, userID uuid.UUID, apiKey string, docScope []uuid.UUID, scoped bool, limit int) ([]RetrievedChunk, error) {
  if scoped && len(docScope) == 0 {
    return []RetrievedChunk{}, nil
  }
  if limit <= 0 {
    limit = DefaultSearchLimit
  }

  // Queries embed asymmetrically from documents; reusing the document task
  // type here would silently degrade retrieval.
  vector, err := rs.embed.Embed(ctx, apiKey, query, gemini.TaskQuery)
  if err != nil {
    return nil, fmt.Errorf("Failed to embed search query: %w", err)
  }

  filter := qdrant.SearchFilter{OwnerID: userID.String()}
  if scoped {
    filter.DocumentIDs = make([]string, 0, len(docScope))
    for _, id := range docScope {
      filter.DocumentIDs = append(filter.DocumentIDs, id.String())
    }
  }

  hits, err := rs.store.Search(ctx, vector, filter, limit)
  if err != nil {
    return nil, fmt.Errorf("Failed to search vector index: %w", err)
  }

  chunks := make([]RetrievedChunk, 0, len(hits))
  for _, hit := range hits {
    sourceID, pErr := uuid.Parse(hit.DocumentID)
    if pErr != nil {
      rs.log.Warn("Dropping hit with malformed document id",
        "document_id", hit.DocumentID,
        "error", pErr.Error(),
      )
      continue
    }
    chunks = append(chunks, RetrievedChunk{
      Text:       hit.Text,
      SourceID:   sourceID,
      SourceType: "capture",
      Score:      hit.Score,
      ChunkIndex: hit.ChunkIndex,
    })
  }
  return chunks, nil
}
