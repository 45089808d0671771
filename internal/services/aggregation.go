package services

import (
  "context"
  "fmt"
  "github.com/google/uuid"
  "github.com/deepen-live/deepen-backend/internal/platform/logger"
  "github.com/deepen-live/deepen-backend/internal/repos"
)

const DefaultAggregationLimit = 20

// ContextQuery is one aggregation request: a query string plus the selector
// describing which slice of the user's knowledge to search.
type ContextQuery struct {
  UserID      uuid.UUID
  APIKey      string
  Query       string
  ContextType ContextType
  Items       []ContextItem
  Filters     ScopeFilters
  Limit       int
}

// AggregatedContext is the assembled answer context: deduped sources plus the
// raw retrieved chunks backing them.
type AggregatedContext struct {
  Sources         []SourceEntry    `json:"sources"`
  RetrievedChunks []RetrievedChunk `json:"retrieved_chunks"`
  TotalSources    int              `json:"total_sources"`
}

type AggregationService interface {
  AggregateContext(ctx context.Context, query ContextQuery) (AggregatedContext, error)
}

type aggregationService struct {
  log         *logger.Logger
  scope       ContextScopeService
  search      RAGSearchService
  captureRepo repos.CaptureRepo
}

func NewAggregationService(log *logger.Logger, scope ContextScopeService, search RAGSearchService, captureRepo repos.CaptureRepo) AggregationService {
  serviceLog := log.With("service", "AggregationService")
  return &aggregationService{
    log:         serviceLog,
    scope:       scope,
    search:      search,
    captureRepo: captureRepo,
  }
}

func (ag *aggregationService) AggregateContext(ctx context.Context, query ContextQuery) (AggregatedContext, error) {
  empty := AggregatedContext{
    Sources:         []SourceEntry{},
    RetrievedChunks: []RetrievedChunk{},
  }

  // A selector the user cannot resolve is a real error; it aborts the whole
  // aggregation rather than degrading.
  scopeIDs, err := ag.scope.Resolve(ctx, query.UserID, query.ContextType, query.Items, query.Filters)
  if err != nil {
    return empty, fmt.Errorf("Failed to resolve context scope: %w", err)
  }

  // Every selector, including "all", searches over its resolved id set so
  // the scope caps hold. A user with nothing in scope gets an empty context,
  // never an unscoped search.
  if len(scopeIDs) == 0 {
    return empty, nil
  }

  limit := query.Limit
  if limit <= 0 {
    limit = DefaultAggregationLimit
  }

  chunks, err := ag.search.Search(ctx, query.Query, query.UserID, query.APIKey, scopeIDs, true, limit)
  if err != nil {
    // Retrieval failure degrades to an empty context so the conversation can
    // still proceed without grounding.
    ag.log.Warn("Vector search failed during aggregation; returning empty context",
      "user_id", query.UserID.String(),
      "context_type", string(query.ContextType),
      "error", err.Error(),
    )
    return empty, nil
  }

  sources := DedupeSources(chunks)
  if err := ag.fillTitles(ctx, sources); err != nil {
    ag.log.Warn("Failed to load source titles", "error", err.Error())
  }

  return AggregatedContext{
    Sources:         sources,
    RetrievedChunks: chunks,
    TotalSources:    len(sources),
  }, nil
}

func (ag *aggregationService) fillTitles(ctx context.Context, sources []SourceEntry) error {
  if len(sources) == 0 {
    return nil
  }
  ids := make([]uuid.UUID, 0, len(sources))
  for _, s := range sources {
    ids = append(ids, s.ID)
  }
  metas, err := ag.captureRepo.GetMetaByIDs(ctx, nil, ids)
  if err != nil {
    return err
  }
  titles := make(map[uuid.UUID]string, len(metas))
  for _, meta := range metas {
    titles[meta.ID] = meta.Title
  }
  for i := range sources {
    if title, ok := titles[sources[i].ID]; ok {
      sources[i].Title = title
    }
  }
  return nil
}
