package services

import (
  "context"
  "fmt"
  "time"
  "github.com/google/uuid"
  "golang.org/x/sync/errgroup"
  "github.com/deepen-live/deepen-backend/internal/platform/logger"
  "github.com/deepen-live/deepen-backend/internal/repos"
)

// ContextType selects which slice of a user's knowledge a query runs over.
type ContextType string

const (
  ContextAll         ContextType = "all"
  ContextCollection  ContextType = "collection"
  ContextBookmarks   ContextType = "bookmarks"
  ContextSpecific    ContextType = "specific"
  ContextMixed       ContextType = "mixed"
)

const (
  // MaxAllScope bounds the "all content" selector.
  MaxAllScope = 1000
  // MaxBookmarkScope bounds the bookmark selector.
  MaxBookmarkScope = 500
)

// ContextItem is one element of a selector's item list: either a collection
// reference or a single capture reference.
type ContextItem struct {
  Type string    `json:"type"`
  ID   uuid.UUID `json:"id"`
}

const (
  ContextItemCollection = "collection"
  ContextItemCapture    = "capture"
)

// ScopeFilters narrow the "all" and "bookmarks" selectors.
type ScopeFilters struct {
  ContentTypes  []string
  CreatedAfter  *time.Time
  CreatedBefore *time.Time
}

// ContextScopeService resolves a context selector into the concrete capture
// ids a search may touch. Every returned id is owned by userID and active;
// foreign or deleted ids are silently dropped, never reported.
type ContextScopeService interface {
  Resolve(ctx context.Context, userID uuid.UUID, contextType ContextType, items []ContextItem, filters ScopeFilters) ([]uuid.UUID, error)
}

type contextScopeService struct {
  log            *logger.Logger
  captureRepo    repos.CaptureRepo
  collectionRepo repos.CollectionRepo
}

func NewContextScopeService(log *logger.Logger, captureRepo repos.CaptureRepo, collectionRepo repos.CollectionRepo) ContextScopeService {
  serviceLog := log.With("service", "ContextScopeService")
  return &contextScopeService{
    log:            serviceLog,
    captureRepo:    captureRepo,
    collectionRepo: collectionRepo,
  }
}

func (cs *contextScopeService) Resolve(ctx context.Context, userID uuid.UUID, contextType ContextType, items []ContextItem, filters ScopeFilters) ([]uuid.UUID, error) {
  switch contextType {
  case ContextAll:
    return cs.resolveAll(ctx, userID, filters)
  case ContextCollection:
    return cs.resolveCollections(ctx, userID, items)
  case ContextBookmarks:
    return cs.resolveBookmarks(ctx, userID, filters)
  case ContextSpecific:
    return cs.resolveSpecific(ctx, userID, items)
  case ContextMixed:
    return cs.resolveMixed(ctx, userID, items)
  default:
    return nil, fmt.Errorf("unknown context type %q", contextType)
  }
}

func (cs *contextScopeService) resolveAll(ctx context.Context, userID uuid.UUID, filters ScopeFilters) ([]uuid.UUID, error) {
  filter := repos.CaptureFilter{
    CreatedAfter:  filters.CreatedAfter,
    CreatedBefore: filters.CreatedBefore,
    Limit:         MaxAllScope,
  }

  // The content-type allow list fans out into one query per type; each query
  // is already owner-scoped so the union stays inside the cap.
  if len(filters.ContentTypes) == 0 {
    return cs.captureRepo.GetOwnedIDs(ctx, nil, userID, filter)
  }

  var all []uuid.UUID
  seen := make(map[uuid.UUID]bool)
  for _, contentType := range filters.ContentTypes {
    filter.ContentType = contentType
    ids, err := cs.captureRepo.GetOwnedIDs(ctx, nil, userID, filter)
    if err != nil {
      return nil, fmt.Errorf("Failed to resolve all-content scope: %w", err)
    }
    for _, id := range ids {
      if !seen[id] {
        all = append(all, id)
        seen[id] = true
      }
    }
  }
  if len(all) > MaxAllScope {
    all = all[:MaxAllScope]
  }
  return all, nil
}

func (cs *contextScopeService) resolveBookmarks(ctx context.Context, userID uuid.UUID, filters ScopeFilters) ([]uuid.UUID, error) {
  bookmarked := true
  filter := repos.CaptureFilter{
    Bookmarked:    &bookmarked,
    CreatedAfter:  filters.CreatedAfter,
    CreatedBefore: filters.CreatedBefore,
    Limit:         MaxBookmarkScope,
  }
  return cs.captureRepo.GetOwnedIDs(ctx, nil, userID, filter)
}

func (cs *contextScopeService) resolveCollections(ctx context.Context, userID uuid.UUID, items []ContextItem) ([]uuid.UUID, error) {
  collectionIDs := make([]uuid.UUID, 0, len(items))
  for _, item := range items {
    if item.Type == ContextItemCollection {
      collectionIDs = append(collectionIDs, item.ID)
    }
  }
  if len(collectionIDs) == 0 {
    return nil, nil
  }

  // Ownership is re-validated here: only collections the user owns
  // contribute, regardless of what ids the caller sent.
  collections, err := cs.collectionRepo.GetOwnedByIDs(ctx, nil, userID, collectionIDs)
  if err != nil {
    return nil, fmt.Errorf("Failed to resolve collection scope: %w", err)
  }

  var member []uuid.UUID
  seen := make(map[uuid.UUID]bool)
  for _, collection := range collections {
    ids, dErr := repos.DecodeCaptureIDs(collection.CaptureIDs)
    if dErr != nil {
      return nil, fmt.Errorf("Failed to decode collection membership: %w", dErr)
    }
    for _, id := range ids {
      if !seen[id] {
        member = append(member, id)
        seen[id] = true
      }
    }
  }
  if len(member) == 0 {
    return nil, nil
  }

  // Membership lists can reference captures deleted since they were added;
  // re-fetch against owner+active to drop them.
  return cs.ownedActiveSubset(ctx, userID, member)
}

func (cs *contextScopeService) resolveSpecific(ctx context.Context, userID uuid.UUID, items []ContextItem) ([]uuid.UUID, error) {
  captureIDs := make([]uuid.UUID, 0, len(items))
  for _, item := range items {
    if item.Type == ContextItemCapture {
      captureIDs = append(captureIDs, item.ID)
    }
  }
  if len(captureIDs) == 0 {
    return nil, nil
  }
  return cs.ownedActiveSubset(ctx, userID, captureIDs)
}

func (cs *contextScopeService) resolveMixed(ctx context.Context, userID uuid.UUID, items []ContextItem) ([]uuid.UUID, error) {
  var fromCollections []uuid.UUID
  var fromCaptures []uuid.UUID

  group, groupCtx := errgroup.WithContext(ctx)
  group.Go(func() error {
    ids, err := cs.resolveCollections(groupCtx, userID, items)
    if err != nil {
      return err
    }
    fromCollections = ids
    return nil
  })
  group.Go(func() error {
    ids, err := cs.resolveSpecific(groupCtx, userID, items)
    if err != nil {
      return err
    }
    fromCaptures = ids
    return nil
  })
  if err := group.Wait(); err != nil {
    return nil, err
  }

  var combined []uuid.UUID
  seen := make(map[uuid.UUID]bool)
  for _, ids := range [][]uuid.UUID{fromCollections, fromCaptures} {
    for _, id := range ids {
      if !seen[id] {
        combined = append(combined, id)
        seen[id] = true
      }
    }
  }
  return combined, nil
}

func (cs *contextScopeService) ownedActiveSubset(ctx context.Context, userID uuid.UUID, captureIDs []uuid.UUID) ([]uuid.UUID, error) {
  captures, err := cs.captureRepo.GetByIDsOwned(ctx, nil, userID, captureIDs)
  if err != nil {
    return nil, fmt.Errorf("Failed to validate capture ownership: %w", err)
  }
  owned := make(map[uuid.UUID]bool, len(captures))
  for _, capture := range captures {
    owned[capture.ID] = true
  }

  // Preserve the caller's ordering for the ids that survive.
  var result []uuid.UUID
  seen := make(map[uuid.UUID]bool)
  for _, id := range captureIDs {
    if owned[id] && !seen[id] {
      result = append(result, id)
      seen[id] = true
    }
  }
  return result, nil
}
