package services

import (
  "context"
  "testing"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "github.com/deepen-live/deepen-backend/internal/platform/gemini"
  "github.com/deepen-live/deepen-backend/internal/platform/logger"
  "github.com/deepen-live/deepen-backend/internal/platform/qdrant"
  "github.com/deepen-live/deepen-backend/internal/repos"
  "github.com/deepen-live/deepen-backend/internal/types"
)

func newTestLogger(t *testing.T) *logger.Logger {
  t.Helper()
  log, err := logger.New("development")
  if err != nil {
    t.Fatalf("logger.New: %v", err)
  }
  t.Cleanup(func() {
    log.Sync()
  })
  return log
}

// fakeCaptureRepo serves canned captures keyed by id; repo-level filtering is
// reproduced in memory.
type fakeCaptureRepo struct {
  captures map[uuid.UUID]*types.Capture
  // ordered ids, newest first, mirroring the repo's ordering contract
  order []uuid.UUID

  err             error
  getOwnedIDCalls []repos.CaptureFilter
  metaErr         error
}

func newFakeCaptureRepo() *fakeCaptureRepo {
  return &fakeCaptureRepo{captures: map[uuid.UUID]*types.Capture{}}
}

func (f *fakeCaptureRepo) add(c *types.Capture) {
  f.captures[c.ID] = c
  f.order = append(f.order, c.ID)
}

func (f *fakeCaptureRepo) Create(ctx context.Context, tx *gorm.DB, captures []*types.Capture) ([]*types.Capture, error) {
  if f.err != nil {
    return nil, f.err
  }
  for _, c := range captures {
    f.add(c)
  }
  return captures, nil
}

func (f *fakeCaptureRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Capture, error) {
  if f.err != nil {
    return nil, f.err
  }
  var out []*types.Capture
  for _, id := range ids {
    if c, ok := f.captures[id]; ok {
      out = append(out, c)
    }
  }
  return out, nil
}

func (f *fakeCaptureRepo) GetOwnedIDs(ctx context.Context, tx *gorm.DB, ownerID uuid.UUID, filter repos.CaptureFilter) ([]uuid.UUID, error) {
  if f.err != nil {
    return nil, f.err
  }
  f.getOwnedIDCalls = append(f.getOwnedIDCalls, filter)
  var ids []uuid.UUID
  for _, id := range f.order {
    c := f.captures[id]
    if c.OwnerID != ownerID || c.Status != types.CaptureStatusActive {
      continue
    }
    if filter.Bookmarked != nil && c.Bookmarked != *filter.Bookmarked {
      continue
    }
    if filter.ContentType != "" && c.ContentType != filter.ContentType {
      continue
    }
    if filter.CreatedAfter != nil && c.CreatedAt.Before(*filter.CreatedAfter) {
      continue
    }
    if filter.CreatedBefore != nil && c.CreatedAt.After(*filter.CreatedBefore) {
      continue
    }
    ids = append(ids, id)
    if filter.Limit > 0 && len(ids) >= filter.Limit {
      break
    }
  }
  return ids, nil
}

func (f *fakeCaptureRepo) GetByIDsOwned(ctx context.Context, tx *gorm.DB, ownerID uuid.UUID, ids []uuid.UUID) ([]*types.Capture, error) {
  if f.err != nil {
    return nil, f.err
  }
  var out []*types.Capture
  for _, id := range ids {
    c, ok := f.captures[id]
    if ok && c.OwnerID == ownerID && c.Status == types.CaptureStatusActive {
      out = append(out, c)
    }
  }
  return out, nil
}

func (f *fakeCaptureRepo) GetMetaByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]repos.CaptureMeta, error) {
  if f.metaErr != nil {
    return nil, f.metaErr
  }
  var out []repos.CaptureMeta
  for _, id := range ids {
    if c, ok := f.captures[id]; ok {
      out = append(out, repos.CaptureMeta{ID: c.ID, Title: c.Title})
    }
  }
  return out, nil
}

func (f *fakeCaptureRepo) List(ctx context.Context, tx *gorm.DB, ownerID uuid.UUID, filter repos.CaptureFilter) ([]*types.Capture, error) {
  ids, err := f.GetOwnedIDs(ctx, tx, ownerID, filter)
  if err != nil {
    return nil, err
  }
  return f.GetByIDsOwned(ctx, tx, ownerID, ids)
}

func (f *fakeCaptureRepo) SetBookmarked(ctx context.Context, tx *gorm.DB, ownerID, id uuid.UUID, bookmarked bool) error {
  c, ok := f.captures[id]
  if !ok || c.OwnerID != ownerID {
    return gorm.ErrRecordNotFound
  }
  c.Bookmarked = bookmarked
  return nil
}

func (f *fakeCaptureRepo) UpdateProcessingStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status string, processingError string) error {
  if c, ok := f.captures[id]; ok {
    c.ProcessingStatus = status
    c.ProcessingError = processingError
  }
  return nil
}

func (f *fakeCaptureRepo) SoftDelete(ctx context.Context, tx *gorm.DB, ownerID, id uuid.UUID) error {
  c, ok := f.captures[id]
  if !ok || c.OwnerID != ownerID || c.Status != types.CaptureStatusActive {
    return gorm.ErrRecordNotFound
  }
  c.Status = types.CaptureStatusDeleted
  return nil
}

type fakeCollectionRepo struct {
  collections map[uuid.UUID]*types.Collection
  err         error
}

func newFakeCollectionRepo() *fakeCollectionRepo {
  return &fakeCollectionRepo{collections: map[uuid.UUID]*types.Collection{}}
}

func (f *fakeCollectionRepo) add(c *types.Collection) {
  f.collections[c.ID] = c
}

func (f *fakeCollectionRepo) Create(ctx context.Context, tx *gorm.DB, collections []*types.Collection) ([]*types.Collection, error) {
  if f.err != nil {
    return nil, f.err
  }
  for _, c := range collections {
    f.add(c)
  }
  return collections, nil
}

func (f *fakeCollectionRepo) GetOwnedByIDs(ctx context.Context, tx *gorm.DB, ownerID uuid.UUID, ids []uuid.UUID) ([]*types.Collection, error) {
  if f.err != nil {
    return nil, f.err
  }
  var out []*types.Collection
  for _, id := range ids {
    c, ok := f.collections[id]
    if ok && c.OwnerID == ownerID {
      out = append(out, c)
    }
  }
  return out, nil
}

func (f *fakeCollectionRepo) List(ctx context.Context, tx *gorm.DB, ownerID uuid.UUID) ([]*types.Collection, error) {
  if f.err != nil {
    return nil, f.err
  }
  var out []*types.Collection
  for _, c := range f.collections {
    if c.OwnerID == ownerID {
      out = append(out, c)
    }
  }
  return out, nil
}

func (f *fakeCollectionRepo) AddCaptures(ctx context.Context, tx *gorm.DB, ownerID, collectionID uuid.UUID, captureIDs []uuid.UUID) error {
  return f.err
}

func (f *fakeCollectionRepo) RemoveCapture(ctx context.Context, tx *gorm.DB, ownerID, collectionID, captureID uuid.UUID) error {
  return f.err
}

func (f *fakeCollectionRepo) Delete(ctx context.Context, tx *gorm.DB, ownerID, collectionID uuid.UUID) error {
  return f.err
}

// fakeEmbedder returns a fixed vector, or per-text vectors/errors when set.
type fakeEmbedder struct {
  vector   []float32
  err      error
  byText   map[string][]float32
  errByText map[string]error
  calls    []fakeEmbedCall
}

type fakeEmbedCall struct {
  APIKey string
  Text   string
  Task   gemini.TaskType
}

func (f *fakeEmbedder) Embed(ctx context.Context, apiKey string, text string, task gemini.TaskType) ([]float32, error) {
  f.calls = append(f.calls, fakeEmbedCall{APIKey: apiKey, Text: text, Task: task})
  if f.errByText != nil {
    if err, ok := f.errByText[text]; ok {
      return nil, err
    }
  }
  if f.err != nil {
    return nil, f.err
  }
  if f.byText != nil {
    if v, ok := f.byText[text]; ok {
      return v, nil
    }
  }
  return f.vector, nil
}

// fakeVectorStore records calls and serves canned hits.
type fakeVectorStore struct {
  hits        []qdrant.ScoredPoint
  searchErr   error
  upsertErr   error
  deleteErr   error
  ensureErr   error
  hasPoints   bool
  hasErr      error

  searchCalls []fakeSearchCall
  upserted    [][]qdrant.Point
  deleted     []string
  ensured     int
  indexed     int
}

type fakeSearchCall struct {
  Filter qdrant.SearchFilter
  Limit  int
}

func (f *fakeVectorStore) Ping(ctx context.Context) error { return nil }

func (f *fakeVectorStore) EnsureCollection(ctx context.Context) (qdrant.EnsureResult, error) {
  f.ensured++
  if f.ensureErr != nil {
    return "", f.ensureErr
  }
  return qdrant.EnsureAlreadyExists, nil
}

func (f *fakeVectorStore) EnsurePayloadIndexes(ctx context.Context) error {
  f.indexed++
  return f.ensureErr
}

func (f *fakeVectorStore) Upsert(ctx context.Context, points []qdrant.Point) error {
  if f.upsertErr != nil {
    return f.upsertErr
  }
  f.upserted = append(f.upserted, points)
  return nil
}

func (f *fakeVectorStore) Search(ctx context.Context, vector []float32, filter qdrant.SearchFilter, limit int) ([]qdrant.ScoredPoint, error) {
  f.searchCalls = append(f.searchCalls, fakeSearchCall{Filter: filter, Limit: limit})
  if f.searchErr != nil {
    return nil, f.searchErr
  }
  return f.hits, nil
}

func (f *fakeVectorStore) DeleteByDocument(ctx context.Context, ownerID, documentID string) error {
  if f.deleteErr != nil {
    return f.deleteErr
  }
  f.deleted = append(f.deleted, documentID)
  return nil
}

func (f *fakeVectorStore) HasDocumentPoints(ctx context.Context, documentID string) (bool, error) {
  if f.hasErr != nil {
    return false, f.hasErr
  }
  return f.hasPoints, nil
}
