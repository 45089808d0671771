package repos

import (
  "context"
  "time"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "github.com/deepen-live/deepen-backend/internal/platform/logger"
  "github.com/deepen-live/deepen-backend/internal/types"
)

// CaptureFilter narrows owned-capture lookups. Zero values mean "no filter".
type CaptureFilter struct {
  Bookmarked   *bool
  ContentType  string
  CreatedAfter *time.Time
  CreatedBefore *time.Time
  Limit        int
}

// CaptureMeta is the id/title projection used for source attribution.
type CaptureMeta struct {
  ID    uuid.UUID `json:"id"`
  Title string    `json:"title"`
}

type CaptureRepo interface {
  Create(ctx context.Context, tx *gorm.DB, captures []*types.Capture) ([]*types.Capture, error)
  GetByIDs(ctx context.Context, tx *gorm.DB, captureIDs []uuid.UUID) ([]*types.Capture, error)
  // GetOwnedIDs returns ids of the owner's active captures matching the
  // filter, newest first, truncated at filter.Limit when positive.
  GetOwnedIDs(ctx context.Context, tx *gorm.DB, ownerID uuid.UUID, filter CaptureFilter) ([]uuid.UUID, error)
  // GetByIDsOwned keeps only the requested ids that exist, are active, and
  // belong to ownerID. Foreign or deleted ids are dropped, never reported.
  GetByIDsOwned(ctx context.Context, tx *gorm.DB, ownerID uuid.UUID, captureIDs []uuid.UUID) ([]*types.Capture, error)
  GetMetaByIDs(ctx context.Context, tx *gorm.DB, captureIDs []uuid.UUID) ([]CaptureMeta, error)
  List(ctx context.Context, tx *gorm.DB, ownerID uuid.UUID, filter CaptureFilter) ([]*types.Capture, error)
  SetBookmarked(ctx context.Context, tx *gorm.DB, ownerID, captureID uuid.UUID, bookmarked bool) error
  UpdateProcessingStatus(ctx context.Context, tx *gorm.DB, captureID uuid.UUID, status string, processingError string) error
  SoftDelete(ctx context.Context, tx *gorm.DB, ownerID, captureID uuid.UUID) error
}

type captureRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewCaptureRepo(db *gorm.DB, baseLog *logger.Logger) CaptureRepo {
  repoLog := baseLog.With("repo", "CaptureRepo")
  return &captureRepo{db: db, log: repoLog}
}

func (cr *captureRepo) Create(ctx context.Context, tx *gorm.DB, captures []*types.Capture) ([]*types.Capture, error) {
  transaction := tx
  if transaction == nil {
    transaction = cr.db
  }

  if len(captures) == 0 {
    return []*types.Capture{}, nil
  }

  if err := transaction.WithContext(ctx).Create(&captures).Error; err != nil {
    return nil, err
  }

  return captures, nil
}

func (cr *captureRepo) GetByIDs(ctx context.Context, tx *gorm.DB, captureIDs []uuid.UUID) ([]*types.Capture, error) {
  transaction := tx
  if transaction == nil {
    transaction = cr.db
  }

  var results []*types.Capture

  if len(captureIDs) == 0 {
    return results, nil
  }

  if err := transaction.WithContext(ctx).
    Where("id IN ?", captureIDs).
    Find(&results).Error; err != nil {
    return nil, err
  }

  return results, nil
}

func (cr *captureRepo) GetOwnedIDs(ctx context.Context, tx *gorm.DB, ownerID uuid.UUID, filter CaptureFilter) ([]uuid.UUID, error) {
  transaction := tx
  if transaction == nil {
    transaction = cr.db
  }

  query := transaction.WithContext(ctx).
    Model(&types.Capture{}).
    Where("owner_id = ?", ownerID).
    Where("status = ?", types.CaptureStatusActive)

  query = applyCaptureFilter(query, filter)
  query = query.Order("created_at DESC")
  if filter.Limit > 0 {
    query = query.Limit(filter.Limit)
  }

  var ids []uuid.UUID
  if err := query.Pluck("id", &ids).Error; err != nil {
    return nil, err
  }
  return ids, nil
}

func (cr *captureRepo) GetByIDsOwned(ctx context.Context, tx *gorm.DB, ownerID uuid.UUID, captureIDs []uuid.UUID) ([]*types.Capture, error) {
  transaction := tx
  if transaction == nil {
    transaction = cr.db
  }

  var results []*types.Capture

  if len(captureIDs) == 0 {
    return results, nil
  }

  if err := transaction.WithContext(ctx).
    Where("id IN ?", captureIDs).
    Where("owner_id = ?", ownerID).
    Where("status = ?", types.CaptureStatusActive).
    Find(&results).Error; err != nil {
    return nil, err
  }

  return results, nil
}

func (cr *captureRepo) GetMetaByIDs(ctx context.Context, tx *gorm.DB, captureIDs []uuid.UUID) ([]CaptureMeta, error) {
  transaction := tx
  if transaction == nil {
    transaction = cr.db
  }

  var results []CaptureMeta

  if len(captureIDs) == 0 {
    return results, nil
  }

  if err := transaction.WithContext(ctx).
    Model(&types.Capture{}).
    Select("id", "title").
    Where("id IN ?", captureIDs).
    Find(&results).Error; err != nil {
    return nil, err
  }

  return results, nil
}

func (cr *captureRepo) List(ctx context.Context, tx *gorm.DB, ownerID uuid.UUID, filter CaptureFilter) ([]*types.Capture, error) {
  transaction := tx
  if transaction == nil {
    transaction = cr.db
  }

  query := transaction.WithContext(ctx).
    Where("owner_id = ?", ownerID).
    Where("status = ?", types.CaptureStatusActive)

  query = applyCaptureFilter(query, filter)
  query = query.Order("created_at DESC")
  if filter.Limit > 0 {
    query = query.Limit(filter.Limit)
  }

  var results []*types.Capture
  if err := query.Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (cr *captureRepo) SetBookmarked(ctx context.Context, tx *gorm.DB, ownerID, captureID uuid.UUID, bookmarked bool) error {
  transaction := tx
  if transaction == nil {
    transaction = cr.db
  }

  result := transaction.WithContext(ctx).
    Model(&types.Capture{}).
    Where("id = ?", captureID).
    Where("owner_id = ?", ownerID).
    Where("status = ?", types.CaptureStatusActive).
    Update("bookmarked", bookmarked)
  if result.Error != nil {
    return result.Error
  }
  if result.RowsAffected == 0 {
    return gorm.ErrRecordNotFound
  }
  return nil
}

func (cr *captureRepo) UpdateProcessingStatus(ctx context.Context, tx *gorm.DB, captureID uuid.UUID, status string, processingError string) error {
  transaction := tx
  if transaction == nil {
    transaction = cr.db
  }

  updates := map[string]any{
    "processing_status": status,
    "processing_error":  processingError,
  }

  return transaction.WithContext(ctx).
    Model(&types.Capture{}).
    Where("id = ?", captureID).
    Updates(updates).Error
}

func (cr *captureRepo) SoftDelete(ctx context.Context, tx *gorm.DB, ownerID, captureID uuid.UUID) error {
  transaction := tx
  if transaction == nil {
    transaction = cr.db
  }

  result := transaction.WithContext(ctx).
    Model(&types.Capture{}).
    Where("id = ?", captureID).
    Where("owner_id = ?", ownerID).
    Where("status = ?", types.CaptureStatusActive).
    Update("status", types.CaptureStatusDeleted)
  if result.Error != nil {
    return result.Error
  }
  if result.RowsAffected == 0 {
    return gorm.ErrRecordNotFound
  }
  return nil
}

func applyCaptureFilter(query *gorm.DB, filter CaptureFilter) *gorm.DB {
  if filter.Bookmarked != nil {
    query = query.Where("bookmarked = ?", *filter.Bookmarked)
  }
  if filter.ContentType != "" {
    query = query.Where("content_type = ?", filter.ContentType)
  }
  if filter.CreatedAfter != nil {
    query = query.Where("created_at >= ?", *filter.CreatedAfter)
  }
  if filter.CreatedBefore != nil {
    query = query.Where("created_at <= ?", *filter.CreatedBefore)
  }
  return query
}
