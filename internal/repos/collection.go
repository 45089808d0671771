package repos

import (
  "context"
  "encoding/json"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "gorm.io/datatypes"
  "github.com/deepen-live/deepen-backend/internal/platform/logger"
  "github.com/deepen-live/deepen-backend/internal/types"
)

type CollectionRepo interface {
  Create(ctx context.Context, tx *gorm.DB, collections []*types.Collection) ([]*types.Collection, error)
  // GetOwnedByIDs keeps only the requested ids that exist and belong to
  // ownerID. Foreign ids are dropped, never reported.
  GetOwnedByIDs(ctx context.Context, tx *gorm.DB, ownerID uuid.UUID, collectionIDs []uuid.UUID) ([]*types.Collection, error)
  List(ctx context.Context, tx *gorm.DB, ownerID uuid.UUID) ([]*types.Collection, error)
  AddCaptures(ctx context.Context, tx *gorm.DB, ownerID, collectionID uuid.UUID, captureIDs []uuid.UUID) error
  RemoveCapture(ctx context.Context, tx *gorm.DB, ownerID, collectionID, captureID uuid.UUID) error
  Delete(ctx context.Context, tx *gorm.DB, ownerID, collectionID uuid.UUID) error
}

type collectionRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewCollectionRepo(db *gorm.DB, baseLog *logger.Logger) CollectionRepo {
  repoLog := baseLog.With("repo", "CollectionRepo")
  return &collectionRepo{db: db, log: repoLog}
}

func (clr *collectionRepo) Create(ctx context.Context, tx *gorm.DB, collections []*types.Collection) ([]*types.Collection, error) {
  transaction := tx
  if transaction == nil {
    transaction = clr.db
  }

  if len(collections) == 0 {
    return []*types.Collection{}, nil
  }

  for _, c := range collections {
    if len(c.CaptureIDs) == 0 {
      c.CaptureIDs = datatypes.JSON([]byte("[]"))
    }
  }

  if err := transaction.WithContext(ctx).Create(&collections).Error; err != nil {
    return nil, err
  }

  return collections, nil
}

func (clr *collectionRepo) GetOwnedByIDs(ctx context.Context, tx *gorm.DB, ownerID uuid.UUID, collectionIDs []uuid.UUID) ([]*types.Collection, error) {
  transaction := tx
  if transaction == nil {
    transaction = clr.db
  }

  var results []*types.Collection

  if len(collectionIDs) == 0 {
    return results, nil
  }

  if err := transaction.WithContext(ctx).
    Where("id IN ?", collectionIDs).
    Where("owner_id = ?", ownerID).
    Find(&results).Error; err != nil {
    return nil, err
  }

  return results, nil
}

func (clr *collectionRepo) List(ctx context.Context, tx *gorm.DB, ownerID uuid.UUID) ([]*types.Collection, error) {
  transaction := tx
  if transaction == nil {
    transaction = clr.db
  }

  var results []*types.Collection

  if err := transaction.WithContext(ctx).
    Where("owner_id = ?", ownerID).
    Order("created_at DESC").
    Find(&results).Error; err != nil {
    return nil, err
  }

  return results, nil
}

func (clr *collectionRepo) AddCaptures(ctx context.Context, tx *gorm.DB, ownerID, collectionID uuid.UUID, captureIDs []uuid.UUID) error {
  transaction := tx
  if transaction == nil {
    transaction = clr.db
  }

  if len(captureIDs) == 0 {
    return nil
  }

  var collection types.Collection
  if err := transaction.WithContext(ctx).
    Where("id = ?", collectionID).
    Where("owner_id = ?", ownerID).
    First(&collection).Error; err != nil {
    return err
  }

  existing, err := DecodeCaptureIDs(collection.CaptureIDs)
  if err != nil {
    return err
  }

  seen := make(map[uuid.UUID]bool, len(existing))
  for _, id := range existing {
    seen[id] = true
  }
  for _, id := range captureIDs {
    if !seen[id] {
      existing = append(existing, id)
      seen[id] = true
    }
  }

  encoded, err := EncodeCaptureIDs(existing)
  if err != nil {
    return err
  }

  return transaction.WithContext(ctx).
    Model(&types.Collection{}).
    Where("id = ?", collectionID).
    Update("capture_ids", encoded).Error
}

func (clr *collectionRepo) RemoveCapture(ctx context.Context, tx *gorm.DB, ownerID, collectionID, captureID uuid.UUID) error {
  transaction := tx
  if transaction == nil {
    transaction = clr.db
  }

  var collection types.Collection
  if err := transaction.WithContext(ctx).
    Where("id = ?", collectionID).
    Where("owner_id = ?", ownerID).
    First(&collection).Error; err != nil {
    return err
  }

  existing, err := DecodeCaptureIDs(collection.CaptureIDs)
  if err != nil {
    return err
  }

  kept := existing[:0]
  for _, id := range existing {
    if id != captureID {
      kept = append(kept, id)
    }
  }

  encoded, err := EncodeCaptureIDs(kept)
  if err != nil {
    return err
  }

  return transaction.WithContext(ctx).
    Model(&types.Collection{}).
    Where("id = ?", collectionID).
    Update("capture_ids", encoded).Error
}

func (clr *collectionRepo) Delete(ctx context.Context, tx *gorm.DB, ownerID, collectionID uuid.UUID) error {
  transaction := tx
  if transaction == nil {
    transaction = clr.db
  }

  result := transaction.WithContext(ctx).
    Where("id = ?", collectionID).
    Where("owner_id = ?", ownerID).
    Delete(&types.Collection{})
  if result.Error != nil {
    return result.Error
  }
  if result.RowsAffected == 0 {
    return gorm.ErrRecordNotFound
  }
  return nil
}

// DecodeCaptureIDs parses the jsonb membership array. Malformed entries fail
// the whole decode rather than being silently dropped.
func DecodeCaptureIDs(raw datatypes.JSON) ([]uuid.UUID, error) {
  if len(raw) == 0 {
    return nil, nil
  }
  var asStrings []string
  if err := json.Unmarshal(raw, &asStrings); err != nil {
    return nil, err
  }
  ids := make([]uuid.UUID, 0, len(asStrings))
  for _, s := range asStrings {
    id, err := uuid.Parse(s)
    if err != nil {
      return nil, err
    }
    ids = append(ids, id)
  }
  return ids, nil
}

func EncodeCaptureIDs(ids []uuid.UUID) (datatypes.JSON, error) {
  asStrings := make([]string, 0, len(ids))
  for _, id := range ids {
    asStrings = append(asStrings, id.String())
  }
  raw, err := json.Marshal(asStrings)
  if err != nil {
    return nil, err
  }
  return datatypes.JSON(raw), nil
}
