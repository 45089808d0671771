package services

import (
  "context"
  "fmt"
  "strings"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "github.com/deepen-live/deepen-backend/internal/platform/logger"
  "github.com/deepen-live/deepen-backend/internal/repos"
  "github.com/deepen-live/deepen-backend/internal/types"
)

type CollectionService interface {
  Create(ctx context.Context, userID uuid.UUID, name, description string, captureIDs []uuid.UUID) (*types.Collection, error)
  List(ctx context.Context, userID uuid.UUID) ([]*types.Collection, error)
  // AddCaptures re-validates capture ownership before extending membership;
  // foreign captures are rejected, not silently dropped, since this is a
  // write path.
  AddCaptures(ctx context.Context, userID, collectionID uuid.UUID, captureIDs []uuid.UUID) error
  RemoveCapture(ctx context.Context, userID, collectionID, captureID uuid.UUID) error
  Delete(ctx context.Context, userID, collectionID uuid.UUID) error
}

type collectionService struct {
  db             *gorm.DB
  log            *logger.Logger
  collectionRepo repos.CollectionRepo
  captureRepo    repos.CaptureRepo
}

func NewCollectionService(db *gorm.DB, log *logger.Logger, collectionRepo repos.CollectionRepo, captureRepo repos.CaptureRepo) CollectionService {
  serviceLog := log.With("service", "CollectionService")
  return &collectionService{
    db:             db,
    log:            serviceLog,
    collectionRepo: collectionRepo,
    captureRepo:    captureRepo,
  }
}

func (cls *collectionService) Create(ctx context.Context, userID uuid.UUID, name, description string, captureIDs []uuid.UUID) (*types.Collection, error) {
  name = strings.TrimSpace(name)
  if name == "" {
    return nil, fmt.Errorf("Collection name is required")
  }

  owned, err := cls.ownedSubset(ctx, userID, captureIDs)
  if err != nil {
    return nil, err
  }
  if len(owned) != len(dedupe(captureIDs)) {
    return nil, fmt.Errorf("One or more captures do not exist or are not yours")
  }

  encoded, err := repos.EncodeCaptureIDs(owned)
  if err != nil {
    return nil, fmt.Errorf("Failed to encode collection membership: %w", err)
  }

  collection := &types.Collection{
    ID:          uuid.New(),
    OwnerID:     userID,
    Name:        name,
    Description: strings.TrimSpace(description),
    CaptureIDs:  encoded,
  }

  created, err := cls.collectionRepo.Create(ctx, nil, []*types.Collection{collection})
  if err != nil {
    return nil, fmt.Errorf("Failed to create collection: %w", err)
  }
  return created[0], nil
}

func (cls *collectionService) List(ctx context.Context, userID uuid.UUID) ([]*types.Collection, error) {
  return cls.collectionRepo.List(ctx, nil, userID)
}

func (cls *collectionService) AddCaptures(ctx context.Context, userID, collectionID uuid.UUID, captureIDs []uuid.UUID) error {
  if len(captureIDs) == 0 {
    return nil
  }

  owned, err := cls.ownedSubset(ctx, userID, captureIDs)
  if err != nil {
    return err
  }
  if len(owned) != len(dedupe(captureIDs)) {
    return fmt.Errorf("One or more captures do not exist or are not yours")
  }

  return cls.collectionRepo.AddCaptures(ctx, nil, userID, collectionID, owned)
}

func (cls *collectionService) RemoveCapture(ctx context.Context, userID, collectionID, captureID uuid.UUID) error {
  return cls.collectionRepo.RemoveCapture(ctx, nil, userID, collectionID, captureID)
}

func (cls *collectionService) Delete(ctx context.Context, userID, collectionID uuid.UUID) error {
  return cls.collectionRepo.Delete(ctx, nil, userID, collectionID)
}

func (cls *collectionService) ownedSubset(ctx context.Context, userID uuid.UUID, captureIDs []uuid.UUID) ([]uuid.UUID, error) {
  if len(captureIDs) == 0 {
    return nil, nil
  }
  captures, err := cls.captureRepo.GetByIDsOwned(ctx, nil, userID, captureIDs)
  if err != nil {
    return nil, fmt.Errorf("Failed to validate capture ownership: %w", err)
  }
  owned := make([]uuid.UUID, 0, len(captures))
  for _, capture := range captures {
    owned = append(owned, capture.ID)
  }
  return owned, nil
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
  seen := make(map[uuid.UUID]bool, len(ids))
  out := make([]uuid.UUID, 0, len(ids))
  for _, id := range ids {
    if !seen[id] {
      out = append(out, id)
      seen[id] = true
    }
  }
  return out
}
