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

// CreateCaptureInput is the payload of a new web capture.
type CreateCaptureInput struct {
  Title       string
  URL         string
  ContentType string
  CleanText   string
}

type CaptureService interface {
  Create(ctx context.Context, userID uuid.UUID, input CreateCaptureInput) (*types.Capture, error)
  Get(ctx context.Context, userID, captureID uuid.UUID) (*types.Capture, error)
  List(ctx context.Context, userID uuid.UUID, filter repos.CaptureFilter) ([]*types.Capture, error)
  SetBookmarked(ctx context.Context, userID, captureID uuid.UUID, bookmarked bool) error
  // Delete soft-deletes the capture and enqueues removal of its vectors.
  Delete(ctx context.Context, userID, captureID uuid.UUID) error
}

type captureService struct {
  db          *gorm.DB
  log         *logger.Logger
  captureRepo repos.CaptureRepo
  dispatcher  EmbeddingDispatcher
}

func NewCaptureService(db *gorm.DB, log *logger.Logger, captureRepo repos.CaptureRepo, dispatcher EmbeddingDispatcher) CaptureService {
  serviceLog := log.With("service", "CaptureService")
  return &captureService{
    db:          db,
    log:         serviceLog,
    captureRepo: captureRepo,
    dispatcher:  dispatcher,
  }
}

func (cs *captureService) Create(ctx context.Context, userID uuid.UUID, input CreateCaptureInput) (*types.Capture, error) {
  if strings.TrimSpace(input.CleanText) == "" && strings.TrimSpace(input.URL) == "" {
    return nil, fmt.Errorf("A capture needs text content or a source url")
  }

  capture := &types.Capture{
    ID:               uuid.New(),
    OwnerID:          userID,
    Title:            strings.TrimSpace(input.Title),
    URL:              strings.TrimSpace(input.URL),
    ContentType:      strings.TrimSpace(input.ContentType),
    CleanText:        input.CleanText,
    Status:           types.CaptureStatusActive,
    ProcessingStatus: types.ProcessingStatusPending,
  }

  created, err := cs.captureRepo.Create(ctx, nil, []*types.Capture{capture})
  if err != nil {
    return nil, fmt.Errorf("Failed to create capture: %w", err)
  }

  // Indexing is async; a dispatch failure leaves the capture pending and is
  // logged, the create itself has already succeeded.
  if dErr := cs.dispatcher.Dispatch(ctx, EmbeddingJob{
    CaptureID: capture.ID,
    UserID:    userID,
    Action:    EmbeddingActionIndex,
  }); dErr != nil {
    cs.log.Error("Failed to dispatch indexing job",
      "capture_id", capture.ID.String(),
      "error", dErr.Error(),
    )
  }

  return created[0], nil
}

func (cs *captureService) Get(ctx context.Context, userID, captureID uuid.UUID) (*types.Capture, error) {
  captures, err := cs.captureRepo.GetByIDsOwned(ctx, nil, userID, []uuid.UUID{captureID})
  if err != nil {
    return nil, fmt.Errorf("Failed to get capture: %w", err)
  }
  if len(captures) == 0 {
    return nil, gorm.ErrRecordNotFound
  }
  return captures[0], nil
}

func (cs *captureService) List(ctx context.Context, userID uuid.UUID, filter repos.CaptureFilter) ([]*types.Capture, error) {
  return cs.captureRepo.List(ctx, nil, userID, filter)
}

func (cs *captureService) SetBookmarked(ctx context.Context, userID, captureID uuid.UUID, bookmarked bool) error {
  return cs.captureRepo.SetBookmarked(ctx, nil, userID, captureID, bookmarked)
}

func (cs *captureService) Delete(ctx context.Context, userID, captureID uuid.UUID) error {
  if err := cs.captureRepo.SoftDelete(ctx, nil, userID, captureID); err != nil {
    return err
  }

  if dErr := cs.dispatcher.Dispatch(ctx, EmbeddingJob{
    CaptureID: captureID,
    UserID:    userID,
    Action:    EmbeddingActionDelete,
  }); dErr != nil {
    cs.log.Error("Failed to dispatch vector cleanup job",
      "capture_id", captureID.String(),
      "error", dErr.Error(),
    )
  }
  return nil
}
