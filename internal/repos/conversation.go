package repos

import (
  "context"
  "time"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "gorm.io/datatypes"
  "github.com/deepen-live/deepen-backend/internal/platform/logger"
  "github.com/deepen-live/deepen-backend/internal/types"
)

type ConversationRepo interface {
  Create(ctx context.Context, tx *gorm.DB, conversations []*types.Conversation) ([]*types.Conversation, error)
  GetOwnedByID(ctx context.Context, tx *gorm.DB, userID, conversationID uuid.UUID) (*types.Conversation, error)
  List(ctx context.Context, tx *gorm.DB, userID uuid.UUID, activeOnly bool) ([]*types.Conversation, error)
  // UpdateMessages replaces the messages blob and bumps last_activity.
  UpdateMessages(ctx context.Context, tx *gorm.DB, userID, conversationID uuid.UUID, messages datatypes.JSON) error
  UpdateContext(ctx context.Context, tx *gorm.DB, userID, conversationID uuid.UUID, contextJSON datatypes.JSON) error
  SetActive(ctx context.Context, tx *gorm.DB, userID, conversationID uuid.UUID, active bool) error
}

type conversationRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewConversationRepo(db *gorm.DB, baseLog *logger.Logger) ConversationRepo {
  repoLog := baseLog.With("repo", "ConversationRepo")
  return &conversationRepo{db: db, log: repoLog}
}

func (cvr *conversationRepo) Create(ctx context.Context, tx *gorm.DB, conversations []*types.Conversation) ([]*types.Conversation, error) {
  transaction := tx
  if transaction == nil {
    transaction = cvr.db
  }

  if len(conversations) == 0 {
    return []*types.Conversation{}, nil
  }

  if err := transaction.WithContext(ctx).Create(&conversations).Error; err != nil {
    return nil, err
  }

  return conversations, nil
}

func (cvr *conversationRepo) GetOwnedByID(ctx context.Context, tx *gorm.DB, userID, conversationID uuid.UUID) (*types.Conversation, error) {
  transaction := tx
  if transaction == nil {
    transaction = cvr.db
  }

  var result types.Conversation
  if err := transaction.WithContext(ctx).
    Where("id = ?", conversationID).
    Where("user_id = ?", userID).
    First(&result).Error; err != nil {
    return nil, err
  }
  return &result, nil
}

func (cvr *conversationRepo) List(ctx context.Context, tx *gorm.DB, userID uuid.UUID, activeOnly bool) ([]*types.Conversation, error) {
  transaction := tx
  if transaction == nil {
    transaction = cvr.db
  }

  query := transaction.WithContext(ctx).
    Where("user_id = ?", userID)
  if activeOnly {
    query = query.Where("is_active = ?", true)
  }

  var results []*types.Conversation
  if err := query.
    Order("last_activity DESC").
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (cvr *conversationRepo) UpdateMessages(ctx context.Context, tx *gorm.DB, userID, conversationID uuid.UUID, messages datatypes.JSON) error {
  transaction := tx
  if transaction == nil {
    transaction = cvr.db
  }

  result := transaction.WithContext(ctx).
    Model(&types.Conversation{}).
    Where("id = ?", conversationID).
    Where("user_id = ?", userID).
    Updates(map[string]any{
      "messages":      messages,
      "last_activity": time.Now().UTC(),
    })
  if result.Error != nil {
    return result.Error
  }
  if result.RowsAffected == 0 {
    return gorm.ErrRecordNotFound
  }
  return nil
}

func (cvr *conversationRepo) UpdateContext(ctx context.Context, tx *gorm.DB, userID, conversationID uuid.UUID, contextJSON datatypes.JSON) error {
  transaction := tx
  if transaction == nil {
    transaction = cvr.db
  }

  result := transaction.WithContext(ctx).
    Model(&types.Conversation{}).
    Where("id = ?", conversationID).
    Where("user_id = ?", userID).
    Update("context", contextJSON)
  if result.Error != nil {
    return result.Error
  }
  if result.RowsAffected == 0 {
    return gorm.ErrRecordNotFound
  }
  return nil
}

func (cvr *conversationRepo) SetActive(ctx context.Context, tx *gorm.DB, userID, conversationID uuid.UUID, active bool) error {
  transaction := tx
  if transaction == nil {
    transaction = cvr.db
  }

  result := transaction.WithContext(ctx).
    Model(&types.Conversation{}).
    Where("id = ?", conversationID).
    Where("user_id = ?", userID).
    Update("is_active", active)
  if result.Error != nil {
    return result.Error
  }
  if result.RowsAffected == 0 {
    return gorm.ErrRecordNotFound
  }
  return nil
}
