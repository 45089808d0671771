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

type UserService interface {
  GetByID(ctx context.Context, userID uuid.UUID) (*types.User, error)
  // SetGeminiAPIKey stores the user's own embedding-provider key. Captures
  // cannot be indexed and searches cannot run without it.
  SetGeminiAPIKey(ctx context.Context, userID uuid.UUID, apiKey string) error
}

type userService struct {
  db       *gorm.DB
  log      *logger.Logger
  userRepo repos.UserRepo
}

func NewUserService(db *gorm.DB, log *logger.Logger, userRepo repos.UserRepo) UserService {
  serviceLog := log.With("service", "UserService")
  return &userService{
    db:       db,
    log:      serviceLog,
    userRepo: userRepo,
  }
}

func (us *userService) GetByID(ctx context.Context, userID uuid.UUID) (*types.User, error) {
  users, err := us.userRepo.GetByIDs(ctx, nil, []uuid.UUID{userID})
  if err != nil {
    return nil, fmt.Errorf("Failed to get user: %w", err)
  }
  if len(users) == 0 {
    return nil, gorm.ErrRecordNotFound
  }
  return users[0], nil
}

func (us *userService) SetGeminiAPIKey(ctx context.Context, userID uuid.UUID, apiKey string) error {
  apiKey = strings.TrimSpace(apiKey)
  if apiKey == "" {
    return fmt.Errorf("API key is required")
  }
  return us.userRepo.UpdateGeminiAPIKey(ctx, nil, userID, apiKey)
}
