package services

import (
  "context"
  "encoding/json"
  "fmt"
  "strings"
  "time"
  "github.com/google/uuid"
  "gorm.io/datatypes"
  "gorm.io/gorm"
  "github.com/deepen-live/deepen-backend/internal/platform/logger"
  "github.com/deepen-live/deepen-backend/internal/repos"
  "github.com/deepen-live/deepen-backend/internal/types"
)

// ConversationContext is the persisted context selector of a brain
// conversation. Re-resolved on every message, never trusted stale.
type ConversationContext struct {
  Type  ContextType   `json:"type"`
  Items []ContextItem `json:"items,omitempty"`
}

// ChatMessage is one persisted conversation turn. Assistant turns carry the
// sources that grounded them.
type ChatMessage struct {
  Role      string        `json:"role"`
  Content   string        `json:"content"`
  Sources   []SourceEntry `json:"sources,omitempty"`
  Timestamp time.Time     `json:"timestamp"`
}

type ChatService interface {
  CreateConversation(ctx context.Context, userID uuid.UUID, title, modelID string, convContext ConversationContext) (*types.Conversation, error)
  ListConversations(ctx context.Context, userID uuid.UUID, activeOnly bool) ([]*types.Conversation, error)
  GetConversation(ctx context.Context, userID, conversationID uuid.UUID) (*types.Conversation, error)
  // AppendMessage persists a user turn, aggregates context for it, and
  // persists an assistant turn carrying the retrieved sources.
  AppendMessage(ctx context.Context, userID, conversationID uuid.UUID, apiKey, content string) (AggregatedContext, error)
  UpdateContext(ctx context.Context, userID, conversationID uuid.UUID, convContext ConversationContext) error
  Archive(ctx context.Context, userID, conversationID uuid.UUID) error
}

type chatService struct {
  db               *gorm.DB
  log              *logger.Logger
  conversationRepo repos.ConversationRepo
  aggregation      AggregationService
}

func NewChatService(db *gorm.DB, log *logger.Logger, conversationRepo repos.ConversationRepo, aggregation AggregationService) ChatService {
  serviceLog := log.With("service", "ChatService")
  return &chatService{
    db:               db,
    log:              serviceLog,
    conversationRepo: conversationRepo,
    aggregation:      aggregation,
  }
}

func (chs *chatService) CreateConversation(ctx context.Context, userID uuid.UUID, title, modelID string, convContext ConversationContext) (*types.Conversation, error) {
  if convContext.Type == "" {
    convContext.Type = ContextAll
  }

  contextJSON, err := json.Marshal(convContext)
  if err != nil {
    return nil, fmt.Errorf("Failed to encode conversation context: %w", err)
  }

  conversation := &types.Conversation{
    ID:           uuid.New(),
    UserID:       userID,
    Title:        strings.TrimSpace(title),
    ModelID:      strings.TrimSpace(modelID),
    Context:      datatypes.JSON(contextJSON),
    Messages:     datatypes.JSON([]byte("[]")),
    IsActive:     true,
    LastActivity: time.Now().UTC(),
  }

  created, err := chs.conversationRepo.Create(ctx, nil, []*types.Conversation{conversation})
  if err != nil {
    return nil, fmt.Errorf("Failed to create conversation: %w", err)
  }
  return created[0], nil
}

func (chs *chatService) ListConversations(ctx context.Context, userID uuid.UUID, activeOnly bool) ([]*types.Conversation, error) {
  return chs.conversationRepo.List(ctx, nil, userID, activeOnly)
}

func (chs *chatService) GetConversation(ctx context.Context, userID, conversationID uuid.UUID) (*types.Conversation, error) {
  return chs.conversationRepo.GetOwnedByID(ctx, nil, userID, conversationID)
}

func (chs *chatService) AppendMessage(ctx context.Context, userID, conversationID uuid.UUID, apiKey, content string) (AggregatedContext, error) {
  empty := AggregatedContext{Sources: []SourceEntry{}, RetrievedChunks: []RetrievedChunk{}}

  content = strings.TrimSpace(content)
  if content == "" {
    return empty, fmt.Errorf("Message content is required")
  }

  conversation, err := chs.conversationRepo.GetOwnedByID(ctx, nil, userID, conversationID)
  if err != nil {
    return empty, err
  }

  var convContext ConversationContext
  if len(conversation.Context) > 0 {
    if uErr := json.Unmarshal(conversation.Context, &convContext); uErr != nil {
      return empty, fmt.Errorf("Failed to decode conversation context: %w", uErr)
    }
  }
  if convContext.Type == "" {
    convContext.Type = ContextAll
  }

  aggregated, err := chs.aggregation.AggregateContext(ctx, ContextQuery{
    UserID:      userID,
    APIKey:      apiKey,
    Query:       content,
    ContextType: convContext.Type,
    Items:       convContext.Items,
  })
  if err != nil {
    return empty, err
  }

  var messages []ChatMessage
  if len(conversation.Messages) > 0 {
    if uErr := json.Unmarshal(conversation.Messages, &messages); uErr != nil {
      return empty, fmt.Errorf("Failed to decode conversation messages: %w", uErr)
    }
  }

  now := time.Now().UTC()
  messages = append(messages, ChatMessage{
    Role:      "user",
    Content:   content,
    Timestamp: now,
  })
  messages = append(messages, ChatMessage{
    Role:      "assistant",
    Content:   "",
    Sources:   aggregated.Sources,
    Timestamp: now,
  })

  encoded, err := json.Marshal(messages)
  if err != nil {
    return empty, fmt.Errorf("Failed to encode conversation messages: %w", err)
  }
  if uErr := chs.conversationRepo.UpdateMessages(ctx, nil, userID, conversationID, datatypes.JSON(encoded)); uErr != nil {
    return empty, fmt.Errorf("Failed to persist conversation messages: %w", uErr)
  }

  return aggregated, nil
}

func (chs *chatService) UpdateContext(ctx context.Context, userID, conversationID uuid.UUID, convContext ConversationContext) error {
  if convContext.Type == "" {
    convContext.Type = ContextAll
  }

  contextJSON, err := json.Marshal(convContext)
  if err != nil {
    return fmt.Errorf("Failed to encode conversation context: %w", err)
  }
  return chs.conversationRepo.UpdateContext(ctx, nil, userID, conversationID, datatypes.JSON(contextJSON))
}

func (chs *chatService) Archive(ctx context.Context, userID, conversationID uuid.UUID) error {
  return chs.conversationRepo.SetActive(ctx, nil, userID, conversationID, false)
}
