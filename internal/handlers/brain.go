package handlers

import (
  "errors"
  "net/http"
  "strings"
  "time"

  "github.com/gin-gonic/gin"
  "github.com/google/uuid"

  "github.com/deepen-live/deepen-backend/internal/observability"
  "github.com/deepen-live/deepen-backend/internal/platform/logger"
  "github.com/deepen-live/deepen-backend/internal/services"
)

// BrainHandler exposes retrieval over a user's captured knowledge: one-shot
// context search plus scoped conversations.
type BrainHandler struct {
  log                *logger.Logger
  userService        services.UserService
  aggregationService services.AggregationService
  chatService        services.ChatService
  metrics            *observability.Metrics
}

func NewBrainHandler(log *logger.Logger, userService services.UserService, aggregationService services.AggregationService, chatService services.ChatService, metrics *observability.Metrics) *BrainHandler {
  return &BrainHandler{
    log:                log.With("handler", "BrainHandler"),
    userService:        userService,
    aggregationService: aggregationService,
    chatService:        chatService,
    metrics:            metrics,
  }
}

type contextRequest struct {
  Type    string                 `json:"type"`
  Items   []services.ContextItem `json:"items"`
  Filters struct {
    ContentTypes  []string `json:"content_types"`
    CreatedAfter  string   `json:"created_after"`
    CreatedBefore string   `json:"created_before"`
  } `json:"filters"`
}

func (cr contextRequest) scopeFilters() (services.ScopeFilters, error) {
  var filters services.ScopeFilters
  filters.ContentTypes = cr.Filters.ContentTypes
  if v := strings.TrimSpace(cr.Filters.CreatedAfter); v != "" {
    t, err := time.Parse(time.RFC3339, v)
    if err != nil {
      return filters, errors.New("invalid created_after value")
    }
    filters.CreatedAfter = &t
  }
  if v := strings.TrimSpace(cr.Filters.CreatedBefore); v != "" {
    t, err := time.Parse(time.RFC3339, v)
    if err != nil {
      return filters, errors.New("invalid created_before value")
    }
    filters.CreatedBefore = &t
  }
  return filters, nil
}

func (cr contextRequest) contextType() services.ContextType {
  t := services.ContextType(strings.TrimSpace(cr.Type))
  if t == "" {
    return services.ContextAll
  }
  return t
}

// POST /api/brain/search
// Resolves the context selector, retrieves matching chunks, and returns
// deduped sources. An empty context resolution yields an empty result, not
// an error.
func (h *BrainHandler) Search(c *gin.Context) {
  userID, ok := currentUserID(c)
  if !ok {
    return
  }
  var req struct {
    Query   string         `json:"query"`
    Context contextRequest `json:"context"`
    Limit   int            `json:"limit"`
  }
  if err := c.ShouldBindJSON(&req); err != nil {
    RespondError(c, http.StatusBadRequest, "INVALID_BODY", errors.New("invalid request body"))
    return
  }
  if strings.TrimSpace(req.Query) == "" {
    RespondError(c, http.StatusBadRequest, "INVALID_BODY", errors.New("query is required"))
    return
  }
  apiKey, ok := h.loadAPIKey(c, userID)
  if !ok {
    return
  }
  filters, err := req.Context.scopeFilters()
  if err != nil {
    RespondError(c, http.StatusBadRequest, "INVALID_FILTER", err)
    return
  }
  result, err := h.aggregationService.AggregateContext(c.Request.Context(), services.ContextQuery{
    UserID:      userID,
    APIKey:      apiKey,
    Query:       req.Query,
    ContextType: req.Context.contextType(),
    Items:       req.Context.Items,
    Filters:     filters,
    Limit:       req.Limit,
  })
  if err != nil {
    RespondError(c, http.StatusBadRequest, "SEARCH_FAILED", err)
    return
  }
  h.metrics.ObserveRetrieval(len(result.RetrievedChunks), result.TotalSources)
  RespondOK(c, result)
}

// POST /api/brain/conversations
func (h *BrainHandler) CreateConversation(c *gin.Context) {
  userID, ok := currentUserID(c)
  if !ok {
    return
  }
  var req struct {
    Title   string         `json:"title"`
    ModelID string         `json:"model_id"`
    Context contextRequest `json:"context"`
  }
  if err := c.ShouldBindJSON(&req); err != nil {
    RespondError(c, http.StatusBadRequest, "INVALID_BODY", errors.New("invalid request body"))
    return
  }
  conversation, err := h.chatService.CreateConversation(c.Request.Context(), userID, req.Title, req.ModelID, services.ConversationContext{
    Type:  req.Context.contextType(),
    Items: req.Context.Items,
  })
  if err != nil {
    RespondError(c, http.StatusBadRequest, "CREATE_FAILED", err)
    return
  }
  c.JSON(http.StatusCreated, gin.H{"conversation": conversation})
}

// GET /api/brain/conversations
func (h *BrainHandler) ListConversations(c *gin.Context) {
  userID, ok := currentUserID(c)
  if !ok {
    return
  }
  activeOnly := c.Query("active") == "true"
  conversations, err := h.chatService.ListConversations(c.Request.Context(), userID, activeOnly)
  if err != nil {
    RespondError(c, http.StatusBadRequest, "LIST_FAILED", err)
    return
  }
  RespondOK(c, gin.H{"conversations": conversations})
}

// GET /api/brain/conversations/:id
func (h *BrainHandler) GetConversation(c *gin.Context) {
  userID, ok := currentUserID(c)
  if !ok {
    return
  }
  conversationID, ok := pathUUID(c, "id")
  if !ok {
    return
  }
  conversation, err := h.chatService.GetConversation(c.Request.Context(), userID, conversationID)
  if err != nil {
    RespondError(c, http.StatusNotFound, "CONVERSATION_NOT_FOUND", err)
    return
  }
  RespondOK(c, gin.H{"conversation": conversation})
}

// POST /api/brain/conversations/:id/messages
// Appends a user turn and answers it with context retrieved under the
// conversation's saved scope.
func (h *BrainHandler) AppendMessage(c *gin.Context) {
  userID, ok := currentUserID(c)
  if !ok {
    return
  }
  conversationID, ok := pathUUID(c, "id")
  if !ok {
    return
  }
  var req struct {
    Content string `json:"content"`
  }
  if err := c.ShouldBindJSON(&req); err != nil {
    RespondError(c, http.StatusBadRequest, "INVALID_BODY", errors.New("invalid request body"))
    return
  }
  if strings.TrimSpace(req.Content) == "" {
    RespondError(c, http.StatusBadRequest, "INVALID_BODY", errors.New("content is required"))
    return
  }
  apiKey, ok := h.loadAPIKey(c, userID)
  if !ok {
    return
  }
  result, err := h.chatService.AppendMessage(c.Request.Context(), userID, conversationID, apiKey, req.Content)
  if err != nil {
    RespondError(c, http.StatusBadRequest, "MESSAGE_FAILED", err)
    return
  }
  h.metrics.ObserveRetrieval(len(result.RetrievedChunks), result.TotalSources)
  RespondOK(c, result)
}

// PUT /api/brain/conversations/:id/context
// Replaces the saved context selector; later messages retrieve under the
// new scope.
func (h *BrainHandler) UpdateConversationContext(c *gin.Context) {
  userID, ok := currentUserID(c)
  if !ok {
    return
  }
  conversationID, ok := pathUUID(c, "id")
  if !ok {
    return
  }
  var req contextRequest
  if err := c.ShouldBindJSON(&req); err != nil {
    RespondError(c, http.StatusBadRequest, "INVALID_BODY", errors.New("invalid request body"))
    return
  }
  err := h.chatService.UpdateContext(c.Request.Context(), userID, conversationID, services.ConversationContext{
    Type:  req.contextType(),
    Items: req.Items,
  })
  if err != nil {
    RespondError(c, http.StatusNotFound, "CONVERSATION_NOT_FOUND", err)
    return
  }
  RespondOK(c, gin.H{"success": "true"})
}

// DELETE /api/brain/conversations/:id
func (h *BrainHandler) ArchiveConversation(c *gin.Context) {
  userID, ok := currentUserID(c)
  if !ok {
    return
  }
  conversationID, ok := pathUUID(c, "id")
  if !ok {
    return
  }
  if err := h.chatService.Archive(c.Request.Context(), userID, conversationID); err != nil {
    RespondError(c, http.StatusNotFound, "CONVERSATION_NOT_FOUND", err)
    return
  }
  RespondOK(c, gin.H{"success": "true"})
}

// loadAPIKey fetches the caller's embedding key; search cannot run without
// one since each user brings their own.
func (h *BrainHandler) loadAPIKey(c *gin.Context, userID uuid.UUID) (string, bool) {
  user, err := h.userService.GetByID(c.Request.Context(), userID)
  if err != nil {
    RespondError(c, http.StatusBadRequest, "USER_NOT_FOUND", err)
    return "", false
  }
  if strings.TrimSpace(user.GeminiAPIKey) == "" {
    RespondError(c, http.StatusBadRequest, "API_KEY_NOT_FOUND", errors.New("no embedding api key configured"))
    return "", false
  }
  return user.GeminiAPIKey, true
}
