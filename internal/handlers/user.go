package handlers

import (
  "errors"
  "net/http"
  "strings"

  "github.com/gin-gonic/gin"

  "github.com/deepen-live/deepen-backend/internal/platform/logger"
  "github.com/deepen-live/deepen-backend/internal/services"
)

type UserHandler struct {
  log         *logger.Logger
  userService services.UserService
}

func NewUserHandler(log *logger.Logger, userService services.UserService) *UserHandler {
  return &UserHandler{
    log:         log.With("handler", "UserHandler"),
    userService: userService,
  }
}

// GET /api/user
func (uh *UserHandler) GetMe(c *gin.Context) {
  userID, ok := currentUserID(c)
  if !ok {
    return
  }
  me, err := uh.userService.GetByID(c.Request.Context(), userID)
  if err != nil {
    RespondError(c, http.StatusBadRequest, "USER_NOT_FOUND", err)
    return
  }
  RespondOK(c, gin.H{"me": me, "has_api_key": me.GeminiAPIKey != ""})
}

// PUT /api/user/gemini-key
// Stores the caller's own embedding-provider key. Indexing and search are
// unavailable until one is set.
func (uh *UserHandler) SetGeminiKey(c *gin.Context) {
  userID, ok := currentUserID(c)
  if !ok {
    return
  }
  var req struct {
    APIKey string `json:"api_key"`
  }
  if err := c.ShouldBindJSON(&req); err != nil {
    RespondError(c, http.StatusBadRequest, "INVALID_BODY", errors.New("invalid request body"))
    return
  }
  if strings.TrimSpace(req.APIKey) == "" {
    RespondError(c, http.StatusBadRequest, "INVALID_BODY", errors.New("api_key is required"))
    return
  }
  if err := uh.userService.SetGeminiAPIKey(c.Request.Context(), userID, strings.TrimSpace(req.APIKey)); err != nil {
    RespondError(c, http.StatusBadRequest, "UPDATE_FAILED", err)
    return
  }
  RespondOK(c, gin.H{"success": "true"})
}
