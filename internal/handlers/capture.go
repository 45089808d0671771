package handlers

import (
  "errors"
  "net/http"
  "strconv"
  "time"

  "github.com/gin-gonic/gin"

  "github.com/deepen-live/deepen-backend/internal/platform/logger"
  "github.com/deepen-live/deepen-backend/internal/repos"
  "github.com/deepen-live/deepen-backend/internal/services"
)

type CaptureHandler struct {
  log            *logger.Logger
  captureService services.CaptureService
}

func NewCaptureHandler(log *logger.Logger, captureService services.CaptureService) *CaptureHandler {
  return &CaptureHandler{
    log:            log.With("handler", "CaptureHandler"),
    captureService: captureService,
  }
}

// POST /api/captures
// Persists a web capture and enqueues async indexing of its text.
func (h *CaptureHandler) Create(c *gin.Context) {
  userID, ok := currentUserID(c)
  if !ok {
    return
  }
  var req struct {
    Title       string `json:"title"`
    URL         string `json:"url"`
    ContentType string `json:"content_type"`
    CleanText   string `json:"clean_text"`
  }
  if err := c.ShouldBindJSON(&req); err != nil {
    RespondError(c, http.StatusBadRequest, "INVALID_BODY", errors.New("invalid request body"))
    return
  }
  capture, err := h.captureService.Create(c.Request.Context(), userID, services.CreateCaptureInput{
    Title:       req.Title,
    URL:         req.URL,
    ContentType: req.ContentType,
    CleanText:   req.CleanText,
  })
  if err != nil {
    RespondError(c, http.StatusBadRequest, "CREATE_FAILED", err)
    return
  }
  c.JSON(http.StatusCreated, gin.H{"capture": capture})
}

// GET /api/captures
func (h *CaptureHandler) List(c *gin.Context) {
  userID, ok := currentUserID(c)
  if !ok {
    return
  }
  filter, err := parseCaptureFilter(c)
  if err != nil {
    RespondError(c, http.StatusBadRequest, "INVALID_FILTER", err)
    return
  }
  captures, err := h.captureService.List(c.Request.Context(), userID, filter)
  if err != nil {
    RespondError(c, http.StatusBadRequest, "LIST_FAILED", err)
    return
  }
  RespondOK(c, gin.H{"captures": captures})
}

// GET /api/captures/:id
func (h *CaptureHandler) Get(c *gin.Context) {
  userID, ok := currentUserID(c)
  if !ok {
    return
  }
  captureID, ok := pathUUID(c, "id")
  if !ok {
    return
  }
  capture, err := h.captureService.Get(c.Request.Context(), userID, captureID)
  if err != nil {
    RespondError(c, http.StatusNotFound, "CAPTURE_NOT_FOUND", err)
    return
  }
  RespondOK(c, gin.H{"capture": capture})
}

// PUT /api/captures/:id/bookmark
func (h *CaptureHandler) SetBookmarked(c *gin.Context) {
  userID, ok := currentUserID(c)
  if !ok {
    return
  }
  captureID, ok := pathUUID(c, "id")
  if !ok {
    return
  }
  var req struct {
    Bookmarked bool `json:"bookmarked"`
  }
  if err := c.ShouldBindJSON(&req); err != nil {
    RespondError(c, http.StatusBadRequest, "INVALID_BODY", errors.New("invalid request body"))
    return
  }
  if err := h.captureService.SetBookmarked(c.Request.Context(), userID, captureID, req.Bookmarked); err != nil {
    RespondError(c, http.StatusNotFound, "CAPTURE_NOT_FOUND", err)
    return
  }
  RespondOK(c, gin.H{"success": "true"})
}

// DELETE /api/captures/:id
// Soft-deletes the capture and enqueues removal of its vectors.
func (h *CaptureHandler) Delete(c *gin.Context) {
  userID, ok := currentUserID(c)
  if !ok {
    return
  }
  captureID, ok := pathUUID(c, "id")
  if !ok {
    return
  }
  if err := h.captureService.Delete(c.Request.Context(), userID, captureID); err != nil {
    RespondError(c, http.StatusNotFound, "CAPTURE_NOT_FOUND", err)
    return
  }
  RespondOK(c, gin.H{"success": "true"})
}

func parseCaptureFilter(c *gin.Context) (repos.CaptureFilter, error) {
  var filter repos.CaptureFilter
  if v := c.Query("bookmarked"); v != "" {
    b, err := strconv.ParseBool(v)
    if err != nil {
      return filter, errors.New("invalid bookmarked value")
    }
    filter.Bookmarked = &b
  }
  filter.ContentType = c.Query("content_type")
  if v := c.Query("created_after"); v != "" {
    t, err := time.Parse(time.RFC3339, v)
    if err != nil {
      return filter, errors.New("invalid created_after value")
    }
    filter.CreatedAfter = &t
  }
  if v := c.Query("created_before"); v != "" {
    t, err := time.Parse(time.RFC3339, v)
    if err != nil {
      return filter, errors.New("invalid created_before value")
    }
    filter.CreatedBefore = &t
  }
  if v := c.Query("limit"); v != "" {
    n, err := strconv.Atoi(v)
    if err != nil || n < 0 {
      return filter, errors.New("invalid limit value")
    }
    filter.Limit = n
  }
  return filter, nil
}
