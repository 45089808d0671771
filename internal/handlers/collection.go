package handlers

import (
  "errors"
  "net/http"

  "github.com/gin-gonic/gin"
  "github.com/google/uuid"

  "github.com/deepen-live/deepen-backend/internal/platform/logger"
  "github.com/deepen-live/deepen-backend/internal/services"
)

type CollectionHandler struct {
  log               *logger.Logger
  collectionService services.CollectionService
}

func NewCollectionHandler(log *logger.Logger, collectionService services.CollectionService) *CollectionHandler {
  return &CollectionHandler{
    log:               log.With("handler", "CollectionHandler"),
    collectionService: collectionService,
  }
}

// POST /api/collections
func (h *CollectionHandler) Create(c *gin.Context) {
  userID, ok := currentUserID(c)
  if !ok {
    return
  }
  var req struct {
    Name        string      `json:"name"`
    Description string      `json:"description"`
    CaptureIDs  []uuid.UUID `json:"capture_ids"`
  }
  if err := c.ShouldBindJSON(&req); err != nil {
    RespondError(c, http.StatusBadRequest, "INVALID_BODY", errors.New("invalid request body"))
    return
  }
  collection, err := h.collectionService.Create(c.Request.Context(), userID, req.Name, req.Description, req.CaptureIDs)
  if err != nil {
    RespondError(c, http.StatusBadRequest, "CREATE_FAILED", err)
    return
  }
  c.JSON(http.StatusCreated, gin.H{"collection": collection})
}

// GET /api/collections
func (h *CollectionHandler) List(c *gin.Context) {
  userID, ok := currentUserID(c)
  if !ok {
    return
  }
  collections, err := h.collectionService.List(c.Request.Context(), userID)
  if err != nil {
    RespondError(c, http.StatusBadRequest, "LIST_FAILED", err)
    return
  }
  RespondOK(c, gin.H{"collections": collections})
}

// POST /api/collections/:id/captures
// Foreign or deleted captures are rejected outright on this write path.
func (h *CollectionHandler) AddCaptures(c *gin.Context) {
  userID, ok := currentUserID(c)
  if !ok {
    return
  }
  collectionID, ok := pathUUID(c, "id")
  if !ok {
    return
  }
  var req struct {
    CaptureIDs []uuid.UUID `json:"capture_ids"`
  }
  if err := c.ShouldBindJSON(&req); err != nil {
    RespondError(c, http.StatusBadRequest, "INVALID_BODY", errors.New("invalid request body"))
    return
  }
  if err := h.collectionService.AddCaptures(c.Request.Context(), userID, collectionID, req.CaptureIDs); err != nil {
    RespondError(c, http.StatusBadRequest, "ADD_FAILED", err)
    return
  }
  RespondOK(c, gin.H{"success": "true"})
}

// DELETE /api/collections/:id/captures/:captureId
func (h *CollectionHandler) RemoveCapture(c *gin.Context) {
  userID, ok := currentUserID(c)
  if !ok {
    return
  }
  collectionID, ok := pathUUID(c, "id")
  if !ok {
    return
  }
  captureID, ok := pathUUID(c, "captureId")
  if !ok {
    return
  }
  if err := h.collectionService.RemoveCapture(c.Request.Context(), userID, collectionID, captureID); err != nil {
    RespondError(c, http.StatusNotFound, "COLLECTION_NOT_FOUND", err)
    return
  }
  RespondOK(c, gin.H{"success": "true"})
}

// DELETE /api/collections/:id
// Deletes the collection only; member captures are untouched.
func (h *CollectionHandler) Delete(c *gin.Context) {
  userID, ok := currentUserID(c)
  if !ok {
    return
  }
  collectionID, ok := pathUUID(c, "id")
  if !ok {
    return
  }
  if err := h.collectionService.Delete(c.Request.Context(), userID, collectionID); err != nil {
    RespondError(c, http.StatusNotFound, "COLLECTION_NOT_FOUND", err)
    return
  }
  RespondOK(c, gin.H{"success": "true"})
}
