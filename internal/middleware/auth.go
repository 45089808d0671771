package middleware

import (
  "net/http"
  "strconv"
  "strings"
  "time"

  "github.com/gin-gonic/gin"
  "github.com/google/uuid"

  "github.com/deepen-live/deepen-backend/internal/observability"
  "github.com/deepen-live/deepen-backend/internal/platform/logger"
  "github.com/deepen-live/deepen-backend/internal/requestdata"
  "github.com/deepen-live/deepen-backend/internal/services"
)

type AuthMiddleware struct {
  log         *logger.Logger
  authService services.AuthService
}

func NewAuthMiddleware(log *logger.Logger, authService services.AuthService) *AuthMiddleware {
  middlewareLogger := log.With("middleware", "AuthMiddleware")
  return &AuthMiddleware{log: middlewareLogger, authService: authService}
}

// RequireAuth validates the bearer token and stashes the caller's identity
// in the request context. Everything behind it can assume a valid UserID.
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
  return func(c *gin.Context) {
    tokenString := extractBearerToken(c)
    if tokenString == "" {
      c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid token"})
      return
    }
    ctx, err := am.authService.SetContextFromToken(c.Request.Context(), tokenString)
    if err != nil {
      c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid token"})
      return
    }
    c.Request = c.Request.WithContext(ctx)
    rd := requestdata.GetRequestData(ctx)
    if rd == nil || rd.UserID == uuid.Nil {
      c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
      return
    }
    c.Next()
  }
}

func extractBearerToken(c *gin.Context) string {
  authHeader := c.GetHeader("Authorization")
  if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
    return strings.TrimSpace(authHeader[7:])
  }
  return ""
}

// ObserveRequests records per-route request counts and latency. No-op when
// metrics are disabled.
func ObserveRequests(metrics *observability.Metrics) gin.HandlerFunc {
  return func(c *gin.Context) {
    if metrics == nil {
      c.Next()
      return
    }
    start := time.Now()
    metrics.ApiInflightInc()
    c.Next()
    metrics.ApiInflightDec()
    route := c.FullPath()
    if route == "" {
      route = "unmatched"
    }
    metrics.ObserveAPI(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(start))
  }
}
