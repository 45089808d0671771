package server

import (
  "os"
  "strings"

  "github.com/gin-contrib/cors"
  "github.com/gin-gonic/gin"
  "go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

  "github.com/deepen-live/deepen-backend/internal/handlers"
  "github.com/deepen-live/deepen-backend/internal/middleware"
  "github.com/deepen-live/deepen-backend/internal/observability"
)

type RouterConfig struct {
  AuthHandler       *handlers.AuthHandler
  AuthMiddleware    *middleware.AuthMiddleware
  UserHandler       *handlers.UserHandler
  CaptureHandler    *handlers.CaptureHandler
  CollectionHandler *handlers.CollectionHandler
  BrainHandler      *handlers.BrainHandler
  Metrics           *observability.Metrics
}

func NewRouter(cfg RouterConfig) *gin.Engine {
  router := gin.Default()

  router.Use(otelgin.Middleware("deepen-backend"))
  router.Use(middleware.ObserveRequests(cfg.Metrics))

  // Cors
  router.Use(cors.New(cors.Config{
    AllowOrigins:     allowedOrigins(),
    AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
    AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
    AllowCredentials: true,
  }))

  // ===============
  // || Public    ||
  // ===============
  router.GET("/healthcheck", handlers.HealthCheck)
  api := router.Group("/api")
  {
    api.POST("/register", cfg.AuthHandler.Register)
    api.POST("/login", cfg.AuthHandler.Login)
    api.POST("/refresh", cfg.AuthHandler.Refresh)
  }

  // ===============
  // || Protected ||
  // ===============
  protected := router.Group("/api")
  protected.Use(cfg.AuthMiddleware.RequireAuth())
  // Auth
  protected.POST("/logout", cfg.AuthHandler.Logout)
  // User
  protected.GET("/user", cfg.UserHandler.GetMe)
  protected.PUT("/user/gemini-key", cfg.UserHandler.SetGeminiKey)
  // Captures
  protected.POST("/captures", cfg.CaptureHandler.Create)
  protected.GET("/captures", cfg.CaptureHandler.List)
  protected.GET("/captures/:id", cfg.CaptureHandler.Get)
  protected.PUT("/captures/:id/bookmark", cfg.CaptureHandler.SetBookmarked)
  protected.DELETE("/captures/:id", cfg.CaptureHandler.Delete)
  // Collections
  protected.POST("/collections", cfg.CollectionHandler.Create)
  protected.GET("/collections", cfg.CollectionHandler.List)
  protected.POST("/collections/:id/captures", cfg.CollectionHandler.AddCaptures)
  protected.DELETE("/collections/:id/captures/:captureId", cfg.CollectionHandler.RemoveCapture)
  protected.DELETE("/collections/:id", cfg.CollectionHandler.Delete)
  // Brain
  protected.POST("/brain/search", cfg.BrainHandler.Search)
  protected.POST("/brain/conversations", cfg.BrainHandler.CreateConversation)
  protected.GET("/brain/conversations", cfg.BrainHandler.ListConversations)
  protected.GET("/brain/conversations/:id", cfg.BrainHandler.GetConversation)
  protected.POST("/brain/conversations/:id/messages", cfg.BrainHandler.AppendMessage)
  protected.PUT("/brain/conversations/:id/context", cfg.BrainHandler.UpdateConversationContext)
  protected.DELETE("/brain/conversations/:id", cfg.BrainHandler.ArchiveConversation)

  return router
}

func allowedOrigins() []string {
  raw := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
  if raw == "" {
    return []string{
      "http://localhost:80",
      "http://localhost:3000",
      "http://localhost:5174",
    }
  }
  var origins []string
  for _, part := range strings.Split(raw, ",") {
    part = strings.TrimSpace(part)
    if part != "" {
      origins = append(origins, part)
    }
  }
  return origins
}
