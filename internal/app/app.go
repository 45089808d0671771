package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	temporalsdkclient "go.temporal.io/sdk/client"
	"gorm.io/gorm"

	"github.com/deepen-live/deepen-backend/internal/chunker"
	"github.com/deepen-live/deepen-backend/internal/db"
	"github.com/deepen-live/deepen-backend/internal/handlers"
	"github.com/deepen-live/deepen-backend/internal/jobs/embedding"
	"github.com/deepen-live/deepen-backend/internal/middleware"
	"github.com/deepen-live/deepen-backend/internal/observability"
	"github.com/deepen-live/deepen-backend/internal/platform/envutil"
	"github.com/deepen-live/deepen-backend/internal/platform/gemini"
	"github.com/deepen-live/deepen-backend/internal/platform/logger"
	"github.com/deepen-live/deepen-backend/internal/platform/qdrant"
	"github.com/deepen-live/deepen-backend/internal/repos"
	"github.com/deepen-live/deepen-backend/internal/server"
	"github.com/deepen-live/deepen-backend/internal/services"
	"github.com/deepen-live/deepen-backend/internal/temporalx"
)

type Repos struct {
	User         repos.UserRepo
	UserToken    repos.UserTokenRepo
	Capture      repos.CaptureRepo
	Collection   repos.CollectionRepo
	Conversation repos.ConversationRepo
}

type Services struct {
	Auth        services.AuthService
	User        services.UserService
	Capture     services.CaptureService
	Collection  services.CollectionService
	Chat        services.ChatService
	Scope       services.ContextScopeService
	Search      services.RAGSearchService
	Aggregation services.AggregationService
	Indexing    services.IndexingService
	Dispatcher  services.EmbeddingDispatcher
}

type App struct {
	Log         *logger.Logger
	DB          *gorm.DB
	Router      *gin.Engine
	Cfg         Config
	Repos       Repos
	Services    Services
	Metrics     *observability.Metrics
	VectorStore qdrant.Store

	temporalClient temporalsdkclient.Client
	worker         *temporalx.Runner
	otelShutdown   func(context.Context) error
	cancel         context.CancelFunc
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg := LoadConfig(log)

	metrics := observability.Init(log)
	otelShutdown := observability.InitOTel(context.Background(), log, observability.OtelConfig{
		ServiceName: "deepen-backend",
		Environment: cfg.Environment,
		Version:     cfg.Version,
	})

	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if err := pg.AutoMigrateAll(); err != nil {
		log.Sync()
		return nil, fmt.Errorf("postgres automigrate: %w", err)
	}
	theDB := pg.DB()

	reposet := Repos{
		User:         repos.NewUserRepo(theDB, log),
		UserToken:    repos.NewUserTokenRepo(theDB, log),
		Capture:      repos.NewCaptureRepo(theDB, log),
		Collection:   repos.NewCollectionRepo(theDB, log),
		Conversation: repos.NewConversationRepo(theDB, log),
	}

	store, err := ResolveVectorStore(log)
	if err != nil {
		log.Sync()
		return nil, err
	}
	if store == nil {
		store = disabledVectorStore{}
	} else {
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := store.Ping(pingCtx); err != nil {
			log.Warn("Vector store unreachable at startup", "error", err.Error())
		}
		cancel()
	}
	store = instrumentVectorStore(store, metrics)

	embedClient, err := gemini.NewClient(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init embedding client: %w", err)
	}

	split := chunker.NewWordChunker(
		envutil.Int("CHUNK_MAX_CHARS", chunker.DefaultMaxChars),
		envutil.Int("CHUNK_OVERLAP_CHARS", chunker.DefaultOverlapChars),
	)

	vectorDim := envutil.Int("QDRANT_VECTOR_DIM", qdrant.DefaultVectorDim)

	indexing := services.NewIndexingService(log, embedClient, store, split, vectorDim)
	scope := services.NewContextScopeService(log, reposet.Capture, reposet.Collection)
	search := services.NewRAGSearchService(log, embedClient, store)
	aggregation := services.NewAggregationService(log, scope, search, reposet.Capture)

	jobRunner := embedding.NewRunner(log, reposet.Capture, reposet.User, indexing)

	tc, err := temporalx.NewClient(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init temporal client: %w", err)
	}
	var dispatcher services.EmbeddingDispatcher
	var worker *temporalx.Runner
	if tc != nil {
		dispatcher, err = temporalx.NewEmbeddingDispatcher(log, tc)
		if err != nil {
			tc.Close()
			log.Sync()
			return nil, fmt.Errorf("init embedding dispatcher: %w", err)
		}
		worker, err = temporalx.NewRunner(log, tc, &embedding.Activities{Runner: jobRunner})
		if err != nil {
			tc.Close()
			log.Sync()
			return nil, fmt.Errorf("init temporal worker: %w", err)
		}
	} else {
		dispatcher = services.NewLocalDispatcher(log, jobRunner)
	}

	serviceset := Services{
		Auth:        services.NewAuthService(theDB, log, reposet.User, reposet.UserToken, cfg.JWTSecretKey, cfg.AccessTokenTTL, cfg.RefreshTokenTTL),
		User:        services.NewUserService(theDB, log, reposet.User),
		Capture:     services.NewCaptureService(theDB, log, reposet.Capture, dispatcher),
		Collection:  services.NewCollectionService(theDB, log, reposet.Collection, reposet.Capture),
		Scope:       scope,
		Search:      search,
		Aggregation: aggregation,
		Indexing:    indexing,
		Dispatcher:  dispatcher,
	}
	serviceset.Chat = services.NewChatService(theDB, log, reposet.Conversation, aggregation)

	authHandler := handlers.NewAuthHandler(serviceset.Auth)
	userHandler := handlers.NewUserHandler(log, serviceset.User)
	captureHandler := handlers.NewCaptureHandler(log, serviceset.Capture)
	collectionHandler := handlers.NewCollectionHandler(log, serviceset.Collection)
	brainHandler := handlers.NewBrainHandler(log, serviceset.User, serviceset.Aggregation, serviceset.Chat, metrics)
	authMiddleware := middleware.NewAuthMiddleware(log, serviceset.Auth)

	router := server.NewRouter(server.RouterConfig{
		AuthHandler:       authHandler,
		AuthMiddleware:    authMiddleware,
		UserHandler:       userHandler,
		CaptureHandler:    captureHandler,
		CollectionHandler: collectionHandler,
		BrainHandler:      brainHandler,
		Metrics:           metrics,
	})

	return &App{
		Log:            log,
		DB:             theDB,
		Router:         router,
		Cfg:            cfg,
		Repos:          reposet,
		Services:       serviceset,
		Metrics:        metrics,
		VectorStore:    store,
		temporalClient: tc,
		worker:         worker,
		otelShutdown:   otelShutdown,
	}, nil
}

// Start launches the background pieces: the Temporal worker (when configured)
// and the metrics collectors and exposition server.
func (a *App) Start() error {
	if a == nil || a.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	if a.worker != nil {
		if err := a.worker.Start(ctx); err != nil {
			return fmt.Errorf("start temporal worker: %w", err)
		}
	}
	if a.Metrics != nil {
		a.Metrics.StartServer(ctx, a.Log, a.Cfg.MetricsAddr)
		a.Metrics.StartPostgresCollector(ctx, a.Log, a.DB)
		a.Metrics.StartVectorCollector(ctx, a.Log, a.VectorStore)
	}
	return nil
}

func (a *App) Run(addr string) error {
	if a == nil || a.Router == nil {
		return fmt.Errorf("app not initialized")
	}
	return a.Router.Run(addr)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.temporalClient != nil {
		a.temporalClient.Close()
	}
	if a.otelShutdown != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = a.otelShutdown(shutdownCtx)
		cancel()
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
