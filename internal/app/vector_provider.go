package app

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/deepen-live/deepen-backend/internal/platform/logger"
	"github.com/deepen-live/deepen-backend/internal/platform/qdrant"
)

var newQdrantStore = qdrant.NewStore

type VectorBootstrapErrorCode string

const (
	VectorBootstrapErrorInvalidConfig VectorBootstrapErrorCode = "invalid_config"
	VectorBootstrapErrorInitFailed    VectorBootstrapErrorCode = "init_failed"
)

type VectorBootstrapError struct {
	Code  VectorBootstrapErrorCode
	Cause error
}

func (e *VectorBootstrapError) Error() string {
	if e == nil {
		return "vector store bootstrap failed"
	}
	return fmt.Sprintf("vector store bootstrap failed (code=%s): %v", e.Code, e.Cause)
}

func (e *VectorBootstrapError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// ResolveVectorStore builds the Qdrant-backed store from the environment.
// A missing QDRANT_URL disables vector search with a warning instead of
// failing startup; anything else wrong with the config is a typed error.
func ResolveVectorStore(log *logger.Logger) (qdrant.Store, error) {
	if strings.TrimSpace(os.Getenv("QDRANT_URL")) == "" {
		log.Warn("QDRANT_URL not set; vector search disabled")
		return nil, nil
	}

	cfg, err := qdrant.ResolveConfigFromEnv()
	if err != nil {
		return nil, classifyVectorBootstrapError(err)
	}

	log.Info(
		"Selecting vector store",
		"qdrant_url", cfg.URL,
		"qdrant_collection", cfg.Collection,
		"qdrant_vector_dim", cfg.VectorDim,
	)
	store, err := newQdrantStore(log, cfg)
	if err != nil {
		return nil, classifyVectorBootstrapError(err)
	}
	return store, nil
}

func classifyVectorBootstrapError(err error) error {
	var cfgErr *qdrant.ConfigError
	if errors.As(err, &cfgErr) {
		return &VectorBootstrapError{Code: VectorBootstrapErrorInvalidConfig, Cause: err}
	}
	return &VectorBootstrapError{Code: VectorBootstrapErrorInitFailed, Cause: err}
}
