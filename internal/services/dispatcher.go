package services

import (
  "context"
  "github.com/google/uuid"
  "github.com/deepen-live/deepen-backend/internal/platform/logger"
  "github.com/deepen-live/deepen-backend/internal/platform/retry"
)

// EmbeddingJobAction selects what an embedding job does with a capture.
type EmbeddingJobAction string

const (
  EmbeddingActionIndex  EmbeddingJobAction = "index"
  EmbeddingActionDelete EmbeddingJobAction = "delete"
)

// EmbeddingJob is one async indexing request.
type EmbeddingJob struct {
  CaptureID uuid.UUID          `json:"capture_id"`
  UserID    uuid.UUID          `json:"user_id"`
  Action    EmbeddingJobAction `json:"action"`
}

// EmbeddingDispatcher hands embedding jobs to the async layer. The Temporal
// implementation lives in temporalx; LocalDispatcher runs jobs in-process
// when no Temporal server is configured.
type EmbeddingDispatcher interface {
  Dispatch(ctx context.Context, job EmbeddingJob) error
}

// EmbeddingJobRunner executes one job to completion. Implemented by the
// embedding job package; both dispatchers delegate to it.
type EmbeddingJobRunner interface {
  Run(ctx context.Context, job EmbeddingJob) error
}

type localDispatcher struct {
  log    *logger.Logger
  runner EmbeddingJobRunner
}

// NewLocalDispatcher runs jobs on a goroutine with the task retry policy.
// Jobs survive only as long as the process does.
func NewLocalDispatcher(log *logger.Logger, runner EmbeddingJobRunner) EmbeddingDispatcher {
  serviceLog := log.With("service", "LocalDispatcher")
  return &localDispatcher{log: serviceLog, runner: runner}
}

func (ld *localDispatcher) Dispatch(ctx context.Context, job EmbeddingJob) error {
  go func() {
    // Detached from the request context: the job outlives the HTTP call.
    jobCtx := context.Background()
    err := retry.Do(jobCtx, ld.log, "embedding_job", retry.TaskPolicy(), func(ctx context.Context) error {
      return ld.runner.Run(ctx, job)
    })
    if err != nil {
      ld.log.Error("Embedding job failed",
        "capture_id", job.CaptureID.String(),
        "user_id", job.UserID.String(),
        "action", string(job.Action),
        "error", err.Error(),
      )
    }
  }()
  return nil
}
