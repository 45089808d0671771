package temporalx

import (
	"context"
	"fmt"

	temporalsdkclient "go.temporal.io/sdk/client"

	"github.com/deepen-live/deepen-backend/internal/jobs/embedding"
	"github.com/deepen-live/deepen-backend/internal/platform/logger"
	"github.com/deepen-live/deepen-backend/internal/services"
)

type embeddingDispatcher struct {
	log       *logger.Logger
	tc        temporalsdkclient.Client
	taskQueue string
}

// NewEmbeddingDispatcher starts one workflow per embedding job. The workflow
// id is derived from the capture and action so a duplicate dispatch of a
// still-running job is rejected by the server, not run twice.
func NewEmbeddingDispatcher(log *logger.Logger, tc temporalsdkclient.Client) (services.EmbeddingDispatcher, error) {
	if tc == nil {
		return nil, fmt.Errorf("temporal client is not configured")
	}
	cfg := LoadConfig()
	return &embeddingDispatcher{
		log:       log.With("service", "TemporalEmbeddingDispatcher"),
		tc:        tc,
		taskQueue: cfg.TaskQueue,
	}, nil
}

func (d *embeddingDispatcher) Dispatch(ctx context.Context, job services.EmbeddingJob) error {
	options := temporalsdkclient.StartWorkflowOptions{
		ID:        fmt.Sprintf("embedding-%s-%s", job.Action, job.CaptureID),
		TaskQueue: d.taskQueue,
	}
	run, err := d.tc.ExecuteWorkflow(ctx, options, embedding.WorkflowName, job)
	if err != nil {
		return fmt.Errorf("Failed to start embedding workflow: %w", err)
	}
	d.log.Info("Dispatched embedding job",
		"capture_id", job.CaptureID.String(),
		"action", string(job.Action),
		"workflow_id", run.GetID(),
		"run_id", run.GetRunID(),
	)
	return nil
}
