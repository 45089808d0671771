package temporalx

import (
	"context"
	"fmt"

	temporalsdkclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/deepen-live/deepen-backend/internal/jobs/embedding"
	"github.com/deepen-live/deepen-backend/internal/platform/envutil"
	"github.com/deepen-live/deepen-backend/internal/platform/logger"
)

// Runner polls the task queue and executes embedding workflows.
type Runner struct {
	log        *logger.Logger
	tc         temporalsdkclient.Client
	activities *embedding.Activities
}

func NewRunner(log *logger.Logger, tc temporalsdkclient.Client, activities *embedding.Activities) (*Runner, error) {
	if tc == nil {
		return nil, fmt.Errorf("temporal client is not configured")
	}
	if activities == nil || activities.Runner == nil {
		return nil, fmt.Errorf("temporal worker missing activities")
	}
	return &Runner{
		log:        log.With("service", "TemporalWorker"),
		tc:         tc,
		activities: activities,
	}, nil
}

func (r *Runner) Start(ctx context.Context) error {
	cfg := LoadConfig()
	r.log.Info("Starting Temporal worker",
		"address", cfg.Address,
		"namespace", cfg.Namespace,
		"task_queue", cfg.TaskQueue,
	)

	concurrency := envutil.Int("WORKER_CONCURRENCY", 4)
	if concurrency < 1 {
		concurrency = 1
	}
	w := worker.New(r.tc, cfg.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     concurrency,
		MaxConcurrentWorkflowTaskExecutionSize: concurrency,
	})
	w.RegisterWorkflowWithOptions(embedding.Workflow, workflow.RegisterOptions{Name: embedding.WorkflowName})
	w.RegisterActivity(r.activities.RunEmbeddingJob)

	if err := w.Start(); err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		w.Stop()
	}()
	r.log.Info("Temporal worker started", "namespace", cfg.Namespace, "task_queue", cfg.TaskQueue)
	return nil
}
