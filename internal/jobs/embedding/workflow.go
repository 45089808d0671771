package embedding

import (
	"context"
	"errors"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/deepen-live/deepen-backend/internal/platform/retry"
	"github.com/deepen-live/deepen-backend/internal/services"
)

const WorkflowName = "embedding_process"

// Activities wraps the Runner for Temporal registration.
type Activities struct {
	Runner *Runner
}

func (a *Activities) RunEmbeddingJob(ctx context.Context, job services.EmbeddingJob) error {
	err := a.Runner.Run(ctx, job)
	if err == nil {
		return nil
	}

	// Terminal codes become typed application errors so the workflow's
	// NonRetryableErrorTypes list can match on them.
	var permanent *retry.PermanentError
	if errors.As(err, &permanent) {
		err = permanent.Err
	}
	var terminalErr *TerminalError
	if errors.As(err, &terminalErr) {
		return temporal.NewApplicationError(terminalErr.Message, terminalErr.Code)
	}
	return err
}

// Workflow runs one embedding job with bounded retries. Terminal codes never
// retry; everything else gets three attempts with 1.8x backoff between 5s
// and 30s.
func Workflow(ctx workflow.Context, job services.EmbeddingJob) error {
	options := workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    5 * time.Second,
			BackoffCoefficient: 1.8,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    3,
			NonRetryableErrorTypes: []string{
				CodeAPIKeyNotFound,
				CodeCaptureNotFound,
				CodeNoTextContent,
				CodeTextTooShort,
			},
		},
	}
	ctx = workflow.WithActivityOptions(ctx, options)

	var activities *Activities
	return workflow.ExecuteActivity(ctx, activities.RunEmbeddingJob, job).Get(ctx, nil)
}
