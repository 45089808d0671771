package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/deepen-live/deepen-backend/internal/platform/logger"
	"github.com/deepen-live/deepen-backend/internal/platform/retry"
	"github.com/deepen-live/deepen-backend/internal/repos"
	"github.com/deepen-live/deepen-backend/internal/services"
	"github.com/deepen-live/deepen-backend/internal/types"
)

// MinIndexableChars is the floor below which capture text is not worth
// embedding.
const MinIndexableChars = 50

// Runner executes one embedding job end to end: load the capture and the
// owner's key, index or delete, and record the processing status. It backs
// both the Temporal activity and the in-process dispatcher.
type Runner struct {
	log         *logger.Logger
	captureRepo repos.CaptureRepo
	userRepo    repos.UserRepo
	indexing    services.IndexingService
}

func NewRunner(log *logger.Logger, captureRepo repos.CaptureRepo, userRepo repos.UserRepo, indexing services.IndexingService) *Runner {
	return &Runner{
		log:         log.With("service", "EmbeddingRunner"),
		captureRepo: captureRepo,
		userRepo:    userRepo,
		indexing:    indexing,
	}
}

func (r *Runner) Run(ctx context.Context, job services.EmbeddingJob) error {
	switch job.Action {
	case services.EmbeddingActionIndex:
		return r.runIndex(ctx, job)
	case services.EmbeddingActionDelete:
		return r.runDelete(ctx, job)
	default:
		return retry.Permanent(fmt.Errorf("unknown embedding job action %q", job.Action))
	}
}

func (r *Runner) runIndex(ctx context.Context, job services.EmbeddingJob) error {
	if err := r.captureRepo.UpdateProcessingStatus(ctx, nil, job.CaptureID, types.ProcessingStatusProcessing, ""); err != nil {
		r.log.Warn("Failed to mark capture processing", "capture_id", job.CaptureID.String(), "error", err.Error())
	}

	err := r.executeIndex(ctx, job)
	if err == nil {
		if sErr := r.captureRepo.UpdateProcessingStatus(ctx, nil, job.CaptureID, types.ProcessingStatusCompleted, ""); sErr != nil {
			r.log.Warn("Failed to mark capture completed", "capture_id", job.CaptureID.String(), "error", sErr.Error())
		}
		return nil
	}

	if sErr := r.captureRepo.UpdateProcessingStatus(ctx, nil, job.CaptureID, types.ProcessingStatusFailed, err.Error()); sErr != nil {
		r.log.Warn("Failed to mark capture failed", "capture_id", job.CaptureID.String(), "error", sErr.Error())
	}

	var terminalErr *TerminalError
	if errors.As(err, &terminalErr) {
		return retry.Permanent(err)
	}
	return err
}

func (r *Runner) executeIndex(ctx context.Context, job services.EmbeddingJob) error {
	text, apiKey, err := r.prepare(ctx, job.CaptureID, job.UserID)
	if err != nil {
		return err
	}
	if _, err := r.indexing.IndexCapture(ctx, text, job.CaptureID, job.UserID, apiKey); err != nil {
		return err
	}
	return nil
}

// prepare loads the capture and the owner's embedding key, translating every
// unrecoverable precondition into a terminal code.
func (r *Runner) prepare(ctx context.Context, captureID, userID uuid.UUID) (string, string, error) {
	users, err := r.userRepo.GetByIDs(ctx, nil, []uuid.UUID{userID})
	if err != nil {
		return "", "", fmt.Errorf("Failed to load user: %w", err)
	}
	if len(users) == 0 {
		return "", "", terminal(CodeCaptureNotFound, "owner %s not found", userID)
	}
	apiKey := strings.TrimSpace(users[0].GeminiAPIKey)
	if apiKey == "" {
		return "", "", terminal(CodeAPIKeyNotFound, "user %s has no embedding api key", userID)
	}

	captures, err := r.captureRepo.GetByIDsOwned(ctx, nil, userID, []uuid.UUID{captureID})
	if err != nil {
		return "", "", fmt.Errorf("Failed to load capture: %w", err)
	}
	if len(captures) == 0 {
		return "", "", terminal(CodeCaptureNotFound, "capture %s not found for user %s", captureID, userID)
	}

	text := captures[0].CleanText
	if strings.TrimSpace(text) == "" {
		return "", "", terminal(CodeNoTextContent, "capture %s has no text content", captureID)
	}
	if len(strings.TrimSpace(text)) < MinIndexableChars {
		return "", "", terminal(CodeTextTooShort, "capture %s text below %d chars", captureID, MinIndexableChars)
	}
	return text, apiKey, nil
}

func (r *Runner) runDelete(ctx context.Context, job services.EmbeddingJob) error {
	return r.indexing.DeleteCapture(ctx, job.CaptureID, job.UserID)
}
