package embedding

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/deepen-live/deepen-backend/internal/platform/logger"
	"github.com/deepen-live/deepen-backend/internal/platform/retry"
	"github.com/deepen-live/deepen-backend/internal/repos"
	"github.com/deepen-live/deepen-backend/internal/services"
	"github.com/deepen-live/deepen-backend/internal/types"
)

type fakeUserRepo struct {
	users map[uuid.UUID]*types.User
	err   error
}

func (f *fakeUserRepo) Create(ctx context.Context, tx *gorm.DB, users []*types.User) ([]*types.User, error) {
	return users, f.err
}

func (f *fakeUserRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []*types.User
	for _, id := range ids {
		if u, ok := f.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeUserRepo) GetByEmails(ctx context.Context, tx *gorm.DB, emails []string) ([]*types.User, error) {
	return nil, f.err
}

func (f *fakeUserRepo) EmailExists(ctx context.Context, tx *gorm.DB, email string) (bool, error) {
	return false, f.err
}

func (f *fakeUserRepo) UpdateGeminiAPIKey(ctx context.Context, tx *gorm.DB, id uuid.UUID, key string) error {
	return f.err
}

type fakeCaptureRepo struct {
	captures map[uuid.UUID]*types.Capture
	statuses []string
	err      error
}

func (f *fakeCaptureRepo) Create(ctx context.Context, tx *gorm.DB, captures []*types.Capture) ([]*types.Capture, error) {
	return captures, f.err
}

func (f *fakeCaptureRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Capture, error) {
	return nil, f.err
}

func (f *fakeCaptureRepo) GetOwnedIDs(ctx context.Context, tx *gorm.DB, owner uuid.UUID, filter repos.CaptureFilter) ([]uuid.UUID, error) {
	return nil, f.err
}

func (f *fakeCaptureRepo) GetByIDsOwned(ctx context.Context, tx *gorm.DB, owner uuid.UUID, ids []uuid.UUID) ([]*types.Capture, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []*types.Capture
	for _, id := range ids {
		c, ok := f.captures[id]
		if ok && c.OwnerID == owner && c.Status == types.CaptureStatusActive {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeCaptureRepo) GetMetaByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]repos.CaptureMeta, error) {
	return nil, f.err
}

func (f *fakeCaptureRepo) List(ctx context.Context, tx *gorm.DB, owner uuid.UUID, filter repos.CaptureFilter) ([]*types.Capture, error) {
	return nil, f.err
}

func (f *fakeCaptureRepo) SetBookmarked(ctx context.Context, tx *gorm.DB, owner, id uuid.UUID, bookmarked bool) error {
	return f.err
}

func (f *fakeCaptureRepo) UpdateProcessingStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status string, processingError string) error {
	f.statuses = append(f.statuses, status)
	return nil
}

func (f *fakeCaptureRepo) SoftDelete(ctx context.Context, tx *gorm.DB, owner, id uuid.UUID) error {
	return f.err
}

type fakeIndexing struct {
	indexErr  error
	deleteErr error
	indexed   []uuid.UUID
	deleted   []uuid.UUID
}

func (f *fakeIndexing) IndexCapture(ctx context.Context, text string, captureID, userID uuid.UUID, apiKey string) (services.IndexReport, error) {
	if f.indexErr != nil {
		return services.IndexReport{}, f.indexErr
	}
	f.indexed = append(f.indexed, captureID)
	return services.IndexReport{Upserted: 1}, nil
}

func (f *fakeIndexing) DeleteCapture(ctx context.Context, captureID, userID uuid.UUID) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, captureID)
	return nil
}

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	t.Cleanup(func() {
		log.Sync()
	})
	return log
}

func fixtures(t *testing.T) (uuid.UUID, uuid.UUID, *fakeUserRepo, *fakeCaptureRepo) {
	t.Helper()
	userID := uuid.New()
	captureID := uuid.New()
	userRepo := &fakeUserRepo{users: map[uuid.UUID]*types.User{
		userID: {ID: userID, GeminiAPIKey: "user-key"},
	}}
	captureRepo := &fakeCaptureRepo{captures: map[uuid.UUID]*types.Capture{
		captureID: {
			ID:        captureID,
			OwnerID:   userID,
			Status:    types.CaptureStatusActive,
			CleanText: strings.Repeat("meaningful capture text ", 5),
		},
	}}
	return userID, captureID, userRepo, captureRepo
}

func TestRunIndexHappyPath(t *testing.T) {
	userID, captureID, userRepo, captureRepo := fixtures(t)
	indexing := &fakeIndexing{}
	runner := NewRunner(newTestLogger(t), captureRepo, userRepo, indexing)

	err := runner.Run(context.Background(), services.EmbeddingJob{
		CaptureID: captureID,
		UserID:    userID,
		Action:    services.EmbeddingActionIndex,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(indexing.indexed) != 1 || indexing.indexed[0] != captureID {
		t.Fatalf("indexed: %v", indexing.indexed)
	}
	want := []string{types.ProcessingStatusProcessing, types.ProcessingStatusCompleted}
	if len(captureRepo.statuses) != 2 || captureRepo.statuses[0] != want[0] || captureRepo.statuses[1] != want[1] {
		t.Fatalf("statuses: want=%v got=%v", want, captureRepo.statuses)
	}
}

func TestRunIndexMissingAPIKeyIsTerminal(t *testing.T) {
	userID, captureID, userRepo, captureRepo := fixtures(t)
	userRepo.users[userID].GeminiAPIKey = ""
	runner := NewRunner(newTestLogger(t), captureRepo, userRepo, &fakeIndexing{})

	err := runner.Run(context.Background(), services.EmbeddingJob{
		CaptureID: captureID, UserID: userID, Action: services.EmbeddingActionIndex,
	})

	var permanent *retry.PermanentError
	if !errors.As(err, &permanent) {
		t.Fatalf("want permanent error, got=%T %v", err, err)
	}
	var terminalErr *TerminalError
	if !errors.As(err, &terminalErr) || terminalErr.Code != CodeAPIKeyNotFound {
		t.Fatalf("terminal code: got=%v", err)
	}
	if captureRepo.statuses[len(captureRepo.statuses)-1] != types.ProcessingStatusFailed {
		t.Fatalf("statuses: %v", captureRepo.statuses)
	}
}

func TestRunIndexTerminalConditions(t *testing.T) {
	cases := []struct {
		name string
		mut  func(userID, captureID uuid.UUID, u *fakeUserRepo, c *fakeCaptureRepo)
		code string
	}{
		{
			name: "capture missing",
			mut: func(userID, captureID uuid.UUID, u *fakeUserRepo, c *fakeCaptureRepo) {
				delete(c.captures, captureID)
			},
			code: CodeCaptureNotFound,
		},
		{
			name: "no text",
			mut: func(userID, captureID uuid.UUID, u *fakeUserRepo, c *fakeCaptureRepo) {
				c.captures[captureID].CleanText = "   "
			},
			code: CodeNoTextContent,
		},
		{
			name: "text too short",
			mut: func(userID, captureID uuid.UUID, u *fakeUserRepo, c *fakeCaptureRepo) {
				c.captures[captureID].CleanText = "tiny"
			},
			code: CodeTextTooShort,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			userID, captureID, userRepo, captureRepo := fixtures(t)
			tc.mut(userID, captureID, userRepo, captureRepo)
			runner := NewRunner(newTestLogger(t), captureRepo, userRepo, &fakeIndexing{})

			err := runner.Run(context.Background(), services.EmbeddingJob{
				CaptureID: captureID, UserID: userID, Action: services.EmbeddingActionIndex,
			})
			var terminalErr *TerminalError
			if !errors.As(err, &terminalErr) || terminalErr.Code != tc.code {
				t.Fatalf("want code=%s got=%v", tc.code, err)
			}
			var permanent *retry.PermanentError
			if !errors.As(err, &permanent) {
				t.Fatalf("terminal error should be permanent: %T", err)
			}
		})
	}
}

func TestRunIndexTransientErrorIsRetryable(t *testing.T) {
	userID, captureID, userRepo, captureRepo := fixtures(t)
	indexing := &fakeIndexing{indexErr: errors.New("index down")}
	runner := NewRunner(newTestLogger(t), captureRepo, userRepo, indexing)

	err := runner.Run(context.Background(), services.EmbeddingJob{
		CaptureID: captureID, UserID: userID, Action: services.EmbeddingActionIndex,
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	var permanent *retry.PermanentError
	if errors.As(err, &permanent) {
		t.Fatalf("transient failure must stay retryable: %v", err)
	}
}

func TestRunDelete(t *testing.T) {
	userID, captureID, userRepo, captureRepo := fixtures(t)
	indexing := &fakeIndexing{}
	runner := NewRunner(newTestLogger(t), captureRepo, userRepo, indexing)

	err := runner.Run(context.Background(), services.EmbeddingJob{
		CaptureID: captureID, UserID: userID, Action: services.EmbeddingActionDelete,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(indexing.deleted) != 1 || indexing.deleted[0] != captureID {
		t.Fatalf("deleted: %v", indexing.deleted)
	}
}

func TestRunUnknownActionIsPermanent(t *testing.T) {
	userID, captureID, userRepo, captureRepo := fixtures(t)
	runner := NewRunner(newTestLogger(t), captureRepo, userRepo, &fakeIndexing{})

	err := runner.Run(context.Background(), services.EmbeddingJob{
		CaptureID: captureID, UserID: userID, Action: services.EmbeddingJobAction("reprocess"),
	})
	var permanent *retry.PermanentError
	if !errors.As(err, &permanent) {
		t.Fatalf("unknown action should be permanent: %v", err)
	}
}
