package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/deepen-live/deepen-backend/internal/platform/ctxutil"
	"github.com/deepen-live/deepen-backend/internal/platform/logger"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	// EmbedModel produces 768-dim vectors; must agree with the index's vector size.
	EmbedModel = "text-embedding-004"
)

// TaskType selects the asymmetric embedding mode. Documents and queries must
// use different task types or retrieval quality degrades silently.
type TaskType string

const (
	TaskDocument TaskType = "RETRIEVAL_DOCUMENT"
	TaskQuery    TaskType = "RETRIEVAL_QUERY"
)

// Client embeds text via the Gemini REST API. The API key travels per call
// because every user brings their own key; the client holds no credentials.
type Client interface {
	Embed(ctx context.Context, apiKey string, text string, task TaskType) ([]float32, error)
}

type APIError struct {
	StatusCode int
	Message    string
	Cause      error
}

func (e *APIError) Error() string {
	if e == nil {
		return "gemini request failed"
	}
	if e.Message != "" {
		return fmt.Sprintf("gemini request failed (status=%d): %s", e.StatusCode, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("gemini request failed (status=%d): %v", e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("gemini request failed (status=%d)", e.StatusCode)
}

func (e *APIError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Retryable reports whether err is a transient provider failure worth another
// attempt: transport errors, timeouts, 408, 429, and 5xx.
func Retryable(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.StatusCode == 0 {
		return true
	}
	switch {
	case apiErr.StatusCode == http.StatusRequestTimeout:
		return true
	case apiErr.StatusCode == http.StatusTooManyRequests:
		return true
	case apiErr.StatusCode >= 500:
		return true
	}
	return false
}

type client struct {
	log        *logger.Logger
	baseURL    string
	http       *http.Client
	maxRetries int
	baseDelay  time.Duration
}

func NewClient(log *logger.Logger) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &client{
		log:     log.With("service", "GeminiClient"),
		baseURL: DefaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
		maxRetries: 2,
		baseDelay:  2 * time.Second,
	}, nil
}

type embedRequest struct {
	Content  embedContent `json:"content"`
	TaskType TaskType     `json:"taskType"`
}

type embedContent struct {
	Parts []embedPart `json:"parts"`
}

type embedPart struct {
	Text string `json:"text"`
}

type embedResponse struct {
	Embedding struct {
		Values []float32 `json:"values"`
	} `json:"embedding"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func (c *client) Embed(ctx context.Context, apiKey string, text string, task TaskType) ([]float32, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, &APIError{StatusCode: http.StatusUnauthorized, Message: "api key is required"}
	}
	if strings.TrimSpace(text) == "" {
		return nil, &APIError{Message: "text is required"}
	}
	if task != TaskDocument && task != TaskQuery {
		return nil, &APIError{Message: fmt.Sprintf("unknown task type %q", task)}
	}

	path := fmt.Sprintf("%s/models/%s:embedContent", c.baseURL, EmbedModel)
	body := embedRequest{
		Content:  embedContent{Parts: []embedPart{{Text: text}}},
		TaskType: task,
	}

	delay := c.baseDelay
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		values, err := c.embedOnce(ctx, path, apiKey, body)
		if err == nil {
			return values, nil
		}
		lastErr = err

		if !Retryable(err) || attempt == c.maxRetries {
			return nil, err
		}

		c.log.Warn("Gemini embed retrying",
			"model", EmbedModel,
			"task", string(task),
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"sleep", delay.String(),
			"error", err.Error(),
		)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		delay *= 2
	}

	return nil, lastErr
}

func (c *client) embedOnce(ctx context.Context, path, apiKey string, body embedRequest) ([]float32, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, &APIError{Message: "encode request failed", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctxutil.Default(ctx), http.MethodPost, path, &buf)
	if err != nil {
		return nil, &APIError{Message: "build request failed", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &APIError{StatusCode: http.StatusRequestTimeout, Message: "gemini request timed out", Cause: err}
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, &APIError{StatusCode: http.StatusRequestTimeout, Message: "gemini request timed out", Cause: err}
		}
		return nil, &APIError{Cause: err}
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if readErr != nil {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: "read response failed", Cause: readErr}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiResp errorResponse
		message := ""
		if uErr := json.Unmarshal(raw, &apiResp); uErr == nil {
			message = strings.TrimSpace(apiResp.Error.Message)
		}
		if message == "" {
			message = strings.TrimSpace(string(raw))
			if len(message) > 512 {
				message = message[:512] + "..."
			}
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Message: message}
	}

	var out embedResponse
	if uErr := json.Unmarshal(raw, &out); uErr != nil {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: "decode response failed", Cause: uErr}
	}
	if len(out.Embedding.Values) == 0 {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: "empty embedding in response"}
	}
	return out.Embedding.Values, nil
}
