package embedding

import "fmt"

// Terminal failure codes: conditions no retry can fix. A job hitting one of
// these fails immediately on both the Temporal and the in-process path.
const (
	CodeAPIKeyNotFound  = "API_KEY_NOT_FOUND"
	CodeCaptureNotFound = "CAPTURE_NOT_FOUND"
	CodeNoTextContent   = "NO_TEXT_CONTENT"
	CodeTextTooShort    = "TEXT_TOO_SHORT"
)

type TerminalError struct {
	Code    string
	Message string
}

func (e *TerminalError) Error() string {
	if e == nil {
		return "embedding job failed"
	}
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func terminal(code, format string, args ...any) error {
	return &TerminalError{Code: code, Message: fmt.Sprintf(format, args...)}
}
