package llm

import (
	"context"
	"errors"
	"fmt"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is a single turn sent to a chat-completion model.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type TokenUsage struct {
	InputTokens  int32
	OutputTokens int32
	TotalTokens  int32
}

// Request is a provider-neutral chat completion request. A negative
// Temperature leaves the provider default in place.
type Request struct {
	Model       string
	System      []string
	Messages    []ChatMessage
	MaxTokens   int32
	Temperature float32
	TopP        float32
}

type Response struct {
	Text       string
	Usage      TokenUsage
	StopReason string
}

// Client is the black-box chat completion API used by the classifier and the
// conversation engine.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// DocumentTranscriber turns a binary document into plain text.
type DocumentTranscriber interface {
	TranscribeDocument(ctx context.Context, mimeType string, data []byte) (string, error)
}

// StatusError carries the upstream HTTP status of a failed completion so the
// webhook can pass rate-limit and billing failures through to the caller.
type StatusError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("llm: upstream status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("llm: upstream status %d", e.StatusCode)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// StatusCode returns the upstream HTTP status for err, or 0 when unknown.
func StatusCode(err error) int {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode
	}
	return 0
}

// ErrEmptyResponse is returned when the provider answered without any text.
var ErrEmptyResponse = errors.New("llm: empty response")
