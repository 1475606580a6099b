// Package translator defines the translation backend capability consumed by
// the orchestrator, plus the concrete LLM and MT clients. Backend failures
// carry a transient/permanent classification that drives retry eligibility.
package translator

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/vkuzmyk/mdlate/internal/state"
)

// Config carries provider credentials and invocation options.
type Config struct {
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	BaseURL     string        `mapstructure:"base_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	ProjectID   string        `mapstructure:"project_id"`
	Credentials string        `mapstructure:"credentials"`
}

// Request is one chunk translation request: the chunk's text plus the
// context threaded from previous chunks.
type Request struct {
	Text       string
	SourceLang string
	TargetLang string

	// Rolling context. LLM backends embed these in the prompt; plain MT
	// backends ignore them.
	Summary      string
	PreviousTail string
	Glossary     []state.Term
}

// Result is the backend's answer for one chunk.
type Result struct {
	TranslatedText string
	// ObservedTerms are term mappings the backend itself reported. Most
	// backends leave this empty; the orchestrator's term extractor fills
	// the gap.
	ObservedTerms    []state.Term
	Model            string
	PromptTokens     int
	CompletionTokens int
}

// Backend is the translation capability consumed by the orchestrator.
type Backend interface {
	Name() string
	TranslateChunk(ctx context.Context, cfg Config, req Request) (*Result, error)
	IsAvailable(ctx context.Context) error
}

// BackendError is a classified backend failure. Transient failures (rate
// limits, timeouts, 5xx) are retry-eligible; permanent ones are not.
type BackendError struct {
	Service   string
	Status    int // HTTP status when applicable, 0 otherwise
	Transient bool
	Err       error
}

func (e *BackendError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s failure (status %d): %v", e.Service, kind, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %s failure: %v", e.Service, kind, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// IsTransient reports whether err is retry-eligible: a transient
// BackendError, a deadline expiry, or a network timeout.
func IsTransient(err error) bool {
	var be *BackendError
	if errors.As(err, &be) {
		return be.Transient
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var nerr net.Error
	if errors.As(err, &nerr) {
		return nerr.Timeout()
	}
	return false
}

// transientStatus classifies an HTTP status code.
func transientStatus(code int) bool {
	return code == 408 || code == 429 || code >= 500
}

// httpError wraps an HTTP-level failure with the classification its status
// implies.
func httpError(service string, status int, err error) *BackendError {
	return &BackendError{Service: service, Status: status, Transient: transientStatus(status), Err: err}
}

// transportError wraps a failed request round-trip. Transport failures
// (connection refused, reset, timeout) are treated as transient.
func transportError(service string, err error) *BackendError {
	return &BackendError{Service: service, Transient: true, Err: err}
}

// permanentError wraps a non-retryable local failure (bad configuration,
// unusable response).
func permanentError(service string, err error) *BackendError {
	return &BackendError{Service: service, Transient: false, Err: err}
}
