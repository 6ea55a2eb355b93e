package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// Kind classifies an error for recovery decisions and per-kind counting.
type Kind string

const (
	// KindFetchRetryable represents transient fetch failures (429, 5xx,
	// transport timeouts); the scheduler may retry these.
	KindFetchRetryable Kind = "fetch_retryable"
	// KindFetchPermanent represents fetch failures retrying cannot fix
	// (404, 403, malformed URLs, robots denials)
	KindFetchPermanent Kind = "fetch_permanent"
	// KindParse represents listing or detail pages that could not be extracted
	KindParse Kind = "parse"
	// KindConfiguration represents invalid startup configuration; always fatal
	KindConfiguration Kind = "configuration"
	// KindStorage represents raw store and processed artifact failures; fatal
	// to the running phase
	KindStorage Kind = "storage"
)

// Error is the error type used across the crawl and transform pipeline
type Error struct {
	Kind    Kind
	URL     string
	Status  int
	Message string
	Err     error
	Time    time.Time
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	if e.URL != "" {
		msg += fmt.Sprintf(" url=%s", e.URL)
	}
	if e.Status != 0 {
		msg += fmt.Sprintf(" status=%d", e.Status)
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable returns true if the error is worth another fetch attempt
func (e *Error) Retryable() bool {
	return e.Kind == KindFetchRetryable
}

// New creates a new Error
func New(kind Kind, message string, err error) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Err:     err,
		Time:    time.Now(),
	}
}

// NewRetryableFetch creates a transient fetch error for the given URL
func NewRetryableFetch(url string, status int, err error) *Error {
	e := New(KindFetchRetryable, "fetch failed", err)
	e.URL = url
	e.Status = status
	return e
}

// NewPermanentFetch creates a non-retryable fetch error for the given URL
func NewPermanentFetch(url string, status int, err error) *Error {
	e := New(KindFetchPermanent, "fetch failed", err)
	e.URL = url
	e.Status = status
	return e
}

// NewParse creates a parse error for the given page URL
func NewParse(url string, message string, err error) *Error {
	e := New(KindParse, message, err)
	e.URL = url
	return e
}

// NewConfiguration creates a configuration error
func NewConfiguration(message string, err error) *Error {
	return New(KindConfiguration, message, err)
}

// NewStorage creates a storage error for the given operation
func NewStorage(op string, err error) *Error {
	return New(KindStorage, op, err)
}

// IsRetryable returns true if err is a retryable fetch error
func IsRetryable(err error) bool {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Retryable()
	}
	return false
}

// KindOf returns the Kind of err, or "internal" for errors from outside the
// pipeline taxonomy
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return Kind("internal")
}
