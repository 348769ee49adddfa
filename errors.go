package claude

import (
	"errors"
	"fmt"
	"net/http"
	"unicode/utf8"
)

// Sentinel errors for common failure modes.
// These can be checked with errors.Is().
var (
	// ErrInvalidModel indicates the requested model is unknown or lacks a requested feature.
	ErrInvalidModel = errors.New("claude: invalid or unsupported model")

	// ErrInvalidAPIKey indicates the API key is missing, malformed, or unauthorized.
	ErrInvalidAPIKey = errors.New("claude: invalid API key")

	// ErrRateLimited indicates the API rate limit has been exceeded.
	ErrRateLimited = errors.New("claude: rate limit exceeded")

	// ErrUnsupportedFeature indicates the requested feature is not available.
	// Examples: extended thinking on models that don't support it.
	ErrUnsupportedFeature = errors.New("claude: unsupported feature")

	// ErrInvalidRequest indicates the request parameters are invalid.
	ErrInvalidRequest = errors.New("claude: invalid request")

	// ErrProviderUnavailable indicates the API is overloaded, down or unreachable.
	ErrProviderUnavailable = errors.New("claude: service unavailable")

	// ErrNotFound indicates the addressed resource (usually a batch) does not exist.
	ErrNotFound = errors.New("claude: not found")
)

// ErrorKind classifies an error carried in-band by an ErrorEvent or a batch result.
type ErrorKind string

const (
	// Locally produced kinds.
	ErrorKindParsing       ErrorKind = "parsing_error"
	ErrorKindTransport     ErrorKind = "transport_error"
	ErrorKindUnexpectedEOF ErrorKind = "unexpected_end_of_stream"
	ErrorKindChunkFailed   ErrorKind = "chunk_failed"

	// Kinds reported by the API.
	ErrorKindInvalidRequest ErrorKind = "invalid_request_error"
	ErrorKindAuthentication ErrorKind = "authentication_error"
	ErrorKindPermission     ErrorKind = "permission_error"
	ErrorKindNotFound       ErrorKind = "not_found_error"
	ErrorKindRateLimit      ErrorKind = "rate_limit_error"
	ErrorKindAPI            ErrorKind = "api_error"
	ErrorKindOverloaded     ErrorKind = "overloaded_error"
	ErrorKindTimeout        ErrorKind = "timeout_error"
)

// Recoverable reports whether decoding may continue after an error of this kind.
// Only parsing errors are recovered; everything else ends the stream.
func (k ErrorKind) Recoverable() bool {
	return k == ErrorKindParsing
}

// ModelError represents an error related to model validation or availability.
type ModelError struct {
	Model  string // The model that was requested
	Reason string // Human-readable explanation
	Err    error  // Wrapped error (usually ErrInvalidModel or ErrUnsupportedFeature)
}

func (e *ModelError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("model '%s': %s (%v)", e.Model, e.Reason, e.Err)
	}
	return fmt.Sprintf("model '%s': %s", e.Model, e.Reason)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}

// ValidationError represents an error in request parameter validation.
type ValidationError struct {
	Field  string // The parameter field that failed validation
	Value  any    // The invalid value
	Reason string // Human-readable explanation
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for '%s' (value: %v): %s", e.Field, e.Value, e.Reason)
}

// Unwrap always yields ErrInvalidRequest.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidRequest
}

// TransportError is a network or HTTP-level failure reported by a Transport.
// It is surfaced to the caller and never retried by the decoder or poller.
type TransportError struct {
	Op         string    // Operation, e.g. "POST /v1/messages"
	StatusCode int       // HTTP status, 0 for connection failures
	Type       ErrorKind // API error type from the response body, if any
	Message    string    // API error message, if any
	RequestID  string
	Err        error // Underlying cause (network error, SDK error)
}

func (e *TransportError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode > 0 {
		if e.Type != "" {
			return fmt.Sprintf("%s: status %d %s: %s", e.Op, e.StatusCode, e.Type, msg)
		}
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, msg)
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

// Unwrap exposes both the underlying cause and the sentinel matching the status code.
func (e *TransportError) Unwrap() []error {
	var errs []error
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	if s := e.sentinel(); s != nil {
		errs = append(errs, s)
	}
	return errs
}

func (e *TransportError) sentinel() error {
	switch {
	case e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden:
		return ErrInvalidAPIKey
	case e.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case e.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case e.StatusCode == http.StatusBadRequest || e.StatusCode == http.StatusRequestEntityTooLarge:
		return ErrInvalidRequest
	case e.StatusCode >= 500:
		return ErrProviderUnavailable
	}
	return nil
}

// Retryable reports whether repeating the request may succeed.
func (e *TransportError) Retryable() bool {
	switch e.Type {
	case ErrorKindRateLimit, ErrorKindOverloaded, ErrorKindAPI, ErrorKindTimeout:
		return true
	}
	if e.StatusCode == 0 {
		return e.Err != nil
	}
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// ParsingError is a single malformed stream event. The decoder absorbs it
// into an ErrorEvent and keeps going.
type ParsingError struct {
	Payload string
	Err     error
}

func (e *ParsingError) Error() string {
	return fmt.Sprintf("malformed stream event %q: %v", truncate(e.Payload, 120), e.Err)
}

func (e *ParsingError) Unwrap() error {
	return e.Err
}

// BatchTerminalError reports a batch that ended in Failed or Expired with no
// results to hand back.
type BatchTerminalError struct {
	BatchID string
	Status  BatchStatus
	Counts  RequestCounts
}

func (e *BatchTerminalError) Error() string {
	return fmt.Sprintf("batch %s ended %s (errored=%d expired=%d)", e.BatchID, e.Status, e.Counts.Errored, e.Counts.Expired)
}

// NoResultsError reports a terminal batch with nothing to fetch.
type NoResultsError struct {
	BatchID string
	Status  BatchStatus
}

func (e *NoResultsError) Error() string {
	return fmt.Sprintf("batch %s is %s with no results available", e.BatchID, e.Status)
}

// IsRetryable checks if an error is potentially retryable.
// Returns true for rate limits, temporary unavailability, network errors, etc.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return transportErr.Retryable()
	}

	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrProviderUnavailable)
}

// IsInvalidRequest checks if an error indicates invalid request parameters.
// These errors are not retryable and require request changes.
func IsInvalidRequest(err error) bool {
	if err == nil {
		return false
	}

	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrInvalidModel) ||
		errors.Is(err, ErrUnsupportedFeature)
}

// IsAuthError checks if an error is related to authentication.
func IsAuthError(err error) bool {
	return err != nil && errors.Is(err, ErrInvalidAPIKey)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
