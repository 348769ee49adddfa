package claude

import (
	"encoding/json"
	"time"
)

// BatchStatus is the lifecycle state of a batch.
//
//	Validating → InProgress → {Completed | Failed | Expired | Cancelled}
//
// Cancelling is a transient state on the way to Cancelled. Nothing leaves a
// terminal state.
type BatchStatus string

const (
	BatchValidating BatchStatus = "validating"
	BatchInProgress BatchStatus = "in_progress"
	BatchCancelling BatchStatus = "cancelling"
	BatchCompleted  BatchStatus = "completed"
	BatchFailed     BatchStatus = "failed"
	BatchExpired    BatchStatus = "expired"
	BatchCancelled  BatchStatus = "cancelled"
)

// IsTerminal reports whether the batch has stopped processing.
func (s BatchStatus) IsTerminal() bool {
	switch s {
	case BatchCompleted, BatchFailed, BatchExpired, BatchCancelled:
		return true
	}
	return false
}

// RequestCounts tallies the sub-requests of a batch by state.
type RequestCounts struct {
	Total      int `json:"total"`
	Processing int `json:"processing"`
	Succeeded  int `json:"succeeded"`
	Errored    int `json:"errored"`
	Cancelled  int `json:"cancelled"`
	Expired    int `json:"expired"`
}

// Done is the number of sub-requests no longer processing.
func (c RequestCounts) Done() int {
	return c.Succeeded + c.Errored + c.Cancelled + c.Expired
}

// Fraction is the completed share in [0, 1]. An empty batch counts as done.
func (c RequestCounts) Fraction() float64 {
	if c.Total == 0 {
		return 1
	}
	return float64(c.Done()) / float64(c.Total)
}

// Batch is the state of a batch as last reported by the API.
// It is a snapshot; the poller never caches it between calls.
type Batch struct {
	ID            string
	Status        BatchStatus
	RequestCounts RequestCounts
	CreatedAt     time.Time
	ExpiresAt     time.Time
	EndedAt       time.Time
	ResultsURL    string
}

// Progress returns the aggregate request counts for display.
func (b *Batch) Progress() RequestCounts {
	return b.RequestCounts
}

// HasResults reports whether the API has published results for the batch.
func (b *Batch) HasResults() bool {
	return b.Status.IsTerminal() && b.ResultsURL != ""
}

// BatchRequest is one sub-request of a batch. Params is the Messages API
// request body; CustomID must be unique within the batch.
type BatchRequest struct {
	CustomID string          `json:"custom_id"`
	Params   json.RawMessage `json:"params"`
}

// BatchHandle identifies a submitted batch.
type BatchHandle struct {
	ID           string
	Status       BatchStatus
	RequestCount int
	CreatedAt    time.Time
	ExpiresAt    time.Time
}

// ResultStatus is the outcome of one batch sub-request.
type ResultStatus string

const (
	ResultSucceeded ResultStatus = "succeeded"
	ResultErrored   ResultStatus = "errored"
	ResultCancelled ResultStatus = "cancelled"
	ResultExpired   ResultStatus = "expired"

	// ResultFailed marks sub-requests of a chunk whose batch could not be
	// submitted or completed. It is never reported by the API.
	ResultFailed ResultStatus = "failed"
)

// BatchResult is the outcome of one sub-request, keyed by CustomID.
// Exactly one of Response and Error is set, except for cancelled or expired
// results that carry neither.
type BatchResult struct {
	CustomID string
	Status   ResultStatus

	// Message is the raw response body for succeeded results.
	Message  json.RawMessage
	Response *Response

	Error *ResultError
}

// OK reports whether the sub-request succeeded.
func (r BatchResult) OK() bool {
	return r.Status == ResultSucceeded
}

// ResultError describes a failed sub-request.
type ResultError struct {
	Kind    ErrorKind
	Message string
}

func (e *ResultError) Error() string {
	return string(e.Kind) + ": " + e.Message
}
