package batch

import (
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/tidwall/gjson"

	claude "github.com/haowjy/meridian-claude-go"
)

// wireCanceled is the API spelling of a cancelled result.
const wireCanceled = "canceled"

// parseBatch decodes a MessageBatch object.
func parseBatch(data []byte) (*claude.Batch, error) {
	var mb anthropic.MessageBatch
	if err := json.Unmarshal(data, &mb); err != nil {
		return nil, fmt.Errorf("decode batch: %w", err)
	}
	if mb.ID == "" {
		return nil, fmt.Errorf("decode batch: missing id")
	}

	counts := claude.RequestCounts{
		Processing: int(mb.RequestCounts.Processing),
		Succeeded:  int(mb.RequestCounts.Succeeded),
		Errored:    int(mb.RequestCounts.Errored),
		Cancelled:  int(mb.RequestCounts.Canceled),
		Expired:    int(mb.RequestCounts.Expired),
	}
	counts.Total = counts.Processing + counts.Done()

	return &claude.Batch{
		ID:            mb.ID,
		Status:        mapStatus(mb.ProcessingStatus, counts),
		RequestCounts: counts,
		CreatedAt:     mb.CreatedAt,
		ExpiresAt:     mb.ExpiresAt,
		EndedAt:       mb.EndedAt,
		ResultsURL:    mb.ResultsURL,
	}, nil
}

// mapStatus derives a BatchStatus. The API only reports in_progress,
// canceling and ended; the outcome of an ended batch is read from its counts.
func mapStatus(wire anthropic.MessageBatchProcessingStatus, c claude.RequestCounts) claude.BatchStatus {
	switch wire {
	case anthropic.MessageBatchProcessingStatusInProgress:
		return claude.BatchInProgress
	case anthropic.MessageBatchProcessingStatusCanceling:
		return claude.BatchCancelling
	case anthropic.MessageBatchProcessingStatusEnded:
		switch {
		case c.Total > 0 && c.Expired == c.Total:
			return claude.BatchExpired
		case c.Cancelled > 0 && c.Succeeded == 0 && c.Errored == 0:
			return claude.BatchCancelled
		case c.Errored > 0 && c.Succeeded == 0:
			return claude.BatchFailed
		}
		return claude.BatchCompleted
	case "":
		return claude.BatchValidating
	}
	return claude.BatchStatus(wire)
}

// ResponseDecoder turns the message of a succeeded result into a Response.
type ResponseDecoder func(message json.RawMessage) (*claude.Response, error)

// parseResult decodes one line of the results JSONL.
func parseResult(line []byte, decode ResponseDecoder) (claude.BatchResult, error) {
	var ir anthropic.MessageBatchIndividualResponse
	if err := json.Unmarshal(line, &ir); err != nil {
		return claude.BatchResult{}, fmt.Errorf("decode result: %w", err)
	}
	if ir.CustomID == "" {
		return claude.BatchResult{}, fmt.Errorf("decode result: missing custom_id")
	}

	r := claude.BatchResult{CustomID: ir.CustomID}
	switch ir.Result.Type {
	case string(claude.ResultSucceeded):
		r.Status = claude.ResultSucceeded
		r.Message = json.RawMessage(gjson.GetBytes(line, "result.message").Raw)
		if decode != nil {
			resp, err := decode(r.Message)
			if err != nil {
				return claude.BatchResult{}, fmt.Errorf("result %s: %w", ir.CustomID, err)
			}
			r.Response = resp
		}

	case string(claude.ResultErrored):
		r.Status = claude.ResultErrored
		// result.error is an error response envelope: {"type":"error","error":{...}}
		inner := gjson.GetBytes(line, "result.error.error")
		if !inner.Exists() {
			inner = gjson.GetBytes(line, "result.error")
		}
		r.Error = &claude.ResultError{
			Kind:    claude.ErrorKind(inner.Get("type").String()),
			Message: inner.Get("message").String(),
		}

	case wireCanceled, string(claude.ResultCancelled):
		r.Status = claude.ResultCancelled

	case string(claude.ResultExpired):
		r.Status = claude.ResultExpired

	default:
		return claude.BatchResult{}, fmt.Errorf("result %s: unknown type %q", ir.CustomID, ir.Result.Type)
	}
	return r, nil
}
