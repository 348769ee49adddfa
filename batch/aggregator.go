package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	claude "github.com/haowjy/meridian-claude-go"
)

// Chunk is the half-open range [Start, End) of requests sent as one batch.
type Chunk struct {
	Index int
	Start int
	End   int
}

// Len is the number of requests in the chunk.
func (c Chunk) Len() int { return c.End - c.Start }

// Partition splits n requests into ordered chunks of at most size.
func Partition(n, size int) []Chunk {
	if n <= 0 || size <= 0 {
		return nil
	}
	chunks := make([]Chunk, 0, (n+size-1)/size)
	for start := 0; start < n; start += size {
		chunks = append(chunks, Chunk{
			Index: len(chunks),
			Start: start,
			End:   min(start+size, n),
		})
	}
	return chunks
}

// ChunkCustomID is the correlation id used for request i of a chunk.
// It is unique within the chunk's batch.
func ChunkCustomID(chunk, i int) string {
	return fmt.Sprintf("c%d-%d", chunk, i)
}

// ChunkRecorder persists aggregation progress so an interrupted run can
// resume without resubmitting finished chunks.
type ChunkRecorder interface {
	// SubmittedBatch returns the batch already created for chunk, if any.
	SubmittedBatch(ctx context.Context, chunk int) (batchID string, ok bool, err error)
	ChunkSubmitted(ctx context.Context, chunk Chunk, batchID string) error
	// ChunkFinished records the outcome; chunkErr is nil on success.
	ChunkFinished(ctx context.Context, chunk Chunk, results []claude.BatchResult, chunkErr error) error
}

// Aggregator runs more requests than fit in one batch by splitting them
// into chunks, one batch per chunk, processed in order.
type Aggregator struct {
	Poller       *Poller
	MaxBatchSize int

	// Recorder is optional.
	Recorder ChunkRecorder
	Logger   *slog.Logger
}

// Run submits every chunk, waits for it and returns one result per
// request in the original order, keyed by the original custom IDs.
//
// A chunk that cannot be submitted or completed does not stop the run:
// its requests get ResultFailed with kind chunk_failed. A batch that ended
// Failed with errored requests still has results, so those requests keep
// their own ResultErrored entries. Run returns an error only for invalid input, recorder failures or cancellation.
func (a *Aggregator) Run(ctx context.Context, requests []claude.BatchRequest) ([]claude.BatchResult, error) {
	if a.MaxBatchSize <= 0 {
		return nil, &claude.ValidationError{Field: "max_batch_size", Value: a.MaxBatchSize, Reason: "must be positive"}
	}
	if err := validateRequests(requests); err != nil {
		return nil, err
	}
	logger := a.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	out := make([]claude.BatchResult, len(requests))
	for _, chunk := range Partition(len(requests), a.MaxBatchSize) {
		results, err := a.runChunk(ctx, chunk, requests)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		var recErr *recorderError
		if errors.As(err, &recErr) {
			return nil, recErr.err
		}

		if err != nil {
			logger.Warn("batch chunk failed", "chunk", chunk.Index, "requests", chunk.Len(), "error", err)
			for i := chunk.Start; i < chunk.End; i++ {
				out[i] = claude.BatchResult{
					CustomID: requests[i].CustomID,
					Status:   claude.ResultFailed,
					Error:    &claude.ResultError{Kind: claude.ErrorKindChunkFailed, Message: err.Error()},
				}
			}
		} else {
			copy(out[chunk.Start:chunk.End], results)
		}

		if a.Recorder != nil {
			if rerr := a.Recorder.ChunkFinished(ctx, chunk, out[chunk.Start:chunk.End], err); rerr != nil {
				return nil, fmt.Errorf("record chunk %d: %w", chunk.Index, rerr)
			}
		}
	}
	return out, nil
}

type recorderError struct{ err error }

func (e *recorderError) Error() string { return e.err.Error() }

// runChunk returns the chunk's results in request order with the original
// custom IDs restored.
func (a *Aggregator) runChunk(ctx context.Context, chunk Chunk, requests []claude.BatchRequest) ([]claude.BatchResult, error) {
	batchID, resumed, err := a.submittedBatch(ctx, chunk)
	if err != nil {
		return nil, &recorderError{fmt.Errorf("look up chunk %d: %w", chunk.Index, err)}
	}

	if !resumed {
		sub := make([]claude.BatchRequest, 0, chunk.Len())
		for i := chunk.Start; i < chunk.End; i++ {
			sub = append(sub, claude.BatchRequest{
				CustomID: ChunkCustomID(chunk.Index, i-chunk.Start),
				Params:   requests[i].Params,
			})
		}
		handle, err := a.Poller.Submit(ctx, sub)
		if err != nil {
			return nil, fmt.Errorf("submit chunk %d: %w", chunk.Index, err)
		}
		batchID = handle.ID
		if a.Recorder != nil {
			if err := a.Recorder.ChunkSubmitted(ctx, chunk, batchID); err != nil {
				return nil, &recorderError{fmt.Errorf("record chunk %d: %w", chunk.Index, err)}
			}
		}
	}

	results, err := a.Poller.WaitForCompletion(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("chunk %d (batch %s): %w", chunk.Index, batchID, err)
	}

	byID := make(map[string]claude.BatchResult, len(results))
	for _, r := range results {
		byID[r.CustomID] = r
	}

	out := make([]claude.BatchResult, 0, chunk.Len())
	for i := chunk.Start; i < chunk.End; i++ {
		r, ok := byID[ChunkCustomID(chunk.Index, i-chunk.Start)]
		if !ok {
			r = claude.BatchResult{
				Status: claude.ResultFailed,
				Error: &claude.ResultError{
					Kind:    claude.ErrorKindChunkFailed,
					Message: fmt.Sprintf("no result in batch %s", batchID),
				},
			}
		}
		r.CustomID = requests[i].CustomID
		out = append(out, r)
	}
	return out, nil
}

func (a *Aggregator) submittedBatch(ctx context.Context, chunk Chunk) (string, bool, error) {
	if a.Recorder == nil {
		return "", false, nil
	}
	return a.Recorder.SubmittedBatch(ctx, chunk.Index)
}
