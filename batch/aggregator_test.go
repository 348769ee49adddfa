package batch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"testing"

	claude "github.com/haowjy/meridian-claude-go"
)

func TestPartition(t *testing.T) {
	tests := []struct {
		n, size int
		want    []int
	}{
		{25, 10, []int{10, 10, 5}},
		{20, 10, []int{10, 10}},
		{3, 10, []int{3}},
		{0, 10, nil},
		{5, 0, nil},
	}

	for _, tt := range tests {
		chunks := Partition(tt.n, tt.size)
		var sizes []int
		next := 0
		for i, c := range chunks {
			if c.Index != i || c.Start != next {
				t.Errorf("Partition(%d, %d) chunk %d = %+v", tt.n, tt.size, i, c)
			}
			next = c.End
			sizes = append(sizes, c.Len())
		}
		if !slices.Equal(sizes, tt.want) {
			t.Errorf("Partition(%d, %d) sizes = %v, want %v", tt.n, tt.size, sizes, tt.want)
		}
	}
}

func TestAggregator_Chunks(t *testing.T) {
	api := newFakeAPI(endedOK)
	agg := &Aggregator{Poller: NewPoller(api), MaxBatchSize: 10}

	requests := makeRequests(25)
	results, err := agg.Run(context.Background(), requests)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got := api.submittedSizes(); !slices.Equal(got, []int{10, 10, 5}) {
		t.Errorf("batch sizes = %v, want [10 10 5]", got)
	}
	if len(results) != len(requests) {
		t.Fatalf("got %d results, want %d", len(results), len(requests))
	}

	for i, r := range results {
		if r.CustomID != requests[i].CustomID {
			t.Errorf("result %d CustomID = %s, want %s", i, r.CustomID, requests[i].CustomID)
		}
		if !r.OK() {
			t.Errorf("result %d status = %s", i, r.Status)
		}
		// The fake echoes the chunk-scoped id, so this checks the mapping back.
		chunk, idx := i/10, i%10
		if want := "msg_" + ChunkCustomID(chunk, idx); !strings.Contains(string(r.Message), want) {
			t.Errorf("result %d message = %s, want id %s", i, r.Message, want)
		}
	}

	for k, sub := range api.submitted {
		for i, r := range sub {
			if r.CustomID != ChunkCustomID(k, i) {
				t.Errorf("chunk %d request %d custom_id = %s", k, i, r.CustomID)
			}
			if string(r.Params) != string(requests[k*10+i].Params) {
				t.Errorf("chunk %d request %d params changed", k, i)
			}
		}
	}
}

func TestAggregator_ChunkFailure(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(api *fakeAPI)
		wantStatus claude.ResultStatus
		wantKind   claude.ErrorKind
	}{
		{
			name: "submit fails",
			setup: func(api *fakeAPI) {
				api.submitErr = map[int]error{1: &claude.TransportError{Op: "POST /v1/messages/batches", StatusCode: http.StatusInternalServerError}}
			},
			wantStatus: claude.ResultFailed,
			wantKind:   claude.ErrorKindChunkFailed,
		},
		{
			name: "batch expires",
			setup: func(api *fakeAPI) {
				api.script = func(k, n int) []state {
					if k == 1 {
						return []state{{status: "ended", expired: n}}
					}
					return endedOK(k, n)
				}
			},
			wantStatus: claude.ResultFailed,
			wantKind:   claude.ErrorKindChunkFailed,
		},
		{
			// A batch whose requests all errored still has results to hand
			// back, so they keep their own errors instead of chunk_failed.
			name: "every request in batch errors",
			setup: func(api *fakeAPI) {
				api.script = func(k, n int) []state {
					if k == 1 {
						return []state{{status: "ended", errored: n}}
					}
					return endedOK(k, n)
				}
				api.resultLine = func(customID string) string {
					if strings.HasPrefix(customID, "c1-") {
						return fmt.Sprintf(`{"custom_id":%q,"result":{"type":"errored","error":{"type":"error","error":{"type":"invalid_request_error","message":"bad params"}}}}`, customID)
					}
					return succeededLine(customID)
				}
			},
			wantStatus: claude.ResultErrored,
			wantKind:   claude.ErrorKindInvalidRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newFakeAPI(endedOK)
			tt.setup(api)
			agg := &Aggregator{Poller: NewPoller(api), MaxBatchSize: 10}

			requests := makeRequests(25)
			results, err := agg.Run(context.Background(), requests)
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if len(results) != 25 {
				t.Fatalf("got %d results, want 25", len(results))
			}

			for i, r := range results {
				if r.CustomID != requests[i].CustomID {
					t.Errorf("result %d CustomID = %s", i, r.CustomID)
				}
				inFailed := i >= 10 && i < 20
				if inFailed {
					if r.Status != tt.wantStatus || r.Error == nil || r.Error.Kind != tt.wantKind {
						t.Errorf("result %d = %+v, want %s/%s", i, r, tt.wantStatus, tt.wantKind)
					}
					continue
				}
				if !r.OK() {
					t.Errorf("result %d status = %s, want succeeded", i, r.Status)
				}
			}

			if got := len(api.submittedSizes()); got != 3 {
				t.Errorf("submitted %d batches, want 3", got)
			}
		})
	}
}

type memRecorder struct {
	batches  map[int]string
	finished map[int]error
	calls    []string
}

func (m *memRecorder) SubmittedBatch(ctx context.Context, chunk int) (string, bool, error) {
	id, ok := m.batches[chunk]
	return id, ok, nil
}

func (m *memRecorder) ChunkSubmitted(ctx context.Context, chunk Chunk, batchID string) error {
	m.batches[chunk.Index] = batchID
	m.calls = append(m.calls, "submitted")
	return nil
}

func (m *memRecorder) ChunkFinished(ctx context.Context, chunk Chunk, results []claude.BatchResult, chunkErr error) error {
	m.finished[chunk.Index] = chunkErr
	m.calls = append(m.calls, "finished")
	return nil
}

func TestAggregator_ResumesRecordedChunks(t *testing.T) {
	api := newFakeAPI(endedOK)
	p := NewPoller(api)
	requests := makeRequests(15)

	// A previous run submitted chunk 0 before stopping.
	sub := make([]claude.BatchRequest, 10)
	for i := range sub {
		sub[i] = claude.BatchRequest{CustomID: ChunkCustomID(0, i), Params: requests[i].Params}
	}
	handle, err := p.Submit(context.Background(), sub)
	if err != nil {
		t.Fatal(err)
	}

	rec := &memRecorder{batches: map[int]string{0: handle.ID}, finished: map[int]error{}}
	agg := &Aggregator{Poller: p, MaxBatchSize: 10, Recorder: rec}

	results, err := agg.Run(context.Background(), requests)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(results) != 15 {
		t.Fatalf("got %d results", len(results))
	}

	if got := api.submittedSizes(); !slices.Equal(got, []int{10, 5}) {
		t.Errorf("batch sizes = %v, want chunk 0 reused and [10 5] total", got)
	}
	if want := []string{"finished", "submitted", "finished"}; !slices.Equal(rec.calls, want) {
		t.Errorf("recorder calls = %v, want %v", rec.calls, want)
	}
	if len(rec.finished) != 2 || rec.finished[0] != nil || rec.finished[1] != nil {
		t.Errorf("finished = %v", rec.finished)
	}
}

func TestAggregator_InvalidInput(t *testing.T) {
	agg := &Aggregator{Poller: NewPoller(newFakeAPI(endedOK))}
	if _, err := agg.Run(context.Background(), makeRequests(2)); !claude.IsInvalidRequest(err) {
		t.Errorf("zero MaxBatchSize error = %v", err)
	}

	agg.MaxBatchSize = 10
	dup := makeRequests(2)
	dup[1].CustomID = dup[0].CustomID
	if _, err := agg.Run(context.Background(), dup); !claude.IsInvalidRequest(err) {
		t.Errorf("duplicate id error = %v", err)
	}
}

func TestAggregator_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	agg := &Aggregator{Poller: NewPoller(newFakeAPI(endedOK)), MaxBatchSize: 10}
	if _, err := agg.Run(ctx, makeRequests(3)); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}
