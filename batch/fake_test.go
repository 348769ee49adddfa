package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	claude "github.com/haowjy/meridian-claude-go"
)

// state is one poll observation of a fake batch.
type state struct {
	status     string
	processing int
	succeeded  int
	errored    int
	canceled   int
	expired    int
	noResults  bool
}

// fakeAPI is an in-memory batch endpoint. Each GET on a batch returns the
// next scripted state and then repeats the last one.
type fakeAPI struct {
	mu sync.Mutex

	// script returns the poll states of the k-th submitted batch.
	script func(k, n int) []state
	// submitErr fails the k-th submission when set.
	submitErr map[int]error
	// resultLine renders one result line; nil means every request succeeds.
	resultLine func(customID string) string

	submitted [][]claude.BatchRequest
	polls     map[string]int
	cancelled []string
}

func newFakeAPI(script func(k, n int) []state) *fakeAPI {
	return &fakeAPI{script: script, polls: make(map[string]int)}
}

func endedOK(k, n int) []state {
	return []state{{status: "ended", succeeded: n}}
}

func (f *fakeAPI) Send(ctx context.Context, req *claude.Request) (*claude.RawResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	rest, ok := strings.CutPrefix(req.Path, claude.PathMessageBatches)
	if !ok {
		return nil, &claude.TransportError{Op: req.Op(), StatusCode: http.StatusNotFound}
	}
	rest = strings.TrimPrefix(rest, "/")
	id, action, _ := strings.Cut(rest, "/")

	switch {
	case req.Method == http.MethodPost && id == "":
		return f.submit(req)
	case req.Method == http.MethodGet && action == "":
		k, err := f.lookup(req, id)
		if err != nil {
			return nil, err
		}
		states := f.script(k, len(f.submitted[k]))
		i := min(f.polls[id], len(states)-1)
		f.polls[id]++
		return ok200(batchJSON(id, states[i])), nil
	case req.Method == http.MethodGet && action == "results":
		k, err := f.lookup(req, id)
		if err != nil {
			return nil, err
		}
		var lines []string
		for _, r := range f.submitted[k] {
			if f.resultLine != nil {
				lines = append(lines, f.resultLine(r.CustomID))
				continue
			}
			lines = append(lines, succeededLine(r.CustomID))
		}
		return ok200(strings.Join(lines, "\n") + "\n"), nil
	case req.Method == http.MethodPost && action == "cancel":
		if _, err := f.lookup(req, id); err != nil {
			return nil, err
		}
		f.cancelled = append(f.cancelled, id)
		return ok200(batchJSON(id, state{status: "canceling", processing: 1})), nil
	}
	return nil, &claude.TransportError{Op: req.Op(), StatusCode: http.StatusMethodNotAllowed}
}

func (f *fakeAPI) Stream(ctx context.Context, req *claude.Request) (io.ReadCloser, error) {
	return nil, &claude.TransportError{Op: req.Op(), StatusCode: http.StatusNotFound}
}

func (f *fakeAPI) submit(req *claude.Request) (*claude.RawResponse, error) {
	var body struct {
		Requests []claude.BatchRequest `json:"requests"`
	}
	if err := json.Unmarshal(req.Body, &body); err != nil {
		return nil, &claude.TransportError{Op: req.Op(), StatusCode: http.StatusBadRequest, Message: err.Error()}
	}

	k := len(f.submitted)
	f.submitted = append(f.submitted, body.Requests)
	if err := f.submitErr[k]; err != nil {
		return nil, err
	}
	return ok200(batchJSON(batchID(k), state{status: "in_progress", processing: len(body.Requests)})), nil
}

func (f *fakeAPI) lookup(req *claude.Request, id string) (int, error) {
	var k int
	if _, err := fmt.Sscanf(id, "msgbatch_%d", &k); err != nil || k >= len(f.submitted) {
		return 0, &claude.TransportError{Op: req.Op(), StatusCode: http.StatusNotFound, Type: claude.ErrorKindNotFound}
	}
	return k, nil
}

func (f *fakeAPI) submittedSizes() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	sizes := make([]int, len(f.submitted))
	for i, s := range f.submitted {
		sizes[i] = len(s)
	}
	return sizes
}

func batchID(k int) string {
	return fmt.Sprintf("msgbatch_%d", k)
}

func batchJSON(id string, s state) string {
	resultsURL := "null"
	if s.status != "in_progress" && s.status != "canceling" && !s.noResults {
		resultsURL = fmt.Sprintf("%q", "https://api.anthropic.com/v1/messages/batches/"+id+"/results")
	}
	return fmt.Sprintf(`{"id":%q,"type":"message_batch","processing_status":%q,`+
		`"request_counts":{"processing":%d,"succeeded":%d,"errored":%d,"canceled":%d,"expired":%d},`+
		`"created_at":"2026-10-19T10:00:00Z","expires_at":"2026-10-20T10:00:00Z","ended_at":null,`+
		`"archived_at":null,"cancel_initiated_at":null,"results_url":%s}`,
		id, s.status, s.processing, s.succeeded, s.errored, s.canceled, s.expired, resultsURL)
}

func succeededLine(customID string) string {
	return fmt.Sprintf(`{"custom_id":%q,"result":{"type":"succeeded","message":{"id":"msg_%s","type":"message",`+
		`"role":"assistant","model":"claude-haiku-4-5-20251001","content":[{"type":"text","text":"echo %s"}],`+
		`"stop_reason":"end_turn","stop_sequence":null,"usage":{"input_tokens":4,"output_tokens":2}}}}`,
		customID, customID, customID)
}

func ok200(body string) *claude.RawResponse {
	return &claude.RawResponse{StatusCode: http.StatusOK, Header: http.Header{}, Body: []byte(body)}
}

func makeRequests(n int) []claude.BatchRequest {
	reqs := make([]claude.BatchRequest, n)
	for i := range reqs {
		reqs[i] = claude.BatchRequest{
			CustomID: fmt.Sprintf("req-%02d", i),
			Params:   json.RawMessage(fmt.Sprintf(`{"model":"claude-haiku-4-5","max_tokens":64,"messages":[{"role":"user","content":"question %d"}]}`, i)),
		}
	}
	return reqs
}
