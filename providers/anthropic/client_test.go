package anthropic

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/tidwall/gjson"

	claude "github.com/haowjy/meridian-claude-go"
)

// recordingTransport answers every Send with sendBody and every Stream
// with streamBody, keeping the requests it saw.
type recordingTransport struct {
	mu         sync.Mutex
	requests   []*claude.Request
	sendBody   string
	streamBody string
	err        error
}

func (t *recordingTransport) record(req *claude.Request) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.requests = append(t.requests, req)
}

func (t *recordingTransport) Send(ctx context.Context, req *claude.Request) (*claude.RawResponse, error) {
	t.record(req)
	if t.err != nil {
		return nil, t.err
	}
	return &claude.RawResponse{StatusCode: 200, Body: []byte(t.sendBody)}, nil
}

func (t *recordingTransport) Stream(ctx context.Context, req *claude.Request) (io.ReadCloser, error) {
	t.record(req)
	if t.err != nil {
		return nil, t.err
	}
	return io.NopCloser(strings.NewReader(t.streamBody)), nil
}

func testRequest() *claude.MessageRequest {
	return &claude.MessageRequest{
		Model:    "claude-haiku-4-5",
		Messages: []claude.Message{claude.UserText("Hi")},
		Params:   &claude.RequestParams{MaxTokens: intPtr(256), System: stringPtr("Be brief.")},
	}
}

func intPtr(i int) *int          { return &i }
func stringPtr(s string) *string { return &s }
func boolPtr(b bool) *bool       { return &b }

func TestClient_CreateMessage(t *testing.T) {
	tr := &recordingTransport{sendBody: `{"id":"msg_1","type":"message","role":"assistant","model":"claude-haiku-4-5","content":[{"type":"text","text":"Hello!"}],"stop_reason":"end_turn","usage":{"input_tokens":5,"output_tokens":2}}`}
	client := NewClient(tr)

	resp, err := client.CreateMessage(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("CreateMessage() error = %v", err)
	}
	if resp.Text() != "Hello!" || resp.StopReason != claude.StopReasonEndTurn {
		t.Errorf("resp = %q %q", resp.Text(), resp.StopReason)
	}

	req := tr.requests[0]
	if req.Op() != "POST /v1/messages" {
		t.Errorf("op = %q", req.Op())
	}
	body := gjson.ParseBytes(req.Body)
	if body.Get("model").String() != "claude-haiku-4-5" || body.Get("max_tokens").Int() != 256 {
		t.Errorf("body = %s", req.Body)
	}
	if body.Get("system.0.text").String() != "Be brief." {
		t.Errorf("system = %s", body.Get("system").Raw)
	}
	if body.Get("stream").Exists() {
		t.Error("stream flag set on non-streaming request")
	}
}

func TestClient_CreateMessage_InvalidRequest(t *testing.T) {
	tr := &recordingTransport{}
	client := NewClient(tr)

	_, err := client.CreateMessage(context.Background(), &claude.MessageRequest{Model: "claude-haiku-4-5"})
	if !errors.Is(err, claude.ErrInvalidRequest) {
		t.Errorf("error = %v, want ErrInvalidRequest", err)
	}
	if len(tr.requests) != 0 {
		t.Error("invalid request was sent")
	}
}

func TestClient_CreateMessage_TransportError(t *testing.T) {
	want := &claude.TransportError{Op: "POST /v1/messages", StatusCode: 529, Type: claude.ErrorKindOverloaded, Message: "Overloaded"}
	client := NewClient(&recordingTransport{err: want})

	_, err := client.CreateMessage(context.Background(), testRequest())
	if !errors.Is(err, claude.ErrProviderUnavailable) || !claude.IsRetryable(err) {
		t.Errorf("error = %v", err)
	}
}

const helloStream = `event: message_start
data: {"type":"message_start","message":{"id":"msg_s","type":"message","role":"assistant","model":"claude-haiku-4-5","content":[],"stop_reason":null,"usage":{"input_tokens":5,"output_tokens":1}}}

event: content_block_start
data: {"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}

event: content_block_delta
data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hel"}}

event: content_block_delta
data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"lo"}}

event: content_block_stop
data: {"type":"content_block_stop","index":0}

event: message_delta
data: {"type":"message_delta","delta":{"stop_reason":"end_turn","stop_sequence":null},"usage":{"output_tokens":3}}

event: message_stop
data: {"type":"message_stop"}

`

func TestClient_StreamMessage(t *testing.T) {
	tr := &recordingTransport{streamBody: helloStream}
	client := NewClient(tr)

	events, err := client.StreamMessage(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("StreamMessage() error = %v", err)
	}

	resp, err := claude.Accumulate(context.Background(), events)
	if err != nil {
		t.Fatalf("Accumulate() error = %v", err)
	}
	if resp.Text() != "Hello" || resp.ID != "msg_s" {
		t.Errorf("resp = %q %q", resp.ID, resp.Text())
	}
	if resp.Usage.OutputTokens != 3 {
		t.Errorf("OutputTokens = %d, want 3", resp.Usage.OutputTokens)
	}

	if !gjson.GetBytes(tr.requests[0].Body, "stream").Bool() {
		t.Errorf("stream flag missing: %s", tr.requests[0].Body)
	}
}

func TestClient_ThinkingDropsSampling(t *testing.T) {
	tr := &recordingTransport{sendBody: `{"id":"m","content":[]}`}
	client := NewClient(tr)

	req := testRequest()
	req.Model = "claude-sonnet-4-5"
	req.Params = &claude.RequestParams{
		MaxTokens:       intPtr(16000),
		ThinkingEnabled: boolPtr(true),
		ThinkingLevel:   stringPtr("medium"),
		Temperature:     func() *float64 { f := 0.2; return &f }(),
	}

	if _, err := client.CreateMessage(context.Background(), req); err != nil {
		t.Fatalf("CreateMessage() error = %v", err)
	}

	body := gjson.ParseBytes(tr.requests[0].Body)
	if body.Get("thinking.type").String() != "enabled" || body.Get("thinking.budget_tokens").Int() != claude.ThinkingBudgetMedium {
		t.Errorf("thinking = %s", body.Get("thinking").Raw)
	}
	if body.Get("temperature").Exists() {
		t.Error("temperature sent alongside thinking")
	}
}

func TestClient_NewBatchRequest(t *testing.T) {
	client := NewClient(&recordingTransport{})

	br, err := client.NewBatchRequest("req-1", testRequest())
	if err != nil {
		t.Fatalf("NewBatchRequest() error = %v", err)
	}
	if br.CustomID != "req-1" {
		t.Errorf("CustomID = %q", br.CustomID)
	}
	if gjson.GetBytes(br.Params, "messages.0.content.0.text").String() != "Hi" {
		t.Errorf("params = %s", br.Params)
	}
	if gjson.GetBytes(br.Params, "stream").Exists() {
		t.Error("batch params must not stream")
	}
}

func TestClient_WaitForBatchDecodesResponses(t *testing.T) {
	tr := &batchTransport{}
	client := NewClient(tr)

	results, err := client.WaitForBatch(context.Background(), "msgbatch_1")
	if err != nil {
		t.Fatalf("WaitForBatch() error = %v", err)
	}
	if len(results) != 1 || !results[0].OK() {
		t.Fatalf("results = %+v", results)
	}
	if results[0].Response == nil || results[0].Response.Text() != "done" {
		t.Errorf("Response = %+v", results[0].Response)
	}
}

// batchTransport serves one ended batch and its results.
type batchTransport struct{ recordingTransport }

func (t *batchTransport) Send(ctx context.Context, req *claude.Request) (*claude.RawResponse, error) {
	t.record(req)
	if strings.HasSuffix(req.Path, "/results") {
		line := `{"custom_id":"a","result":{"type":"succeeded","message":{"id":"msg_b","type":"message","role":"assistant","model":"claude-haiku-4-5","content":[{"type":"text","text":"done"}],"stop_reason":"end_turn","usage":{"input_tokens":1,"output_tokens":1}}}}`
		return &claude.RawResponse{StatusCode: 200, Body: []byte(line + "\n")}, nil
	}
	batch := `{"id":"msgbatch_1","type":"message_batch","processing_status":"ended","request_counts":{"processing":0,"succeeded":1,"errored":0,"canceled":0,"expired":0},"results_url":"https://api.anthropic.com/v1/messages/batches/msgbatch_1/results","created_at":"2025-01-01T00:00:00Z","expires_at":"2025-01-02T00:00:00Z"}`
	return &claude.RawResponse{StatusCode: 200, Body: []byte(batch)}, nil
}
