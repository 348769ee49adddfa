package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	claude "github.com/haowjy/meridian-claude-go"
)

func newTestHTTPTransport(t *testing.T, h http.HandlerFunc) *HTTPTransport {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	tr, err := NewHTTPTransport(HTTPConfig{
		APIKey:  "test-key",
		BaseURL: srv.URL + "/",
		Beta:    []string{"message-batches-2024-09-24", "output-128k-2025-02-19"},
	})
	if err != nil {
		t.Fatalf("NewHTTPTransport() error = %v", err)
	}
	return tr
}

func TestNewHTTPTransport_RequiresKey(t *testing.T) {
	if _, err := NewHTTPTransport(HTTPConfig{}); !errors.Is(err, claude.ErrInvalidAPIKey) {
		t.Errorf("error = %v, want ErrInvalidAPIKey", err)
	}
}

func TestHTTPTransport_SendHeaders(t *testing.T) {
	var got *http.Request
	var body []byte
	tr := newTestHTTPTransport(t, func(w http.ResponseWriter, r *http.Request) {
		got = r
		body, _ = io.ReadAll(r.Body)
		w.Header().Set("request-id", "req_1")
		_, _ = io.WriteString(w, `{"id":"msg_1"}`)
	})

	resp, err := tr.Send(context.Background(), &claude.Request{
		Method: http.MethodPost,
		Path:   claude.PathMessages,
		Body:   []byte(`{"model":"m"}`),
	})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if got.URL.Path != "/v1/messages" {
		t.Errorf("path = %q", got.URL.Path)
	}
	checks := map[string]string{
		"x-api-key":         "test-key",
		"anthropic-version": DefaultAPIVersion,
		"anthropic-beta":    "message-batches-2024-09-24,output-128k-2025-02-19",
		"Content-Type":      "application/json",
		"Accept":            "application/json",
	}
	for k, want := range checks {
		if v := got.Header.Get(k); v != want {
			t.Errorf("header %s = %q, want %q", k, v, want)
		}
	}
	if string(body) != `{"model":"m"}` {
		t.Errorf("body = %s", body)
	}
	if resp.StatusCode != 200 || string(resp.Body) != `{"id":"msg_1"}` {
		t.Errorf("resp = %d %s", resp.StatusCode, resp.Body)
	}
	if resp.Header.Get("request-id") != "req_1" {
		t.Errorf("request-id header missing")
	}
}

func TestHTTPTransport_GetHasNoContentType(t *testing.T) {
	var ct string
	tr := newTestHTTPTransport(t, func(w http.ResponseWriter, r *http.Request) {
		ct = r.Header.Get("Content-Type")
		_, _ = io.WriteString(w, `{}`)
	})

	if _, err := tr.Send(context.Background(), &claude.Request{Method: http.MethodGet, Path: "/v1/messages/batches/b1"}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if ct != "" {
		t.Errorf("Content-Type = %q, want empty", ct)
	}
}

func TestHTTPTransport_ErrorMapping(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantType  claude.ErrorKind
		wantMsg   string
		wantIs    error
		retryable bool
	}{
		{
			name:      "rate limited",
			status:    429,
			body:      `{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`,
			wantType:  claude.ErrorKindRateLimit,
			wantMsg:   "slow down",
			wantIs:    claude.ErrRateLimited,
			retryable: true,
		},
		{
			name:     "bad request",
			status:   400,
			body:     `{"type":"error","error":{"type":"invalid_request_error","message":"max_tokens: required"}}`,
			wantType: claude.ErrorKindInvalidRequest,
			wantMsg:  "max_tokens: required",
			wantIs:   claude.ErrInvalidRequest,
		},
		{
			name:      "overloaded",
			status:    529,
			body:      `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`,
			wantType:  claude.ErrorKindOverloaded,
			wantMsg:   "Overloaded",
			wantIs:    claude.ErrProviderUnavailable,
			retryable: true,
		},
		{
			name:    "plain text body",
			status:  404,
			body:    "no such route\n",
			wantMsg: "no such route",
			wantIs:  claude.ErrNotFound,
		},
		{
			name:    "empty body",
			status:  401,
			wantMsg: "Unauthorized",
			wantIs:  claude.ErrInvalidAPIKey,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newTestHTTPTransport(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("request-id", "req_err")
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})

			_, err := tr.Send(context.Background(), &claude.Request{Method: http.MethodGet, Path: "/v1/x"})

			var te *claude.TransportError
			if !errors.As(err, &te) {
				t.Fatalf("error = %T %v, want *TransportError", err, err)
			}
			if te.StatusCode != tt.status || te.Type != tt.wantType || te.Message != tt.wantMsg {
				t.Errorf("got status=%d type=%q msg=%q", te.StatusCode, te.Type, te.Message)
			}
			if te.RequestID != "req_err" {
				t.Errorf("RequestID = %q", te.RequestID)
			}
			if te.Op != "GET /v1/x" {
				t.Errorf("Op = %q", te.Op)
			}
			if !errors.Is(err, tt.wantIs) {
				t.Errorf("errors.Is(%v) = false", tt.wantIs)
			}
			if te.Retryable() != tt.retryable {
				t.Errorf("Retryable() = %v, want %v", te.Retryable(), tt.retryable)
			}
		})
	}
}

func TestHTTPTransport_Stream(t *testing.T) {
	const payload = "event: ping\ndata: {\"type\":\"ping\"}\n\n"
	var accept string
	tr := newTestHTTPTransport(t, func(w http.ResponseWriter, r *http.Request) {
		accept = r.Header.Get("Accept")
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, payload)
	})

	body, err := tr.Stream(context.Background(), &claude.Request{
		Method: http.MethodPost,
		Path:   claude.PathMessages,
		Body:   []byte(`{"stream":true}`),
	})
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != payload {
		t.Errorf("body = %q", data)
	}
	if accept != "text/event-stream" {
		t.Errorf("Accept = %q", accept)
	}
}

func TestHTTPTransport_StreamErrorStatus(t *testing.T) {
	tr := newTestHTTPTransport(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(500)
		_, _ = io.WriteString(w, `{"type":"error","error":{"type":"api_error","message":"boom"}}`)
	})

	_, err := tr.Stream(context.Background(), &claude.Request{Method: http.MethodPost, Path: claude.PathMessages})
	if !errors.Is(err, claude.ErrProviderUnavailable) {
		t.Errorf("error = %v, want ErrProviderUnavailable", err)
	}
}

func TestHTTPTransport_ContextCancelled(t *testing.T) {
	tr := newTestHTTPTransport(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{}`)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := tr.Send(ctx, &claude.Request{Method: http.MethodGet, Path: "/v1/x"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	var te *claude.TransportError
	if !errors.As(err, &te) || te.StatusCode != 0 {
		t.Errorf("want TransportError without status, got %v", err)
	}
}
