package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	claude "github.com/haowjy/meridian-claude-go"
)

// Defaults for HTTPConfig.
const (
	DefaultBaseURL    = "https://api.anthropic.com"
	DefaultAPIVersion = "2023-06-01"
	DefaultTimeout    = 10 * time.Minute
)

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 1 << 20

// HTTPConfig configures an HTTPTransport.
type HTTPConfig struct {
	APIKey     string
	BaseURL    string   // defaults to DefaultBaseURL
	APIVersion string   // anthropic-version header, defaults to DefaultAPIVersion
	Beta       []string // anthropic-beta features

	// Client defaults to an http.Client with DefaultTimeout. Streams are
	// bounded by the same timeout, so long streams need a longer one.
	Client *http.Client
	Logger *slog.Logger
}

// HTTPTransport sends requests to the API with net/http.
type HTTPTransport struct {
	apiKey  string
	baseURL string
	version string
	beta    string
	client  *http.Client
	logger  *slog.Logger
}

// NewHTTPTransport returns a transport for cfg.
func NewHTTPTransport(cfg HTTPConfig) (*HTTPTransport, error) {
	if cfg.APIKey == "" {
		return nil, claude.ErrInvalidAPIKey
	}

	t := &HTTPTransport{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		version: cfg.APIVersion,
		beta:    strings.Join(cfg.Beta, ","),
		client:  cfg.Client,
		logger:  cfg.Logger,
	}
	if t.baseURL == "" {
		t.baseURL = DefaultBaseURL
	}
	if t.version == "" {
		t.version = DefaultAPIVersion
	}
	if t.client == nil {
		t.client = &http.Client{Timeout: DefaultTimeout}
	}
	if t.logger == nil {
		t.logger = slog.New(slog.DiscardHandler)
	}
	return t, nil
}

// Send issues req and returns the full body of a 2xx reply.
func (t *HTTPTransport) Send(ctx context.Context, req *claude.Request) (*claude.RawResponse, error) {
	resp, err := t.do(ctx, req, "application/json")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &claude.TransportError{Op: req.Op(), StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	return &claude.RawResponse{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

// Stream issues req and returns the open event-stream body.
func (t *HTTPTransport) Stream(ctx context.Context, req *claude.Request) (io.ReadCloser, error) {
	resp, err := t.do(ctx, req, "text/event-stream")
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// do returns a response with status 2xx or a *claude.TransportError.
func (t *HTTPTransport) do(ctx context.Context, req *claude.Request, accept string) (*http.Response, error) {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, t.baseURL+req.Path, body)
	if err != nil {
		return nil, &claude.TransportError{Op: req.Op(), Err: err}
	}

	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("x-api-key", t.apiKey)
	httpReq.Header.Set("anthropic-version", t.version)
	httpReq.Header.Set("Accept", accept)
	if t.beta != "" && httpReq.Header.Get("anthropic-beta") == "" {
		httpReq.Header.Set("anthropic-beta", t.beta)
	}
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, &claude.TransportError{Op: req.Op(), Err: err}
	}
	t.logger.Debug("api request",
		"op", req.Op(),
		"status", resp.StatusCode,
		"request_id", resp.Header.Get("request-id"),
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, errorFromResponse(req.Op(), resp)
	}
	return resp, nil
}

// errorFromResponse parses the API error envelope:
//
//	{"type": "error", "error": {"type": "rate_limit_error", "message": "..."}}
func errorFromResponse(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return apiError(op, resp.StatusCode, resp.Header.Get("request-id"), body, nil)
}

func apiError(op string, status int, requestID string, body []byte, cause error) *claude.TransportError {
	te := &claude.TransportError{
		Op:         op,
		StatusCode: status,
		RequestID:  requestID,
		Err:        cause,
	}
	if gjson.ValidBytes(body) {
		te.Type = claude.ErrorKind(gjson.GetBytes(body, "error.type").String())
		te.Message = gjson.GetBytes(body, "error.message").String()
	}
	if te.Message == "" {
		te.Message = strings.TrimSpace(string(body))
	}
	if te.Message == "" {
		te.Message = http.StatusText(status)
	}
	return te
}
