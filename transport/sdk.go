package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	claude "github.com/haowjy/meridian-claude-go"
)

// SDKTransport carries requests over an anthropic.Client, so the SDK's
// authentication, retry and timeout options apply. Bodies are passed
// through unchanged.
type SDKTransport struct {
	client anthropic.Client
}

// NewSDKTransport builds an anthropic.Client from opts, for example
// option.WithAPIKey and option.WithMaxRetries. Without WithAPIKey the SDK
// reads ANTHROPIC_API_KEY.
func NewSDKTransport(opts ...option.RequestOption) *SDKTransport {
	return &SDKTransport{client: anthropic.NewClient(opts...)}
}

// NewSDKTransportFromClient wraps an existing client.
func NewSDKTransportFromClient(client anthropic.Client) *SDKTransport {
	return &SDKTransport{client: client}
}

// Send issues req and returns the full body of a 2xx reply.
func (t *SDKTransport) Send(ctx context.Context, req *claude.Request) (*claude.RawResponse, error) {
	resp, err := t.execute(ctx, req)
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
func (t *SDKTransport) Stream(ctx context.Context, req *claude.Request) (io.ReadCloser, error) {
	resp, err := t.execute(ctx, req, option.WithHeader("Accept", "text/event-stream"))
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (t *SDKTransport) execute(ctx context.Context, req *claude.Request, opts ...option.RequestOption) (*http.Response, error) {
	for k, vs := range req.Header {
		for _, v := range vs {
			opts = append(opts, option.WithHeaderAdd(k, v))
		}
	}

	// A []byte body is sent as-is; a nil interface sends none.
	var params any
	if req.Body != nil {
		params = req.Body
	}

	// With **http.Response the SDK leaves the body open for us.
	var resp *http.Response
	err := t.client.Execute(ctx, req.Method, strings.TrimPrefix(req.Path, "/"), params, &resp, opts...)
	if err != nil {
		return nil, sdkError(req.Op(), err)
	}
	return resp, nil
}

func sdkError(op string, err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiError(op, apiErr.StatusCode, apiErr.RequestID, []byte(apiErr.RawJSON()), err)
	}
	return &claude.TransportError{Op: op, Err: err}
}
