package claude

import (
	"context"
	"io"
	"net/http"
)

// API paths used by this module.
const (
	PathMessages       = "/v1/messages"
	PathMessageBatches = "/v1/messages/batches"
)

// Request describes one API call independent of how it is carried.
type Request struct {
	Method string
	Path   string
	Header http.Header
	Body   []byte
}

// RawResponse is a successful (2xx) API reply.
type RawResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Transport issues requests against the API.
//
// Send returns the full body of a 2xx reply. Stream returns the open body of
// a 2xx reply for the caller to consume and close; closing it early stops
// delivery. Any other outcome is a *TransportError.
//
// Implementations must be safe for concurrent use, with every call getting
// its own response.
type Transport interface {
	Send(ctx context.Context, req *Request) (*RawResponse, error)
	Stream(ctx context.Context, req *Request) (io.ReadCloser, error)
}

// Op names a request for error messages, e.g. "POST /v1/messages".
func (r *Request) Op() string {
	return r.Method + " " + r.Path
}
