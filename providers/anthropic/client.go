// Package anthropic is the high-level client for the Claude Messages and
// Message Batches APIs. It builds request bodies from the library's message
// types and hands them to a claude.Transport; decoding of streams and the
// batch lifecycle are delegated to the stream and batch packages.
package anthropic

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	claude "github.com/haowjy/meridian-claude-go"
	"github.com/haowjy/meridian-claude-go/batch"
	"github.com/haowjy/meridian-claude-go/stream"
)

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger passed down to the stream decoder and the
// batch poller.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithPollerOptions adds options for the batch poller, such as its
// backoff or an OnPoll callback.
func WithPollerOptions(opts ...batch.Option) Option {
	return func(c *Client) { c.pollerOpts = append(c.pollerOpts, opts...) }
}

// WithStreamOptions adds options for the stream decoder.
func WithStreamOptions(opts ...stream.Option) Option {
	return func(c *Client) { c.streamOpts = append(c.streamOpts, opts...) }
}

// WithMaxBatchSize sets the chunk size used by RunChunked.
func WithMaxBatchSize(n int) Option {
	return func(c *Client) { c.maxBatchSize = n }
}

// Client sends Claude requests over a Transport.
type Client struct {
	transport    claude.Transport
	poller       *batch.Poller
	logger       *slog.Logger
	pollerOpts   []batch.Option
	streamOpts   []stream.Option
	maxBatchSize int
}

// NewClient creates a client on top of t.
func NewClient(t claude.Transport, opts ...Option) *Client {
	c := &Client{
		transport:    t,
		logger:       slog.New(slog.DiscardHandler),
		maxBatchSize: claude.GetCapabilityRegistry().Constraints().MaxBatchRequests,
	}
	for _, opt := range opts {
		opt(c)
	}

	// Caller options come last so they can replace the defaults.
	pollerOpts := append([]batch.Option{
		batch.WithLogger(c.logger),
		batch.WithResponseDecoder(ParseMessage),
	}, c.pollerOpts...)
	c.poller = batch.NewPoller(t, pollerOpts...)
	c.streamOpts = append([]stream.Option{stream.WithLogger(c.logger)}, c.streamOpts...)

	return c
}

// Poller exposes the underlying batch poller.
func (c *Client) Poller() *batch.Poller {
	return c.poller
}

// CreateMessage sends req and waits for the complete response.
func (c *Client) CreateMessage(ctx context.Context, req *claude.MessageRequest) (*claude.Response, error) {
	body, err := c.prepare(req, false)
	if err != nil {
		return nil, err
	}

	raw, err := c.transport.Send(ctx, &claude.Request{Method: http.MethodPost, Path: claude.PathMessages, Body: body})
	if err != nil {
		return nil, err
	}

	resp, err := ParseMessage(raw.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to convert response: %w", err)
	}
	return resp, nil
}

// StreamMessage sends req with streaming enabled and returns the decoded
// events. The channel is closed after MessageStop or a terminal ErrorEvent;
// cancelling ctx closes the connection. Errors before the stream opens are
// returned directly.
func (c *Client) StreamMessage(ctx context.Context, req *claude.MessageRequest) (<-chan claude.StreamEvent, error) {
	body, err := c.prepare(req, true)
	if err != nil {
		return nil, err
	}

	rc, err := c.transport.Stream(ctx, &claude.Request{Method: http.MethodPost, Path: claude.PathMessages, Body: body})
	if err != nil {
		return nil, err
	}
	return stream.Decode(ctx, rc, c.streamOpts...), nil
}

// NewBatchRequest builds one batch entry from req.
func (c *Client) NewBatchRequest(customID string, req *claude.MessageRequest) (claude.BatchRequest, error) {
	body, err := c.prepare(req, false)
	if err != nil {
		return claude.BatchRequest{}, err
	}
	for _, w := range claude.GetCapabilityRegistry().BatchWarnings(req.Model) {
		c.logger.Warn("batch request warning", "custom_id", customID, "code", w.Code, "message", w.Message)
	}
	return claude.BatchRequest{CustomID: customID, Params: body}, nil
}

// SubmitBatch creates a batch from requests.
func (c *Client) SubmitBatch(ctx context.Context, requests []claude.BatchRequest) (claude.BatchHandle, error) {
	return c.poller.Submit(ctx, requests)
}

// GetBatch fetches the current state of a batch.
func (c *Client) GetBatch(ctx context.Context, id string) (*claude.Batch, error) {
	return c.poller.PollOnce(ctx, id)
}

// WaitForBatch polls until the batch ends and returns its results.
func (c *Client) WaitForBatch(ctx context.Context, id string) ([]claude.BatchResult, error) {
	return c.poller.WaitForCompletion(ctx, id)
}

// BatchResults fetches the results of an ended batch.
func (c *Client) BatchResults(ctx context.Context, id string) ([]claude.BatchResult, error) {
	return c.poller.Results(ctx, id)
}

// CancelBatch asks the API to stop a batch.
func (c *Client) CancelBatch(ctx context.Context, id string) (*claude.Batch, error) {
	return c.poller.Cancel(ctx, id)
}

// RunChunked splits requests into batches of at most the configured size
// and returns one result per request, in order. recorder may be nil.
func (c *Client) RunChunked(ctx context.Context, requests []claude.BatchRequest, recorder batch.ChunkRecorder) ([]claude.BatchResult, error) {
	agg := &batch.Aggregator{
		Poller:       c.poller,
		MaxBatchSize: c.maxBatchSize,
		Recorder:     recorder,
		Logger:       c.logger,
	}
	return agg.Run(ctx, requests)
}

func (c *Client) prepare(req *claude.MessageRequest, streaming bool) ([]byte, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	for _, w := range claude.Warnings(req) {
		c.logger.Debug("request warning", "code", w.Code, "field", w.Field, "message", w.Message)
	}
	return encodeMessageParams(req, streaming)
}
