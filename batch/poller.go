package batch

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"

	claude "github.com/haowjy/meridian-claude-go"
)

// maxResultLine bounds a single JSONL result line.
const maxResultLine = 32 << 20

var customIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// Option configures a Poller.
type Option func(*Poller)

// WithBackoff sets the polling schedule. Zero fields keep their defaults.
func WithBackoff(b Backoff) Option {
	return func(p *Poller) { p.backoff = b.withDefaults() }
}

// WithClock replaces the wall clock, usually with a FakeClock.
func WithClock(c Clock) Option {
	return func(p *Poller) {
		if c != nil {
			p.clock = c
		}
	}
}

// WithLogger sets the logger. Polls are logged at debug level.
func WithLogger(l *slog.Logger) Option {
	return func(p *Poller) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithOnPoll registers a callback that receives every batch snapshot
// observed by WaitForCompletion, before its terminal check.
func WithOnPoll(fn func(*claude.Batch)) Option {
	return func(p *Poller) { p.onPoll = fn }
}

// WithResponseDecoder converts succeeded result messages into
// claude.Response values. Without it only BatchResult.Message is set.
func WithResponseDecoder(fn ResponseDecoder) Option {
	return func(p *Poller) { p.decode = fn }
}

// Poller drives message batches through their lifecycle.
//
// A Poller holds configuration only. Every call fetches fresh state from
// the API, so one Poller may serve any number of concurrent waits.
type Poller struct {
	transport claude.Transport
	backoff   Backoff
	clock     Clock
	logger    *slog.Logger
	onPoll    func(*claude.Batch)
	decode    ResponseDecoder
}

// NewPoller returns a Poller that issues requests through t.
func NewPoller(t claude.Transport, opts ...Option) *Poller {
	p := &Poller{
		transport: t,
		backoff:   DefaultBackoff(),
		clock:     RealClock{},
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Submit creates a batch from requests. Custom IDs must be unique and
// match ^[a-zA-Z0-9_-]{1,64}$.
func (p *Poller) Submit(ctx context.Context, requests []claude.BatchRequest) (claude.BatchHandle, error) {
	if err := validateRequests(requests); err != nil {
		return claude.BatchHandle{}, err
	}

	body, err := json.Marshal(struct {
		Requests []claude.BatchRequest `json:"requests"`
	}{requests})
	if err != nil {
		return claude.BatchHandle{}, fmt.Errorf("encode batch: %w", err)
	}

	b, err := p.do(ctx, http.MethodPost, claude.PathMessageBatches, body)
	if err != nil {
		return claude.BatchHandle{}, err
	}

	p.logger.Info("batch submitted", "batch_id", b.ID, "requests", len(requests))
	return claude.BatchHandle{
		ID:           b.ID,
		Status:       b.Status,
		RequestCount: len(requests),
		CreatedAt:    b.CreatedAt,
		ExpiresAt:    b.ExpiresAt,
	}, nil
}

// PollOnce fetches the current state of a batch.
func (p *Poller) PollOnce(ctx context.Context, id string) (*claude.Batch, error) {
	return p.do(ctx, http.MethodGet, batchPath(id), nil)
}

// Cancel asks the API to stop a batch. The batch moves to Cancelling and
// later to Cancelled, or to another terminal state if it was nearly done.
func (p *Poller) Cancel(ctx context.Context, id string) (*claude.Batch, error) {
	b, err := p.do(ctx, http.MethodPost, batchPath(id)+"/cancel", nil)
	if err != nil {
		return nil, err
	}
	p.logger.Info("batch cancel requested", "batch_id", id, "status", b.Status)
	return b, nil
}

// WaitForCompletion polls until the batch is terminal and returns its
// results. Between polls it sleeps on the backoff schedule, which starts
// over on every call.
//
// A Failed or Expired batch with no succeeded or errored requests returns
// *claude.BatchTerminalError. A terminal batch with nothing to fetch
// returns *claude.NoResultsError.
func (p *Poller) WaitForCompletion(ctx context.Context, id string) ([]claude.BatchResult, error) {
	interval := p.backoff.First()
	for {
		b, err := p.PollOnce(ctx, id)
		if err != nil {
			return nil, err
		}
		if p.onPoll != nil {
			p.onPoll(b)
		}

		if b.Status.IsTerminal() {
			p.logger.Info("batch ended",
				"batch_id", id,
				"status", b.Status,
				"succeeded", b.RequestCounts.Succeeded,
				"errored", b.RequestCounts.Errored,
			)
			return p.terminalResults(ctx, b)
		}

		p.logger.Debug("batch not finished",
			"batch_id", id,
			"status", b.Status,
			"done", b.RequestCounts.Done(),
			"total", b.RequestCounts.Total,
			"next_poll", interval,
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-p.clock.After(interval):
		}
		interval = p.backoff.Next(interval)
	}
}

func (p *Poller) terminalResults(ctx context.Context, b *claude.Batch) ([]claude.BatchResult, error) {
	partial := b.RequestCounts.Succeeded+b.RequestCounts.Errored > 0

	switch b.Status {
	case claude.BatchFailed, claude.BatchExpired:
		if !partial {
			return nil, &claude.BatchTerminalError{BatchID: b.ID, Status: b.Status, Counts: b.RequestCounts}
		}
	case claude.BatchCancelled:
		if !partial {
			return nil, &claude.NoResultsError{BatchID: b.ID, Status: b.Status}
		}
	}

	if !b.HasResults() {
		return nil, &claude.NoResultsError{BatchID: b.ID, Status: b.Status}
	}

	results, err := p.Results(ctx, b.ID)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, &claude.NoResultsError{BatchID: b.ID, Status: b.Status}
	}
	return results, nil
}

// Results downloads and decodes the results of an ended batch, in the
// order the API lists them.
func (p *Poller) Results(ctx context.Context, id string) ([]claude.BatchResult, error) {
	resp, err := p.transport.Send(ctx, &claude.Request{
		Method: http.MethodGet,
		Path:   batchPath(id) + "/results",
	})
	if err != nil {
		return nil, err
	}

	var results []claude.BatchResult
	sc := bufio.NewScanner(bytes.NewReader(resp.Body))
	sc.Buffer(make([]byte, 0, 64*1024), maxResultLine)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		r, err := parseResult(line, p.decode)
		if err != nil {
			return nil, fmt.Errorf("batch %s: %w", id, err)
		}
		results = append(results, r)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("batch %s: read results: %w", id, err)
	}
	return results, nil
}

func (p *Poller) do(ctx context.Context, method, path string, body []byte) (*claude.Batch, error) {
	resp, err := p.transport.Send(ctx, &claude.Request{Method: method, Path: path, Body: body})
	if err != nil {
		return nil, err
	}
	return parseBatch(resp.Body)
}

func batchPath(id string) string {
	return claude.PathMessageBatches + "/" + url.PathEscape(id)
}

func validateRequests(requests []claude.BatchRequest) error {
	if len(requests) == 0 {
		return &claude.ValidationError{Field: "requests", Value: 0, Reason: "at least one request is required"}
	}

	seen := make(map[string]struct{}, len(requests))
	var errs []error
	for i, r := range requests {
		if !customIDPattern.MatchString(r.CustomID) {
			errs = append(errs, &claude.ValidationError{
				Field:  fmt.Sprintf("requests[%d].custom_id", i),
				Value:  r.CustomID,
				Reason: "must be 1-64 characters of letters, digits, '_' or '-'",
			})
			continue
		}
		if _, dup := seen[r.CustomID]; dup {
			errs = append(errs, &claude.ValidationError{
				Field:  fmt.Sprintf("requests[%d].custom_id", i),
				Value:  r.CustomID,
				Reason: "duplicate custom_id",
			})
		}
		seen[r.CustomID] = struct{}{}
		if len(r.Params) == 0 {
			errs = append(errs, &claude.ValidationError{
				Field:  fmt.Sprintf("requests[%d].params", i),
				Reason: "params are required",
			})
		}
	}
	return errors.Join(errs...)
}
