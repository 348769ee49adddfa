// Package lorem is a mock claude.Transport that generates lorem ipsum
// replies. It speaks the same wire format as the real API, so the stream
// decoder, the batch poller and the client run against it unchanged.
//
// Behaviour is selected by model name, as with the real service:
//   - lorem-slow, lorem-medium, lorem-fast: streaming speed
//   - names containing "cutoff": text stops at max_tokens
//   - names containing "overloaded": the stream fails with an overloaded_error
//   - names containing "error": batch entries come back errored
package lorem

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strings"
	"sync"
	"time"

	loremgen "github.com/bozaro/golorem"

	claude "github.com/haowjy/meridian-claude-go"
)

// Option configures a Transport.
type Option func(*Transport)

// WithSeed makes chunk sizes repeatable.
func WithSeed(seed uint64) Option {
	return func(t *Transport) { t.rng = rand.New(rand.NewPCG(seed, seed)) }
}

// WithPollsToEnd sets how many status polls a batch takes to end.
func WithPollsToEnd(n int) Option {
	return func(t *Transport) {
		if n > 0 {
			t.pollsToEnd = n
		}
	}
}

// WithoutDelay disables the per-chunk streaming delay.
func WithoutDelay() Option {
	return func(t *Transport) { t.noDelay = true }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Transport) {
		if l != nil {
			t.logger = l
		}
	}
}

// Transport is the mock service. It is safe for concurrent use.
type Transport struct {
	mu         sync.Mutex
	generator  *loremgen.Lorem
	rng        *rand.Rand
	batches    map[string]*mockBatch
	nextID     int
	pollsToEnd int
	noDelay    bool
	logger     *slog.Logger
}

// NewTransport returns a mock transport.
func NewTransport(opts ...Option) *Transport {
	t := &Transport{
		generator:  loremgen.New(),
		rng:        rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		batches:    make(map[string]*mockBatch),
		pollsToEnd: 3,
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// getStreamDelay returns the pause between chunks based on the model name.
func getStreamDelay(model string) time.Duration {
	switch {
	case strings.Contains(model, "slow"):
		return 200 * time.Millisecond
	case strings.Contains(model, "fast"):
		return 5 * time.Millisecond
	default:
		return 30 * time.Millisecond
	}
}

// Send implements claude.Transport.
func (t *Transport) Send(ctx context.Context, req *claude.Request) (*claude.RawResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, &claude.TransportError{Op: req.Op(), Err: err}
	}

	var (
		body []byte
		err  error
	)
	switch {
	case req.Method == http.MethodPost && req.Path == claude.PathMessages:
		var r *reply
		if r, err = t.plan(req.Body); err == nil {
			body, err = r.messageJSON()
		}
	case req.Method == http.MethodPost && req.Path == claude.PathMessageBatches:
		body, err = t.createBatch(req.Body)
	case strings.HasPrefix(req.Path, claude.PathMessageBatches+"/"):
		body, err = t.batchOp(req.Method, strings.TrimPrefix(req.Path, claude.PathMessageBatches+"/"))
	default:
		err = notFound("route not found")
	}

	if err != nil {
		return nil, t.fail(req, err)
	}
	return &claude.RawResponse{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Request-Id": {t.requestID()}},
		Body:       body,
	}, nil
}

// Stream implements claude.Transport. The event stream is delivered in
// randomly sized chunks.
func (t *Transport) Stream(ctx context.Context, req *claude.Request) (io.ReadCloser, error) {
	if req.Method != http.MethodPost || req.Path != claude.PathMessages {
		return nil, t.fail(req, notFound("route not found"))
	}
	r, err := t.plan(req.Body)
	if err != nil {
		return nil, t.fail(req, err)
	}

	data := r.sse()
	t.mu.Lock()
	chunks := splitRandom(t.rng, data, 64)
	t.mu.Unlock()

	delay := getStreamDelay(r.model)
	if t.noDelay {
		delay = 0
	}
	t.logger.Debug("lorem stream", "model", r.model, "bytes", len(data), "chunks", len(chunks))

	pr, pw := io.Pipe()
	go func() {
		for _, chunk := range chunks {
			if delay > 0 {
				select {
				case <-ctx.Done():
					pw.CloseWithError(ctx.Err())
					return
				case <-time.After(delay):
				}
			}
			if _, err := pw.Write(chunk); err != nil {
				return // reader closed
			}
		}
		pw.Close()
	}()
	return pr, nil
}

// apiErr is an error the mock reports as an HTTP status.
type apiErr struct {
	status int
	kind   claude.ErrorKind
	msg    string
}

func (e *apiErr) Error() string { return e.msg }

func notFound(msg string) error {
	return &apiErr{status: http.StatusNotFound, kind: claude.ErrorKindNotFound, msg: msg}
}

func badRequest(format string, args ...any) error {
	return &apiErr{status: http.StatusBadRequest, kind: claude.ErrorKindInvalidRequest, msg: fmt.Sprintf(format, args...)}
}

func (t *Transport) fail(req *claude.Request, err error) error {
	if e, ok := err.(*apiErr); ok {
		return &claude.TransportError{
			Op:         req.Op(),
			StatusCode: e.status,
			Type:       e.kind,
			Message:    e.msg,
			RequestID:  t.requestID(),
		}
	}
	return &claude.TransportError{Op: req.Op(), Err: err}
}

func (t *Transport) requestID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextID++
	return fmt.Sprintf("req_lorem_%d", t.nextID)
}

// splitRandom cuts data into pieces of 1 to maxLen bytes.
func splitRandom(rng *rand.Rand, data []byte, maxLen int) [][]byte {
	var chunks [][]byte
	for len(data) > 0 {
		n := min(1+rng.IntN(maxLen), len(data))
		chunks = append(chunks, data[:n])
		data = data[n:]
	}
	return chunks
}

// words returns roughly n words of lorem ipsum.
func (t *Transport) words(n int) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []string
	for len(out) < n {
		out = append(out, strings.Fields(t.generator.Sentence(5, 15))...)
	}
	return out[:n]
}
