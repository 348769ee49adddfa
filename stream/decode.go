package stream

import (
	"context"
	"errors"
	"io"
	"sync"

	claude "github.com/haowjy/meridian-claude-go"
)

// Decode reads body on a new goroutine and sends the decoded events on the
// returned channel. The channel is closed after MessageStop, after a
// terminal ErrorEvent, or when ctx is cancelled.
//
// Cancelling ctx closes body so the transport stops delivering, and no
// further events are sent. The body is always closed before the channel.
func Decode(ctx context.Context, body io.ReadCloser, opts ...Option) <-chan claude.StreamEvent {
	o := newOptions(opts)
	out := make(chan claude.StreamEvent)

	go func() {
		defer close(out)

		var once sync.Once
		closeBody := func() { once.Do(func() { body.Close() }) }
		defer closeBody()
		stop := context.AfterFunc(ctx, closeBody)
		defer stop()

		dec := NewDecoder(opts...)
		defer dec.Reset()

		send := func(events []claude.StreamEvent) bool {
			for _, ev := range events {
				select {
				case <-ctx.Done():
					return false
				case out <- ev:
				}
			}
			return true
		}

		buf := make([]byte, o.readSize)
		for {
			n, err := body.Read(buf)
			if n > 0 {
				if !send(dec.Feed(buf[:n])) || dec.Done() {
					return
				}
			}
			switch {
			case err == nil:
			case errors.Is(err, io.EOF):
				send(dec.Finish())
				return
			case ctx.Err() != nil:
				return
			default:
				o.logger.Debug("stream read failed", "error", err)
				send(dec.Fail(err))
				return
			}
		}
	}()

	return out
}

// Collect drains events until the channel closes. It returns the events
// received and, if the sequence ended with a terminal ErrorEvent, that
// event as the error.
func Collect(ctx context.Context, events <-chan claude.StreamEvent) ([]claude.StreamEvent, error) {
	var out []claude.StreamEvent
	for {
		select {
		case <-ctx.Done():
			return out, ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return out, nil
			}
			out = append(out, ev)
			if e, isErr := ev.(claude.ErrorEvent); isErr && e.Terminal() {
				return out, e
			}
		}
	}
}
