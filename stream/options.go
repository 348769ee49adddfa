package stream

import "log/slog"

const defaultReadSize = 4096

// Option configures a Decoder or Decode.
type Option func(*options)

type options struct {
	logger   *slog.Logger
	readSize int
}

// WithLogger sets the logger for skipped and malformed events.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithReadSize sets the buffer size Decode reads with.
func WithReadSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.readSize = n
		}
	}
}

func newOptions(opts []Option) options {
	o := options{
		logger:   slog.New(slog.DiscardHandler),
		readSize: defaultReadSize,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
