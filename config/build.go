package config

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go/option"

	claude "github.com/haowjy/meridian-claude-go"
	"github.com/haowjy/meridian-claude-go/batch"
	"github.com/haowjy/meridian-claude-go/providers/anthropic"
	"github.com/haowjy/meridian-claude-go/providers/lorem"
	"github.com/haowjy/meridian-claude-go/transport"
)

// NewTransport builds the transport named by c.Transport.
func NewTransport(c *Config, logger *slog.Logger) (claude.Transport, error) {
	switch c.Transport {
	case TransportHTTP:
		t, err := transport.NewHTTPTransport(transport.HTTPConfig{
			APIKey:     c.APIKey,
			BaseURL:    c.BaseURL,
			APIVersion: c.APIVersion,
			Beta:       c.Beta,
			Client:     &http.Client{Timeout: c.Timeout},
			Logger:     logger,
		})
		if err != nil {
			return nil, err
		}
		return t, nil

	case TransportSDK:
		if c.APIKey == "" {
			return nil, claude.ErrInvalidAPIKey
		}
		opts := []option.RequestOption{
			option.WithAPIKey(c.APIKey),
			option.WithMaxRetries(c.MaxRetries),
		}
		if c.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(c.BaseURL))
		}
		if c.Timeout > 0 {
			opts = append(opts, option.WithRequestTimeout(c.Timeout))
		}
		for _, b := range c.Beta {
			opts = append(opts, option.WithHeaderAdd("anthropic-beta", b))
		}
		return transport.NewSDKTransport(opts...), nil

	case TransportLorem:
		return lorem.NewTransport(lorem.WithPollsToEnd(c.Batch.PollsToEnd), lorem.WithLogger(logger)), nil
	}
	return nil, fmt.Errorf("unknown transport %q", c.Transport)
}

// NewClient validates c and builds a client over its transport. Extra
// poller options are applied after the configured backoff.
func NewClient(c *Config, logger *slog.Logger, pollerOpts ...batch.Option) (*anthropic.Client, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	t, err := NewTransport(c, logger)
	if err != nil {
		return nil, err
	}

	opts := append([]batch.Option{batch.WithBackoff(c.Backoff())}, pollerOpts...)
	return anthropic.NewClient(t,
		anthropic.WithLogger(logger),
		anthropic.WithMaxBatchSize(c.Batch.MaxBatchSize),
		anthropic.WithPollerOptions(opts...),
	), nil
}
