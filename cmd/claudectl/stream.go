package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	claude "github.com/haowjy/meridian-claude-go"
)

func cmdStream(ctx context.Context, cmd *cli.Command) error {
	prompt := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
	if prompt == "" {
		return errors.New("a prompt is required")
	}

	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	client, err := s.client()
	if err != nil {
		return err
	}

	req, err := s.messageRequest(prompt, cmd.Int("max-tokens"), cmd.String("system"), cmd.String("thinking"))
	if err != nil {
		return err
	}

	events, err := client.StreamMessage(ctx, req)
	if err != nil {
		return err
	}

	showThinking := cmd.Bool("show-thinking")
	acc := claude.NewAccumulator()
	for ev := range events {
		if err := acc.Add(ev); err != nil {
			s.out.Print("\n")
			return fmt.Errorf("stream: %w", err)
		}
		switch e := ev.(type) {
		case claude.ContentBlockDelta:
			switch d := e.Delta.(type) {
			case claude.TextDelta:
				s.out.Print(d.Text)
			case claude.ThinkingDelta:
				if showThinking {
					s.out.Dim(d.Thinking)
				}
			}
		case claude.ContentBlockStop:
			if showThinking {
				s.out.Print("\n")
			}
		case claude.ErrorEvent:
			s.logger.Warn("skipped malformed stream event", "error", e.Message)
		}
	}
	s.out.Print("\n")

	if !acc.Finished() {
		if err := ctx.Err(); err != nil {
			return err
		}
		return claude.ErrorEvent{Kind: claude.ErrorKindUnexpectedEOF, Message: "stream closed before message_stop"}
	}
	resp, err := acc.Response()
	if err != nil {
		return err
	}
	for _, tu := range resp.ToolUses() {
		s.out.Info("tool call %s %s", tu.ToolName, tu.Input.String())
	}
	s.out.Info("%s: stop_reason=%s input_tokens=%d output_tokens=%d",
		resp.Model, resp.StopReason, resp.Usage.InputTokens, resp.Usage.OutputTokens)
	return nil
}

// messageRequest builds a single-turn request from command line values.
// Zero values fall back to the configuration.
func (s *session) messageRequest(prompt string, maxTokens int, system, thinking string) (*claude.MessageRequest, error) {
	if maxTokens <= 0 {
		maxTokens = s.cfg.MaxTokens
	}
	params := &claude.RequestParams{MaxTokens: &maxTokens}
	if system != "" {
		params.System = &system
	}
	if thinking != "" {
		switch thinking {
		case "low", "medium", "high":
		default:
			return nil, fmt.Errorf("unknown thinking effort %q (valid: low, medium, high)", thinking)
		}
		enabled := true
		params.ThinkingEnabled = &enabled
		params.ThinkingLevel = &thinking
	}
	return &claude.MessageRequest{
		Model:    s.cfg.Model,
		Messages: []claude.Message{claude.UserText(prompt)},
		Params:   params,
	}, nil
}
