package claude

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

// Accumulator folds a stream of events into a Response.
// Deltas are kept in memory per block index until the block stops.
type Accumulator struct {
	resp     Response
	open     map[int]*partialBlock
	done     map[int]*Block
	finished bool
	err      error
}

type partialBlock struct {
	block     *Block
	text      strings.Builder
	signature strings.Builder
	inputJSON strings.Builder
}

// NewAccumulator returns an empty Accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{
		open: make(map[int]*partialBlock),
		done: make(map[int]*Block),
	}
}

// Add applies one event. It returns an error for events that break block
// ordering, and for terminal ErrorEvents.
func (a *Accumulator) Add(ev StreamEvent) error {
	if a.err != nil {
		return a.err
	}

	switch e := ev.(type) {
	case MessageStart:
		a.resp.ID = e.MessageID
		a.resp.Model = e.Model
		a.resp.Usage = e.Usage

	case ContentBlockStart:
		if _, exists := a.open[e.Index]; exists {
			return a.fail(fmt.Errorf("content block %d started twice", e.Index))
		}
		a.open[e.Index] = &partialBlock{block: &Block{
			BlockType: e.BlockType,
			Sequence:  e.Index,
			ToolUseID: e.ToolUseID,
			ToolName:  e.ToolName,
		}}

	case ContentBlockDelta:
		p, ok := a.open[e.Index]
		if !ok {
			return a.fail(fmt.Errorf("delta for content block %d that is not open", e.Index))
		}
		switch d := e.Delta.(type) {
		case TextDelta:
			p.text.WriteString(d.Text)
		case ThinkingDelta:
			p.text.WriteString(d.Thinking)
		case SignatureDelta:
			p.signature.WriteString(d.Signature)
		case InputJSONDelta:
			p.inputJSON.WriteString(d.PartialJSON)
		}

	case ContentBlockStop:
		p, ok := a.open[e.Index]
		if !ok {
			return a.fail(fmt.Errorf("stop for content block %d that is not open", e.Index))
		}
		delete(a.open, e.Index)
		block, err := p.finish()
		if err != nil {
			return a.fail(fmt.Errorf("content block %d: %w", e.Index, err))
		}
		a.done[e.Index] = block

	case MessageDelta:
		if e.StopReason != nil {
			a.resp.StopReason = *e.StopReason
		}
		if e.StopSequence != "" {
			a.resp.StopSequence = e.StopSequence
		}
		if e.Usage != nil {
			a.resp.Usage = a.resp.Usage.Merge(*e.Usage)
		}

	case MessageStop:
		a.finished = true

	case ErrorEvent:
		if e.Terminal() {
			return a.fail(e)
		}
	}
	return nil
}

func (a *Accumulator) fail(err error) error {
	a.err = err
	return err
}

func (p *partialBlock) finish() (*Block, error) {
	b := p.block
	switch b.BlockType {
	case BlockTypeText, BlockTypeThinking:
		text := p.text.String()
		b.TextContent = &text
		b.Signature = p.signature.String()
	case BlockTypeToolUse:
		input, err := ParseValue(p.inputJSON.String())
		if err != nil {
			return nil, fmt.Errorf("tool input: %w", err)
		}
		if input.IsNull() {
			input = Object()
		}
		b.Input = input
	}
	return b, nil
}

// Finished reports whether MessageStop was seen.
func (a *Accumulator) Finished() bool {
	return a.finished
}

// Response returns the assembled reply. Blocks that never stopped are left out.
func (a *Accumulator) Response() (*Response, error) {
	if a.err != nil {
		return nil, a.err
	}
	resp := a.resp
	indexes := make([]int, 0, len(a.done))
	for i := range a.done {
		indexes = append(indexes, i)
	}
	slices.Sort(indexes)
	resp.Blocks = make([]*Block, 0, len(indexes))
	for _, i := range indexes {
		resp.Blocks = append(resp.Blocks, a.done[i])
	}
	return &resp, nil
}

// Accumulate drains events into a Response. It stops at the first terminal
// error and fails if the stream ends without MessageStop.
func Accumulate(ctx context.Context, events <-chan StreamEvent) (*Response, error) {
	acc := NewAccumulator()
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case ev, ok := <-events:
			if !ok {
				if !acc.Finished() {
					return nil, ErrorEvent{Kind: ErrorKindUnexpectedEOF, Message: "stream closed before message_stop"}
				}
				return acc.Response()
			}
			if err := acc.Add(ev); err != nil {
				return nil, err
			}
		}
	}
}
