package stream

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/tidwall/gjson"

	claude "github.com/haowjy/meridian-claude-go"
)

// Decoder turns SSE bytes into stream events.
//
// A Decoder is not safe for concurrent use. Once it has produced
// MessageStop or a terminal ErrorEvent it is Done and ignores further input.
type Decoder struct {
	logger *slog.Logger

	// line holds bytes after the last LF.
	line []byte

	// Fields of the segment being assembled.
	event   string
	data    []string
	hasData bool

	done bool
}

// NewDecoder returns a Decoder ready for the first chunk.
func NewDecoder(opts ...Option) *Decoder {
	o := newOptions(opts)
	return &Decoder{logger: o.logger}
}

// Feed consumes one chunk and returns the events it completed.
func (d *Decoder) Feed(chunk []byte) []claude.StreamEvent {
	if d.done {
		return nil
	}

	var out []claude.StreamEvent
	d.line = append(d.line, chunk...)
	for !d.done {
		i := bytes.IndexByte(d.line, '\n')
		if i < 0 {
			break
		}
		line := bytes.TrimSuffix(d.line[:i], []byte{'\r'})
		out = d.processLine(string(line), out)
		d.line = d.line[i+1:]
	}

	if d.done {
		d.Reset()
		d.done = true
		return out
	}

	// Keep the partial line in a buffer we own.
	if len(d.line) == 0 {
		d.line = nil
	} else if cap(d.line) > 2*len(d.line) {
		d.line = append([]byte(nil), d.line...)
	}
	return out
}

// Finish flushes a pending segment at end of input. If the stream never
// reached MessageStop it returns a terminal unexpected_end_of_stream error.
func (d *Decoder) Finish() []claude.StreamEvent {
	if d.done {
		return nil
	}

	var out []claude.StreamEvent
	if len(d.line) > 0 {
		out = d.processLine(strings.TrimSuffix(string(d.line), "\r"), out)
		d.line = nil
	}
	if !d.done {
		out = d.dispatch(out)
	}
	if !d.done {
		out = append(out, claude.ErrorEvent{
			Kind:    claude.ErrorKindUnexpectedEOF,
			Message: "stream ended before message_stop",
		})
	}
	d.Reset()
	d.done = true
	return out
}

// Fail ends the sequence with a terminal transport_error carrying err.
func (d *Decoder) Fail(err error) []claude.StreamEvent {
	if d.done {
		return nil
	}
	d.Reset()
	d.done = true
	return []claude.StreamEvent{claude.ErrorEvent{
		Kind:    claude.ErrorKindTransport,
		Message: err.Error(),
	}}
}

// Done reports whether the sequence has ended.
func (d *Decoder) Done() bool {
	return d.done
}

// Reset drops all buffered state so the Decoder can read a new stream.
func (d *Decoder) Reset() {
	d.line = nil
	d.event = ""
	d.data = nil
	d.hasData = false
	d.done = false
}

func (d *Decoder) processLine(line string, out []claude.StreamEvent) []claude.StreamEvent {
	if line == "" {
		return d.dispatch(out)
	}
	if line[0] == ':' {
		return out
	}

	field, value, _ := strings.Cut(line, ":")
	value = strings.TrimPrefix(value, " ")
	switch field {
	case "event":
		d.event = value
	case "data":
		d.data = append(d.data, value)
		d.hasData = true
	}
	return out
}

// dispatch decodes the assembled segment, if any, and clears it.
func (d *Decoder) dispatch(out []claude.StreamEvent) []claude.StreamEvent {
	name, payload, ok := d.event, strings.Join(d.data, "\n"), d.hasData
	d.event, d.data, d.hasData = "", nil, false
	if !ok {
		return out
	}

	ev := d.decodeSegment(name, payload)
	if ev == nil {
		return out
	}
	switch e := ev.(type) {
	case claude.MessageStop:
		d.done = true
	case claude.ErrorEvent:
		d.done = e.Terminal()
	}
	return append(out, ev)
}

func (d *Decoder) decodeSegment(name, payload string) claude.StreamEvent {
	if !gjson.Valid(payload) {
		return parsingError(payload, errors.New("invalid JSON"))
	}

	typ := gjson.Get(payload, "type").String()
	switch typ {
	case "":
		return parsingError(payload, errors.New("missing event type"))
	case claude.EventPing:
		return nil
	case claude.EventError:
		return serverError(payload)
	}

	var u anthropic.MessageStreamEventUnion
	if err := json.Unmarshal([]byte(payload), &u); err != nil {
		return parsingError(payload, err)
	}

	switch e := u.AsAny().(type) {
	case anthropic.MessageStartEvent:
		return claude.MessageStart{
			MessageID: e.Message.ID,
			Model:     string(e.Message.Model),
			Usage: claude.Usage{
				InputTokens:              int(e.Message.Usage.InputTokens),
				OutputTokens:             int(e.Message.Usage.OutputTokens),
				CacheCreationInputTokens: int(e.Message.Usage.CacheCreationInputTokens),
				CacheReadInputTokens:     int(e.Message.Usage.CacheReadInputTokens),
			},
		}

	case anthropic.ContentBlockStartEvent:
		return claude.ContentBlockStart{
			Index:     int(e.Index),
			BlockType: string(e.ContentBlock.Type),
			ToolUseID: e.ContentBlock.ID,
			ToolName:  e.ContentBlock.Name,
		}

	case anthropic.ContentBlockDeltaEvent:
		return claude.ContentBlockDelta{
			Index: int(e.Index),
			Delta: convertDelta(e.Delta, payload),
		}

	case anthropic.ContentBlockStopEvent:
		return claude.ContentBlockStop{Index: int(e.Index)}

	case anthropic.MessageDeltaEvent:
		md := claude.MessageDelta{StopSequence: e.Delta.StopSequence}
		if e.Delta.StopReason != "" {
			reason := claude.StopReason(e.Delta.StopReason)
			md.StopReason = &reason
		}
		if gjson.Get(payload, "usage").Exists() {
			md.Usage = &claude.Usage{
				InputTokens:              int(e.Usage.InputTokens),
				OutputTokens:             int(e.Usage.OutputTokens),
				CacheCreationInputTokens: int(e.Usage.CacheCreationInputTokens),
				CacheReadInputTokens:     int(e.Usage.CacheReadInputTokens),
			}
		}
		return md

	case anthropic.MessageStopEvent:
		return claude.MessageStop{}
	}

	d.logger.Debug("skipping unknown stream event", "type", typ, "event", name)
	return nil
}

func convertDelta(delta anthropic.RawContentBlockDeltaUnion, payload string) claude.Delta {
	switch delta.Type {
	case claude.DeltaTypeText:
		return claude.TextDelta{Text: delta.Text}
	case claude.DeltaTypeThinking:
		return claude.ThinkingDelta{Thinking: delta.Thinking}
	case claude.DeltaTypeSignature:
		return claude.SignatureDelta{Signature: delta.Signature}
	case claude.DeltaTypeInputJSON:
		return claude.InputJSONDelta{PartialJSON: delta.PartialJSON}
	}
	return claude.RawDelta{Type: delta.Type, JSON: gjson.Get(payload, "delta").Raw}
}

func parsingError(payload string, err error) claude.ErrorEvent {
	perr := &claude.ParsingError{Payload: payload, Err: err}
	return claude.ErrorEvent{
		Kind:    claude.ErrorKindParsing,
		Message: perr.Error(),
		Payload: payload,
	}
}

// serverError maps an in-band API error such as overloaded_error. Only
// parsing errors are recoverable, so the result always ends the stream.
func serverError(payload string) claude.ErrorEvent {
	kind := claude.ErrorKind(gjson.Get(payload, "error.type").String())
	if kind == "" || kind.Recoverable() {
		kind = claude.ErrorKindAPI
	}
	return claude.ErrorEvent{
		Kind:    kind,
		Message: gjson.Get(payload, "error.message").String(),
	}
}
