package lorem

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	claude "github.com/haowjy/meridian-claude-go"
)

const (
	textWords     = 30
	thinkingWords = 20
	mockSignature = "4k_a"
)

// reply is a generated answer, rendered either as a message object or as
// an event stream.
type reply struct {
	id           string
	model        string
	blocks       []mockBlock
	stopReason   claude.StopReason
	inputTokens  int
	outputTokens int
	overloaded   bool
}

type mockBlock struct {
	typ       string
	words     []string
	toolID    string
	toolName  string
	inputJSON string
}

func (b mockBlock) text() string {
	return strings.Join(b.words, " ")
}

// plan decides the reply to a Messages request body.
func (t *Transport) plan(body []byte) (*reply, error) {
	if !gjson.ValidBytes(body) {
		return nil, badRequest("request body is not valid JSON")
	}
	req := gjson.ParseBytes(body)

	model := req.Get("model").String()
	if !strings.HasPrefix(model, "lorem-") {
		return nil, notFound(fmt.Sprintf("model: %s (lorem models start with 'lorem-')", model))
	}
	maxTokens := int(req.Get("max_tokens").Int())
	if maxTokens < 1 {
		return nil, badRequest("max_tokens: must be at least 1")
	}

	r := &reply{
		id:          fmt.Sprintf("msg_lorem_%s", strings.TrimPrefix(t.requestID(), "req_lorem_")),
		model:       model,
		stopReason:  claude.StopReasonEndTurn,
		inputTokens: countInputWords(req),
		overloaded:  strings.Contains(model, "overloaded"),
	}
	budget := maxTokens

	if req.Get("thinking.type").String() == "enabled" {
		n := min(thinkingWords, budget)
		r.blocks = append(r.blocks, mockBlock{typ: claude.BlockTypeThinking, words: t.words(n)})
		budget -= n
	}

	n := textWords
	if strings.Contains(model, "cutoff") {
		n = budget
	}
	n = min(n, budget)
	if n > 0 {
		r.blocks = append(r.blocks, mockBlock{typ: claude.BlockTypeText, words: t.words(n)})
		budget -= n
	}
	if budget == 0 {
		r.stopReason = claude.StopReasonMaxTokens
	}

	// Call a client tool unless this turn already answers one.
	if tool, ok := pickTool(req); ok && !answersToolUse(req) && r.stopReason != claude.StopReasonMaxTokens {
		name := tool.Get("name").String()
		r.blocks = append(r.blocks, mockBlock{
			typ:       claude.BlockTypeToolUse,
			toolID:    fmt.Sprintf("toolu_lorem_%s_%d", name, len(r.blocks)),
			toolName:  name,
			inputJSON: t.toolInput(tool),
		})
		r.stopReason = claude.StopReasonToolUse
	}

	for _, b := range r.blocks {
		r.outputTokens += len(b.words) + len(b.inputJSON)/4
	}
	return r, nil
}

func countInputWords(req gjson.Result) int {
	words := len(strings.Fields(req.Get("system.#.text").String()))
	req.Get("messages").ForEach(func(_, msg gjson.Result) bool {
		content := msg.Get("content")
		if content.Type == gjson.String {
			words += len(strings.Fields(content.String()))
			return true
		}
		content.ForEach(func(_, block gjson.Result) bool {
			words += len(strings.Fields(block.Get("text").String()))
			return true
		})
		return true
	})
	return words
}

// pickTool returns the first tool the caller executes.
func pickTool(req gjson.Result) (gjson.Result, bool) {
	var picked gjson.Result
	req.Get("tools").ForEach(func(_, tool gjson.Result) bool {
		if strings.HasPrefix(tool.Get("type").String(), "web_search") {
			return true
		}
		picked = tool
		return false
	})
	return picked, picked.Exists()
}

func answersToolUse(req gjson.Result) bool {
	n := req.Get("messages.#").Int()
	if n == 0 {
		return false
	}
	last := req.Get(fmt.Sprintf("messages.%d.content", n-1))
	return last.Get(`#(type=="tool_result")`).Exists()
}

// toolInput builds arguments that satisfy the tool's declared schema.
func (t *Transport) toolInput(tool gjson.Result) string {
	switch name := tool.Get("name").String(); {
	case name == "bash":
		return `{"command":"echo 'lorem ipsum'"}`
	case strings.HasPrefix(tool.Get("type").String(), "text_editor"):
		return `{"command":"view","path":"/tmp/lorem.txt"}`
	}

	input := "{}"
	tool.Get("input_schema.properties").ForEach(func(key, prop gjson.Result) bool {
		input, _ = sjson.SetRaw(input, escapeKey(key.String()), t.sampleValue(prop))
		return true
	})
	return input
}

func (t *Transport) sampleValue(prop gjson.Result) string {
	if enum := prop.Get("enum"); enum.IsArray() && len(enum.Array()) > 0 {
		return enum.Array()[0].Raw
	}
	switch prop.Get("type").String() {
	case "integer", "number":
		return "3"
	case "boolean":
		return "true"
	case "array":
		item := t.sampleValue(prop.Get("items"))
		return "[" + item + "]"
	case "object":
		return "{}"
	case "null":
		return "null"
	default:
		s, _ := sjson.Set("", "v", t.words(1)[0])
		return gjson.Get(s, "v").Raw
	}
}

// escapeKey quotes sjson path syntax in a property name.
func escapeKey(k string) string {
	r := strings.NewReplacer(".", `\.`, "*", `\*`, "?", `\?`, "|", `\|`, "#", `\#`, "@", `\@`)
	return r.Replace(k)
}

func (r *reply) usageJSON(input, output int) string {
	u, _ := sjson.Set(`{}`, "input_tokens", input)
	u, _ = sjson.Set(u, "output_tokens", output)
	return u
}

// messageJSON renders the reply as a Messages API response.
func (r *reply) messageJSON() ([]byte, error) {
	d := doc{s: r.messageShell()}
	for i, b := range r.blocks {
		d.setRaw(fmt.Sprintf("content.%d", i), b.contentJSON(true))
	}
	d.set("stop_reason", string(r.stopReason))
	d.setRaw("usage", r.usageJSON(r.inputTokens, r.outputTokens))
	if d.err != nil {
		return nil, d.err
	}
	return []byte(d.s), nil
}

func (r *reply) messageShell() string {
	msg := `{"type":"message","role":"assistant","content":[],"stop_reason":null,"stop_sequence":null}`
	msg, _ = sjson.Set(msg, "id", r.id)
	msg, _ = sjson.Set(msg, "model", r.model)
	return msg
}

// contentJSON renders a content block. Without full the block is the empty
// shell sent in content_block_start.
func (b mockBlock) contentJSON(full bool) string {
	var s string
	switch b.typ {
	case claude.BlockTypeThinking:
		s = `{"type":"thinking","thinking":"","signature":""}`
		if full {
			s, _ = sjson.Set(s, "thinking", b.text())
			s, _ = sjson.Set(s, "signature", mockSignature)
		}
	case claude.BlockTypeToolUse:
		s = `{"type":"tool_use","input":{}}`
		s, _ = sjson.Set(s, "id", b.toolID)
		s, _ = sjson.Set(s, "name", b.toolName)
		if full {
			s, _ = sjson.SetRaw(s, "input", b.inputJSON)
		}
	default:
		s = `{"type":"text","text":""}`
		if full {
			s, _ = sjson.Set(s, "text", b.text())
		}
	}
	return s
}

// sse renders the reply as a server-sent event stream.
func (r *reply) sse() []byte {
	var sb strings.Builder
	emit := func(name, data string) {
		sb.WriteString("event: ")
		sb.WriteString(name)
		sb.WriteString("\ndata: ")
		sb.WriteString(data)
		sb.WriteString("\n\n")
	}

	start, _ := sjson.SetRaw(`{"type":"message_start"}`, "message", r.messageShell())
	start, _ = sjson.SetRaw(start, "message.usage", r.usageJSON(r.inputTokens, 1))
	emit(claude.EventMessageStart, start)
	emit(claude.EventPing, `{"type":"ping"}`)

	for i, b := range r.blocks {
		ev, _ := sjson.Set(`{"type":"content_block_start"}`, "index", i)
		ev, _ = sjson.SetRaw(ev, "content_block", b.contentJSON(false))
		emit(claude.EventContentBlockStart, ev)

		for _, d := range b.deltas() {
			ev, _ := sjson.Set(`{"type":"content_block_delta"}`, "index", i)
			ev, _ = sjson.SetRaw(ev, "delta", d)
			emit(claude.EventContentBlockDelta, ev)
		}

		if r.overloaded && i == len(r.blocks)-1 {
			emit(claude.EventError, `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`)
			return []byte(sb.String())
		}

		ev, _ = sjson.Set(`{"type":"content_block_stop"}`, "index", i)
		emit(claude.EventContentBlockStop, ev)
	}

	delta, _ := sjson.Set(`{"type":"message_delta","delta":{"stop_sequence":null}}`, "delta.stop_reason", string(r.stopReason))
	delta, _ = sjson.SetRaw(delta, "usage", fmt.Sprintf(`{"output_tokens":%d}`, r.outputTokens))
	emit(claude.EventMessageDelta, delta)
	emit(claude.EventMessageStop, `{"type":"message_stop"}`)

	return []byte(sb.String())
}

// deltas splits a block into the delta payloads a real stream would carry.
func (b mockBlock) deltas() []string {
	var out []string
	switch b.typ {
	case claude.BlockTypeThinking:
		for i, w := range b.words {
			d, _ := sjson.Set(`{"type":"thinking_delta"}`, "thinking", spaced(i, w))
			out = append(out, d)
		}
		d, _ := sjson.Set(`{"type":"signature_delta"}`, "signature", mockSignature)
		out = append(out, d)
	case claude.BlockTypeToolUse:
		for s := b.inputJSON; len(s) > 0; {
			n := min(8, len(s))
			d, _ := sjson.Set(`{"type":"input_json_delta"}`, "partial_json", s[:n])
			out = append(out, d)
			s = s[n:]
		}
	default:
		for i, w := range b.words {
			d, _ := sjson.Set(`{"type":"text_delta"}`, "text", spaced(i, w))
			out = append(out, d)
		}
	}
	return out
}

func spaced(i int, w string) string {
	if i == 0 {
		return w
	}
	return " " + w
}
