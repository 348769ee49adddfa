package lorem

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const batchLifetime = 24 * time.Hour

// mockBatch is a batch that advances one step per status poll.
type mockBatch struct {
	id        string
	createdAt time.Time
	endedAt   time.Time
	cancelAt  time.Time
	entries   []batchEntry
	polls     int
	resolved  int
	canceling bool
	ended     bool
}

type batchEntry struct {
	customID string
	params   []byte
	result   string // succeeded, errored, canceled
}

func (t *Transport) createBatch(body []byte) ([]byte, error) {
	if !gjson.ValidBytes(body) {
		return nil, badRequest("request body is not valid JSON")
	}
	requests := gjson.GetBytes(body, "requests").Array()
	if len(requests) == 0 {
		return nil, badRequest("requests: at least one request is required")
	}

	seen := make(map[string]bool, len(requests))
	entries := make([]batchEntry, 0, len(requests))
	for i, r := range requests {
		id := r.Get("custom_id").String()
		if id == "" || seen[id] {
			return nil, badRequest("requests.%d.custom_id: missing or duplicate %q", i, id)
		}
		seen[id] = true
		entries = append(entries, batchEntry{customID: id, params: []byte(r.Get("params").Raw)})
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	b := &mockBatch{
		id:        fmt.Sprintf("msgbatch_lorem_%d", len(t.batches)+1),
		createdAt: time.Now().UTC(),
		entries:   entries,
	}
	t.batches[b.id] = b
	t.logger.Debug("lorem batch created", "batch_id", b.id, "requests", len(entries))
	return b.json()
}

// batchOp serves {id}, {id}/cancel and {id}/results.
func (t *Transport) batchOp(method, rest string) ([]byte, error) {
	id, op, _ := strings.Cut(rest, "/")

	t.mu.Lock()
	b, ok := t.batches[id]
	t.mu.Unlock()
	if !ok {
		return nil, notFound("batch not found: " + id)
	}

	switch {
	case method == http.MethodGet && op == "":
		t.mu.Lock()
		defer t.mu.Unlock()
		t.advance(b)
		return b.json()

	case method == http.MethodPost && op == "cancel":
		t.mu.Lock()
		defer t.mu.Unlock()
		if !b.ended {
			b.canceling = true
			b.cancelAt = time.Now().UTC()
		}
		return b.json()

	case method == http.MethodGet && op == "results":
		t.mu.Lock()
		ended := b.ended
		entries := append([]batchEntry(nil), b.entries...)
		t.mu.Unlock()
		if !ended {
			return nil, badRequest("batch %s has not ended", id)
		}
		return t.results(entries)
	}
	return nil, notFound("route not found")
}

// advance moves b one poll forward. t.mu must be held.
func (t *Transport) advance(b *mockBatch) {
	if b.ended {
		return
	}
	b.polls++

	if b.canceling {
		for i := b.resolved; i < len(b.entries); i++ {
			b.entries[i].result = "canceled"
		}
		b.resolved = len(b.entries)
	} else {
		target := len(b.entries) * b.polls / t.pollsToEnd
		for ; b.resolved < min(target, len(b.entries)); b.resolved++ {
			e := &b.entries[b.resolved]
			e.result = "succeeded"
			if strings.Contains(gjson.GetBytes(e.params, "model").String(), "error") {
				e.result = "errored"
			}
		}
	}

	if b.resolved == len(b.entries) {
		b.ended = true
		b.endedAt = time.Now().UTC()
	}
}

func (b *mockBatch) json() ([]byte, error) {
	counts := map[string]int{"processing": 0, "succeeded": 0, "errored": 0, "canceled": 0, "expired": 0}
	for _, e := range b.entries {
		if e.result == "" {
			counts["processing"]++
		} else {
			counts[e.result]++
		}
	}

	status := "in_progress"
	switch {
	case b.ended:
		status = "ended"
	case b.canceling:
		status = "canceling"
	}

	d := doc{s: `{"type":"message_batch"}`}
	d.set("id", b.id)
	d.set("processing_status", status)
	d.set("request_counts", counts)
	d.set("created_at", b.createdAt.Format(time.RFC3339))
	d.set("expires_at", b.createdAt.Add(batchLifetime).Format(time.RFC3339))
	if !b.cancelAt.IsZero() {
		d.set("cancel_initiated_at", b.cancelAt.Format(time.RFC3339))
	}
	if b.ended {
		d.set("ended_at", b.endedAt.Format(time.RFC3339))
		d.set("results_url", "https://lorem.invalid/v1/messages/batches/"+b.id+"/results")
	}
	if d.err != nil {
		return nil, fmt.Errorf("render batch %s: %w", b.id, d.err)
	}
	return []byte(d.s), nil
}

// results renders the JSONL results file, one line per entry.
func (t *Transport) results(entries []batchEntry) ([]byte, error) {
	var sb strings.Builder
	for _, e := range entries {
		d := doc{s: `{}`}
		d.set("custom_id", e.customID)
		switch e.result {
		case "succeeded":
			r, err := t.plan(e.params)
			var msg []byte
			if err == nil {
				msg, err = r.messageJSON()
			}
			if err != nil {
				d.setRaw("result", errorResult(&d, "invalid_request_error", err.Error()))
				break
			}
			d.setRaw("result", `{"type":"succeeded"}`)
			d.setRaw("result.message", string(msg))
		case "errored":
			d.setRaw("result", errorResult(&d, "api_error", "lorem model requested an error"))
		default:
			d.set("result.type", e.result)
		}
		if d.err != nil {
			return nil, fmt.Errorf("render result %s: %w", e.customID, d.err)
		}
		sb.WriteString(d.s)
		sb.WriteByte('\n')
	}
	return []byte(sb.String()), nil
}

func errorResult(parent *doc, kind, msg string) string {
	d := doc{s: `{"type":"errored","error":{"type":"error","error":{}}}`}
	d.set("error.error.type", kind)
	d.set("error.error.message", msg)
	if d.err != nil && parent.err == nil {
		parent.err = d.err
	}
	return d.s
}

// doc builds a JSON document with sjson, keeping the first error.
type doc struct {
	s   string
	err error
}

func (d *doc) set(path string, v any) {
	if d.err == nil {
		d.s, d.err = sjson.Set(d.s, path, v)
	}
}

func (d *doc) setRaw(path, raw string) {
	if d.err == nil {
		d.s, d.err = sjson.SetRaw(d.s, path, raw)
	}
}
