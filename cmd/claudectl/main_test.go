package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pterm/pterm"
	"github.com/tidwall/gjson"

	claude "github.com/haowjy/meridian-claude-go"
	"github.com/haowjy/meridian-claude-go/config"
)

func TestMain(m *testing.M) {
	pterm.DisableStyling()
	os.Exit(m.Run())
}

const loremConfig = `
transport: lorem
model: lorem-fast
max_tokens: 200
batch:
  initial_interval: 1ms
  max_interval: 1ms
  lorem_polls_to_end: 1
log:
  level: error
`

// runApp runs the CLI against a lorem config and returns its stdout.
func runApp(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	for _, k := range []string{config.EnvModel, config.EnvTransport, config.EnvLogLevel, config.EnvBaseURL} {
		t.Setenv(k, "")
	}

	cfgPath := filepath.Join(dir, "claude.yaml")
	if _, err := os.Stat(cfgPath); err != nil {
		if err := os.WriteFile(cfgPath, []byte(loremConfig), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = io.Discard
	err := app.Run(context.Background(), append([]string{"claudectl", "--config", cfgPath}, args...))
	return out.String(), err
}

func TestModels(t *testing.T) {
	out, err := runApp(t, t.TempDir(), "models")
	if err != nil {
		t.Fatalf("models error = %v", err)
	}
	for _, want := range []string{"Max output", "claude-haiku-4-5", "claude-sonnet-4-5"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestStream(t *testing.T) {
	out, err := runApp(t, t.TempDir(), "stream", "Hello", "there")
	if err != nil {
		t.Fatalf("stream error = %v", err)
	}
	if !strings.Contains(out, "stop_reason=end_turn") {
		t.Errorf("output = %s", out)
	}
	if !strings.Contains(out, "input_tokens=2") {
		t.Errorf("input tokens not reported: %s", out)
	}
}

func TestStream_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no prompt", []string{"stream"}, "prompt is required"},
		{"bad effort", []string{"stream", "--thinking", "extreme", "hi"}, "unknown thinking effort"},
		{"overloaded mid-stream", []string{"--model", "lorem-overloaded", "stream", "hi"}, "overloaded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runApp(t, t.TempDir(), tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestStream_UnknownModel(t *testing.T) {
	_, err := runApp(t, t.TempDir(), "--model", "gpt-4", "stream", "hi")
	if !errors.Is(err, claude.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

const requestsFile = `{"custom_id": "a", "prompt": "first question"}
{"custom_id": "b", "prompt": "second", "model": "lorem-error"}

{"custom_id": "c", "params": {"model": "lorem-fast", "max_tokens": 10, "messages": [{"role": "user", "content": "hi"}]}}
{"prompt": "no id", "system": "be brief", "max_tokens": 50}
{"custom_id": "e", "prompt": "last"}
`

func TestBatchRun(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "requests.jsonl")
	if err := os.WriteFile(input, []byte(requestsFile), 0o644); err != nil {
		t.Fatal(err)
	}
	db := filepath.Join(dir, "jobs.db")
	outFile := filepath.Join(dir, "results.jsonl")

	out, err := runApp(t, dir, "batch", "run", "--file", input, "--chunk-size", "2", "--db", db, "--out", outFile)
	if err != nil {
		t.Fatalf("batch run error = %v\n%s", err, out)
	}
	if !strings.Contains(out, "5 results: 4 succeeded, 1 errored") {
		t.Errorf("summary missing:\n%s", out)
	}

	data, err := os.ReadFile(outFile)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 5 {
		t.Fatalf("got %d result lines, want 5", len(lines))
	}
	wantIDs := []string{"a", "b", "c", "", "e"}
	for i, line := range lines {
		id := gjson.Get(line, "custom_id").String()
		if wantIDs[i] != "" && id != wantIDs[i] {
			t.Errorf("line %d custom_id = %q, want %q", i, id, wantIDs[i])
		}
	}
	if got := gjson.Get(lines[1], "status").String(); got != "errored" {
		t.Errorf("lorem-error status = %q", got)
	}
	if got := gjson.Get(lines[0], "message.role").String(); got != "assistant" {
		t.Errorf("succeeded line has no message: %s", lines[0])
	}
	if gjson.Get(lines[3], "custom_id").String() == "" {
		t.Error("missing custom_id was not filled in")
	}

	out, err = runApp(t, dir, "batch", "jobs", "--db", db)
	if err != nil {
		t.Fatalf("batch jobs error = %v", err)
	}
	if !strings.Contains(out, "done") || !strings.Contains(out, "lorem-fast") {
		t.Errorf("jobs output:\n%s", out)
	}

	_, err = runApp(t, dir, "batch", "run", "--file", input, "--db", db, "--resume")
	if err == nil || !strings.Contains(err.Error(), "no resumable job") {
		t.Errorf("resume error = %v", err)
	}
}

func TestBatchSubmit(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "requests.jsonl")
	if err := os.WriteFile(input, []byte(requestsFile), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := runApp(t, dir, "batch", "submit", "--file", input)
	if err != nil {
		t.Fatalf("batch submit error = %v", err)
	}
	if !strings.Contains(out, "submitted batch msgbatch_lorem_1 with 5 requests") {
		t.Errorf("output = %s", out)
	}
}

func TestBatchStatus_Errors(t *testing.T) {
	dir := t.TempDir()

	if _, err := runApp(t, dir, "batch", "status"); err == nil {
		t.Error("expected error without batch id")
	}
	if _, err := runApp(t, dir, "batch", "status", "msgbatch_missing"); !errors.Is(err, claude.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestBatchJobs_NoDatabase(t *testing.T) {
	dir := t.TempDir()
	out, err := runApp(t, dir, "batch", "jobs", "--db", filepath.Join(dir, "none.db"))
	if err != nil {
		t.Fatalf("batch jobs error = %v", err)
	}
	if !strings.Contains(out, "no jobs recorded") {
		t.Errorf("output = %s", out)
	}
}

func TestReadRequests_Errors(t *testing.T) {
	cfg := config.Default()
	cfg.Transport = config.TransportLorem
	s := &session{cfg: cfg, out: newPrinter(io.Discard)}
	client, err := s.client()
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"invalid json", `{"prompt": `, "line 1: invalid JSON"},
		{"no prompt", "\n" + `{"custom_id": "x"}`, "line 2: needs either params or prompt"},
		{"params not object", `{"params": [1]}`, "params must be an object"},
		{"empty", "\n\n", "no requests found"},
		{"invalid request", `{"prompt": "hi", "max_tokens": 100000000}`, "line 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.readRequests(client, strings.NewReader(tt.input))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestReadRequests_StableIDs(t *testing.T) {
	cfg := config.Default()
	cfg.Transport = config.TransportLorem
	cfg.Model = "lorem-fast"
	s := &session{cfg: cfg, out: newPrinter(io.Discard)}
	client, err := s.client()
	if err != nil {
		t.Fatal(err)
	}

	input := `{"prompt": "same"}` + "\n" + `{"prompt": "same"}`
	first, err := s.readRequests(client, strings.NewReader(input))
	if err != nil {
		t.Fatal(err)
	}
	second, _ := s.readRequests(client, strings.NewReader(input))

	if first[0].CustomID != second[0].CustomID {
		t.Error("custom id changed between reads")
	}
	if first[0].CustomID == first[1].CustomID {
		t.Error("identical lines got the same custom id")
	}
	if got := gjson.GetBytes(first[0].Params, "model").String(); got != "lorem-fast" {
		t.Errorf("model = %q", got)
	}
}
