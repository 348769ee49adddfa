package main

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	claude "github.com/haowjy/meridian-claude-go"
	"github.com/haowjy/meridian-claude-go/providers/anthropic"
)

const maxLineSize = 16 << 20

func (s *session) readRequestFile(client *anthropic.Client, path string) ([]claude.BatchRequest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return s.readRequests(client, f)
}

// readRequests parses one request per line. A line is either
//
//	{"custom_id": "...", "params": {...}}
//
// with raw Messages API params, or
//
//	{"custom_id": "...", "prompt": "...", "system": "...", "model": "...", "max_tokens": 100}
//
// where everything but prompt is optional. A missing custom_id is derived
// from the line number and content, so it is stable across runs of the
// same file.
func (s *session) readRequests(client *anthropic.Client, r io.Reader) ([]claude.BatchRequest, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var requests []claude.BatchRequest
	for n := 1; sc.Scan(); n++ {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		if !gjson.ValidBytes(line) {
			return nil, fmt.Errorf("line %d: invalid JSON", n)
		}

		customID := gjson.GetBytes(line, "custom_id").String()
		if customID == "" {
			customID = uuid.NewSHA1(uuid.NameSpaceOID, fmt.Appendf(nil, "%d:%s", n, line)).String()
		}

		if params := gjson.GetBytes(line, "params"); params.Exists() {
			if !params.IsObject() {
				return nil, fmt.Errorf("line %d: params must be an object", n)
			}
			requests = append(requests, claude.BatchRequest{CustomID: customID, Params: []byte(params.Raw)})
			continue
		}

		prompt := gjson.GetBytes(line, "prompt").String()
		if prompt == "" {
			return nil, fmt.Errorf("line %d: needs either params or prompt", n)
		}
		req, err := s.messageRequest(prompt, int(gjson.GetBytes(line, "max_tokens").Int()), gjson.GetBytes(line, "system").String(), "")
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n, err)
		}
		if model := gjson.GetBytes(line, "model").String(); model != "" {
			req.Model = model
		}
		br, err := client.NewBatchRequest(customID, req)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n, err)
		}
		requests = append(requests, br)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(requests) == 0 {
		return nil, fmt.Errorf("no requests found")
	}
	return requests, nil
}

// resultLine renders one result as a JSON object.
func resultLine(r claude.BatchResult) ([]byte, error) {
	line, err := sjson.SetBytes([]byte(`{}`), "custom_id", r.CustomID)
	if err != nil {
		return nil, err
	}
	line, _ = sjson.SetBytes(line, "status", string(r.Status))
	if len(r.Message) > 0 {
		line, err = sjson.SetRawBytes(line, "message", r.Message)
		if err != nil {
			return nil, err
		}
	}
	if r.Error != nil {
		line, _ = sjson.SetBytes(line, "error.type", string(r.Error.Kind))
		line, _ = sjson.SetBytes(line, "error.message", r.Error.Message)
	}
	return line, nil
}

func writeResultsFile(path string, results []claude.BatchResult) error {
	if path == "" {
		return nil
	}
	var buf bytes.Buffer
	for _, r := range results {
		line, err := resultLine(r)
		if err != nil {
			return fmt.Errorf("encode result %s: %w", r.CustomID, err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}
