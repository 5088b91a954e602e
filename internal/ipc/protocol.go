package ipc

import (
	"encoding/json"
	"fmt"
)

// MethodRun is the method used for ordinary commands.
const MethodRun = "run"

// Request represents a call sent from the client to the backend.
type Request struct {
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
	Version string `json:"version"`
}

// Response represents a reply from the backend. Exactly one of Result and
// Error is meaningful; an empty Error means success.
type Response struct {
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   string          `json:"error,omitempty"`
	Version string          `json:"version"`
}

// RunParams is the params object of a "run" request.
type RunParams struct {
	Args map[string]any `json:"args"`
	Cwd  string         `json:"cwd"`
}

// RunResult is the result object the backend returns for "run".
type RunResult struct {
	Text string `json:"text"`
}

// encodeRecord serializes v as one newline-terminated record.
// encoding/json escapes control characters, so the payload never contains the delimiter.
func encodeRecord(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return append(data, recordDelimiter), nil
}

// decodeResponse parses one record. Records without a usable id are rejected
// since id 0 is never allocated.
func decodeResponse(record []byte) (*Response, error) {
	var resp Response
	if err := json.Unmarshal(record, &resp); err != nil {
		return nil, err
	}
	if resp.ID == 0 {
		return nil, fmt.Errorf("response without id")
	}
	return &resp, nil
}

// DecodeRunResult extracts the text of a "run" result. Results that are not an
// object with a text field are rendered as raw JSON.
func DecodeRunResult(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var res RunResult
	if err := json.Unmarshal(raw, &res); err == nil && res.Text != "" {
		return res.Text
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// DecodeRunParams converts the params of a request received by a server.
func (r *Request) DecodeRunParams() (*RunParams, error) {
	raw, err := json.Marshal(r.Params)
	if err != nil {
		return nil, err
	}
	var p RunParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("invalid run params: %w", err)
	}
	return &p, nil
}

// Positional returns the "_" argument list: the command name followed by its positionals.
func (p *RunParams) Positional() []string {
	var out []string
	switch v := p.Args["_"].(type) {
	case []string:
		out = append(out, v...)
	case []any:
		for _, item := range v {
			out = append(out, fmt.Sprint(item))
		}
	}
	return out
}
