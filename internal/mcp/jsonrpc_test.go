package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

type wireResponse struct {
	ID     json.RawMessage `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// serve feeds lines to s, runs it to EOF and returns the decoded responses.
func serve(t *testing.T, s *Server, lines ...string) []wireResponse {
	t.Helper()
	var out bytes.Buffer
	in := strings.NewReader(strings.Join(lines, "\n") + "\n")
	if err := s.Run(context.Background(), in, &out); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var resps []wireResponse
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		if line == "" {
			continue
		}
		var r wireResponse
		if err := json.Unmarshal([]byte(line), &r); err != nil {
			t.Fatalf("decoding %q: %v", line, err)
		}
		resps = append(resps, r)
	}
	return resps
}

func decodeCall(t *testing.T, r wireResponse) callResult {
	t.Helper()
	if r.Error != nil {
		t.Fatalf("unexpected protocol error: %+v", r.Error)
	}
	var res callResult
	if err := json.Unmarshal(r.Result, &res); err != nil {
		t.Fatalf("decoding result %s: %v", r.Result, err)
	}
	return res
}

func TestRun_Initialize(t *testing.T) {
	resps := serve(t, NewServer(Sources{}, "1.2.3"), `{"jsonrpc":"2.0","id":1,"method":"initialize"}`)
	if len(resps) != 1 {
		t.Fatalf("expected 1 response, got %d", len(resps))
	}

	var init struct {
		ProtocolVersion string `json:"protocolVersion"`
		ServerInfo      struct {
			Name    string `json:"name"`
			Version string `json:"version"`
		} `json:"serverInfo"`
	}
	if err := json.Unmarshal(resps[0].Result, &init); err != nil {
		t.Fatal(err)
	}
	if init.ProtocolVersion != protocolVersion {
		t.Errorf("protocolVersion = %q", init.ProtocolVersion)
	}
	if init.ServerInfo.Name != "projectlens" || init.ServerInfo.Version != "1.2.3" {
		t.Errorf("serverInfo = %+v", init.ServerInfo)
	}
}

func TestRun_ToolsListKeepsRegistrationOrder(t *testing.T) {
	s := NewServer(Sources{}, "test")
	for _, name := range []string{"b_tool", "a_tool"} {
		s.registerTool(toolDef{Name: name, InputSchema: noArgsSchema, Handler: func(context.Context, json.RawMessage) (any, error) {
			return nil, nil
		}})
	}
	s.registerTool(toolDef{Name: "b_tool", Description: "replaced", InputSchema: noArgsSchema})

	resps := serve(t, s, `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
	var list struct {
		Tools []listedTool `json:"tools"`
	}
	if err := json.Unmarshal(resps[0].Result, &list); err != nil {
		t.Fatal(err)
	}
	if len(list.Tools) != 2 || list.Tools[0].Name != "b_tool" || list.Tools[1].Name != "a_tool" {
		t.Fatalf("tools = %+v", list.Tools)
	}
	if list.Tools[0].Description != "replaced" {
		t.Errorf("re-registering should replace the tool, got %+v", list.Tools[0])
	}
}

func TestRun_ProtocolErrors(t *testing.T) {
	tests := []struct {
		name string
		line string
		code int
	}{
		{"malformed json", `{"jsonrpc":`, codeParseError},
		{"missing method", `{"jsonrpc":"2.0","id":1}`, codeInvalidRequest},
		{"unknown method", `{"jsonrpc":"2.0","id":1,"method":"nonexistent/method"}`, codeMethodNotFound},
		{"call without name", `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{}}`, codeInvalidParams},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resps := serve(t, NewServer(Sources{}, "test"), tc.line)
			if len(resps) != 1 || resps[0].Error == nil {
				t.Fatalf("expected one error response, got %+v", resps)
			}
			if resps[0].Error.Code != tc.code {
				t.Errorf("code = %d, want %d", resps[0].Error.Code, tc.code)
			}
		})
	}
}

func TestRun_NotificationsAndBlankLinesGetNoResponse(t *testing.T) {
	resps := serve(t, NewServer(Sources{}, "test"),
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		``,
		`{"jsonrpc":"2.0","id":"p","method":"ping"}`,
	)
	if len(resps) != 1 {
		t.Fatalf("expected only the ping response, got %d", len(resps))
	}
	if string(resps[0].ID) != `"p"` || string(resps[0].Result) != `{}` {
		t.Errorf("ping response = id %s result %s", resps[0].ID, resps[0].Result)
	}
}

func TestRun_ToolCallResults(t *testing.T) {
	s := NewServer(Sources{}, "test")
	s.registerTool(toolDef{Name: "echo", Handler: func(_ context.Context, args json.RawMessage) (any, error) {
		return json.RawMessage(args), nil
	}})
	s.registerTool(toolDef{Name: "fails", Handler: func(context.Context, json.RawMessage) (any, error) {
		return nil, errors.New("no report found")
	}})
	s.registerTool(toolDef{Name: "panics", Handler: func(context.Context, json.RawMessage) (any, error) {
		panic("boom")
	}})

	resps := serve(t, s,
		`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"echo","arguments":{"x":1}}}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"echo"}}`,
		`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"fails"}}`,
		`{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"panics"}}`,
		`{"jsonrpc":"2.0","id":5,"method":"tools/call","params":{"name":"get_summary"}}`,
	)
	if len(resps) != 5 {
		t.Fatalf("expected 5 responses, got %d", len(resps))
	}

	tests := []struct {
		idx     int
		isError bool
		text    string
	}{
		{0, false, `{"x":1}`},
		{1, false, `{}`},
		{2, true, "no report found"},
		{3, true, "panics: internal error: boom"},
		{4, true, "unknown tool: get_summary"},
	}
	for _, tc := range tests {
		res := decodeCall(t, resps[tc.idx])
		if res.IsError != tc.isError || len(res.Content) != 1 || res.Content[0].Text != tc.text {
			t.Errorf("response %d = %+v, want isError=%v text %q", tc.idx, res, tc.isError, tc.text)
		}
	}
}

func TestRun_LongLine(t *testing.T) {
	s := NewServer(Sources{}, "test")
	s.registerTool(toolDef{Name: "size", Handler: func(_ context.Context, args json.RawMessage) (any, error) {
		return len(args), nil
	}})
	pad := strings.Repeat("a", 200*1024)
	resps := serve(t, s, `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"size","arguments":{"pad":"`+pad+`"}}}`)
	if len(resps) != 1 || decodeCall(t, resps[0]).IsError {
		t.Fatalf("long request not served: %+v", resps)
	}
}

func TestRun_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pr, pw := io.Pipe()
	defer pw.Close()

	done := make(chan error, 1)
	go func() { done <- NewServer(Sources{}, "test").Run(ctx, pr, io.Discard) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v after cancel, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestRun_WriteFailure(t *testing.T) {
	in := strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"ping"}` + "\n")
	err := NewServer(Sources{}, "test").Run(context.Background(), in, failingWriter{})
	if err == nil || !strings.Contains(err.Error(), "broken pipe") {
		t.Errorf("Run = %v, want write error", err)
	}
}
