package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// protocolVersion is the MCP revision the server speaks.
const protocolVersion = "2024-11-05"

// JSON-RPC 2.0 error codes.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
)

// maxLineSize bounds a single request line.
const maxLineSize = 1 << 20

// Server answers MCP requests over newline-delimited JSON-RPC 2.0. Tool
// results are returned as JSON text content; tool failures are reported in
// the result with isError set, never as protocol errors, followed by any
// partial result the tool produced.
type Server struct {
	tools   []toolDef
	byName  map[string]int
	version string
	src     Sources
}

type toolDef struct {
	Name        string
	Description string
	InputSchema json.RawMessage
	Handler     toolHandler
}

type toolHandler func(ctx context.Context, args json.RawMessage) (any, error)

type request struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      *json.RawMessage `json:"id,omitempty"`
	Method  string           `json:"method"`
	Params  json.RawMessage  `json:"params,omitempty"`
}

type response struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      *json.RawMessage `json:"id,omitempty"`
	Result  any              `json:"result,omitempty"`
	Error   *rpcError        `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type callParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

type callResult struct {
	Content []textContent `json:"content"`
	IsError bool          `json:"isError"`
}

type textContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type listedTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// NewServer constructs a Server answering from src. version is reported in
// the initialize handshake.
func NewServer(src Sources, version string) *Server {
	s := &Server{
		byName:  map[string]int{},
		version: version,
		src:     src,
	}
	addTools(s)
	return s
}

// registerTool adds def, replacing any tool of the same name.
func (s *Server) registerTool(def toolDef) {
	if i, ok := s.byName[def.Name]; ok {
		s.tools[i] = def
		return
	}
	s.byName[def.Name] = len(s.tools)
	s.tools = append(s.tools, def)
}

// Run serves requests from r until ctx is cancelled or r reaches EOF, both
// of which return nil. Read and write failures are returned.
func (s *Server) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	lines := make(chan []byte)
	readErr := make(chan error, 1)

	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
		for sc.Scan() {
			line := append([]byte(nil), sc.Bytes()...)
			select {
			case lines <- line:
			case <-ctx.Done():
				readErr <- nil
				return
			}
		}
		readErr <- sc.Err()
	}()

	out := bufio.NewWriter(w)
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return <-readErr
			}
			resp, reply := s.handle(ctx, line)
			if !reply {
				continue
			}
			if err := writeLine(out, resp); err != nil {
				return err
			}
		}
	}
}

// handle decodes one message and returns its response. reply is false for
// notifications and blank lines.
func (s *Server) handle(ctx context.Context, line []byte) (resp response, reply bool) {
	if len(line) == 0 {
		return response{}, false
	}
	var req request
	if err := json.Unmarshal(line, &req); err != nil {
		return errorResponse(nil, codeParseError, "Parse error"), true
	}
	if req.ID == nil {
		return response{}, false
	}
	if req.Method == "" {
		return errorResponse(req.ID, codeInvalidRequest, "Invalid request"), true
	}

	resp = response{JSONRPC: "2.0", ID: req.ID}
	switch req.Method {
	case "initialize":
		resp.Result = map[string]any{
			"protocolVersion": protocolVersion,
			"capabilities":    map[string]any{"tools": map[string]any{}},
			"serverInfo":      map[string]any{"name": "projectlens", "version": s.version},
		}
	case "ping":
		resp.Result = map[string]any{}
	case "tools/list":
		listed := make([]listedTool, 0, len(s.tools))
		for _, t := range s.tools {
			listed = append(listed, listedTool{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema})
		}
		resp.Result = map[string]any{"tools": listed}
	case "tools/call":
		var p callParams
		if err := json.Unmarshal(req.Params, &p); err != nil || p.Name == "" {
			return errorResponse(req.ID, codeInvalidParams, "Invalid params"), true
		}
		resp.Result = s.call(ctx, p)
	default:
		return errorResponse(req.ID, codeMethodNotFound, "Method not found"), true
	}
	return resp, true
}

// call runs one tool. A panicking handler is reported as a failed call.
func (s *Server) call(ctx context.Context, p callParams) (res callResult) {
	i, ok := s.byName[p.Name]
	if !ok {
		return failed(fmt.Errorf("unknown tool: %s", p.Name))
	}
	args := p.Arguments
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}

	defer func() {
		if r := recover(); r != nil {
			res = failed(fmt.Errorf("%s: internal error: %v", p.Name, r))
		}
	}()

	out, err := s.tools[i].Handler(ctx, args)
	if err != nil {
		res = failed(err)
		// A partial result travels with the error.
		if out != nil {
			if text, merr := json.Marshal(out); merr == nil {
				res.Content = append(res.Content, textContent{Type: "text", Text: string(text)})
			}
		}
		return res
	}
	text, err := json.Marshal(out)
	if err != nil {
		return failed(fmt.Errorf("encoding %s result: %w", p.Name, err))
	}
	return callResult{Content: []textContent{{Type: "text", Text: string(text)}}}
}

func failed(err error) callResult {
	return callResult{Content: []textContent{{Type: "text", Text: err.Error()}}, IsError: true}
}

func errorResponse(id *json.RawMessage, code int, msg string) response {
	return response{JSONRPC: "2.0", ID: id, Error: &rpcError{Code: code, Message: msg}}
}

// writeLine writes resp as one JSON line and flushes.
func writeLine(w *bufio.Writer, resp response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return err
	}
	return w.Flush()
}
