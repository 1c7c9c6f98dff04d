// Package mcp serves the research assistant as MCP tools over a stdio
// JSON-RPC loop: "tools/list" and "tools/call".
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mohammad-safakhou/researchbot/internal/agent/core"
	"github.com/mohammad-safakhou/researchbot/internal/server"
	"github.com/mohammad-safakhou/researchbot/models"
	searchmodels "github.com/mohammad-safakhou/researchbot/tools/web_search/models"
	"github.com/mohammad-safakhou/researchbot/utils"
)

// ---------- JSON-RPC skeleton ----------

type rpcReq struct {
	JSONRPC string                 `json:"jsonrpc"`
	ID      any                    `json:"id"`
	Method  string                 `json:"method"`
	Params  map[string]interface{} `json:"params"`
}
type rpcResp struct {
	JSONRPC string                 `json:"jsonrpc"`
	ID      any                    `json:"id"`
	Result  map[string]interface{} `json:"result,omitempty"`
	Error   *rpcError              `json:"error,omitempty"`
}
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeResp(w io.Writer, id any, result map[string]interface{}, err error) {
	resp := rpcResp{JSONRPC: "2.0", ID: id}
	if err != nil {
		resp.Error = &rpcError{Code: -32000, Message: err.Error()}
	} else {
		resp.Result = result
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// ---------- Tool registry ----------

// ToolDesc describes a single MCP tool, including input schema.
type ToolDesc struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

// Server holds shared deps. Docs and Search may be nil; their tools then fail.
type Server struct {
	Chat        server.Assistant
	Docs        server.Documents
	Search      core.Searcher
	CallTimeout time.Duration

	tools []ToolDesc
}

func New(chat server.Assistant, docs server.Documents, search core.Searcher) *Server {
	srv := &Server{Chat: chat, Docs: docs, Search: search, CallTimeout: 3 * time.Minute}
	srv.initTools()
	return srv
}

func (srv *Server) initTools() {
	sessionOnly := map[string]any{
		"type":       "object",
		"properties": map[string]any{"session_id": map[string]any{"type": "string"}},
		"required":   []string{"session_id"},
	}
	srv.tools = []ToolDesc{
		{
			Name:        "research.ask",
			Description: "Answer a company research question with cited web sources. Slash commands are accepted.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"message":    map[string]any{"type": "string"},
					"session_id": map[string]any{"type": "string"},
					"deep":       map[string]any{"type": "boolean"},
				},
				"required": []string{"message"},
			},
		},
		{
			Name:        "research.history",
			Description: "Turns of a research conversation.",
			InputSchema: sessionOnly,
		},
		{
			Name:        "document.preview",
			Description: "HTML preview of the session's research document.",
			InputSchema: sessionOnly,
		},
		{
			Name:        "document.search",
			Description: "Full-text search over the topics of the session's research document.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"session_id": map[string]any{"type": "string"},
					"q":          map[string]any{"type": "string"},
					"k":          map[string]any{"type": "integer", "minimum": 1, "maximum": 50},
				},
				"required": []string{"session_id", "q"},
			},
		},
		{
			Name:        "web.search",
			Description: "Search the web with the configured provider.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{"type": "string"},
					"k":     map[string]any{"type": "integer", "minimum": 1, "maximum": 25},
				},
				"required": []string{"query"},
			},
		},
	}
}

func (srv *Server) Tools() []ToolDesc { return srv.tools }

func (srv *Server) callTool(ctx context.Context, name string, args map[string]any) (map[string]any, error) {
	switch name {
	case "research.ask":
		return srv.tAsk(ctx, args)
	case "research.history":
		return srv.tHistory(ctx, args)
	case "document.preview":
		return srv.tPreview(ctx, args)
	case "document.search":
		return srv.tDocumentSearch(ctx, args)
	case "web.search":
		return srv.tWebSearch(ctx, args)
	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

func (srv *Server) tAsk(ctx context.Context, args map[string]any) (map[string]any, error) {
	msg := strings.TrimSpace(utils.Str(args["message"]))
	if msg == "" {
		return nil, errors.New("message is required")
	}
	if deep, _ := args["deep"].(bool); deep {
		msg = "/dig-deeper " + msg
	}
	resp, err := srv.Chat.HandleTurn(ctx, utils.Str(args["session_id"]), msg)
	if err != nil && resp.Answer == nil {
		return nil, err
	}
	out := map[string]any{"session_id": resp.SessionID}
	if resp.Answer != nil {
		out["answer"] = resp.Answer.Answer
		out["key_points"] = resp.KeyPoints
		out["confidence"] = resp.Confidence
		out["sources"] = resp.Sources
	}
	for k, v := range map[string]string{"intent": resp.Intent, "command": resp.Command, "content": resp.Content, "download_url": resp.DownloadURL, "message": resp.Message} {
		if v != "" {
			out[k] = v
		}
	}
	return out, nil
}

func (srv *Server) tHistory(ctx context.Context, args map[string]any) (map[string]any, error) {
	sid := utils.Str(args["session_id"])
	if sid == "" {
		return nil, errors.New("session_id is required")
	}
	turns, err := srv.Chat.History(ctx, sid)
	if err != nil {
		return nil, err
	}
	return map[string]any{"messages": turns}, nil
}

func (srv *Server) tPreview(ctx context.Context, args map[string]any) (map[string]any, error) {
	sid := utils.Str(args["session_id"])
	if sid == "" {
		return nil, errors.New("session_id is required")
	}
	if srv.Docs == nil {
		return map[string]any{"content": core.NoDocumentMessage}, nil
	}
	html, err := srv.Docs.Preview(ctx, sid)
	if errors.Is(err, models.ErrNoDocument) {
		return map[string]any{"content": core.NoDocumentMessage}, nil
	}
	if err != nil {
		return nil, err
	}
	return map[string]any{"content": html}, nil
}

func (srv *Server) tDocumentSearch(ctx context.Context, args map[string]any) (map[string]any, error) {
	sid := utils.Str(args["session_id"])
	if sid == "" {
		return nil, errors.New("session_id is required")
	}
	q := utils.Str(args["q"])
	if q == "" {
		return nil, errors.New("q is required")
	}
	if srv.Docs == nil {
		return nil, models.ErrNoDocument
	}
	k := asInt(args["k"])
	if k < 1 || k > 50 {
		k = 10
	}
	hits, err := srv.Docs.Search(ctx, sid, q, k)
	if err != nil {
		return nil, err
	}
	return map[string]any{"hits": hits}, nil
}

func (srv *Server) tWebSearch(ctx context.Context, args map[string]any) (map[string]any, error) {
	q := utils.Str(args["query"])
	if q == "" {
		return nil, errors.New("query is required")
	}
	if srv.Search == nil {
		return nil, errors.New("web search is not configured")
	}
	k := clampInt(asInt(args["k"]), 1, 25)
	results, err := srv.Search.Search(ctx, q, searchmodels.DepthAdvanced, k)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(results))
	for _, r := range results {
		out = append(out, map[string]any{"title": r.Title, "url": r.URL, "snippet": r.Content})
	}
	return map[string]any{"results": out}, nil
}

func asInt(v any) int {
	switch x := v.(type) {
	case float64:
		return int(x)
	case int:
		return x
	case json.Number:
		i, _ := x.Int64()
		return int(i)
	default:
		return 0
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ---------- stdio loop ----------

// Serve runs the JSON-RPC loop until in is exhausted or ctx is done.
// Malformed input ends the loop with an error.
func (srv *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	dec := json.NewDecoder(bufio.NewReader(in))
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var req rpcReq
		if err := dec.Decode(&req); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			_ = json.NewEncoder(out).Encode(rpcResp{JSONRPC: "2.0", Error: &rpcError{Code: -32700, Message: "parse error"}})
			return fmt.Errorf("decode request: %w", err)
		}

		switch req.Method {
		case "tools/list":
			writeResp(out, req.ID, map[string]any{"tools": srv.tools}, nil)

		case "tools/call":
			name := ""
			args := map[string]any{}
			if v, ok := req.Params["name"].(string); ok {
				name = v
			}
			if m, ok := req.Params["arguments"].(map[string]any); ok {
				args = m
			}
			callCtx, cancel := context.WithTimeout(ctx, srv.CallTimeout)
			res, err := srv.callTool(callCtx, name, args)
			cancel()
			writeResp(out, req.ID, res, err)

		default:
			writeResp(out, req.ID, nil, fmt.Errorf("unknown method: %s", req.Method))
		}
	}
}
