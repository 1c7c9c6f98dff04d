package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mohammad-safakhou/researchbot/internal/agent/core"
	"github.com/mohammad-safakhou/researchbot/internal/document"
	"github.com/mohammad-safakhou/researchbot/models"
	searchmodels "github.com/mohammad-safakhou/researchbot/tools/web_search/models"
)

type stubChat struct{ message string }

func (c *stubChat) HandleTurn(ctx context.Context, sessionID, message string) (core.TurnResponse, error) {
	c.message = message
	return core.TurnResponse{
		Answer:    &models.Answer{Answer: "Tesla makes cars.", KeyPoints: []string{}, Confidence: models.ConfidenceMedium, Sources: []models.Source{}},
		SessionID: "s1",
		Intent:    "overview",
	}, nil
}

func (c *stubChat) NewSession(ctx context.Context) (string, error) { return "s2", nil }

func (c *stubChat) History(ctx context.Context, id string) ([]models.Turn, error) {
	return []models.Turn{{Role: models.RoleUser, Content: "hi"}}, nil
}

func (c *stubChat) Suggestions(ctx context.Context, id, q, a string) []string { return nil }

type stubDocs struct{}

func (stubDocs) Preview(ctx context.Context, id string) (string, error) { return "", models.ErrNoDocument }
func (stubDocs) DOCX(ctx context.Context, id string) ([]byte, error)    { return nil, models.ErrNoDocument }
func (stubDocs) Search(ctx context.Context, id, q string, k int) ([]document.Hit, error) {
	return []document.Hit{{Index: 1, Topic: "Tesla"}}, nil
}

type stubSearch struct{ k int }

func (s *stubSearch) Search(ctx context.Context, q string, d searchmodels.Depth, k int) ([]searchmodels.Result, error) {
	s.k = k
	return []searchmodels.Result{{URL: "https://tesla.com", Title: "Tesla", Content: "EVs"}}, nil
}

func run(t *testing.T, srv *Server, lines ...string) []rpcResp {
	t.Helper()
	var out bytes.Buffer
	if err := srv.Serve(context.Background(), strings.NewReader(strings.Join(lines, "\n")), &out); err != nil {
		t.Fatalf("Serve: %v", err)
	}
	var resps []rpcResp
	dec := json.NewDecoder(&out)
	for dec.More() {
		var r rpcResp
		if err := dec.Decode(&r); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		resps = append(resps, r)
	}
	return resps
}

func TestToolsList(t *testing.T) {
	srv := New(&stubChat{}, stubDocs{}, &stubSearch{})
	resps := run(t, srv, `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	if len(resps) != 1 || resps[0].Error != nil {
		t.Fatalf("unexpected responses %+v", resps)
	}
	tools, _ := resps[0].Result["tools"].([]any)
	if len(tools) != len(srv.Tools()) {
		t.Fatalf("expected %d tools, got %d", len(srv.Tools()), len(tools))
	}
}

func TestToolsCall(t *testing.T) {
	chat := &stubChat{}
	search := &stubSearch{}
	srv := New(chat, stubDocs{}, search)
	resps := run(t, srv,
		`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"research.ask","arguments":{"message":"Tell me about Tesla","deep":true}}}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"document.preview","arguments":{"session_id":"s1"}}}`,
		`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"web.search","arguments":{"query":"tesla","k":99}}}`,
		`{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"document.search","arguments":{"session_id":"s1"}}}`,
		`{"jsonrpc":"2.0","id":5,"method":"nope"}`,
	)
	if len(resps) != 5 {
		t.Fatalf("expected 5 responses, got %d", len(resps))
	}
	if resps[0].Result["answer"] != "Tesla makes cars." || chat.message != "/dig-deeper Tell me about Tesla" {
		t.Fatalf("unexpected ask result %v (message %q)", resps[0].Result, chat.message)
	}
	if resps[1].Result["content"] != core.NoDocumentMessage {
		t.Fatalf("unexpected preview %v", resps[1].Result)
	}
	if search.k != 25 {
		t.Fatalf("k should be clamped to 25, got %d", search.k)
	}
	if resps[3].Error == nil || !strings.Contains(resps[3].Error.Message, "q is required") {
		t.Fatalf("expected missing q error, got %+v", resps[3])
	}
	if resps[4].Error == nil {
		t.Fatalf("expected unknown method error")
	}
}

func TestServeRejectsMalformedInput(t *testing.T) {
	srv := New(&stubChat{}, nil, nil)
	var out bytes.Buffer
	if err := srv.Serve(context.Background(), strings.NewReader("{not json"), &out); err == nil {
		t.Fatalf("expected decode error")
	}
	if !strings.Contains(out.String(), "-32700") {
		t.Fatalf("expected parse error response, got %q", out.String())
	}
}
