package mcpserver

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/glossa/internal/dictionary"
	"github.com/starford/glossa/internal/models"
	"github.com/starford/glossa/internal/testutil"
)

func testServer(t *testing.T) (*Server, *dictionary.Service) {
	t.Helper()
	dir, store := testutil.TestStore(t)
	dict := dictionary.Open(store, dictionary.Paths{
		Dict:     filepath.Join(dir, "dict.db"),
		Accounts: filepath.Join(dir, "accounts.db"),
	}, dictionary.WithLogger(testutil.Logger()))
	return New(dict, testutil.Logger()), dict
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	var result *mcp.CallToolResult
	var err error

	switch name {
	case "search_entries":
		result, err = srv.searchEntries(ctx, req)
	case "lookup_entry":
		result, err = srv.lookupEntry(ctx, req)
	case "create_entry":
		result, err = srv.createEntry(ctx, req)
	case "vote_entry":
		result, err = srv.voteEntry(ctx, req)
	case "note_entry":
		result, err = srv.noteEntry(ctx, req)
	case "remove_entry":
		result, err = srv.removeEntry(ctx, req)
	case "dictionary_info":
		result, err = srv.dictionaryInfo(ctx, req)
	case "get_query_syntax":
		result, err = srv.getQuerySyntax(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func create(t *testing.T, srv *Server, user, head, body string) string {
	t.Helper()
	r := callTool(t, srv, "create_entry", map[string]interface{}{
		"user": user, "head": head, "body": body,
	})
	if r.IsError {
		t.Fatalf("create failed: %s", resultText(r))
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal([]byte(resultText(r)), &out); err != nil {
		t.Fatal(err)
	}
	return out.ID
}

func TestCreateAndSearch(t *testing.T) {
	srv, _ := testServer(t)
	id := create(t, srv, "jan", "toki", "to speak")
	create(t, srv, "jan", "pona", "good")

	r := callTool(t, srv, "search_entries", map[string]interface{}{"query": "speak", "user": "jan"})
	var views []models.View
	if err := json.Unmarshal([]byte(resultText(r)), &views); err != nil {
		t.Fatalf("bad json %q: %v", resultText(r), err)
	}
	if len(views) != 1 || views[0].ID != id || views[0].Scope != "en" {
		t.Fatalf("views = %+v", views)
	}
	if views[0].Vote == nil || *views[0].Vote != 0 {
		t.Fatalf("vote = %v", views[0].Vote)
	}

	r = callTool(t, srv, "search_entries", map[string]interface{}{"query": "...", "limit": 1})
	views = nil
	if err := json.Unmarshal([]byte(resultText(r)), &views); err != nil {
		t.Fatal(err)
	}
	if len(views) != 1 {
		t.Fatalf("limit ignored: %d views", len(views))
	}
}

func TestVoteNoteLookup(t *testing.T) {
	srv, _ := testServer(t)
	id := create(t, srv, "jan", "toki", "to speak")

	if r := callTool(t, srv, "vote_entry", map[string]interface{}{"user": "bob", "id": id, "vote": 1}); r.IsError {
		t.Fatalf("vote: %s", resultText(r))
	}
	if r := callTool(t, srv, "note_entry", map[string]interface{}{"user": "bob", "id": id, "content": "nice"}); r.IsError {
		t.Fatalf("note: %s", resultText(r))
	}

	r := callTool(t, srv, "lookup_entry", map[string]interface{}{"id": id, "user": "bob"})
	var v models.View
	if err := json.Unmarshal([]byte(resultText(r)), &v); err != nil {
		t.Fatal(err)
	}
	if v.Score != 1 || *v.Vote != 1 || len(v.Notes) != 1 {
		t.Fatalf("view = %+v", v)
	}

	r = callTool(t, srv, "vote_entry", map[string]interface{}{"user": "bob", "id": id, "vote": 3})
	if !r.IsError {
		t.Fatal("out of range vote accepted")
	}
}

func TestRemoveRules(t *testing.T) {
	srv, dict := testServer(t)
	id := create(t, srv, "jan", "toki", "to speak")

	r := callTool(t, srv, "remove_entry", map[string]interface{}{"user": "bob", "id": id})
	if !r.IsError || !strings.Contains(resultText(r), "not the owner") {
		t.Fatalf("result = %q", resultText(r))
	}
	r = callTool(t, srv, "remove_entry", map[string]interface{}{"user": "jan", "id": id})
	if r.IsError {
		t.Fatalf("remove: %s", resultText(r))
	}
	if dict.Count() != 0 {
		t.Fatalf("count = %d", dict.Count())
	}
}

func TestLookupMissing(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "lookup_entry", map[string]interface{}{"id": "nothere"})
	if !r.IsError {
		t.Fatal("expected error for missing entry")
	}
}

func TestMissingArguments(t *testing.T) {
	srv, _ := testServer(t)
	for _, name := range []string{"search_entries", "lookup_entry", "create_entry", "vote_entry", "note_entry", "remove_entry"} {
		if r := callTool(t, srv, name, map[string]interface{}{}); !r.IsError {
			t.Errorf("%s accepted empty arguments", name)
		}
	}
}

func TestDictionaryInfo(t *testing.T) {
	srv, _ := testServer(t)
	create(t, srv, "jan", "toki", "to speak")
	r := callTool(t, srv, "dictionary_info", map[string]interface{}{"user": "jan"})
	if got := resultText(r); !strings.Contains(got, `"count": 1`) || !strings.Contains(got, `"user": "jan"`) {
		t.Fatalf("info = %s", got)
	}
}

func TestQuerySyntax(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_query_syntax", nil)
	if !strings.Contains(resultText(r), "arity:<n>") {
		t.Fatal("syntax reference incomplete")
	}
	contents, err := srv.readQuerySyntaxResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil || len(contents) != 1 {
		t.Fatalf("resource = %v, %v", contents, err)
	}
}

func TestGuardRecoversPanics(t *testing.T) {
	srv, _ := testServer(t)
	h := srv.guard("boom", func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		panic("boom")
	})
	r, err := h(context.Background(), mcp.CallToolRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if !r.IsError || resultText(r) != "internal error" {
		t.Fatalf("result = %+v", r)
	}
}

func TestAnnounceWithoutClients(t *testing.T) {
	srv, _ := testServer(t)
	srv.Announce(models.Event{Kind: models.EventCreated, ID: "abcdef", Head: "toki", Actor: "jan"})
}
