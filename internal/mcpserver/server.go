// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the dictionary as tools via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/glossa/internal/announce"
	"github.com/starford/glossa/internal/apperr"
	"github.com/starford/glossa/internal/models"
)

// ChangeNotification is the method of the notification sent to clients
// after every dictionary change.
const ChangeNotification = "notifications/glossa/changed"

// Dictionary is the set of operations the tools expose.
type Dictionary interface {
	Search(ctx context.Context, query, user string) ([]models.View, error)
	Lookup(ctx context.Context, id, user string) (models.View, error)
	Create(ctx context.Context, user, head, body, scope string) (string, error)
	Vote(ctx context.Context, user, id string, vote int) error
	Note(ctx context.Context, user, id, content string) error
	Remove(ctx context.Context, user, id string) error
	Count() int
}

// Server wraps the MCP server with the dictionary tools.
type Server struct {
	mcp    *server.MCPServer
	dict   Dictionary
	logger *slog.Logger
}

// New creates a new MCP server with all tools registered.
func New(dict Dictionary, logger *slog.Logger) *Server {
	s := &Server{dict: dict, logger: logger}

	s.mcp = server.NewMCPServer(
		"Glossa",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_entries",
		mcp.WithDescription("Search dictionary entries, best matches first. "+
			"Read the query syntax first via get_query_syntax or the glossa://query-syntax resource."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Space separated search terms")),
		mcp.WithString("user", mcp.Description("User whose own votes are included in the results")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of entries to return (0 for all)")),
	), s.guard("search_entries", s.searchEntries))

	s.mcp.AddTool(mcp.NewTool("lookup_entry",
		mcp.WithDescription("Fetch a single entry by id."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Entry id")),
		mcp.WithString("user", mcp.Description("User whose own vote is included")),
	), s.guard("lookup_entry", s.lookupEntry))

	s.mcp.AddTool(mcp.NewTool("create_entry",
		mcp.WithDescription("Create a new entry. Write ___ in the body for each blank the word takes."),
		mcp.WithString("user", mcp.Required(), mcp.Description("Author of the entry")),
		mcp.WithString("head", mcp.Required(), mcp.Description("Headword")),
		mcp.WithString("body", mcp.Required(), mcp.Description("Definition")),
		mcp.WithString("scope", mcp.Description("Language scope, [a-z-]{1,24} (default en)")),
	), s.guard("create_entry", s.createEntry))

	s.mcp.AddTool(mcp.NewTool("vote_entry",
		mcp.WithDescription("Vote on an entry: 1 up, -1 down, 0 to withdraw."),
		mcp.WithString("user", mcp.Required(), mcp.Description("Voting user")),
		mcp.WithString("id", mcp.Required(), mcp.Description("Entry id")),
		mcp.WithNumber("vote", mcp.Required(), mcp.Description("-1, 0 or 1")),
	), s.guard("vote_entry", s.voteEntry))

	s.mcp.AddTool(mcp.NewTool("note_entry",
		mcp.WithDescription("Append a note to an entry."),
		mcp.WithString("user", mcp.Required(), mcp.Description("Author of the note")),
		mcp.WithString("id", mcp.Required(), mcp.Description("Entry id")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Note text")),
	), s.guard("note_entry", s.noteEntry))

	s.mcp.AddTool(mcp.NewTool("remove_entry",
		mcp.WithDescription("Remove an entry. Only its author can, and only while its score is not positive."),
		mcp.WithString("user", mcp.Required(), mcp.Description("Requesting user")),
		mcp.WithString("id", mcp.Required(), mcp.Description("Entry id")),
	), s.guard("remove_entry", s.removeEntry))

	s.mcp.AddTool(mcp.NewTool("dictionary_info",
		mcp.WithDescription("Number of entries in the dictionary."),
		mcp.WithString("user", mcp.Description("Echoed back when given")),
	), s.guard("dictionary_info", s.dictionaryInfo))

	s.mcp.AddTool(mcp.NewTool("get_query_syntax",
		mcp.WithDescription("Returns the search query syntax reference."),
	), s.guard("get_query_syntax", s.getQuerySyntax))

	// Resource: query syntax reference.
	s.mcp.AddResource(
		mcp.NewResource(SyntaxURI, "Query Syntax",
			mcp.WithResourceDescription("Search terms, filters and ranking used by search_entries."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readQuerySyntaxResource,
	)

	return s
}

// Listen serves MCP over in and out until ctx is done or in is closed.
func (s *Server) Listen(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))
	return stdio.Listen(ctx, in, out)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// Announce forwards a dictionary change to every connected client.
func (s *Server) Announce(ev models.Event) {
	s.mcp.SendNotificationToAllClients(ChangeNotification, map[string]any{
		"kind":  string(ev.Kind),
		"id":    ev.ID,
		"title": announce.Title(ev),
	})
}

// guard turns a panic inside h into a tool error.
func (s *Server) guard(name string, h server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (res *mcp.CallToolResult, err error) {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("mcp: tool panicked",
					slog.String("tool", name),
					slog.String("panic", fmt.Sprint(r)))
				res, err = mcp.NewToolResultError(apperr.ErrInternal.Error()), nil
			}
		}()
		return h(ctx, req)
	}
}

// toolError converts a service error into a tool result.
func (s *Server) toolError(err error) *mcp.CallToolResult {
	if errors.Is(err, apperr.ErrInternal) {
		s.logger.Error("mcp: internal error", slog.String("error", err.Error()))
		return mcp.NewToolResultError(apperr.ErrInternal.Error())
	}
	return mcp.NewToolResultError(err.Error())
}

func jsonResult(v any) *mcp.CallToolResult {
	out, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(string(out))
}

func (s *Server) searchEntries(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	views, err := s.dict.Search(ctx, query, req.GetString("user", ""))
	if err != nil {
		return s.toolError(err), nil
	}
	if limit := req.GetInt("limit", 0); limit > 0 && len(views) > limit {
		views = views[:limit]
	}
	return jsonResult(views), nil
}

func (s *Server) lookupEntry(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	v, err := s.dict.Lookup(ctx, id, req.GetString("user", ""))
	if err != nil {
		return s.toolError(err), nil
	}
	return jsonResult(v), nil
}

func (s *Server) createEntry(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	user, err := req.RequireString("user")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	head, err := req.RequireString("head")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	body, err := req.RequireString("body")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := s.dict.Create(ctx, user, head, body, req.GetString("scope", "en"))
	if err != nil {
		return s.toolError(err), nil
	}
	return jsonResult(map[string]string{"id": id}), nil
}

func (s *Server) voteEntry(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	user, err := req.RequireString("user")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	vote, err := req.RequireInt("vote")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.dict.Vote(ctx, user, id, vote); err != nil {
		return s.toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("voted %d on %s", vote, id)), nil
}

func (s *Server) noteEntry(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	user, err := req.RequireString("user")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.dict.Note(ctx, user, id, content); err != nil {
		return s.toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("noted on %s", id)), nil
}

func (s *Server) removeEntry(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	user, err := req.RequireString("user")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.dict.Remove(ctx, user, id); err != nil {
		return s.toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("removed: %s", id)), nil
}

func (s *Server) dictionaryInfo(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	info := struct {
		User  string `json:"user,omitempty"`
		Count int    `json:"count"`
	}{User: req.GetString("user", ""), Count: s.dict.Count()}
	return jsonResult(info), nil
}

func (s *Server) getQuerySyntax(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(QuerySyntax), nil
}

func (s *Server) readQuerySyntaxResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      SyntaxURI,
			MIMEType: "text/markdown",
			Text:     QuerySyntax,
		},
	}, nil
}
