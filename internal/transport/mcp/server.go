// Package mcp exposes the relay operations as Model Context Protocol
// tools over the streamable HTTP transport. The inbound bearer token is
// lifted off the HTTP request into the call context, so tool handlers
// stay transport-agnostic.
package mcp

import (
	"context"
	"net/http"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/securedocs/obo-search-relay/internal/app/relay"
)

const (
	serverName    = "obo-search-relay"
	serverVersion = "1.0.0"

	defaultTop = 5
)

type bearerTokenKey struct{}

// withBearerToken copies the Authorization bearer value from the HTTP
// request into the context. An absent or malformed header stores
// nothing; the dispatcher rejects the empty token.
func withBearerToken(ctx context.Context, r *http.Request) context.Context {
	auth := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(auth, "Bearer "); ok && token != "" {
		return context.WithValue(ctx, bearerTokenKey{}, token)
	}
	return ctx
}

func bearerToken(ctx context.Context) string {
	token, _ := ctx.Value(bearerTokenKey{}).(string)
	return token
}

// Server wires the relay service into an MCP tool surface.
type Server struct {
	service   relay.Service
	mcpServer *server.MCPServer
}

func NewServer(service relay.Service) *Server {
	mcpServer := server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(false),
	)

	s := &Server{
		service:   service,
		mcpServer: mcpServer,
	}
	s.registerTools()

	return s
}

// Handler returns the streamable HTTP handler for mounting on a router.
func (s *Server) Handler() http.Handler {
	return server.NewStreamableHTTPServer(
		s.mcpServer,
		server.WithHTTPContextFunc(withBearerToken),
		server.WithStateLess(true),
	)
}

func (s *Server) registerTools() {
	searchTool := mcp.NewTool("search_documents",
		mcp.WithDescription("Search the document index on behalf of the signed-in user. "+
			"Only documents the user is permitted to read are returned."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Full-text search query"),
		),
		mcp.WithNumber("top",
			mcp.Description("Maximum number of results to return (default 5, max 100)"),
		),
	)
	s.mcpServer.AddTool(searchTool, s.handleSearch)

	getTool := mcp.NewTool("get_document",
		mcp.WithDescription("Fetch a single document by its identifier. "+
			"Documents outside the user's permissions are reported as not found."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Document identifier"),
		),
	)
	s.mcpServer.AddTool(getTool, s.handleGet)

	suggestTool := mcp.NewTool("suggest",
		mcp.WithDescription("Return type-ahead suggestions for a query prefix, "+
			"filtered to documents the signed-in user may read."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Query prefix to complete"),
		),
		mcp.WithNumber("top",
			mcp.Description("Maximum number of suggestions to return (default 5, max 100)"),
		),
	)
	s.mcpServer.AddTool(suggestTool, s.handleSuggest)

	whoamiTool := mcp.NewTool("whoami",
		mcp.WithDescription("Describe the signed-in user as seen by the relay."),
	)
	s.mcpServer.AddTool(whoamiTool, s.handleWhoAmI)
}

func (s *Server) handleSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	queryText, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query argument is required"), nil
	}
	top := request.GetInt("top", defaultTop)

	results, err := s.service.Search(ctx, bearerToken(ctx), queryText, top)
	if err != nil {
		return toolError(err), nil
	}
	return toolJSON(results)
}

func (s *Server) handleGet(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("id argument is required"), nil
	}

	doc, err := s.service.Get(ctx, bearerToken(ctx), id)
	if err != nil {
		return toolError(err), nil
	}
	return toolJSON(doc)
}

func (s *Server) handleSuggest(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	queryText, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query argument is required"), nil
	}
	top := request.GetInt("top", defaultTop)

	results, err := s.service.Suggest(ctx, bearerToken(ctx), queryText, top)
	if err != nil {
		return toolError(err), nil
	}
	return toolJSON(results)
}

func (s *Server) handleWhoAmI(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	profile, err := s.service.WhoAmI(ctx, bearerToken(ctx))
	if err != nil {
		return toolError(err), nil
	}
	return toolJSON(profile)
}
