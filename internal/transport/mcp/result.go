package mcp

import (
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
)

// toolJSON renders a successful operation result as indented JSON text
// content.
func toolJSON(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError("failed to encode result"), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// toolError converts a dispatcher failure into a tool error result. The
// dispatcher already sanitized the message, so it is passed through
// as-is.
func toolError(err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(err.Error())
}
