// Package mcpserver exposes the standards tools over the Model Context Protocol.
package mcpserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nainya/standardstore/internal/logger"
	"github.com/nainya/standardstore/pkg/tools"
)

type findArgs struct {
	Activity   string `json:"activity" jsonschema:"Description of the learning activity, lesson or objective"`
	MaxResults int    `json:"max_results,omitempty" jsonschema:"Maximum number of standards to return (1-20, default 5)"`
	Grade      string `json:"grade,omitempty" jsonschema:"Optional grade filter: K, 01-12 or 09-12"`
}

type detailsArgs struct {
	StandardID string `json:"standard_id" jsonschema:"The standard GUID (_id), e.g. EA60C8D165F6481B90BFF782CE193F93"`
}

// New creates an MCP server with the standards tools registered.
func New(svc *tools.Service, version string, log *logger.Logger) *mcp.Server {
	log = logger.OrNop(log)
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "standardstore",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name: "find_relevant_standards",
		Description: "Find educational standards relevant to a learning activity using semantic search. " +
			"Returns a JSON object {success, results, message, error_type}.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args findArgs) (*mcp.CallToolResult, any, error) {
		log.ToolLogger("find_relevant_standards").Debug("Tool called").
			Str("activity", args.Activity).
			Int("max_results", args.MaxResults).
			Str("grade", args.Grade).
			Send()
		return result(svc.FindRelevantStandards(ctx, args.Activity, args.MaxResults, args.Grade)), nil, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name: "get_standard_details",
		Description: "Get the full details of one standard by its GUID. Only GUIDs are accepted; " +
			"use find_relevant_standards to search by notation or keyword.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args detailsArgs) (*mcp.CallToolResult, any, error) {
		log.ToolLogger("get_standard_details").Debug("Tool called").Str("standard_id", args.StandardID).Send()
		return result(svc.GetStandardDetails(ctx, args.StandardID)), nil, nil
	})

	return server
}

// result wraps a tool response. Failures are reported in-band so the model can read them.
func result(resp tools.Response) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: resp.JSON()},
		},
		IsError: resp.ErrorType == tools.APIError,
	}
}

// RunStdio serves MCP over stdin/stdout until ctx is done or the client disconnects.
func RunStdio(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx, &mcp.StdioTransport{})
}
