// Package mcp exposes the catalog tools over the Model Context Protocol so
// an operator can query prices and budgets from any MCP client.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/nextlevelbuilder/radar/internal/tools"
)

const serverName = "radar"

const instructions = `Radar compares retail prices across the stores of its catalog.
Use search_products to look up offers and compute_budget to price a shopping
list per store. Prices are in BRL.`

// NewServer builds an MCP server exposing the named tools of reg. With no
// names every registered tool is exposed.
func NewServer(reg *tools.Registry, version string, names ...string) (*server.MCPServer, error) {
	s := server.NewMCPServer(
		serverName,
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)

	if len(names) == 0 {
		names = reg.List()
	}
	for _, name := range names {
		t, ok := reg.Get(name)
		if !ok {
			return nil, fmt.Errorf("unknown tool %q", name)
		}
		schema, err := json.Marshal(t.Parameters())
		if err != nil {
			return nil, fmt.Errorf("encode schema of %s: %w", name, err)
		}
		s.AddTool(mcpgo.NewToolWithRawSchema(t.Name(), t.Description(), schema), handler(reg, t.Name()))
	}
	slog.Debug("mcp.server.tools", "tools", names)
	return s, nil
}

// handler adapts a registry tool to an MCP tool handler. Tool failures are
// reported as error results, never as protocol errors.
func handler(reg *tools.Registry, name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
		args, err := json.Marshal(req.GetArguments())
		if err != nil {
			return mcpgo.NewToolResultError("invalid arguments: " + err.Error()), nil
		}
		res := reg.Execute(ctx, name, string(args))
		if res.IsError {
			slog.Debug("mcp.tool.error", "tool", name, "error", res.ForLLM)
			return mcpgo.NewToolResultError(res.ForLLM), nil
		}
		return mcpgo.NewToolResultText(res.ForLLM), nil
	}
}

// ServeStdio runs s on stdin/stdout until the client disconnects.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}
