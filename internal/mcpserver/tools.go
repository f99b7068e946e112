package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/lydakis/ubridge/internal/protocol"
)

func (s *Server) registerTools() {
	s.mcp.AddTool(mcp.Tool{
		Name: "execute_command",
		Description: "Execute a structured command on a running editor instance. " +
			"Omit 'instance' to use the session's active instance, or the only running one.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"type": map[string]any{
					"type":        "string",
					"description": "Command type understood by the editor, e.g. scene.open",
				},
				"params": map[string]any{
					"type":        "object",
					"description": "Command parameters, passed through opaquely",
				},
				"instance": map[string]any{
					"type":        "string",
					"description": "Instance specifier: id, hash or prefix, port, or name",
				},
			},
			Required: []string{"type"},
		},
	}, s.handleExecuteCommand)

	s.mcp.AddTool(mcp.Tool{
		Name:        "list_instances",
		Description: "List running editor instances with their ids, ports and status.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"refresh": map[string]any{
					"type":        "boolean",
					"description": "Force a discovery sweep instead of the cached snapshot",
				},
			},
		},
	}, s.handleListInstances)

	s.mcp.AddTool(mcp.Tool{
		Name:        "select_instance",
		Description: "Set the active editor instance for this session.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"instance": map[string]any{
					"type":        "string",
					"description": "Instance specifier: id, hash or prefix, port, or name",
				},
			},
			Required: []string{"instance"},
		},
	}, s.handleSelectInstance)
}

func (s *Server) handleExecuteCommand(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cmdType, err := request.RequireString("type")
	if err != nil {
		return nil, err
	}
	specifier := request.GetString("instance", "")

	var params map[string]any
	if raw, ok := request.GetArguments()["params"].(map[string]any); ok {
		params = raw
	}

	env := s.dispatcher.Dispatch(ctx, specifier, cmdType, params)
	return toolResult(env), nil
}

func (s *Server) handleListInstances(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	env := s.dispatcher.ListInstances(ctx, request.GetBool("refresh", false))
	return toolResult(env), nil
}

func (s *Server) handleSelectInstance(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	specifier, err := request.RequireString("instance")
	if err != nil {
		return nil, err
	}
	env := s.dispatcher.SelectInstance(ctx, specifier)
	return toolResult(env), nil
}

// toolResult renders the envelope as structured content. Command failures
// are ordinary results, never MCP protocol errors.
func toolResult(env protocol.Envelope) *mcp.CallToolResult {
	out := map[string]any{"success": env.Success}
	if env.Message != "" {
		out["message"] = env.Message
	}
	if env.Error != "" {
		out["error"] = env.Error
	}
	if len(env.Data) > 0 {
		out["data"] = env.Data
	}
	if env.Retryable {
		out["retryable"] = true
	}
	return mcp.NewToolResultStructuredOnly(out)
}
