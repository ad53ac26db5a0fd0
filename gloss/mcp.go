package gloss

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/domgloss/kit"
)

// RegisterMCP registers the pipeline's tools on an MCP server.
func (p *Pipeline) RegisterMCP(srv *mcp.Server) {
	p.registerToggleTool(srv)
	p.registerProgressTool(srv)
	p.registerExportTool(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// --- toggle ---

type toggleReq struct {
	Enabled bool `json:"enabled"`
}

func (p *Pipeline) registerToggleTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "gloss_toggle",
		Description: "Enable or disable inline page translation. Enabling launches a fresh prioritized pass; disabling stops at the next batch boundary.",
		InputSchema: inputSchema(map[string]any{
			"enabled": map[string]any{"type": "boolean", "description": "Desired pipeline state"},
		}, []string{"enabled"}),
	}

	endpoint := func(_ context.Context, req any) (any, error) {
		r := req.(*toggleReq)
		p.SetEnabled(r.Enabled)
		return map[string]any{"enabled": p.Enabled()}, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r toggleReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- progress ---

type progressReq struct{}

func (p *Pipeline) registerProgressTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "gloss_progress",
		Description: "Report translation progress: processed and total element counts plus activity.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(_ context.Context, _ any) (any, error) {
		return p.Progress(), nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{Request: &progressReq{}}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- export ---

type exportReq struct{}

func (p *Pipeline) registerExportTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "gloss_export",
		Description: "Export the annotated document as markdown, translations inline beneath their sources.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(_ context.Context, _ any) (any, error) {
		md, err := p.ExportMarkdown()
		if err != nil {
			return nil, err
		}
		return map[string]any{"markdown": md}, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{Request: &exportReq{}}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}
