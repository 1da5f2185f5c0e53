package tools

import (
	"context"

	"github.com/earthboundkid/versioninfo/v2"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/dynoinc/vulnreport/internal/groups"
	"github.com/dynoinc/vulnreport/internal/tools/vulnerability_report"
)

func Server(r vulnerability_report.Runner, gs []groups.Group) *server.MCPServer {
	srv := server.NewMCPServer("vulnreport.tools", versioninfo.Short(), server.WithToolCapabilities(true))
	srv.AddTool(vulnerability_report.Tool(r, gs))
	return srv
}

// Client returns an initialized in-process client for Server.
func Client(ctx context.Context, r vulnerability_report.Runner, gs []groups.Group) (*client.Client, error) {
	c, err := client.NewInProcessClient(Server(r, gs))
	if err != nil {
		return nil, err
	}

	if err := c.Start(ctx); err != nil {
		return nil, err
	}

	_, err = c.Initialize(ctx, mcp.InitializeRequest{})
	if err != nil {
		return nil, err
	}

	return c, nil
}
