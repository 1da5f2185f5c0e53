package vulnerability_report

import (
	"bytes"
	"context"
	"slices"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/dynoinc/vulnreport/internal/groups"
	"github.com/dynoinc/vulnreport/internal/render"
	"github.com/dynoinc/vulnreport/internal/report"
)

type Runner interface {
	Run(ctx context.Context, gs []groups.Group) *report.Report
}

func Tool(r Runner, gs []groups.Group) (mcp.Tool, server.ToolHandlerFunc) {
	names := make([]string, len(gs))
	for i, g := range gs {
		names[i] = strings.ToLower(g.Name)
	}

	tool := mcp.Tool{
		Name: "vulnerability_report",
		Description: `Report open critical and high vulnerabilities per group and project, with 30/60/90 day creation counts and percent change against the open counts.

Percent change is "undefined" (shown as "-") when a group has no open findings of that severity but the window has some.
Rows marked incomplete were only partially fetched; their counts are a lower bound.`,
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"group": map[string]any{
					"type":        "string",
					"description": "Only report on this group (default: all configured groups)",
					"enum":        names,
				},
				"format": map[string]any{
					"type":        "string",
					"description": "Output format (default: json)",
					"enum":        []string{"json", "table", "csv"},
					"default":     "json",
				},
			},
		},
	}

	handler := func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		selected := gs
		if name := request.GetString("group", ""); name != "" {
			i := slices.IndexFunc(gs, func(g groups.Group) bool { return strings.EqualFold(g.Name, name) })
			if i < 0 {
				return mcp.NewToolResultErrorf("unknown group %q, expected one of %s", name, strings.Join(names, ", ")), nil
			}
			selected = gs[i : i+1]
		}

		write := render.JSON
		switch format := request.GetString("format", "json"); format {
		case "json":
		case "table":
			write = render.Text
		case "csv":
			write = render.CSV
		default:
			return mcp.NewToolResultErrorf("unsupported format %q", format), nil
		}

		rep := r.Run(ctx, selected)

		var buf bytes.Buffer
		if err := write(&buf, rep); err != nil {
			return mcp.NewToolResultErrorFromErr("failed to render report", err), nil
		}

		return mcp.NewToolResultText(buf.String()), nil
	}

	return tool, handler
}
