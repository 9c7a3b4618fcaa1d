// Package mcp provides the MCP (Model Context Protocol) server for
// Scry.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/scrylang/scry/internal/engine"
	"github.com/scrylang/scry/internal/query"
	"github.com/scrylang/scry/internal/temporal"
)

// Server exposes the query engine over MCP stdio transport.
type Server struct {
	engine  *engine.Engine
	graphs  engine.GraphSource
	changes temporal.Store
	server  *mcp.Server
}

// Tool represents an MCP tool.
type Tool struct {
	Name        string
	Description string
	InputSchema *jsonschema.Schema
}

// Resource represents an MCP resource.
type Resource struct {
	URI         string
	Name        string
	Description string
	MimeType    string
}

// NewServer creates a new MCP server. changes may be nil when no
// change log is loaded.
func NewServer(eng *engine.Engine, graphs engine.GraphSource, changes temporal.Store) *Server {
	s := &Server{
		engine:  eng,
		graphs:  graphs,
		changes: changes,
	}

	s.server = mcp.NewServer(&mcp.Implementation{
		Name:    "scry",
		Version: "0.1.0",
	}, nil)

	return s
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []Tool {
	return []Tool{
		{
			Name:        "scry_query",
			Description: "Run a Scry query (SELECT, FIND, SHOW, PATH, ANALYZE, HISTORY, BLAME) against the loaded code graph. Supports temporal suffixes: AT <ref>, BETWEEN <ref> AND <ref>.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"query": {Type: "string", Description: "Query text, e.g. 'SHOW impact OF Foo.bar DEPTH 2'"},
				},
				Required: []string{"query"},
			},
		},
		{
			Name:        "scry_history",
			Description: "Show the change history of a node across graph snapshots.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"ref":   {Type: "string", Description: "Node reference (id, name or qualified name)"},
					"limit": {Type: "integer", Description: "Maximum number of entries"},
				},
				Required: []string{"ref"},
			},
		},
		{
			Name:        "scry_blame",
			Description: "Report, per tracked attribute, which snapshot last changed it.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"ref": {Type: "string", Description: "Node reference"},
				},
				Required: []string{"ref"},
			},
		},
		{
			Name:        "scry_snapshots",
			Description: "List the registered graph snapshots usable in AT and BETWEEN clauses.",
			InputSchema: &jsonschema.Schema{
				Type:       "object",
				Properties: map[string]*jsonschema.Schema{},
			},
		},
	}
}

// ListResources returns all registered resources.
func (s *Server) ListResources() []Resource {
	return []Resource{
		{
			URI:         "scry://overview",
			Name:        "Graph Overview",
			Description: "High-level statistics about the loaded code graph",
			MimeType:    "text/plain",
		},
		{
			URI:         "scry://schema",
			Name:        "Graph Schema",
			Description: "Node and edge types of the Scry code graph",
			MimeType:    "text/plain",
		},
		{
			URI:         "scry://grammar",
			Name:        "Query Grammar",
			Description: "The Scry query language forms with examples",
			MimeType:    "text/plain",
		},
	}
}

// CallTool executes a tool with the given arguments.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	switch name {
	case "scry_query":
		text, _ := args["query"].(string)
		return s.handleQuery(ctx, text)
	case "scry_history":
		ref, _ := args["ref"].(string)
		limit, _ := args["limit"].(float64)
		q := "HISTORY OF " + ref
		if limit > 0 {
			q += fmt.Sprintf(" LIMIT %d", int(limit))
		}
		return s.handleQuery(ctx, q)
	case "scry_blame":
		ref, _ := args["ref"].(string)
		return s.handleQuery(ctx, "BLAME "+ref)
	case "scry_snapshots":
		return s.handleSnapshots()
	default:
		return "", fmt.Errorf("unknown tool: %s", name)
	}
}

// ReadResource reads a resource by URI.
func (s *Server) ReadResource(ctx context.Context, uri string) (string, error) {
	switch uri {
	case "scry://overview":
		return s.getOverview(), nil
	case "scry://schema":
		return getSchema(), nil
	case "scry://grammar":
		return getGrammar(), nil
	default:
		return "", fmt.Errorf("unknown resource: %s", uri)
	}
}

// Run starts the MCP server with stdio transport.
func (s *Server) Run(ctx context.Context, stdin io.Reader, stdout io.Writer) error {
	if stdin == nil || stdout == nil {
		return fmt.Errorf("stdin and stdout must not be nil")
	}

	reader := bufio.NewReader(stdin)
	encoder := json.NewEncoder(stdout)
	// Note: Do NOT use SetIndent - MCP protocol requires compact JSON
	// (one line per message)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := reader.ReadBytes('\n')
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		var req map[string]any
		if err := json.Unmarshal(line, &req); err != nil {
			continue
		}

		resp := s.handleRequest(ctx, req)
		if err := encoder.Encode(resp); err != nil {
			return err
		}
	}
}

func (s *Server) handleRequest(ctx context.Context, req map[string]any) map[string]any {
	method, _ := req["method"].(string)
	id := req["id"]

	switch method {
	case "initialize":
		return s.handleInitialize(id)
	case "tools/list":
		return s.handleToolsList(id)
	case "tools/call":
		return s.handleToolsCall(ctx, id, req)
	case "resources/list":
		return s.handleResourcesList(id)
	case "resources/read":
		return s.handleResourcesRead(ctx, id, req)
	default:
		return errorResponse(id, -32601, "Method not found: "+method)
	}
}

func (s *Server) handleInitialize(id any) map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"protocolVersion": "2024-11-05",
			"serverInfo": map[string]any{
				"name":    "scry",
				"version": "0.1.0",
			},
			"capabilities": map[string]any{
				"tools": map[string]any{
					"listChanged": false,
				},
				"resources": map[string]any{
					"listChanged": false,
				},
			},
		},
	}
}

func (s *Server) handleToolsList(id any) map[string]any {
	tools := s.ListTools()
	toolList := make([]map[string]any, len(tools))
	for i, tool := range tools {
		schema, _ := json.Marshal(tool.InputSchema)
		var schemaMap map[string]any
		json.Unmarshal(schema, &schemaMap)

		toolList[i] = map[string]any{
			"name":        tool.Name,
			"description": tool.Description,
			"inputSchema": schemaMap,
		}
	}

	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"tools": toolList,
		},
	}
}

func (s *Server) handleToolsCall(ctx context.Context, id any, req map[string]any) map[string]any {
	params, _ := req["params"].(map[string]any)
	if params == nil {
		return errorResponse(id, -32602, "Invalid params")
	}

	name, _ := params["name"].(string)
	args, _ := params["arguments"].(map[string]any)

	result, err := s.CallTool(ctx, name, args)
	if err != nil {
		return errorResponse(id, -32000, err.Error())
	}

	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"content": []map[string]any{
				{
					"type": "text",
					"text": result,
				},
			},
		},
	}
}

func (s *Server) handleResourcesList(id any) map[string]any {
	resources := s.ListResources()
	resourceList := make([]map[string]any, len(resources))
	for i, res := range resources {
		resourceList[i] = map[string]any{
			"uri":         res.URI,
			"name":        res.Name,
			"description": res.Description,
			"mimeType":    res.MimeType,
		}
	}

	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"resources": resourceList,
		},
	}
}

func (s *Server) handleResourcesRead(ctx context.Context, id any, req map[string]any) map[string]any {
	params, _ := req["params"].(map[string]any)
	if params == nil {
		return errorResponse(id, -32602, "Invalid params")
	}

	uri, _ := params["uri"].(string)

	content, err := s.ReadResource(ctx, uri)
	if err != nil {
		return errorResponse(id, -32000, err.Error())
	}

	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"contents": []map[string]any{
				{
					"uri":      uri,
					"mimeType": "text/plain",
					"text":     content,
				},
			},
		},
	}
}

// Tool handlers

func (s *Server) handleQuery(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "No query provided", nil
	}

	res, err := s.engine.Execute(ctx, text)
	if err != nil {
		// Query-level failures come back as tool text so the client
		// sees the message (candidates, positions) instead of a bare
		// protocol error.
		return "Query failed: " + err.Error(), nil
	}
	return formatResult(res), nil
}

func (s *Server) handleSnapshots() (string, error) {
	if s.changes == nil {
		return "No change log loaded.", nil
	}
	snaps := s.changes.Snapshots()
	if len(snaps) == 0 {
		return "No snapshots registered.", nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Snapshots (%d)\n\n", len(snaps)))
	for _, snap := range snaps {
		sb.WriteString(fmt.Sprintf("%d. `%s`", snap.Seq, snap.ID))
		if snap.CommitRef != "" {
			sb.WriteString(" (" + snap.CommitRef + ")")
		}
		sb.WriteString(" at " + snap.Time.Format("2006-01-02 15:04") + "\n")
	}
	sb.WriteString("\nUse a snapshot id or ref in `AT <ref>` or `BETWEEN <a> AND <b>`.")
	return sb.String(), nil
}

// formatResult renders a query result as markdown.
func formatResult(res *engine.Result) string {
	var sb strings.Builder

	switch res.Kind {
	case query.KindPath:
		if res.Path == nil || !res.Path.Found {
			sb.WriteString("No path found within the depth bound.\n")
			break
		}
		sb.WriteString(fmt.Sprintf("Path (%d hops):\n\n", len(res.Path.Path)-1))
		for _, id := range res.Path.Path {
			sb.WriteString("- `" + id + "`\n")
		}

	case query.KindAnalyze:
		if len(res.Cycles) == 0 {
			sb.WriteString("No circular dependencies.\n")
			break
		}
		sb.WriteString(fmt.Sprintf("Found %d cycle(s):\n\n", len(res.Cycles)))
		for i, cycle := range res.Cycles {
			sb.WriteString(fmt.Sprintf("%d. `%s`\n", i+1, strings.Join(cycle, "` -> `")))
		}

	case query.KindHistory:
		if len(res.History) == 0 {
			sb.WriteString("No history.\n")
			break
		}
		for _, entry := range res.History {
			sb.WriteString(fmt.Sprintf("- %s **%s** in `%s`",
				entry.Snapshot.Time.Format("2006-01-02"),
				entry.Record.Kind,
				entry.Snapshot.ID))
			if len(entry.Record.Attrs) > 0 {
				sb.WriteString(" (" + strings.Join(entry.Record.Attrs, ", ") + ")")
			}
			sb.WriteString("\n")
		}

	case query.KindBlame:
		if len(res.Blame) == 0 {
			sb.WriteString("No blame information.\n")
			break
		}
		sb.WriteString("| Attribute | Snapshot | Change |\n")
		sb.WriteString("|-----------|----------|--------|\n")
		for _, attr := range temporal.TrackedAttrs {
			rec, ok := res.Blame[attr]
			if !ok {
				continue
			}
			sb.WriteString(fmt.Sprintf("| %s | `%s` | %s |\n", attr, rec.Snapshot, rec.Kind))
		}

	default:
		if len(res.Rows) == 0 {
			sb.WriteString("No results.\n")
			break
		}
		sb.WriteString("| " + strings.Join(res.Columns, " | ") + " |\n")
		sb.WriteString("|" + strings.Repeat("---|", len(res.Columns)) + "\n")
		for _, row := range res.Rows {
			cells := make([]string, len(row))
			for i, v := range row {
				if v == nil {
					cells[i] = ""
				} else {
					cells[i] = fmt.Sprint(v)
				}
			}
			sb.WriteString("| " + strings.Join(cells, " | ") + " |\n")
		}
	}

	sb.WriteString(fmt.Sprintf("\n%d result(s) in %s\n", res.RowCount, res.ExecutionTime))
	return sb.String()
}

// Resource handlers

func (s *Server) getOverview() string {
	g := s.graphs.Current()

	var sb strings.Builder
	sb.WriteString("# Scry Graph Overview\n\n")
	sb.WriteString(fmt.Sprintf("**Version:** %s\n", g.Version()))
	sb.WriteString(fmt.Sprintf("**Nodes:** %d\n", g.NodeCount()))
	sb.WriteString(fmt.Sprintf("**Edges:** %d\n", g.EdgeCount()))
	if s.changes != nil {
		sb.WriteString(fmt.Sprintf("**Snapshots:** %d\n", len(s.changes.Snapshots())))
	}
	sb.WriteString("\nUse `scry_query` to explore the graph.\n")
	return sb.String()
}

func getSchema() string {
	var sb strings.Builder
	sb.WriteString("# Scry Graph Schema\n\n")
	sb.WriteString("## Node Types\n\n")
	sb.WriteString("| Type | Description |\n")
	sb.WriteString("|------|-------------|\n")
	sb.WriteString("| `module` | Source module or package |\n")
	sb.WriteString("| `class` | Class, struct or interface |\n")
	sb.WriteString("| `function` | Function or method |\n")
	sb.WriteString("| `entity` | Other named entity (constant, type alias) |\n")
	sb.WriteString("| `external` | Symbol defined outside the analyzed codebase |\n")
	sb.WriteString("\n## Edge Types\n\n")
	sb.WriteString("| Type | Source -> Target |\n")
	sb.WriteString("|------|------------------|\n")
	sb.WriteString("| `contains` | Module -> member, class -> method |\n")
	sb.WriteString("| `imports` | Module -> module |\n")
	sb.WriteString("| `calls` | Function -> function (self-loop = recursion) |\n")
	sb.WriteString("| `inherits` | Class -> base class |\n")
	sb.WriteString("\n## Built-in Node Attributes\n\n")
	sb.WriteString("`id`, `type`, `name`, `qualified_name`, `file_path`, ")
	sb.WriteString("`line_start`, `line_end`, `complexity`, plus free-form properties.\n")
	return sb.String()
}

func getGrammar() string {
	var sb strings.Builder
	sb.WriteString("# Scry Query Language\n\n")
	sb.WriteString("```\n")
	sb.WriteString("SELECT <cols|*> FROM <entity> [WHERE <expr>] [ORDER BY <attr> [DESC]] [LIMIT <n>]\n")
	sb.WriteString("FIND <entity> [CALLING|IMPLEMENTING|IMPORTING <ref>] [WHERE ...]\n")
	sb.WriteString("SHOW dependencies|dependents|callers|callees|impact|ancestors OF <ref> [DEPTH <n>] [TYPE <t,...>]\n")
	sb.WriteString("PATH [FROM] <ref> TO <ref> [MAX DEPTH <n>]\n")
	sb.WriteString("ANALYZE circular [TYPE <t,...>]\n")
	sb.WriteString("HISTORY [OF] <ref> [LIMIT <n>] [ASC|DESC]\n")
	sb.WriteString("BLAME <ref>\n")
	sb.WriteString("```\n\n")
	sb.WriteString("Entities: functions, classes, modules, entities, external, edges.\n\n")
	sb.WriteString("Any query accepts a temporal suffix:\n")
	sb.WriteString("- `AT <snapshot-or-ref>` reconstructs the graph at that snapshot\n")
	sb.WriteString("- `BETWEEN <a> AND <b>` restricts results to entities changed in the range\n\n")
	sb.WriteString("Examples:\n")
	sb.WriteString("- `SELECT name, complexity FROM functions WHERE complexity > 10 ORDER BY complexity DESC LIMIT 5`\n")
	sb.WriteString("- `SHOW impact OF PaymentService.charge DEPTH 3`\n")
	sb.WriteString("- `FIND classes IMPLEMENTING BaseHandler`\n")
	sb.WriteString("- `ANALYZE circular TYPE imports`\n")
	sb.WriteString("- `HISTORY OF parse_config LIMIT 10`\n")
	sb.WriteString("- `SELECT * FROM functions BETWEEN v1.0 AND v2.0`\n")
	return sb.String()
}

// Helper functions

func errorResponse(id any, code int, message string) map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	}
}
