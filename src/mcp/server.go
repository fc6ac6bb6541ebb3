// Package mcp exposes the cluster analyzer over the Model Context Protocol,
// so an assistant can run analyses and drill into workflows through tools.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"deforest/src/config"
	"deforest/src/diag"
	"deforest/src/logger"
	"deforest/src/pipeline"
	"deforest/src/report"
	"deforest/src/source"
)

// Server is the MCP server for deforest.
type Server struct {
	mcpServer *server.MCPServer
	store     *runStore
}

// NewServer creates the server and registers its tools.
func NewServer() *Server {
	s := server.NewMCPServer(
		"deforest",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	srv := &Server{
		mcpServer: s,
		store:     newRunStore(),
	}
	srv.registerTools()
	return srv
}

func (s *Server) registerTools() {
	analyzeTool := mcp.NewTool("analyze_cluster",
		mcp.WithDescription("Analyze collected Galera cluster error logs. Pass one log file per node; returns resolved node identities, correlated state transfers, split-brain findings and a ranked issue list. Use get_workflow_details to drill into a specific transfer."),
		mcp.WithString("files",
			mcp.Required(),
			mcp.Description("Comma-separated log file paths, one per node"),
		),
		mcp.WithString("nodes",
			mcp.Description("Optional comma-separated label:path overrides for sources whose node cannot be inferred"),
		),
		mcp.WithNumber("align_window_seconds",
			mcp.Description("View-alignment window for split-brain detection (default: 60)"),
		),
	)

	detailsTool := mcp.NewTool("get_workflow_details",
		mcp.WithDescription("Get the full record of one state-transfer workflow, including phase timestamps and the raw evidence events. Use after analyze_cluster."),
		mcp.WithString("run_id",
			mcp.Required(),
			mcp.Description("Run ID from the analyze_cluster response"),
		),
		mcp.WithString("workflow_id",
			mcp.Required(),
			mcp.Description("Workflow ID from the analyze_cluster response"),
		),
	)

	s.mcpServer.AddTool(analyzeTool, s.handleAnalyzeCluster)
	s.mcpServer.AddTool(detailsTool, s.handleGetWorkflowDetails)
}

// Run serves the server on stdio.
func (s *Server) Run() error {
	return server.ServeStdio(s.mcpServer)
}

func (s *Server) handleAnalyzeCluster(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filesArg := request.GetString("files", "")
	if filesArg == "" {
		return mcp.NewToolResultError("files parameter is required"), nil
	}

	var mappings []string
	if nodes := request.GetString("nodes", ""); nodes != "" {
		mappings = splitList(nodes)
	}

	cfg := config.Default()
	if secs := request.GetInt("align_window_seconds", 0); secs > 0 {
		cfg.AlignWindow = time.Duration(secs) * time.Second
	}

	sources, err := source.Load(splitList(filesArg), mappings, nil)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("loading sources failed: %v", err)), nil
	}

	// Diagnostics stay on the tool response, never on the transport.
	sink := diag.NewSink(nil, true)
	a, err := pipeline.Run(ctx, cfg, sources, sink, nil, logger.NewSilentLogger())
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("analysis failed: %v", err)), nil
	}
	s.store.put(a)

	response := struct {
		RunID      string         `json:"run_id"`
		Summary    summary        `json:"summary"`
		Issues     []report.Issue `json:"issues"`
		Warnings   []diag.Warning `json:"warnings,omitempty"`
	}{
		RunID: a.Run.ID,
		Summary: summary{
			Sources:   a.Run.Sources,
			Events:    a.Run.Events,
			Workflows: a.Run.Workflows,
			Findings:  a.Run.Findings,
			Conflicts: a.Run.Conflicts,
		},
		Issues:   report.RankIssues(a),
		Warnings: sink.Warnings(),
	}

	data, err := json.Marshal(response)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal response: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

type summary struct {
	Sources   int `json:"sources"`
	Events    int `json:"events"`
	Workflows int `json:"workflows"`
	Findings  int `json:"findings"`
	Conflicts int `json:"conflicts"`
}

func (s *Server) handleGetWorkflowDetails(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	runID := request.GetString("run_id", "")
	if runID == "" {
		return mcp.NewToolResultError("run_id parameter is required"), nil
	}
	workflowID := request.GetString("workflow_id", "")
	if workflowID == "" {
		return mcp.NewToolResultError("workflow_id parameter is required"), nil
	}

	wf, found := s.store.workflow(runID, workflowID)
	if !found {
		return mcp.NewToolResultError(fmt.Sprintf("workflow not found: run_id=%s, workflow_id=%s", runID, workflowID)), nil
	}

	data, err := json.Marshal(wf)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal workflow: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
