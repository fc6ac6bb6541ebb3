// Package main provides the MCP server entry point for deforest. The server
// speaks the Model Context Protocol over stdio and exposes cluster log
// analysis through the analyze_cluster tool.
package main

import (
	"log"

	"deforest/src/mcp"
)

func main() {
	server := mcp.NewServer()
	if err := server.Run(); err != nil {
		log.Fatalf("MCP server error: %v", err)
	}
}
