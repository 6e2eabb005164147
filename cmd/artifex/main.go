// Artifex: staged generative pipeline MCP server
//
// An MCP server driving user stories through impact analysis, design
// evolution, task breakdown and coverage tracking, with feedback
// cascades over the stage graph.
//
// Usage:
//
//	artifex serve    # Start MCP server (stdio transport)
package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"

	artifexserver "github.com/MarisolVega/artifex/internal/server"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		if err := run(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "--help", "-h", "help":
		printUsage()
		os.Exit(0)
	case "--version", "-v", "version":
		fmt.Printf("artifex v%s\n", artifexserver.Version)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func run() error {
	s, cleanup, err := artifexserver.New()
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	defer cleanup()

	return server.ServeStdio(s)
}

func printUsage() {
	fmt.Println(`artifex - staged generative pipeline MCP server

Usage:
  artifex serve      Start the MCP server (stdio transport)
  artifex version    Print version
  artifex help       Show this help

Register with your MCP client, e.g.:
  claude mcp add artifex -- artifex serve`)
}
