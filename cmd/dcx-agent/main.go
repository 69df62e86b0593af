// Package main provides the entry point for dcx-agent.
// This is a minimal binary that runs inside containers to provide SSH agent
// forwarding (the ssh-agent-proxy server and client subcommands).
package main

import (
	"os"

	"github.com/devc/devc/internal/agent"
)

func main() {
	if err := agent.Execute(); err != nil {
		os.Exit(1)
	}
}
