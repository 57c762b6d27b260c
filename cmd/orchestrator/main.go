// Command orchestrator boots the GTM idea-to-go-to-market
// orchestration runtime: an HTTP + SSE API server driving a fixed
// sequence of specialist agents, backed by an append-only checkpoint
// store.
package main

import (
	"fmt"
	"os"

	"github.com/gtmcore/orchestrator/cmd/orchestrator/cmd"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cmd.SetVersion(version, commit, date)

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cmd.ExitCode(err))
	}
}
