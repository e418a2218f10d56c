// Package main is the entrypoint for the Canonic CLI, a thin wire
// protocol client: it authenticates to a running gateway, issues
// requests over HTTP/JSON, and displays real responses.
package main

import (
	"os"

	"github.com/canonica-labs/canonica/internal/cli"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cli.SetVersionInfo(version, commit, date)
	os.Exit(cli.New().Execute())
}
