package main

import (
	"github.com/ppiankov/opslens/internal/cli"
	"github.com/ppiankov/opslens/internal/util"
)

// Version is set at build time via -ldflags
var Version = "0.2.0"

func main() {
	cli.SetVersion(Version)
	if err := cli.Execute(); err != nil {
		util.ExitWithError(util.ExitCode(err), "Error: %v", err)
	}
}
