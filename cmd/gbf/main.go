// Package main implements the go-bytecode-flow CLI (gbf).
// It builds control flow graphs of JVM method bodies and runs the type
// dataflow analysis over them.
package main

import (
	"os"

	"github.com/l3aro/go-bytecode-flow/cmd/gbf/commands"
)

var (
	version   = "dev"
	buildTime = ""
)

func main() {
	commands.RootCmd.Version = version
	if buildTime != "" {
		commands.RootCmd.Version = version + " (" + buildTime + ")"
	}
	commands.RootCmd.Flags().BoolP("version", "v", false, "Print version information")
	commands.RootCmd.SetVersionTemplate(`gbf version {{.Version}}
`)

	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
