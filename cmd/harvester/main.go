// Command harvester runs tax-loss harvesting simulations from the terminal.
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(&runCmd{}, "simulation")
	commander.Register(&sweepCmd{}, "simulation")
	commander.Register(&pricesCmd{}, "data")

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
