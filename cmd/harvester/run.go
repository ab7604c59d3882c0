package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/aristath/harvester/internal/config"
	"github.com/aristath/harvester/internal/modules/reporting"
	"github.com/google/subcommands"
)

type runCmd struct {
	configFile string
	outputDir  string
	export     bool
	asJSON     bool
	plain      bool
	currency   string
}

func (*runCmd) Name() string     { return "run" }
func (*runCmd) Synopsis() string { return "run one simulation and print its summary" }
func (*runCmd) Usage() string {
	return `harvester run -c <config> [-export] [-o <dir>] [-json] [-plain]

  Runs a single simulation described by a .json, .toml or .yaml file and
  prints a summary. With -export the CSV, markdown and JSON reports are
  written to the configured sink (data dir or S3), or to -o when given.

Usage Examples:
$ harvester run -c simulation.yaml
$ harvester run -c simulation.toml -export -o ./reports
`
}

func (c *runCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.configFile, "c", "simulation.yaml", "Simulation config file.")
	f.StringVar(&c.outputDir, "o", "", "Write reports to this directory instead of the configured sink.")
	f.BoolVar(&c.export, "export", false, "Export CSV, markdown and JSON reports.")
	f.BoolVar(&c.asJSON, "json", false, "Print the full result as JSON instead of a summary.")
	f.BoolVar(&c.plain, "plain", false, "Print raw markdown without terminal styling.")
	f.StringVar(&c.currency, "currency", reporting.DefaultCurrency, "Currency used to format amounts.")
}

func (c *runCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	sim, err := config.LoadSimulation(c.configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}

	container, log, err := setup(ctx, sim)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer container.Close()

	res, runErr := container.SimulationService.Run(ctx, *sim)
	if res == nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
		return subcommands.ExitFailure
	}

	if c.export {
		exporter := container.Exporter
		if c.outputDir != "" {
			exporter = reporting.NewExporter(reporting.NewDirSink(c.outputDir), c.currency, log)
		}
		locations, err := exporter.Export(ctx, res)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error exporting reports: %v\n", err)
			return subcommands.ExitFailure
		}
		for _, l := range locations {
			fmt.Fprintf(os.Stderr, "Wrote %s\n", l)
		}
	}

	if c.asJSON {
		err = printJSON(os.Stdout, res)
	} else {
		err = printMarkdown(os.Stdout, reporting.Summary(res, c.currency), c.plain)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error writing output: %v\n", err)
		return subcommands.ExitFailure
	}

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Simulation failed: %v\n", runErr)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
