package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/aristath/harvester/internal/domain"
	"github.com/aristath/harvester/internal/modules/prices"
	"github.com/google/subcommands"
)

var (
	allTime = domain.Date(1900, 1, 1)
	endTime = domain.Date(2999, 12, 31)
)

type pricesCmd struct {
	importFile string
	exportFile string
}

func (*pricesCmd) Name() string     { return "prices" }
func (*pricesCmd) Synopsis() string { return "inspect, import or export the price cache" }
func (*pricesCmd) Usage() string {
	return `harvester prices [-import <file.csv>] [-export <file.csv>]

  Without flags, lists the cached tickers with their first and last date.
  -import merges a wide CSV (date column then one column per ticker) into
  the cache. -export writes the whole cache in the same format.

  The cache is the SQLite store when HARVESTER_PRICE_DB is set, otherwise
  the msgpack file at HARVESTER_PRICE_CACHE.
`
}

func (c *pricesCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.importFile, "import", "", "Wide CSV file to merge into the cache.")
	f.StringVar(&c.exportFile, "export", "", "Write the cache to this CSV file.")
}

func (c *pricesCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	container, _, err := setup(ctx, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer container.Close()
	cache := container.PriceCache

	if c.importFile != "" {
		f, err := os.Open(c.importFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return subcommands.ExitUsageError
		}
		series, err := prices.ReadCSV(f)
		f.Close()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", c.importFile, err)
			return subcommands.ExitFailure
		}
		if err := cache.Put(ctx, series); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return subcommands.ExitFailure
		}
		fmt.Fprintf(os.Stderr, "Imported %d prices for %d tickers\n", series.Len(), len(series.Tickers()))
	}

	all, err := cache.Get(ctx, nil, allTime, endTime)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	if c.exportFile != "" {
		f, err := os.Create(c.exportFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return subcommands.ExitFailure
		}
		if err := prices.WriteCSV(f, all); err != nil {
			f.Close()
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return subcommands.ExitFailure
		}
		if err := f.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return subcommands.ExitFailure
		}
		fmt.Fprintf(os.Stderr, "Exported %d prices to %s\n", all.Len(), c.exportFile)
		return subcommands.ExitSuccess
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TICKER\tFIRST\tLAST\tPOINTS")
	for _, t := range all.Tickers() {
		dates := all.TickerDates(t)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", t, domain.FormatDate(dates[0]), domain.FormatDate(dates[len(dates)-1]), len(dates))
	}
	if err := tw.Flush(); err != nil {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
