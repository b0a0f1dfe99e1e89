// Command costctl records costs and prints reports from the command line.
//
// Usage:
//
//	costctl add -sum 12.5 -currency USD -category FOOD -description lunch
//	costctl report -year 2024 -month 3 -currency EURO
//	costctl categories -year 2024 -month 3
//	costctl yearly -year 2024 -currency ILS
//	costctl rates [-refresh] [-url https://example.com/rates.json] [-set '{"USD":1,...}']
//
// Configuration comes from the same environment variables as the server.
// Reports convert with the rates fetched from the saved rates URL (or
// RATES_URL) when one is set, the same table the server starts from.
// rates -url fetches from a new URL and saves it for later runs and the
// server; rates -set only affects the table printed by that run.
// Output is JSON on stdout; logs go to stderr.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"costmanager/internal/cli"
	"costmanager/internal/core"
	"costmanager/internal/log"
	"costmanager/internal/services"
)

// ledger is the part of the cost service the commands use.
type ledger interface {
	AddCost(ctx context.Context, in core.CostInput) (core.CostRecord, error)
	GetReport(ctx context.Context, year, month int, currency core.Currency) (core.Report, error)
	CategoryTotals(ctx context.Context, year, month int, currency core.Currency) ([]core.CategoryTotal, error)
	YearMonthlyTotals(ctx context.Context, year int, currency core.Currency) ([]core.MonthTotal, error)
	Rates() map[core.Currency]float64
	SetRatesJSON(raw []byte)
	RefreshRates(ctx context.Context) error
	RefreshRatesFrom(ctx context.Context, url string) error
}

var errUsage = errors.New("usage: costctl <add|report|categories|yearly|rates> [flags]")

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	// Commands never publish to the broker.
	cfg.AMQPURL = ""

	logger := cli.SetupLogger(cfg, os.Stderr).WithComponent(log.ComponentCLI)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	app, err := cli.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to open cost ledger", log.FieldError, err)
		os.Exit(1)
	}

	err = run(ctx, app.Service, logger, os.Args[1:], os.Stdout, time.Now())
	if cerr := app.Close(); cerr != nil {
		logger.Warn("Failed to close cost ledger", log.FieldError, cerr)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, l ledger, logger *log.Logger, args []string, out io.Writer, now time.Time) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, args := args[0], args[1:]

	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	switch cmd {
	case "add":
		sum := fs.String("sum", "", "amount, a non-negative number")
		currency := fs.String("currency", "USD", "one of USD, ILS, GBP, EURO")
		category := fs.String("category", "", "one of FOOD, CAR, EDUCATION, HEALTH, OTHER")
		description := fs.String("description", "", "free text")
		if err := fs.Parse(args); err != nil {
			return fmt.Errorf("%w: %w", errUsage, err)
		}
		rec, err := l.AddCost(ctx, core.CostInput{
			Sum:         json.Number(*sum),
			Currency:    *currency,
			Category:    *category,
			Description: *description,
		})
		if err != nil {
			return err
		}
		return printJSON(out, rec)

	case "report", "categories":
		year, month, currency := periodFlags(fs, now, true)
		if err := fs.Parse(args); err != nil {
			return fmt.Errorf("%w: %w", errUsage, err)
		}
		c := core.Currency(*currency)
		loadRates(ctx, l, logger)
		if cmd == "report" {
			rep, err := l.GetReport(ctx, *year, *month, c)
			if err != nil {
				return err
			}
			return printJSON(out, rep)
		}
		totals, err := l.CategoryTotals(ctx, *year, *month, c)
		if err != nil {
			return err
		}
		return printJSON(out, totals)

	case "yearly":
		year, _, currency := periodFlags(fs, now, false)
		if err := fs.Parse(args); err != nil {
			return fmt.Errorf("%w: %w", errUsage, err)
		}
		loadRates(ctx, l, logger)
		totals, err := l.YearMonthlyTotals(ctx, *year, core.Currency(*currency))
		if err != nil {
			return err
		}
		return printJSON(out, totals)

	case "rates":
		refresh := fs.Bool("refresh", false, "fetch the table from the saved rates URL or RATES_URL")
		url := fs.String("url", "", "fetch the table from this URL and save it as the rates URL")
		set := fs.String("set", "", "replace the table with this JSON object for this run only; not saved")
		if err := fs.Parse(args); err != nil {
			return fmt.Errorf("%w: %w", errUsage, err)
		}
		switch {
		case *url != "":
			if err := l.RefreshRatesFrom(ctx, *url); err != nil {
				return err
			}
		case *refresh:
			if err := l.RefreshRates(ctx); err != nil {
				return err
			}
		case *set == "":
			loadRates(ctx, l, logger)
		}
		if *set != "" {
			l.SetRatesJSON([]byte(*set))
		}
		return printJSON(out, l.Rates())
	}

	return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
}

// loadRates fetches the current rates document, if any, so reports use the
// same table as the server. Failures leave the default rates in place.
func loadRates(ctx context.Context, l ledger, logger *log.Logger) {
	err := l.RefreshRates(ctx)
	if err != nil && !errors.Is(err, services.ErrRatesSourceNotConfigured) {
		logger.WarnContext(ctx, "Rates fetch failed, using default rates", log.FieldError, err)
	}
}

func periodFlags(fs *flag.FlagSet, now time.Time, withMonth bool) (year, month *int, currency *string) {
	year = fs.Int("year", now.Year(), "report year")
	m := int(now.Month())
	month = &m
	if withMonth {
		month = fs.Int("month", m, "report month, 1-12")
	}
	currency = fs.String("currency", "USD", "target currency")
	return year, month, currency
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
