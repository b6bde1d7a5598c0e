// Command marginreco reconciles a vehicle sales ledger against its discount ledger
// and writes the complete and trimmed margin workbooks.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"marginreco/internal/config"
	"marginreco/internal/exporter"
	"marginreco/internal/infrastructure"
	"marginreco/internal/services"
)

// errUsage marks invalid invocations; main exits with status 2 for them
var errUsage = errors.New("usage error")

type options struct {
	primary        string
	primarySheet   string
	secondary      string
	secondarySheet string
	out            string
	trimOut        string
	configPath     string
	metricsFile    string
	listSheets     string
	allowOverlap   *bool
	lastGroupTotal *bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()

	switch {
	case err == nil, errors.Is(err, flag.ErrHelp):
	case errors.Is(err, errUsage):
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	default:
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet(config.AppName, flag.ContinueOnError)
	fs.SetOutput(stderr)

	var o options
	fs.StringVar(&o.primary, "primary", "", "primary sales ledger workbook")
	fs.StringVar(&o.primarySheet, "primary-sheet", "", "worksheet of the primary ledger (optional for single-sheet workbooks)")
	fs.StringVar(&o.secondary, "secondary", "", "discount ledger workbook")
	fs.StringVar(&o.secondarySheet, "secondary-sheet", "", "worksheet of the discount ledger")
	fs.StringVar(&o.out, "out", "", "complete workbook path (default from config: chassis.xlsx)")
	fs.StringVar(&o.trimOut, "trim-out", "", "trimmed workbook path (default from config: trim_chassis.xlsx)")
	fs.StringVar(&o.configPath, "config", "", "YAML configuration file")
	fs.StringVar(&o.metricsFile, "metrics-file", "", "write run metrics in Prometheus text format")
	fs.StringVar(&o.listSheets, "list-sheets", "", "print the worksheets of a workbook and exit")
	allowOverlap := fs.Bool("allow-overlap", false, "let a charge column belong to several categories")
	lastGroupTotal := fs.Bool("last-group-total", false, "take the ledger margin from the last location group")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "allow-overlap":
			o.allowOverlap = allowOverlap
		case "last-group-total":
			o.lastGroupTotal = lastGroupTotal
		}
	})
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("%w: unexpected arguments %v", errUsage, fs.Args())
	}
	if o.listSheets == "" && (o.primary == "" || o.secondary == "") {
		fs.Usage()
		return nil, fmt.Errorf("%w: -primary and -secondary are required", errUsage)
	}
	return &o, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.Logging, stderr)
	if err != nil {
		return err
	}
	defer infrastructure.CloseLogFile()

	svc := services.NewReportService(cfg, nil, logger)
	if opts.listSheets != "" {
		sheets, err := svc.SheetNames(services.Source{Path: opts.listSheets})
		if err != nil {
			return err
		}
		for _, s := range sheets {
			fmt.Fprintln(stdout, s)
		}
		return nil
	}

	telemetry, err := infrastructure.InitializeTelemetry(cfg.Telemetry, stderr, logger)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}()
	svc = services.NewReportService(cfg, telemetry.Metrics, logger)

	dest := exporter.Destination{
		CompletePath: pickPath(opts.out, cfg.Output.CompletePath()),
		TrimmedPath:  pickPath(opts.trimOut, cfg.Output.TrimmedPath()),
	}
	outcome, runErr := svc.Generate(ctx, services.ReportRequest{
		Primary:        services.Source{Path: opts.primary, Sheet: opts.primarySheet},
		Secondary:      services.Source{Path: opts.secondary, Sheet: opts.secondarySheet},
		AllowOverlap:   opts.allowOverlap,
		LastGroupTotal: opts.lastGroupTotal,
	}, dest)

	if path := pickPath(opts.metricsFile, cfg.Telemetry.MetricsFile); path != "" {
		if err := telemetry.WriteMetricsFile(path); err != nil {
			logger.Warn("failed to write metrics file", slog.String("error", err.Error()))
		}
	}
	if runErr != nil {
		return runErr
	}
	printOutcome(stdout, outcome)
	return nil
}

// newLogger keeps stdout free for results: console output goes to stderr
func newLogger(cfg config.LoggingConfig, stderr io.Writer) (*slog.Logger, error) {
	if cfg.Output == "console" {
		logger := infrastructure.NewLogger(cfg, stderr)
		slog.SetDefault(logger)
		return logger, nil
	}
	return infrastructure.InitializeLogger(cfg)
}

func printOutcome(w io.Writer, o *services.ReportOutcome) {
	rec := o.Report.Reconciliation
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Run\t%s\n", o.RunID)
	fmt.Fprintf(tw, "Records\t%d\n", o.Records())
	fmt.Fprintf(tw, "Matched\t%d\n", o.Join.Matched)
	fmt.Fprintf(tw, "Dropped\t%d\n", o.Join.Dropped)
	fmt.Fprintf(tw, "Total\t%s\n", rec.Total.String())
	fmt.Fprintf(tw, "Total Margin\t%s\n", rec.TotalMargin.String())
	fmt.Fprintf(tw, "Difference\t%s\n", rec.Diff.String())
	fmt.Fprintf(tw, "Complete\t%s\n", o.Destination.CompletePath)
	fmt.Fprintf(tw, "Trimmed\t%s\n", o.Destination.TrimmedPath)
	tw.Flush()
}

func pickPath(flagValue, def string) string {
	if flagValue != "" {
		return flagValue
	}
	return def
}
