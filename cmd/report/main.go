// Command report builds a per-symbol Excel workbook from the equity
// files a year's ledger has recorded.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"nsecli/internal/client"
	"nsecli/internal/config"
	"nsecli/internal/exporter"
	"nsecli/internal/infrastructure"
)

func main() {
	os.Exit(run())
}

func run() int {
	_ = godotenv.Load()

	var (
		year      = flag.Int("year", time.Now().Year(), "ledger year to report on")
		slot      = flag.String("slot", "", "ledger slot holding the CSVs (default: equity deliverable)")
		symbols   = flag.String("symbols", "", "comma-separated symbols (default: all)")
		series    = flag.String("series", "EQ", "comma-separated series filters")
		out       = flag.String("out", "", "output workbook path (default: under the reports dir)")
		workers   = flag.Int("workers", 4, "concurrent CSV parsers")
		serverURL = flag.String("server", "", "ledger service base URL (overrides config)")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "report: load config: %v\n", err)
		return 1
	}
	if *serverURL != "" {
		cfg.Reconcile.ServerURL = *serverURL
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "report: initialize logger: %v\n", err)
		return 1
	}
	defer infrastructure.CloseLogger()

	paths, err := config.NewPaths("", cfg.Paths)
	if err != nil {
		fmt.Fprintf(os.Stderr, "report: resolve paths: %v\n", err)
		return 1
	}
	if err := paths.EnsureDirectories(); err != nil {
		fmt.Fprintf(os.Stderr, "report: ensure directories: %v\n", err)
		return 1
	}

	outPath := *out
	if outPath == "" {
		outPath = filepath.Join(paths.ReportsDir, fmt.Sprintf("symbols_%d.xlsx", *year))
	}

	lc := client.New(cfg.Reconcile.ServerURL, cfg.Downloader.Timeout, logger)
	builder := exporter.NewBuilder(lc, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := builder.Build(ctx, exporter.Options{
		Year:    *year,
		Slot:    *slot,
		Symbols: splitList(*symbols),
		Series:  splitList(*series),
		OutPath: outPath,
		Workers: *workers,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "report: %v\n", err)
		return 1
	}

	fmt.Printf("wrote %s: %d symbols, %d quotes from %d files\n",
		report.Path, report.Symbols, report.Quotes, report.FilesRead)
	return 0
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
