// Command reconcile runs one reconciliation pass for a year: it walks
// the trading calendar, downloads the files the ledger is missing, and
// records every success with the ledger service.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/joho/godotenv"

	"nsecli/internal/client"
	"nsecli/internal/config"
	"nsecli/internal/downloader"
	"nsecli/internal/infrastructure"
	"nsecli/internal/ledger"
	"nsecli/internal/reconcile"
)

func main() {
	os.Exit(run())
}

func run() int {
	_ = godotenv.Load()

	var (
		year        = flag.Int("year", time.Now().Year(), "ledger year to reconcile")
		mode        = flag.String("mode", "pool", "execution mode: sequential, pool, or gated")
		slots       = flag.String("slots", "", "comma-separated ledger slots (default: all)")
		workers     = flag.Int("workers", 0, "pool workers (overrides config)")
		batchSize   = flag.Int("batch-size", 0, "dates per pool batch (overrides config)")
		batchDelay  = flag.Duration("batch-delay", 0, "pause between pool batches (overrides config)")
		maxInflight = flag.Int64("max-inflight", 0, "gated mode concurrency cap (overrides config)")
		serverURL   = flag.String("server", "", "ledger service base URL (overrides config)")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "reconcile: load config: %v\n", err)
		return 1
	}
	applyFlags(cfg, *workers, *batchSize, *batchDelay, *maxInflight, *serverURL)

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reconcile: initialize logger: %v\n", err)
		return 1
	}
	defer infrastructure.CloseLogger()

	paths, err := config.NewPaths("", cfg.Paths)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reconcile: resolve paths: %v\n", err)
		return 1
	}
	if err := paths.EnsureDirectories(); err != nil {
		fmt.Fprintf(os.Stderr, "reconcile: ensure directories: %v\n", err)
		return 1
	}

	nse, err := downloader.NewNSEClient(cfg.Downloader.Timeout, logger,
		downloader.WithRateLimit(cfg.Downloader.RequestsPerSec, cfg.Downloader.Burst),
		downloader.WithUserAgent(cfg.Downloader.UserAgent))
	if err != nil {
		fmt.Fprintf(os.Stderr, "reconcile: create NSE client: %v\n", err)
		return 1
	}

	registry := downloader.NewRegistry(nse, func(kind ledger.FileKind) string {
		return paths.DownloadDir(kind.String())
	})
	lc := client.New(cfg.Reconcile.ServerURL, cfg.Downloader.Timeout, logger)

	policy := reconcile.RetryPolicy{
		MaxAttempts:  cfg.Reconcile.MaxAttempts,
		InitialDelay: cfg.Reconcile.InitialDelay,
		MaxDelay:     cfg.Reconcile.MaxDelay,
	}
	driver := reconcile.NewDriver(lc, registry, policy, logger)

	opts := reconcile.Options{
		Year:        *year,
		Slots:       splitSlots(*slots),
		Workers:     cfg.Reconcile.Workers,
		BatchSize:   cfg.Reconcile.BatchSize,
		BatchDelay:  cfg.Reconcile.BatchDelay,
		MaxInflight: cfg.Reconcile.MaxInflight,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var sum *reconcile.Summary
	switch *mode {
	case "sequential":
		sum, err = driver.Run(ctx, opts)
	case "pool":
		sum, err = driver.RunPool(ctx, opts)
	case "gated":
		sum, err = driver.RunGated(ctx, opts)
	default:
		fmt.Fprintf(os.Stderr, "reconcile: unknown mode %q\n", *mode)
		return 2
	}

	if sum != nil {
		printSummary(sum)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "reconcile: %v\n", err)
		return 1
	}
	if sum != nil && sum.Totals().Failed > 0 {
		return 1
	}
	return 0
}

func applyFlags(cfg *config.Config, workers, batchSize int, batchDelay time.Duration, maxInflight int64, serverURL string) {
	if workers > 0 {
		cfg.Reconcile.Workers = workers
	}
	if batchSize > 0 {
		cfg.Reconcile.BatchSize = batchSize
	}
	if batchDelay > 0 {
		cfg.Reconcile.BatchDelay = batchDelay
	}
	if maxInflight > 0 {
		cfg.Reconcile.MaxInflight = maxInflight
	}
	if serverURL != "" {
		cfg.Reconcile.ServerURL = serverURL
	}
}

func splitSlots(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	slots := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			slots = append(slots, p)
		}
	}
	return slots
}

func printSummary(sum *reconcile.Summary) {
	slots := make([]string, 0, len(sum.BySlot))
	for slot := range sum.BySlot {
		slots = append(slots, slot)
	}
	sort.Strings(slots)

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle(fmt.Sprintf("Reconciliation %d (%s) — run %s", sum.Year, sum.Mode, sum.RunID))
	t.AppendHeader(table.Row{"Slot", "Filled", "Already", "No Data", "Failed"})
	for _, slot := range slots {
		c := sum.BySlot[slot]
		t.AppendRow(table.Row{slot, c.Filled, c.Already, c.NoData, c.Failed})
	}

	totals := sum.Totals()
	t.AppendFooter(table.Row{"Total", totals.Filled, totals.Already, totals.NoData, totals.Failed})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight, AlignFooter: text.AlignRight},
		{Number: 3, Align: text.AlignRight, AlignFooter: text.AlignRight},
		{Number: 4, Align: text.AlignRight, AlignFooter: text.AlignRight},
		{Number: 5, Align: text.AlignRight, AlignFooter: text.AlignRight},
	})
	t.SetStyle(table.StyleLight)
	t.Render()

	fmt.Printf("dates: %d  duration: %s\n", sum.Dates, sum.Duration)
	for _, f := range sum.Failures {
		fmt.Fprintf(os.Stderr, "failed: %s %s: %v\n", f.Date, f.Slot, f.Err)
	}
}
