// Package reconcile drives a year's ledger toward completeness: it
// walks the trading calendar, asks the ledger service what each date is
// missing, downloads only those files, and records the successes.
//
// A pass is idempotent and resumable. Filled slots are never
// re-downloaded, failed slots record nothing and are retried on the
// next pass, and three execution modes trade throughput against load
// on the exchange: sequential, batched worker pool, and semaphore-gated.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"nsecli/internal/client"
	"nsecli/internal/downloader"
	"nsecli/internal/ledger"
)

var slotOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "nsecli",
	Subsystem: "reconcile",
	Name:      "slot_outcomes_total",
	Help:      "Reconciliation outcomes by slot and result.",
}, []string{"slot", "outcome"})

// LedgerClient is the slice of the ledger service API the driver needs
type LedgerClient interface {
	EnsureYear(ctx context.Context, year int) (bool, error)
	EnsureLedger(ctx context.Context, year int) (bool, error)
	FetchCalendar(ctx context.Context, year int) ([]string, error)
	GetStatus(ctx context.Context, year int, date string) (ledger.Row, error)
	UpdateStatus(ctx context.Context, year int, date string, updates map[string]string) (bool, error)
}

// Options configures one reconciliation pass
type Options struct {
	Year        int
	Slots       []string // empty means every registered slot
	Workers     int
	BatchSize   int
	BatchDelay  time.Duration
	MaxInflight int64
}

// Driver runs reconciliation passes against the ledger service
type Driver struct {
	ledger   LedgerClient
	registry *downloader.Registry
	policy   RetryPolicy
	logger   *slog.Logger
}

// NewDriver creates a reconciliation driver
func NewDriver(lc LedgerClient, registry *downloader.Registry, policy RetryPolicy, logger *slog.Logger) *Driver {
	return &Driver{
		ledger:   lc,
		registry: registry,
		policy:   policy,
		logger:   logger.With(slog.String("component", "reconcile")),
	}
}

// prepare ensures the year scope and ledger exist and returns the
// candidate dates to reconcile
func (d *Driver) prepare(ctx context.Context, year int) ([]string, error) {
	err := d.policy.Do(ctx, d.logger, "ensure year", func() error {
		_, err := d.ledger.EnsureYear(ctx, year)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("ensure year %d: %w", year, err)
	}
	err = d.policy.Do(ctx, d.logger, "ensure ledger", func() error {
		_, err := d.ledger.EnsureLedger(ctx, year)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("ensure ledger %d: %w", year, err)
	}
	var dates []string
	err = d.policy.Do(ctx, d.logger, "fetch calendar", func() error {
		var err error
		dates, err = d.ledger.FetchCalendar(ctx, year)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("fetch calendar %d: %w", year, err)
	}
	return dates, nil
}

// kinds resolves the requested slots, defaulting to the full registry
func (d *Driver) kinds(slots []string) ([]ledger.FileKind, error) {
	if len(slots) == 0 {
		return d.registry.Kinds(), nil
	}
	kinds := make([]ledger.FileKind, 0, len(slots))
	for _, slot := range slots {
		kind, ok := ledger.KindFromSlot(slot)
		if !ok {
			return nil, fmt.Errorf("unknown ledger slot %q", slot)
		}
		if _, err := d.registry.ForKind(kind); err != nil {
			return nil, err
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}

// Run reconciles one date at a time in calendar order
func (d *Driver) Run(ctx context.Context, opts Options) (*Summary, error) {
	dates, kinds, sum, err := d.start(ctx, opts, "sequential")
	if err != nil {
		return nil, err
	}
	defer sum.Finish()

	for _, date := range dates {
		if err := d.reconcileDate(ctx, opts.Year, date, kinds, sum); err != nil {
			return sum, err
		}
	}
	return sum, nil
}

// RunPool reconciles dates with a bounded worker pool, pausing between
// batches so the exchange sees bursts, not a sustained hammer.
func (d *Driver) RunPool(ctx context.Context, opts Options) (*Summary, error) {
	dates, kinds, sum, err := d.start(ctx, opts, "pool")
	if err != nil {
		return nil, err
	}
	defer sum.Finish()

	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = len(dates)
	}

	for offset := 0; offset < len(dates); offset += batchSize {
		end := offset + batchSize
		if end > len(dates) {
			end = len(dates)
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workers)
		for _, date := range dates[offset:end] {
			g.Go(func() error {
				return d.reconcileDate(gctx, opts.Year, date, kinds, sum)
			})
		}
		if err := g.Wait(); err != nil {
			return sum, err
		}

		if end < len(dates) && opts.BatchDelay > 0 {
			select {
			case <-ctx.Done():
				return sum, ctx.Err()
			case <-time.After(opts.BatchDelay):
			}
		}
	}
	return sum, nil
}

// RunGated reconciles every date concurrently behind a weighted
// semaphore capping the dates in flight at once
func (d *Driver) RunGated(ctx context.Context, opts Options) (*Summary, error) {
	dates, kinds, sum, err := d.start(ctx, opts, "gated")
	if err != nil {
		return nil, err
	}
	defer sum.Finish()

	inflight := opts.MaxInflight
	if inflight <= 0 {
		inflight = 1
	}
	sem := semaphore.NewWeighted(inflight)

	g, gctx := errgroup.WithContext(ctx)
	for _, date := range dates {
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			return d.reconcileDate(gctx, opts.Year, date, kinds, sum)
		})
	}
	if err := g.Wait(); err != nil {
		return sum, err
	}
	return sum, nil
}

func (d *Driver) start(ctx context.Context, opts Options, mode string) ([]string, []ledger.FileKind, *Summary, error) {
	kinds, err := d.kinds(opts.Slots)
	if err != nil {
		return nil, nil, nil, err
	}
	dates, err := d.prepare(ctx, opts.Year)
	if err != nil {
		return nil, nil, nil, err
	}

	sum := NewSummary(opts.Year, mode)
	sum.Dates = len(dates)
	d.logger.InfoContext(ctx, "reconciliation pass started",
		slog.String("run_id", sum.RunID),
		slog.Int("year", opts.Year),
		slog.String("mode", mode),
		slog.Int("dates", len(dates)),
		slog.Int("slots", len(kinds)))
	return dates, kinds, sum, nil
}

// reconcileDate brings one date's requested slots up to date. Only
// successful downloads are recorded; a failed or empty attempt leaves
// the slot untouched for the next pass. Failures never abort the pass:
// every date gets its chance even when earlier ones broke.
func (d *Driver) reconcileDate(ctx context.Context, year int, date string, kinds []ledger.FileKind, sum *Summary) error {
	day, err := time.Parse(ledger.DateLayout, date)
	if err != nil {
		return fmt.Errorf("calendar produced invalid date %q: %w", date, err)
	}

	var row ledger.Row
	err = d.policy.Do(ctx, d.logger, fmt.Sprintf("get status %s", date), func() error {
		var gerr error
		row, gerr = d.ledger.GetStatus(ctx, year, date)
		if errors.Is(gerr, client.ErrNotFound) {
			row = ledger.NewRow(date)
			return nil
		}
		return gerr
	})
	if err != nil {
		for _, kind := range kinds {
			d.record(sum, Result{Date: date, Slot: kind.Slot(), Outcome: OutcomeFailed,
				Err: fmt.Errorf("get status: %w", err)})
		}
		return nil
	}

	updates := make(map[string]string)
	for _, kind := range kinds {
		slot := kind.Slot()
		if row.Filled(kind) {
			d.record(sum, Result{Date: date, Slot: slot, Outcome: OutcomeAlready})
			continue
		}

		dl, err := d.registry.ForKind(kind)
		if err != nil {
			return err
		}

		var path string
		err = d.policy.Do(ctx, d.logger, fmt.Sprintf("download %s %s", slot, date), func() error {
			var derr error
			path, derr = dl.Download(ctx, day)
			return derr
		})
		switch {
		case err != nil:
			d.record(sum, Result{Date: date, Slot: slot, Outcome: OutcomeFailed, Err: err})
		case path == "":
			d.record(sum, Result{Date: date, Slot: slot, Outcome: OutcomeNoData})
		default:
			updates[slot] = path
		}
	}

	if len(updates) == 0 {
		return nil
	}

	err = d.policy.Do(ctx, d.logger, fmt.Sprintf("record %s", date), func() error {
		_, uerr := d.ledger.UpdateStatus(ctx, year, date, updates)
		return uerr
	})
	for slot, path := range updates {
		if err != nil {
			d.record(sum, Result{Date: date, Slot: slot, Outcome: OutcomeFailed, Path: path,
				Err: fmt.Errorf("record: %w", err)})
			continue
		}
		d.record(sum, Result{Date: date, Slot: slot, Outcome: OutcomeFilled, Path: path})
	}
	return nil
}

func (d *Driver) record(sum *Summary, r Result) {
	slotOutcomes.WithLabelValues(r.Slot, r.Outcome.String()).Inc()
	sum.Record(r)
}
