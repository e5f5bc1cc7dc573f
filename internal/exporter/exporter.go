// Package exporter turns a year's downloaded equity bhavdata files
// into a per-symbol Excel workbook. The ledger is the source of truth
// for which files exist locally; only recorded paths are read.
package exporter

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/xuri/excelize/v2"
	"golang.org/x/sync/errgroup"

	"nsecli/internal/ledger"
)

// RowSource lists a year's tracked rows; the ledger service client
// satisfies it
type RowSource interface {
	ListLedger(ctx context.Context, year int) ([]ledger.Row, error)
}

// Options configures one export
type Options struct {
	Year    int
	Slot    string   // ledger slot holding the CSVs, default equity deliverable
	Symbols []string // empty means every symbol
	Series  []string // empty means EQ only
	OutPath string
	Workers int
}

// Quote is one symbol's data for one trading date
type Quote struct {
	Date        string
	Series      string
	PrevClose   string
	Open        string
	High        string
	Low         string
	Close       string
	TotalVolume string
	DeliveryQty string
	DeliveryPct string
}

// Report summarizes a finished export
type Report struct {
	Path      string
	Symbols   int
	Quotes    int
	FilesRead int
}

// Builder builds per-symbol workbooks
type Builder struct {
	source RowSource
	logger *slog.Logger
}

// NewBuilder creates a report builder
func NewBuilder(source RowSource, logger *slog.Logger) *Builder {
	return &Builder{
		source: source,
		logger: logger.With(slog.String("component", "exporter")),
	}
}

// Build reads every recorded file for the chosen slot, filters it down
// to the requested symbols and series, and writes the workbook
func (b *Builder) Build(ctx context.Context, opts Options) (*Report, error) {
	slot := opts.Slot
	if slot == "" {
		slot = ledger.KindEquityDeliverable.Slot()
	}
	if !ledger.ValidSlot(slot) {
		return nil, fmt.Errorf("unknown ledger slot %q", slot)
	}
	if opts.OutPath == "" {
		return nil, fmt.Errorf("output path required")
	}

	rows, err := b.source.ListLedger(ctx, opts.Year)
	if err != nil {
		return nil, fmt.Errorf("list ledger %d: %w", opts.Year, err)
	}

	paths := make([]string, 0, len(rows))
	for _, row := range rows {
		if p := row.Slots[slot]; p != "" {
			paths = append(paths, p)
		}
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no %s files recorded for %d", slot, opts.Year)
	}

	quotes, err := b.loadAll(ctx, paths, opts)
	if err != nil {
		return nil, err
	}
	if len(quotes) == 0 {
		return nil, fmt.Errorf("no quotes matched the requested symbols")
	}

	report, err := writeWorkbook(opts.OutPath, quotes)
	if err != nil {
		return nil, err
	}
	report.FilesRead = len(paths)

	b.logger.InfoContext(ctx, "report written",
		slog.String("path", report.Path),
		slog.Int("symbols", report.Symbols),
		slog.Int("quotes", report.Quotes),
		slog.Int("files", report.FilesRead))
	return report, nil
}

// loadAll parses the CSVs concurrently and merges per-symbol quotes
func (b *Builder) loadAll(ctx context.Context, paths []string, opts Options) (map[string][]Quote, error) {
	wantSymbol := toSet(opts.Symbols)
	series := opts.Series
	if len(series) == 0 {
		series = []string{"EQ"}
	}
	wantSeries := toSet(series)

	workers := opts.Workers
	if workers <= 0 {
		workers = 4
	}

	var mu sync.Mutex
	merged := make(map[string][]Quote)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			bySymbol, err := loadFile(path, wantSymbol, wantSeries)
			if err != nil {
				return err
			}
			mu.Lock()
			for symbol, quotes := range bySymbol {
				merged[symbol] = append(merged[symbol], quotes...)
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for symbol := range merged {
		quotes := merged[symbol]
		sort.Slice(quotes, func(i, j int) bool { return quotes[i].Date < quotes[j].Date })
		merged[symbol] = quotes
	}
	return merged, nil
}

// sec_bhavdata_full column order
const (
	colSymbol = iota
	colSeries
	colDate
	colPrevClose
	colOpen
	colHigh
	colLow
	_ // last price
	colClose
	_ // average price
	colVolume
	_ // turnover
	_ // trade count
	colDelivQty
	colDelivPct
)

func loadFile(path string, wantSymbol, wantSeries map[string]bool) (map[string][]Quote, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(records) < 2 {
		return map[string][]Quote{}, nil
	}

	out := make(map[string][]Quote)
	for _, rec := range records[1:] {
		if len(rec) <= colDelivPct {
			continue
		}
		symbol := strings.TrimSpace(rec[colSymbol])
		series := strings.TrimSpace(rec[colSeries])
		if len(wantSymbol) > 0 && !wantSymbol[symbol] {
			continue
		}
		if !wantSeries[series] {
			continue
		}
		out[symbol] = append(out[symbol], Quote{
			Date:        strings.TrimSpace(rec[colDate]),
			Series:      series,
			PrevClose:   strings.TrimSpace(rec[colPrevClose]),
			Open:        strings.TrimSpace(rec[colOpen]),
			High:        strings.TrimSpace(rec[colHigh]),
			Low:         strings.TrimSpace(rec[colLow]),
			Close:       strings.TrimSpace(rec[colClose]),
			TotalVolume: strings.TrimSpace(rec[colVolume]),
			DeliveryQty: strings.TrimSpace(rec[colDelivQty]),
			DeliveryPct: strings.TrimSpace(rec[colDelivPct]),
		})
	}
	return out, nil
}

var quoteHeader = []interface{}{
	"date", "series", "prev_close", "open", "high", "low", "close",
	"volume", "delivery_qty", "delivery_pct",
}

// writeWorkbook lays the quotes out as one sheet per symbol plus a
// Summary sheet listing coverage
func writeWorkbook(path string, quotes map[string][]Quote) (*Report, error) {
	symbols := make([]string, 0, len(quotes))
	for symbol := range quotes {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	f := excelize.NewFile()
	defer f.Close()

	const summary = "Summary"
	if err := f.SetSheetName("Sheet1", summary); err != nil {
		return nil, fmt.Errorf("create summary sheet: %w", err)
	}
	if err := f.SetSheetRow(summary, "A1", &[]interface{}{"symbol", "records", "first_date", "last_date"}); err != nil {
		return nil, fmt.Errorf("write summary header: %w", err)
	}

	total := 0
	for i, symbol := range symbols {
		qs := quotes[symbol]
		total += len(qs)

		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := []interface{}{symbol, len(qs), qs[0].Date, qs[len(qs)-1].Date}
		if err := f.SetSheetRow(summary, cell, &row); err != nil {
			return nil, fmt.Errorf("write summary row for %s: %w", symbol, err)
		}

		if _, err := f.NewSheet(symbol); err != nil {
			return nil, fmt.Errorf("create sheet %s: %w", symbol, err)
		}
		if err := f.SetSheetRow(symbol, "A1", &quoteHeader); err != nil {
			return nil, fmt.Errorf("write header for %s: %w", symbol, err)
		}
		for j, q := range qs {
			cell, _ := excelize.CoordinatesToCellName(1, j+2)
			row := []interface{}{
				q.Date, q.Series, q.PrevClose, q.Open, q.High, q.Low,
				q.Close, q.TotalVolume, q.DeliveryQty, q.DeliveryPct,
			}
			if err := f.SetSheetRow(symbol, cell, &row); err != nil {
				return nil, fmt.Errorf("write row for %s: %w", symbol, err)
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return nil, fmt.Errorf("save workbook: %w", err)
	}
	return &Report{Path: path, Symbols: len(symbols), Quotes: total}, nil
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			set[strings.ToUpper(v)] = true
		}
	}
	return set
}
