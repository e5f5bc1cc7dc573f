// Package calendar generates the candidate date range a year's ledger
// must cover. No trading-day filtering happens here: weekends and
// holidays are each downloader's own concern, reported as "no data".
package calendar

import (
	"fmt"
	"time"

	"nsecli/internal/ledger"
)

// NSE began electronic trading in 1994; anything earlier has no archives
// to reconcile. The upper bound guards against typo years.
const (
	MinYear = 1994
	MaxYear = 2100
)

// ErrInvalidYear is returned for years outside the supported range
type ErrInvalidYear struct {
	Year int
}

func (e ErrInvalidYear) Error() string {
	return fmt.Sprintf("invalid year %d: must be between %d and %d", e.Year, MinYear, MaxYear)
}

// Calendar is the generated range for one tracked year
type Calendar struct {
	Year       int      `json:"year"`
	RangeStart string   `json:"range_start"`
	RangeEnd   string   `json:"range_end"`
	Dates      []string `json:"dates"`
}

// Generator produces calendars. The clock is injectable so tests can fix
// "today".
type Generator struct {
	now func() time.Time
}

// NewGenerator returns a generator using the system clock
func NewGenerator() *Generator {
	return &Generator{now: time.Now}
}

// NewGeneratorAt returns a generator with a fixed clock
func NewGeneratorAt(now func() time.Time) *Generator {
	return &Generator{now: now}
}

// Generate returns every calendar date from October 1 of year-1 through
// December 31 of year, ascending, formatted canonically. When year is
// the current year the range ends at yesterday instead: today's data is
// assumed unpublished and is never requested.
func (g *Generator) Generate(year int) (*Calendar, error) {
	if year < MinYear || year > MaxYear {
		return nil, ErrInvalidYear{Year: year}
	}

	today := g.now()
	start := time.Date(year-1, time.October, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)
	if year == today.Year() {
		yesterday := today.AddDate(0, 0, -1)
		end = time.Date(yesterday.Year(), yesterday.Month(), yesterday.Day(), 0, 0, 0, 0, time.UTC)
	}

	var dates []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d.Format(ledger.DateLayout))
	}

	return &Calendar{
		Year:       year,
		RangeStart: start.Format(ledger.DateLayout),
		RangeEnd:   end.Format(ledger.DateLayout),
		Dates:      dates,
	}, nil
}
