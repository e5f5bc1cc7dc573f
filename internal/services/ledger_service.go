package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"nsecli/internal/calendar"
	"nsecli/internal/ledger"
)

// LedgerService is the business layer over the ledger store. It owns
// input validation and error mapping so the transport stays thin and the
// store stays ignorant of the wire.
type LedgerService struct {
	store    *ledger.Store
	cal      *calendar.Generator
	validate *validator.Validate
	logger   *slog.Logger
}

// NewLedgerService creates a ledger service
func NewLedgerService(store *ledger.Store, cal *calendar.Generator, logger *slog.Logger) *LedgerService {
	return &LedgerService{
		store:    store,
		cal:      cal,
		validate: validator.New(),
		logger:   logger.With(slog.String("service", "ledger")),
	}
}

// yearParams carries a validated year
type yearParams struct {
	Year int `validate:"required,gte=1000,lte=9999"`
}

// dateParams carries a validated year and canonical date string
type dateParams struct {
	Year int    `validate:"required,gte=1000,lte=9999"`
	Date string `validate:"required,datetime=2006-01-02"`
}

// EnsureYear idempotently creates the storage scope for a year.
// Returns true when the year was created by this call.
func (s *LedgerService) EnsureYear(ctx context.Context, year int) (bool, error) {
	if err := s.validate.Struct(yearParams{Year: year}); err != nil {
		return false, fmt.Errorf("%w: %d", ErrInvalidYear, year)
	}

	created, err := s.store.CreateYear(year)
	if err != nil {
		return false, s.mapStoreError(err)
	}

	s.logger.InfoContext(ctx, "ensure year",
		slog.Int("year", year),
		slog.Bool("created", created))
	return created, nil
}

// EnsureLedger idempotently creates the tracking table for a year.
// Returns true when the table was created by this call.
func (s *LedgerService) EnsureLedger(ctx context.Context, year int) (bool, error) {
	if err := s.validate.Struct(yearParams{Year: year}); err != nil {
		return false, fmt.Errorf("%w: %d", ErrInvalidYear, year)
	}

	if _, err := s.store.CreateYear(year); err != nil {
		return false, s.mapStoreError(err)
	}
	created, err := s.store.CreateIndex(year)
	if err != nil {
		return false, s.mapStoreError(err)
	}

	s.logger.InfoContext(ctx, "ensure ledger",
		slog.Int("year", year),
		slog.Bool("created", created))
	return created, nil
}

// ListLedger returns every tracked row for a year
func (s *LedgerService) ListLedger(ctx context.Context, year int) ([]ledger.Row, error) {
	if err := s.validate.Struct(yearParams{Year: year}); err != nil {
		return nil, fmt.Errorf("%w: %d", ErrInvalidYear, year)
	}

	rows, err := s.store.ListRows(year)
	if err != nil {
		return nil, s.mapStoreError(err)
	}
	return rows, nil
}

// GetStatus returns the tracked row for a date. A date with no row yet
// returns ErrDateNotFound, which is distinct from a row whose slots are
// all empty.
func (s *LedgerService) GetStatus(ctx context.Context, year int, date string) (ledger.Row, error) {
	if err := s.validate.Struct(dateParams{Year: year, Date: date}); err != nil {
		return ledger.Row{}, s.paramsError(year, date)
	}

	row, err := s.store.FindRow(year, date)
	if err != nil {
		return ledger.Row{}, s.mapStoreError(err)
	}
	return row, nil
}

// UpdateStatus applies a partial slot update for a date, creating the
// row when missing. Returns true when a new row was created. Callers
// never need to know the state of slots they are not updating.
func (s *LedgerService) UpdateStatus(ctx context.Context, year int, date string, updates map[string]string) (bool, error) {
	if err := s.validate.Struct(dateParams{Year: year, Date: date}); err != nil {
		return false, s.paramsError(year, date)
	}
	if len(updates) == 0 {
		return false, fmt.Errorf("%w: no slots named", ErrInvalidSlot)
	}
	for slot := range updates {
		if !ledger.ValidSlot(slot) {
			return false, fmt.Errorf("%w: %q", ErrInvalidSlot, slot)
		}
	}

	created, err := s.store.UpsertRow(year, date, updates)
	if err != nil {
		return false, s.mapStoreError(err)
	}

	s.logger.InfoContext(ctx, "status updated",
		slog.Int("year", year),
		slog.String("date", date),
		slog.Bool("created", created),
		slog.Int("slots", len(updates)))
	return created, nil
}

// GenerateCalendar returns the candidate date range for a year
func (s *LedgerService) GenerateCalendar(ctx context.Context, year int) (*calendar.Calendar, error) {
	cal, err := s.cal.Generate(year)
	if err != nil {
		var invalid calendar.ErrInvalidYear
		if errors.As(err, &invalid) {
			return nil, fmt.Errorf("%w: %d", ErrInvalidYear, year)
		}
		return nil, err
	}
	return cal, nil
}

// paramsError picks the more specific error for a failed year+date validation
func (s *LedgerService) paramsError(year int, date string) error {
	if err := s.validate.Struct(yearParams{Year: year}); err != nil {
		return fmt.Errorf("%w: %d", ErrInvalidYear, year)
	}
	return fmt.Errorf("%w: %q", ErrInvalidDate, date)
}

// mapStoreError converts store sentinels to service sentinels
func (s *LedgerService) mapStoreError(err error) error {
	switch {
	case errors.Is(err, ledger.ErrInvalidYear):
		return fmt.Errorf("%w: %v", ErrInvalidYear, err)
	case errors.Is(err, ledger.ErrInvalidDate):
		return fmt.Errorf("%w: %v", ErrInvalidDate, err)
	case errors.Is(err, ledger.ErrUnknownSlot):
		return fmt.Errorf("%w: %v", ErrInvalidSlot, err)
	case errors.Is(err, ledger.ErrLedgerNotFound):
		return fmt.Errorf("%w: %v", ErrLedgerNotFound, err)
	case errors.Is(err, ledger.ErrRowNotFound):
		return fmt.Errorf("%w: %v", ErrDateNotFound, err)
	default:
		return err
	}
}
