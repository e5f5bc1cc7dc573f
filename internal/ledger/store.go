package ledger

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/xuri/excelize/v2"
)

// Sentinel errors surfaced by the store. The service layer maps these to
// its HTTP error taxonomy.
var (
	ErrInvalidYear    = errors.New("year must be a 4-digit number")
	ErrInvalidDate    = errors.New("date must be in YYYY-MM-DD format")
	ErrUnknownSlot    = errors.New("unknown ledger slot")
	ErrLedgerNotFound = errors.New("ledger not found")
	ErrRowNotFound    = errors.New("tracking row not found")
)

// Store persists one tracking workbook per year under a base directory.
//
// The workbook is rewritten whole on every mutation, which is safe only
// because every write for a year goes through that year's lock. Reads
// take the same lock shared, so a reader never observes a half-written
// file.
type Store struct {
	baseDir string
	logger  *slog.Logger

	mu    sync.Mutex // guards locks
	locks map[int]*sync.RWMutex
}

// NewStore creates a store rooted at baseDir
func NewStore(baseDir string, logger *slog.Logger) *Store {
	return &Store{
		baseDir: baseDir,
		logger:  logger.With(slog.String("component", "ledger_store")),
		locks:   make(map[int]*sync.RWMutex),
	}
}

// yearLock returns the lock owning all file access for a year
func (s *Store) yearLock(year int) *sync.RWMutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[year]
	if !ok {
		l = &sync.RWMutex{}
		s.locks[year] = l
	}
	return l
}

// yearDir returns the directory holding a year's ledger
func (s *Store) yearDir(year int) string {
	return filepath.Join(s.baseDir, strconv.Itoa(year))
}

// ledgerFile returns the workbook path for a year
func (s *Store) ledgerFile(year int) string {
	return filepath.Join(s.yearDir(year), "tracking.xlsx")
}

// validateYear rejects anything that is not a well-formed 4-digit year
func validateYear(year int) error {
	if year < 1000 || year > 9999 {
		return fmt.Errorf("%w: %d", ErrInvalidYear, year)
	}
	return nil
}

// CreateYear ensures the directory for a year exists.
// Returns true when the directory was created by this call.
func (s *Store) CreateYear(year int) (bool, error) {
	if err := validateYear(year); err != nil {
		return false, err
	}

	lock := s.yearLock(year)
	lock.Lock()
	defer lock.Unlock()

	dir := s.yearDir(year)
	if _, err := os.Stat(dir); err == nil {
		return false, nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, fmt.Errorf("create year directory: %w", err)
	}

	s.logger.Info("year directory created", slog.Int("year", year), slog.String("dir", dir))
	return true, nil
}

// CreateIndex ensures the tracking workbook for a year exists with its
// header row. Idempotent; safe to call before any other operation.
func (s *Store) CreateIndex(year int) (bool, error) {
	if err := validateYear(year); err != nil {
		return false, err
	}

	lock := s.yearLock(year)
	lock.Lock()
	defer lock.Unlock()

	path := s.ledgerFile(year)
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}

	if err := os.MkdirAll(s.yearDir(year), 0o755); err != nil {
		return false, fmt.Errorf("create year directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(SheetName)
	if err != nil {
		return false, fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return false, fmt.Errorf("drop default sheet: %w", err)
	}

	header := Header()
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return false, fmt.Errorf("write header row: %w", err)
	}

	if err := f.SaveAs(path); err != nil {
		return false, fmt.Errorf("save workbook: %w", err)
	}

	s.logger.Info("tracking workbook created", slog.Int("year", year), slog.String("path", path))
	return true, nil
}

// ListRows returns every persisted row in store order (insertion order,
// not necessarily date order).
func (s *Store) ListRows(year int) ([]Row, error) {
	if err := validateYear(year); err != nil {
		return nil, err
	}

	lock := s.yearLock(year)
	lock.RLock()
	defer lock.RUnlock()

	return s.readRows(year)
}

// FindRow returns the row for a canonical date, or ErrRowNotFound
func (s *Store) FindRow(year int, date string) (Row, error) {
	if err := validateYear(year); err != nil {
		return Row{}, err
	}
	date, err := NormalizeDate(date)
	if err != nil {
		return Row{}, err
	}

	lock := s.yearLock(year)
	lock.RLock()
	defer lock.RUnlock()

	rows, err := s.readRows(year)
	if err != nil {
		return Row{}, err
	}

	for _, row := range rows {
		if row.Date == date {
			return row, nil
		}
	}

	return Row{}, fmt.Errorf("%w: %s", ErrRowNotFound, date)
}

// UpsertRow applies a partial slot update to the row for date, appending
// a new row when none exists yet. Only the named slots change; a
// non-empty slot is never overwritten with an empty value. Returns true
// when a new row was appended.
func (s *Store) UpsertRow(year int, date string, updates map[string]string) (bool, error) {
	if err := validateYear(year); err != nil {
		return false, err
	}
	date, err := NormalizeDate(date)
	if err != nil {
		return false, err
	}
	for slot := range updates {
		if !ValidSlot(slot) {
			return false, fmt.Errorf("%w: %q", ErrUnknownSlot, slot)
		}
	}

	lock := s.yearLock(year)
	lock.Lock()
	defer lock.Unlock()

	path := s.ledgerFile(year)
	f, err := excelize.OpenFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, fmt.Errorf("%w: year %d", ErrLedgerNotFound, year)
		}
		return false, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	raw, err := f.GetRows(SheetName)
	if err != nil {
		return false, fmt.Errorf("read sheet: %w", err)
	}
	if len(raw) == 0 {
		return false, fmt.Errorf("%w: year %d has no header", ErrLedgerNotFound, year)
	}

	header := raw[0]
	colOf := make(map[string]int, len(header))
	for i, name := range header {
		colOf[name] = i + 1
	}

	// Locate the existing row for this date, if any
	targetRow := 0
	for i := 1; i < len(raw); i++ {
		if len(raw[i]) > 0 && raw[i][0] == date {
			targetRow = i + 1
			break
		}
	}

	created := targetRow == 0
	if created {
		targetRow = len(raw) + 1
		cell, _ := excelize.CoordinatesToCellName(colOf["date"], targetRow)
		if err := f.SetCellValue(SheetName, cell, date); err != nil {
			return false, fmt.Errorf("write date cell: %w", err)
		}
	}

	for slot, value := range updates {
		col, ok := colOf[slot]
		if !ok {
			return false, fmt.Errorf("%w: %q not in header", ErrUnknownSlot, slot)
		}

		// Monotonic writes: never clear a filled slot
		if value == "" && !created {
			existing := ""
			if idx := targetRow - 1; idx < len(raw) && col-1 < len(raw[idx]) {
				existing = raw[idx][col-1]
			}
			if existing != "" {
				s.logger.Warn("refusing to clear filled slot",
					slog.Int("year", year),
					slog.String("date", date),
					slog.String("slot", slot))
				continue
			}
		}

		cell, _ := excelize.CoordinatesToCellName(col, targetRow)
		if err := f.SetCellValue(SheetName, cell, value); err != nil {
			return false, fmt.Errorf("write slot cell: %w", err)
		}
	}

	if err := f.Save(); err != nil {
		return false, fmt.Errorf("save workbook: %w", err)
	}

	s.logger.Debug("row upserted",
		slog.Int("year", year),
		slog.String("date", date),
		slog.Bool("created", created),
		slog.Int("slots_updated", len(updates)))

	return created, nil
}

// readRows loads every data row from a year's workbook. Callers hold the
// year lock.
func (s *Store) readRows(year int) ([]Row, error) {
	path := s.ledgerFile(year)
	f, err := excelize.OpenFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: year %d", ErrLedgerNotFound, year)
		}
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	raw, err := f.GetRows(SheetName)
	if err != nil {
		return nil, fmt.Errorf("read sheet: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: year %d has no header", ErrLedgerNotFound, year)
	}

	header := raw[0]
	rows := make([]Row, 0, len(raw)-1)
	for _, cells := range raw[1:] {
		if len(cells) == 0 || cells[0] == "" {
			continue
		}
		row := NewRow(cells[0])
		for i := 1; i < len(header) && i < len(cells); i++ {
			if ValidSlot(header[i]) {
				row.Slots[header[i]] = cells[i]
			}
		}
		rows = append(rows, row)
	}

	return rows, nil
}
