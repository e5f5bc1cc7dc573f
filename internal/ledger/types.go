package ledger

import (
	"fmt"
	"time"
)

// DateLayout is the canonical date-string format used as the row key.
// Every boundary normalizes to this layout before touching the store, so
// "2024-1-1" and "2024-01-01" can never become distinct keys.
const DateLayout = "2006-01-02"

// SlotCount is the fixed number of slot columns in every ledger. Slots
// beyond the assigned file kinds are reserved so the on-disk schema stays
// stable when new kinds are added.
const SlotCount = 11

// SheetName is the single sheet every tracking workbook uses
const SheetName = "Tracking"

// FileKind identifies one of the daily NSE artifacts tracked per date.
// The slot assignment is a fixed convention: slot identity is the join
// key between the ledger and each downloader, so it must never change.
type FileKind int

const (
	KindCMBhavcopy FileKind = iota + 1
	KindFOBhavcopy
	KindCombinedOI
	KindFIIStats
	KindParticipantOI
	KindParticipantVolume
	KindIndices
	KindEquityDeliverable
)

// AllKinds returns every assigned file kind in slot order
func AllKinds() []FileKind {
	return []FileKind{
		KindCMBhavcopy,
		KindFOBhavcopy,
		KindCombinedOI,
		KindFIIStats,
		KindParticipantOI,
		KindParticipantVolume,
		KindIndices,
		KindEquityDeliverable,
	}
}

// Slot returns the ledger column name for this kind (file_1 .. file_8)
func (k FileKind) Slot() string {
	return fmt.Sprintf("file_%d", int(k))
}

// String returns a short machine-friendly name for the kind
func (k FileKind) String() string {
	switch k {
	case KindCMBhavcopy:
		return "cm_bhavcopy"
	case KindFOBhavcopy:
		return "fo_bhavcopy"
	case KindCombinedOI:
		return "combined_oi"
	case KindFIIStats:
		return "fii_statistics"
	case KindParticipantOI:
		return "participant_oi"
	case KindParticipantVolume:
		return "participant_volume"
	case KindIndices:
		return "indices"
	case KindEquityDeliverable:
		return "equity_deliverable"
	default:
		return fmt.Sprintf("file_kind_%d", int(k))
	}
}

// KindFromName resolves a kind from its String form
func KindFromName(name string) (FileKind, bool) {
	for _, k := range AllKinds() {
		if k.String() == name {
			return k, true
		}
	}
	return 0, false
}

// KindFromSlot resolves an assigned kind from a slot column name
func KindFromSlot(slot string) (FileKind, bool) {
	for _, k := range AllKinds() {
		if k.Slot() == slot {
			return k, true
		}
	}
	return 0, false
}

// SlotNames returns every slot column name, including reserved ones
func SlotNames() []string {
	names := make([]string, 0, SlotCount)
	for i := 1; i <= SlotCount; i++ {
		names = append(names, fmt.Sprintf("file_%d", i))
	}
	return names
}

// ValidSlot reports whether name is a known slot column
func ValidSlot(name string) bool {
	for _, s := range SlotNames() {
		if s == name {
			return true
		}
	}
	return false
}

// Header returns the workbook header row: date followed by every slot
func Header() []string {
	return append([]string{"date"}, SlotNames()...)
}

// NormalizeDate parses s strictly against DateLayout and returns the
// canonical representation. Anything else is rejected, never coerced.
func NormalizeDate(s string) (string, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return t.Format(DateLayout), nil
}

// Row is one TrackedDate: a date key plus the value of every slot.
// Empty string means the slot has not been filled yet.
type Row struct {
	Date  string            `json:"date"`
	Slots map[string]string `json:"slots"`
}

// NewRow returns an empty row for the given canonical date
func NewRow(date string) Row {
	slots := make(map[string]string, SlotCount)
	for _, name := range SlotNames() {
		slots[name] = ""
	}
	return Row{Date: date, Slots: slots}
}

// Slot returns the recorded value for a kind's slot
func (r Row) Slot(k FileKind) string {
	return r.Slots[k.Slot()]
}

// Filled reports whether the kind's slot holds a non-empty value
func (r Row) Filled(k FileKind) bool {
	return r.Slot(k) != ""
}
