package services

import "errors"

// Service-level sentinel errors. Transport maps these onto the HTTP
// error taxonomy; the reconciliation client maps the wire responses back
// onto its own typed errors.
var (
	ErrInvalidYear    = errors.New("invalid year")
	ErrInvalidDate    = errors.New("invalid date")
	ErrInvalidSlot    = errors.New("invalid slot")
	ErrLedgerNotFound = errors.New("ledger not found")
	ErrDateNotFound   = errors.New("date not found")
)
