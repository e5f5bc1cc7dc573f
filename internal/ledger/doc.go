// Package ledger implements the per-year download-tracking store.
//
// Each tracked year owns one spreadsheet (tracking.xlsx) with a single
// Tracking sheet: one row per calendar date, one column per file slot.
// A slot records where a daily NSE artifact was stored, or is empty when
// the artifact has not been downloaded yet. Writes are monotonic: once a
// slot holds a value it is never cleared, so repeated reconciliation
// passes converge without coordination.
//
// All mutations for a year are serialized through a per-year lock owned
// by the Store; concurrent upserts for different dates or different
// slots of the same date both persist.
package ledger
