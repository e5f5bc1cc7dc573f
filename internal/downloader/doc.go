// Package downloader fetches NSE end-of-day market data files.
//
// Each file kind has its own downloader behind a single Download
// contract: given a trading date it either stores the file locally and
// returns its path, returns an empty path when the exchange has no data
// for that date (weekends, holidays, not-yet-published), or returns an
// error for transient failures. Failure never produces a path, so
// ledger writers upstream can trust a non-empty result.
//
// All downloaders share one NSE client that owns the cookie warm-up
// session, browser headers, and the request rate limiter.
package downloader
