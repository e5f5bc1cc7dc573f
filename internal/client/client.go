// Package client is the ledger service client used by the
// reconciliation driver and the report builder. It converts wire-level
// failures into a small typed taxonomy so callers can tell "service not
// running" from "resource missing" from "caller bug".
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"nsecli/internal/ledger"
)

// Typed client errors. ErrConnection means the service is unreachable
// and the caller may create missing resources once it is back;
// ErrNotFound means the scope exists but the resource does not, which
// the driver treats as "everything Empty".
var (
	ErrConnection = errors.New("ledger service unreachable")
	ErrNotFound   = errors.New("resource not found")
	ErrBadRequest = errors.New("bad request")
)

// Client talks to the ledger service over HTTP
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// New creates a ledger service client
func New(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  logger.With(slog.String("component", "ledger_client")),
	}
}

// envelope is the service's standard success wrapper
type envelope struct {
	Status  string          `json:"status"`
	Created bool            `json:"created"`
	Data    json.RawMessage `json:"data"`
	Dates   []string        `json:"dates"`
	Start   string          `json:"range_start"`
	End     string          `json:"range_end"`
}

// EnsureYear idempotently creates the year scope
func (c *Client) EnsureYear(ctx context.Context, year int) (bool, error) {
	env, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/years/%d", year), nil)
	if err != nil {
		return false, err
	}
	return env.Created, nil
}

// EnsureLedger idempotently creates the year's tracking table
func (c *Client) EnsureLedger(ctx context.Context, year int) (bool, error) {
	env, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/years/%d/ledger", year), nil)
	if err != nil {
		return false, err
	}
	return env.Created, nil
}

// FetchCalendar returns the candidate dates for a year
func (c *Client) FetchCalendar(ctx context.Context, year int) ([]string, error) {
	env, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/years/%d/calendar", year), nil)
	if err != nil {
		return nil, err
	}

	c.logger.InfoContext(ctx, "calendar fetched",
		slog.Int("year", year),
		slog.Int("dates", len(env.Dates)),
		slog.String("range_start", env.Start),
		slog.String("range_end", env.End))
	return env.Dates, nil
}

// ListLedger returns every tracked row for a year
func (c *Client) ListLedger(ctx context.Context, year int) ([]ledger.Row, error) {
	env, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/years/%d/ledger", year), nil)
	if err != nil {
		return nil, err
	}

	var flat []map[string]string
	if err := json.Unmarshal(env.Data, &flat); err != nil {
		return nil, fmt.Errorf("decode ledger rows: %w", err)
	}

	rows := make([]ledger.Row, 0, len(flat))
	for _, m := range flat {
		rows = append(rows, rowFromFlat(m))
	}
	return rows, nil
}

// GetStatus returns the tracked row for a date, or ErrNotFound when no
// row exists yet
func (c *Client) GetStatus(ctx context.Context, year int, date string) (ledger.Row, error) {
	env, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/years/%d/ledger/%s", year, date), nil)
	if err != nil {
		return ledger.Row{}, err
	}

	var flat map[string]string
	if err := json.Unmarshal(env.Data, &flat); err != nil {
		return ledger.Row{}, fmt.Errorf("decode tracking row: %w", err)
	}
	return rowFromFlat(flat), nil
}

// UpdateStatus applies a partial slot update for one date. Callers only
// name the slots they own; the service preserves everything else.
func (c *Client) UpdateStatus(ctx context.Context, year int, date string, updates map[string]string) (bool, error) {
	env, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/years/%d/ledger/%s", year, date), updates)
	if err != nil {
		return false, err
	}
	return env.Created, nil
}

// do executes one request and maps the response onto the error taxonomy
func (c *Client) do(ctx context.Context, method, path string, body interface{}) (*envelope, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrConnection, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s %s", ErrNotFound, method, path)
	case resp.StatusCode == http.StatusBadRequest:
		return nil, fmt.Errorf("%w: %s %s: %s", ErrBadRequest, method, path, string(raw))
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("%s %s: unexpected status %d: %s", method, path, resp.StatusCode, string(raw))
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &env, nil
}

// rowFromFlat rebuilds a ledger row from the wire shape
func rowFromFlat(flat map[string]string) ledger.Row {
	row := ledger.NewRow(flat["date"])
	for slot, value := range flat {
		if ledger.ValidSlot(slot) {
			row.Slots[slot] = value
		}
	}
	return row
}
