package client

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nsecli/internal/ledger"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, 5*time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestEnsureYear(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/years/2024", r.URL.Path)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "success", "created": true, "year": 2024,
		})
	}))

	created, err := c.EnsureYear(context.Background(), 2024)
	require.NoError(t, err)
	assert.True(t, created)
}

func TestFetchCalendar(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/years/2024/calendar", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":      "success",
			"dates":       []string{"2023-10-01", "2023-10-02"},
			"range_start": "2023-10-01",
			"range_end":   "2024-12-31",
		})
	}))

	dates, err := c.FetchCalendar(context.Background(), 2024)
	require.NoError(t, err)
	assert.Equal(t, []string{"2023-10-01", "2023-10-02"}, dates)
}

func TestGetStatus(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "success",
			"data": map[string]string{
				"date":   "2024-03-15",
				"file_1": "/data/cm.csv",
				"file_2": "",
			},
		})
	}))

	row, err := c.GetStatus(context.Background(), 2024, "2024-03-15")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-15", row.Date)
	assert.Equal(t, "/data/cm.csv", row.Slot(ledger.KindCMBhavcopy))
	assert.False(t, row.Filled(ledger.KindFOBhavcopy))
}

func TestListLedger(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "success",
			"data": []map[string]string{
				{"date": "2024-03-14", "file_1": "/a.csv"},
				{"date": "2024-03-15", "file_2": "/b.csv"},
			},
			"count": 2,
		})
	}))

	rows, err := c.ListLedger(context.Background(), 2024)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "/a.csv", rows[0].Slot(ledger.KindCMBhavcopy))
	assert.Equal(t, "/b.csv", rows[1].Slot(ledger.KindFOBhavcopy))
}

func TestUpdateStatusSendsBody(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var updates map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&updates))
		assert.Equal(t, map[string]string{"file_1": "/data/cm.csv"}, updates)

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{"status": "success", "created": true})
	}))

	created, err := c.UpdateStatus(context.Background(), 2024, "2024-03-15",
		map[string]string{"file_1": "/data/cm.csv"})
	require.NoError(t, err)
	assert.True(t, created)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{name: "not found", status: http.StatusNotFound, want: ErrNotFound},
		{name: "bad request", status: http.StatusBadRequest, want: ErrBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(`{"title":"nope"}`))
			}))

			_, err := c.GetStatus(context.Background(), 2024, "2024-03-15")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestConnectionError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close() // nothing is listening anymore
	c := New(srv.URL, time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := c.EnsureYear(context.Background(), 2024)
	assert.ErrorIs(t, err, ErrConnection)
}

func TestUnexpectedStatus(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := c.ListLedger(context.Background(), 2024)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrConnection)
	assert.NotErrorIs(t, err, ErrNotFound)
}
