package http

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nsecli/internal/calendar"
	apierrors "nsecli/internal/errors"
	"nsecli/internal/ledger"
	"nsecli/internal/services"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := ledger.NewStore(t.TempDir(), logger)
	gen := calendar.NewGeneratorAt(func() time.Time {
		return time.Date(2026, time.August, 31, 9, 0, 0, 0, time.UTC)
	})
	service := services.NewLedgerService(store, gen, logger)
	handler := NewLedgerHandler(service, logger, apierrors.NewErrorHandler(logger, false))

	r := chi.NewRouter()
	r.Mount("/api/years", handler.Routes())

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body string) (*http.Response, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded), "body: %s", raw)
	return resp, decoded
}

func TestEnsureYearEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/years/2024", "")
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, true, body["created"])

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/years/2024", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["created"])
}

func TestYearValidation(t *testing.T) {
	srv := newTestServer(t)

	for _, raw := range []string{"24", "024", "20245", "abcd", "-999"} {
		resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/years/"+raw, "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "year %q", raw)
		assert.Contains(t, resp.Header.Get("Content-Type"), "application/problem+json")
		assert.NotEmpty(t, body["title"])
	}
}

func TestLedgerLifecycle(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/years/2024/ledger", "")
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	// empty ledger lists no rows
	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/years/2024/ledger", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(0), body["count"])

	// record two slots for a date
	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/years/2024/ledger/2024-03-15",
		`{"file_1":"/data/cm.csv","file_2":"/data/fo.csv"}`)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, true, body["created"])

	// read the row back
	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/years/2024/ledger/2024-03-15", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	data, ok := body["data"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "2024-03-15", data["date"])
	assert.Equal(t, "/data/cm.csv", data["file_1"])
	assert.Equal(t, "/data/fo.csv", data["file_2"])
	assert.Equal(t, "", data["file_3"])

	// partial update does not disturb other slots
	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/years/2024/ledger/2024-03-15",
		`{"file_7":"/data/indices.csv"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["created"])

	_, body = doJSON(t, http.MethodGet, srv.URL+"/api/years/2024/ledger/2024-03-15", "")
	data = body["data"].(map[string]interface{})
	assert.Equal(t, "/data/cm.csv", data["file_1"])
	assert.Equal(t, "/data/indices.csv", data["file_7"])

	// list now shows one row
	_, body = doJSON(t, http.MethodGet, srv.URL+"/api/years/2024/ledger", "")
	assert.Equal(t, float64(1), body["count"])
}

func TestGetStatusNotFound(t *testing.T) {
	srv := newTestServer(t)

	// ledger missing entirely
	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/api/years/2024/ledger/2024-03-15", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	doJSON(t, http.MethodPost, srv.URL+"/api/years/2024/ledger", "")

	// ledger exists, date untracked
	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/years/2024/ledger/2024-03-15", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "application/problem+json")
	typ, _ := body["type"].(string)
	assert.True(t, strings.Contains(typ, "not-found"), "type: %s", typ)
}

func TestUpdateStatusRejectsBadInput(t *testing.T) {
	srv := newTestServer(t)
	doJSON(t, http.MethodPost, srv.URL+"/api/years/2024/ledger", "")

	// invalid date
	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/years/2024/ledger/15-03-2024",
		`{"file_1":"/x.csv"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// unknown slot
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/years/2024/ledger/2024-03-15",
		`{"file_99":"/x.csv"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// empty body
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/years/2024/ledger/2024-03-15", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// malformed JSON
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/years/2024/ledger/2024-03-15", `{bad`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCalendarEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/years/2024/calendar", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "2023-10-01", body["range_start"])
	assert.Equal(t, "2024-12-31", body["range_end"])

	dates, ok := body["dates"].([]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(len(dates)), body["count"])
	assert.Equal(t, "2023-10-01", dates[0])

	// year accepted by the path filter but outside the calendar range
	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/years/1500/calendar", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
