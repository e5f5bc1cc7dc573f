package downloader

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nsecli/internal/ledger"
)

var (
	// Friday and Saturday around a known trading day
	tradingDay = time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC)
	saturday   = time.Date(2024, time.March, 16, 0, 0, 0, 0, time.UTC)
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func zipWithCSV(t *testing.T, name, content string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create(name)
	require.NoError(t, err)
	_, err = w.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func newArchivesClient(t *testing.T, handler http.Handler) *NSEClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewNSEClient(5*time.Second, discardLogger(),
		WithArchivesURL(srv.URL),
		WithSiteURL(srv.URL),
		WithRateLimit(1000, 1000))
	require.NoError(t, err)
	return c
}

func TestCMBhavcopyDownload(t *testing.T) {
	const csv = "TradDt,TckrSymb\n2024-03-15,RELIANCE\n"
	payload := zipWithCSV(t, "BhavCopy_NSE_CM_0_0_0_20240315_F_0000.csv", csv)

	client := newArchivesClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/content/cm/BhavCopy_NSE_CM_0_0_0_20240315_F_0000.csv.zip", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Write(payload)
	}))

	dir := t.TempDir()
	dl := NewCMBhavcopy(client, dir)
	assert.Equal(t, ledger.KindCMBhavcopy, dl.Kind())

	path, err := dl.Download(context.Background(), tradingDay)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "BhavCopy_NSE_CM_20240315.csv"), path)

	// the zip wrapper is gone; the stored file is the inner CSV
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, csv, string(data))
}

func TestDownloadWeekendShortCircuits(t *testing.T) {
	client := newArchivesClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("weekend dates must never reach the exchange")
	}))

	dl := NewFOBhavcopy(client, t.TempDir())
	path, err := dl.Download(context.Background(), saturday)
	require.NoError(t, err)
	assert.Empty(t, path)
}

func TestDownloadNoDataIsNotAnError(t *testing.T) {
	client := newArchivesClient(t, http.NotFoundHandler())

	dl := NewIndices(client, t.TempDir())
	path, err := dl.Download(context.Background(), tradingDay)
	require.NoError(t, err)
	assert.Empty(t, path)
}

func TestDownloadServerErrorIsAnError(t *testing.T) {
	client := newArchivesClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	dl := NewParticipantOI(client, t.TempDir())
	path, err := dl.Download(context.Background(), tradingDay)
	require.Error(t, err)
	assert.Empty(t, path)
}

func TestEquityDeliverableURLFormat(t *testing.T) {
	var gotPath string
	client := newArchivesClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte("SYMBOL, SERIES\n"))
	}))

	dl := NewEquityDeliverable(client, t.TempDir())
	_, err := dl.Download(context.Background(), tradingDay)
	require.NoError(t, err)
	assert.Equal(t, "/products/content/sec_bhavdata_full_15032024.csv", gotPath)
}

func TestCombinedOIFallsBackToArchives(t *testing.T) {
	var sawAPI, sawArchive bool
	client := newArchivesClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == warmupPath:
			w.Write([]byte("ok"))
		case r.URL.Path == "/api/reports":
			sawAPI = true
			http.NotFound(w, r)
		case r.URL.Path == "/archives/nsccl/mwpl/combineoi_15032024.csv":
			sawArchive = true
			w.Write([]byte("ISIN,Symbol,OI\n"))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))

	dl := NewCombinedOI(client, t.TempDir())
	path, err := dl.Download(context.Background(), tradingDay)
	require.NoError(t, err)
	assert.NotEmpty(t, path)
	assert.True(t, sawAPI)
	assert.True(t, sawArchive)
}

func TestWarmupRunsOncePerSession(t *testing.T) {
	warmups := 0
	client := newArchivesClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == warmupPath {
			warmups++
		}
		w.Write([]byte("data"))
	}))

	dl := NewCombinedOI(client, t.TempDir())
	for range 3 {
		_, err := dl.Download(context.Background(), tradingDay)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, warmups)
}

func TestWarmupRetriesAfterFailure(t *testing.T) {
	warmups := 0
	client := newArchivesClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == warmupPath {
			warmups++
			if warmups == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
		}
		w.Write([]byte("data"))
	}))

	dl := NewCombinedOI(client, t.TempDir())

	// first attempt fails at warm-up
	path, err := dl.Download(context.Background(), tradingDay)
	require.Error(t, err)
	assert.Empty(t, path)

	// a transient warm-up failure must not stick to the session: the
	// next attempt warms up again and succeeds
	path, err = dl.Download(context.Background(), tradingDay)
	require.NoError(t, err)
	assert.NotEmpty(t, path)
	assert.Equal(t, 2, warmups)

	// once warmed, no further warm-up requests
	_, err = dl.Download(context.Background(), tradingDay)
	require.NoError(t, err)
	assert.Equal(t, 2, warmups)
}

func TestRegistry(t *testing.T) {
	client := newArchivesClient(t, http.NotFoundHandler())
	base := t.TempDir()

	reg := NewRegistry(client, func(kind ledger.FileKind) string {
		return filepath.Join(base, kind.String())
	})

	assert.Len(t, reg.Kinds(), 8)

	for _, kind := range ledger.AllKinds() {
		dl, err := reg.ForKind(kind)
		require.NoError(t, err, "kind %s", kind)
		assert.Equal(t, kind, dl.Kind())

		dl, err = reg.ForSlot(kind.Slot())
		require.NoError(t, err, "slot %s", kind.Slot())
		assert.Equal(t, kind, dl.Kind())
	}

	_, err := reg.ForSlot("file_9")
	assert.Error(t, err, "reserved slots have no downloader")
	_, err = reg.ForSlot("bogus")
	assert.Error(t, err)
}

func TestExtractCSVRejectsCSVLessZip(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("readme.txt")
	require.NoError(t, err)
	w.Write([]byte("nothing here"))
	require.NoError(t, zw.Close())

	_, err = extractCSV(buf.Bytes())
	assert.Error(t, err)
}
