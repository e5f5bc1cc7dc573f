package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"
)

// Production NSE hosts. Tests point these at an httptest server.
const (
	DefaultArchivesURL = "https://nsearchives.nseindia.com"
	DefaultSiteURL     = "https://www.nseindia.com"

	// warmupPath is fetched once per session so the site hands out the
	// cookies its /api endpoints require.
	warmupPath = "/all-reports-derivatives"

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
)

// ErrNoData marks a date the exchange has nothing for. It is not a
// failure: downloaders translate it into an empty path.
var ErrNoData = errors.New("no data published for date")

var (
	downloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nsecli",
		Subsystem: "downloader",
		Name:      "requests_total",
		Help:      "NSE download attempts by file kind and outcome.",
	}, []string{"kind", "outcome"})

	downloadBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nsecli",
		Subsystem: "downloader",
		Name:      "bytes_total",
		Help:      "Bytes fetched from NSE by file kind.",
	}, []string{"kind"})
)

// NSEClient is the shared HTTP session for all NSE downloaders
type NSEClient struct {
	archivesURL string
	siteURL     string
	agent       string
	http        *http.Client
	limiter     *rate.Limiter
	logger      *slog.Logger

	warmupMu sync.Mutex
	warmed   bool
}

// ClientOption customizes the NSE client
type ClientOption func(*NSEClient)

// WithArchivesURL overrides the archives host
func WithArchivesURL(url string) ClientOption {
	return func(c *NSEClient) { c.archivesURL = url }
}

// WithSiteURL overrides the main site host
func WithSiteURL(url string) ClientOption {
	return func(c *NSEClient) { c.siteURL = url }
}

// WithUserAgent overrides the advertised browser identity
func WithUserAgent(agent string) ClientOption {
	return func(c *NSEClient) {
		if agent != "" {
			c.agent = agent
		}
	}
}

// WithRateLimit overrides the request rate limit
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *NSEClient) { c.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

// NewNSEClient creates the shared session. The cookie jar is mandatory:
// nseindia.com rejects /api requests from cookie-less clients.
func NewNSEClient(timeout time.Duration, logger *slog.Logger, opts ...ClientOption) (*NSEClient, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	c := &NSEClient{
		archivesURL: DefaultArchivesURL,
		siteURL:     DefaultSiteURL,
		agent:       userAgent,
		http: &http.Client{
			Timeout: timeout,
			Jar:     jar,
		},
		limiter: rate.NewLimiter(rate.Limit(2), 4),
		logger:  logger.With(slog.String("component", "nse_client")),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// warmup establishes the cookie session. Success latches; a failed
// warm-up is retried on the next call so one transient refusal cannot
// poison the session for the client's lifetime.
func (c *NSEClient) warmup(ctx context.Context) error {
	c.warmupMu.Lock()
	defer c.warmupMu.Unlock()

	if c.warmed {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.siteURL+warmupPath, nil)
	if err != nil {
		return fmt.Errorf("warm up NSE session: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("warm up NSE session: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("warm up NSE session: status %d", resp.StatusCode)
	}

	c.warmed = true
	c.logger.DebugContext(ctx, "NSE session established",
		slog.Int("cookies", len(resp.Cookies())))
	return nil
}

func (c *NSEClient) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", c.agent)
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Referer", c.siteURL+warmupPath)
}

// FetchArchive downloads a file from the archives host. Archive URLs
// need no cookie session.
func (c *NSEClient) FetchArchive(ctx context.Context, kind, path string) ([]byte, error) {
	return c.fetch(ctx, kind, c.archivesURL+path, false)
}

// FetchReport downloads through the main site's /api surface, warming
// up the cookie session first.
func (c *NSEClient) FetchReport(ctx context.Context, kind, path string) ([]byte, error) {
	if err := c.warmup(ctx); err != nil {
		downloadsTotal.WithLabelValues(kind, "error").Inc()
		return nil, err
	}
	return c.fetch(ctx, kind, c.siteURL+path, true)
}

func (c *NSEClient) fetch(ctx context.Context, kind, url string, session bool) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		downloadsTotal.WithLabelValues(kind, "error").Inc()
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		downloadsTotal.WithLabelValues(kind, "no_data").Inc()
		return nil, fmt.Errorf("%w: %s", ErrNoData, url)
	case resp.StatusCode != http.StatusOK:
		downloadsTotal.WithLabelValues(kind, "error").Inc()
		return nil, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		downloadsTotal.WithLabelValues(kind, "error").Inc()
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	if len(body) == 0 {
		downloadsTotal.WithLabelValues(kind, "no_data").Inc()
		return nil, fmt.Errorf("%w: empty body from %s", ErrNoData, url)
	}

	downloadsTotal.WithLabelValues(kind, "success").Inc()
	downloadBytes.WithLabelValues(kind).Add(float64(len(body)))
	return body, nil
}

// writeFile stores a download atomically: write a temp sibling, then
// rename over the target so readers never see a half-written file.
func writeFile(dir, name string, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create download dir: %w", err)
	}

	target := filepath.Join(dir, name)
	tmp, err := os.CreateTemp(dir, name+".tmp*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("write %s: %w", target, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("close %s: %w", target, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("store %s: %w", target, err)
	}
	return target, nil
}

// isWeekend reports whether the exchange is closed for the date
func isWeekend(date time.Time) bool {
	wd := date.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
