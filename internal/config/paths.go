package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
)

// Paths holds the resolved directory layout used by every binary.
// All ledger, download and report artifacts live under DataDir so a whole
// year's state can be moved or backed up as one tree.
type Paths struct {
	BaseDir      string
	DataDir      string
	LedgersDir   string
	DownloadsDir string
	ReportsDir   string
	LogsDir      string
}

// NewPaths resolves the directory layout relative to base. An empty base
// resolves against the current working directory.
func NewPaths(base string, cfg PathsConfig) (*Paths, error) {
	if base == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve working directory: %w", err)
		}
		base = wd
	}

	resolve := func(p, fallback string) string {
		if p == "" {
			p = fallback
		}
		if filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}

	return &Paths{
		BaseDir:      base,
		DataDir:      resolve(cfg.DataDir, "data"),
		LedgersDir:   resolve(cfg.LedgersDir, filepath.Join("data", "ledgers")),
		DownloadsDir: resolve(cfg.DownloadsDir, filepath.Join("data", "downloads")),
		ReportsDir:   resolve(cfg.ReportsDir, filepath.Join("data", "reports")),
		LogsDir:      resolve(cfg.LogsDir, "logs"),
	}, nil
}

// EnsureDirectories creates every directory the application writes into
func (p *Paths) EnsureDirectories() error {
	dirs := []string{p.DataDir, p.LedgersDir, p.DownloadsDir, p.ReportsDir, p.LogsDir}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// LedgerDir returns the per-year ledger directory
func (p *Paths) LedgerDir(year int) string {
	return filepath.Join(p.LedgersDir, strconv.Itoa(year))
}

// LedgerFile returns the tracking workbook path for a year
func (p *Paths) LedgerFile(year int) string {
	return filepath.Join(p.LedgerDir(year), "tracking.xlsx")
}

// DownloadDir returns the per-kind download directory
func (p *Paths) DownloadDir(kind string) string {
	return filepath.Join(p.DownloadsDir, kind)
}

// GetLogPath returns a log file path under LogsDir
func (p *Paths) GetLogPath(filename string) string {
	return filepath.Join(p.LogsDir, filename)
}

// LogPathResolution logs the resolved layout at startup for debugging
func (p *Paths) LogPathResolution() {
	slog.Info("Resolved paths",
		slog.String("base", p.BaseDir),
		slog.String("data", p.DataDir),
		slog.String("ledgers", p.LedgersDir),
		slog.String("downloads", p.DownloadsDir),
		slog.String("reports", p.ReportsDir),
		slog.String("logs", p.LogsDir))
}

// FileExists reports whether path exists and is a regular file
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
