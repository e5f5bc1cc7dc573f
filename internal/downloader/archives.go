package downloader

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"nsecli/internal/ledger"
)

// archiveFile is the common implementation for kinds served directly
// from the NSE archives host: build the dated remote path, fetch,
// optionally unzip, store.
type archiveFile struct {
	client *NSEClient
	dir    string
	kind   ledger.FileKind
	remote func(date time.Time) string
	local  func(date time.Time) string
	zipped bool
}

func (a *archiveFile) Kind() ledger.FileKind { return a.kind }

func (a *archiveFile) Download(ctx context.Context, date time.Time) (string, error) {
	if isWeekend(date) {
		return "", nil
	}

	body, err := a.client.FetchArchive(ctx, a.kind.String(), a.remote(date))
	if errors.Is(err, ErrNoData) {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	if a.zipped {
		body, err = extractCSV(body)
		if err != nil {
			return "", fmt.Errorf("%s for %s: %w", a.kind, date.Format(ledger.DateLayout), err)
		}
	}
	return writeFile(a.dir, a.local(date), body)
}

// NewCMBhavcopy downloads the capital-market UDiFF bhavcopy
func NewCMBhavcopy(client *NSEClient, dir string) Downloader {
	return &archiveFile{
		client: client,
		dir:    dir,
		kind:   ledger.KindCMBhavcopy,
		remote: func(d time.Time) string {
			return fmt.Sprintf("/content/cm/BhavCopy_NSE_CM_0_0_0_%s_F_0000.csv.zip", d.Format("20060102"))
		},
		local: func(d time.Time) string {
			return fmt.Sprintf("BhavCopy_NSE_CM_%s.csv", d.Format("20060102"))
		},
		zipped: true,
	}
}

// NewFOBhavcopy downloads the derivatives UDiFF bhavcopy
func NewFOBhavcopy(client *NSEClient, dir string) Downloader {
	return &archiveFile{
		client: client,
		dir:    dir,
		kind:   ledger.KindFOBhavcopy,
		remote: func(d time.Time) string {
			return fmt.Sprintf("/content/fo/BhavCopy_NSE_FO_0_0_0_%s_F_0000.csv.zip", d.Format("20060102"))
		},
		local: func(d time.Time) string {
			return fmt.Sprintf("BhavCopy_NSE_FO_%s.csv", d.Format("20060102"))
		},
		zipped: true,
	}
}

// NewFIIStatistics downloads the daily FII derivatives statistics sheet
func NewFIIStatistics(client *NSEClient, dir string) Downloader {
	return &archiveFile{
		client: client,
		dir:    dir,
		kind:   ledger.KindFIIStats,
		remote: func(d time.Time) string {
			return fmt.Sprintf("/content/fo/fii_stats_%s.xls", d.Format("02-Jan-2006"))
		},
		local: func(d time.Time) string {
			return fmt.Sprintf("fii_stats_%s.xls", d.Format("20060102"))
		},
	}
}

// NewParticipantOI downloads the participant-wise open interest file
func NewParticipantOI(client *NSEClient, dir string) Downloader {
	return &archiveFile{
		client: client,
		dir:    dir,
		kind:   ledger.KindParticipantOI,
		remote: func(d time.Time) string {
			return fmt.Sprintf("/content/nsccl/fao_participant_oi_%s.csv", d.Format("02012006"))
		},
		local: func(d time.Time) string {
			return fmt.Sprintf("fao_participant_oi_%s.csv", d.Format("20060102"))
		},
	}
}

// NewParticipantVolume downloads the participant-wise trading volume file
func NewParticipantVolume(client *NSEClient, dir string) Downloader {
	return &archiveFile{
		client: client,
		dir:    dir,
		kind:   ledger.KindParticipantVolume,
		remote: func(d time.Time) string {
			return fmt.Sprintf("/content/nsccl/fao_participant_vol_%s.csv", d.Format("02012006"))
		},
		local: func(d time.Time) string {
			return fmt.Sprintf("fao_participant_vol_%s.csv", d.Format("20060102"))
		},
	}
}

// NewIndices downloads the all-indices closing snapshot
func NewIndices(client *NSEClient, dir string) Downloader {
	return &archiveFile{
		client: client,
		dir:    dir,
		kind:   ledger.KindIndices,
		remote: func(d time.Time) string {
			return fmt.Sprintf("/content/indices/ind_close_all_%s.csv", d.Format("02012006"))
		},
		local: func(d time.Time) string {
			return fmt.Sprintf("ind_close_all_%s.csv", d.Format("20060102"))
		},
	}
}

// NewEquityDeliverable downloads the full equity bhavdata with
// deliverable quantities
func NewEquityDeliverable(client *NSEClient, dir string) Downloader {
	return &archiveFile{
		client: client,
		dir:    dir,
		kind:   ledger.KindEquityDeliverable,
		remote: func(d time.Time) string {
			return fmt.Sprintf("/products/content/sec_bhavdata_full_%s.csv", d.Format("02012006"))
		},
		local: func(d time.Time) string {
			return fmt.Sprintf("sec_bhavdata_full_%s.csv", d.Format("20060102"))
		},
	}
}

// extractCSV pulls the single CSV out of an NSE zip archive
func extractCSV(data []byte) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}

	for _, f := range zr.File {
		if !strings.EqualFold(filepath.Ext(f.Name), ".csv") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s in zip: %w", f.Name, err)
		}
		defer rc.Close()

		body, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("extract %s: %w", f.Name, err)
		}
		return body, nil
	}
	return nil, errors.New("zip archive contains no CSV")
}
