package downloader

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"nsecli/internal/ledger"
)

// combinedOI downloads the combined open interest file. The main site's
// reports API is the primary source; when it has nothing the archives
// host often still carries the file, so a miss falls back there before
// the date is declared empty.
type combinedOI struct {
	client *NSEClient
	dir    string
}

// NewCombinedOI creates the combined open interest downloader
func NewCombinedOI(client *NSEClient, dir string) Downloader {
	return &combinedOI{client: client, dir: dir}
}

func (c *combinedOI) Kind() ledger.FileKind { return ledger.KindCombinedOI }

func (c *combinedOI) Download(ctx context.Context, date time.Time) (string, error) {
	if isWeekend(date) {
		return "", nil
	}

	body, err := c.client.FetchReport(ctx, c.Kind().String(), reportsPath("FAO-Combined Open Interest", date))
	if errors.Is(err, ErrNoData) {
		body, err = c.client.FetchArchive(ctx, c.Kind().String(),
			fmt.Sprintf("/archives/nsccl/mwpl/combineoi_%s.csv", date.Format("02012006")))
	}
	if errors.Is(err, ErrNoData) {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	name := fmt.Sprintf("fao_combine_oi_%s.csv", date.Format("20060102"))
	return writeFile(c.dir, name, body)
}

// reportsPath builds a main-site reports API request for one report on
// one date. The API wants the display date format, not ISO.
func reportsPath(report string, date time.Time) string {
	q := url.Values{}
	q.Set("archives", fmt.Sprintf(`[{"name":%q,"type":"archives","category":"derivatives","section":"equity"}]`, report))
	q.Set("date", date.Format("02-Jan-2006"))
	q.Set("type", "equity")
	q.Set("mode", "single")
	return "/api/reports?" + q.Encode()
}
