package gdelt

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// fetchTimeout bounds a single archive download end to end. The daily
// rollup path passes a tighter per-file context on top of this.
const fetchTimeout = 300 * time.Second

// Client downloads and decompresses GKG archives. Safe for concurrent
// use; the underlying http.Client is shared.
type Client struct {
	baseURL      string
	dailyBaseURL string
	columns      ColumnConfig
	httpClient   *http.Client
}

func NewClient(baseURL, dailyBaseURL string, columns ColumnConfig) *Client {
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		dailyBaseURL: strings.TrimRight(dailyBaseURL, "/"),
		columns:      columns,
		httpClient:   &http.Client{Timeout: fetchTimeout},
	}
}

// FifteenMinuteFilename returns the 15-minute archive name for t,
// minutes floored to 0/15/30/45 UTC.
func FifteenMinuteFilename(t time.Time) string {
	floored := t.UTC().Truncate(15 * time.Minute)
	return floored.Format("200601021504") + "00.gkg.csv.zip"
}

// DailyFilename returns the daily rollup archive name for t's UTC day.
func DailyFilename(t time.Time) string {
	return t.UTC().Format("20060102") + ".gkg.csv.zip"
}

func (c *Client) FifteenMinuteURL(t time.Time) string {
	return c.baseURL + "/" + FifteenMinuteFilename(t)
}

func (c *Client) DailyURL(t time.Time) string {
	return c.dailyBaseURL + "/" + DailyFilename(t)
}

// FetchFifteenMinute downloads the 15-minute archive for t and collects
// its records.
func (c *Client) FetchFifteenMinute(ctx context.Context, t time.Time) (*Collector, error) {
	return c.fetch(ctx, c.FifteenMinuteURL(t))
}

// FetchDaily downloads the daily rollup archive for t's UTC day and
// collects its records.
func (c *Client) FetchDaily(ctx context.Context, t time.Time) (*Collector, error) {
	return c.fetch(ctx, c.DailyURL(t))
}

func (c *Client) fetch(ctx context.Context, url string) (*Collector, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "gkgtrends/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch %s: status %s", url, resp.Status)
	}

	// archive/zip needs random access, so the body is buffered. A single
	// GKG archive fits in memory; the daily job keeps one in flight.
	buf, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}

	zr, err := zip.NewReader(bytes.NewReader(buf), int64(len(buf)))
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", url, err)
	}
	if len(zr.File) == 0 {
		return nil, fmt.Errorf("archive %s contains no entries", url)
	}

	entry, err := zr.File[0].Open()
	if err != nil {
		return nil, fmt.Errorf("open archive entry %s: %w", url, err)
	}
	defer entry.Close()

	coll, err := Collect(entry, c.columns)
	if err != nil {
		return nil, fmt.Errorf("collect %s: %w", url, err)
	}
	return coll, nil
}
