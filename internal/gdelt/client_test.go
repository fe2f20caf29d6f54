package gdelt

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestFifteenMinuteFilename(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   time.Time
		want string
	}{
		{
			name: "floors to previous quarter",
			in:   time.Date(2024, 5, 1, 8, 22, 17, 0, time.UTC),
			want: "20240501081500.gkg.csv.zip",
		},
		{
			name: "exact boundary unchanged",
			in:   time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC),
			want: "20240501083000.gkg.csv.zip",
		},
		{
			name: "just before boundary",
			in:   time.Date(2024, 5, 1, 8, 14, 59, 0, time.UTC),
			want: "20240501080000.gkg.csv.zip",
		},
		{
			name: "top of hour",
			in:   time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC),
			want: "20240501080000.gkg.csv.zip",
		},
		{
			name: "non-utc input converted first",
			in:   time.Date(2024, 5, 1, 10, 22, 0, 0, time.FixedZone("CEST", 2*3600)),
			want: "20240501081500.gkg.csv.zip",
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := FifteenMinuteFilename(tc.in); got != tc.want {
				t.Errorf("FifteenMinuteFilename(%v) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestDailyFilename(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   time.Time
		want string
	}{
		{
			name: "utc day",
			in:   time.Date(2024, 5, 1, 8, 22, 17, 0, time.UTC),
			want: "20240501.gkg.csv.zip",
		},
		{
			name: "non-utc shifts across midnight",
			in:   time.Date(2024, 5, 2, 1, 30, 0, 0, time.FixedZone("MSK", 3*3600)),
			want: "20240501.gkg.csv.zip",
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := DailyFilename(tc.in); got != tc.want {
				t.Errorf("DailyFilename(%v) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func zipArchive(t *testing.T, name, content string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create(name)
	if err != nil {
		t.Fatalf("create zip entry: %v", err)
	}
	if _, err := w.Write([]byte(content)); err != nil {
		t.Fatalf("write zip entry: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func TestClientFetchFifteenMinute(t *testing.T) {
	t.Parallel()

	content := gkgRow(
		"http://example.com/a|http://example.com/b",
		"TAX_POLICY;TRADE",
		"jane doe",
		"united nations",
	) + "\n"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != "gkgtrends/1.0" {
			t.Errorf("User-Agent = %q", got)
		}
		if want := "/20240501081500.gkg.csv.zip"; r.URL.Path != want {
			t.Errorf("path = %q, want %q", r.URL.Path, want)
		}
		w.Write(zipArchive(t, "20240501081500.gkg.csv", content))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.URL, DefaultColumns())
	coll, err := client.FetchFifteenMinute(context.Background(), time.Date(2024, 5, 1, 8, 22, 17, 0, time.UTC))
	if err != nil {
		t.Fatalf("FetchFifteenMinute: %v", err)
	}

	if got, want := coll.Themes, []string{"tax_policy", "trade"}; !equalStrings(got, want) {
		t.Errorf("Themes = %v, want %v", got, want)
	}
	if got, want := coll.Persons, []string{"jane doe"}; !equalStrings(got, want) {
		t.Errorf("Persons = %v, want %v", got, want)
	}
	if got, want := coll.Orgs, []string{"united nations"}; !equalStrings(got, want) {
		t.Errorf("Orgs = %v, want %v", got, want)
	}
	if got, want := coll.DocumentIdentifiers, []string{"http://example.com/a", "http://example.com/b"}; !equalStrings(got, want) {
		t.Errorf("DocumentIdentifiers = %v, want %v", got, want)
	}
}

func TestClientFetchDailyURL(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if want := "/20240501.gkg.csv.zip"; r.URL.Path != want {
			t.Errorf("path = %q, want %q", r.URL.Path, want)
		}
		w.Write(zipArchive(t, "20240501.gkg.csv", gkgRow("http://example.com/a", "CLIMATE", "", "")+"\n"))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.URL, DefaultColumns())
	coll, err := client.FetchDaily(context.Background(), time.Date(2024, 5, 1, 23, 59, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("FetchDaily: %v", err)
	}
	if got, want := coll.Themes, []string{"climate"}; !equalStrings(got, want) {
		t.Errorf("Themes = %v, want %v", got, want)
	}
}

func TestClientFetchMissingArchive(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.URL, DefaultColumns())
	if _, err := client.FetchFifteenMinute(context.Background(), time.Now()); err == nil {
		t.Fatal("expected error for missing archive")
	} else if !strings.Contains(err.Error(), "status") {
		t.Errorf("error = %v, want status error", err)
	}
}

func TestClientFetchCorruptArchive(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("definitely not a zip archive"))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.URL, DefaultColumns())
	if _, err := client.FetchDaily(context.Background(), time.Now()); err == nil {
		t.Fatal("expected error for corrupt archive")
	} else if !strings.Contains(err.Error(), "open archive") {
		t.Errorf("error = %v, want archive error", err)
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
