package gdelt

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"gkgtrends/internal/models"
	"gkgtrends/internal/tokenize"
)

// ColumnConfig holds the tab positions of the GKG fields a stream
// extracts. Positions come from configuration and may be overwritten
// per stream when the file carries a header row.
type ColumnConfig struct {
	Themes             int
	Persons            int
	Orgs               int
	DocumentIdentifier int
	Locations          int
	Tone               int
	DateAdded          int
}

// DefaultColumns returns the canonical GKG 2.1 field positions.
func DefaultColumns() ColumnConfig {
	return ColumnConfig{
		Themes:             7,
		Persons:            9,
		Orgs:               10,
		DocumentIdentifier: 4,
		Locations:          11,
		Tone:               15,
		DateAdded:          1,
	}
}

// Collector accumulates the cleaned entity mentions and document
// identifiers of a single GKG file.
type Collector struct {
	Themes              []string
	Persons             []string
	Orgs                []string
	DocumentIdentifiers []string

	Rows      int
	RowErrors int
}

// Bag returns the mention list for an entity category.
func (c *Collector) Bag(cat models.Category) []string {
	switch cat {
	case models.CategoryThemes:
		return c.Themes
	case models.CategoryPersons:
		return c.Persons
	case models.CategoryOrgs:
		return c.Orgs
	}
	return nil
}

// Collect streams tab-delimited GKG records from r. The column layout
// starts from cols, with unset extraction indices falling back to the
// canonical positions; if the first row looks like a header its
// detected positions win for this stream only, and the row is not
// treated as data. Malformed rows are counted and skipped.
func Collect(r io.Reader, cols ColumnConfig) (*Collector, error) {
	def := DefaultColumns()
	if cols.Themes <= 0 {
		cols.Themes = def.Themes
	}
	if cols.Persons <= 0 {
		cols.Persons = def.Persons
	}
	if cols.Orgs <= 0 {
		cols.Orgs = def.Orgs
	}
	if cols.DocumentIdentifier <= 0 {
		cols.DocumentIdentifier = def.DocumentIdentifier
	}

	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	coll := &Collector{}
	first := true
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				coll.RowErrors++
				log.Printf("[collector] skipping malformed row %d: %v", parseErr.Line, err)
				continue
			}
			return nil, fmt.Errorf("read records: %w", err)
		}
		if first {
			first = false
			if detectHeader(record, &cols) {
				continue
			}
		}
		coll.addRow(record, cols)
	}
	return coll, nil
}

// detectHeader reports whether record is a header row and, if so,
// rewrites the matched positions in cols. A marker that is absent
// leaves its configured position unchanged.
func detectHeader(record []string, cols *ColumnConfig) bool {
	joined := strings.ToLower(strings.Join(record, "\t"))
	if !strings.Contains(joined, "v2themes") &&
		!strings.Contains(joined, "v2persons") &&
		!strings.Contains(joined, "v2organizations") &&
		!strings.Contains(joined, "documentidentifier") {
		return false
	}
	if i := findColumn(record, "v2themes"); i >= 0 {
		cols.Themes = i
	}
	if i := findColumn(record, "v2persons"); i >= 0 {
		cols.Persons = i
	}
	if i := findColumn(record, "v2organizations"); i >= 0 {
		cols.Orgs = i
	}
	if i := findColumn(record, "documentidentifier"); i >= 0 {
		cols.DocumentIdentifier = i
	}
	return true
}

func findColumn(record []string, marker string) int {
	for i, h := range record {
		if strings.Contains(strings.ToLower(h), marker) {
			return i
		}
	}
	return -1
}

func (c *Collector) addRow(record []string, cols ColumnConfig) {
	c.Rows++
	if v := cell(record, cols.Themes); v != "" {
		c.Themes = append(c.Themes, tokenize.SplitAndClean(v)...)
	}
	if v := cell(record, cols.Persons); v != "" {
		c.Persons = append(c.Persons, tokenize.SplitAndClean(v)...)
	}
	if v := cell(record, cols.Orgs); v != "" {
		c.Orgs = append(c.Orgs, tokenize.SplitAndClean(v)...)
	}
	if v := cell(record, cols.DocumentIdentifier); v != "" {
		for _, id := range strings.Split(v, "|") {
			id = strings.TrimSpace(id)
			if id != "" {
				c.DocumentIdentifiers = append(c.DocumentIdentifiers, id)
			}
		}
	}
}

// cell returns the trimmed field at idx, or "" when the record is too
// short or idx is out of range.
func cell(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}
