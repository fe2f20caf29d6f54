package models

import (
	"time"
)

// TrendType distinguishes how a trend document was produced.
type TrendType string

const (
	TrendRealtime TrendType = "realtime"
	TrendDaily    TrendType = "daily"
	TrendRanked   TrendType = "ranked"
)

// Category identifies which GKG column a trend aggregates.
type Category string

const (
	CategoryThemes    Category = "themes"
	CategoryPersons   Category = "persons"
	CategoryOrgs      Category = "orgs"
	CategoryDocuments Category = "documents"

	// CategoryAll is a request-side selector, never persisted.
	CategoryAll Category = "all"
)

// EntityCategories are the categories extracted from entity columns,
// in the order they are aggregated and served.
var EntityCategories = []Category{CategoryThemes, CategoryPersons, CategoryOrgs}

// ValidCategory reports whether c can appear on a persisted trend.
func ValidCategory(c Category) bool {
	switch c {
	case CategoryThemes, CategoryPersons, CategoryOrgs, CategoryDocuments:
		return true
	}
	return false
}

// Keyword is a single aggregated entry inside a trend document.
// Score is set only on ranked trends; a zero score is meaningful there,
// so it is a pointer rather than relying on omitempty alone.
type Keyword struct {
	Word      string   `json:"word"`
	Count     int      `json:"count"`
	Score     *int     `json:"score,omitempty"`
	Documents []string `json:"documents,omitempty"`
}

// Trend represents a row of gkg.trends. The identity key is
// (Type, Date, Category); Timestamp is payload, not identity.
type Trend struct {
	Type      TrendType `json:"type"`
	Date      string    `json:"date"` // YYYY-MM-DD, UTC calendar day
	Category  Category  `json:"category"`
	Timestamp time.Time `json:"timestamp"`
	Keywords  []Keyword `json:"keywords"`
}

const dateLayout = "2006-01-02"

// DateOf returns the UTC calendar day of t in trend date form.
func DateOf(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

// ParseDate parses a YYYY-MM-DD trend date into a UTC midnight instant.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(dateLayout, s, time.UTC)
}

// MiddayOf returns UTC noon of t's calendar day, the timestamp
// convention for daily trend documents.
func MiddayOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 12, 0, 0, 0, time.UTC)
}
