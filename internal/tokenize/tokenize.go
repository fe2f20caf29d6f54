package tokenize

import (
	"regexp"
	"strings"

	"gkgtrends/internal/models"
)

// stopwords are connective words dropped during cleaning. GKG entity
// fields occasionally leak them as standalone tokens.
var stopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "of": {},
	"in": {}, "for": {}, "on": {}, "with": {}, "to": {}, "from": {},
	"by": {}, "at": {}, "is": {}, "was": {}, "are": {},
}

var (
	edgeTrimRe   = regexp.MustCompile(`^\W+|\W+$`)
	whitespaceRe = regexp.MustCompile(`\s+`)
	urlRe        = regexp.MustCompile(`^(https?://|www\.)`)
	// Bare domains, optionally carrying a path ("example.com",
	// "google.com/news"). Entity columns pick these up from source URLs.
	domainRe        = regexp.MustCompile(`^[a-z0-9.-]+\.[a-z]{2,}(/\S*)?$`)
	numericVectorRe = regexp.MustCompile(`^\d+(\.\d+)?(,\d+(\.\d+)?){3,}$`)
)

// SplitAndClean splits a semicolon-delimited GKG field into normalized
// tokens: lowercased, edge punctuation stripped, internal whitespace
// collapsed. Empty tokens, stopwords and noise are dropped.
func SplitAndClean(field string) []string {
	parts := strings.Split(field, ";")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		token := strings.ToLower(part)
		token = edgeTrimRe.ReplaceAllString(token, "")
		token = whitespaceRe.ReplaceAllString(token, " ")
		if token == "" {
			continue
		}
		if _, stop := stopwords[token]; stop {
			continue
		}
		if IsNoise(token) {
			continue
		}
		out = append(out, token)
	}
	return out
}

// IsNoise classifies tokens that carry no trend signal: too short,
// URL-shaped, bare domains, numeric vectors (offset lists, tone tuples)
// and digit-dominated strings.
func IsNoise(token string) bool {
	runes := []rune(token)
	if len(runes) < 3 {
		return true
	}
	if urlRe.MatchString(token) {
		return true
	}
	if domainRe.MatchString(token) {
		return true
	}
	if IsNumericVector(token) {
		return true
	}
	digits := 0
	for _, r := range runes {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	return float64(digits)/float64(len(runes)) > 0.6
}

// IsNumericVector reports whether token is four or more comma-separated
// numbers, integer or decimal.
func IsNumericVector(token string) bool {
	return numericVectorRe.MatchString(token)
}

// FilterNoise drops keywords whose word fails the noise predicate.
// Persisted documents are treated as untrusted: older tokenizers may
// have let noise through, so scoring re-filters at read time.
func FilterNoise(keywords []models.Keyword) []models.Keyword {
	out := make([]models.Keyword, 0, len(keywords))
	for _, kw := range keywords {
		if kw.Word == "" || IsNoise(kw.Word) {
			continue
		}
		out = append(out, kw)
	}
	return out
}
