package rank

import (
	"sort"
	"strings"

	"gkgtrends/internal/models"
)

// ByCount folds duplicate words case-insensitively, summing counts and
// unioning document sets, then returns the topN entries by descending
// count. Ties keep first-seen order. Items without a word are skipped;
// items without a count contribute 1.
func ByCount(items []models.Keyword, topN int) []models.Keyword {
	if topN < 0 {
		topN = 0
	}

	index := make(map[string]int, len(items))
	folded := make([]models.Keyword, 0, len(items))
	seenDocs := make(map[string]map[string]struct{})

	for _, it := range items {
		word := strings.ToLower(strings.TrimSpace(it.Word))
		if word == "" {
			continue
		}
		count := it.Count
		if count <= 0 {
			count = 1
		}

		i, ok := index[word]
		if !ok {
			index[word] = len(folded)
			folded = append(folded, models.Keyword{Word: word, Count: 0})
			i = index[word]
		}
		folded[i].Count += count

		for _, doc := range it.Documents {
			if doc == "" {
				continue
			}
			set := seenDocs[word]
			if set == nil {
				set = make(map[string]struct{})
				seenDocs[word] = set
			}
			if _, dup := set[doc]; dup {
				continue
			}
			set[doc] = struct{}{}
			folded[i].Documents = append(folded[i].Documents, doc)
		}
	}

	sort.SliceStable(folded, func(a, b int) bool {
		return folded[a].Count > folded[b].Count
	})

	if len(folded) > topN {
		folded = folded[:topN]
	}
	return folded
}

// FromTokens lifts a bag of tokens into count-1 keywords so it can be
// ranked with ByCount.
func FromTokens(tokens []string) []models.Keyword {
	out := make([]models.Keyword, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, models.Keyword{Word: t, Count: 1})
	}
	return out
}

// Tokens ranks a raw token bag directly.
func Tokens(tokens []string, topN int) []models.Keyword {
	return ByCount(FromTokens(tokens), topN)
}
