// Package similarity provides text similarity and fuzzy matching utilities.
package similarity

import "strings"

// ExtractTerms tokenizes text into a set of meaningful lowercase terms for
// similarity comparison. Stop words and very short tokens are dropped.
func ExtractTerms(text string) map[string]bool {
	terms := make(map[string]bool)
	addTerms(terms, text)
	return terms
}

// addTerms folds the meaningful tokens of text into the set. Splits on
// anything that is not alphanumeric or underscore.
func addTerms(terms map[string]bool, text string) {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_')
	})

	for _, word := range words {
		if len(word) >= 2 && !stopWords[word] {
			terms[word] = true
		}
	}
}

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true,
	"was": true, "were": true, "be": true, "been": true, "being": true,
	"do": true, "does": true, "did": true, "will": true, "would": true,
	"could": true, "should": true, "may": true, "might": true, "must": true,
	"this": true, "that": true, "these": true, "those": true,
	"and": true, "or": true, "but": true, "if": true, "then": true,
	"for": true, "from": true, "with": true, "about": true, "into": true,
	"to": true, "of": true, "in": true, "on": true, "at": true, "by": true,
	"it": true, "its": true, "me": true, "my": true, "please": true,
}

// JaccardSimilarity scores the overlap of two term sets from 0 (disjoint)
// to 1 (identical). Two empty sets count as identical.
func JaccardSimilarity(set1, set2 map[string]bool) float64 {
	if len(set1) == 0 && len(set2) == 0 {
		return 1.0
	}
	if len(set1) == 0 || len(set2) == 0 {
		return 0.0
	}

	intersection := 0
	for term := range set1 {
		if set2[term] {
			intersection++
		}
	}

	union := len(set1) + len(set2) - intersection
	if union == 0 {
		return 0.0
	}

	return float64(intersection) / float64(union)
}

// ClusterStrings groups near-identical strings and keeps one representative
// per cluster. Input order is preference order: the first member of each
// cluster survives. Used to dedupe command suggestion lists.
func ClusterStrings(items []string, similarityThreshold float64) []string {
	if len(items) <= 1 {
		return items
	}

	termSets := make([]map[string]bool, len(items))
	for i, item := range items {
		termSets[i] = ExtractTerms(item)
	}

	clustered := make([]bool, len(items))
	result := make([]string, 0, len(items))

	for i := 0; i < len(items); i++ {
		if clustered[i] {
			continue
		}

		result = append(result, items[i])
		clustered[i] = true

		for j := i + 1; j < len(items); j++ {
			if clustered[j] {
				continue
			}
			if JaccardSimilarity(termSets[i], termSets[j]) >= similarityThreshold {
				clustered[j] = true
			}
		}
	}

	return result
}
