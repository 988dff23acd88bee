package learning

import (
	"regexp"
	"strings"
)

var wordPattern = regexp.MustCompile(`\b[a-z]{3,}\b`)

var stopWords = toSet(
	"the", "a", "an", "and", "or", "but", "in", "on", "at", "to", "for", "of",
	"with", "by", "from", "as", "is", "was", "are", "were", "been", "be", "have",
	"has", "had", "do", "does", "did", "will", "would", "should", "could", "may",
	"might", "must", "can", "this", "that", "these", "those", "i", "you", "he",
	"she", "it", "we", "they", "what", "which", "who", "whom", "whose", "where",
	"when", "why", "how", "all", "each", "every", "both", "few", "more", "most",
	"other", "some", "such", "no", "nor", "not", "only", "own", "same", "so",
	"than", "too", "very", "just", "now",
)

// minKeywordLen is exclusive: only words longer than this are learned.
const minKeywordLen = 3

// ExtractKeywords returns every non-stop-word token longer than three
// characters, in order, repeats included.
func ExtractKeywords(message, subject string) []string {
	text := strings.ToLower(message + " " + subject)
	words := wordPattern.FindAllString(text, -1)

	keywords := make([]string, 0, len(words))
	for _, w := range words {
		if len(w) <= minKeywordLen {
			continue
		}
		if _, stop := stopWords[w]; stop {
			continue
		}
		keywords = append(keywords, w)
	}
	return keywords
}

func toSet(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
