// Package retrieval scores previously approved resolutions against a new
// ticket. The heuristic is deliberately lexical (keyword overlap, no
// embeddings): deterministic, dependency-free, and explainable to the
// reviewer reading the match.
package retrieval

import (
	"sort"
	"strings"

	"github.com/spec-kit/triage-service/internal/domain"
)

// Match pairs a casebook entry with its overlap score.
type Match struct {
	Entry      domain.CasebookEntry `json:"entry"`
	MatchScore int                  `json:"match_score"`
}

// minTokenLength mirrors the keyword derivation used at promotion time:
// tokens of length <= 3 carry no signal.
const minTokenLength = 4

// FindSimilar scores every corpus entry against the ticket and returns the
// top limit matches, highest score first, most recent entry winning ties.
// Entries with zero overlap are never returned.
func FindSimilar(ticket domain.Ticket, corpus []domain.CasebookEntry, limit int) []Match {
	if limit <= 0 {
		return nil
	}
	tokens := Tokenize(ticket.Subject + " " + ticket.BodyText)
	if len(tokens) == 0 {
		return nil
	}

	matches := make([]Match, 0, len(corpus))
	for _, entry := range corpus {
		score := 0
		for _, keyword := range entry.Keywords {
			if tokens[strings.ToLower(keyword)] {
				score++
			}
		}
		if score > 0 {
			matches = append(matches, Match{Entry: entry, MatchScore: score})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].MatchScore != matches[j].MatchScore {
			return matches[i].MatchScore > matches[j].MatchScore
		}
		return matches[i].Entry.CreatedAt.After(matches[j].Entry.CreatedAt)
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

// Tokenize lowercases the text and returns the set of words longer than
// three characters, stripped of surrounding punctuation.
func Tokenize(text string) map[string]bool {
	tokens := make(map[string]bool)
	for _, field := range strings.Fields(strings.ToLower(text)) {
		word := strings.Trim(field, ".,!?;:()[]{}\"'")
		if len(word) >= minTokenLength {
			tokens[word] = true
		}
	}
	return tokens
}

// Keywords derives casebook keywords from a ticket subject: whitespace
// split, tokens of length <= 3 discarded.
func Keywords(subject string) []string {
	var keywords []string
	seen := make(map[string]bool)
	for _, field := range strings.Fields(subject) {
		word := strings.ToLower(strings.Trim(field, ".,!?;:()[]{}\"'"))
		if len(word) <= 3 || seen[word] {
			continue
		}
		seen[word] = true
		keywords = append(keywords, word)
	}
	return keywords
}
