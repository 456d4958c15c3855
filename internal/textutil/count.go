// Package textutil provides the pure text statistics and comparison
// utilities behind the free tools. The same word counting also feeds
// credit pricing, so the definition of a "word" here is the billing
// definition.
package textutil

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// wordsPerMinute is the reading speed assumed for reading-time estimates.
const wordsPerMinute = 200

// Stats summarizes a text for the word-counter tool.
type Stats struct {
	Words           int `json:"words"`
	Characters      int `json:"characters"`
	CharactersNoWS  int `json:"characters_no_whitespace"`
	Sentences       int `json:"sentences"`
	Paragraphs      int `json:"paragraphs"`
	ReadingTimeSecs int `json:"reading_time_seconds"`
}

// CountWords returns the number of whitespace-delimited words in s.
// This is the billing word count used by the pricing formulas.
func CountWords(s string) int {
	return len(strings.Fields(s))
}

// Analyze computes full statistics for the word-counter tool.
func Analyze(s string) Stats {
	words := CountWords(s)

	noWS := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			noWS++
		}
	}

	return Stats{
		Words:           words,
		Characters:      utf8.RuneCountInString(s),
		CharactersNoWS:  noWS,
		Sentences:       countSentences(s),
		Paragraphs:      countParagraphs(s),
		ReadingTimeSecs: words * 60 / wordsPerMinute,
	}
}

// countSentences counts terminal punctuation runs. Consecutive terminators
// ("..." or "?!") end a single sentence.
func countSentences(s string) int {
	count := 0
	inTerminator := false
	sawContent := false
	for _, r := range s {
		switch r {
		case '.', '!', '?':
			if sawContent && !inTerminator {
				count++
			}
			inTerminator = true
		default:
			if !unicode.IsSpace(r) {
				sawContent = true
			}
			inTerminator = false
		}
	}
	return count
}

// countParagraphs counts blank-line separated blocks containing any
// non-whitespace content.
func countParagraphs(s string) int {
	count := 0
	for _, block := range strings.Split(s, "\n\n") {
		if strings.TrimSpace(block) != "" {
			count++
		}
	}
	return count
}
