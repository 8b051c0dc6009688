// ABOUTME: Case-insensitive keyword matching shared by handler predicates.
// ABOUTME: Single words match on word boundaries; multi-word phrases match as substrings.

package plugins

import (
	"regexp"
	"strings"
	"sync"
)

var wordPatterns sync.Map // word -> *regexp.Regexp

func wordPattern(word string) *regexp.Regexp {
	if re, ok := wordPatterns.Load(word); ok {
		return re.(*regexp.Regexp)
	}
	re := regexp.MustCompile(`\b` + regexp.QuoteMeta(word) + `\b`)
	actual, _ := wordPatterns.LoadOrStore(word, re)
	return actual.(*regexp.Regexp)
}

// HasWord reports whether word appears in text as a whole word, so "lock"
// does not match inside "blockchain". Both arguments are case-folded.
func HasWord(text, word string) bool {
	word = strings.ToLower(strings.TrimSpace(word))
	if word == "" {
		return false
	}
	return wordPattern(word).MatchString(strings.ToLower(text))
}

// HasAnyWord reports whether any of words appears in text as a whole word.
func HasAnyWord(text string, words ...string) bool {
	for _, w := range words {
		if HasWord(text, w) {
			return true
		}
	}
	return false
}

// ContainsAny reports whether text contains any of the phrases, case-folded.
func ContainsAny(text string, phrases ...string) bool {
	lower := strings.ToLower(text)
	for _, p := range phrases {
		if p != "" && strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

// Vocabulary is a fixed keyword set. Terms containing whitespace are phrases
// and match by substring; all other terms match on word boundaries.
type Vocabulary struct {
	words   []string
	phrases []string
}

// NewVocabulary classifies terms into words and phrases.
func NewVocabulary(terms ...string) Vocabulary {
	var v Vocabulary
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		switch {
		case t == "":
		case strings.ContainsAny(t, " \t"):
			v.phrases = append(v.phrases, t)
		default:
			v.words = append(v.words, t)
		}
	}
	return v
}

// Matches reports whether message contains any term of the vocabulary.
// An empty or blank message never matches.
func (v Vocabulary) Matches(message string) bool {
	if strings.TrimSpace(message) == "" {
		return false
	}
	return ContainsAny(message, v.phrases...) || HasAnyWord(message, v.words...)
}
