// ABOUTME: Small text helpers shared by the built-in handlers.

package builtins

import (
	"strconv"
	"strings"
	"unicode"
)

// titleCase upper-cases the first letter of every run of letters and
// lower-cases the rest, so "pepper potts" becomes "Pepper Potts".
func titleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		letter := unicode.IsLetter(r)
		switch {
		case letter && !prevLetter:
			b.WriteRune(unicode.ToUpper(r))
		case letter:
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(r)
		}
		prevLetter = letter
	}
	return b.String()
}

// numbered renders items as an indented "  1. item" list.
func numbered(items []string) string {
	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = "  " + strconv.Itoa(i+1) + ". " + item
	}
	return strings.Join(lines, "\n")
}
