package domain

import "strings"

// CleanText collapses whitespace (including the non-breaking spaces
// scraped HTML is full of) into single spaces.
func CleanText(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimSpace(s)
}
