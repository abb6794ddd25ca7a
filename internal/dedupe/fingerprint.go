package dedupe

import (
	"crypto/md5"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/tejaschuahan/job-scraper-bot/internal/domain"
)

var punctRe = regexp.MustCompile(`[^\w\s]`)

// seniority qualifiers stripped from titles so "Senior Data Analyst" and
// "Data Analyst" collapse to the same fingerprint
var seniorityQualifiers = []string{"entry level", "junior", "senior"}

// Fingerprint derives the dedupe key for a listing: md5 over the
// normalized title, company and URL (query and fragment dropped).
func Fingerprint(l domain.Listing) string {
	title := NormalizeTitle(l.Title)
	company := normalize(l.Company)
	url := stripURL(l.URL)

	sum := md5.Sum([]byte(title + "||" + company + "||" + url))
	return hex.EncodeToString(sum[:])
}

// NormalizeTitle lower-cases, strips punctuation and seniority
// qualifiers, and collapses whitespace.
func NormalizeTitle(s string) string {
	s = normalize(s)
	for _, q := range seniorityQualifiers {
		s = strings.ReplaceAll(s, q, "")
	}
	return strings.TrimSpace(strings.Join(strings.Fields(s), " "))
}

func normalize(s string) string {
	s = punctRe.ReplaceAllString(strings.ToLower(s), "")
	return strings.TrimSpace(strings.Join(strings.Fields(s), " "))
}

func stripURL(raw string) string {
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		raw = raw[:i]
	}
	return raw
}
