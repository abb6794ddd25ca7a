package dedupe

import (
	"strings"

	"github.com/tejaschuahan/job-scraper-bot/internal/domain"
)

// SimilarWindow is the default for how many recently accepted listings
// a candidate is compared against during a cycle. Callers that keep the
// window trim it themselves; IsSimilar scans whatever it is given.
const SimilarWindow = 100

// overlapThreshold: share of the smaller title's word set that must be
// common for two postings from the same company to count as one.
const overlapThreshold = 0.7

// Similar reports whether two listings are the same posting under a
// cosmetically different title: same company (case-insensitive) and
// normalized-title word overlap above the threshold.
func Similar(a, b domain.Listing) bool {
	if !strings.EqualFold(a.Company, b.Company) {
		return false
	}

	wordsA := wordSet(NormalizeTitle(a.Title))
	wordsB := wordSet(NormalizeTitle(b.Title))
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return false
	}

	common := 0
	for w := range wordsA {
		if _, ok := wordsB[w]; ok {
			common++
		}
	}

	smaller := len(wordsA)
	if len(wordsB) < smaller {
		smaller = len(wordsB)
	}
	return float64(common)/float64(smaller) > overlapThreshold
}

// IsSimilar checks a candidate against every entry of the accepted
// list.
func IsSimilar(candidate domain.Listing, accepted []domain.Listing) bool {
	for _, prev := range accepted {
		if Similar(candidate, prev) {
			return true
		}
	}
	return false
}

func wordSet(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, w := range strings.Fields(s) {
		out[w] = struct{}{}
	}
	return out
}
