package domain

import "time"

// Listing is one job posting as normalized by a collector. Title, Company
// and Source are always set (a collector skips a card it cannot name);
// URL may be empty for sources that cannot produce one. A Listing is
// immutable once a collector has emitted it.
type Listing struct {
	Title       string
	Company     string
	URL         string
	Location    string
	Salary      string // free-form, e.g. "$90k-120k" or "₹12 LPA"
	JobType     string
	Description string // snippet, not the full posting
	Source      string
	ScrapedAt   time.Time
}
