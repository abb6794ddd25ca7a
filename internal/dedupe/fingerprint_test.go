package dedupe

import (
	"testing"

	"github.com/tejaschuahan/job-scraper-bot/internal/domain"
)

func TestFingerprintStable(t *testing.T) {
	l := domain.Listing{Title: "Data Analyst", Company: "Acme", URL: "https://acme.example/jobs/1"}
	if Fingerprint(l) != Fingerprint(l) {
		t.Errorf("same listing produced different fingerprints")
	}
}

func TestFingerprintIgnoresCaseAndPunctuation(t *testing.T) {
	a := domain.Listing{Title: "Data Analyst!", Company: "ACME, Inc.", URL: "https://acme.example/jobs/1"}
	b := domain.Listing{Title: "data analyst", Company: "acme inc", URL: "https://acme.example/jobs/1"}
	if Fingerprint(a) != Fingerprint(b) {
		t.Errorf("case and punctuation variants should collapse to one fingerprint")
	}
}

func TestFingerprintStripsSeniorityQualifiers(t *testing.T) {
	base := domain.Listing{Title: "Data Analyst", Company: "Acme", URL: "https://acme.example/jobs/1"}
	for _, title := range []string{"Senior Data Analyst", "Junior Data Analyst", "Entry Level Data Analyst"} {
		variant := base
		variant.Title = title
		if Fingerprint(variant) != Fingerprint(base) {
			t.Errorf("title %q should fingerprint the same as %q", title, base.Title)
		}
	}
}

func TestFingerprintStripsURLQueryAndFragment(t *testing.T) {
	a := domain.Listing{Title: "Data Analyst", Company: "Acme", URL: "https://acme.example/jobs/1?utm_source=email&ref=x"}
	b := domain.Listing{Title: "Data Analyst", Company: "Acme", URL: "https://acme.example/jobs/1#apply"}
	c := domain.Listing{Title: "Data Analyst", Company: "Acme", URL: "https://acme.example/jobs/1"}
	if Fingerprint(a) != Fingerprint(c) {
		t.Errorf("query params should not change the fingerprint")
	}
	if Fingerprint(b) != Fingerprint(c) {
		t.Errorf("fragment should not change the fingerprint")
	}
}

func TestFingerprintDistinguishesDifferentPostings(t *testing.T) {
	a := domain.Listing{Title: "Data Analyst", Company: "Acme", URL: "https://acme.example/jobs/1"}
	b := domain.Listing{Title: "Data Analyst", Company: "Globex", URL: "https://acme.example/jobs/1"}
	if Fingerprint(a) == Fingerprint(b) {
		t.Errorf("different companies must not collide")
	}
}

func TestNormalizeTitle(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Senior Software Engineer", "software engineer"},
		{"  Data   Analyst ", "data analyst"},
		{"Entry Level QA!!!", "qa"},
	}
	for _, c := range cases {
		if got := NormalizeTitle(c.in); got != c.want {
			t.Errorf("NormalizeTitle(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
