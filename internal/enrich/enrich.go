// Package enrich adds optional model-generated extras to accepted
// listings: a short summary, a 1-10 quality score, and query expansion.
// Everything here is best-effort; a failure degrades to the plain
// listing, it never blocks delivery.
package enrich

import "context"

type Enricher interface {
	// Summarize returns a 2-3 sentence summary of the listing text.
	Summarize(ctx context.Context, title, company, description string) (string, error)
	// ScoreQuality rates the listing 1-10 on completeness and signal.
	ScoreQuality(ctx context.Context, title, company, description string) (int, error)
	// ExpandQueries suggests related search queries for the given ones.
	ExpandQueries(ctx context.Context, queries []string) ([]string, error)
}

// Noop disables enrichment.
type Noop struct{}

func (Noop) Summarize(context.Context, string, string, string) (string, error) {
	return "", nil
}

func (Noop) ScoreQuality(context.Context, string, string, string) (int, error) {
	return 0, nil
}

func (Noop) ExpandQueries(_ context.Context, queries []string) ([]string, error) {
	return queries, nil
}
