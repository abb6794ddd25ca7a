// Package remotive collects remote listings from the Remotive public
// API. No key needed; the API returns the full board, so the query
// match happens client-side.
package remotive

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tejaschuahan/job-scraper-bot/internal/domain"
	"github.com/tejaschuahan/job-scraper-bot/internal/fetch"
	"github.com/tejaschuahan/job-scraper-bot/internal/source"
	"github.com/tejaschuahan/job-scraper-bot/internal/stats"
)

const apiURL = "https://remotive.com/api/remote-jobs"

type Collector struct {
	exec  *fetch.Executor
	stats *stats.Tracker
	log   *zap.Logger
	url   string
}

func New(exec *fetch.Executor, tracker *stats.Tracker, log *zap.Logger) *Collector {
	return &Collector{exec: exec, stats: tracker, log: log, url: apiURL}
}

func (c *Collector) Name() string { return "remotive" }

type apiResponse struct {
	Jobs []apiJob `json:"jobs"`
}

type apiJob struct {
	Title       string `json:"title"`
	CompanyName string `json:"company_name"`
	URL         string `json:"url"`
	Category    string `json:"category"`
	JobType     string `json:"job_type"`
	Salary      string `json:"salary"`
	Description string `json:"description"`
}

func (c *Collector) Collect(ctx context.Context, query string) ([]domain.Listing, error) {
	payload, err := c.exec.Fetch(ctx, c.url, c.Name(), nil)
	if err != nil {
		return nil, err
	}

	var resp apiResponse
	if err := json.Unmarshal([]byte(payload), &resp); err != nil {
		c.stats.RecordError(c.Name())
		return nil, fmt.Errorf("remotive decode: %w", err)
	}

	q := strings.ToLower(query)
	now := time.Now().UTC()

	out := make([]domain.Listing, 0, source.MaxPerCall)
	for _, j := range resp.Jobs {
		if len(out) >= source.MaxPerCall {
			break
		}
		if strings.TrimSpace(j.Title) == "" || strings.TrimSpace(j.CompanyName) == "" {
			continue
		}
		blob := strings.ToLower(j.Title + " " + j.Description + " " + j.Category)
		if !strings.Contains(blob, q) {
			continue
		}

		desc := j.Description
		if len(desc) > 300 {
			desc = desc[:300]
		}
		out = append(out, domain.Listing{
			Title:       domain.CleanText(j.Title),
			Company:     domain.CleanText(j.CompanyName),
			URL:         j.URL,
			Location:    "Remote",
			Salary:      j.Salary,
			JobType:     j.JobType,
			Description: desc,
			Source:      c.Name(),
			ScrapedAt:   now,
		})
	}

	c.stats.RecordScraped(c.Name(), len(out))
	c.log.Info("collected", zap.String("source", c.Name()), zap.String("query", query), zap.Int("count", len(out)))
	return out, nil
}
