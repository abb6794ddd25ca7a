// Package adzuna collects listings from the Adzuna search API, which
// aggregates many boards. Requires a free app id/key pair.
package adzuna

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/tejaschuahan/job-scraper-bot/internal/domain"
	"github.com/tejaschuahan/job-scraper-bot/internal/fetch"
	"github.com/tejaschuahan/job-scraper-bot/internal/source"
	"github.com/tejaschuahan/job-scraper-bot/internal/stats"
)

const defaultBaseURL = "https://api.adzuna.com/v1/api/jobs/us/search/1"

type Collector struct {
	exec    *fetch.Executor
	stats   *stats.Tracker
	log     *zap.Logger
	appID   string
	appKey  string
	baseURL string
}

func New(exec *fetch.Executor, tracker *stats.Tracker, log *zap.Logger, appID, appKey string) *Collector {
	return &Collector{
		exec:    exec,
		stats:   tracker,
		log:     log,
		appID:   appID,
		appKey:  appKey,
		baseURL: defaultBaseURL,
	}
}

func (c *Collector) Name() string { return "adzuna" }

type apiResponse struct {
	Results []apiResult `json:"results"`
}

type apiResult struct {
	Title   string `json:"title"`
	Company struct {
		DisplayName string `json:"display_name"`
	} `json:"company"`
	Location struct {
		DisplayName string `json:"display_name"`
	} `json:"location"`
	RedirectURL  string  `json:"redirect_url"`
	SalaryMin    float64 `json:"salary_min"`
	SalaryMax    float64 `json:"salary_max"`
	ContractType string  `json:"contract_type"`
	Description  string  `json:"description"`
}

func (c *Collector) Collect(ctx context.Context, query string) ([]domain.Listing, error) {
	params := url.Values{}
	params.Set("app_id", c.appID)
	params.Set("app_key", c.appKey)
	params.Set("what", query)
	params.Set("results_per_page", strconv.Itoa(source.MaxPerCall))
	params.Set("sort_by", "date")

	payload, err := c.exec.Fetch(ctx, c.baseURL+"?"+params.Encode(), c.Name(), nil)
	if err != nil {
		return nil, err
	}

	var resp apiResponse
	if err := json.Unmarshal([]byte(payload), &resp); err != nil {
		c.stats.RecordError(c.Name())
		return nil, fmt.Errorf("adzuna decode: %w", err)
	}

	now := time.Now().UTC()
	out := make([]domain.Listing, 0, len(resp.Results))
	for _, r := range resp.Results {
		if len(out) >= source.MaxPerCall {
			break
		}
		if r.Title == "" || r.Company.DisplayName == "" {
			continue
		}

		salary := ""
		if r.SalaryMin > 0 {
			salary = fmt.Sprintf("$%.0f-$%.0f", r.SalaryMin, r.SalaryMax)
		}
		desc := r.Description
		if len(desc) > 300 {
			desc = desc[:300]
		}
		out = append(out, domain.Listing{
			Title:       domain.CleanText(r.Title),
			Company:     domain.CleanText(r.Company.DisplayName),
			URL:         r.RedirectURL,
			Location:    domain.CleanText(r.Location.DisplayName),
			Salary:      salary,
			JobType:     r.ContractType,
			Description: desc,
			Source:      c.Name(),
			ScrapedAt:   now,
		})
	}

	c.stats.RecordScraped(c.Name(), len(out))
	c.log.Info("collected", zap.String("source", c.Name()), zap.String("query", query), zap.Int("count", len(out)))
	return out, nil
}
