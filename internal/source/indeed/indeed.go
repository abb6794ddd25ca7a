// Package indeed scrapes the Indeed search results page. Selectors
// rotate occasionally, so each field tries a couple of known patterns
// and a card missing a required field is skipped, not an error.
package indeed

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/tejaschuahan/job-scraper-bot/internal/domain"
	"github.com/tejaschuahan/job-scraper-bot/internal/fetch"
	"github.com/tejaschuahan/job-scraper-bot/internal/source"
	"github.com/tejaschuahan/job-scraper-bot/internal/stats"
)

const defaultBaseURL = "https://www.indeed.com"

type Collector struct {
	exec     *fetch.Executor
	stats    *stats.Tracker
	log      *zap.Logger
	baseURL  string
	location string
}

func New(exec *fetch.Executor, tracker *stats.Tracker, log *zap.Logger, location string) *Collector {
	return &Collector{
		exec:     exec,
		stats:    tracker,
		log:      log,
		baseURL:  defaultBaseURL,
		location: location,
	}
}

func (c *Collector) Name() string { return "indeed" }

func (c *Collector) Collect(ctx context.Context, query string) ([]domain.Listing, error) {
	params := url.Values{}
	params.Set("q", query)
	if c.location != "" {
		params.Set("l", c.location)
	}
	params.Set("fromage", "1")
	params.Set("sort", "date")

	html, err := c.exec.Fetch(ctx, c.baseURL+"/jobs?"+params.Encode(), c.Name(), nil)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		c.stats.RecordError(c.Name())
		return nil, fmt.Errorf("indeed parse: %w", err)
	}

	cards := doc.Find("div.job_seen_beacon")
	if cards.Length() == 0 {
		cards = doc.Find("div.slider_container")
	}
	if cards.Length() == 0 {
		cards = doc.Find("td.resultContent")
	}

	now := time.Now().UTC()
	var out []domain.Listing

	cards.EachWithBreak(func(_ int, card *goquery.Selection) bool {
		title := domain.CleanText(card.Find("h2.jobTitle").First().Text())
		if title == "" {
			title = domain.CleanText(card.Find("a.jcs-JobTitle").First().Text())
		}
		company := domain.CleanText(card.Find("span.companyName").First().Text())

		link := card.Find("a.jcs-JobTitle").First()
		if link.Length() == 0 {
			link = card.Find("h2.jobTitle a").First()
		}
		href, _ := link.Attr("href")

		// no title, company or link: not a usable card
		if title == "" || company == "" || href == "" {
			return true
		}
		if !strings.HasPrefix(href, "http") {
			href = c.baseURL + href
		}

		out = append(out, domain.Listing{
			Title:     title,
			Company:   company,
			URL:       strings.SplitN(href, "?", 2)[0],
			Location:  domain.CleanText(card.Find("div.companyLocation").First().Text()),
			Salary:    domain.CleanText(card.Find("div.salary-snippet").First().Text()),
			Source:    c.Name(),
			ScrapedAt: now,
		})
		return len(out) < source.MaxPerCall
	})

	c.stats.RecordScraped(c.Name(), len(out))
	c.log.Info("collected", zap.String("source", c.Name()), zap.String("query", query), zap.Int("count", len(out)))
	return out, nil
}
