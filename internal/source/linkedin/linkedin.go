// Package linkedin scrapes the public LinkedIn job search page (the
// one that works without authentication). Heavily defended upstream;
// the fetch executor's rotation and backoff do the heavy lifting.
package linkedin

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

const defaultBaseURL = "https://www.linkedin.com"

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

func (c *Collector) Name() string { return "linkedin" }

func (c *Collector) Collect(ctx context.Context, query string) ([]domain.Listing, error) {
	params := url.Values{}
	params.Set("keywords", query)
	if c.location != "" {
		params.Set("location", c.location)
	}
	params.Set("f_TPR", "r86400") // last 24 hours

	html, err := c.exec.Fetch(ctx, c.baseURL+"/jobs/search/?"+params.Encode(), c.Name(), nil)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		c.stats.RecordError(c.Name())
		return nil, fmt.Errorf("linkedin parse: %w", err)
	}

	cards := doc.Find("div.base-card")
	if cards.Length() == 0 {
		cards = doc.Find("div.job-search-card")
	}

	now := time.Now().UTC()
	var out []domain.Listing

	cards.EachWithBreak(func(_ int, card *goquery.Selection) bool {
		title := domain.CleanText(card.Find("h3.base-search-card__title").First().Text())
		if title == "" {
			title = domain.CleanText(card.Find("h3.job-search-card__title").First().Text())
		}
		company := domain.CleanText(card.Find("h4.base-search-card__subtitle").First().Text())
		if company == "" {
			company = domain.CleanText(card.Find("h4.job-search-card__company-name").First().Text())
		}

		link := card.Find("a.base-card__full-link").First()
		if link.Length() == 0 {
			link = card.Find("a.job-search-card__link").First()
		}
		href, _ := link.Attr("href")

		if title == "" || company == "" || href == "" {
			return true
		}

		out = append(out, domain.Listing{
			Title:     title,
			Company:   company,
			URL:       strings.SplitN(href, "?", 2)[0], // drop tracking params
			Location:  domain.CleanText(card.Find("span.job-search-card__location").First().Text()),
			Source:    c.Name(),
			ScrapedAt: now,
		})
		return len(out) < source.MaxPerCall
	})

	c.stats.RecordScraped(c.Name(), len(out))
	c.log.Info("collected", zap.String("source", c.Name()), zap.String("query", query), zap.Int("count", len(out)))
	return out, nil
}
