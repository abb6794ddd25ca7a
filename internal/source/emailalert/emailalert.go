// Package emailalert turns job-alert digest emails (LinkedIn, Indeed
// and friends send these even when the site blocks scraping) into
// listings. It reads unseen messages over IMAP, pulls job links out of
// the HTML body and marks the digest seen once parsed. A digest is
// parsed whole: every job link is emitted regardless of the query that
// triggered the poll, because marking the message seen is permanent and
// the downstream filter decides relevance anyway.
package emailalert

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"go.uber.org/zap"

	"github.com/tejaschuahan/job-scraper-bot/internal/domain"
	"github.com/tejaschuahan/job-scraper-bot/internal/source"
	"github.com/tejaschuahan/job-scraper-bot/internal/stats"
)

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	Folder   string
	MaxMail  int // digests per poll
}

type Collector struct {
	cfg   Config
	stats *stats.Tracker
	log   *zap.Logger

	// one mailbox, one session: concurrent per-query invocations from
	// the cycle fan-out must not race logins against each other
	mu sync.Mutex
}

func New(cfg Config, tracker *stats.Tracker, log *zap.Logger) *Collector {
	if cfg.Port == 0 {
		cfg.Port = 993
	}
	if cfg.Folder == "" {
		cfg.Folder = "INBOX"
	}
	if cfg.MaxMail <= 0 {
		cfg.MaxMail = 10
	}
	return &Collector{cfg: cfg, stats: tracker, log: log}
}

func (c *Collector) Name() string { return "emailalert" }

func (c *Collector) Collect(ctx context.Context, query string) ([]domain.Listing, error) {
	if c.cfg.Host == "" || c.cfg.Username == "" || c.cfg.Password == "" {
		return nil, errors.New("emailalert: missing imap host/username/password")
	}

	// the query is intentionally unused: digests are drained whole by
	// whichever invocation reaches the mailbox first, later ones in the
	// same cycle find nothing unseen
	_ = query

	c.mu.Lock()
	defer c.mu.Unlock()

	addr := fmt.Sprintf("%s:%d", c.cfg.Host, c.cfg.Port)
	cli, err := imapclient.DialTLS(addr, &imapclient.Options{
		TLSConfig: &tls.Config{MinVersion: tls.VersionTLS12, ServerName: c.cfg.Host},
	})
	if err != nil {
		c.stats.RecordError(c.Name())
		return nil, fmt.Errorf("imap dial: %w", err)
	}
	defer cli.Close()

	go func() {
		<-ctx.Done()
		_ = cli.Close()
	}()

	if err := cli.Login(c.cfg.Username, c.cfg.Password).Wait(); err != nil {
		c.stats.RecordError(c.Name())
		return nil, fmt.Errorf("imap login: %w", err)
	}
	defer func() { _ = cli.Logout().Wait() }()

	if _, err := cli.Select(c.cfg.Folder, &imap.SelectOptions{ReadOnly: false}).Wait(); err != nil {
		c.stats.RecordError(c.Name())
		return nil, fmt.Errorf("imap select %s: %w", c.cfg.Folder, err)
	}

	searchData, err := cli.UIDSearch(&imap.SearchCriteria{
		NotFlag: []imap.Flag{imap.FlagSeen},
		Since:   time.Now().AddDate(0, 0, -7),
	}, nil).Wait()
	if err != nil {
		c.stats.RecordError(c.Name())
		return nil, fmt.Errorf("imap search: %w", err)
	}

	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}
	// newest first
	for i, j := 0, len(uids)-1; i < j; i, j = i+1, j-1 {
		uids[i], uids[j] = uids[j], uids[i]
	}
	if len(uids) > c.cfg.MaxMail {
		uids = uids[:c.cfg.MaxMail]
	}

	bodyAll := &imap.FetchItemBodySection{Specifier: imap.PartSpecifierNone, Peek: true}
	fetchCmd := cli.Fetch(imap.UIDSetNum(uids...), &imap.FetchOptions{
		UID:         true,
		Envelope:    true,
		BodySection: []*imap.FetchItemBodySection{bodyAll},
	})

	now := time.Now().UTC()
	var out []domain.Listing
	var parsed []imap.UID

	for {
		msgData := fetchCmd.Next()
		if msgData == nil {
			break
		}
		buf, err := msgData.Collect()
		if err != nil {
			_ = fetchCmd.Close()
			c.stats.RecordError(c.Name())
			return out, fmt.Errorf("imap fetch collect: %w", err)
		}

		sender := ""
		if buf.Envelope != nil && len(buf.Envelope.From) > 0 {
			sender = buf.Envelope.From[0].Name
			if sender == "" {
				sender = buf.Envelope.From[0].Addr()
			}
		}

		body := buf.FindBodySection(bodyAll)
		if len(body) == 0 {
			continue
		}

		listings := extractListings(string(body), sender, now, c.Name())
		if len(out)+len(listings) > source.MaxPerCall {
			// digest stays unseen so the remainder surfaces next cycle
			out = append(out, listings[:source.MaxPerCall-len(out)]...)
			break
		}
		out = append(out, listings...)
		parsed = append(parsed, buf.UID)

		if len(out) >= source.MaxPerCall {
			break
		}
	}
	if err := fetchCmd.Close(); err != nil {
		c.stats.RecordError(c.Name())
		return out, fmt.Errorf("imap fetch close: %w", err)
	}

	if len(parsed) > 0 {
		store := cli.Store(imap.UIDSetNum(parsed...), &imap.StoreFlags{
			Op:     imap.StoreFlagsAdd,
			Silent: true,
			Flags:  []imap.Flag{imap.FlagSeen},
		}, nil)
		if err := store.Close(); err != nil {
			c.log.Warn("imap mark seen failed", zap.Error(err))
		}
	}

	c.stats.RecordScraped(c.Name(), len(out))
	c.log.Info("collected", zap.String("source", c.Name()), zap.Int("digests", len(parsed)), zap.Int("count", len(out)))
	return out, nil
}

// extractListings pulls every job link out of a digest body. The anchor
// text becomes the title and the digest sender the company fallback;
// anchors without usable text or pointing at housekeeping pages are
// skipped.
func extractListings(body, sender string, now time.Time, sourceName string) []domain.Listing {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil
	}

	seen := map[string]bool{}
	var out []domain.Listing

	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || !strings.HasPrefix(href, "http") || isJunkURL(href) {
			return
		}
		title := domain.CleanText(a.Text())
		if title == "" || len(title) < 4 {
			return
		}

		clean := strings.SplitN(strings.SplitN(href, "#", 2)[0], "?", 2)[0]
		if seen[clean] {
			return
		}
		seen[clean] = true

		out = append(out, domain.Listing{
			Title:     title,
			Company:   domain.CleanText(sender),
			URL:       clean,
			Source:    sourceName,
			ScrapedAt: now,
		})
	})
	return out
}

func isJunkURL(u string) bool {
	lu := strings.ToLower(u)
	junks := []string{
		"unsubscribe",
		"preferences",
		"manage-preferences",
		"email-preferences",
		"privacy",
		"terms",
		"view-in-browser",
		"tracking",
		"pixel",
		"beacon",
		"/alerts",
		"/settings",
		"/help",
		"/legal",
	}
	for _, j := range junks {
		if strings.Contains(lu, j) {
			return true
		}
	}
	return false
}
