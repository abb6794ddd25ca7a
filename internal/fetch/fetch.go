// Package fetch wraps a single network call with retry, exponential
// backoff, identity rotation and failure accounting. Every collector
// goes through the one shared Executor so the connection pool and the
// per-source health streaks stay global.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tejaschuahan/job-scraper-bot/internal/stats"
)

// AlertFunc raises an operator alert. Called at most once per failing
// fetch, when a source's failure streak crosses the threshold.
type AlertFunc func(ctx context.Context, msg string)

type Config struct {
	MaxRetries            int           // attempts per call
	RetryDelay            time.Duration // backoff base, doubled per attempt
	MinDelay              time.Duration // politeness delay lower bound
	MaxDelay              time.Duration // politeness delay upper bound
	Timeout               time.Duration // per-attempt deadline
	Proxies               []string      // optional egress pool, round-robin
	PoolSize              int           // total idle connections
	PerHost               int           // connections per host
	FailureAlertThreshold int           // consecutive failures before alerting
}

func (c *Config) applyDefaults() {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 5 * time.Second
	}
	if c.MinDelay <= 0 {
		c.MinDelay = 1 * time.Second
	}
	if c.MaxDelay < c.MinDelay {
		c.MaxDelay = c.MinDelay + 2*time.Second
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.PoolSize <= 0 {
		c.PoolSize = 10
	}
	if c.PerHost <= 0 {
		c.PerHost = 5
	}
	if c.FailureAlertThreshold <= 0 {
		c.FailureAlertThreshold = 5
	}
}

type Executor struct {
	cfg     Config
	hc      *http.Client
	limiter *HostLimiter
	health  *Health
	stats   *stats.Tracker
	log     *zap.Logger
	alert   AlertFunc

	// injectable for tests; sleepCtx in production
	sleep func(ctx context.Context, d time.Duration) error

	mu       sync.Mutex
	proxies  []*url.URL
	proxyIdx int
}

func NewExecutor(cfg Config, tracker *stats.Tracker, log *zap.Logger, alert AlertFunc) *Executor {
	cfg.applyDefaults()

	e := &Executor{
		cfg:     cfg,
		limiter: NewHostLimiter(1.0, 2),
		health:  NewHealth(),
		stats:   tracker,
		log:     log,
		alert:   alert,
		sleep:   sleepCtx,
	}

	for _, raw := range cfg.Proxies {
		u, err := url.Parse(raw)
		if err != nil {
			log.Warn("skipping unparseable proxy", zap.String("proxy", raw), zap.Error(err))
			continue
		}
		e.proxies = append(e.proxies, u)
	}

	transport := &http.Transport{
		MaxIdleConns:    cfg.PoolSize,
		MaxConnsPerHost: cfg.PerHost,
		Proxy:           e.proxyFor,
	}
	e.hc = &http.Client{Transport: transport}
	return e
}

func (e *Executor) Health() *Health { return e.health }

// proxyFor hands the transport the next proxy from the pool, or none.
func (e *Executor) proxyFor(_ *http.Request) (*url.URL, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.proxies) == 0 {
		return nil, nil
	}
	p := e.proxies[e.proxyIdx]
	e.proxyIdx = (e.proxyIdx + 1) % len(e.proxies)
	return p, nil
}

// Fetch retrieves target with retries and returns the response body.
// Exhausting all attempts bumps the source's failure streak, records an
// error statistic and returns a *Failure; it never panics past this
// boundary, so the caller can always fall back to zero records.
func (e *Executor) Fetch(ctx context.Context, target, source string, headers http.Header) (string, error) {
	var (
		lastKind = KindOther
		lastErr  error
	)

	for attempt := 0; attempt < e.cfg.MaxRetries; attempt++ {
		// politeness delay, randomized to avoid burst patterns
		if err := e.sleep(ctx, e.politenessDelay()); err != nil {
			return "", err
		}
		if err := e.limiter.WaitURL(ctx, target); err != nil {
			return "", err
		}

		body, kind, err := e.attempt(ctx, target, headers)
		if err == nil {
			e.health.RecordSuccess(source)
			return body, nil
		}
		lastKind, lastErr = kind, err

		e.log.Warn("fetch attempt failed",
			zap.String("source", source),
			zap.Int("attempt", attempt+1),
			zap.String("kind", kind.String()),
			zap.Error(err))

		// no point backing off after the final attempt
		if attempt+1 == e.cfg.MaxRetries {
			break
		}
		if err := e.sleep(ctx, e.cfg.RetryDelay*(1<<attempt)); err != nil {
			return "", err
		}
	}

	failures := e.health.RecordFailure(source)
	e.stats.RecordError(source)

	if failures >= e.cfg.FailureAlertThreshold && e.alert != nil {
		e.alert(ctx, fmt.Sprintf("WARNING: %d consecutive fetch failures on %s", failures, source))
	}

	return "", &Failure{Source: source, Kind: lastKind, Attempts: e.cfg.MaxRetries, Err: lastErr}
}

func (e *Executor) attempt(ctx context.Context, target string, headers http.Header) (string, Kind, error) {
	actx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(actx, http.MethodGet, target, nil)
	if err != nil {
		return "", KindOther, err
	}

	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("User-Agent", randomUserAgent())
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/json;q=0.9,*/*;q=0.8")
	}
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	res, err := e.hc.Do(req)
	if err != nil {
		return "", classifyErr(err), err
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusOK:
		b, err := io.ReadAll(res.Body)
		if err != nil {
			return "", KindOther, err
		}
		return string(b), KindOther, nil
	case res.StatusCode == http.StatusTooManyRequests:
		return "", KindRateLimited, fmt.Errorf("status %d", res.StatusCode)
	case res.StatusCode == http.StatusForbidden:
		return "", KindForbidden, fmt.Errorf("status %d", res.StatusCode)
	default:
		return "", KindOther, fmt.Errorf("status %d", res.StatusCode)
	}
}

func (e *Executor) politenessDelay() time.Duration {
	spread := e.cfg.MaxDelay - e.cfg.MinDelay
	if spread <= 0 {
		return e.cfg.MinDelay
	}
	return e.cfg.MinDelay + time.Duration(rand.Int63n(int64(spread)))
}

func classifyErr(err error) Kind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return KindTimeout
	}
	return KindOther
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
