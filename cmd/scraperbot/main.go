package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tejaschuahan/job-scraper-bot/internal/config"
	"github.com/tejaschuahan/job-scraper-bot/internal/control"
	"github.com/tejaschuahan/job-scraper-bot/internal/dedupe"
	"github.com/tejaschuahan/job-scraper-bot/internal/enrich"
	"github.com/tejaschuahan/job-scraper-bot/internal/events"
	"github.com/tejaschuahan/job-scraper-bot/internal/fetch"
	"github.com/tejaschuahan/job-scraper-bot/internal/notify"
	"github.com/tejaschuahan/job-scraper-bot/internal/pipeline"
	"github.com/tejaschuahan/job-scraper-bot/internal/secrets"
	"github.com/tejaschuahan/job-scraper-bot/internal/source"
	"github.com/tejaschuahan/job-scraper-bot/internal/source/adzuna"
	"github.com/tejaschuahan/job-scraper-bot/internal/source/emailalert"
	"github.com/tejaschuahan/job-scraper-bot/internal/source/indeed"
	"github.com/tejaschuahan/job-scraper-bot/internal/source/linkedin"
	"github.com/tejaschuahan/job-scraper-bot/internal/source/remotive"
	"github.com/tejaschuahan/job-scraper-bot/internal/stats"
)

func main() {
	cfgPath := flag.String("config", "", "path to config.yml (default: <data dir>/config.yml)")
	once := flag.Bool("once", false, "run a single cycle and exit")
	flag.Parse()

	// .env is optional; real deployments use actual env vars
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	if err := run(*cfgPath, *once, logger); err != nil {
		logger.Fatal("fatal", zap.Error(err))
	}
}

func run(cfgPath string, once bool, logger *zap.Logger) error {
	dataDir := os.Getenv("SCRAPERBOT_DATA_DIR")
	if dataDir == "" {
		dataDir = "data"
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return err
	}

	if cfgPath == "" {
		var err error
		cfgPath, err = config.EnsureUserConfig(dataDir, filepath.Join("config", "config.yml"))
		if err != nil {
			return fmt.Errorf("config bootstrap: %w", err)
		}
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("config load %s: %w", cfgPath, err)
	}
	cfg, validation := config.NormalizeAndValidate(cfg)
	for _, w := range validation.Warnings {
		logger.Warn("config warning", zap.String("warning", w))
	}
	if !validation.OK() {
		return fmt.Errorf("invalid config: %s", strings.Join(validation.Errors, "; "))
	}

	// one instance per data dir; a second start exits instead of
	// double-delivering
	lock := flock.New(filepath.Join(dataDir, "scraperbot.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("instance lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another instance already holds %s", lock.Path())
	}
	defer lock.Unlock()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := dedupe.Open(cfg.Database.Path, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()
	if err := store.Migrate(); err != nil {
		return fmt.Errorf("migrate store: %w", err)
	}
	if n, err := store.CleanupOld(cfg.Dedupe.RetentionDays); err != nil {
		logger.Warn("seen-set cleanup failed", zap.Error(err))
	} else if n > 0 {
		logger.Info("purged expired seen rows", zap.Int64("rows", n))
	}
	if _, err := store.LoadSeen(ctx, cfg.Dedupe.RetentionDays); err != nil {
		return fmt.Errorf("load seen set: %w", err)
	}

	if cfg.Telegram.BotToken == "" {
		if tok, err := secrets.GetTelegramToken(); err == nil {
			cfg.Telegram.BotToken = tok
		}
	}
	var notifier notify.Notifier = notify.Noop{}
	if cfg.Telegram.BotToken != "" && cfg.Telegram.ChatID != "" {
		notifier = notify.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.DisablePreview)
	} else {
		logger.Warn("telegram not configured; deliveries will be discarded")
	}

	tracker := stats.NewTracker()
	hub := events.NewHub()

	alert := func(ctx context.Context, msg string) {
		hub.Publish(events.MakeEvent("", events.TypeAlert, map[string]any{"message": msg}))
		if err := notifier.SendAlert(ctx, msg); err != nil {
			logger.Error("alert send failed", zap.Error(err))
		}
	}

	exec := fetch.NewExecutor(fetch.Config{
		MaxRetries:            cfg.Scraping.MaxRetries,
		RetryDelay:            time.Duration(cfg.Scraping.RetryDelaySeconds) * time.Second,
		MinDelay:              time.Duration(cfg.Scraping.MinDelaySeconds) * time.Second,
		MaxDelay:              time.Duration(cfg.Scraping.MaxDelaySeconds) * time.Second,
		Timeout:               time.Duration(cfg.Scraping.TimeoutSeconds) * time.Second,
		Proxies:               cfg.Scraping.Proxies,
		PoolSize:              cfg.Scraping.PoolSize,
		PerHost:               cfg.Scraping.PerHost,
		FailureAlertThreshold: cfg.Monitoring.FailureAlertThreshold,
	}, tracker, logger, alert)

	registry, err := buildRegistry(cfg, exec, tracker, logger)
	if err != nil {
		return err
	}
	logger.Info("sources registered", zap.Strings("sources", registry.Names()))

	var enricher enrich.Enricher = enrich.Noop{}
	if cfg.Enrichment.Enabled {
		enricher = enrich.NewClient(cfg.Enrichment.APIKey, cfg.Enrichment.Model)
	}

	queue := notify.NewQueue(notifier, cfg.Telegram.PerSecond, logger)

	pipe := pipeline.New(pipeline.Config{
		Queries:               cfg.Search.Queries,
		Interval:              time.Duration(cfg.Scraping.IntervalSeconds) * time.Second,
		HealthInterval:        time.Duration(cfg.Monitoring.HealthCheckMinutes) * time.Minute,
		StaleAfter:            time.Duration(cfg.Monitoring.StaleAfterMinutes) * time.Minute,
		SummaryInterval:       time.Duration(cfg.Monitoring.SummaryHours) * time.Hour,
		ResetAfterSummary:     cfg.Monitoring.ResetAfterSummary,
		SimilarWindow:         cfg.Dedupe.SimilarWindow,
		FailureAlertThreshold: cfg.Monitoring.FailureAlertThreshold,
		EnrichSummaries:       cfg.Enrichment.Enabled && cfg.Enrichment.Summaries,
		EnrichScores:          cfg.Enrichment.Enabled && cfg.Enrichment.Scores,
		ExpandQueries:         cfg.Enrichment.Enabled && cfg.Enrichment.ExpandQueries,
	}, registry, cfg.Filters, store, tracker, exec.Health(), queue, notifier, enricher, hub, logger)

	if once {
		pipe.RunOnce(ctx)
		logger.Info("single cycle complete")
		return nil
	}

	alert(ctx, fmt.Sprintf("Scraper started (sources: %s)", strings.Join(registry.Names(), ", ")))
	defer func() {
		// ctx is already cancelled during shutdown; give the notice
		// its own deadline
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		alert(stopCtx, "Scraper stopped")
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return pipe.Run(gctx)
	})
	g.Go(func() error {
		addr := fmt.Sprintf("127.0.0.1:%d", cfg.App.Port)
		mux := control.NewMux(control.Deps{
			Tracker: tracker,
			Health:  exec.Health(),
			Hub:     hub,
			RunNow:  pipe.RunNow,
			Log:     logger,
		})
		return control.Serve(gctx, addr, mux, logger)
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		logger.Info("shutdown complete")
		return nil
	}
	return err
}

// buildRegistry registers every source switched on in config.
func buildRegistry(cfg config.Config, exec *fetch.Executor, tracker *stats.Tracker, logger *zap.Logger) (*source.Registry, error) {
	registry := source.NewRegistry()

	reg := func(c source.Collector) error { return registry.Register(c) }

	if cfg.SiteEnabled("remotive") {
		if err := reg(remotive.New(exec, tracker, logger)); err != nil {
			return nil, err
		}
	}
	if cfg.SiteEnabled("adzuna") {
		if err := reg(adzuna.New(exec, tracker, logger, cfg.Adzuna.AppID, cfg.Adzuna.AppKey)); err != nil {
			return nil, err
		}
	}
	if cfg.SiteEnabled("indeed") {
		if err := reg(indeed.New(exec, tracker, logger, cfg.Search.DefaultLocation)); err != nil {
			return nil, err
		}
	}
	if cfg.SiteEnabled("linkedin") {
		if err := reg(linkedin.New(exec, tracker, logger, cfg.Search.DefaultLocation)); err != nil {
			return nil, err
		}
	}

	if cfg.Email.Enabled {
		account := secrets.IMAPKeyringAccount(cfg.Email.Username, cfg.Email.IMAPHost)
		password, err := secrets.GetIMAPPassword(account)
		if err != nil {
			return nil, fmt.Errorf("email alerts enabled: %w", err)
		}
		err = reg(emailalert.New(emailalert.Config{
			Host:     cfg.Email.IMAPHost,
			Port:     cfg.Email.IMAPPort,
			Username: cfg.Email.Username,
			Password: password,
			Folder:   cfg.Email.Mailbox,
			MaxMail:  cfg.Email.MaxMessages,
		}, tracker, logger))
		if err != nil {
			return nil, err
		}
	}

	return registry, nil
}
