package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"time"

	_ "github.com/lib/pq"

	"vein-assessment/internal/agent"
	"vein-assessment/internal/config"
	"vein-assessment/internal/platform/logger"
	"vein-assessment/internal/platform/storage"
	"vein-assessment/internal/platform/telegram"
	"vein-assessment/internal/report"
	"vein-assessment/internal/triage"
)

// openRepository returns the Postgres repository when a database URL is
// configured and the SQLite one otherwise.
func openRepository(ctx context.Context, cfg *config.Config, log *logger.Logger) (triage.Repository, *sql.DB, error) {
	if cfg.Database.URL == "" {
		repo, db, err := triage.NewSQLiteRepository(cfg.Database.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		log.Info("Using SQLite record store", "path", cfg.Database.SQLitePath)
		return repo, db, nil
	}

	db, err := triage.ConnectPostgres(ctx, cfg.Database.URL, cfg.Database.ConnectAttempts, 2*time.Second)
	if err != nil {
		return nil, nil, err
	}
	log.Info("Connected to Database.")
	return triage.NewRepository(db), db, nil
}

func openSessions(ctx context.Context, cfg *config.Config, log *logger.Logger) (triage.SessionStore, func(), error) {
	if cfg.Sessions.RedisAddr == "" {
		return triage.NewMemoryStore(), func() {}, nil
	}
	rdb, err := triage.NewRedisClient(ctx, cfg.Sessions.RedisAddr)
	if err != nil {
		return nil, nil, err
	}
	log.Info("Using Redis session store", "addr", cfg.Sessions.RedisAddr)
	return triage.NewRedisStore(rdb, cfg.Sessions.TTL), func() { _ = rdb.Close() }, nil
}

func openPhotos(ctx context.Context, cfg *config.Config, log *logger.Logger) (storage.PhotoStore, func(), error) {
	var (
		photos storage.PhotoStore
		err    error
	)
	if cfg.Storage.GCSBucket != "" {
		photos, err = storage.NewGCSStore(ctx, log, cfg.Storage.GCSBucket)
	} else {
		photos, err = storage.NewLocalStore(cfg.Storage.Dir, cfg.Storage.BaseURL)
	}
	if err != nil {
		return nil, nil, err
	}
	return photos, closerFor(photos, log), nil
}

// closerFor closes stores that hold a client and is a no-op for the rest.
func closerFor(photos storage.PhotoStore, log *logger.Logger) func() {
	c, ok := photos.(io.Closer)
	if !ok {
		return func() {}
	}
	return func() {
		if err := c.Close(); err != nil {
			log.Warn("Failed to close photo store", "error", err.Error())
		}
	}
}

// newNotifier returns nil unless both the bot token and the clinic chat are set.
func newNotifier(cfg *config.Config, log *logger.Logger) triage.Notifier {
	if cfg.Notify.TelegramToken == "" || cfg.Notify.ClinicChatID == 0 {
		log.Warn("Telegram token or clinic chat ID not set, urgent reports are disabled")
		return nil
	}
	tg := telegram.NewClient(cfg.Notify.TelegramToken)
	return report.NewService(log, report.NewRenderer(cfg.Notify.FontPaths), tg, cfg.Notify.ClinicChatID)
}

type app struct {
	svc     triage.Service
	cleanup []func()
}

func (a *app) Close() {
	a.svc.Close()
	for i := len(a.cleanup) - 1; i >= 0; i-- {
		a.cleanup[i]()
	}
}

// buildApp wires the session service from config.
func buildApp(ctx context.Context, cfg *config.Config, log *logger.Logger) (*app, error) {
	a := &app{}
	fail := func(err error) (*app, error) {
		for i := len(a.cleanup) - 1; i >= 0; i-- {
			a.cleanup[i]()
		}
		return nil, err
	}

	if cfg.Database.URL != "" && cfg.Database.AutoMigrate {
		if err := runMigrations(cfg, true); err != nil {
			log.Error("Migration up failed", "error", err.Error())
		}
	}

	repo, db, err := openRepository(ctx, cfg, log)
	if err != nil {
		return fail(fmt.Errorf("open record store: %w", err))
	}
	a.cleanup = append(a.cleanup, func() { _ = db.Close() })

	sessions, closeSessions, err := openSessions(ctx, cfg, log)
	if err != nil {
		return fail(fmt.Errorf("open session store: %w", err))
	}
	a.cleanup = append(a.cleanup, closeSessions)

	opts, err := cfg.TriageOptions()
	if err != nil {
		return fail(err)
	}

	var (
		analyzer triage.Analyzer
		photos   storage.PhotoStore
	)
	if opts.PhotoStep {
		an, err := agent.NewAnalyzer(cfg.Analysis.Config, log)
		if err != nil {
			return fail(err)
		}
		analyzer = an
		var closePhotos func()
		if photos, closePhotos, err = openPhotos(ctx, cfg, log); err != nil {
			return fail(fmt.Errorf("open photo store: %w", err))
		}
		a.cleanup = append(a.cleanup, closePhotos)
	}

	a.svc = triage.NewService(log, opts, sessions, repo, analyzer, photos, newNotifier(cfg, log))
	return a, nil
}
