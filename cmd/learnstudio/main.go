package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ssfxx0923/Learning-Studio/internal/config"
	"github.com/ssfxx0923/Learning-Studio/internal/generation"
	"github.com/ssfxx0923/Learning-Studio/internal/httpapi"
	"github.com/ssfxx0923/Learning-Studio/internal/indexsync"
	"github.com/ssfxx0923/Learning-Studio/internal/learning"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load configuration", "err", err)
	}
	logger, err := cfg.NewLogger(os.Stderr)
	if err != nil {
		log.Fatal("failed to build logger", "err", err)
	}
	for _, warning := range cfg.Warnings {
		logger.Warn(warning)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("server failed", "err", err)
	}
}

type app struct {
	handler http.Handler
	group   *indexsync.Group
	journal indexsync.Journal
}

func (a *app) close() {
	a.group.Stop()
	_ = a.journal.Close()
}

func buildApp(cfg config.Config, logger *log.Logger) (*app, error) {
	catalog, err := learning.NewCatalog(learning.CatalogOptions{
		ArticlesDir:     cfg.ArticlesDir,
		ArticleAssetURL: cfg.ArticleAssetURL,
		PlansDir:        cfg.PlansDir,
		MentalHealthDir: cfg.MentalHealthDir,
		ResearchDir:     cfg.ResearchDir,
		NotesDir:        cfg.NotesDir,
		Logger:          logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build catalog: %w", err)
	}

	engine := generation.NewEngineClient(generation.EngineOptions{
		BaseURL:    cfg.EngineURL,
		Timeout:    cfg.EngineTimeout,
		MaxRetries: cfg.EngineMaxRetries,
	})
	generator := generation.NewArticleGenerator(catalog.Articles, engine, generation.GeneratorOptions{
		Poller: generation.Poller{Interval: cfg.PollInterval, MaxAttempts: cfg.PollMaxAttempts},
		Logger: logger.WithPrefix("generation"),
	})

	journal, err := indexsync.BuildJournalFromDSN(cfg.SyncJournalDSN)
	if err != nil {
		return nil, fmt.Errorf("build sync journal: %w", err)
	}
	if journal == nil {
		journal = indexsync.NewMemoryJournal(0)
	}
	targets, err := syncTargets(catalog, cfg.SyncCollections)
	if err != nil {
		return nil, err
	}
	group, err := indexsync.NewGroup(targets, indexsync.Options{
		Interval: cfg.SyncInterval,
		Watch:    cfg.SyncWatch,
		Logger:   logger.WithPrefix("indexsync"),
	})
	if err != nil {
		return nil, err
	}
	hub := httpapi.NewHub()
	group.Subscribe(hub.Publish)
	for _, sched := range group.Schedulers() {
		indexsync.Record(sched, journal, func(err error) {
			logger.Warn("failed to append sync journal", "err", err)
		})
	}

	server := httpapi.NewServer(httpapi.Dependencies{
		Catalog:   catalog,
		Generator: generator,
		Engine:    engine,
		Sync:      group,
		Journal:   journal,
		Hub:       hub,
		Logger:    logger.WithPrefix("http"),
	}, httpapi.ServerConfig{
		CORSOrigin:   cfg.CORSOrigin,
		MaxBodyBytes: cfg.MaxBodyBytes,
		AdminSecret:  cfg.AdminSecret,
	})
	return &app{handler: server, group: group, journal: journal}, nil
}

// syncTargets resolves the collections that get a background scheduler.
func syncTargets(catalog *learning.Catalog, names []string) ([]indexsync.Target, error) {
	if len(names) == 0 {
		return nil, nil
	}
	cols, err := catalog.Select(names)
	if err != nil {
		return nil, fmt.Errorf("index sync collections: %w", err)
	}
	targets := make([]indexsync.Target, 0, len(cols))
	for _, col := range cols {
		targets = append(targets, col)
	}
	return targets, nil
}

func run(ctx context.Context, cfg config.Config, logger *log.Logger) error {
	a, err := buildApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.group.Start(ctx); err != nil {
		return fmt.Errorf("start index sync: %w", err)
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("learning studio listening", "addr", cfg.Addr(), "engine", cfg.EngineURL, "sync", cfg.SyncCollections)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
