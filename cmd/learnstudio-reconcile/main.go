package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ssfxx0923/Learning-Studio/internal/config"
	"github.com/ssfxx0923/Learning-Studio/internal/entitystore"
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

	collections := flag.String("collections", envOrDefault("RECONCILE_COLLECTIONS", "all"), "comma separated collections to reconcile")
	interval := flag.Duration("interval", durationEnv(logger, "RECONCILE_INTERVAL", time.Minute), "reconcile interval")
	intervalJitter := flag.Float64("interval-jitter", floatEnv(logger, "RECONCILE_INTERVAL_JITTER", 0.2), "reconcile interval jitter ratio (0.0-1.0)")
	timeout := flag.Duration("timeout", durationEnv(logger, "RECONCILE_TIMEOUT", 30*time.Second), "per-pass timeout")
	journalDSN := flag.String("journal", cfg.SyncJournalDSN, "sync journal dsn for recording corrections")
	jsonOut := flag.Bool("json", false, "print reports as JSON lines")
	once := flag.Bool("once", false, "run one reconcile pass and exit")
	flag.Parse()

	if *interval <= 0 {
		*interval = time.Minute
	}
	if *timeout <= 0 {
		*timeout = 30 * time.Second
	}
	*intervalJitter = clampJitterRatio(*intervalJitter)

	r, err := newReconciler(cfg, strings.Split(*collections, ","), *journalDSN, logger)
	if err != nil {
		logger.Fatal("failed to initialize reconciler", "err", err)
	}
	defer r.close()

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	run := func() {
		ctx, cancel := context.WithTimeout(rootCtx, *timeout)
		defer cancel()
		reports, err := r.reconcileOnce(ctx)
		for _, report := range reports {
			printReport(os.Stdout, report, *jsonOut)
		}
		if err != nil {
			logger.Error("reconcile pass failed", "err", err)
			return
		}
		logger.Debug("reconcile pass completed", "collections", len(reports))
	}

	run()
	if *once {
		return
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	timer := time.NewTimer(jitteredIntervalWithSample(*interval, *intervalJitter, rng.Float64()))
	defer timer.Stop()
	for {
		select {
		case <-rootCtx.Done():
			logger.Info("reconcile stopping", "reason", rootCtx.Err())
			return
		case <-timer.C:
			run()
			timer.Reset(jitteredIntervalWithSample(*interval, *intervalJitter, rng.Float64()))
		}
	}
}

// reconciler drives index repair through unstarted schedulers so that
// corrections land in the same journal the server writes.
type reconciler struct {
	group   *indexsync.Group
	journal indexsync.Journal
}

func newReconciler(cfg config.Config, names []string, journalDSN string, logger *log.Logger) (*reconciler, error) {
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
		return nil, err
	}
	cols, err := catalog.Select(names)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, errors.New("no collections selected")
	}
	targets := make([]indexsync.Target, 0, len(cols))
	for _, col := range cols {
		targets = append(targets, col)
	}
	group, err := indexsync.NewGroup(targets, indexsync.Options{Logger: logger})
	if err != nil {
		return nil, err
	}
	journal, err := indexsync.BuildJournalFromDSN(journalDSN)
	if err != nil {
		return nil, err
	}
	for _, sched := range group.Schedulers() {
		indexsync.Record(sched, journal, func(err error) {
			logger.Warn("failed to append sync journal", "err", err)
		})
	}
	return &reconciler{group: group, journal: journal}, nil
}

// reconcileOnce runs every selected collection even when an earlier one
// fails and returns the reports that succeeded.
func (r *reconciler) reconcileOnce(ctx context.Context) ([]entitystore.Report, error) {
	var (
		reports []entitystore.Report
		errs    []error
	)
	for _, sched := range r.group.Schedulers() {
		report, err := sched.SyncNow(ctx, "cli")
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", sched.Name(), err))
			continue
		}
		report.Collection = sched.Name()
		reports = append(reports, report)
	}
	return reports, errors.Join(errs...)
}

func (r *reconciler) close() {
	if r.journal != nil {
		_ = r.journal.Close()
	}
}

func printReport(w io.Writer, report entitystore.Report, asJSON bool) {
	if asJSON {
		_ = json.NewEncoder(w).Encode(report)
		return
	}
	if !report.Changed() {
		fmt.Fprintf(w, "%-14s ok (%d indexed)\n", report.Collection, report.Total)
		return
	}
	fmt.Fprintf(w, "%-14s repaired: +%d -%d (%d indexed)\n", report.Collection, len(report.Added), len(report.Removed), report.Total)
	for _, id := range report.Added {
		fmt.Fprintf(w, "  + %s\n", id)
	}
	for _, id := range report.Removed {
		fmt.Fprintf(w, "  - %s\n", id)
	}
}

func envOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func durationEnv(logger *log.Logger, name string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		logger.Warn("invalid duration, using fallback", "name", name, "value", raw, "fallback", fallback)
		return fallback
	}
	return value
}

func floatEnv(logger *log.Logger, name string, fallback float64) float64 {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		logger.Warn("invalid float, using fallback", "name", name, "value", raw, "fallback", fallback)
		return fallback
	}
	return value
}

func clampJitterRatio(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	return value
}

func jitteredIntervalWithSample(base time.Duration, jitterRatio, sample float64) time.Duration {
	if base <= 0 {
		return 0
	}
	jitterRatio = clampJitterRatio(jitterRatio)
	if jitterRatio == 0 {
		return base
	}
	if sample < 0 {
		sample = 0
	} else if sample > 1 {
		sample = 1
	}
	factor := 1 + ((sample*2)-1)*jitterRatio
	if factor < 0 {
		factor = 0
	}
	delay := time.Duration(float64(base) * factor)
	if delay < time.Millisecond {
		return time.Millisecond
	}
	return delay
}
