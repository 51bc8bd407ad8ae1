package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Auphere/places/internal/adapters/directory"
	natsadapter "github.com/Auphere/places/internal/adapters/nats"
	"github.com/Auphere/places/internal/adapters/postgres"
	"github.com/Auphere/places/internal/core/domain"
	"github.com/Auphere/places/internal/core/ports"
	"github.com/Auphere/places/internal/core/usecases"
	"github.com/Auphere/places/internal/pkg/config"
	"github.com/Auphere/places/internal/pkg/logging"
	"github.com/Auphere/places/internal/pkg/ratelimit"
)

// One-shot ingestion runner: syncs the given regions sequentially and exits
// non-zero when any region finalized Failed.
func main() {
	var (
		regionsFlag  = flag.String("regions", "Zaragoza", "comma-separated region names")
		categoryFlag = flag.String("category", "", "restrict the sync to one category")
		cellSizeKM   = flag.Float64("cell-size-km", 0, "override the configured cell size")
		radiusM      = flag.Int("radius-m", 0, "override the configured search radius")
	)
	flag.Parse()

	cfg, err := config.Load("places-sync")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logging.Setup(logLevel, "json")

	var category domain.Category
	if *categoryFlag != "" {
		cat, ok := domain.ParseCategory(*categoryFlag)
		if !ok {
			log.Fatalf("unknown category %q", *categoryFlag)
		}
		category = cat
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	var events ports.EventPublisher
	nc, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable", "error", err)
	} else {
		defer nc.Close()
		events = nc
	}

	client := directory.NewClient(directory.Options{
		BaseURL: cfg.Directory.BaseURL,
		APIKey:  cfg.Directory.APIKey,
		Timeout: cfg.Directory.Timeout(),
		PageCap: cfg.Directory.PageCap,
	})
	gate := ratelimit.NewGate(cfg.Directory.MinCallInterval())

	syncSvc := usecases.NewSyncService(
		postgres.NewPlaceRepo(db), postgres.NewSyncRunRepo(db),
		client, gate, events,
		cfg.Regions.Registry(), usecases.SyncPolicy{
			CellSizeKM:       cfg.Sync.CellSizeKM,
			RadiusMeters:     cfg.Sync.RadiusMeters,
			OverlapFraction:  cfg.Sync.OverlapFraction,
			MaxRetries:       cfg.Directory.MaxRetries,
			BackoffBase:      cfg.Directory.BackoffBase(),
			RateLimitBudget:  cfg.Directory.RateLimitBudget,
			RateLimitBackoff: cfg.Directory.RateLimitBackoff(),
		})

	var regions []string
	for _, r := range strings.Split(*regionsFlag, ",") {
		if r = strings.TrimSpace(r); r != "" {
			regions = append(regions, r)
		}
	}

	summary, runs, err := syncSvc.RunMany(ctx, regions, usecases.RunOptions{
		Category:     category,
		CellSizeKM:   *cellSizeKM,
		RadiusMeters: *radiusM,
	})
	if err != nil {
		log.Fatalf("sync: %v", err)
	}

	for _, run := range runs {
		fmt.Printf("%-12s %-10s requested=%d created=%d skipped=%d failed=%d\n",
			run.Region, run.Status, run.Requested, run.Created, run.Skipped, run.Failed)
	}
	fmt.Printf("total: regions=%d requested=%d created=%d skipped=%d failed=%d\n",
		summary.Regions, summary.Requested, summary.Created, summary.Skipped, summary.Failed)

	if summary.RunsFailed > 0 {
		os.Exit(1)
	}
}
