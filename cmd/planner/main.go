// Command planner computes every canteen-to-dorm and gate-to-dorm drone route
// over the campus and writes the results.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"drone-route-planner/internal/analysis"
	"drone-route-planner/internal/batch"
	"drone-route-planner/internal/events"
	"drone-route-planner/internal/pipeline"
	"drone-route-planner/internal/pkg/config"
	"drone-route-planner/internal/pkg/logging"
	"drone-route-planner/internal/render"
	"drone-route-planner/internal/route"
	"drone-route-planner/internal/store"
)

func main() {
	configFile := flag.String("config", "", "path to a config file (default: config.yaml in . or ./configs)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("route planning failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	began := time.Now()
	slog.Info("drone route planner starting", "data_dir", cfg.Data.Dir)

	st, err := pipeline.Build(cfg, pipeline.Overrides{}, slog.Default())
	if err != nil {
		return err
	}
	counts := st.Dataset.Counts()
	slog.Info("campus data loaded",
		"gates", counts["gates"],
		"canteens", counts["canteens"],
		"dorms", counts["dorms"],
		"buildings", counts["buildings"],
		"sports", counts["sports"])

	driver := batch.New(st.Planner, batch.Options{
		Workers:       cfg.Batch.Workers,
		ProgressEvery: cfg.Batch.ProgressEvery,
		Logger:        slog.Default(),
	})
	set, err := driver.Plan(ctx, st.Dataset)
	if err != nil {
		return err
	}

	analysis.Analyze(set).Log(slog.Default())

	if path := cfg.Output.ResultsJSON; path != "" {
		if err := store.WriteResults(path, set); err != nil {
			return err
		}
		slog.Info("results written", "path", path, "routes", set.Total())
	}

	var runID int64
	if path := cfg.Output.SQLitePath; path != "" {
		runID, err = saveRun(ctx, path, set)
		if err != nil {
			return err
		}
		slog.Info("run recorded", "path", path, "run_id", runID)
	}

	if path := cfg.Output.ImagePath; path != "" {
		if err := render.WriteFile(path, st.Dataset, set, st.Bounds, render.Options{Width: cfg.Output.ImageWidth, Legend: true}); err != nil {
			// The image is a convenience; the results are already on disk.
			slog.Warn("route image not written", "path", path, "error", err)
		} else {
			slog.Info("route image written", "path", path)
		}
	}

	if cfg.NATS.URL != "" {
		publish(ctx, cfg, runID, set)
	}

	slog.Info("route planning complete", "routes", set.Total(), "took", time.Since(began).Round(time.Millisecond))
	return nil
}

func saveRun(ctx context.Context, path string, set *route.Set) (int64, error) {
	db, err := store.OpenSQLite(ctx, path)
	if err != nil {
		return 0, err
	}
	defer db.Close()
	return db.SaveRun(ctx, set)
}

func publish(ctx context.Context, cfg *config.Config, runID int64, set *route.Set) {
	pub, err := events.NewPublisher(cfg.NATS.URL, cfg.NATS.Subject)
	if err != nil {
		slog.Warn("nats unavailable, route events not published", "error", err)
		return
	}
	defer pub.Close()

	sent, err := pub.PublishSet(ctx, runID, set)
	if err != nil {
		slog.Warn("route events partially published", "sent", sent, "error", err)
		return
	}
	slog.Info("route events published", "subject", cfg.NATS.Subject, "count", sent)
}
