package main

import (
	"context"
	"flag"
	"log"
	"os"
	"path/filepath"

	"EventCast/internal/backtest"
	"EventCast/internal/di"
	domrepo "EventCast/internal/domain/repository"
	"EventCast/pkg/config"
	applogger "EventCast/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	anchored := flag.String("mode", "anchored", "replay mode: anchored or baseline")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	l, err := applogger.New(&applogger.Config{Level: "info", Format: "console", Output: "stdout"})
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}

	chClient, err := di.ProvideClickHouseClient(cfg)
	if err != nil {
		log.Fatalf("clickhouse init failed: %v", err)
	}
	defer chClient.Close()

	m := di.ProvideMetrics()
	events := di.ProvideEventStore(chClient, cfg)
	outcomes := di.ProvideOutcomeStore(chClient, cfg)
	index := di.ProvideVectorIndex(chClient, m, cfg)
	fc := di.ProvideForecaster(
		events,
		outcomes,
		di.ProvideAggregator(index, outcomes, cfg),
		di.ProvideBaseline(outcomes, cfg),
		di.ProvideCalibrator(cfg),
		di.ProvideRegimeClassifier(cfg),
		m,
		cfg,
	)
	fc.SetLogger(l)

	horizons := make([]domrepo.Horizon, 0, len(cfg.Backtest.Horizons))
	for _, h := range cfg.Backtest.Horizons {
		horizons = append(horizons, domrepo.NormalizeHorizon(h))
	}
	grid := backtest.Grid{
		Targets:  cfg.Backtest.Targets,
		Horizons: horizons,
		From:     cfg.Backtest.From.UTC(),
		To:       cfg.Backtest.To.UTC(),
		Step:     cfg.Backtest.Step,
		K:        cfg.Forecast.KDefault,
		Anchored: *anchored == "anchored",
	}

	h := backtest.NewHarness(fc, events, outcomes)
	h.SetLogger(l)

	report, err := h.Run(context.Background(), grid)
	if err != nil {
		log.Fatalf("backtest run failed: %v", err)
	}

	if err := os.MkdirAll(cfg.Backtest.OutputDir, 0o755); err != nil {
		log.Fatalf("output dir: %v", err)
	}
	if cfg.Backtest.Format == "json" || cfg.Backtest.Format == "both" {
		path := filepath.Join(cfg.Backtest.OutputDir, "backtest.json")
		if err := report.WriteJSON(path); err != nil {
			log.Fatalf("write json report: %v", err)
		}
		l.Info("report written", applogger.String("path", path))
	}
	if cfg.Backtest.Format == "csv" || cfg.Backtest.Format == "both" {
		path := filepath.Join(cfg.Backtest.OutputDir, "backtest.csv")
		if err := report.WriteCSV(path); err != nil {
			log.Fatalf("write csv report: %v", err)
		}
		l.Info("report written", applogger.String("path", path))
	}

	l.Info("backtest complete",
		applogger.Int("samples", report.Overall.N),
		applogger.Float64("accuracy", report.Overall.Accuracy),
		applogger.Float64("z_score", report.Overall.ZScore),
	)
}
