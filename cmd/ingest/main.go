package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/xela07ax/fraudprofile/internal/anomaly"
	"github.com/xela07ax/fraudprofile/internal/bootstrap"
	"github.com/xela07ax/fraudprofile/internal/engine"
	"github.com/xela07ax/fraudprofile/internal/infra"
	"github.com/xela07ax/fraudprofile/internal/ingest"
	"github.com/xela07ax/fraudprofile/internal/profile"
)

func main() {
	dataset := flag.String("dataset", "", "dataset directory with logins.csv, sessions.csv, transactions.csv, feature_usage.csv (overrides ingest.* paths)")
	fit := flag.Bool("fit", true, "fit the model bank on the replayed profiles and log the result")
	flag.Parse()

	cfg, err := infra.LoadConfig()
	if err != nil {
		_, _ = os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}
	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		_, _ = os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	paths := ingest.Paths{
		Logins:       cfg.Ingest.Logins,
		Sessions:     cfg.Ingest.Sessions,
		Transactions: cfg.Ingest.Transactions,
		FeatureUsage: cfg.Ingest.FeatureUsage,
	}
	if *dataset != "" {
		paths = ingest.DatasetPaths(*dataset)
	}

	if err := run(cfg, paths, *fit, logger); err != nil {
		logger.Fatal("ingest failed", zap.Error(err))
	}
}

func run(cfg *infra.Config, paths ingest.Paths, fit bool, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Журналы событий
	batch, err := ingest.LoadBatch(paths)
	if err != nil {
		return err
	}
	logger.Info("event logs loaded",
		zap.Int("logins", len(batch.Logins)),
		zap.Int("sessions", len(batch.Sessions)),
		zap.Int("transactions", len(batch.Transactions)),
		zap.Int("feature_usage", len(batch.FeatureUsage)),
	)

	// 2. Хранилище (тот же стек, что у сервиса)
	metrics := engine.NewMetrics(nil)
	stores, err := bootstrap.Open(ctx, cfg, metrics, logger)
	if err != nil {
		return err
	}
	defer stores.Close()

	bank := anomaly.NewBank(anomaly.Config{
		Seed:          cfg.Anomaly.Seed,
		Trees:         cfg.Anomaly.Trees,
		MaxSamples:    cfg.Anomaly.MaxSamples,
		Contamination: cfg.Anomaly.Contamination,
		Neighbors:     cfg.Anomaly.LOFNeighbors,
	})
	// Реплей только обновляет метрики: журнал вердиктов не нужен
	svc := engine.NewService(stores.Store, bank, nil, metrics, profile.NewEngine(), logger)

	// 3. Реплей по аккаунтам
	profiles, err := ingest.NewReplayer(svc, cfg.Ingest.Workers, logger).Replay(ctx, batch)
	if err != nil {
		return err
	}
	logger.Info("profiles built", zap.Int("accounts", len(profiles)))

	// 4. Пробное обучение: проверяем, что на этих снимках банк поднимается
	if fit {
		report, err := svc.Retrain(ctx)
		if err != nil {
			return err
		}
		models, _ := bank.Models()
		for _, m := range models {
			logger.Info("model fitted",
				zap.String("event_type", string(m.EventType)),
				zap.String("kind", m.Kind),
				zap.Int("samples", m.Samples),
				zap.Float64("offset", m.Offset),
			)
		}
		logger.Info("model bank state", zap.String("state", report.State.String()))
	}

	// 5. Кэш: сервисы поднимутся уже с тёплым Redis
	if err := stores.Warmup(ctx); err != nil {
		logger.Warn("profile cache warm-up failed", zap.Error(err))
	}
	return nil
}
