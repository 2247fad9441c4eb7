package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/xela07ax/fraudprofile/internal/anomaly"
	"github.com/xela07ax/fraudprofile/internal/api"
	"github.com/xela07ax/fraudprofile/internal/audit"
	"github.com/xela07ax/fraudprofile/internal/bootstrap"
	"github.com/xela07ax/fraudprofile/internal/engine"
	"github.com/xela07ax/fraudprofile/internal/infra"
	"github.com/xela07ax/fraudprofile/internal/profile"
)

func main() {
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

	if err := run(cfg, logger); err != nil {
		logger.Fatal("profiled stopped with error", zap.Error(err))
	}
}

func run(cfg *infra.Config, logger *zap.Logger) error {
	// Контекст жизненного цикла: SIGINT/SIGTERM останавливает слушателей и сервер
	appCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Метрики
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := engine.NewMetrics(reg)

	// 2. Инфраструктура хранения
	stores, err := bootstrap.Open(appCtx, cfg, metrics, logger)
	if err != nil {
		return err
	}
	defer stores.Close()

	if err := stores.Warmup(appCtx); err != nil {
		logger.Warn("profile cache warm-up failed", zap.Error(err))
	}

	// 3. Журнал вердиктов (асинхронно, пачками)
	recorder := audit.NewRecorder(stores.Sink, audit.Options{
		BufferSize:    cfg.Engine.AuditBufferSize,
		BatchSize:     cfg.Engine.AuditBatchSize,
		FlushInterval: cfg.Engine.AuditFlushInterval,
		Fill:          metrics.VerdictBufferFill,
	}, logger)
	recorder.Start()
	defer recorder.Stop()

	// 4. Ядро: банк моделей + сервис
	bank := anomaly.NewBank(anomaly.Config{
		Seed:          cfg.Anomaly.Seed,
		Trees:         cfg.Anomaly.Trees,
		MaxSamples:    cfg.Anomaly.MaxSamples,
		Contamination: cfg.Anomaly.Contamination,
		Neighbors:     cfg.Anomaly.LOFNeighbors,
	})
	svc := engine.NewService(stores.Store, bank, recorder, metrics, profile.NewEngine(), logger)

	// Первичное обучение на сохранённых снимках. Пустое хранилище — не ошибка:
	// банк остаётся Uninitialized, события обрабатываются без скоринга.
	if _, err := svc.Retrain(appCtx); err != nil {
		logger.Error("initial model fit failed, serving without anomaly scoring", zap.Error(err))
	}

	// 5. Переобучение по команде из Redis (все инстансы)
	var broadcast api.RetrainBroadcaster
	if stores.Redis != nil {
		go engine.RunRetrainListener(appCtx, stores.Redis, svc, infra.RedisChanRetrain, logger)
		broadcast = func(ctx context.Context, requestID string) (int64, error) {
			return engine.PublishRetrain(ctx, stores.Redis, infra.RedisChanRetrain, requestID)
		}
	}

	// 6. HTTP
	handler := api.NewServer(svc, bank, api.Options{
		RateLimit: cfg.Server.RateLimit,
		RateBurst: cfg.Server.RateBurst,
		Gatherer:  reg,
		Broadcast: broadcast,
	}, logger)

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("profiled started", zap.String("addr", srv.Addr), zap.String("model_state", bank.State().String()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// 7. Graceful Shutdown
	select {
	case <-appCtx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}
	logger.Info("profiled stopping...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("profiled exited properly")
	return nil
}
