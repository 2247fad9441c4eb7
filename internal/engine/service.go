// Package engine — сервис обработки событий: сериализация по аккаунту,
// скоринг до обновления, применение метрик, сохранение и журнал вердиктов.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xela07ax/fraudprofile/internal/anomaly"
	"github.com/xela07ax/fraudprofile/internal/audit"
	"github.com/xela07ax/fraudprofile/internal/domain"
	"github.com/xela07ax/fraudprofile/internal/profile"
)

// ProfileStore — долговременное хранилище снимков. Get возвращает domain.ErrNotFound
// для аккаунта без сохранённого снимка.
type ProfileStore interface {
	Get(ctx context.Context, userID string) (*domain.Profile, error)
	Save(ctx context.Context, p *domain.Profile) error
	List(ctx context.Context) ([]*domain.Profile, error)
}

// Detector — банк моделей выбросов.
type Detector interface {
	Score(p *domain.Profile, ev domain.Event) (domain.AnomalyResult, error)
	Fit(ctx context.Context, snapshots []*domain.Profile) error
	State() anomaly.State
}

// VerdictLog — приёмник журнала вердиктов (audit.Recorder).
type VerdictLog interface {
	Log(v audit.Verdict)
}

// Outcome — результат обработки одного события.
type Outcome struct {
	Profile *domain.Profile
	// Anomaly — вердикт по профилю до обновления; nil, если событие не оценивалось.
	Anomaly *domain.AnomalyResult
	// Skipped объясняет отсутствие вердикта (сессии не оцениваются, банк не готов).
	Skipped error
}

// ErrNotScored — категория, для которой скоринг не выполняется.
var ErrNotScored = errors.New("event type is not scored")

// RetrainReport — итог переобучения банка.
type RetrainReport struct {
	State     anomaly.State `json:"state"`
	Snapshots int           `json:"snapshots"`
	Duration  time.Duration `json:"duration"`
}

type Service struct {
	store    ProfileStore
	detector Detector
	verdicts VerdictLog
	metrics  *Metrics
	engine   *profile.Engine
	locks    *accountLocks
	logger   *zap.Logger

	// Профили, чьё сохранение упало: мутация держится здесь до первого успешного Save.
	// Остальные аккаунты всегда читаются через цепочку хранилища.
	mu       sync.RWMutex
	profiles map[string]*domain.Profile
}

func NewService(store ProfileStore, detector Detector, verdicts VerdictLog, metrics *Metrics, engine *profile.Engine, logger *zap.Logger) *Service {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	if engine == nil {
		engine = profile.NewEngine()
	}
	return &Service{
		store:    store,
		detector: detector,
		verdicts: verdicts,
		metrics:  metrics,
		engine:   engine,
		locks:    newAccountLocks(),
		logger:   logger.Named("engine"),
		profiles: make(map[string]*domain.Profile),
	}
}

// Process — полный цикл для одного события:
// валидация -> блокировка аккаунта -> скоринг по профилю до обновления ->
// обновление метрик -> сохранение.
// При ошибке сохранения возвращается Outcome с обновлённым профилем и PersistenceError.
func (s *Service) Process(ctx context.Context, ev domain.Event) (Outcome, error) {
	return s.process(ctx, ev, true)
}

// Apply — только обновление метрик, без скоринга (пакетный реплей истории).
func (s *Service) Apply(ctx context.Context, ev domain.Event) (*domain.Profile, error) {
	out, err := s.process(ctx, ev, false)
	return out.Profile, err
}

func (s *Service) process(ctx context.Context, ev domain.Event, score bool) (Outcome, error) {
	start := time.Now()

	// 1. Валидация на границе: обязательные поля и разбор метки времени
	if ev == nil {
		return Outcome{}, &domain.ValidationError{Field: "event", Reason: "is required"}
	}
	eventType := string(ev.Type())
	defer func() {
		s.metrics.ProcessDuration.WithLabelValues(eventType).Observe(time.Since(start).Seconds())
	}()
	if err := ev.Validate(); err != nil {
		s.metrics.EventsTotal.WithLabelValues(eventType, "rejected").Inc()
		return Outcome{}, err
	}
	if _, err := profile.ParseTimestamp(ev.OccurredAt()); err != nil {
		s.metrics.EventsTotal.WithLabelValues(eventType, "rejected").Inc()
		return Outcome{}, err
	}

	// 2. Сериализация по аккаунту
	userID := ev.Account()
	unlock, err := s.locks.Lock(ctx, userID)
	if err != nil {
		return Outcome{}, fmt.Errorf("lock %s: %w", userID, err)
	}
	defer unlock()

	p, err := s.loadLocked(ctx, userID)
	if err != nil {
		return Outcome{}, err
	}

	// 3. Скоринг по состоянию до обновления
	var out Outcome
	if score {
		out.Anomaly, out.Skipped = s.score(ctx, p, ev)
	}
	suspicious := out.Anomaly != nil && out.Anomaly.IsAnomaly

	// 4. Обновление. Ошибка здесь означает, что профиль не тронут
	if err := s.engine.Apply(p, ev, suspicious); err != nil {
		s.metrics.EventsTotal.WithLabelValues(eventType, "rejected").Inc()
		return Outcome{}, err
	}

	// 5. Сохранение. Мутация в памяти не откатывается
	out.Profile = p.Clone()
	if err := s.store.Save(ctx, p); err != nil {
		s.remember(p)
		s.metrics.EventsTotal.WithLabelValues(eventType, "persist_error").Inc()
		s.metrics.StoreErrors.WithLabelValues("save").Inc()
		s.logger.Error("profile save failed", zap.String("user_id", userID), zap.String("event_type", eventType), zap.Error(err))
		return out, asPersistence("save", userID, err)
	}
	s.forget(userID)

	s.metrics.EventsTotal.WithLabelValues(eventType, "ok").Inc()
	return out, nil
}

func (s *Service) score(ctx context.Context, p *domain.Profile, ev domain.Event) (*domain.AnomalyResult, error) {
	t := ev.Type()
	if t == domain.EventSession {
		return nil, ErrNotScored
	}

	res, err := s.detector.Score(p, ev)
	if err != nil {
		s.metrics.VerdictsTotal.WithLabelValues(string(t), "unavailable").Inc()
		s.logger.Warn("anomaly scoring unavailable", zap.String("user_id", p.UserID), zap.String("event_type", string(t)), zap.Error(err))
		return nil, err
	}

	verdict := "normal"
	if res.IsAnomaly {
		verdict = "anomaly"
		s.logger.Info("anomaly detected",
			zap.String("user_id", p.UserID),
			zap.String("event_type", string(t)),
			zap.Float64("confidence", res.Confidence),
			zap.Strings("risk_factors", res.Explanation.RiskFactors),
		)
	}
	s.metrics.VerdictsTotal.WithLabelValues(string(t), verdict).Inc()

	if s.verdicts != nil {
		s.verdicts.Log(audit.Verdict{
			TraceID:     TraceIDFromContext(ctx),
			UserID:      p.UserID,
			EventType:   t,
			IsAnomaly:   res.IsAnomaly,
			Confidence:  res.Confidence,
			Explanation: res.Explanation,
		})
	}
	return &res, nil
}

// Profile — снимок аккаунта. Для неизвестного аккаунта — нулевой профиль (не ошибка).
func (s *Service) Profile(ctx context.Context, userID string) (*domain.Profile, error) {
	p, err := s.MustGet(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.NewProfile(userID), nil
	}
	return p, err
}

// MustGet — снимок аккаунта, который обязан существовать; иначе domain.ErrNotFound.
func (s *Service) MustGet(ctx context.Context, userID string) (*domain.Profile, error) {
	if userID == "" {
		return nil, &domain.ValidationError{Field: "user_id", Reason: "is required"}
	}
	unlock, err := s.locks.Lock(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", userID, err)
	}
	defer unlock()

	if p, ok := s.cached(userID); ok {
		return p.Clone(), nil
	}
	p, err := s.store.Get(ctx, userID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.metrics.StoreErrors.WithLabelValues("load").Inc()
		}
		return nil, err
	}
	return p, nil
}

// RiskAssessment — риск-скоры и счётчики подозрительных событий аккаунта.
func (s *Service) RiskAssessment(ctx context.Context, userID string) (domain.RiskAssessment, error) {
	p, err := s.Profile(ctx, userID)
	if err != nil {
		return domain.RiskAssessment{}, err
	}
	return p.Assessment(), nil
}

// Retrain переобучает банк на всех сохранённых снимках. Скоринг на время обучения блокируется банком.
func (s *Service) Retrain(ctx context.Context) (RetrainReport, error) {
	start := time.Now()
	snapshots, err := s.store.List(ctx)
	if err != nil {
		s.metrics.StoreErrors.WithLabelValues("list").Inc()
		return RetrainReport{State: s.detector.State()}, asPersistence("list", "", err)
	}

	s.metrics.ModelState.Set(float64(anomaly.StateFitting))
	err = s.detector.Fit(ctx, snapshots)
	state := s.detector.State()
	s.metrics.ModelState.Set(float64(state))

	report := RetrainReport{State: state, Snapshots: len(snapshots), Duration: time.Since(start)}
	if err != nil {
		s.logger.Error("model bank fit failed", zap.Int("snapshots", len(snapshots)), zap.Error(err))
		return report, err
	}
	if state != anomaly.StateReady {
		s.logger.Warn("model bank left uninitialized: no persisted profiles")
	} else {
		s.logger.Info("model bank fitted", zap.Int("snapshots", len(snapshots)), zap.Duration("took", report.Duration))
	}
	return report, nil
}

// loadLocked: несохранённая мутация, затем хранилище, затем нулевой профиль. Вызывается под блокировкой аккаунта.
func (s *Service) loadLocked(ctx context.Context, userID string) (*domain.Profile, error) {
	if p, ok := s.cached(userID); ok {
		return p, nil
	}
	p, err := s.store.Get(ctx, userID)
	switch {
	case err == nil:
		return p, nil
	case errors.Is(err, domain.ErrNotFound):
		return domain.NewProfile(userID), nil
	}
	s.metrics.StoreErrors.WithLabelValues("load").Inc()
	return nil, asPersistence("load", userID, err)
}

func (s *Service) cached(userID string) (*domain.Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	return p, ok
}

func (s *Service) remember(p *domain.Profile) {
	s.mu.Lock()
	s.profiles[p.UserID] = p
	n := len(s.profiles)
	s.mu.Unlock()
	s.metrics.ProfilesInMemory.Set(float64(n))
}

func (s *Service) forget(userID string) {
	s.mu.Lock()
	delete(s.profiles, userID)
	n := len(s.profiles)
	s.mu.Unlock()
	s.metrics.ProfilesInMemory.Set(float64(n))
}

func asPersistence(op, userID string, err error) error {
	if errors.Is(err, domain.ErrPersistence) {
		return err
	}
	return &domain.PersistenceError{Op: op, UserID: userID, Err: err}
}
