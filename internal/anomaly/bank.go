package anomaly

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/xela07ax/fraudprofile/internal/domain"
)

// State — жизненный цикл банка моделей.
type State int32

const (
	StateUninitialized State = iota
	StateFitting
	StateReady
)

func (s State) String() string {
	switch s {
	case StateFitting:
		return "fitting"
	case StateReady:
		return "ready"
	}
	return "uninitialized"
}

// Config — параметры моделей. Один seed на все категории: повторное обучение
// на тех же снимках даёт те же деревья.
type Config struct {
	Seed          uint64
	Trees         int
	MaxSamples    int
	Contamination float64
	Neighbors     int
}

func DefaultConfig() Config {
	return Config{Seed: 42, Trees: 100, MaxSamples: 256, Contamination: 0.1, Neighbors: 20}
}

type outlierModel interface {
	ScoreSamples(x Vector) float64
	Offset() float64
}

type typeModel struct {
	kind    string
	scaler  *Scaler
	model   outlierModel
	samples int
}

// ModelInfo — описание обученной модели категории (для /admin и логов).
type ModelInfo struct {
	EventType domain.EventType `json:"event_type"`
	Kind      string           `json:"kind"`
	Samples   int              `json:"samples"`
	Offset    float64          `json:"offset"`
}

// Bank держит по скейлеру и модели на категорию.
// Score — только чтение под RLock; Fit берёт эксклюзивную блокировку на всё время обучения.
type Bank struct {
	cfg      Config
	state    atomic.Int32
	mu       sync.RWMutex
	models   map[domain.EventType]*typeModel
	fittedAt time.Time
}

func NewBank(cfg Config) *Bank {
	return &Bank{cfg: cfg}
}

func (b *Bank) State() State { return State(b.state.Load()) }

// Fit обучает все категории на снимках профилей. Пустой набор снимков оставляет
// банк в Uninitialized (ранее обученные модели сбрасываются).
// При ошибке или отмене контекста банк возвращается в прежнее состояние.
func (b *Bank) Fit(ctx context.Context, snapshots []*domain.Profile) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	prev := b.State()
	b.state.Store(int32(StateFitting))

	if len(snapshots) == 0 {
		b.models = nil
		b.fittedAt = time.Time{}
		b.state.Store(int32(StateUninitialized))
		return nil
	}

	models := make(map[domain.EventType]*typeModel, len(domain.EventTypes))
	for _, t := range domain.EventTypes {
		if err := ctx.Err(); err != nil {
			b.state.Store(int32(prev))
			return fmt.Errorf("fit %s: %w", t, err)
		}
		m, err := b.fitType(t, snapshots)
		if err != nil {
			b.state.Store(int32(prev))
			return fmt.Errorf("fit %s: %w", t, err)
		}
		models[t] = m
	}

	b.models = models
	b.fittedAt = time.Now().UTC()
	b.state.Store(int32(StateReady))
	return nil
}

func (b *Bank) fitType(t domain.EventType, snapshots []*domain.Profile) (*typeModel, error) {
	rows := make([]Vector, 0, len(snapshots))
	for _, p := range snapshots {
		rows = append(rows, TrainingVector(p, t))
	}

	scaler, err := FitScaler(rows)
	if err != nil {
		return nil, err
	}
	scaled := scaler.TransformAll(rows)

	tm := &typeModel{scaler: scaler, samples: len(rows)}
	if t == domain.EventTransaction {
		tm.kind = "local_outlier_factor"
		tm.model, err = FitLocalOutlierFactor(scaled, b.cfg.Neighbors, b.cfg.Contamination)
	} else {
		tm.kind = "isolation_forest"
		tm.model, err = FitIsolationForest(scaled, ForestConfig{
			Trees:         b.cfg.Trees,
			MaxSamples:    b.cfg.MaxSamples,
			Contamination: b.cfg.Contamination,
			Seed:          b.cfg.Seed,
		})
	}
	if err != nil {
		return nil, err
	}
	return tm, nil
}

// Score оценивает событие по профилю до обновления. Банк не мутируется.
func (b *Bank) Score(p *domain.Profile, ev domain.Event) (domain.AnomalyResult, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.State() != StateReady {
		return domain.AnomalyResult{}, fmt.Errorf("%w: bank is %s", domain.ErrModelUnavailable, b.State())
	}
	if ev == nil {
		return domain.AnomalyResult{}, &domain.ValidationError{Field: "event", Reason: "is required"}
	}
	t := ev.Type()
	m, ok := b.models[t]
	if !ok {
		return domain.AnomalyResult{}, fmt.Errorf("%w: no model for %s", domain.ErrNotFound, t)
	}

	v, err := Extract(p, ev)
	if err != nil {
		return domain.AnomalyResult{}, err
	}

	// 1. Только transform: скейлер обучен на снимках и на живом трафике не дообучается
	raw := m.model.ScoreSamples(m.scaler.Transform(v))

	// 2. Для входов скор в соглашении модели (меньше = аномальнее), для остальных инвертирован
	score := raw
	if t != domain.EventLogin {
		score = -raw
	}

	return domain.AnomalyResult{
		IsAnomaly:   singleSampleVerdict(score, t == domain.EventLogin),
		Confidence:  math.Abs(score),
		Explanation: Explain(t, v, score),
	}, nil
}

// Models — описание обученных моделей в порядке domain.EventTypes.
func (b *Bank) Models() ([]ModelInfo, time.Time) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]ModelInfo, 0, len(b.models))
	for _, t := range domain.EventTypes {
		if m, ok := b.models[t]; ok {
			out = append(out, ModelInfo{EventType: t, Kind: m.kind, Samples: m.samples, Offset: m.model.Offset()})
		}
	}
	return out, b.fittedAt
}

// singleSampleVerdict сравнивает скор с перцентилем выборки, состоящей из него же:
// для входов "ниже 10-го", для остальных "выше 90-го". Правило сохраняется буквально;
// перцентиль одноэлементной выборки равен самому элементу, так что строгое
// сравнение не срабатывает.
// Следствие: IsAnomaly всегда false, suspicious_*_count не растут и лог
// "anomaly detected" не пишется. Порог нужно менять здесь.
func singleSampleVerdict(score float64, login bool) bool {
	sample := []float64{score}
	if login {
		return score < percentile(sample, 0.10)
	}
	return score > percentile(sample, 0.90)
}

// percentile — квантиль с линейной интерполяцией; вход не мутируется.
func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	return stat.Quantile(math.Min(math.Max(p, 0), 1), stat.LinInterp, sorted, nil)
}
