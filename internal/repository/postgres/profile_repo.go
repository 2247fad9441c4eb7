package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xela07ax/fraudprofile/internal/domain"
)

// ProfileRepo — одна строка на аккаунт, полный снимок (метрики + история) в колонке snapshot.
type ProfileRepo struct {
	pool *pgxpool.Pool
}

func NewProfileRepo(pool *pgxpool.Pool) *ProfileRepo {
	return &ProfileRepo{pool: pool}
}

// Get возвращает domain.ErrNotFound для аккаунта без сохранённого снимка.
func (r *ProfileRepo) Get(ctx context.Context, userID string) (*domain.Profile, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx, `SELECT snapshot FROM fraud_profiles WHERE user_id = $1`, userID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: profile %s", domain.ErrNotFound, userID)
	}
	if err != nil {
		return nil, &domain.PersistenceError{Op: "load", UserID: userID, Err: err}
	}

	p, err := decodeSnapshot(raw)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "load", UserID: userID, Err: err}
	}
	return p, nil
}

// Save — upsert всего снимка. overall_risk и last_updated дублируются в колонки для выборок.
func (r *ProfileRepo) Save(ctx context.Context, p *domain.Profile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return &domain.PersistenceError{Op: "save", UserID: p.UserID, Err: err}
	}

	query := `
		INSERT INTO fraud_profiles (user_id, snapshot, overall_risk, last_updated, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			snapshot     = EXCLUDED.snapshot,
			overall_risk = EXCLUDED.overall_risk,
			last_updated = EXCLUDED.last_updated,
			updated_at   = NOW()`

	if _, err := r.pool.Exec(ctx, query, p.UserID, string(data), p.RiskScores.OverallRisk, p.LastUpdated); err != nil {
		return &domain.PersistenceError{Op: "save", UserID: p.UserID, Err: err}
	}
	return nil
}

// List отдаёт все снимки в порядке user_id (обучение банка моделей, прогрев кэша).
func (r *ProfileRepo) List(ctx context.Context) ([]*domain.Profile, error) {
	rows, err := r.pool.Query(ctx, `SELECT snapshot FROM fraud_profiles ORDER BY user_id`)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "list", Err: err}
	}
	defer rows.Close()

	var out []*domain.Profile
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, &domain.PersistenceError{Op: "list", Err: err}
		}
		p, err := decodeSnapshot(raw)
		if err != nil {
			return nil, &domain.PersistenceError{Op: "list", Err: err}
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.PersistenceError{Op: "list", Err: err}
	}
	return out, nil
}

func decodeSnapshot(raw []byte) (*domain.Profile, error) {
	var p domain.Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if p.History == nil {
		p.History = []domain.HistoryEntry{}
	}
	return &p, nil
}
