package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xela07ax/fraudprofile/internal/audit"
)

// VerdictRepo — приёмник журнала вердиктов (audit.Sink).
type VerdictRepo struct {
	pool *pgxpool.Pool
}

func NewVerdictRepo(pool *pgxpool.Pool) *VerdictRepo {
	return &VerdictRepo{pool: pool}
}

// WriteBatch пишет пачку одним многострочным INSERT.
func (r *VerdictRepo) WriteBatch(ctx context.Context, verdicts []audit.Verdict) error {
	if len(verdicts) == 0 {
		return nil
	}

	// Количество колонок в таблице anomaly_verdicts
	const numFields = 8
	var sb strings.Builder
	vals := make([]any, 0, len(verdicts)*numFields)

	for i, v := range verdicts {
		p := i * numFields
		if i > 0 {
			sb.WriteString(",")
		}
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			p+1, p+2, p+3, p+4, p+5, p+6, p+7, p+8)

		explanation, err := json.Marshal(v.Explanation)
		if err != nil {
			return fmt.Errorf("postgres: encode explanation %s: %w", v.ID, err)
		}
		vals = append(vals,
			v.ID, v.TraceID, v.UserID, string(v.EventType),
			v.IsAnomaly, v.Confidence, string(explanation), v.Timestamp,
		)
	}

	query := "INSERT INTO anomaly_verdicts (id, trace_id, user_id, event_type, is_anomaly, confidence, explanation, created_at) VALUES " +
		sb.String() + " ON CONFLICT (id) DO NOTHING"

	if _, err := r.pool.Exec(ctx, query, vals...); err != nil {
		return fmt.Errorf("postgres: write verdicts: %w", err)
	}
	return nil
}
