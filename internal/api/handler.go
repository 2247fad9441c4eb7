package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xela07ax/fraudprofile/internal/anomaly"
	"github.com/xela07ax/fraudprofile/internal/domain"
	"github.com/xela07ax/fraudprofile/internal/engine"
)

const maxBodyBytes = 1 << 20

// anomalyDetection — блок вердикта в ответе на событие.
type anomalyDetection struct {
	Available   bool                `json:"available"`
	IsAnomaly   bool                `json:"is_anomaly"`
	Confidence  float64             `json:"confidence"`
	Explanation *domain.Explanation `json:"explanation,omitempty"`
	Reason      string              `json:"reason,omitempty"`
}

type eventResponse struct {
	Profile          *domain.Profile   `json:"profile"`
	AnomalyDetection *anomalyDetection `json:"anomaly_detection,omitempty"`
}

type riskResponse struct {
	UserID               string            `json:"user_id"`
	RiskScores           domain.RiskScores `json:"risk_scores"`
	SuspiciousActivities struct {
		LoginCount       int `json:"login_count"`
		TransactionCount int `json:"transaction_count"`
	} `json:"suspicious_activities"`
}

// GET /profile/{user_id}
func (s *Server) getProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.Profile(r.Context(), chi.URLParam(r, "user_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// GET /profile/{user_id}/risk
func (s *Server) getRisk(w http.ResponseWriter, r *http.Request) {
	ra, err := s.svc.RiskAssessment(r.Context(), chi.URLParam(r, "user_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	resp := riskResponse{UserID: ra.UserID, RiskScores: ra.RiskScores}
	resp.SuspiciousActivities.LoginCount = ra.SuspiciousLoginCount
	resp.SuspiciousActivities.TransactionCount = ra.SuspiciousTransactionCount
	writeJSON(w, http.StatusOK, resp)
}

// POST /profile/{user_id}/{kind}. user_id из пути подставляется в событие;
// расхождение с user_id в теле — ошибка.
func (s *Server) postProfileEvent(w http.ResponseWriter, r *http.Request) {
	s.handleEvent(w, r, chi.URLParam(r, "user_id"))
}

// POST /events/{kind}. user_id берётся из тела.
func (s *Server) postEvent(w http.ResponseWriter, r *http.Request) {
	s.handleEvent(w, r, "")
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request, pathUser string) {
	t, err := domain.ParseEventType(chi.URLParam(r, "kind"))
	if err != nil {
		writeError(w, err)
		return
	}
	ev, err := decodeEvent(r, t, pathUser)
	if err != nil {
		writeError(w, err)
		return
	}

	out, err := s.svc.Process(r.Context(), ev)
	if err != nil {
		if errors.Is(err, domain.ErrPersistence) && out.Profile != nil {
			// событие применено в памяти, но не сохранено
			writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: err.Error(), Code: "PERSISTENCE", Profile: out.Profile})
			return
		}
		writeError(w, err)
		return
	}

	resp := eventResponse{Profile: out.Profile}
	if t != domain.EventSession {
		resp.AnomalyDetection = detection(out)
	}
	writeJSON(w, http.StatusOK, resp)
}

func detection(out engine.Outcome) *anomalyDetection {
	if out.Anomaly == nil {
		d := &anomalyDetection{Available: false}
		if out.Skipped != nil {
			d.Reason = out.Skipped.Error()
		}
		return d
	}
	return &anomalyDetection{
		Available:   true,
		IsAnomaly:   out.Anomaly.IsAnomaly,
		Confidence:  out.Anomaly.Confidence,
		Explanation: &out.Anomaly.Explanation,
	}
}

// decodeEvent читает тело как JSON-объект, подставляет user_id из пути
// и собирает типизированное событие.
func decodeEvent(r *http.Request, t domain.EventType, pathUser string) (domain.Event, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, &domain.ValidationError{Field: "body", Reason: err.Error()}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
		return nil, &domain.ValidationError{Field: "body", Reason: "must be a JSON object"}
	}

	if pathUser != "" {
		if raw, ok := fields["user_id"]; ok {
			var bodyUser string
			if err := json.Unmarshal(raw, &bodyUser); err != nil || (bodyUser != "" && bodyUser != pathUser) {
				return nil, &domain.ValidationError{Field: "user_id", Value: bodyUser, Reason: fmt.Sprintf("does not match path %s", pathUser)}
			}
		}
		fields["user_id"], _ = json.Marshal(pathUser)
		if body, err = json.Marshal(fields); err != nil {
			return nil, &domain.ValidationError{Field: "body", Reason: err.Error()}
		}
	}

	return domain.DecodeEvent(t, body)
}

type retrainResponse struct {
	RequestID string `json:"request_id"`
	Mode      string `json:"mode"` // local | broadcast
	Receivers int64  `json:"receivers,omitempty"`
	State     string `json:"state,omitempty"`
	Snapshots int    `json:"snapshots,omitempty"`
	TookMs    int64  `json:"took_ms,omitempty"`
}

// POST /admin/retrain
func (s *Server) retrain(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()

	if s.broadcast != nil {
		n, err := s.broadcast(r.Context(), requestID)
		if err != nil {
			s.logger.Error("retrain broadcast failed", zap.String("request", requestID), zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "retrain broadcast failed", Code: "BROADCAST"})
			return
		}
		writeJSON(w, http.StatusAccepted, retrainResponse{RequestID: requestID, Mode: "broadcast", Receivers: n})
		return
	}

	report, err := s.svc.Retrain(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, retrainResponse{
		RequestID: requestID,
		Mode:      "local",
		State:     report.State.String(),
		Snapshots: report.Snapshots,
		TookMs:    report.Duration.Milliseconds(),
	})
}

type modelsResponse struct {
	State    string              `json:"state"`
	FittedAt *time.Time          `json:"fitted_at,omitempty"`
	Models   []anomaly.ModelInfo `json:"models"`
}

// GET /admin/models
func (s *Server) listModels(w http.ResponseWriter, r *http.Request) {
	models, fittedAt := s.models.Models()
	resp := modelsResponse{State: s.models.State().String(), Models: models}
	if !fittedAt.IsZero() {
		resp.FittedAt = &fittedAt
	}
	writeJSON(w, http.StatusOK, resp)
}

// GET /healthz
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":      "ok",
		"model_state": s.models.State().String(),
	})
}
