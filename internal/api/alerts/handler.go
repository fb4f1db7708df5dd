// Package alerts implements the alert endpoints of the ops API.
package alerts

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/voice2fire/pulsewatch/internal/models"
	"github.com/voice2fire/pulsewatch/internal/storage"
)

// Response helpers
type errorResponse struct {
	Error errorBody `json:"error"`
}
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
type dataResponse struct {
	Data any `json:"data"`
}

const (
	errCodeBadRequest       = "BAD_REQUEST"
	errCodeValidationFailed = "VALIDATION_FAILED"
	errCodeNotFound         = "NOT_FOUND"
	errCodeInternalError    = "INTERNAL_ERROR"
)

func jsonError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(errorResponse{Error: errorBody{Code: code, Message: message}}); err != nil {
		log.Printf("json encode error: %v", err)
	}
}

func jsonOK(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(dataResponse{Data: data}); err != nil {
		log.Printf("json encode error: %v", err)
	}
}

// AlertResponse is the wire form of an alert.
type AlertResponse struct {
	ID                string                    `json:"id"`
	Kind              string                    `json:"kind"`
	Severity          string                    `json:"severity"`
	Title             string                    `json:"title"`
	Description       string                    `json:"description,omitempty"`
	MetricValue       float64                   `json:"metric_value"`
	ThresholdValue    float64                   `json:"threshold_value"`
	PeriodStart       string                    `json:"period_start"`
	PeriodEnd         string                    `json:"period_end"`
	Metadata          map[string]any            `json:"metadata,omitempty"`
	Resolved          bool                      `json:"resolved"`
	ResolvedAt        string                    `json:"resolved_at,omitempty"`
	EscalationLevel   int                       `json:"escalation_level"`
	EscalatedAt       string                    `json:"escalated_at,omitempty"`
	EscalatedTo       []string                  `json:"escalated_to,omitempty"`
	EscalationHistory []models.EscalationRecord `json:"escalation_history,omitempty"`
	CreatedAt         string                    `json:"created_at"`
}

// ListResponse wraps an alert listing with pagination info.
type ListResponse struct {
	Items   []*AlertResponse `json:"items"`
	Total   int64            `json:"total"`
	Page    int              `json:"page"`
	PerPage int              `json:"per_page"`
}

// Handler handles alert endpoints.
type Handler struct {
	storage storage.Storage
}

func NewHandler(store storage.Storage) *Handler {
	return &Handler{storage: store}
}

// List returns alerts matching the query filters, newest first.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	filter := storage.AlertFilter{}

	if v := q.Get("resolved"); v != "" {
		resolved, err := strconv.ParseBool(v)
		if err != nil {
			jsonError(w, http.StatusBadRequest, errCodeValidationFailed, "invalid resolved filter")
			return
		}
		filter.Resolved = &resolved
	}

	if v := q.Get("kind"); v != "" {
		if !models.ValidAlertKind(v) {
			jsonError(w, http.StatusBadRequest, errCodeValidationFailed, "unknown alert kind: "+v)
			return
		}
		filter.Kind = models.AlertKind(v)
	}

	if v := q.Get("severity"); v != "" {
		if !models.ValidSeverity(v) {
			jsonError(w, http.StatusBadRequest, errCodeValidationFailed, "unknown severity: "+v)
			return
		}
		filter.Severity = models.Severity(v)
	}

	page := 1
	perPage := 50
	if p := q.Get("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}
	if pp := q.Get("per_page"); pp != "" {
		if v, err := strconv.Atoi(pp); err == nil && v > 0 && v <= 200 {
			perPage = v
		}
	}
	filter.Limit = perPage
	filter.Offset = (page - 1) * perPage

	alerts, total, err := h.storage.Alerts().List(ctx, filter)
	if err != nil {
		log.Printf("list alerts error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	items := make([]*AlertResponse, len(alerts))
	for i, a := range alerts {
		items[i] = alertToResponse(a)
	}

	jsonOK(w, ListResponse{
		Items:   items,
		Total:   total,
		Page:    page,
		PerPage: perPage,
	})
}

// GetByID returns an alert by ID.
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "alert id required")
		return
	}

	alert, err := h.storage.Alerts().GetByID(r.Context(), id)
	if err != nil {
		log.Printf("get alert error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	if alert == nil {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "alert not found")
		return
	}

	jsonOK(w, alertToResponse(alert))
}

// Resolve marks an alert resolved. Resolving an already-resolved alert
// succeeds without changing anything.
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "alert id required")
		return
	}

	ctx := r.Context()
	err := h.storage.Alerts().Resolve(ctx, id, time.Now())
	if errors.Is(err, storage.ErrNotFound) {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "alert not found")
		return
	}
	if err != nil {
		log.Printf("resolve alert error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	alert, err := h.storage.Alerts().GetByID(ctx, id)
	if err != nil || alert == nil {
		log.Printf("resolve alert error: reload: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	log.Printf("alert resolved: %s (%s)", alert.Kind, alert.ID)
	jsonOK(w, alertToResponse(alert))
}

func alertToResponse(a *models.Alert) *AlertResponse {
	resp := &AlertResponse{
		ID:                a.ID,
		Kind:              string(a.Kind),
		Severity:          string(a.Severity),
		Title:             a.Title,
		Description:       a.Description,
		MetricValue:       a.MetricValue,
		ThresholdValue:    a.ThresholdValue,
		PeriodStart:       a.PeriodStart.Format(time.RFC3339),
		PeriodEnd:         a.PeriodEnd.Format(time.RFC3339),
		Metadata:          a.Metadata,
		Resolved:          a.Resolved,
		EscalationLevel:   a.EscalationLevel,
		EscalatedTo:       a.EscalatedTo,
		EscalationHistory: a.EscalationHistory,
		CreatedAt:         a.CreatedAt.Format(time.RFC3339),
	}
	if a.ResolvedAt != nil {
		resp.ResolvedAt = a.ResolvedAt.Format(time.RFC3339)
	}
	if a.EscalatedAt != nil {
		resp.EscalatedAt = a.EscalatedAt.Format(time.RFC3339)
	}
	return resp
}
