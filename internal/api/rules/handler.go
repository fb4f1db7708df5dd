// Package rules implements the escalation rule endpoints of the ops API.
package rules

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/voice2fire/pulsewatch/internal/models"
	"github.com/voice2fire/pulsewatch/internal/storage"
)

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

const errCodeInternalError = "INTERNAL_ERROR"

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

// RuleResponse is the wire form of an escalation rule.
type RuleResponse struct {
	ID            string   `json:"id"`
	Severity      string   `json:"severity"`
	Level         int      `json:"level"`
	TimeThreshold string   `json:"time_threshold"`
	TargetRole    string   `json:"target_role"`
	Channels      []string `json:"channels"`
	CreatedAt     string   `json:"created_at"`
	UpdatedAt     string   `json:"updated_at"`
}

// Handler handles escalation rule endpoints.
type Handler struct {
	storage storage.Storage
}

func NewHandler(store storage.Storage) *Handler {
	return &Handler{storage: store}
}

// List returns all escalation rules.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	rules, err := h.storage.Rules().List(r.Context())
	if err != nil {
		log.Printf("list rules error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	resp := make([]*RuleResponse, len(rules))
	for i, rule := range rules {
		resp[i] = ruleToResponse(rule)
	}
	jsonOK(w, resp)
}

// Reset replaces all escalation rules with the built-in default chains.
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.storage.Rules().ResetDefaults(ctx); err != nil {
		log.Printf("reset rules error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	rules, err := h.storage.Rules().List(ctx)
	if err != nil {
		log.Printf("reset rules error: reload: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	log.Printf("escalation rules reset to defaults (%d rules)", len(rules))

	resp := make([]*RuleResponse, len(rules))
	for i, rule := range rules {
		resp[i] = ruleToResponse(rule)
	}
	jsonOK(w, resp)
}

func ruleToResponse(rule *models.EscalationRule) *RuleResponse {
	return &RuleResponse{
		ID:            rule.ID,
		Severity:      string(rule.Severity),
		Level:         rule.Level,
		TimeThreshold: rule.TimeThreshold.String(),
		TargetRole:    rule.TargetRole,
		Channels:      rule.ChannelStrings(),
		CreatedAt:     rule.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     rule.UpdatedAt.Format(time.RFC3339),
	}
}
