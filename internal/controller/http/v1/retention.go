package v1

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/apexlend/docpipeline/internal/domain"
)

func (h *Handler) ListPolicies(w http.ResponseWriter, r *http.Request) {
	policies, err := h.retention.Policies(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, policies)
}

type UpsertPolicyRequest struct {
	Target    string `json:"target"`
	Days      int    `json:"days"`
	FilterSQL string `json:"filter_sql"`
	Enabled   bool   `json:"enabled"`
}

func (h *Handler) UpsertPolicy(w http.ResponseWriter, r *http.Request) {
	var req UpsertPolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, &domain.ValidationError{Field: "body", Reason: "invalid json"})
		return
	}

	policy := &domain.RetentionPolicy{
		Target:    req.Target,
		Days:      req.Days,
		FilterSQL: req.FilterSQL,
		Enabled:   req.Enabled,
	}

	if err := policy.Validate(); err != nil {
		writeError(w, &domain.ValidationError{Field: "policy", Reason: err.Error()})
		return
	}

	if err := h.retention.UpsertPolicy(r.Context(), policy); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, policy)
}

func (h *Handler) Sweep(w http.ResponseWriter, r *http.Request) {
	results, err := h.sweeper.SweepOnce(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, results)
}

func (h *Handler) ListHolds(w http.ResponseWriter, r *http.Request) {
	holds, err := h.retention.Holds(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, holds)
}

type CreateHoldRequest struct {
	Scope       domain.HoldScope `json:"scope"`
	ReferenceID uuid.UUID        `json:"reference_id"`
	Reason      string           `json:"reason"`
	ExpiresAt   time.Time        `json:"expires_at"`
}

func (h *Handler) CreateHold(w http.ResponseWriter, r *http.Request) {
	var req CreateHoldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, &domain.ValidationError{Field: "body", Reason: "invalid json"})
		return
	}

	hold := &domain.LegalHold{
		ID:          uuid.New(),
		Scope:       req.Scope,
		ReferenceID: req.ReferenceID,
		Reason:      req.Reason,
		ExpiresAt:   req.ExpiresAt,
	}

	if err := hold.Validate(); err != nil {
		writeError(w, &domain.ValidationError{Field: "hold", Reason: err.Error()})
		return
	}

	if err := h.retention.CreateHold(r.Context(), hold); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, hold)
}

func (h *Handler) DeleteHold(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "hold_id"))
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.retention.DeleteHold(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
