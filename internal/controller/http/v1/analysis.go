package v1

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	applicationID, err := parseID(chi.URLParam(r, "application_id"))
	if err != nil {
		writeError(w, err)
		return
	}

	analysis, err := h.analyses.ByApplication(r.Context(), applicationID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, analysis)
}

// DeriveAnalysis recomputes the application's analysis from one completed
// document on demand, outside the normal pipeline handoff.
func (h *Handler) DeriveAnalysis(w http.ResponseWriter, r *http.Request) {
	documentID, err := parseID(chi.URLParam(r, "document_id"))
	if err != nil {
		writeError(w, err)
		return
	}

	analysis, err := h.deriver.Derive(r.Context(), documentID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, analysis)
}
