package v1

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) AuditApplication(w http.ResponseWriter, r *http.Request) {
	applicationID, err := parseID(chi.URLParam(r, "application_id"))
	if err != nil {
		writeError(w, err)
		return
	}

	report, err := h.auditor.AuditApplication(r.Context(), applicationID)
	if err != nil {
		writeError(w, err)
		return
	}

	if r.URL.Query().Get("format") == "pdf" {
		data, err := h.renderer.Generate(report)
		if err != nil {
			writeError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/pdf")
		w.Write(data)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) AuditAll(w http.ResponseWriter, r *http.Request) {
	reports, err := h.auditor.AuditAll(r.Context())
	if err != nil {
		// Partial results still go out; the error is attached alongside.
		writeJSON(w, http.StatusOK, map[string]any{
			"reports": reports,
			"error":   err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"reports": reports})
}
