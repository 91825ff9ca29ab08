package v1

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/apexlend/docpipeline/internal/domain"
)

type CreateApplicationRequest struct {
	ContactID uuid.UUID `json:"contact_id"`
}

// CreateApplication registers the referent row documents attach to. The
// application lifecycle itself lives upstream; this only mirrors the id.
func (h *Handler) CreateApplication(w http.ResponseWriter, r *http.Request) {
	var req CreateApplicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, &domain.ValidationError{Field: "body", Reason: "invalid json"})
		return
	}

	if req.ContactID == uuid.Nil {
		writeError(w, &domain.ValidationError{Field: "contact_id", Reason: "is required"})
		return
	}

	app := &domain.Application{
		ID:        uuid.New(),
		ContactID: req.ContactID,
	}

	if err := h.applications.Create(r.Context(), app); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, app)
}
