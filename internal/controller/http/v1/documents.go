package v1

import (
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/apexlend/docpipeline/internal/domain"
	"github.com/apexlend/docpipeline/internal/pipeline"
)

const maxUploadBytes = 32 << 20

func (h *Handler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	applicationID, err := parseID(chi.URLParam(r, "application_id"))
	if err != nil {
		writeError(w, err)
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, &domain.ValidationError{Field: "body", Reason: "invalid multipart form"})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, &domain.ValidationError{Field: "file", Reason: "is required"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		writeError(w, err)
		return
	}

	doc, err := h.ingestor.Ingest(r.Context(), pipeline.IngestRequest{
		ApplicationID: applicationID,
		DocumentType:  domain.DocumentType(r.FormValue("document_type")),
		FileName:      header.Filename,
		MimeType:      header.Header.Get("Content-Type"),
		Data:          data,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, doc)
}

type ListDocumentsResponse struct {
	Documents  []*domain.Document `json:"documents"`
	Pagination Pagination         `json:"pagination"`
}

func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	applicationID, err := parseID(chi.URLParam(r, "application_id"))
	if err != nil {
		writeError(w, err)
		return
	}

	page, limit, err := parsePagination(r.URL.Query())
	if err != nil {
		writeError(w, err)
		return
	}

	offset := (page - 1) * limit

	docs, total, err := h.documents.ByApplication(r.Context(), applicationID, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ListDocumentsResponse{
		Documents: docs,
		Pagination: Pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: (total + int(limit) - 1) / int(limit),
		},
	})
}

func (h *Handler) TriggerExtraction(w http.ResponseWriter, r *http.Request) {
	documentID, err := parseID(chi.URLParam(r, "document_id"))
	if err != nil {
		writeError(w, err)
		return
	}

	doc, err := h.extractor.Trigger(r.Context(), documentID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

func parsePagination(query url.Values) (page, limit uint64, err error) {
	page, limit = 1, 10

	if p := query.Get("page"); p != "" {
		page, err = strconv.ParseUint(p, 10, 64)
		if err != nil || page == 0 {
			return 0, 0, &domain.ValidationError{Field: "page", Reason: "must be a positive integer"}
		}
	}

	if l := query.Get("limit"); l != "" {
		limit, err = strconv.ParseUint(l, 10, 64)
		if err != nil || limit < 1 || limit > 100 {
			return 0, 0, &domain.ValidationError{Field: "limit", Reason: "must be in [1;100]"}
		}
	}

	return page, limit, nil
}
