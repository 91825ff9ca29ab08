package v1

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/apexlend/docpipeline/internal/domain"
	"github.com/apexlend/docpipeline/internal/pipeline"
)

type Ingestor interface {
	Ingest(ctx context.Context, req pipeline.IngestRequest) (*domain.Document, error)
}

type ApplicationsAdmin interface {
	Create(ctx context.Context, app *domain.Application) error
}

type ExtractionTriggerer interface {
	Trigger(ctx context.Context, id uuid.UUID) (*domain.Document, error)
}

type AnalysisDeriver interface {
	Derive(ctx context.Context, documentID uuid.UUID) (*domain.BankingAnalysis, error)
}

type AnalysesReader interface {
	ByApplication(ctx context.Context, applicationID uuid.UUID) (*domain.BankingAnalysis, error)
}

type DocumentsReader interface {
	ByApplication(ctx context.Context, applicationID uuid.UUID, limit, offset uint64) ([]*domain.Document, int, error)
}

type Auditor interface {
	AuditApplication(ctx context.Context, applicationID uuid.UUID) (*domain.AuditReport, error)
	AuditAll(ctx context.Context) ([]*domain.AuditReport, error)
}

type Sweeper interface {
	SweepOnce(ctx context.Context) (map[string]domain.SweepResult, error)
}

type RetentionAdmin interface {
	Policies(ctx context.Context) ([]*domain.RetentionPolicy, error)
	UpsertPolicy(ctx context.Context, p *domain.RetentionPolicy) error
	Holds(ctx context.Context) ([]*domain.LegalHold, error)
	CreateHold(ctx context.Context, h *domain.LegalHold) error
	DeleteHold(ctx context.Context, id uuid.UUID) error
}

type ReportRenderer interface {
	Generate(report *domain.AuditReport) ([]byte, error)
}

type Handler struct {
	ingestor     Ingestor
	applications ApplicationsAdmin
	extractor    ExtractionTriggerer
	deriver      AnalysisDeriver
	documents    DocumentsReader
	analyses     AnalysesReader
	auditor      Auditor
	sweeper      Sweeper
	retention    RetentionAdmin
	renderer     ReportRenderer
}

func NewHandler(
	ingestor Ingestor,
	applications ApplicationsAdmin,
	extractor ExtractionTriggerer,
	deriver AnalysisDeriver,
	documents DocumentsReader,
	analyses AnalysesReader,
	auditor Auditor,
	sweeper Sweeper,
	retention RetentionAdmin,
	renderer ReportRenderer,
) *Handler {
	return &Handler{
		ingestor:     ingestor,
		applications: applications,
		extractor:    extractor,
		deriver:      deriver,
		documents:    documents,
		analyses:     analyses,
		auditor:      auditor,
		sweeper:      sweeper,
		retention:    retention,
		renderer:     renderer,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError maps the domain error taxonomy onto HTTP statuses. Raw faults
// never cross the boundary unwrapped.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	var (
		validation *domain.ValidationError
		notFound   *domain.NotFoundError
		provider   *domain.PermanentProviderError
		transient  *domain.TransientIOError
		unknown    *domain.UnknownTargetError
	)

	switch {
	case errors.As(err, &validation), errors.As(err, &unknown):
		status = http.StatusBadRequest
	case errors.As(err, &notFound):
		status = http.StatusNotFound
	case errors.As(err, &provider):
		status = http.StatusUnprocessableEntity
	case errors.As(err, &transient):
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func parseID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, &domain.ValidationError{Field: "id", Reason: "must be a uuid"}
	}

	return id, nil
}
