package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/apexlend/docpipeline/internal/domain"
	"github.com/apexlend/docpipeline/internal/infrastructure/objectstore"
)

// IngestRequest carries one upload into the pipeline.
type IngestRequest struct {
	ApplicationID uuid.UUID
	DocumentType  domain.DocumentType
	FileName      string
	MimeType      string
	Data          []byte
}

func (r *IngestRequest) Validate() error {
	if r.ApplicationID == uuid.Nil {
		return &domain.ValidationError{Field: "application_id", Reason: "is required"}
	}

	if err := r.DocumentType.Validate(); err != nil {
		return &domain.ValidationError{Field: "document_type", Reason: err.Error()}
	}

	if r.FileName == "" {
		return &domain.ValidationError{Field: "file_name", Reason: "is required"}
	}

	if len(r.Data) == 0 {
		return &domain.ValidationError{Field: "file", Reason: "is empty"}
	}

	return nil
}

// Ingestor accepts uploads: object write first, registry commit second, with
// a compensating object delete when the commit fails. Extraction is handed
// off asynchronously; the caller returns as soon as the row is durable.
type Ingestor struct {
	log          *slog.Logger
	applications ApplicationChecker
	documents    DocumentCreator
	store        objectstore.Store
	extractions  chan<- uuid.UUID
}

func NewIngestor(
	log *slog.Logger,
	applications ApplicationChecker,
	documents DocumentCreator,
	store objectstore.Store,
	extractions chan<- uuid.UUID,
) *Ingestor {
	return &Ingestor{
		log:          log,
		applications: applications,
		documents:    documents,
		store:        store,
		extractions:  extractions,
	}
}

func (i *Ingestor) Ingest(ctx context.Context, req IngestRequest) (*domain.Document, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	exists, err := i.applications.Exists(ctx, req.ApplicationID)
	if err != nil {
		return nil, fmt.Errorf("failed to check application: %w", err)
	}

	if !exists {
		return nil, &domain.NotFoundError{Resource: "application", ID: req.ApplicationID.String()}
	}

	sum := sha256.Sum256(req.Data)

	doc := &domain.Document{
		ID:            uuid.New(),
		ApplicationID: req.ApplicationID,
		DocumentType:  req.DocumentType,
		FileName:      req.FileName,
		SizeBytes:     int64(len(req.Data)),
		MimeType:      req.MimeType,
		Checksum:      hex.EncodeToString(sum[:]),
		State:         domain.StateUploaded,
	}
	doc.StorageKey = domain.StorageKey(doc.ApplicationID, doc.ID, doc.FileName)

	if err := i.store.Put(ctx, doc.StorageKey, req.Data, req.MimeType); err != nil {
		return nil, fmt.Errorf("failed to write object: %w", err)
	}

	if err := i.documents.Create(ctx, doc); err != nil {
		// Compensate: the object must not outlive a failed registry commit.
		if delErr := i.store.Delete(context.WithoutCancel(ctx), doc.StorageKey); delErr != nil {
			i.log.ErrorContext(ctx, "failed to delete orphaned object after commit failure",
				slog.String("storage_key", doc.StorageKey),
				slog.String("err", delErr.Error()),
			)
		}

		return nil, fmt.Errorf("failed to create document: %w", err)
	}

	i.log.InfoContext(ctx, "document ingested",
		slog.String("document_id", doc.ID.String()),
		slog.String("application_id", doc.ApplicationID.String()),
		slog.String("document_type", string(doc.DocumentType)),
		slog.Int64("size_bytes", doc.SizeBytes),
	)

	if doc.DocumentType.RequiresExtraction() {
		// Best effort: the retry scanner picks up anything still sitting in
		// uploaded if the queue is full.
		select {
		case i.extractions <- doc.ID:
		default:
			i.log.DebugContext(ctx, "extraction queue full, deferring to scanner",
				slog.String("document_id", doc.ID.String()),
			)
		}
	}

	return doc, nil
}
