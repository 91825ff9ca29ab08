package pipeline_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/apexlend/docpipeline/internal/domain"
	"github.com/apexlend/docpipeline/internal/infrastructure/objectstore"
	"github.com/apexlend/docpipeline/internal/pipeline"
)

func TestIngestor_Ingest_HappyPath(t *testing.T) {
	t.Parallel()

	log := slog.New(slog.DiscardHandler)
	applicationID := uuid.New()

	applications := NewMockApplicationChecker(t)
	applications.On("Exists", mock.Anything, applicationID).Return(true, nil)

	documents := NewMockDocumentCreator(t)
	documents.On("Create", mock.Anything, mock.MatchedBy(func(doc *domain.Document) bool {
		return doc.ApplicationID == applicationID &&
			doc.State == domain.StateUploaded &&
			doc.StorageKey != "" &&
			doc.Checksum != ""
	})).Return(nil)

	store := objectstore.NewMemory()
	extractions := make(chan uuid.UUID, 1)

	ingestor := pipeline.NewIngestor(log, applications, documents, store, extractions)

	doc, err := ingestor.Ingest(t.Context(), pipeline.IngestRequest{
		ApplicationID: applicationID,
		DocumentType:  domain.TypeBankStatements,
		FileName:      "statement.pdf",
		MimeType:      "application/pdf",
		Data:          []byte("%PDF-1.4 test"),
	})
	require.NoError(t, err)

	assert.Equal(t, int64(13), doc.SizeBytes)
	assert.Equal(t, 1, store.Len())

	select {
	case id := <-extractions:
		assert.Equal(t, doc.ID, id)
	default:
		t.Fatal("expected document to be enqueued for extraction")
	}
}

func TestIngestor_Ingest_ApplicationNotFound(t *testing.T) {
	t.Parallel()

	log := slog.New(slog.DiscardHandler)

	applications := NewMockApplicationChecker(t)
	applications.On("Exists", mock.Anything, mock.Anything).Return(false, nil)

	documents := NewMockDocumentCreator(t)
	store := objectstore.NewMemory()

	ingestor := pipeline.NewIngestor(log, applications, documents, store, make(chan uuid.UUID, 1))

	_, err := ingestor.Ingest(t.Context(), pipeline.IngestRequest{
		ApplicationID: uuid.New(),
		DocumentType:  domain.TypeBankStatements,
		FileName:      "statement.pdf",
		Data:          []byte("data"),
	})

	var notFound *domain.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "application", notFound.Resource)
	assert.Zero(t, store.Len(), "nothing should be written before the existence check passes")
}

func TestIngestor_Ingest_Validation(t *testing.T) {
	t.Parallel()

	log := slog.New(slog.DiscardHandler)

	ingestor := pipeline.NewIngestor(
		log,
		NewMockApplicationChecker(t),
		NewMockDocumentCreator(t),
		objectstore.NewMemory(),
		make(chan uuid.UUID, 1),
	)

	tests := []struct {
		name  string
		req   pipeline.IngestRequest
		field string
	}{
		{
			name: "missing application id",
			req: pipeline.IngestRequest{
				DocumentType: domain.TypeBankStatements,
				FileName:     "statement.pdf",
				Data:         []byte("data"),
			},
			field: "application_id",
		},
		{
			name: "unknown document type",
			req: pipeline.IngestRequest{
				ApplicationID: uuid.New(),
				DocumentType:  "napkin_sketch",
				FileName:      "statement.pdf",
				Data:          []byte("data"),
			},
			field: "document_type",
		},
		{
			name: "missing file name",
			req: pipeline.IngestRequest{
				ApplicationID: uuid.New(),
				DocumentType:  domain.TypeBankStatements,
				Data:          []byte("data"),
			},
			field: "file_name",
		},
		{
			name: "empty file",
			req: pipeline.IngestRequest{
				ApplicationID: uuid.New(),
				DocumentType:  domain.TypeBankStatements,
				FileName:      "statement.pdf",
			},
			field: "file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := ingestor.Ingest(t.Context(), tt.req)

			var validation *domain.ValidationError
			require.ErrorAs(t, err, &validation)
			assert.Equal(t, tt.field, validation.Field)
		})
	}
}

func TestIngestor_Ingest_CompensatesFailedCommit(t *testing.T) {
	t.Parallel()

	log := slog.New(slog.DiscardHandler)
	applicationID := uuid.New()

	applications := NewMockApplicationChecker(t)
	applications.On("Exists", mock.Anything, applicationID).Return(true, nil)

	documents := NewMockDocumentCreator(t)
	documents.On("Create", mock.Anything, mock.Anything).Return(errors.New("unique violation"))

	store := objectstore.NewMemory()

	ingestor := pipeline.NewIngestor(log, applications, documents, store, make(chan uuid.UUID, 1))

	_, err := ingestor.Ingest(t.Context(), pipeline.IngestRequest{
		ApplicationID: applicationID,
		DocumentType:  domain.TypeBankStatements,
		FileName:      "statement.pdf",
		Data:          []byte("data"),
	})
	require.Error(t, err)

	assert.Zero(t, store.Len(), "object must not outlive a failed registry commit")
}

func TestIngestor_Ingest_CompensatesEvenWhenContextCancelled(t *testing.T) {
	t.Parallel()

	log := slog.New(slog.DiscardHandler)
	applicationID := uuid.New()

	applications := NewMockApplicationChecker(t)
	applications.On("Exists", mock.Anything, applicationID).Return(true, nil)

	ctx, cancel := context.WithCancel(t.Context())

	documents := NewMockDocumentCreator(t)
	documents.On("Create", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return(errors.New("connection reset"))

	store := objectstore.NewMemory()

	ingestor := pipeline.NewIngestor(log, applications, documents, store, make(chan uuid.UUID, 1))

	_, err := ingestor.Ingest(ctx, pipeline.IngestRequest{
		ApplicationID: applicationID,
		DocumentType:  domain.TypeBankStatements,
		FileName:      "statement.pdf",
		Data:          []byte("data"),
	})
	require.Error(t, err)

	assert.Zero(t, store.Len())
}

func TestIngestor_Ingest_QueueFullDoesNotBlock(t *testing.T) {
	t.Parallel()

	log := slog.New(slog.DiscardHandler)
	applicationID := uuid.New()

	applications := NewMockApplicationChecker(t)
	applications.On("Exists", mock.Anything, applicationID).Return(true, nil)

	documents := NewMockDocumentCreator(t)
	documents.On("Create", mock.Anything, mock.Anything).Return(nil)

	extractions := make(chan uuid.UUID, 1)
	extractions <- uuid.New() // fill the queue

	ingestor := pipeline.NewIngestor(log, applications, documents, objectstore.NewMemory(), extractions)

	done := make(chan struct{})
	go func() {
		defer close(done)

		_, err := ingestor.Ingest(t.Context(), pipeline.IngestRequest{
			ApplicationID: applicationID,
			DocumentType:  domain.TypeBankStatements,
			FileName:      "statement.pdf",
			Data:          []byte("data"),
		})
		assert.NoError(t, err)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("ingest blocked on a full extraction queue")
	}
}
