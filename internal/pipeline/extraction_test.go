package pipeline_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/apexlend/docpipeline/internal/domain"
	"github.com/apexlend/docpipeline/internal/pipeline"
)

const (
	testMaxAttempts  = 3
	testRetryBackoff = 5 * time.Second
)

func uploadedStatement() *domain.Document {
	return &domain.Document{
		ID:            uuid.New(),
		ApplicationID: uuid.New(),
		DocumentType:  domain.TypeBankStatements,
		FileName:      "statement.pdf",
		StorageKey:    "app/doc-statement.pdf",
		State:         domain.StateUploaded,
	}
}

func newExtractor(
	t *testing.T,
	documents *MockDocumentStateStore,
	provider *MockProvider,
	extractions <-chan uuid.UUID,
	analyses chan<- uuid.UUID,
) *pipeline.Extractor {
	t.Helper()

	return pipeline.NewExtractor(
		slog.New(slog.DiscardHandler),
		documents,
		provider,
		extractions,
		analyses,
		1,
		testMaxAttempts,
		testRetryBackoff,
	)
}

func TestExtractor_Trigger_HappyPath(t *testing.T) {
	t.Parallel()

	doc := uploadedStatement()
	fields := &domain.StatementFields{BankName: "First National"}

	documents := NewMockDocumentStateStore(t)
	documents.On("ByID", mock.Anything, doc.ID).Return(doc, nil)
	documents.On("TransitionState", mock.Anything, doc.ID, domain.TriggerableStates(), domain.StateOcrPending).
		Return(true, nil)
	documents.On("MarkOcrComplete", mock.Anything, doc.ID, fields).Return(nil)

	provider := NewMockProvider(t)
	provider.On("Extract", mock.Anything, mock.Anything).Return(fields, nil)

	analyses := make(chan uuid.UUID, 1)
	extractor := newExtractor(t, documents, provider, make(chan uuid.UUID), analyses)

	_, err := extractor.Trigger(t.Context(), doc.ID)
	require.NoError(t, err)

	select {
	case id := <-analyses:
		assert.Equal(t, doc.ID, id)
	default:
		t.Fatal("expected completed statement to be enqueued for analysis")
	}
}

func TestExtractor_Trigger_NoOpWhenComplete(t *testing.T) {
	t.Parallel()

	doc := uploadedStatement()
	doc.State = domain.StateOcrComplete

	documents := NewMockDocumentStateStore(t)
	documents.On("ByID", mock.Anything, doc.ID).Return(doc, nil).Once()

	provider := NewMockProvider(t)

	extractor := newExtractor(t, documents, provider, make(chan uuid.UUID), make(chan uuid.UUID, 1))

	got, err := extractor.Trigger(t.Context(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc, got)

	provider.AssertNotCalled(t, "Extract")
}

func TestExtractor_Trigger_LostRace(t *testing.T) {
	t.Parallel()

	doc := uploadedStatement()

	documents := NewMockDocumentStateStore(t)
	documents.On("ByID", mock.Anything, doc.ID).Return(doc, nil)
	documents.On("TransitionState", mock.Anything, doc.ID, domain.TriggerableStates(), domain.StateOcrPending).
		Return(false, nil)

	provider := NewMockProvider(t)

	extractor := newExtractor(t, documents, provider, make(chan uuid.UUID), make(chan uuid.UUID, 1))

	_, err := extractor.Trigger(t.Context(), doc.ID)
	require.NoError(t, err)

	provider.AssertNotCalled(t, "Extract")
	documents.AssertNotCalled(t, "MarkOcrComplete", mock.Anything, mock.Anything, mock.Anything)
}

func TestExtractor_Trigger_RetryableFailureSchedulesRetry(t *testing.T) {
	t.Parallel()

	doc := uploadedStatement()
	doc.OcrAttempts = 1

	before := time.Now()

	documents := NewMockDocumentStateStore(t)
	documents.On("ByID", mock.Anything, doc.ID).Return(doc, nil)
	documents.On("TransitionState", mock.Anything, doc.ID, domain.TriggerableStates(), domain.StateOcrPending).
		Return(true, nil)
	documents.On("MarkOcrFailed", mock.Anything, doc.ID, mock.Anything, mock.MatchedBy(func(at *time.Time) bool {
		if at == nil {
			return false
		}
		// Second attempt doubles the base backoff.
		earliest := before.Add(2 * testRetryBackoff)
		return !at.Before(earliest) && at.Before(earliest.Add(5*time.Second))
	})).Return(nil)

	provider := NewMockProvider(t)
	provider.On("Extract", mock.Anything, mock.Anything).
		Return(nil, &domain.TransientIOError{Op: "submit", Err: context.DeadlineExceeded})

	extractor := newExtractor(t, documents, provider, make(chan uuid.UUID), make(chan uuid.UUID, 1))

	_, err := extractor.Trigger(t.Context(), doc.ID)
	require.NoError(t, err)
}

func TestExtractor_Trigger_TerminalAfterMaxAttempts(t *testing.T) {
	t.Parallel()

	doc := uploadedStatement()
	doc.State = domain.StateOcrFailed
	doc.OcrAttempts = testMaxAttempts - 1

	documents := NewMockDocumentStateStore(t)
	documents.On("ByID", mock.Anything, doc.ID).Return(doc, nil)
	documents.On("TransitionState", mock.Anything, doc.ID, domain.TriggerableStates(), domain.StateOcrPending).
		Return(true, nil)
	documents.On("MarkOcrFailed", mock.Anything, doc.ID, mock.Anything, (*time.Time)(nil)).Return(nil)

	provider := NewMockProvider(t)
	provider.On("Extract", mock.Anything, mock.Anything).
		Return(nil, &domain.TransientIOError{Op: "poll", Err: context.DeadlineExceeded})

	extractor := newExtractor(t, documents, provider, make(chan uuid.UUID), make(chan uuid.UUID, 1))

	_, err := extractor.Trigger(t.Context(), doc.ID)
	require.NoError(t, err)
}

func TestExtractor_Trigger_PermanentFailureNeverRetries(t *testing.T) {
	t.Parallel()

	doc := uploadedStatement()

	documents := NewMockDocumentStateStore(t)
	documents.On("ByID", mock.Anything, doc.ID).Return(doc, nil)
	documents.On("TransitionState", mock.Anything, doc.ID, domain.TriggerableStates(), domain.StateOcrPending).
		Return(true, nil)
	documents.On("MarkOcrFailed", mock.Anything, doc.ID, mock.Anything, (*time.Time)(nil)).Return(nil)

	provider := NewMockProvider(t)
	provider.On("Extract", mock.Anything, mock.Anything).
		Return(nil, &domain.PermanentProviderError{Reason: "unsupported file format"})

	extractor := newExtractor(t, documents, provider, make(chan uuid.UUID), make(chan uuid.UUID, 1))

	_, err := extractor.Trigger(t.Context(), doc.ID)
	require.NoError(t, err)
}

func TestExtractor_Trigger_ManualRetriggerResetsBudget(t *testing.T) {
	t.Parallel()

	doc := uploadedStatement()
	doc.State = domain.StateOcrFailed
	doc.OcrAttempts = testMaxAttempts

	fields := &domain.StatementFields{}

	documents := NewMockDocumentStateStore(t)
	documents.On("ByID", mock.Anything, doc.ID).Return(doc, nil)
	documents.On("ResetOcrAttempts", mock.Anything, doc.ID).Return(nil)
	documents.On("TransitionState", mock.Anything, doc.ID, domain.TriggerableStates(), domain.StateOcrPending).
		Return(true, nil)
	documents.On("MarkOcrComplete", mock.Anything, doc.ID, fields).Return(nil)

	provider := NewMockProvider(t)
	provider.On("Extract", mock.Anything, mock.Anything).Return(fields, nil)

	extractor := newExtractor(t, documents, provider, make(chan uuid.UUID), make(chan uuid.UUID, 1))

	_, err := extractor.Trigger(t.Context(), doc.ID)
	require.NoError(t, err)
}

func TestExtractor_Run_ConsumesQueueAndClosesAnalyses(t *testing.T) {
	t.Parallel()

	doc := uploadedStatement()
	fields := &domain.StatementFields{}

	documents := NewMockDocumentStateStore(t)
	documents.On("ByID", mock.Anything, doc.ID).Return(doc, nil)
	documents.On("TransitionState", mock.Anything, doc.ID, domain.TriggerableStates(), domain.StateOcrPending).
		Return(true, nil)
	documents.On("MarkOcrComplete", mock.Anything, doc.ID, fields).Return(nil)

	provider := NewMockProvider(t)
	provider.On("Extract", mock.Anything, mock.Anything).Return(fields, nil)

	extractions := make(chan uuid.UUID, 1)
	analyses := make(chan uuid.UUID, 1)

	extractor := newExtractor(t, documents, provider, extractions, analyses)

	errChan := make(chan error, 1)
	go func() {
		errChan <- extractor.Run(t.Context())
	}()

	extractions <- doc.ID

	select {
	case id := <-analyses:
		assert.Equal(t, doc.ID, id)
	case <-time.After(time.Second):
		t.Fatal("timeout: extraction result never reached the analysis queue")
	}

	close(extractions)

	select {
	case err := <-errChan:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("timeout: extractor did not stop after queue close")
	}

	_, open := <-analyses
	assert.False(t, open, "analyses channel should be closed after the extractor stops")
}
