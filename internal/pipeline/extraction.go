package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/apexlend/docpipeline/internal/domain"
	"github.com/apexlend/docpipeline/internal/infrastructure/ocr"
)

const maxBackoffShift = 10

// Extractor runs the OCR job state machine. The compare-and-swap transition
// into ocr_pending is the concurrency guard: however many triggers race,
// exactly one submission per document is in flight.
type Extractor struct {
	log          *slog.Logger
	documents    DocumentStateStore
	provider     ocr.Provider
	extractions  <-chan uuid.UUID
	analyses     chan<- uuid.UUID
	workers      int
	maxAttempts  int
	retryBackoff time.Duration
	now          func() time.Time
}

func NewExtractor(
	log *slog.Logger,
	documents DocumentStateStore,
	provider ocr.Provider,
	extractions <-chan uuid.UUID,
	analyses chan<- uuid.UUID,
	workers int,
	maxAttempts int,
	retryBackoff time.Duration,
) *Extractor {
	return &Extractor{
		log:          log,
		documents:    documents,
		provider:     provider,
		extractions:  extractions,
		analyses:     analyses,
		workers:      workers,
		maxAttempts:  maxAttempts,
		retryBackoff: retryBackoff,
		now:          time.Now,
	}
}

func (e *Extractor) Run(ctx context.Context) error {
	defer close(e.analyses)

	erg, ctx := errgroup.WithContext(ctx)

	for range e.workers {
		erg.Go(func() error {
			for {
				select {
				case id, ok := <-e.extractions:
					if !ok {
						return nil
					}

					if err := e.process(ctx, id); err != nil {
						e.log.ErrorContext(ctx, "failed to process extraction",
							slog.String("document_id", id.String()),
							slog.String("err", err.Error()),
						)
					}

				case <-ctx.Done():
					return ctx.Err()
				}
			}
		})
	}

	return erg.Wait()
}

// Trigger is the synchronous entry point for manual re-triggers. A document
// already pending or complete makes it a no-op returning the current state.
func (e *Extractor) Trigger(ctx context.Context, id uuid.UUID) (*domain.Document, error) {
	doc, err := e.documents.ByID(ctx, id)
	if err != nil {
		return nil, err
	}

	switch doc.State {
	case domain.StateUploaded, domain.StateOcrFailed:
	default:
		e.log.DebugContext(ctx, "trigger is a no-op",
			slog.String("document_id", id.String()),
			slog.String("state", string(doc.State)),
		)

		return doc, nil
	}

	// A terminal failure gets a fresh retry budget on manual re-trigger.
	if doc.State == domain.StateOcrFailed && doc.OcrAttempts >= e.maxAttempts {
		if err := e.documents.ResetOcrAttempts(ctx, id); err != nil {
			return nil, fmt.Errorf("failed to reset attempts: %w", err)
		}
	}

	if err := e.process(ctx, id); err != nil {
		return nil, err
	}

	return e.documents.ByID(ctx, id)
}

func (e *Extractor) process(ctx context.Context, id uuid.UUID) error {
	doc, err := e.documents.ByID(ctx, id)
	if err != nil {
		return err
	}

	ok, err := e.documents.TransitionState(ctx, id, domain.TriggerableStates(), domain.StateOcrPending)
	if err != nil {
		return fmt.Errorf("failed to transition state: %w", err)
	}

	if !ok {
		// Lost the race, or the document is already past extraction.
		e.log.DebugContext(ctx, "extraction already in flight or done",
			slog.String("document_id", id.String()),
		)

		return nil
	}

	e.log.InfoContext(ctx, "submitting document for extraction",
		slog.String("document_id", id.String()),
		slog.Int("attempt", doc.OcrAttempts+1),
	)

	fields, err := e.provider.Extract(ctx, ocr.Request{
		DocumentRef: doc.StorageKey,
		FileName:    doc.FileName,
		TypeHint:    doc.DocumentType,
	})
	if err != nil {
		return e.recordFailure(ctx, doc, err)
	}

	if err := e.documents.MarkOcrComplete(ctx, id, fields); err != nil {
		return err
	}

	e.log.InfoContext(ctx, "extraction complete", slog.String("document_id", id.String()))

	if doc.DocumentType.RequiresAnalysis() {
		select {
		case e.analyses <- id:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return nil
}

func (e *Extractor) recordFailure(ctx context.Context, doc *domain.Document, cause error) error {
	attempt := doc.OcrAttempts + 1

	var nextRetryAt *time.Time
	if domain.IsRetryable(cause) && attempt < e.maxAttempts {
		t := e.now().Add(e.backoff(attempt))
		nextRetryAt = &t
	}

	if err := e.documents.MarkOcrFailed(ctx, doc.ID, cause.Error(), nextRetryAt); err != nil {
		return fmt.Errorf("failed to record extraction failure: %w", err)
	}

	if nextRetryAt == nil {
		e.log.ErrorContext(ctx, "extraction failed terminally",
			slog.String("document_id", doc.ID.String()),
			slog.Int("attempts", attempt),
			slog.String("err", cause.Error()),
		)
	} else {
		e.log.InfoContext(ctx, "extraction failed, retry scheduled",
			slog.String("document_id", doc.ID.String()),
			slog.Int("attempt", attempt),
			slog.Time("next_retry_at", *nextRetryAt),
			slog.String("err", cause.Error()),
		)
	}

	return nil
}

// backoff doubles per attempt starting from the configured base.
func (e *Extractor) backoff(attempt int) time.Duration {
	shift := attempt - 1
	if shift > maxBackoffShift {
		shift = maxBackoffShift
	}

	return e.retryBackoff << shift
}
