package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// RetryScanner advances the persisted job state on a tick: failed documents
// whose backoff elapsed and uploads that never made it onto the in-process
// queue are re-enqueued. Retries therefore survive process restarts.
type RetryScanner struct {
	log          *slog.Logger
	documents    RetryLister
	scanInterval time.Duration
	extractions  chan<- uuid.UUID
	now          func() time.Time
}

func NewRetryScanner(
	log *slog.Logger,
	documents RetryLister,
	scanInterval time.Duration,
	extractions chan<- uuid.UUID,
) *RetryScanner {
	return &RetryScanner{
		log:          log,
		documents:    documents,
		scanInterval: scanInterval,
		extractions:  extractions,
		now:          time.Now,
	}
}

// Run ticks until the context is cancelled. The extractions channel is
// shared with the ingestor, so nobody closes it; consumers stop on ctx.
func (s *RetryScanner) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.scanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.log.DebugContext(ctx, "retry scan cycle started")

			if err := s.scan(ctx); err != nil {
				s.log.ErrorContext(ctx, "failed to scan for due documents", slog.String("err", err.Error()))
			}

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *RetryScanner) scan(ctx context.Context) error {
	now := s.now()

	due, err := s.documents.RetryDue(ctx, now)
	if err != nil {
		return fmt.Errorf("failed to list due retries: %w", err)
	}

	stale, err := s.documents.StaleUploaded(ctx, now.Add(-s.scanInterval))
	if err != nil {
		return fmt.Errorf("failed to list stale uploads: %w", err)
	}

	for _, id := range append(due, stale...) {
		select {
		case s.extractions <- id:
			s.log.DebugContext(ctx, "re-enqueued document", slog.String("document_id", id.String()))
		default:
			// Queue full; the document stays due and the next tick retries.
			return nil
		}
	}

	return nil
}
