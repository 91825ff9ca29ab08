package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/apexlend/docpipeline/internal/domain"
)

// Deriver consumes completed extractions and maintains the singleton banking
// analysis per application. Replacement is wholesale: the latest completed
// derivation wins, the upsert serializes concurrent completions.
type Deriver struct {
	log       *slog.Logger
	documents DocumentProvider
	analyses  AnalysisUpserter
	txm       Transactor
	queue     <-chan uuid.UUID
	workers   int
	weights   ScoreWeights
}

func NewDeriver(
	log *slog.Logger,
	documents DocumentProvider,
	analyses AnalysisUpserter,
	txm Transactor,
	queue <-chan uuid.UUID,
	workers int,
	weights ScoreWeights,
) *Deriver {
	return &Deriver{
		log:       log,
		documents: documents,
		analyses:  analyses,
		txm:       txm,
		queue:     queue,
		workers:   workers,
		weights:   weights,
	}
}

func (d *Deriver) Run(ctx context.Context) error {
	erg, ctx := errgroup.WithContext(ctx)

	for range d.workers {
		erg.Go(func() error {
			for {
				select {
				case id, ok := <-d.queue:
					if !ok {
						return nil
					}

					if _, err := d.Derive(ctx, id); err != nil {
						d.log.ErrorContext(ctx, "failed to derive analysis",
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

// Derive recomputes the application's analysis from one completed document.
// Re-running with the same input is idempotent: the upsert replaces the row
// in place, it never creates a second one.
func (d *Deriver) Derive(ctx context.Context, documentID uuid.UUID) (*domain.BankingAnalysis, error) {
	doc, err := d.documents.ByID(ctx, documentID)
	if err != nil {
		return nil, err
	}

	if !doc.DocumentType.RequiresAnalysis() {
		return nil, &domain.ValidationError{
			Field:  "document_type",
			Reason: fmt.Sprintf("%s does not feed the banking analysis", doc.DocumentType),
		}
	}

	if doc.State != domain.StateOcrComplete && doc.State != domain.StateVerified {
		return nil, &domain.ValidationError{
			Field:  "state",
			Reason: fmt.Sprintf("document is %s, not ocr_complete", doc.State),
		}
	}

	analysis := DeriveMetrics(doc, d.weights)
	analysis.ID = uuid.New()

	err = d.txm.WithTransaction(ctx, func(ctx context.Context) error {
		return d.analyses.Upsert(ctx, analysis)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert analysis: %w", err)
	}

	d.log.InfoContext(ctx, "banking analysis derived",
		slog.String("application_id", analysis.ApplicationID.String()),
		slog.String("document_id", documentID.String()),
		slog.Int64("net_cash_flow_cents", analysis.NetCashFlowCents),
		slog.Int("nsf_count", analysis.NSFCount),
		slog.Float64("health_score", analysis.FinancialHealthScore),
		slog.String("confidence", string(analysis.ConfidenceLevel)),
	)

	return analysis, nil
}
