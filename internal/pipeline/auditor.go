package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/apexlend/docpipeline/internal/domain"
	"github.com/apexlend/docpipeline/internal/infrastructure/objectstore"
)

const auditConcurrency = 8

// Auditor reconciles registry rows against actual object-store contents.
// It is strictly read-only: a missing object is flagged in the report for
// operator follow-up, never deleted or recreated.
type Auditor struct {
	log          *slog.Logger
	applications ApplicationLister
	documents    DocumentLister
	store        objectstore.Store
}

func NewAuditor(
	log *slog.Logger,
	applications ApplicationLister,
	documents DocumentLister,
	store objectstore.Store,
) *Auditor {
	return &Auditor{
		log:          log,
		applications: applications,
		documents:    documents,
		store:        store,
	}
}

func (a *Auditor) AuditApplication(ctx context.Context, applicationID uuid.UUID) (*domain.AuditReport, error) {
	docs, err := a.documents.AllByApplication(ctx, applicationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	report := &domain.AuditReport{
		ApplicationID: applicationID,
		DocumentsInDB: len(docs),
	}

	for _, doc := range docs {
		info, err := a.store.Head(ctx, doc.StorageKey)
		if err != nil {
			// The probe itself failed; report it per document and keep going.
			report.ProbeFailures = append(report.ProbeFailures, domain.ProbeFailure{
				DocumentID: doc.ID,
				StorageKey: doc.StorageKey,
				Error:      err.Error(),
			})
			continue
		}

		if !info.Exists {
			report.MissingFiles++
			report.MissingKeys = append(report.MissingKeys, doc.StorageKey)

			a.log.WarnContext(ctx, "registry row has no backing object",
				slog.String("document_id", doc.ID.String()),
				slog.String("storage_key", doc.StorageKey),
			)
			continue
		}

		report.FilesOnDisk++
	}

	report.ComputeRecoveryRate()

	return report, nil
}

// AuditAll reconciles every application, a bounded number at a time. Safe to
// run concurrently with itself and with the rest of the pipeline.
func (a *Auditor) AuditAll(ctx context.Context) ([]*domain.AuditReport, error) {
	ids, err := a.applications.IDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}

	var (
		mu      sync.Mutex
		reports = make([]*domain.AuditReport, 0, len(ids))
	)

	erg, ctx := errgroup.WithContext(ctx)
	erg.SetLimit(auditConcurrency)

	for _, id := range ids {
		erg.Go(func() error {
			report, err := a.AuditApplication(ctx, id)
			if err != nil {
				return fmt.Errorf("application %s: %w", id, err)
			}

			mu.Lock()
			reports = append(reports, report)
			mu.Unlock()

			return nil
		})
	}

	if err := erg.Wait(); err != nil {
		return reports, err
	}

	return reports, nil
}
