package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/apexlend/docpipeline/internal/domain"
)

type ApplicationChecker interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

type ApplicationLister interface {
	IDs(ctx context.Context) ([]uuid.UUID, error)
}

type DocumentCreator interface {
	Create(ctx context.Context, doc *domain.Document) error
}

type DocumentProvider interface {
	ByID(ctx context.Context, id uuid.UUID) (*domain.Document, error)
}

type DocumentLister interface {
	AllByApplication(ctx context.Context, applicationID uuid.UUID) ([]*domain.Document, error)
}

// DocumentStateStore is the persisted OCR job state machine.
type DocumentStateStore interface {
	DocumentProvider
	TransitionState(ctx context.Context, id uuid.UUID, from []domain.State, to domain.State) (bool, error)
	MarkOcrComplete(ctx context.Context, id uuid.UUID, fields *domain.StatementFields) error
	MarkOcrFailed(ctx context.Context, id uuid.UUID, lastError string, nextRetryAt *time.Time) error
	ResetOcrAttempts(ctx context.Context, id uuid.UUID) error
}

// RetryLister surfaces documents whose persisted retry schedule is due.
type RetryLister interface {
	RetryDue(ctx context.Context, now time.Time) ([]uuid.UUID, error)
	StaleUploaded(ctx context.Context, olderThan time.Time) ([]uuid.UUID, error)
}

type AnalysisUpserter interface {
	Upsert(ctx context.Context, analysis *domain.BankingAnalysis) error
}

type PolicyProvider interface {
	EnabledPolicies(ctx context.Context) ([]*domain.RetentionPolicy, error)
}

type ExpiredDeleter interface {
	DeleteExpired(ctx context.Context, table string, cutoff time.Time, filterSQL string, now time.Time) (int64, error)
}

type Transactor interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
