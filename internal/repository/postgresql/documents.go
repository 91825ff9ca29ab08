package postgresql

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/apexlend/docpipeline/internal/domain"
)

const TableDocuments = "documents"

var documentColumns = []string{
	"id",
	"application_id",
	"document_type",
	"file_name",
	"storage_key",
	"size_bytes",
	"mime_type",
	"checksum",
	"state",
	"ocr_attempts",
	"ocr_fields",
	"next_retry_at",
	"last_error",
	"created_at",
	"updated_at",
}

type DocumentsRepository struct {
	pool *pgxpool.Pool
	qb   sq.StatementBuilderType
}

func NewDocumentsRepository(pool *pgxpool.Pool) *DocumentsRepository {
	return &DocumentsRepository{
		pool: pool,
		qb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (r *DocumentsRepository) Create(ctx context.Context, doc *domain.Document) error {
	db := extractDB(ctx, r.pool)

	sql, args, err := r.qb.
		Insert(TableDocuments).
		Columns(
			"id",
			"application_id",
			"document_type",
			"file_name",
			"storage_key",
			"size_bytes",
			"mime_type",
			"checksum",
			"state",
		).
		Values(
			doc.ID,
			doc.ApplicationID,
			doc.DocumentType,
			doc.FileName,
			doc.StorageKey,
			doc.SizeBytes,
			doc.MimeType,
			doc.Checksum,
			doc.State,
		).
		ToSql()
	if err != nil {
		return createQueryError(err)
	}

	if _, err := db.Exec(ctx, sql, args...); err != nil {
		return executeQueryError(err)
	}

	return nil
}

func (r *DocumentsRepository) ByID(ctx context.Context, id uuid.UUID) (*domain.Document, error) {
	db := extractDB(ctx, r.pool)

	sql, args, err := r.qb.
		Select(documentColumns...).
		From(TableDocuments).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, createQueryError(err)
	}

	rows, err := db.Query(ctx, sql, args...)
	if err != nil {
		return nil, executeQueryError(err)
	}

	doc, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByNameLax[domain.Document])
	if noRows(err) {
		return nil, &domain.NotFoundError{Resource: "document", ID: id.String()}
	}
	if err != nil {
		return nil, collectRowsError(err)
	}

	return doc, nil
}

func (r *DocumentsRepository) ByApplication(
	ctx context.Context,
	applicationID uuid.UUID,
	limit, offset uint64,
) ([]*domain.Document, int, error) {
	db := extractDB(ctx, r.pool)

	sql, args, err := r.qb.
		Select("COUNT(*)").
		From(TableDocuments).
		Where(sq.Eq{"application_id": applicationID}).
		ToSql()
	if err != nil {
		return nil, -1, createQueryError(err)
	}

	var total int
	if err := db.QueryRow(ctx, sql, args...).Scan(&total); err != nil {
		return nil, -1, scanRowError(err)
	}

	sql, args, err = r.qb.
		Select(documentColumns...).
		From(TableDocuments).
		Where(sq.Eq{"application_id": applicationID}).
		OrderBy("created_at ASC").
		Limit(limit).
		Offset(offset).
		ToSql()
	if err != nil {
		return nil, -1, createQueryError(err)
	}

	rows, err := db.Query(ctx, sql, args...)
	if err != nil {
		return nil, -1, executeQueryError(err)
	}

	docs, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByNameLax[domain.Document])
	if err != nil {
		return nil, -1, collectRowsError(err)
	}

	return docs, total, nil
}

// AllByApplication lists every document of one application without paging.
// The auditor reconciles them all in one pass.
func (r *DocumentsRepository) AllByApplication(
	ctx context.Context,
	applicationID uuid.UUID,
) ([]*domain.Document, error) {
	db := extractDB(ctx, r.pool)

	sql, args, err := r.qb.
		Select(documentColumns...).
		From(TableDocuments).
		Where(sq.Eq{"application_id": applicationID}).
		OrderBy("created_at ASC").
		ToSql()
	if err != nil {
		return nil, createQueryError(err)
	}

	rows, err := db.Query(ctx, sql, args...)
	if err != nil {
		return nil, executeQueryError(err)
	}

	docs, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByNameLax[domain.Document])
	if err != nil {
		return nil, collectRowsError(err)
	}

	return docs, nil
}

// TransitionState applies an optimistic compare-and-swap on the state column.
// It reports false when the persisted state no longer matches any of the
// expected preconditions, which collapses concurrent triggers to one job.
func (r *DocumentsRepository) TransitionState(
	ctx context.Context,
	id uuid.UUID,
	from []domain.State,
	to domain.State,
) (bool, error) {
	db := extractDB(ctx, r.pool)

	sql, args, err := r.qb.
		Update(TableDocuments).
		Set("state", to).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": id}).
		Where(sq.Eq{"state": from}).
		ToSql()
	if err != nil {
		return false, createQueryError(err)
	}

	tag, err := db.Exec(ctx, sql, args...)
	if err != nil {
		return false, executeQueryError(err)
	}

	return tag.RowsAffected() > 0, nil
}

func (r *DocumentsRepository) MarkOcrComplete(
	ctx context.Context,
	id uuid.UUID,
	fields *domain.StatementFields,
) error {
	db := extractDB(ctx, r.pool)

	sql, args, err := r.qb.
		Update(TableDocuments).
		Set("state", domain.StateOcrComplete).
		Set("ocr_fields", fields).
		Set("next_retry_at", nil).
		Set("last_error", "").
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": id, "state": domain.StateOcrPending}).
		ToSql()
	if err != nil {
		return createQueryError(err)
	}

	tag, err := db.Exec(ctx, sql, args...)
	if err != nil {
		return executeQueryError(err)
	}

	if tag.RowsAffected() == 0 {
		return &domain.ConsistencyError{
			Detail: "document " + id.String() + " left ocr_pending before completion was recorded",
		}
	}

	return nil
}

// MarkOcrFailed increments the attempt counter and records the failure.
// A nil nextRetryAt means the failure is terminal until re-triggered manually.
func (r *DocumentsRepository) MarkOcrFailed(
	ctx context.Context,
	id uuid.UUID,
	lastError string,
	nextRetryAt *time.Time,
) error {
	db := extractDB(ctx, r.pool)

	sql, args, err := r.qb.
		Update(TableDocuments).
		Set("state", domain.StateOcrFailed).
		Set("ocr_attempts", sq.Expr("ocr_attempts + 1")).
		Set("last_error", lastError).
		Set("next_retry_at", nextRetryAt).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": id, "state": domain.StateOcrPending}).
		ToSql()
	if err != nil {
		return createQueryError(err)
	}

	if _, err := db.Exec(ctx, sql, args...); err != nil {
		return executeQueryError(err)
	}

	return nil
}

// RetryDue lists failed documents whose backoff has elapsed.
func (r *DocumentsRepository) RetryDue(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	db := extractDB(ctx, r.pool)

	sql, args, err := r.qb.
		Select("id").
		From(TableDocuments).
		Where(sq.Eq{"state": domain.StateOcrFailed}).
		Where(sq.LtOrEq{"next_retry_at": now}).
		OrderBy("next_retry_at ASC").
		ToSql()
	if err != nil {
		return nil, createQueryError(err)
	}

	rows, err := db.Query(ctx, sql, args...)
	if err != nil {
		return nil, executeQueryError(err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, collectRowsError(err)
	}

	return ids, nil
}

// StaleUploaded lists extraction-eligible documents still sitting in
// uploaded past the given age. The in-process handoff after ingest is
// best-effort; this query is the durable path that guarantees pickup.
func (r *DocumentsRepository) StaleUploaded(ctx context.Context, olderThan time.Time) ([]uuid.UUID, error) {
	db := extractDB(ctx, r.pool)

	sql, args, err := r.qb.
		Select("id").
		From(TableDocuments).
		Where(sq.Eq{"state": domain.StateUploaded}).
		Where(sq.Eq{"document_type": domain.ExtractableTypes()}).
		Where(sq.LtOrEq{"created_at": olderThan}).
		OrderBy("created_at ASC").
		ToSql()
	if err != nil {
		return nil, createQueryError(err)
	}

	rows, err := db.Query(ctx, sql, args...)
	if err != nil {
		return nil, executeQueryError(err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, collectRowsError(err)
	}

	return ids, nil
}

// ResetOcrAttempts clears the attempt counter so a manual re-trigger of a
// terminally failed document gets a fresh retry budget.
func (r *DocumentsRepository) ResetOcrAttempts(ctx context.Context, id uuid.UUID) error {
	db := extractDB(ctx, r.pool)

	sql, args, err := r.qb.
		Update(TableDocuments).
		Set("ocr_attempts", 0).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return createQueryError(err)
	}

	if _, err := db.Exec(ctx, sql, args...); err != nil {
		return executeQueryError(err)
	}

	return nil
}

// ResetInFlight returns documents stuck in ocr_pending after a crash to a
// retryable state so the next scan picks them up.
func (r *DocumentsRepository) ResetInFlight(ctx context.Context) (int64, error) {
	db := extractDB(ctx, r.pool)

	sql, args, err := r.qb.
		Update(TableDocuments).
		Set("state", domain.StateOcrFailed).
		Set("last_error", "extraction interrupted by restart").
		Set("next_retry_at", sq.Expr("now()")).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"state": domain.StateOcrPending}).
		ToSql()
	if err != nil {
		return 0, createQueryError(err)
	}

	tag, err := db.Exec(ctx, sql, args...)
	if err != nil {
		return 0, executeQueryError(err)
	}

	return tag.RowsAffected(), nil
}
