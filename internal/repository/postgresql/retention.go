package postgresql

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/apexlend/docpipeline/internal/domain"
)

const (
	TablePolicies = "retention_policies"
	TableHolds    = "legal_holds"
)

// holdGuard excludes rows covered by an unexpired legal hold. Both swept
// tables carry application_id, so one predicate serves them all; contact
// scope resolves through the applications table.
const holdGuard = `NOT EXISTS (
	SELECT 1 FROM legal_holds h
	WHERE h.expires_at > ?
	  AND (
		(h.scope = 'application' AND h.reference_id = %[1]s.application_id)
		OR
		(h.scope = 'contact' AND h.reference_id IN (
			SELECT a.contact_id FROM applications a WHERE a.id = %[1]s.application_id
		))
	  )
)`

type RetentionRepository struct {
	pool *pgxpool.Pool
	qb   sq.StatementBuilderType
}

func NewRetentionRepository(pool *pgxpool.Pool) *RetentionRepository {
	return &RetentionRepository{
		pool: pool,
		qb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (r *RetentionRepository) Policies(ctx context.Context) ([]*domain.RetentionPolicy, error) {
	return r.policies(ctx, nil)
}

func (r *RetentionRepository) EnabledPolicies(ctx context.Context) ([]*domain.RetentionPolicy, error) {
	return r.policies(ctx, sq.Eq{"enabled": true})
}

func (r *RetentionRepository) policies(ctx context.Context, pred any) ([]*domain.RetentionPolicy, error) {
	db := extractDB(ctx, r.pool)

	q := r.qb.
		Select(
			"target",
			"days",
			"filter_sql",
			"enabled",
			"created_at",
			"updated_at",
		).
		From(TablePolicies).
		OrderBy("target ASC")
	if pred != nil {
		q = q.Where(pred)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, createQueryError(err)
	}

	rows, err := db.Query(ctx, sql, args...)
	if err != nil {
		return nil, executeQueryError(err)
	}

	policies, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByNameLax[domain.RetentionPolicy])
	if err != nil {
		return nil, collectRowsError(err)
	}

	return policies, nil
}

// UpsertPolicy creates or replaces the policy for its target. Targets are
// unique: operators reconfigure a table's retention, they do not stack rules.
func (r *RetentionRepository) UpsertPolicy(ctx context.Context, p *domain.RetentionPolicy) error {
	db := extractDB(ctx, r.pool)

	sql, args, err := r.qb.
		Insert(TablePolicies).
		Columns("target", "days", "filter_sql", "enabled").
		Values(p.Target, p.Days, p.FilterSQL, p.Enabled).
		Suffix(`ON CONFLICT (target) DO UPDATE SET
			days = EXCLUDED.days,
			filter_sql = EXCLUDED.filter_sql,
			enabled = EXCLUDED.enabled,
			updated_at = now()
		`).
		ToSql()
	if err != nil {
		return createQueryError(err)
	}

	if _, err := db.Exec(ctx, sql, args...); err != nil {
		return executeQueryError(err)
	}

	return nil
}

func (r *RetentionRepository) Holds(ctx context.Context) ([]*domain.LegalHold, error) {
	db := extractDB(ctx, r.pool)

	sql, args, err := r.qb.
		Select(
			"id",
			"scope",
			"reference_id",
			"reason",
			"expires_at",
			"created_at",
		).
		From(TableHolds).
		OrderBy("created_at ASC").
		ToSql()
	if err != nil {
		return nil, createQueryError(err)
	}

	rows, err := db.Query(ctx, sql, args...)
	if err != nil {
		return nil, executeQueryError(err)
	}

	holds, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByNameLax[domain.LegalHold])
	if err != nil {
		return nil, collectRowsError(err)
	}

	return holds, nil
}

func (r *RetentionRepository) CreateHold(ctx context.Context, h *domain.LegalHold) error {
	db := extractDB(ctx, r.pool)

	sql, args, err := r.qb.
		Insert(TableHolds).
		Columns("id", "scope", "reference_id", "reason", "expires_at").
		Values(h.ID, h.Scope, h.ReferenceID, h.Reason, h.ExpiresAt).
		ToSql()
	if err != nil {
		return createQueryError(err)
	}

	if _, err := db.Exec(ctx, sql, args...); err != nil {
		return executeQueryError(err)
	}

	return nil
}

func (r *RetentionRepository) DeleteHold(ctx context.Context, id uuid.UUID) error {
	db := extractDB(ctx, r.pool)

	sql, args, err := r.qb.
		Delete(TableHolds).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return createQueryError(err)
	}

	tag, err := db.Exec(ctx, sql, args...)
	if err != nil {
		return executeQueryError(err)
	}

	if tag.RowsAffected() == 0 {
		return &domain.NotFoundError{Resource: "legal hold", ID: id.String()}
	}

	return nil
}

// DeleteExpired removes rows of table older than cutoff, skipping any row
// guarded by an unexpired hold. filterSQL is the policy's operator-written
// predicate, appended verbatim; it comes from configuration, not request
// input. The predicate form makes re-runs naturally idempotent.
func (r *RetentionRepository) DeleteExpired(
	ctx context.Context,
	table string,
	cutoff time.Time,
	filterSQL string,
	now time.Time,
) (int64, error) {
	db := extractDB(ctx, r.pool)

	sql, args, err := r.deleteExpiredQuery(table, cutoff, filterSQL, now)
	if err != nil {
		return 0, createQueryError(err)
	}

	tag, err := db.Exec(ctx, sql, args...)
	if err != nil {
		return 0, executeQueryError(err)
	}

	return tag.RowsAffected(), nil
}

func (r *RetentionRepository) deleteExpiredQuery(
	table string,
	cutoff time.Time,
	filterSQL string,
	now time.Time,
) (string, []any, error) {
	q := r.qb.
		Delete(table).
		Where(sq.Lt{table + ".created_at": cutoff}).
		Where(sq.Expr(guardFor(table), now))
	if filterSQL != "" {
		q = q.Where(sq.Expr("(" + filterSQL + ")"))
	}

	return q.ToSql()
}

func guardFor(table string) string {
	return fmt.Sprintf(holdGuard, table)
}
