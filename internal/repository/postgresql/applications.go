package postgresql

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/apexlend/docpipeline/internal/domain"
)

const TableApplications = "applications"

type ApplicationsRepository struct {
	pool *pgxpool.Pool
	qb   sq.StatementBuilderType
}

func NewApplicationsRepository(pool *pgxpool.Pool) *ApplicationsRepository {
	return &ApplicationsRepository{
		pool: pool,
		qb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (r *ApplicationsRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	db := extractDB(ctx, r.pool)

	sql, args, err := r.qb.
		Select("1").
		From(TableApplications).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return false, createQueryError(err)
	}

	var one int
	err = db.QueryRow(ctx, sql, args...).Scan(&one)
	if noRows(err) {
		return false, nil
	}
	if err != nil {
		return false, scanRowError(err)
	}

	return true, nil
}

// IDs lists every known application, oldest first. Used by the full audit.
func (r *ApplicationsRepository) IDs(ctx context.Context) ([]uuid.UUID, error) {
	db := extractDB(ctx, r.pool)

	sql, args, err := r.qb.
		Select("id").
		From(TableApplications).
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

func (r *ApplicationsRepository) Create(ctx context.Context, app *domain.Application) error {
	db := extractDB(ctx, r.pool)

	sql, args, err := r.qb.
		Insert(TableApplications).
		Columns("id", "contact_id").
		Values(app.ID, app.ContactID).
		ToSql()
	if err != nil {
		return createQueryError(err)
	}

	if _, err := db.Exec(ctx, sql, args...); err != nil {
		return executeQueryError(err)
	}

	return nil
}
