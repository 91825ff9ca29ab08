package postgresql

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/apexlend/docpipeline/internal/domain"
)

const TableAnalyses = "banking_analyses"

var analysisColumns = []string{
	"id",
	"application_id",
	"document_id",
	"opening_cents",
	"closing_cents",
	"average_cents",
	"min_cents",
	"max_cents",
	"total_deposits_cents",
	"total_withdrawals_cents",
	"net_cash_flow_cents",
	"deposit_count",
	"withdrawal_count",
	"cash_flow_trend",
	"nsf_count",
	"nsf_fees_cents",
	"financial_health_score",
	"confidence_level",
	"risk_factors",
	"missing_inputs",
	"created_at",
	"updated_at",
}

type AnalysesRepository struct {
	pool *pgxpool.Pool
	qb   sq.StatementBuilderType
}

func NewAnalysesRepository(pool *pgxpool.Pool) *AnalysesRepository {
	return &AnalysesRepository{
		pool: pool,
		qb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Upsert writes the analysis keyed by application_id. Concurrent completions
// for the same application serialize here: last committed write wins, no
// second row is ever created.
func (r *AnalysesRepository) Upsert(ctx context.Context, a *domain.BankingAnalysis) error {
	db := extractDB(ctx, r.pool)

	sql, args, err := r.upsertQuery(a)
	if err != nil {
		return createQueryError(err)
	}

	if _, err := db.Exec(ctx, sql, args...); err != nil {
		return executeQueryError(err)
	}

	return nil
}

func (r *AnalysesRepository) upsertQuery(a *domain.BankingAnalysis) (string, []any, error) {
	return r.qb.
		Insert(TableAnalyses).
		Columns(
			"id",
			"application_id",
			"document_id",
			"opening_cents",
			"closing_cents",
			"average_cents",
			"min_cents",
			"max_cents",
			"total_deposits_cents",
			"total_withdrawals_cents",
			"net_cash_flow_cents",
			"deposit_count",
			"withdrawal_count",
			"cash_flow_trend",
			"nsf_count",
			"nsf_fees_cents",
			"financial_health_score",
			"confidence_level",
			"risk_factors",
			"missing_inputs",
		).
		Values(
			a.ID,
			a.ApplicationID,
			a.DocumentID,
			a.OpeningCents,
			a.ClosingCents,
			a.AverageCents,
			a.MinCents,
			a.MaxCents,
			a.TotalDepositsCents,
			a.TotalWithdrawalsCents,
			a.NetCashFlowCents,
			a.DepositCount,
			a.WithdrawalCount,
			a.CashFlowTrend,
			a.NSFCount,
			a.NSFFeesCents,
			a.FinancialHealthScore,
			a.ConfidenceLevel,
			textArray(a.RiskFactors),
			textArray(a.MissingInputs),
		).
		Suffix(`ON CONFLICT (application_id) DO UPDATE SET
			document_id = EXCLUDED.document_id,
			opening_cents = EXCLUDED.opening_cents,
			closing_cents = EXCLUDED.closing_cents,
			average_cents = EXCLUDED.average_cents,
			min_cents = EXCLUDED.min_cents,
			max_cents = EXCLUDED.max_cents,
			total_deposits_cents = EXCLUDED.total_deposits_cents,
			total_withdrawals_cents = EXCLUDED.total_withdrawals_cents,
			net_cash_flow_cents = EXCLUDED.net_cash_flow_cents,
			deposit_count = EXCLUDED.deposit_count,
			withdrawal_count = EXCLUDED.withdrawal_count,
			cash_flow_trend = EXCLUDED.cash_flow_trend,
			nsf_count = EXCLUDED.nsf_count,
			nsf_fees_cents = EXCLUDED.nsf_fees_cents,
			financial_health_score = EXCLUDED.financial_health_score,
			confidence_level = EXCLUDED.confidence_level,
			risk_factors = EXCLUDED.risk_factors,
			missing_inputs = EXCLUDED.missing_inputs,
			updated_at = now()
		`).
		ToSql()
}

// textArray coalesces nil to an empty slice: pgx encodes a nil []string as
// SQL NULL, which the NOT NULL array columns reject.
func textArray(ss []string) []string {
	if ss == nil {
		return []string{}
	}

	return ss
}

func (r *AnalysesRepository) ByApplication(
	ctx context.Context,
	applicationID uuid.UUID,
) (*domain.BankingAnalysis, error) {
	db := extractDB(ctx, r.pool)

	sql, args, err := r.qb.
		Select(analysisColumns...).
		From(TableAnalyses).
		Where(sq.Eq{"application_id": applicationID}).
		ToSql()
	if err != nil {
		return nil, createQueryError(err)
	}

	rows, err := db.Query(ctx, sql, args...)
	if err != nil {
		return nil, executeQueryError(err)
	}

	analysis, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByNameLax[domain.BankingAnalysis])
	if noRows(err) {
		return nil, &domain.NotFoundError{Resource: "banking analysis", ID: applicationID.String()}
	}
	if err != nil {
		return nil, collectRowsError(err)
	}

	return analysis, nil
}
