package domain

import (
	"time"

	"github.com/google/uuid"
)

type TransactionCategory string

const (
	CategoryDeposit    TransactionCategory = "deposit"
	CategoryWithdrawal TransactionCategory = "withdrawal"
	CategoryFee        TransactionCategory = "fee"
	CategoryNSF        TransactionCategory = "nsf"
)

// Transaction is one statement line as extracted by the provider.
// Amounts are integer cents, signed: deposits positive, withdrawals negative.
type Transaction struct {
	Date        time.Time           `csv:"date"        json:"date"`
	Description string              `csv:"description" json:"description"`
	Category    TransactionCategory `csv:"category"    json:"category"`
	AmountCents int64               `csv:"amount_cents" json:"amount_cents"`
}

// StatementFields is the structured result of a successful extraction of a
// bank statement. Pointer fields are nil when the provider could not read
// them; the deriver treats those as missing inputs, not as failures.
type StatementFields struct {
	BankName      string        `json:"bank_name,omitempty"`
	AccountNumber string        `json:"account_number,omitempty"`
	AccountHolder string        `json:"account_holder,omitempty"`
	PeriodStart   *time.Time    `json:"period_start,omitempty"`
	PeriodEnd     *time.Time    `json:"period_end,omitempty"`
	OpeningCents  *int64        `json:"opening_cents,omitempty"`
	ClosingCents  *int64        `json:"closing_cents,omitempty"`
	DailyCents    []int64       `json:"daily_cents,omitempty"`
	Transactions  []Transaction `json:"transactions,omitempty"`
}

type CashFlowTrend string

const (
	TrendPositive CashFlowTrend = "positive"
	TrendNegative CashFlowTrend = "negative"
	TrendStable   CashFlowTrend = "stable"
	TrendVolatile CashFlowTrend = "volatile"
)

type ConfidenceLevel string

const (
	ConfidenceLow    ConfidenceLevel = "low"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceHigh   ConfidenceLevel = "high"
)

// BankingAnalysis is the derived financial picture of one application.
// Exactly one row exists per application: a new derivation replaces the
// previous one wholesale. DocumentID records which document produced it and
// is informational only; retention clears it when that document is deleted.
type BankingAnalysis struct {
	ID            uuid.UUID  `db:"id"             json:"id"`
	ApplicationID uuid.UUID  `db:"application_id" json:"application_id"`
	DocumentID    *uuid.UUID `db:"document_id"    json:"document_id"`

	OpeningCents int64 `db:"opening_cents" json:"opening_cents"`
	ClosingCents int64 `db:"closing_cents" json:"closing_cents"`
	AverageCents int64 `db:"average_cents" json:"average_cents"`
	MinCents     int64 `db:"min_cents"     json:"min_cents"`
	MaxCents     int64 `db:"max_cents"     json:"max_cents"`

	TotalDepositsCents    int64 `db:"total_deposits_cents"    json:"total_deposits_cents"`
	TotalWithdrawalsCents int64 `db:"total_withdrawals_cents" json:"total_withdrawals_cents"`
	NetCashFlowCents      int64 `db:"net_cash_flow_cents"     json:"net_cash_flow_cents"`
	DepositCount          int   `db:"deposit_count"           json:"deposit_count"`
	WithdrawalCount       int   `db:"withdrawal_count"        json:"withdrawal_count"`

	CashFlowTrend CashFlowTrend `db:"cash_flow_trend" json:"cash_flow_trend"`
	NSFCount      int           `db:"nsf_count"       json:"nsf_count"`
	NSFFeesCents  int64         `db:"nsf_fees_cents"  json:"nsf_fees_cents"`

	FinancialHealthScore float64         `db:"financial_health_score" json:"financial_health_score"`
	ConfidenceLevel      ConfidenceLevel `db:"confidence_level"       json:"confidence_level"`
	RiskFactors          []string        `db:"risk_factors"           json:"risk_factors,omitempty"`
	MissingInputs        []string        `db:"missing_inputs"         json:"missing_inputs,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
