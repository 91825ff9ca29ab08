package pipeline

import (
	"fmt"
	"sort"
	"time"

	"github.com/apexlend/docpipeline/internal/domain"
)

// ScoreWeights configures the composite financial health score. The function
// over them stays pure and reproducible: identical fields and weights always
// yield the identical score.
type ScoreWeights struct {
	Balance  float64
	CashFlow float64
	NSF      float64
	Trend    float64
}

func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{
		Balance:  0.35,
		CashFlow: 0.30,
		NSF:      0.20,
		Trend:    0.15,
	}
}

const (
	missingOpening      = "opening_balance"
	missingClosing      = "closing_balance"
	missingTransactions = "transactions"
	missingPeriod       = "statement_period"
)

// stableBandPermille: |net| below 2% of average balance counts as flat.
const stableBandPermille = 20

// DeriveMetrics turns one document's extracted statement fields into the
// application's banking analysis. It never fails: absent required inputs
// produce a partial record marked low confidence, malformed values are
// dropped and surface as risk factors.
func DeriveMetrics(doc *domain.Document, weights ScoreWeights) *domain.BankingAnalysis {
	docID := doc.ID
	a := &domain.BankingAnalysis{
		ApplicationID: doc.ApplicationID,
		DocumentID:    &docID,
		CashFlowTrend: domain.TrendStable,
		// Empty, not nil: nil slices bind as SQL NULL and the columns are
		// NOT NULL.
		RiskFactors:   []string{},
		MissingInputs: []string{},
	}

	fields := doc.OcrFields
	if fields == nil {
		fields = &domain.StatementFields{}
	}

	txs, dropped := cleanTransactions(fields, a)

	deriveBalances(fields, txs, a)
	deriveAggregates(txs, a)
	deriveNSF(txs, a)
	a.CashFlowTrend = classifyTrend(txs, a)

	collectMissing(fields, a)
	deriveRiskFactors(fields, a)

	a.FinancialHealthScore = healthScore(a, weights)
	a.ConfidenceLevel = confidence(a, dropped)

	return a
}

// cleanTransactions drops lines the provider mangled, recording each drop as
// a risk factor rather than failing the derivation.
func cleanTransactions(fields *domain.StatementFields, a *domain.BankingAnalysis) ([]domain.Transaction, int) {
	txs := make([]domain.Transaction, 0, len(fields.Transactions))

	dropped := 0
	for _, tx := range fields.Transactions {
		if tx.Date.IsZero() || tx.AmountCents == 0 && tx.Category == "" {
			dropped++
			continue
		}

		txs = append(txs, tx)
	}

	if dropped > 0 {
		a.RiskFactors = append(a.RiskFactors,
			fmt.Sprintf("%d unparseable transaction(s) excluded", dropped))
	}

	sort.SliceStable(txs, func(i, j int) bool { return txs[i].Date.Before(txs[j].Date) })

	return txs, dropped
}

func deriveBalances(fields *domain.StatementFields, txs []domain.Transaction, a *domain.BankingAnalysis) {
	if fields.OpeningCents != nil {
		a.OpeningCents = *fields.OpeningCents
	}

	if fields.ClosingCents != nil {
		a.ClosingCents = *fields.ClosingCents
	}

	daily := fields.DailyCents
	if len(daily) == 0 && fields.OpeningCents != nil {
		// Reconstruct running balances from the opening balance.
		balance := *fields.OpeningCents
		for _, tx := range txs {
			balance += tx.AmountCents
			daily = append(daily, balance)
		}
	}

	if len(daily) == 0 {
		return
	}

	var sum, minB, maxB int64
	minB, maxB = daily[0], daily[0]
	for _, b := range daily {
		sum += b
		if b < minB {
			minB = b
		}
		if b > maxB {
			maxB = b
		}
	}

	a.AverageCents = sum / int64(len(daily))
	a.MinCents = minB
	a.MaxCents = maxB
}

func deriveAggregates(txs []domain.Transaction, a *domain.BankingAnalysis) {
	for _, tx := range txs {
		if tx.AmountCents > 0 {
			a.TotalDepositsCents += tx.AmountCents
			a.DepositCount++
		} else if tx.AmountCents < 0 {
			a.TotalWithdrawalsCents += -tx.AmountCents
			a.WithdrawalCount++
		}
	}

	a.NetCashFlowCents = a.TotalDepositsCents - a.TotalWithdrawalsCents
}

func deriveNSF(txs []domain.Transaction, a *domain.BankingAnalysis) {
	for _, tx := range txs {
		if tx.Category != domain.CategoryNSF {
			continue
		}

		a.NSFCount++
		if tx.AmountCents < 0 {
			a.NSFFeesCents += -tx.AmountCents
		}
	}
}

// classifyTrend looks at the sign and magnitude of net change per observed
// month. Uniform signs trend positive or negative, small totals are stable,
// mixed large swings are volatile.
func classifyTrend(txs []domain.Transaction, a *domain.BankingAnalysis) domain.CashFlowTrend {
	if len(txs) == 0 {
		return domain.TrendStable
	}

	nets := make(map[time.Month]int64)
	var months []time.Month
	for _, tx := range txs {
		m := tx.Date.Month()
		if _, ok := nets[m]; !ok {
			months = append(months, m)
		}
		nets[m] += tx.AmountCents
	}

	var positives, negatives int
	for _, m := range months {
		switch {
		case nets[m] > 0:
			positives++
		case nets[m] < 0:
			negatives++
		}
	}

	band := a.AverageCents / 1000 * stableBandPermille
	if band < 0 {
		band = -band
	}

	net := a.NetCashFlowCents
	if net < 0 {
		net = -net
	}

	switch {
	case net <= band:
		return domain.TrendStable
	case positives > 0 && negatives == 0:
		return domain.TrendPositive
	case negatives > 0 && positives == 0:
		return domain.TrendNegative
	default:
		return domain.TrendVolatile
	}
}

func collectMissing(fields *domain.StatementFields, a *domain.BankingAnalysis) {
	if fields.OpeningCents == nil {
		a.MissingInputs = append(a.MissingInputs, missingOpening)
	}

	if fields.ClosingCents == nil {
		a.MissingInputs = append(a.MissingInputs, missingClosing)
	}

	if len(fields.Transactions) == 0 {
		a.MissingInputs = append(a.MissingInputs, missingTransactions)
	}

	if fields.PeriodStart == nil || fields.PeriodEnd == nil {
		a.MissingInputs = append(a.MissingInputs, missingPeriod)
	}
}

func deriveRiskFactors(fields *domain.StatementFields, a *domain.BankingAnalysis) {
	if fields.PeriodStart != nil && fields.PeriodEnd != nil &&
		fields.PeriodEnd.Before(*fields.PeriodStart) {
		a.RiskFactors = append(a.RiskFactors, "statement period end precedes start")
	}

	if fields.OpeningCents != nil && fields.ClosingCents != nil {
		expected := *fields.OpeningCents + a.NetCashFlowCents
		if expected != *fields.ClosingCents {
			a.RiskFactors = append(a.RiskFactors, "closing balance does not reconcile with transactions")
		}
	}

	if a.MinCents < 0 {
		a.RiskFactors = append(a.RiskFactors, "negative balance observed")
	}

	if a.NSFCount > 0 {
		a.RiskFactors = append(a.RiskFactors,
			fmt.Sprintf("%d NSF event(s) on statement", a.NSFCount))
	}
}

// healthScore is a bounded weighted composite in [0, 100].
func healthScore(a *domain.BankingAnalysis, w ScoreWeights) float64 {
	// Balance component: positive average is healthy, dips below zero are not.
	balance := 0.0
	if a.AverageCents > 0 {
		balance = 1.0
		if a.MinCents < 0 {
			balance = 0.5
		}
	}

	// Cash flow component: ratio of net to deposits, clamped.
	cashFlow := 0.0
	if a.TotalDepositsCents > 0 {
		ratio := float64(a.NetCashFlowCents) / float64(a.TotalDepositsCents)
		cashFlow = clamp01(0.5 + ratio)
	}

	// NSF component: each event costs a quarter of the component.
	nsf := clamp01(1.0 - 0.25*float64(a.NSFCount))

	trend := 0.5
	switch a.CashFlowTrend {
	case domain.TrendPositive:
		trend = 1.0
	case domain.TrendStable:
		trend = 0.7
	case domain.TrendVolatile:
		trend = 0.3
	case domain.TrendNegative:
		trend = 0.0
	}

	total := w.Balance + w.CashFlow + w.NSF + w.Trend
	if total == 0 {
		return 0
	}

	score := (w.Balance*balance + w.CashFlow*cashFlow + w.NSF*nsf + w.Trend*trend) / total

	return clamp01(score) * 100
}

// confidence reflects extraction completeness, not financial risk: missing
// required inputs make it low, partial metadata or dropped lines medium.
func confidence(a *domain.BankingAnalysis, droppedTransactions int) domain.ConfidenceLevel {
	for _, missing := range a.MissingInputs {
		switch missing {
		case missingOpening, missingClosing, missingTransactions:
			return domain.ConfidenceLow
		}
	}

	if len(a.MissingInputs) > 0 || droppedTransactions > 0 {
		return domain.ConfidenceMedium
	}

	return domain.ConfidenceHigh
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}

	if v > 1 {
		return 1
	}

	return v
}
