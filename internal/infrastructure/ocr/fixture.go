package ocr

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jszwec/csvutil"

	"github.com/apexlend/docpipeline/internal/domain"
)

// Fixture serves extraction results from TSV statement exports on disk
// instead of calling the provider. One file per document, matched by upload
// file name with the extension swapped for .tsv. Used in development and
// tests.
type Fixture struct {
	dir string
}

func NewFixture(dir string) *Fixture {
	return &Fixture{dir: dir}
}

// fixtureRecord is one statement line. balance_cents is the running balance
// after the transaction, as bank exports print it.
type fixtureRecord struct {
	Date         string `csv:"date"`
	Description  string `csv:"description"`
	Category     string `csv:"category"`
	AmountCents  int64  `csv:"amount_cents"`
	BalanceCents int64  `csv:"balance_cents"`
}

func (f *Fixture) Extract(_ context.Context, req Request) (*domain.StatementFields, error) {
	base := strings.TrimSuffix(req.FileName, filepath.Ext(req.FileName))
	path := filepath.Join(f.dir, base+".tsv")

	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, &domain.PermanentProviderError{
			Reason: fmt.Sprintf("no fixture for %q", req.FileName),
		}
	}
	if err != nil {
		return nil, &domain.TransientIOError{Op: "fixture open", Err: err}
	}
	defer file.Close()

	return parseStatement(file)
}

func parseStatement(r io.Reader) (*domain.StatementFields, error) {
	reader := csv.NewReader(r)
	reader.Comma = '\t'

	dec, err := csvutil.NewDecoder(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	var (
		records []fixtureRecord
		fields  domain.StatementFields
	)

	for {
		var rec fixtureRecord

		err := dec.Decode(&rec)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &domain.PermanentProviderError{
				Reason: fmt.Sprintf("malformed statement line %d: %v", len(records)+1, err),
			}
		}

		records = append(records, rec)
	}

	if len(records) == 0 {
		return &fields, nil
	}

	for _, rec := range records {
		tx := domain.Transaction{
			Description: rec.Description,
			Category:    domain.TransactionCategory(rec.Category),
			AmountCents: rec.AmountCents,
		}

		if parsed, err := time.Parse("2006-01-02", rec.Date); err == nil {
			tx.Date = parsed
		}

		fields.Transactions = append(fields.Transactions, tx)
		fields.DailyCents = append(fields.DailyCents, rec.BalanceCents)
	}

	opening := records[0].BalanceCents - records[0].AmountCents
	closing := records[len(records)-1].BalanceCents
	fields.OpeningCents = &opening
	fields.ClosingCents = &closing

	if first := fields.Transactions[0].Date; !first.IsZero() {
		fields.PeriodStart = &first
	}

	if last := fields.Transactions[len(fields.Transactions)-1].Date; !last.IsZero() {
		fields.PeriodEnd = &last
	}

	return &fields, nil
}
