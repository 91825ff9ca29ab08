// Package report_generator renders operator-facing audit reports as PDF.
package report_generator

import (
	"fmt"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	marotocfg "github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"

	"github.com/apexlend/docpipeline/internal/domain"
)

type Generator struct{}

func New() *Generator {
	return &Generator{}
}

// Generate renders one application's reconciliation report.
func (g *Generator) Generate(report *domain.AuditReport) ([]byte, error) {
	cfg := marotocfg.NewBuilder().
		WithPageNumber().
		Build()

	m := maroto.New(cfg)

	m.AddRow(14, text.NewCol(12, "Reconciliation Audit Report", props.Text{
		Size:  16,
		Style: fontstyle.Bold,
	}))

	m.AddRow(8, text.NewCol(12, "Application "+report.ApplicationID.String(), props.Text{
		Size: 10,
	}))

	m.AddRows(
		summaryRow("Documents in registry", fmt.Sprintf("%d", report.DocumentsInDB)),
		summaryRow("Objects present", fmt.Sprintf("%d", report.FilesOnDisk)),
		summaryRow("Objects missing", fmt.Sprintf("%d", report.MissingFiles)),
		summaryRow("Recovery rate", fmt.Sprintf("%.2f", report.RecoveryRate)),
	)

	if len(report.MissingKeys) > 0 {
		m.AddRow(10, text.NewCol(12, "Missing objects", props.Text{
			Size:  12,
			Style: fontstyle.Bold,
			Top:   3,
		}))

		for _, key := range report.MissingKeys {
			m.AddRow(6, text.NewCol(12, key, props.Text{Size: 9}))
		}
	}

	if len(report.ProbeFailures) > 0 {
		m.AddRow(10, text.NewCol(12, "Probe failures", props.Text{
			Size:  12,
			Style: fontstyle.Bold,
			Top:   3,
		}))

		for _, failure := range report.ProbeFailures {
			m.AddRow(6,
				text.NewCol(6, failure.StorageKey, props.Text{Size: 9}),
				text.NewCol(6, failure.Error, props.Text{Size: 9}),
			)
		}
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("failed to generate pdf: %w", err)
	}

	return doc.GetBytes(), nil
}

func summaryRow(label, value string) core.Row {
	return row.New(7).Add(
		text.NewCol(6, label, props.Text{Size: 10}),
		text.NewCol(6, value, props.Text{Size: 10, Style: fontstyle.Bold}),
	)
}
