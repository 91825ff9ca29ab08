// Package ocr talks to the external extraction provider.
package ocr

import (
	"context"

	"github.com/apexlend/docpipeline/internal/domain"
)

// Request identifies one document to extract. DocumentRef is the storage key
// the provider fetches the bytes from.
type Request struct {
	DocumentRef string
	FileName    string
	TypeHint    domain.DocumentType
}

// Provider submits a document and returns its structured fields once the
// provider's job finishes. Implementations block until completion or ctx
// cancellation; the pipeline runs them from worker goroutines.
type Provider interface {
	Extract(ctx context.Context, req Request) (*domain.StatementFields, error)
}
