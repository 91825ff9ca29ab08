package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type DocumentType string

const (
	TypeBankStatements    DocumentType = "bank_statements"
	TypeTaxReturns        DocumentType = "tax_returns"
	TypeDriversLicense    DocumentType = "drivers_license"
	TypeVoidedCheck       DocumentType = "voided_check"
	TypeSignedApplication DocumentType = "signed_application"
	TypeOther             DocumentType = "other"
)

var documentTypes = []DocumentType{
	TypeBankStatements,
	TypeTaxReturns,
	TypeDriversLicense,
	TypeVoidedCheck,
	TypeSignedApplication,
	TypeOther,
}

// RequiresExtraction reports whether an upload of this type is sent to the
// OCR provider after ingest.
func (t DocumentType) RequiresExtraction() bool {
	switch t {
	case TypeBankStatements, TypeTaxReturns:
		return true
	}

	return false
}

// ExtractableTypes lists the types RequiresExtraction accepts, for queries
// that filter on them.
func ExtractableTypes() []DocumentType {
	var types []DocumentType
	for _, t := range documentTypes {
		if t.RequiresExtraction() {
			types = append(types, t)
		}
	}

	return types
}

// RequiresAnalysis reports whether a completed extraction of this type feeds
// the banking analysis.
func (t DocumentType) RequiresAnalysis() bool {
	return t == TypeBankStatements
}

func (t DocumentType) Validate() error {
	for _, known := range documentTypes {
		if t == known {
			return nil
		}
	}

	return fmt.Errorf("unknown document type %q", t)
}

// Document is the registry record for one uploaded file. The OCR job state is
// embedded: attempts, extracted fields, next retry time and last error, at
// most one job per document by construction.
type Document struct {
	ID            uuid.UUID        `db:"id"            json:"id"`
	ApplicationID uuid.UUID        `db:"application_id" json:"application_id"`
	DocumentType  DocumentType     `db:"document_type" json:"document_type"`
	FileName      string           `db:"file_name"     json:"file_name"`
	StorageKey    string           `db:"storage_key"   json:"storage_key"`
	SizeBytes     int64            `db:"size_bytes"    json:"size_bytes"`
	MimeType      string           `db:"mime_type"     json:"mime_type"`
	Checksum      string           `db:"checksum"      json:"checksum"`
	State         State            `db:"state"         json:"state"`
	OcrAttempts   int              `db:"ocr_attempts"  json:"ocr_attempts"`
	OcrFields     *StatementFields `db:"ocr_fields"    json:"ocr_fields,omitempty"`
	NextRetryAt   *time.Time       `db:"next_retry_at" json:"next_retry_at,omitempty"`
	LastError     string           `db:"last_error"    json:"last_error,omitempty"`
	CreatedAt     time.Time        `db:"created_at"    json:"created_at"`
	UpdatedAt     time.Time        `db:"updated_at"    json:"updated_at"`
}

// StorageKey builds the deterministic object key for an upload.
func StorageKey(applicationID, documentID uuid.UUID, fileName string) string {
	return fmt.Sprintf("%s/%s-%s", applicationID, documentID, fileName)
}

// Application is the minimal referent the pipeline needs: ingest validates it
// exists, retention resolves contact-scoped holds through it. Its lifecycle
// is owned elsewhere.
type Application struct {
	ID        uuid.UUID `db:"id"         json:"id"`
	ContactID uuid.UUID `db:"contact_id" json:"contact_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
