package domain

import "github.com/google/uuid"

// ProbeFailure records one document whose storage probe itself failed.
// It is distinct from a missing object: the object may well exist, the
// auditor just could not tell this run.
type ProbeFailure struct {
	DocumentID uuid.UUID `json:"document_id"`
	StorageKey string    `json:"storage_key"`
	Error      string    `json:"error"`
}

// AuditReport is the outcome of reconciling one application's registry rows
// against the object store. It is produced on demand and never persisted.
type AuditReport struct {
	ApplicationID uuid.UUID      `json:"application_id"`
	DocumentsInDB int            `json:"documents_in_db"`
	FilesOnDisk   int            `json:"files_on_disk"`
	MissingFiles  int            `json:"missing_files"`
	MissingKeys   []string       `json:"missing_keys,omitempty"`
	ProbeFailures []ProbeFailure `json:"probe_failures,omitempty"`
	RecoveryRate  float64        `json:"recovery_rate"`
}

// ComputeRecoveryRate sets RecoveryRate from the counters, 0 when the
// application has no documents at all.
func (r *AuditReport) ComputeRecoveryRate() {
	if r.DocumentsInDB == 0 {
		r.RecoveryRate = 0
		return
	}

	r.RecoveryRate = float64(r.FilesOnDisk) / float64(r.DocumentsInDB)
}
