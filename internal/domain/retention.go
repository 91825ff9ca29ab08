package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RetentionPolicy marks rows of one target table eligible for deletion once
// older than Days. FilterSQL is an optional extra predicate appended to the
// delete, written by operators.
type RetentionPolicy struct {
	Target    string    `db:"target"     json:"target"`
	Days      int       `db:"days"       json:"days"`
	FilterSQL string    `db:"filter_sql" json:"filter_sql,omitempty"`
	Enabled   bool      `db:"enabled"    json:"enabled"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

func (p *RetentionPolicy) Validate() error {
	if p.Target == "" {
		return fmt.Errorf("target is required")
	}

	if p.Days <= 0 {
		return fmt.Errorf("days must be positive")
	}

	return nil
}

// Cutoff is the creation time below which rows become eligible.
func (p *RetentionPolicy) Cutoff(now time.Time) time.Time {
	return now.AddDate(0, 0, -p.Days)
}

type HoldScope string

const (
	HoldScopeContact     HoldScope = "contact"
	HoldScopeApplication HoldScope = "application"
)

// LegalHold blocks retention deletes for every row belonging to the
// referenced contact or application until ExpiresAt.
type LegalHold struct {
	ID          uuid.UUID `db:"id"           json:"id"`
	Scope       HoldScope `db:"scope"        json:"scope"`
	ReferenceID uuid.UUID `db:"reference_id" json:"reference_id"`
	Reason      string    `db:"reason"       json:"reason"`
	ExpiresAt   time.Time `db:"expires_at"   json:"expires_at"`
	CreatedAt   time.Time `db:"created_at"   json:"created_at"`
}

func (h *LegalHold) Validate() error {
	if h.Scope != HoldScopeContact && h.Scope != HoldScopeApplication {
		return fmt.Errorf("unknown hold scope %q", h.Scope)
	}

	if h.ReferenceID == uuid.Nil {
		return fmt.Errorf("reference_id is required")
	}

	if h.ExpiresAt.IsZero() {
		return fmt.Errorf("expires_at is required")
	}

	return nil
}

// SweepResult is the per-policy outcome of one sweep run.
type SweepResult struct {
	Deleted  int64  `json:"deleted"`
	Error    string `json:"error,omitempty"`
	TimedOut bool   `json:"timed_out,omitempty"`
}
