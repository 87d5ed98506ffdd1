package repository

import "time"

// BulkActionAuditEntry is one immutable record of a bulk approve/reject
// invocation, including its partial-success split.
type BulkActionAuditEntry struct {
	ID           string
	Action       string // bulk_approved | bulk_rejected
	PerformedBy  string
	ActorRole    string
	PerformedAt  time.Time
	PaymentIDs   []string
	SucceededIDs []string
	FailedIDs    []string
	Reason       *string // reject only
	Remarks      *string
	Metadata     map[string]any
}
