package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dealerdesk/be-payment-approvals/internal/errors"
)

// AuditRepository appends and reads immutable bulk-action audit log entries.
type AuditRepository struct {
	db *pgxpool.Pool
}

// NewAuditRepository creates a new AuditRepository.
func NewAuditRepository(db *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{db: db}
}

// Append inserts one audit entry. The table has a delete-prevention trigger
// so this is the only mutation operation exposed.
func (r *AuditRepository) Append(ctx context.Context, entry *BulkActionAuditEntry) error {
	var metadataJSON []byte
	if entry.Metadata != nil {
		var err error
		metadataJSON, err = json.Marshal(entry.Metadata)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to marshal audit metadata")
		}
	}

	query := `
		INSERT INTO bulk_action_audit_log
		    (action, performed_by, actor_role,
		     payment_ids, succeeded_ids, failed_ids,
		     reason, remarks, metadata)
		VALUES ($1, $2, $3,
		        $4, $5, $6,
		        $7, $8, $9)
		RETURNING id, performed_at
	`

	return r.db.QueryRow(ctx, query,
		entry.Action,
		entry.PerformedBy,
		entry.ActorRole,
		entry.PaymentIDs,
		entry.SucceededIDs,
		entry.FailedIDs,
		entry.Reason,
		entry.Remarks,
		metadataJSON,
	).Scan(&entry.ID, &entry.PerformedAt)
}

// GetByPaymentID returns audit entries that touched a payment, oldest first.
func (r *AuditRepository) GetByPaymentID(ctx context.Context, paymentID string) ([]*BulkActionAuditEntry, error) {
	query := `
		SELECT id, action, performed_by, actor_role, performed_at,
		       payment_ids, succeeded_ids, failed_ids,
		       reason, remarks, metadata
		FROM bulk_action_audit_log
		WHERE $1 = ANY(payment_ids)
		ORDER BY performed_at ASC
	`

	rows, err := r.db.Query(ctx, query, paymentID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get audit log")
	}
	defer rows.Close()

	return r.scanRows(rows)
}

// GetByActor returns audit entries performed by one user, newest first.
func (r *AuditRepository) GetByActor(ctx context.Context, userID string, limit int) ([]*BulkActionAuditEntry, error) {
	if limit < 1 || limit > 500 {
		limit = 100
	}
	query := `
		SELECT id, action, performed_by, actor_role, performed_at,
		       payment_ids, succeeded_ids, failed_ids,
		       reason, remarks, metadata
		FROM bulk_action_audit_log
		WHERE performed_by = $1
		ORDER BY performed_at DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get actor audit log")
	}
	defer rows.Close()

	return r.scanRows(rows)
}

// ── scan helpers ──────────────────────────────────────────────────────────────

func (r *AuditRepository) scanRows(rows pgx.Rows) ([]*BulkActionAuditEntry, error) {
	var entries []*BulkActionAuditEntry
	for rows.Next() {
		entry, err := r.scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

type auditScanner interface {
	Scan(dest ...any) error
}

func (r *AuditRepository) scanEntry(sc auditScanner) (*BulkActionAuditEntry, error) {
	entry := &BulkActionAuditEntry{}
	var metadataJSON []byte

	err := sc.Scan(
		&entry.ID,
		&entry.Action,
		&entry.PerformedBy,
		&entry.ActorRole,
		&entry.PerformedAt,
		&entry.PaymentIDs,
		&entry.SucceededIDs,
		&entry.FailedIDs,
		&entry.Reason,
		&entry.Remarks,
		&metadataJSON,
	)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan audit entry")
	}

	if metadataJSON != nil {
		if err := json.Unmarshal(metadataJSON, &entry.Metadata); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to unmarshal audit metadata")
		}
	}

	return entry, nil
}
