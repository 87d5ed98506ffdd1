package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/dealerdesk/be-payment-approvals/internal/client"
	"github.com/dealerdesk/be-payment-approvals/internal/errors"
	"github.com/dealerdesk/be-payment-approvals/internal/repository"
	"github.com/dealerdesk/be-payment-approvals/internal/workflow"
)

// RejectReasons is the fixed set of reasons a bulk reject accepts.
var RejectReasons = []string{
	"Invalid Proof",
	"Amount Mismatch",
	"Duplicate Request",
	"Incorrect UTR",
	"Other",
}

// BulkExecutor is the payments service surface for bulk actions. Each call
// maps to exactly one backend request.
type BulkExecutor interface {
	BulkApprove(ctx context.Context, ids []string, remarks string) (*client.BulkResult, error)
	BulkReject(ctx context.Context, ids []string, reason, remarks string) (*client.BulkResult, error)
}

// SelectionState is the per-viewer console state the orchestrator reconciles
// after a bulk call: the stored selection and the in-flight lock.
type SelectionState interface {
	Clear(ctx context.Context, userID string) error
	AcquireBulkLock(ctx context.Context, userID string, ttl time.Duration) error
	ReleaseBulkLock(ctx context.Context, userID string) error
}

// AuditLog records completed bulk actions.
type AuditLog interface {
	Append(ctx context.Context, entry *repository.BulkActionAuditEntry) error
}

// Notifier publishes bulk outcome events. Implementations must be non-fatal.
type Notifier interface {
	PublishBulkEvent(event *client.NotificationEvent)
}

// PendingLister re-derives the viewer's pending list after a bulk action.
type PendingLister interface {
	Pending(ctx context.Context, viewer workflow.Viewer) ([]workflow.Payment, error)
}

// Signal classifies a bulk outcome for the console's user-facing toast.
type Signal string

const (
	SignalFullSuccess Signal = "full_success"
	SignalPartial     Signal = "partial"
	SignalFailure     Signal = "failure"
)

// BulkOutcome is the reconciled result of one bulk invocation.
type BulkOutcome struct {
	Succeeded []string           `json:"succeeded"`
	Failed    []string           `json:"failed"`
	Signal    Signal             `json:"signal"`
	Refreshed []workflow.Payment `json:"refreshed"`
}

// BulkService orchestrates approve/reject over a selected payment set: one
// backend call, partial-success reconciliation, selection clear and refetch.
// A per-viewer lock serializes bulk operations; the lock TTL equals the
// operation timeout so a hung request cannot wedge the session.
type BulkService struct {
	executor  BulkExecutor
	selection SelectionState
	pending   PendingLister
	audit     AuditLog
	notifier  Notifier
	timeout   time.Duration
	log       zerolog.Logger
}

// NewBulkService creates a new bulk orchestrator. audit and notifier may be
// nil; both are best-effort side channels.
func NewBulkService(
	executor BulkExecutor,
	selection SelectionState,
	pending PendingLister,
	audit AuditLog,
	notifier Notifier,
	timeout time.Duration,
	log zerolog.Logger,
) *BulkService {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &BulkService{
		executor:  executor,
		selection: selection,
		pending:   pending,
		audit:     audit,
		notifier:  notifier,
		timeout:   timeout,
		log:       log,
	}
}

// BulkApprove approves every selected payment in one backend call.
func (s *BulkService) BulkApprove(ctx context.Context, viewer workflow.Viewer, ids []string, remarks string) (*BulkOutcome, error) {
	if len(ids) == 0 {
		return nil, errors.InvalidInput("ids", "no payments selected")
	}
	return s.run(ctx, viewer, ids, "bulk_approved", "", remarks, func(opCtx context.Context) (*client.BulkResult, error) {
		return s.executor.BulkApprove(opCtx, ids, remarks)
	})
}

// BulkReject rejects every selected payment in one backend call. The reason
// must come from RejectReasons; validation happens before any network call.
func (s *BulkService) BulkReject(ctx context.Context, viewer workflow.Viewer, ids []string, reason, remarks string) (*BulkOutcome, error) {
	if len(ids) == 0 {
		return nil, errors.InvalidInput("ids", "no payments selected")
	}
	if reason == "" {
		return nil, errors.InvalidInput("reason", "rejection reason is required")
	}
	if !validReason(reason) {
		return nil, errors.InvalidInput("reason", "unknown rejection reason")
	}
	return s.run(ctx, viewer, ids, "bulk_rejected", reason, remarks, func(opCtx context.Context) (*client.BulkResult, error) {
		return s.executor.BulkReject(opCtx, ids, reason, remarks)
	})
}

func validReason(reason string) bool {
	for _, r := range RejectReasons {
		if r == reason {
			return true
		}
	}
	return false
}

// run executes one bulk invocation: Idle → Submitting → Completed/Failed,
// always back to Idle via the deferred lock release.
func (s *BulkService) run(
	ctx context.Context,
	viewer workflow.Viewer,
	ids []string,
	action, reason, remarks string,
	invoke func(ctx context.Context) (*client.BulkResult, error),
) (*BulkOutcome, error) {
	if err := s.selection.AcquireBulkLock(ctx, viewer.UserID, s.timeout); err != nil {
		return nil, err
	}
	// Release must run even when the operation context is already dead.
	releaseCtx := context.WithoutCancel(ctx)
	defer func() {
		if err := s.selection.ReleaseBulkLock(releaseCtx, viewer.UserID); err != nil {
			s.log.Warn().Err(err).Str("user_id", viewer.UserID).Msg("failed to release bulk lock")
		}
	}()

	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result, err := invoke(opCtx)
	if err != nil {
		// Total failure: selection stays intact so the user can retry the
		// same set; the error carries the upstream message.
		if opCtx.Err() == context.DeadlineExceeded {
			return nil, errors.Wrap(err, errors.ErrCodeTimeout, "bulk operation timed out")
		}
		return nil, err
	}

	if result == nil {
		// The backend reported only an overall flag. Defaulting to
		// all-succeeded mirrors its documented behavior, but may mask a
		// partial failure — hence the warning.
		s.log.Warn().
			Str("action", action).
			Int("count", len(ids)).
			Msg("bulk result carried no per-id split; assuming all submitted ids succeeded")
		result = &client.BulkResult{Success: ids}
	}

	outcome := &BulkOutcome{
		Succeeded: nonNilIDs(result.Success),
		Failed:    nonNilIDs(result.Failed),
	}
	outcome.Signal = classify(outcome)

	s.log.Info().
		Str("action", action).
		Str("user_id", viewer.UserID).
		Str("role", viewer.Role).
		Int("succeeded", len(outcome.Succeeded)).
		Int("failed", len(outcome.Failed)).
		Msg("bulk operation completed")

	// Reconcile: drop the stored selection and re-derive the pending list
	// from the server instead of patching item states locally.
	if err := s.selection.Clear(releaseCtx, viewer.UserID); err != nil {
		s.log.Warn().Err(err).Str("user_id", viewer.UserID).Msg("failed to clear selection after bulk operation")
	}
	refreshed, err := s.pending.Pending(ctx, viewer)
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", viewer.UserID).Msg("pending refetch after bulk operation failed")
	} else {
		outcome.Refreshed = refreshed
	}

	s.appendAudit(releaseCtx, viewer, ids, action, reason, remarks, outcome)
	s.publish(viewer, ids, action, reason, remarks, outcome)

	return outcome, nil
}

func classify(o *BulkOutcome) Signal {
	switch {
	case len(o.Failed) == 0:
		return SignalFullSuccess
	case len(o.Succeeded) > 0:
		return SignalPartial
	default:
		return SignalFailure
	}
}

// appendAudit writes an audit entry and logs a warning on failure (never
// returns an error).
func (s *BulkService) appendAudit(ctx context.Context, viewer workflow.Viewer, ids []string, action, reason, remarks string, outcome *BulkOutcome) {
	if s.audit == nil {
		return
	}
	entry := &repository.BulkActionAuditEntry{
		Action:       action,
		PerformedBy:  viewer.UserID,
		ActorRole:    viewer.Role,
		PaymentIDs:   ids,
		SucceededIDs: outcome.Succeeded,
		FailedIDs:    outcome.Failed,
	}
	if reason != "" {
		entry.Reason = &reason
	}
	if remarks != "" {
		entry.Remarks = &remarks
	}
	if err := s.audit.Append(ctx, entry); err != nil {
		s.log.Warn().Err(err).
			Str("action", action).
			Str("user_id", viewer.UserID).
			Msg("failed to write bulk audit entry")
	}
}

func (s *BulkService) publish(viewer workflow.Viewer, ids []string, action, reason, remarks string, outcome *BulkOutcome) {
	if s.notifier == nil {
		return
	}
	eventType := action
	if outcome.Signal == SignalPartial {
		eventType = "bulk_partial"
	}
	s.notifier.PublishBulkEvent(&client.NotificationEvent{
		EventType:  eventType,
		ActorID:    viewer.UserID,
		ActorRole:  viewer.Role,
		PaymentIDs: ids,
		FailedIDs:  outcome.Failed,
		Reason:     reason,
		Remarks:    remarks,
	})
}

func nonNilIDs(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
