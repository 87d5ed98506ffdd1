package service

import (
	"context"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/dealerdesk/be-payment-approvals/internal/errors"
	"github.com/dealerdesk/be-payment-approvals/internal/workflow"
)

// PaymentsProvider is the payments service surface the pending filter needs.
type PaymentsProvider interface {
	// DealerPending returns the server-filtered pending list for one dealer.
	DealerPending(ctx context.Context, dealerID string) ([]workflow.Payment, error)
	// FinancePending returns the finance-side list, NOT pre-filtered by stage.
	FinancePending(ctx context.Context) ([]workflow.Payment, error)
}

// WorkflowProvider fetches the authoritative workflow snapshot for one payment.
type WorkflowProvider interface {
	Status(ctx context.Context, paymentID string) (*workflow.Snapshot, error)
}

// fetchStrategy selects how a role's pending list is derived. Keeping the
// role set in one table makes the supported roles explicit instead of spread
// across string comparisons.
type fetchStrategy int

const (
	// statusOnly keeps payments whose own status field is pending.
	statusOnly fetchStrategy = iota
	// dealerScoped delegates filtering to the dealer pending endpoint.
	dealerScoped
	// stageResolved resolves each payment's workflow stage and keeps those
	// waiting on the viewer's role.
	stageResolved
)

// roleStrategies maps normalized viewer roles to their fetch strategy.
// Roles absent from the table fall back to statusOnly.
var roleStrategies = map[string]fetchStrategy{
	workflow.NormalizeIdentifier(workflow.RoleDealerAdmin):   dealerScoped,
	workflow.NormalizeIdentifier(workflow.RoleTerritoryMgr):  stageResolved,
	workflow.NormalizeIdentifier(workflow.RoleAreaMgr):       stageResolved,
	workflow.NormalizeIdentifier(workflow.RoleRegionalMgr):   stageResolved,
	workflow.NormalizeIdentifier(workflow.RoleRegionalAdmin): stageResolved,
}

// PendingService derives the "requires my action" payment list for a viewer.
type PendingService struct {
	payments    PaymentsProvider
	workflows   WorkflowProvider
	concurrency int
	log         zerolog.Logger
}

// NewPendingService creates a new pending service. concurrency caps the
// parallel per-payment workflow fetches issued for manager roles.
func NewPendingService(
	payments PaymentsProvider,
	workflows WorkflowProvider,
	concurrency int,
	log zerolog.Logger,
) *PendingService {
	if concurrency < 1 {
		concurrency = 8
	}
	return &PendingService{
		payments:    payments,
		workflows:   workflows,
		concurrency: concurrency,
		log:         log,
	}
}

// Pending returns the payments awaiting the viewer's action, in the order the
// payments service returned them. Per-payment workflow fetch failures degrade
// to the payment's own cached fields and never abort the batch; a forbidden
// or missing list endpoint degrades to an empty list.
func (s *PendingService) Pending(ctx context.Context, viewer workflow.Viewer) ([]workflow.Payment, error) {
	switch strategyFor(viewer.Role) {
	case dealerScoped:
		return s.dealerPending(ctx, viewer)
	case stageResolved:
		return s.stagePending(ctx, viewer)
	default:
		return s.statusPending(ctx, viewer)
	}
}

func strategyFor(role string) fetchStrategy {
	if strategy, ok := roleStrategies[workflow.NormalizeIdentifier(role)]; ok {
		return strategy
	}
	return statusOnly
}

// ── dealer-scoped ─────────────────────────────────────────────────────────────

func (s *PendingService) dealerPending(ctx context.Context, viewer workflow.Viewer) ([]workflow.Payment, error) {
	list, err := s.payments.DealerPending(ctx, viewer.DealerID)
	if err != nil {
		return s.degradeListError(err, viewer)
	}
	return nonNil(list), nil
}

// ── manager roles: per-payment stage resolution ───────────────────────────────

func (s *PendingService) stagePending(ctx context.Context, viewer workflow.Viewer) ([]workflow.Payment, error) {
	list, err := s.payments.FinancePending(ctx)
	if err != nil {
		return s.degradeListError(err, viewer)
	}

	// Fan out one workflow fetch per payment and collect every settled
	// outcome before filtering. Results are written by input index, so
	// output order follows input order regardless of fetch completion order.
	keep := make([]bool, len(list))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i := range list {
		g.Go(func() error {
			keep[i] = s.resolvePayment(gctx, viewer, list[i])
			return nil
		})
	}
	_ = g.Wait() // workers never return errors; failures are isolated per item

	filtered := make([]workflow.Payment, 0, len(list))
	for i, p := range list {
		if keep[i] {
			filtered = append(filtered, p)
		}
	}
	return filtered, nil
}

// resolvePayment decides whether one payment requires the viewer's action.
// When the workflow fetch fails it falls back to the payment's cached stage
// when one is present, and to a status-only check otherwise.
func (s *PendingService) resolvePayment(ctx context.Context, viewer workflow.Viewer, p workflow.Payment) bool {
	snap, err := s.workflows.Status(ctx, p.ID)
	if err != nil {
		s.log.Debug().Err(err).
			Str("payment_id", p.ID).
			Str("role", viewer.Role).
			Msg("workflow fetch failed; falling back to cached payment fields")

		if p.ApprovalStage != "" {
			return workflow.IsViewerTurn(viewer.Role, p.ApprovalStage) &&
				workflow.StatusIsPending(p.EffectiveStatus())
		}
		return workflow.StatusIsPending(p.EffectiveStatus())
	}

	return workflow.IsViewerTurn(viewer.Role, snap.CurrentStage) &&
		workflow.StatusIsPending(snap.ApprovalStatusOrPending())
}

// ── everyone else: status-only ────────────────────────────────────────────────

func (s *PendingService) statusPending(ctx context.Context, viewer workflow.Viewer) ([]workflow.Payment, error) {
	list, err := s.payments.FinancePending(ctx)
	if err != nil {
		return s.degradeListError(err, viewer)
	}

	filtered := make([]workflow.Payment, 0, len(list))
	for _, p := range list {
		if workflow.StatusIsPending(p.Status) || workflow.StatusIsPending(p.ApprovalStatus) {
			filtered = append(filtered, p)
		}
	}
	return filtered, nil
}

// degradeListError turns scoping errors (403) and missing endpoints (404)
// into an empty result rather than a failure; the console treats both the
// same as "nothing pending". Everything else propagates.
func (s *PendingService) degradeListError(err error, viewer workflow.Viewer) ([]workflow.Payment, error) {
	switch errors.CodeOf(err) {
	case errors.ErrCodeForbidden, errors.ErrCodeNotFound, errors.ErrCodeUnauthorized:
		s.log.Warn().Err(err).
			Str("role", viewer.Role).
			Str("user_id", viewer.UserID).
			Msg("pending list not accessible for role; returning empty list")
		return []workflow.Payment{}, nil
	}
	return nil, err
}

func nonNil(list []workflow.Payment) []workflow.Payment {
	if list == nil {
		return []workflow.Payment{}
	}
	return list
}
