package workflow

import "time"

// Approval statuses observed on payments and workflow snapshots. The fields
// are free-form strings on the wire; comparisons go through
// NormalizeIdentifier so casing differences between services do not matter.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Payment is a workflow-bound entity as returned by the payments service.
// ApprovalStage is a local cache of the authoritative workflow stage and is
// only trusted when the per-payment workflow fetch fails.
type Payment struct {
	ID             string    `json:"id"`
	DealerID       string    `json:"dealerId,omitempty"`
	Amount         int64     `json:"amount,omitempty"` // minor units
	UTRNumber      string    `json:"utrNumber,omitempty"`
	Status         string    `json:"status,omitempty"`
	ApprovalStatus string    `json:"approvalStatus,omitempty"`
	ApprovalStage  string    `json:"approvalStage,omitempty"`
	CreatedAt      time.Time `json:"createdAt,omitempty"`
}

// EffectiveStatus returns the payment's own status field, preferring
// approvalStatus when both are present.
func (p Payment) EffectiveStatus() string {
	if p.ApprovalStatus != "" {
		return p.ApprovalStatus
	}
	return p.Status
}

// TransitionEvent is one entry in a workflow's append-only timeline.
type TransitionEvent struct {
	Stage      string    `json:"stage"`
	Action     string    `json:"action"`
	ActorID    string    `json:"actorId,omitempty"`
	Remarks    string    `json:"remarks,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Snapshot is the authoritative workflow state for one payment, fetched
// lazily from the workflow service. CurrentStage is either a role name or a
// positional "stage_N" identifier.
type Snapshot struct {
	CurrentStage        string            `json:"currentStage"`
	ApprovalStatus      string            `json:"approvalStatus"`
	CurrentSLAExpiresAt *time.Time        `json:"currentSlaExpiresAt,omitempty"`
	Timeline            []TransitionEvent `json:"timeline,omitempty"`
}

// Viewer is the authenticated actor evaluating or acting on payments,
// passed explicitly into the filter and orchestrator rather than read from
// ambient session state.
type Viewer struct {
	UserID      string
	Role        string
	RegionID    string
	AreaID      string
	TerritoryID string
	DealerID    string
}

// StatusIsPending reports whether a free-form status string means pending,
// ignoring case and punctuation.
func StatusIsPending(status string) bool {
	return NormalizeIdentifier(status) == StatusPending
}

// ApprovalStatusOrPending returns the snapshot's approval status, defaulting
// to pending when the workflow service omits the field.
func (s Snapshot) ApprovalStatusOrPending() string {
	if s.ApprovalStatus == "" {
		return StatusPending
	}
	return s.ApprovalStatus
}
