package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	apperrors "github.com/dealerdesk/be-payment-approvals/internal/errors"
	"github.com/dealerdesk/be-payment-approvals/internal/workflow"
)

// WorkflowClient fetches authoritative workflow snapshots from the workflow
// service, one payment at a time.
type WorkflowClient struct {
	client *HTTPClient
}

// NewWorkflowClient creates a new workflow service client.
func NewWorkflowClient(baseURL string) *WorkflowClient {
	return &WorkflowClient{client: NewHTTPClient(baseURL)}
}

// snapshotEnvelope covers {workflow: {...}} and {data: {...}} wrappers.
type snapshotEnvelope struct {
	Workflow *workflow.Snapshot `json:"workflow"`
	Data     *workflow.Snapshot `json:"data"`
}

// Status returns the current workflow snapshot for a payment. The response
// may wrap the snapshot under "workflow" or "data", or be the bare snapshot.
func (c *WorkflowClient) Status(ctx context.Context, paymentID string) (*workflow.Snapshot, error) {
	path := fmt.Sprintf("/api/v1/workflows/status?entity_id=%s", url.QueryEscape(paymentID))
	raw, err := c.client.GetRaw(ctx, path)
	if err != nil {
		return nil, err
	}

	var env snapshotEnvelope
	if err := json.Unmarshal(raw, &env); err == nil {
		if env.Workflow != nil {
			return env.Workflow, nil
		}
		if env.Data != nil {
			return env.Data, nil
		}
	}

	var snap workflow.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "decode workflow snapshot")
	}
	if snap.CurrentStage == "" && snap.ApprovalStatus == "" && len(snap.Timeline) == 0 {
		return nil, apperrors.NotFound("workflow", paymentID)
	}
	return &snap, nil
}
