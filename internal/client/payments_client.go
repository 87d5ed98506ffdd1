package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	apperrors "github.com/dealerdesk/be-payment-approvals/internal/errors"
	"github.com/dealerdesk/be-payment-approvals/internal/workflow"
)

// PaymentsClient is a client for the payments service: pending lists and the
// bulk approve/reject endpoints.
type PaymentsClient struct {
	client *HTTPClient
}

// NewPaymentsClient creates a new payments service client.
func NewPaymentsClient(baseURL string) *PaymentsClient {
	return &PaymentsClient{client: NewHTTPClient(baseURL)}
}

// BulkResult is the success/failed split a bulk endpoint reports. Partial
// failure is a normal result variant, not an error.
type BulkResult struct {
	Success []string `json:"success"`
	Failed  []string `json:"failed"`
}

// paymentListEnvelope covers the wrapper shapes the payments service has been
// observed to return alongside a bare array.
type paymentListEnvelope struct {
	Data     []workflow.Payment `json:"data"`
	Payments []workflow.Payment `json:"payments"`
	Pending  []workflow.Payment `json:"pending"`
}

// bulkResultEnvelope covers {results: {...}}, a top-level split, and a bare
// overall success flag.
type bulkResultEnvelope struct {
	Results *BulkResult     `json:"results"`
	Success json.RawMessage `json:"success"`
	Failed  []string        `json:"failed"`
}

// DealerPending returns the server-filtered pending list for one dealer.
func (c *PaymentsClient) DealerPending(ctx context.Context, dealerID string) ([]workflow.Payment, error) {
	path := fmt.Sprintf("/api/v1/payments/pending?dealer_id=%s", url.QueryEscape(dealerID))
	raw, err := c.client.GetRaw(ctx, path)
	if err != nil {
		return nil, err
	}
	return decodePaymentList(raw)
}

// FinancePending returns the unfiltered finance-side pending list. For
// manager roles this list is NOT pre-filtered by stage; the caller resolves
// per-payment workflow stages itself.
func (c *PaymentsClient) FinancePending(ctx context.Context) ([]workflow.Payment, error) {
	raw, err := c.client.GetRaw(ctx, "/api/v1/payments/finance/pending")
	if err != nil {
		return nil, err
	}
	return decodePaymentList(raw)
}

type bulkApproveRequest struct {
	PaymentIDs []string `json:"payment_ids"`
	Remarks    string   `json:"remarks,omitempty"`
}

type bulkRejectRequest struct {
	PaymentIDs []string `json:"payment_ids"`
	Reason     string   `json:"reason"`
	Remarks    string   `json:"remarks,omitempty"`
}

// BulkApprove submits one approve call for the given payment ids. The parsed
// result may be partial; a missing result shape yields (nil, nil) so the
// caller decides how to default it.
func (c *PaymentsClient) BulkApprove(ctx context.Context, ids []string, remarks string) (*BulkResult, error) {
	raw, err := c.client.PostRaw(ctx, "/api/v1/payments/bulk-approve", bulkApproveRequest{
		PaymentIDs: ids,
		Remarks:    remarks,
	})
	if err != nil {
		return nil, err
	}
	return decodeBulkResult(raw)
}

// BulkReject submits one reject call for the given payment ids.
func (c *PaymentsClient) BulkReject(ctx context.Context, ids []string, reason, remarks string) (*BulkResult, error) {
	raw, err := c.client.PostRaw(ctx, "/api/v1/payments/bulk-reject", bulkRejectRequest{
		PaymentIDs: ids,
		Reason:     reason,
		Remarks:    remarks,
	})
	if err != nil {
		return nil, err
	}
	return decodeBulkResult(raw)
}

// decodePaymentList accepts either a bare JSON array or one of the known
// object envelopes ({data|payments|pending: [...]}).
func decodePaymentList(raw []byte) ([]workflow.Payment, error) {
	var list []workflow.Payment
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}

	var env paymentListEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "decode payment list")
	}
	switch {
	case env.Data != nil:
		return env.Data, nil
	case env.Payments != nil:
		return env.Payments, nil
	case env.Pending != nil:
		return env.Pending, nil
	}
	return nil, nil
}

// decodeBulkResult parses a bulk endpoint response. When the response carries
// no per-id split (only an overall flag, or nothing recognizable), it returns
// nil and the caller defaults the result.
func decodeBulkResult(raw []byte) (*BulkResult, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var env bulkResultEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "decode bulk result")
	}
	if env.Results != nil {
		return env.Results, nil
	}

	// Top-level {success: [...], failed: [...]} — success decodes as an array.
	var ids []string
	if len(env.Success) > 0 && json.Unmarshal(env.Success, &ids) == nil {
		return &BulkResult{Success: ids, Failed: env.Failed}, nil
	}

	// Bare success flag or unknown shape: no per-id information.
	return nil, nil
}
