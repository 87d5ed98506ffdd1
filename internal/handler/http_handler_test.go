package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealerdesk/be-payment-approvals/internal/auth"
	"github.com/dealerdesk/be-payment-approvals/internal/client"
	"github.com/dealerdesk/be-payment-approvals/internal/middleware"
	"github.com/dealerdesk/be-payment-approvals/internal/repository"
	"github.com/dealerdesk/be-payment-approvals/internal/service"
	"github.com/dealerdesk/be-payment-approvals/internal/workflow"
)

var testSecret = []byte("handler-test-secret")

// ── fakes ─────────────────────────────────────────────────────────────────────

type stubPayments struct {
	finance []workflow.Payment
	result  *client.BulkResult
}

func (s *stubPayments) DealerPending(ctx context.Context, dealerID string) ([]workflow.Payment, error) {
	return s.finance, nil
}

func (s *stubPayments) FinancePending(ctx context.Context) ([]workflow.Payment, error) {
	return s.finance, nil
}

func (s *stubPayments) BulkApprove(ctx context.Context, ids []string, remarks string) (*client.BulkResult, error) {
	return s.result, nil
}

func (s *stubPayments) BulkReject(ctx context.Context, ids []string, reason, remarks string) (*client.BulkResult, error) {
	return s.result, nil
}

type stubWorkflows struct{}

func (stubWorkflows) Status(ctx context.Context, paymentID string) (*workflow.Snapshot, error) {
	return &workflow.Snapshot{CurrentStage: "area_manager", ApprovalStatus: "pending"}, nil
}

type stubSelection struct {
	members []string
}

func (s *stubSelection) Toggle(ctx context.Context, userID, paymentID string) (bool, error) {
	s.members = append(s.members, paymentID)
	return true, nil
}

func (s *stubSelection) Members(ctx context.Context, userID string) ([]string, error) {
	return s.members, nil
}

func (s *stubSelection) Clear(ctx context.Context, userID string) error {
	s.members = nil
	return nil
}

func (s *stubSelection) AcquireBulkLock(ctx context.Context, userID string, ttl time.Duration) error {
	return nil
}

func (s *stubSelection) ReleaseBulkLock(ctx context.Context, userID string) error {
	return nil
}

type stubAudit struct{}

func (stubAudit) Append(ctx context.Context, entry *repository.BulkActionAuditEntry) error {
	return nil
}

func (stubAudit) GetByPaymentID(ctx context.Context, paymentID string) ([]*repository.BulkActionAuditEntry, error) {
	return []*repository.BulkActionAuditEntry{{ID: "a1", Action: "bulk_approved"}}, nil
}

func (stubAudit) GetByActor(ctx context.Context, userID string, limit int) ([]*repository.BulkActionAuditEntry, error) {
	return nil, nil
}

// ── harness ───────────────────────────────────────────────────────────────────

func newTestServer(t *testing.T, payments *stubPayments, selection *stubSelection) *httptest.Server {
	t.Helper()
	log := zerolog.Nop()

	pending := service.NewPendingService(payments, stubWorkflows{}, 4, log)
	bulk := service.NewBulkService(payments, selection, pending, stubAudit{}, nil, time.Second, log)
	h := NewHTTPHandler(pending, bulk, selection, stubAudit{}, log)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/approvals/pending", h.Pending)
	mux.HandleFunc("/api/v1/approvals/selection", h.Selection)
	mux.HandleFunc("/api/v1/approvals/selection/toggle", h.ToggleSelection)
	mux.HandleFunc("/api/v1/approvals/bulk-approve", h.BulkApprove)
	mux.HandleFunc("/api/v1/approvals/bulk-reject", h.BulkReject)
	mux.HandleFunc("/api/v1/approvals/audit", h.Audit)

	srv := httptest.NewServer(middleware.Viewer(testSecret)(mux))
	t.Cleanup(srv.Close)
	return srv
}

func bearerFor(t *testing.T, viewer workflow.Viewer) string {
	t.Helper()
	token, err := auth.IssueToken(testSecret, viewer, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	require.NoError(t, err)
	return "Bearer " + token
}

func doRequest(t *testing.T, srv *httptest.Server, method, path, token string, body any) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, srv.URL+path, reader)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// ── tests ─────────────────────────────────────────────────────────────────────

func TestPendingEndpoint_RequiresAuth(t *testing.T) {
	srv := newTestServer(t, &stubPayments{}, &stubSelection{})

	resp := doRequest(t, srv, http.MethodGet, "/api/v1/approvals/pending", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestPendingEndpoint_ReturnsViewerList(t *testing.T) {
	payments := &stubPayments{finance: []workflow.Payment{
		{ID: "p1"}, {ID: "p2"},
	}}
	srv := newTestServer(t, payments, &stubSelection{})
	token := bearerFor(t, workflow.Viewer{UserID: "u1", Role: "area_manager"})

	resp := doRequest(t, srv, http.MethodGet, "/api/v1/approvals/pending", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Payments []workflow.Payment `json:"payments"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Len(t, body.Payments, 2)
}

func TestBulkRejectEndpoint_InvalidReasonIs400(t *testing.T) {
	srv := newTestServer(t, &stubPayments{}, &stubSelection{})
	token := bearerFor(t, workflow.Viewer{UserID: "u1", Role: "area_manager"})

	resp := doRequest(t, srv, http.MethodPost, "/api/v1/approvals/bulk-reject", token, map[string]any{
		"payment_ids": []string{"p1"},
		"reason":      "",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestBulkApproveEndpoint_UsesStoredSelection(t *testing.T) {
	payments := &stubPayments{
		result: &client.BulkResult{Success: []string{"p1", "p2"}, Failed: []string{}},
	}
	selection := &stubSelection{members: []string{"p1", "p2"}}
	srv := newTestServer(t, payments, selection)
	token := bearerFor(t, workflow.Viewer{UserID: "u1", Role: "regional_admin"})

	resp := doRequest(t, srv, http.MethodPost, "/api/v1/approvals/bulk-approve", token, map[string]any{
		"remarks": "checked",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var outcome service.BulkOutcome
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&outcome))
	assert.Equal(t, service.SignalFullSuccess, outcome.Signal)
	assert.Len(t, outcome.Succeeded, 2)
	assert.Nil(t, selection.members, "selection cleared after bulk operation")
}

func TestSelectionToggleEndpoint(t *testing.T) {
	selection := &stubSelection{}
	srv := newTestServer(t, &stubPayments{}, selection)
	token := bearerFor(t, workflow.Viewer{UserID: "u1", Role: "territory_manager"})

	resp := doRequest(t, srv, http.MethodPost, "/api/v1/approvals/selection/toggle", token, map[string]any{
		"payment_id": "p7",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"p7"}, selection.members)
}

func TestAuditEndpoint_ByPaymentID(t *testing.T) {
	srv := newTestServer(t, &stubPayments{}, &stubSelection{})
	token := bearerFor(t, workflow.Viewer{UserID: "u1", Role: "finance_admin"})

	resp := doRequest(t, srv, http.MethodGet, "/api/v1/approvals/audit?payment_id=p1", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Entries []repository.BulkActionAuditEntry `json:"entries"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Entries, 1)
	assert.Equal(t, "bulk_approved", body.Entries[0].Action)
}
