package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/dealerdesk/be-payment-approvals/internal/errors"
)

func newWorkflowServer(t *testing.T, handler http.HandlerFunc) *WorkflowClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewWorkflowClient(srv.URL)
}

func TestStatus_WorkflowWrapper(t *testing.T) {
	c := newWorkflowServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "p1", r.URL.Query().Get("entity_id"))
		w.Write([]byte(`{"workflow":{"currentStage":"stage_4","approvalStatus":"pending"}}`))
	})

	snap, err := c.Status(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "stage_4", snap.CurrentStage)
	assert.Equal(t, "pending", snap.ApprovalStatus)
}

func TestStatus_DataWrapper(t *testing.T) {
	c := newWorkflowServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"currentStage":"territory_manager"}}`))
	})

	snap, err := c.Status(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "territory_manager", snap.CurrentStage)
}

func TestStatus_BareSnapshot(t *testing.T) {
	c := newWorkflowServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"currentStage":"area_manager","approvalStatus":"approved"}`))
	})

	snap, err := c.Status(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "area_manager", snap.CurrentStage)
	assert.Equal(t, "approved", snap.ApprovalStatus)
}

func TestStatus_EmptyObjectIsNotFound(t *testing.T) {
	c := newWorkflowServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})

	_, err := c.Status(context.Background(), "p1")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.CodeOf(err))
}

func TestStatus_NotFoundIsCoded(t *testing.T) {
	c := newWorkflowServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := c.Status(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.CodeOf(err))
}
