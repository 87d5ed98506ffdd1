package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeIdentifier(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"territory_manager", "territorymanager"},
		{"Territory Manager", "territorymanager"},
		{"TERRITORY-MANAGER", "territorymanager"},
		{"stage_4", "stage4"},
		{"Stage 4", "stage4"},
		{"", ""},
		{"___", ""},
		{"a1!b2?c3", "a1b2c3"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizeIdentifier(tc.in), "input %q", tc.in)
	}
}

func TestIsViewerTurn_DirectMatch(t *testing.T) {
	cases := []struct {
		name  string
		role  string
		stage string
		want  bool
	}{
		{name: "exact match", role: "territory_manager", stage: "territory_manager", want: true},
		{name: "case and punctuation differ", role: "Territory_Manager", stage: "territorymanager", want: true},
		{name: "spaces in stage", role: "area_manager", stage: "Area Manager", want: true},
		{name: "different role", role: "area_manager", stage: "territory_manager", want: false},
		{name: "empty stage", role: "territory_manager", stage: "", want: false},
		{name: "empty role", role: "", stage: "territory_manager", want: false},
		{name: "both empty", role: "", stage: "", want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsViewerTurn(tc.role, tc.stage))
		})
	}
}

func TestIsViewerTurn_PositionalStages(t *testing.T) {
	cases := []struct {
		name  string
		role  string
		stage string
		want  bool
	}{
		{name: "stage_1 is dealer_admin", role: "dealer_admin", stage: "stage_1", want: true},
		{name: "stage_4 is area_manager", role: "area_manager", stage: "stage_4", want: true},
		{name: "stage_4 wrong role", role: "regional_manager", stage: "stage_4", want: false},
		{name: "stage_6 is regional_admin", role: "regional_admin", stage: "stage_6", want: true},
		{name: "stage_0 out of range", role: "dealer_admin", stage: "stage_0", want: false},
		{name: "stage_7 out of range", role: "regional_admin", stage: "stage_7", want: false},
		{name: "stage_10 out of range", role: "regional_admin", stage: "stage_10", want: false},
		{name: "stage without digits", role: "dealer_admin", stage: "stage_", want: false},
		{name: "mixed casing positional", role: "Sales Executive", stage: "Stage-2", want: true},
		{name: "trailing junk after digits", role: "dealer_admin", stage: "stage_1b", want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsViewerTurn(tc.role, tc.stage))
		})
	}
}

func TestIsViewerTurn_SuperAdmin(t *testing.T) {
	stages := []string{"", "stage_10", "stage_0", "territory_manager", "garbage!!!", "stage_"}
	for _, stage := range stages {
		assert.True(t, IsViewerTurn("super_admin", stage), "stage %q", stage)
		assert.True(t, IsViewerTurn("Super Admin", stage), "stage %q", stage)
	}
}

func TestIsViewerTurn_EveryPipelinePosition(t *testing.T) {
	for i, role := range Pipeline {
		stage := "stage_" + string(rune('1'+i))
		assert.True(t, IsViewerTurn(role, stage), "role %q stage %q", role, stage)
	}
}

func TestStatusIsPending(t *testing.T) {
	assert.True(t, StatusIsPending("pending"))
	assert.True(t, StatusIsPending("Pending"))
	assert.True(t, StatusIsPending("PENDING"))
	assert.False(t, StatusIsPending("approved"))
	assert.False(t, StatusIsPending(""))
}

func TestSnapshotApprovalStatusOrPending(t *testing.T) {
	assert.Equal(t, "pending", Snapshot{}.ApprovalStatusOrPending())
	assert.Equal(t, "rejected", Snapshot{ApprovalStatus: "rejected"}.ApprovalStatusOrPending())
}
