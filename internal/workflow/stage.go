// Package workflow holds the approval-pipeline domain: role and stage
// identifiers, the fixed stage pipeline, and the turn-resolution predicate
// the pending filter is built on.
package workflow

import (
	"strconv"
	"strings"
)

// Viewer roles known to the console. Stage identifiers reported by the
// workflow service use the same names, but not the same spelling — see
// NormalizeIdentifier.
const (
	RoleDealerAdmin    = "dealer_admin"
	RoleSalesExecutive = "sales_executive"
	RoleTerritoryMgr   = "territory_manager"
	RoleAreaMgr        = "area_manager"
	RoleRegionalMgr    = "regional_manager"
	RoleRegionalAdmin  = "regional_admin"
	RoleFinanceAdmin   = "finance_admin"
	RoleAccountsUser   = "accounts_user"
	RoleSuperAdmin     = "super_admin"
)

// Pipeline is the ordered approval chain a payment moves through. Positional
// stage identifiers ("stage_N") are 1-indexed into this slice, so "stage_1"
// resolves to Pipeline[0].
var Pipeline = []string{
	RoleDealerAdmin,
	RoleSalesExecutive,
	RoleTerritoryMgr,
	RoleAreaMgr,
	RoleRegionalMgr,
	RoleRegionalAdmin,
}

// NormalizeIdentifier strips every non-alphanumeric byte and lower-cases the
// rest, so "Territory Manager", "territory_manager" and "TERRITORY-MANAGER"
// all compare equal. The output alphabet is [a-z0-9].
func NormalizeIdentifier(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			b.WriteByte(c)
		case c >= 'A' && c <= 'Z':
			b.WriteByte(c + ('a' - 'A'))
		}
	}
	return b.String()
}

// IsViewerTurn reports whether a viewer with the given role must act on an
// item currently waiting at the given workflow stage. Stage may be a role
// name or a positional "stage_N" identifier; both sides are normalized before
// comparison. Super admins can act at any stage, including when the stage is
// missing entirely.
func IsViewerTurn(viewerRole, workflowStage string) bool {
	role := NormalizeIdentifier(viewerRole)
	if role == NormalizeIdentifier(RoleSuperAdmin) {
		return true
	}

	stage := NormalizeIdentifier(workflowStage)
	if stage == "" {
		return false
	}
	if role == stage {
		return true
	}

	if mapped, ok := resolvePositional(stage); ok {
		return role == NormalizeIdentifier(mapped)
	}
	return false
}

// resolvePositional maps a normalized "stageN" identifier to its pipeline
// role. Returns false when the identifier is not positional or N falls
// outside [1, len(Pipeline)].
func resolvePositional(stage string) (string, bool) {
	const prefix = "stage"
	if !strings.HasPrefix(stage, prefix) {
		return "", false
	}
	digits := stage[len(prefix):]
	if digits == "" {
		return "", false
	}
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return "", false
		}
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n < 1 || n > len(Pipeline) {
		return "", false
	}
	return Pipeline[n-1], true
}
