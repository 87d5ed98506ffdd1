// Package auth resolves the authenticated Viewer from a bearer token. The
// viewer is carried explicitly through request context rather than read from
// ambient session storage, so the filter and orchestrator stay testable.
package auth

import (
	"context"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/dealerdesk/be-payment-approvals/internal/errors"
	"github.com/dealerdesk/be-payment-approvals/internal/workflow"
)

// Claims are the JWT claims the console's identity provider issues.
type Claims struct {
	jwt.RegisteredClaims
	Role        string `json:"role"`
	RegionID    string `json:"region_id,omitempty"`
	AreaID      string `json:"area_id,omitempty"`
	TerritoryID string `json:"territory_id,omitempty"`
	DealerID    string `json:"dealer_id,omitempty"`
}

// ParseViewer validates the token and extracts the viewer it describes.
func ParseViewer(secret []byte, token string) (workflow.Viewer, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, apperrors.New(apperrors.ErrCodeUnauthorized, "unexpected signing method")
		}
		return secret, nil
	})
	if err != nil || !parsed.Valid {
		return workflow.Viewer{}, apperrors.Wrap(err, apperrors.ErrCodeUnauthorized, "invalid token")
	}
	if claims.Subject == "" || claims.Role == "" {
		return workflow.Viewer{}, apperrors.New(apperrors.ErrCodeUnauthorized, "token missing subject or role")
	}

	return workflow.Viewer{
		UserID:      claims.Subject,
		Role:        claims.Role,
		RegionID:    claims.RegionID,
		AreaID:      claims.AreaID,
		TerritoryID: claims.TerritoryID,
		DealerID:    claims.DealerID,
	}, nil
}

// IssueToken signs a token for the given viewer. Used by tests and the local
// development login stub.
func IssueToken(secret []byte, viewer workflow.Viewer, registered jwt.RegisteredClaims) (string, error) {
	registered.Subject = viewer.UserID
	claims := &Claims{
		RegisteredClaims: registered,
		Role:             viewer.Role,
		RegionID:         viewer.RegionID,
		AreaID:           viewer.AreaID,
		TerritoryID:      viewer.TerritoryID,
		DealerID:         viewer.DealerID,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

type contextKey struct{}

// WithViewer attaches a viewer to the context.
func WithViewer(ctx context.Context, viewer workflow.Viewer) context.Context {
	return context.WithValue(ctx, contextKey{}, viewer)
}

// ViewerFrom extracts the viewer attached by the auth middleware.
func ViewerFrom(ctx context.Context) (workflow.Viewer, bool) {
	viewer, ok := ctx.Value(contextKey{}).(workflow.Viewer)
	return viewer, ok
}
