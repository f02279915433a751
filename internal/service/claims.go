package service

import (
	"github.com/golang-jwt/jwt/v5"

	domainauth "github.com/alumon/ui-gateway/internal/domain/auth"
	apperrors "github.com/alumon/ui-gateway/internal/errors"
	"github.com/alumon/ui-gateway/internal/ports"
)

// JWTClaimDecoder recovers identity fields from an access token payload
// without verifying the signature. The backend is the sole issuer and
// verifier; decoding here only reconstructs who the token was issued to
// when no profile snapshot is stored. Authorization is still enforced by
// the backend on every proxied request.
type JWTClaimDecoder struct{}

var _ ports.ClaimDecoder = JWTClaimDecoder{}

// DecodeIdentity parses the token payload and maps its claims onto an
// Identity. The user id claim is "user_id", with "id" as a fallback.
// Flags absent from the payload default to false; a token is only ever
// issued to an active account, so IsActive is true.
func (JWTClaimDecoder) DecodeIdentity(accessToken string) (*domainauth.Identity, error) {
	if accessToken == "" {
		return nil, apperrors.Validation("empty access token")
	}

	claims := jwt.MapClaims{}
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	if _, _, err := parser.ParseUnverified(accessToken, claims); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, "malformed access token")
	}

	id, ok := claimInt64(claims, "user_id")
	if !ok {
		id, ok = claimInt64(claims, "id")
	}
	if !ok {
		return nil, apperrors.Validation("access token has no user id claim")
	}

	return &domainauth.Identity{
		ID:          id,
		Username:    claimString(claims, "username"),
		Email:       claimString(claims, "email"),
		IsSuperuser: claimBool(claims, "is_superuser"),
		IsStaff:     claimBool(claims, "is_staff"),
		Role:        claimString(claims, "role"),
		IsActive:    true,
	}, nil
}

func claimInt64(claims jwt.MapClaims, key string) (int64, bool) {
	switch v := claims[key].(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	default:
		return 0, false
	}
}

func claimString(claims jwt.MapClaims, key string) string {
	s, _ := claims[key].(string)
	return s
}

func claimBool(claims jwt.MapClaims, key string) bool {
	b, _ := claims[key].(bool)
	return b
}
