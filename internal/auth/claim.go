package auth

import (
	"errors"

	"github.com/geocoder89/estategate/internal/domain/user"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrClaimExpired = errors.New("registration claim expired")
	ErrClaimInvalid = errors.New("registration claim invalid")
)

type registrationClaims struct {
	UserData  user.PendingRegistration `json:"user_data"`
	TokenType string                   `json:"typ"`
	jwt.RegisteredClaims
}

// IssueRegistrationClaim signs p into a self-contained claim valid for the manager's claim TTL.
// The returned PendingRegistration carries the issued id and window.
func (m *Manager) IssueRegistrationClaim(p user.PendingRegistration) (string, user.PendingRegistration, error) {
	now := m.now().UTC()

	p.ClaimID = uuid.NewString()
	p.IssuedAt = now
	p.ExpiresAt = now.Add(m.claimTTL)

	claims := registrationClaims{
		UserData:  p,
		TokenType: TokenTypeRegistration,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        p.ClaimID,
			Subject:   p.Email,
			IssuedAt:  jwt.NewNumericDate(p.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(p.ExpiresAt),
		},
	}

	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", user.PendingRegistration{}, err
	}
	return raw, p, nil
}

// ParseRegistrationClaim verifies signature and expiry. Expiry is reported as
// ErrClaimExpired, every other failure as ErrClaimInvalid.
func (m *Manager) ParseRegistrationClaim(raw string) (user.PendingRegistration, error) {
	token, err := m.parser().ParseWithClaims(raw, &registrationClaims{}, m.keyFunc)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return user.PendingRegistration{}, ErrClaimExpired
		}
		return user.PendingRegistration{}, ErrClaimInvalid
	}

	claims, ok := token.Claims.(*registrationClaims)
	if !ok || !token.Valid || claims.TokenType != TokenTypeRegistration {
		return user.PendingRegistration{}, ErrClaimInvalid
	}
	if claims.ExpiresAt == nil || claims.UserData.Email == "" {
		return user.PendingRegistration{}, ErrClaimInvalid
	}

	p := claims.UserData
	p.ClaimID = claims.ID
	p.ExpiresAt = claims.ExpiresAt.Time
	if claims.IssuedAt != nil {
		p.IssuedAt = claims.IssuedAt.Time
	}
	return p, nil
}
