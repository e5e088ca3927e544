package auth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/rpupo63/diary-backend/errs"
)

// CookieName is the cookie that carries the session token for HTML pages.
const CookieName = "diary_session"

const issuer = "diary-backend"

// Claims is the payload of a session token.
type Claims struct {
	jwt.RegisteredClaims
	UserID uuid.UUID `json:"uid"`
}

// Sessions issues and verifies HS256 session tokens.
type Sessions struct {
	secret  []byte
	ttl     time.Duration
	revoker Revoker
	now     func() time.Time
}

func NewSessions(secret string, ttl time.Duration, revoker Revoker) *Sessions {
	if ttl <= 0 {
		ttl = 14 * 24 * time.Hour
	}
	if revoker == nil {
		revoker = NewMemoryRevoker()
	}
	return &Sessions{
		secret:  []byte(secret),
		ttl:     ttl,
		revoker: revoker,
		now:     time.Now,
	}
}

// Issue signs a new token for userID. Every token gets its own id so it can be
// revoked on its own.
func (s *Sessions) Issue(userID uuid.UUID) (string, *Claims, error) {
	now := s.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		UserID: userID,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", nil, err
	}
	return token, claims, nil
}

// Verify parses token and checks its signature, expiry and revocation.
func (s *Sessions) Verify(ctx context.Context, token string) (*Claims, error) {
	if token == "" {
		return nil, errs.NewMissingTokenError()
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, errs.NewInvalidTokenError(err)
	}
	if !parsed.Valid || claims.UserID == uuid.Nil || claims.ID == "" {
		return nil, errs.NewInvalidTokenError(jwt.ErrTokenInvalidClaims)
	}

	revoked, err := s.revoker.IsRevoked(ctx, claims.ID)
	if err != nil {
		// revocation lookups fail open
		log.Error().Err(err).Msg("Error checking token revocation")
	}
	if revoked {
		return nil, errs.NewTokenRevokedError()
	}
	return claims, nil
}

// Revoke invalidates claims until they would have expired.
func (s *Sessions) Revoke(ctx context.Context, claims *Claims) error {
	if claims == nil || claims.ExpiresAt == nil {
		return nil
	}
	return s.revoker.Revoke(ctx, claims.ID, claims.ExpiresAt.Time)
}
