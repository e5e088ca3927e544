package api

import (
	"context"

	"github.com/rpupo63/diary-backend/auth"
	"github.com/rpupo63/diary-backend/models"
)

type keyType string

const (
	userKey   keyType = "user"
	claimsKey keyType = "claims"
)

// ctxWithUser adds the authenticated user and their session claims to the context
func ctxWithUser(ctx context.Context, user *models.User, claims *auth.Claims) context.Context {
	ctx = context.WithValue(ctx, userKey, user)
	return context.WithValue(ctx, claimsKey, claims)
}

// ctxGetUser retrieves the authenticated user, or nil for anonymous requests
func ctxGetUser(ctx context.Context) *models.User {
	user, _ := ctx.Value(userKey).(*models.User)
	return user
}

// ctxGetClaims retrieves the session claims of the authenticated user
func ctxGetClaims(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsKey).(*auth.Claims)
	return claims
}
