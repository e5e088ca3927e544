package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Session and role errors
var (
	ErrMissingToken     = errors.New("missing session token")
	ErrInvalidToken     = errors.New("invalid session token")
	ErrTokenRevoked     = errors.New("session token revoked")
	ErrInsufficientRole = errors.New("insufficient role")
)

func NewMissingTokenError() *ApiErr {
	return &ApiErr{
		StatusCode: http.StatusUnauthorized,
		err:        ErrMissingToken,
		Details:    "Authentication credentials were not provided",
		Field:      "authorization",
	}
}

func NewInvalidTokenError(cause error) *ApiErr {
	return &ApiErr{
		StatusCode: http.StatusUnauthorized,
		err:        ErrInvalidToken,
		Details:    "Invalid or expired session token",
		Field:      "authorization",
		Cause:      cause,
	}
}

func NewTokenRevokedError() *ApiErr {
	return &ApiErr{
		StatusCode: http.StatusUnauthorized,
		err:        ErrTokenRevoked,
		Details:    "Session has been logged out",
		Field:      "authorization",
	}
}

func NewInsufficientRoleError(requiredRole string) *ApiErr {
	return &ApiErr{
		StatusCode: http.StatusForbidden,
		err:        ErrInsufficientRole,
		Details:    fmt.Sprintf("Insufficient role. Required: %s", requiredRole),
		Field:      "authorization",
	}
}

func IsMissingTokenError(err error) bool {
	return errors.Is(err, ErrMissingToken)
}

func IsInvalidTokenError(err error) bool {
	return errors.Is(err, ErrInvalidToken)
}

func IsTokenRevokedError(err error) bool {
	return errors.Is(err, ErrTokenRevoked)
}
