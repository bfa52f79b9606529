// Package auth verifies identity tokens issued by the external auth service.
package auth

import (
	"context"

	"github.com/e-kose/FT-PINPON-sub002/internal/apperr"
)

var ErrUnauthorized = apperr.New(apperr.Unauthorized, "unauthorized")

// Identity is the verified caller.
type Identity struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Verifier turns a token into an identity or fails with ErrUnauthorized.
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}
