// Package auth provides credential hashing, session tokens and the
// authentication middleware for the account API.
//
// AUTHENTICATION FLOW OVERVIEW:
//  1. POST /api/users/login with username + password
//  2. The service verifies the bcrypt hash and issues a fresh opaque token
//  3. The token is stored on the user row, overwriting any previous one
//  4. The client sends it back raw in the Authorization header
//  5. RequireAuth looks the token up in the store and puts the username
//     into the request context
//
// WHY OPAQUE TOKENS AND NOT JWT?
// The token is only meaningful because the store remembers it. Logging in
// again or logging out changes the stored value, and the old token stops
// working immediately. A self-contained signed token would stay valid until
// it expired.
package auth

import (
	"fmt"

	"github.com/google/uuid"
)

// TokenService issues opaque session tokens.
//
// A token is a random UUID v4 string: 122 bits of randomness from
// crypto/rand, with no structure a client could decode.
type TokenService struct {
	newID func() (uuid.UUID, error)
}

// NewTokenService creates a TokenService backed by uuid.NewRandom.
func NewTokenService() *TokenService {
	return &TokenService{newID: uuid.NewRandom}
}

// Generate returns a new token. It only fails if the system's random
// source fails.
func (s *TokenService) Generate() (string, error) {
	id, err := s.newID()
	if err != nil {
		return "", fmt.Errorf("auth: generating token: %w", err)
	}
	return id.String(), nil
}
