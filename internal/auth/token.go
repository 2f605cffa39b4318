// Package auth guards the admin API and invalidation endpoints with a
// shared-secret bearer token.
package auth

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
)

var ErrUnauthorized = errors.New("unauthorized")

// Provider authorizes incoming requests.
type Provider interface {
	VerifyRequest(r *http.Request) error
	RequireAuth(next http.HandlerFunc) http.HandlerFunc
}

// TokenProvider compares the Authorization bearer token against a shared
// secret in constant time.
type TokenProvider struct {
	secret []byte
}

func NewTokenProvider(secret string) *TokenProvider {
	return &TokenProvider{secret: []byte(secret)}
}

func (p *TokenProvider) VerifyRequest(r *http.Request) error {
	if len(p.secret) == 0 {
		// An unset secret closes the endpoints instead of opening them.
		return ErrUnauthorized
	}

	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return ErrUnauthorized
	}

	if subtle.ConstantTimeCompare([]byte(token), p.secret) != 1 {
		return ErrUnauthorized
	}
	return nil
}

func (p *TokenProvider) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := p.VerifyRequest(r); err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}
