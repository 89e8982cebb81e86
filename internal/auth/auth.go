// Package auth is the engine's view of the identity provider. The engine
// only needs one answer from it: which administrator, if any, a credential
// belongs to. Registration, passwords and token issuance live elsewhere.
package auth

import (
	"context"

	"github.com/dl369/quiz-backend/internal/domain"
	"github.com/dl369/quiz-backend/internal/errors"
)

// Token is an opaque admin credential. It is deliberately a distinct type
// from domain.AdminID so a credential is never used where an identity is
// expected.
type Token string

type Verifier interface {
	// Verify resolves a token to the administrator it authenticates, or an
	// unauthenticated error.
	Verify(ctx context.Context, t Token) (domain.AdminID, error)
}

// StaticVerifier authenticates against a fixed token table. It stands in
// for a real identity provider in local wiring and tests.
type StaticVerifier struct {
	tokens map[Token]domain.AdminID
}

func NewStaticVerifier(tokens map[string]string) *StaticVerifier {
	v := &StaticVerifier{tokens: make(map[Token]domain.AdminID, len(tokens))}
	for t, id := range tokens {
		v.tokens[Token(t)] = domain.AdminID(id)
	}
	return v
}

func (v *StaticVerifier) Verify(_ context.Context, t Token) (domain.AdminID, error) {
	if t == "" {
		return "", errors.Unauthenticatedf("token is empty")
	}

	id, ok := v.tokens[t]
	if !ok {
		return "", errors.Unauthenticatedf("token is invalid")
	}

	return id, nil
}
