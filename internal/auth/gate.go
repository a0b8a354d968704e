package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/reberkhan12-ai/live-azan/internal/core"
	"github.com/reberkhan12-ai/live-azan/internal/domain"
)

var (
	ErrMissingCredential = errors.New("missing credential")
	ErrTokenRejected     = errors.New("token rejected")
	ErrKeyMismatch       = errors.New("shared key mismatch")
)

// Credential carries whatever a connecting party presented. Token and
// Key are mutually exclusive paths; a token always wins when present.
type Credential struct {
	Token string
	Key   string
}

// Gate decides whether a registration attempt is allowed in. It has no
// retry logic: a failed attempt is fatal for the connection and the
// caller must reconnect.
type Gate struct {
	verifier core.IdentityVerifier
	secret   string
}

func NewGate(verifier core.IdentityVerifier, secret string) *Gate {
	return &Gate{verifier: verifier, secret: secret}
}

func (g *Gate) Verify(ctx context.Context, cred Credential) (*domain.Identity, error) {
	if cred.Token != "" {
		ident, err := g.verifier.Verify(ctx, cred.Token)
		if err != nil {
			return nil, fmt.Errorf("token verification: %w", err)
		}
		if ident == nil || ident.Subject == "" {
			return nil, ErrTokenRejected
		}
		return ident, nil
	}

	if cred.Key != "" && g.secret != "" {
		if subtle.ConstantTimeCompare([]byte(cred.Key), []byte(g.secret)) != 1 {
			return nil, ErrKeyMismatch
		}
		return &domain.Identity{Subject: "shared-key"}, nil
	}

	return nil, ErrMissingCredential
}
