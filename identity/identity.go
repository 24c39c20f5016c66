// Package identity verifies bearer tokens and maps them to a stable subject
// identifier and email.
package identity

import (
	"context"
	"fmt"
	"time"

	entitle "github.com/xraph/entitle"
)

// Rejection reasons. Every one of them matches entitle.ErrAuthentication.
var (
	ErrInvalidToken     = fmt.Errorf("%w: invalid token", entitle.ErrAuthentication)
	ErrUnverifiedEmail  = fmt.Errorf("%w: email not verified", entitle.ErrAuthentication)
	ErrTokenExpiring    = fmt.Errorf("%w: token about to expire", entitle.ErrAuthentication)
	ErrAudienceMismatch = fmt.Errorf("%w: token issued for another client", entitle.ErrAuthentication)
	ErrClientNotAllowed = fmt.Errorf("%w: client not allowed", entitle.ErrAuthentication)
	ErrUnavailable      = fmt.Errorf("%w: identity provider unavailable", entitle.ErrAuthentication)
)

// Identity is a verified caller.
type Identity struct {
	SubjectID string        `json:"subject_id"`
	Email     string        `json:"email,omitempty"`
	ExpiresIn time.Duration `json:"expires_in"`
}

// Verifier checks a bearer token. extensionID is the calling client's id as
// reported by the caller; an empty value skips the allow list.
type Verifier interface {
	Verify(ctx context.Context, token, extensionID string) (*Identity, error)
}

// VerifierFunc is an adapter to use a plain function as a Verifier.
type VerifierFunc func(ctx context.Context, token, extensionID string) (*Identity, error)

// Verify implements Verifier.
func (f VerifierFunc) Verify(ctx context.Context, token, extensionID string) (*Identity, error) {
	return f(ctx, token, extensionID)
}

// Static is a Verifier backed by a fixed token table, for development and tests.
type Static map[string]Identity

// Verify implements Verifier.
func (s Static) Verify(_ context.Context, token, _ string) (*Identity, error) {
	id, ok := s[token]
	if !ok || token == "" {
		return nil, ErrInvalidToken
	}
	return &id, nil
}

type ctxKey struct{}

// NewContext returns a copy of ctx carrying id.
func NewContext(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity stored in ctx, if any.
func FromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(*Identity)
	return id, ok
}
