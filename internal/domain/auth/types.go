package auth

import (
	"context"
	"fmt"
	"time"
)

// Identity is the verified result of an inbound bearer token. It is
// derived once per request and discarded when the request completes;
// nothing persists it.
type Identity struct {
	Subject     string
	Tenant      string
	DisplayName string
	Scopes      []string
	ExpiresAt   time.Time

	// RawToken is the exact token that passed verification. It is the
	// only value ever used as the on-behalf-of assertion.
	RawToken string
}

// VerifyErrorKind distinguishes verification failures. The dispatcher
// maps every kind to the same caller-visible "unauthenticated" response;
// the kind exists for logs and tests.
type VerifyErrorKind string

const (
	KindMalformedToken   VerifyErrorKind = "malformed_token"
	KindUntrustedIssuer  VerifyErrorKind = "untrusted_issuer"
	KindAudienceMismatch VerifyErrorKind = "audience_mismatch"
	KindExpired          VerifyErrorKind = "expired"
	KindSignatureInvalid VerifyErrorKind = "signature_invalid"
)

type VerificationError struct {
	Kind  VerifyErrorKind
	cause error
}

func (e *VerificationError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("token verification failed (%s): %v", e.Kind, e.cause)
	}
	return fmt.Sprintf("token verification failed (%s)", e.Kind)
}

func (e *VerificationError) Unwrap() error {
	return e.cause
}

func newVerificationError(kind VerifyErrorKind, cause error) *VerificationError {
	return &VerificationError{Kind: kind, cause: cause}
}

// Verifier validates an inbound bearer token and produces the identity
// it asserts. Implementations must be pure checks with no side effects
// beyond key-set caching.
type Verifier interface {
	Verify(ctx context.Context, rawToken string) (*Identity, error)
}
