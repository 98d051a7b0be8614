package token

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// DownstreamToken is the result of an on-behalf-of exchange. It flows
// only between the cache, the exchange provider and the query executor;
// it is never returned to or accepted from the original caller.
type DownstreamToken struct {
	Value     string
	ExpiresAt time.Time
	Scopes    []string
}

// LiveAt reports whether the token is still usable at the given instant,
// keeping a safety margin ahead of expiry.
func (t *DownstreamToken) LiveAt(now time.Time, margin time.Duration) bool {
	return t != nil && now.Add(margin).Before(t.ExpiresAt)
}

// ExchangeKey identifies one cached downstream token. Two requests from
// the same subject asking for the same scope set share one entry.
type ExchangeKey struct {
	Subject string
	Tenant  string
	Scopes  string
}

// NewExchangeKey canonicalizes the scope set so that scope order does
// not split cache entries.
func NewExchangeKey(subject, tenant string, scopes []string) ExchangeKey {
	sorted := make([]string, len(scopes))
	copy(sorted, scopes)
	sort.Strings(sorted)

	return ExchangeKey{
		Subject: subject,
		Tenant:  tenant,
		Scopes:  strings.Join(sorted, " "),
	}
}

func (k ExchangeKey) String() string {
	return k.Subject + "|" + k.Tenant + "|" + k.Scopes
}

// ExchangeErrorKind classifies on-behalf-of failures. Only
// KindProviderUnavailable is eligible for automatic retry.
type ExchangeErrorKind string

const (
	KindInvalidAssertion    ExchangeErrorKind = "invalid_assertion"
	KindConsentRequired     ExchangeErrorKind = "consent_required"
	KindProviderUnavailable ExchangeErrorKind = "provider_unavailable"
	KindScopeDenied         ExchangeErrorKind = "scope_denied"
	KindTimeout             ExchangeErrorKind = "timeout"
)

type ExchangeError struct {
	Kind  ExchangeErrorKind
	cause error
}

func NewExchangeError(kind ExchangeErrorKind, cause error) *ExchangeError {
	return &ExchangeError{Kind: kind, cause: cause}
}

func (e *ExchangeError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("token exchange failed (%s): %v", e.Kind, e.cause)
	}
	return fmt.Sprintf("token exchange failed (%s)", e.Kind)
}

func (e *ExchangeError) Unwrap() error {
	return e.cause
}

// Retryable reports whether a fresh attempt could succeed without new
// user interaction.
func (e *ExchangeError) Retryable() bool {
	return e.Kind == KindProviderUnavailable || e.Kind == KindTimeout
}

// Exchanger performs the on-behalf-of grant: it presents the verified
// user assertion and the target scope set and receives a token asserting
// the same subject, scoped to the downstream resource.
type Exchanger interface {
	Exchange(ctx context.Context, userAssertion string, scopes []string) (*DownstreamToken, error)
}

// Store is an optional second cache level shared across relay instances.
// A nil result with nil error means "not present".
type Store interface {
	Get(ctx context.Context, key ExchangeKey) (*DownstreamToken, error)
	Put(ctx context.Context, key ExchangeKey, tok *DownstreamToken) error
}
