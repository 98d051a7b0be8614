package auth

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// ErrUnknownKey is returned by a KeySource when the key id is not in the
// published key set, even after a refresh.
var ErrUnknownKey = errors.New("unknown key id")

// KeySource resolves signing keys from the trusted issuer's published
// key set. Implementations cache the set with a bounded TTL and refresh
// it once when asked for a key id they have not seen.
type KeySource interface {
	Key(ctx context.Context, kid string) (*rsa.PublicKey, error)
}

type jwksVerifier struct {
	keys     KeySource
	issuer   string
	audience string
}

// NewVerifier builds a Verifier that checks signature, issuer, audience
// and validity window against the configured trust anchors.
func NewVerifier(keys KeySource, issuer, audience string) Verifier {
	return &jwksVerifier{
		keys:     keys,
		issuer:   issuer,
		audience: audience,
	}
}

func (v *jwksVerifier) Verify(ctx context.Context, rawToken string) (*Identity, error) {
	if rawToken == "" {
		return nil, newVerificationError(KindMalformedToken, errors.New("empty token"))
	}

	keyFunc := func(t *jwt.Token) (any, error) {
		kid, ok := t.Header["kid"].(string)
		if !ok || kid == "" {
			return nil, fmt.Errorf("token header has no key id")
		}
		return v.keys.Key(ctx, kid)
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(rawToken, claims, keyFunc,
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, mapParseError(err)
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, newVerificationError(KindMalformedToken, err)
	}

	return &Identity{
		Subject:     stringClaim(claims, "sub"),
		Tenant:      stringClaim(claims, "tid"),
		DisplayName: displayName(claims),
		Scopes:      splitScopes(stringClaim(claims, "scp")),
		ExpiresAt:   exp.Time,
		RawToken:    rawToken,
	}, nil
}

func displayName(claims jwt.MapClaims) string {
	if name := stringClaim(claims, "name"); name != "" {
		return name
	}
	return stringClaim(claims, "preferred_username")
}

func mapParseError(err error) *VerificationError {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return newVerificationError(KindMalformedToken, err)
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return newVerificationError(KindUntrustedIssuer, err)
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return newVerificationError(KindAudienceMismatch, err)
	case errors.Is(err, jwt.ErrTokenExpired), errors.Is(err, jwt.ErrTokenNotValidYet):
		return newVerificationError(KindExpired, err)
	default:
		// Signature failures, unknown key ids and unverifiable tokens
		// all land here.
		return newVerificationError(KindSignatureInvalid, err)
	}
}
