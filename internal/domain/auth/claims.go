package auth

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims holds the subset of bearer-token claims the relay reads. They
// are decoded without signature verification, so they are only suitable
// for cache-key derivation and debug logging after verification has
// already happened upstream.
type Claims struct {
	Issuer            string
	Audience          []string
	Subject           string
	TenantID          string
	Name              string
	PreferredUsername string
	Scopes            []string
	ExpiresAt         time.Time
}

// DecodeClaims parses token claims without verifying the signature.
// Callers must not treat the result as authenticated.
func DecodeClaims(rawToken string) (*Claims, error) {
	parser := jwt.NewParser()

	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(rawToken, claims); err != nil {
		return nil, newVerificationError(KindMalformedToken, err)
	}

	out := &Claims{
		Issuer:            stringClaim(claims, "iss"),
		Subject:           stringClaim(claims, "sub"),
		TenantID:          stringClaim(claims, "tid"),
		Name:              stringClaim(claims, "name"),
		PreferredUsername: stringClaim(claims, "preferred_username"),
		Scopes:            splitScopes(stringClaim(claims, "scp")),
	}

	if aud, err := claims.GetAudience(); err == nil {
		out.Audience = aud
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}

	return out, nil
}

// DisplayName picks the human-readable name for whoami responses.
func (c *Claims) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.PreferredUsername
}

func stringClaim(claims jwt.MapClaims, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}

// splitScopes splits the space-separated scp claim.
func splitScopes(scp string) []string {
	if scp == "" {
		return nil
	}
	return strings.Fields(scp)
}
