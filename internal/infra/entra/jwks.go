package entra

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/securedocs/obo-search-relay/internal/domain/auth"
	httpclient "github.com/securedocs/obo-search-relay/pkg/http"
	"github.com/securedocs/obo-search-relay/pkg/logger"
)

const (
	// minRefreshInterval bounds how often an unknown key id can force a
	// key-set refetch.
	minRefreshInterval = 30 * time.Second
)

type jwksDocument struct {
	Keys []jwksKey `json:"keys"`
}

type jwksKey struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// JWKSCache resolves token-signing keys from the issuer's published key
// set, caching the set with a bounded TTL. An unknown key id triggers
// one refetch (a signing-key rollover looks exactly like this), rate
// limited so a flood of bad tokens cannot hammer the endpoint.
type JWKSCache struct {
	endpoint string
	ttl      time.Duration

	mu        sync.Mutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
}

func NewJWKSCache(endpoint string, ttl time.Duration) *JWKSCache {
	return &JWKSCache{
		endpoint: endpoint,
		ttl:      ttl,
		keys:     make(map[string]*rsa.PublicKey),
	}
}

func (c *JWKSCache) Key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	fresh := !c.fetchedAt.IsZero() && now.Sub(c.fetchedAt) < c.ttl

	if key, ok := c.keys[kid]; ok && fresh {
		return key, nil
	}

	if fresh && now.Sub(c.fetchedAt) < minRefreshInterval {
		return nil, auth.ErrUnknownKey
	}

	if err := c.fetchLocked(ctx); err != nil {
		return nil, err
	}

	if key, ok := c.keys[kid]; ok {
		return key, nil
	}
	return nil, auth.ErrUnknownKey
}

func (c *JWKSCache) fetchLocked(ctx context.Context) error {
	var doc jwksDocument
	resp, err := httpclient.Get(ctx, c.endpoint, httpclient.WithResult(&doc))
	if err != nil {
		return fmt.Errorf("jwks fetch failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("jwks fetch failed with status %d", resp.StatusCode())
	}

	keys := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, k := range doc.Keys {
		if k.Kty != "RSA" || k.Kid == "" {
			continue
		}
		pub, err := parseRSAKey(k)
		if err != nil {
			logger.WarnContext(ctx, "skipping unparseable jwks key",
				slog.String("kid", k.Kid),
				slog.String("error", err.Error()))
			continue
		}
		keys[k.Kid] = pub
	}

	c.keys = keys
	c.fetchedAt = time.Now()

	logger.DebugContext(ctx, "refreshed jwks key set", slog.Int("keys", len(keys)))
	return nil
}

func parseRSAKey(k jwksKey) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("invalid modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("invalid exponent: %w", err)
	}

	e := 0
	for _, b := range eBytes {
		e = e<<8 | int(b)
	}
	if e <= 1 {
		return nil, fmt.Errorf("invalid exponent value %d", e)
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: e,
	}, nil
}
