package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/securedocs/obo-search-relay/internal/domain/token"
)

// storedToken is the wire form of a downstream token in the shared
// store. The TTL on the key tracks the token's own expiry, so a read
// can only ever see a token the provider still considers live.
type storedToken struct {
	Value     string    `json:"value"`
	ExpiresAt time.Time `json:"expires_at"`
	Scopes    []string  `json:"scopes"`
}

type redisStore struct {
	client *redis.Client
}

func NewRedisClient(url string, poolSize int) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	opt.PoolSize = poolSize

	client := redis.NewClient(opt)

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}

// NewTokenStore wraps a redis client as a shared downstream-token store.
func NewTokenStore(client *redis.Client) token.Store {
	return &redisStore{client: client}
}

func (r *redisStore) Get(ctx context.Context, key token.ExchangeKey) (*token.DownstreamToken, error) {
	val, err := r.client.Get(ctx, redisKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	var stored storedToken
	if err := json.Unmarshal([]byte(val), &stored); err != nil {
		return nil, fmt.Errorf("failed to unmarshal stored token: %w", err)
	}

	return &token.DownstreamToken{
		Value:     stored.Value,
		ExpiresAt: stored.ExpiresAt,
		Scopes:    stored.Scopes,
	}, nil
}

func (r *redisStore) Put(ctx context.Context, key token.ExchangeKey, tok *token.DownstreamToken) error {
	ttl := time.Until(tok.ExpiresAt)
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(storedToken{
		Value:     tok.Value,
		ExpiresAt: tok.ExpiresAt,
		Scopes:    tok.Scopes,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}

	if err := r.client.Set(ctx, redisKey(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set redis cache: %w", err)
	}

	return nil
}

// redisKey hashes the exchange key so subject ids never appear in redis
// key listings.
func redisKey(key token.ExchangeKey) string {
	sum := sha256.Sum256([]byte(key.String()))
	return fmt.Sprintf("relay:obo:%s", hex.EncodeToString(sum[:]))
}
