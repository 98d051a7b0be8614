package token

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/securedocs/obo-search-relay/internal/domain/auth"
	"github.com/securedocs/obo-search-relay/pkg/logger"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultExpiryMargin  = 60 * time.Second
	DefaultEvictionGrace = 5 * time.Minute

	minJanitorInterval = 10 * time.Second
)

// Cache memoizes downstream tokens per exchange key. Concurrent requests
// sharing a key coalesce into one in-flight exchange; failures are never
// cached, so the next call retries immediately.
type Cache struct {
	exchanger Exchanger
	store     Store
	margin    time.Duration
	grace     time.Duration
	now       func() time.Time

	mu      sync.Mutex
	entries map[ExchangeKey]*entry

	group singleflight.Group

	stop     chan struct{}
	stopOnce sync.Once
}

type entry struct {
	tok      *DownstreamToken
	lastUsed time.Time
}

type CacheOption func(*Cache)

// WithStore adds a shared second-level token store consulted on memory
// miss and written through on exchange success.
func WithStore(store Store) CacheOption {
	return func(c *Cache) {
		c.store = store
	}
}

// WithExpiryMargin sets how far ahead of token expiry an entry stops
// being served.
func WithExpiryMargin(margin time.Duration) CacheOption {
	return func(c *Cache) {
		c.margin = margin
	}
}

// WithEvictionGrace sets how long an expired entry may linger before the
// janitor removes it.
func WithEvictionGrace(grace time.Duration) CacheOption {
	return func(c *Cache) {
		c.grace = grace
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) {
		c.now = now
	}
}

func NewCache(exchanger Exchanger, opts ...CacheOption) *Cache {
	c := &Cache{
		exchanger: exchanger,
		margin:    DefaultExpiryMargin,
		grace:     DefaultEvictionGrace,
		now:       time.Now,
		entries:   make(map[ExchangeKey]*entry),
		stop:      make(chan struct{}),
	}

	for _, opt := range opts {
		opt(c)
	}

	go c.janitor()

	return c
}

// GetOrExchange returns a live downstream token for the identity and
// scope set, performing at most one concurrent exchange per key. The
// exchange itself runs detached from the caller's cancellation so that a
// departed caller still populates the cache; its result is never
// surfaced to that caller.
func (c *Cache) GetOrExchange(ctx context.Context, identity *auth.Identity, scopes []string) (*DownstreamToken, error) {
	key := NewExchangeKey(identity.Subject, identity.Tenant, scopes)

	if tok := c.lookup(key); tok != nil {
		return tok, nil
	}

	assertion := identity.RawToken

	ch := c.group.DoChan(key.String(), func() (any, error) {
		// A waiter that queued behind a finished exchange re-checks
		// before exchanging again.
		if tok := c.lookup(key); tok != nil {
			return tok, nil
		}

		exchangeCtx := context.WithoutCancel(ctx)

		if c.store != nil {
			if tok := c.fromStore(exchangeCtx, key); tok != nil {
				return tok, nil
			}
		}

		tok, err := c.exchanger.Exchange(exchangeCtx, assertion, scopes)
		if err != nil {
			return nil, err
		}

		c.put(key, tok)

		if c.store != nil {
			if err := c.store.Put(exchangeCtx, key, tok); err != nil {
				logger.WarnContext(exchangeCtx, "failed to write token to shared store",
					slog.String("error", err.Error()))
			}
		}

		return tok, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*DownstreamToken), nil
	case <-ctx.Done():
		// The in-flight exchange keeps running for cache population;
		// this caller just stops waiting.
		return nil, ctx.Err()
	}
}

// Close stops the eviction janitor.
func (c *Cache) Close() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}

func (c *Cache) lookup(key ExchangeKey) *DownstreamToken {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil
	}

	now := c.now()
	if !e.tok.LiveAt(now, c.margin) {
		return nil
	}

	e.lastUsed = now
	return e.tok
}

func (c *Cache) put(key ExchangeKey, tok *DownstreamToken) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &entry{tok: tok, lastUsed: c.now()}
}

func (c *Cache) fromStore(ctx context.Context, key ExchangeKey) *DownstreamToken {
	tok, err := c.store.Get(ctx, key)
	if err != nil {
		logger.WarnContext(ctx, "failed to read token from shared store",
			slog.String("error", err.Error()))
		return nil
	}
	if !tok.LiveAt(c.now(), c.margin) {
		return nil
	}

	c.put(key, tok)
	return tok
}

func (c *Cache) janitor() {
	interval := c.grace
	if interval < minJanitorInterval {
		interval = minJanitorInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.evictExpired()
		case <-c.stop:
			return
		}
	}
}

// evictExpired removes entries unused past their expiry plus the grace
// window, bounding memory growth under many distinct users.
func (c *Cache) evictExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, e := range c.entries {
		if now.After(e.tok.ExpiresAt.Add(c.grace)) && now.Sub(e.lastUsed) > c.grace {
			delete(c.entries, key)
		}
	}
}
