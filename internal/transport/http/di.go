package http

import (
	"context"
	"fmt"
	"net/http"

	"github.com/securedocs/obo-search-relay/internal/app/relay"
	"github.com/securedocs/obo-search-relay/internal/config"
	"github.com/securedocs/obo-search-relay/internal/domain/auth"
	"github.com/securedocs/obo-search-relay/internal/domain/query"
	"github.com/securedocs/obo-search-relay/internal/domain/token"
	"github.com/securedocs/obo-search-relay/internal/infra/cache"
	"github.com/securedocs/obo-search-relay/internal/infra/entra"
	"github.com/securedocs/obo-search-relay/internal/infra/searchindex"
	mcptransport "github.com/securedocs/obo-search-relay/internal/transport/mcp"
	"github.com/securedocs/obo-search-relay/pkg/logger"
	"github.com/securedocs/obo-search-relay/pkg/otel"
	"github.com/securedocs/obo-search-relay/pkg/tracer"
)

type Server struct {
	httpServer *http.Server
	tokenCache *token.Cache
}

const (
	idleTimeoutMultiplier = 2
	serviceName           = "obo-search-relay"
)

func NewServer(cfg *config.Config) (*Server, error) {
	logger.InitLogger(cfg.Observability.LogLevel, cfg.Observability.Format, cfg.Observability.LogSource)

	otelCfg := otel.Config{
		ServiceName:        serviceName,
		EndpointURL:        cfg.Observability.TracingEndpointURL,
		Enabled:            cfg.Observability.TraceEnabled,
		SampleRatio:        1.0,
		Insecure:           true,
		ResourceAttributes: make(map[string]string),
	}
	if err := tracer.InitTracer(serviceName, otelCfg); err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}

	keys := entra.NewJWKSCache(cfg.JWKSEndpointOrDefault(), cfg.Auth.KeyCacheTTL)
	verifier := auth.NewVerifier(keys, cfg.Auth.Issuer, cfg.Auth.Audience)

	exchanger := entra.NewClient(cfg.TokenEndpoint(), cfg.Auth.ClientID, cfg.Auth.ClientSecret)

	cacheOpts := []token.CacheOption{
		token.WithExpiryMargin(cfg.TokenCache.ExpiryMargin),
		token.WithEvictionGrace(cfg.TokenCache.EvictionGrace),
	}
	// Redis is optional: with a URL configured, exchanged tokens are
	// shared across replicas; without it the in-process cache stands
	// alone.
	if cfg.TokenCache.Redis.URL != "" {
		redisClient, err := cache.NewRedisClient(cfg.TokenCache.Redis.URL, cfg.TokenCache.Redis.PoolSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create redis client: %w", err)
		}
		cacheOpts = append(cacheOpts, token.WithStore(cache.NewTokenStore(redisClient)))
	}
	tokenCache := token.NewCache(exchanger, cacheOpts...)

	store := searchindex.NewClient(
		cfg.Search.Endpoint,
		cfg.Search.Index,
		cfg.Search.AdminKey,
		cfg.Search.APIVersion,
		cfg.Search.Suggester,
	)
	executor := query.NewExecutor(store, cfg.Search.Timeout)

	service := relay.NewService(verifier, tokenCache, executor, cfg.Auth.Scopes)
	mcpServer := mcptransport.NewServer(service)

	router := NewRouter(mcpServer, cfg)

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.ReadTimeout * idleTimeoutMultiplier,
	}

	return &Server{
		httpServer: httpServer,
		tokenCache: tokenCache,
	}, nil
}

func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.tokenCache.Close()
	return s.httpServer.Shutdown(ctx)
}
