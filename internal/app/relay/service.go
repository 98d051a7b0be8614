package relay

import (
	"context"
	"errors"
	"log/slog"

	"github.com/securedocs/obo-search-relay/internal/domain/auth"
	"github.com/securedocs/obo-search-relay/internal/domain/query"
	"github.com/securedocs/obo-search-relay/internal/domain/token"
	"github.com/securedocs/obo-search-relay/pkg/logger"
	"github.com/securedocs/obo-search-relay/pkg/tracer"
	"go.opentelemetry.io/otel/attribute"
)

// Profile is the whoami response, derived from the verified identity
// only.
type Profile struct {
	Subject     string `json:"subject"`
	DisplayName string `json:"displayName,omitempty"`
}

// TokenSource provides live downstream tokens. Implemented by the token
// exchange cache.
type TokenSource interface {
	GetOrExchange(ctx context.Context, identity *auth.Identity, scopes []string) (*token.DownstreamToken, error)
}

// Service is the operation dispatcher: it runs the verify → exchange →
// execute pipeline per call and is the only component that decides what
// failure detail a caller may see.
type Service interface {
	Search(ctx context.Context, rawToken, queryText string, top int) ([]query.Projection, error)
	Get(ctx context.Context, rawToken, id string) (query.Projection, error)
	Suggest(ctx context.Context, rawToken, queryText string, top int) ([]query.Projection, error)
	WhoAmI(ctx context.Context, rawToken string) (*Profile, error)
}

type service struct {
	verifier auth.Verifier
	tokens   TokenSource
	executor query.Executor
	scopes   []string
}

func NewService(verifier auth.Verifier, tokens TokenSource, executor query.Executor, scopes []string) Service {
	return &service{
		verifier: verifier,
		tokens:   tokens,
		executor: executor,
		scopes:   scopes,
	}
}

func (s *service) Search(ctx context.Context, rawToken, queryText string, top int) ([]query.Projection, error) {
	ctx, span := tracer.Start(ctx, "app.relay.Search")
	defer span.End()

	if queryText == "" {
		return nil, newError(FailureInvalidArguments, "query must not be empty")
	}

	tok, relayErr := s.authorize(ctx, rawToken)
	if relayErr != nil {
		span.SetAttributes(attribute.String("relay.failure", string(relayErr.Kind)))
		return nil, relayErr
	}

	projections, err := s.executor.Search(ctx, tok, queryText, top)
	if err != nil {
		span.SetAttributes(attribute.String("relay.failure", string(FailureExecution)))
		return nil, s.mapExecutionError(ctx, err)
	}

	span.SetAttributes(attribute.Int("relay.results", len(projections)))
	return projections, nil
}

func (s *service) Get(ctx context.Context, rawToken, id string) (query.Projection, error) {
	ctx, span := tracer.Start(ctx, "app.relay.Get")
	defer span.End()

	if id == "" {
		return nil, newError(FailureInvalidArguments, "id must not be empty")
	}

	tok, relayErr := s.authorize(ctx, rawToken)
	if relayErr != nil {
		span.SetAttributes(attribute.String("relay.failure", string(relayErr.Kind)))
		return nil, relayErr
	}

	projection, err := s.executor.GetByID(ctx, tok, id)
	if err != nil {
		return nil, s.mapExecutionError(ctx, err)
	}

	return projection, nil
}

func (s *service) Suggest(ctx context.Context, rawToken, queryText string, top int) ([]query.Projection, error) {
	ctx, span := tracer.Start(ctx, "app.relay.Suggest")
	defer span.End()

	if queryText == "" {
		return nil, newError(FailureInvalidArguments, "query must not be empty")
	}

	tok, relayErr := s.authorize(ctx, rawToken)
	if relayErr != nil {
		span.SetAttributes(attribute.String("relay.failure", string(relayErr.Kind)))
		return nil, relayErr
	}

	projections, err := s.executor.Suggest(ctx, tok, queryText, top)
	if err != nil {
		return nil, s.mapExecutionError(ctx, err)
	}

	return projections, nil
}

func (s *service) WhoAmI(ctx context.Context, rawToken string) (*Profile, error) {
	ctx, span := tracer.Start(ctx, "app.relay.WhoAmI")
	defer span.End()

	identity, relayErr := s.authenticate(ctx, rawToken)
	if relayErr != nil {
		span.SetAttributes(attribute.String("relay.failure", string(relayErr.Kind)))
		return nil, relayErr
	}

	return &Profile{
		Subject:     identity.Subject,
		DisplayName: identity.DisplayName,
	}, nil
}

// authorize runs verification and the downstream exchange; the returned
// token is borrowed by the executor for one call.
func (s *service) authorize(ctx context.Context, rawToken string) (*token.DownstreamToken, *Error) {
	identity, relayErr := s.authenticate(ctx, rawToken)
	if relayErr != nil {
		return nil, relayErr
	}

	tok, err := s.tokens.GetOrExchange(ctx, identity, s.scopes)
	if err != nil {
		return nil, s.mapExchangeError(ctx, err)
	}

	return tok, nil
}

func (s *service) authenticate(ctx context.Context, rawToken string) (*auth.Identity, *Error) {
	if rawToken == "" {
		return nil, newError(FailureUnauthenticated, "Not authenticated")
	}

	identity, err := s.verifier.Verify(ctx, rawToken)
	if err != nil {
		s.logVerificationFailure(ctx, rawToken, err)
		return nil, newError(FailureUnauthenticated, "Not authenticated")
	}

	logger.DebugContext(ctx, "caller authenticated",
		slog.String("subject", identity.Subject),
		slog.String("token", logger.TokenPreview(rawToken)))

	return identity, nil
}

// logVerificationFailure records diagnostic claims at debug level only.
// The raw token and the full claim set never reach the logs.
func (s *service) logVerificationFailure(ctx context.Context, rawToken string, err error) {
	attrs := []slog.Attr{
		slog.String("error", err.Error()),
		slog.String("token", logger.TokenPreview(rawToken)),
	}

	if claims, decodeErr := auth.DecodeClaims(rawToken); decodeErr == nil {
		attrs = append(attrs,
			slog.String("issuer", claims.Issuer),
			slog.Any("audience", claims.Audience),
			slog.Time("expires_at", claims.ExpiresAt),
		)
	}

	logger.DebugContext(ctx, "token verification failed", attrs...)
}

func (s *service) mapExchangeError(ctx context.Context, err error) *Error {
	var exErr *token.ExchangeError
	if !errors.As(err, &exErr) {
		logger.ErrorContext(ctx, "downstream exchange failed", slog.String("error", err.Error()))
		return newError(FailureExchange, "authorization exchange failed")
	}

	logger.WarnContext(ctx, "downstream exchange failed",
		slog.String("kind", string(exErr.Kind)))

	switch {
	case exErr.Kind == token.KindConsentRequired:
		// Surfaced distinctly so the caller can be redirected to a
		// consent flow instead of silently retrying.
		return newError(FailureConsentRequired, "interactive consent is required for downstream access")
	case exErr.Retryable():
		return newError(FailureExchangeRetryable, "authorization service temporarily unavailable")
	default:
		return newError(FailureExchange, "authorization exchange failed")
	}
}

func (s *service) mapExecutionError(ctx context.Context, err error) *Error {
	if errors.Is(err, query.ErrNotFound) {
		return newError(FailureNotFound, "document not found")
	}

	logger.ErrorContext(ctx, "store operation failed", slog.String("error", err.Error()))

	var storeErr *query.StoreError
	if errors.As(err, &storeErr) && storeErr.Kind == query.KindStoreTimeout {
		return newError(FailureExecution, "search operation timed out")
	}
	return newError(FailureExecution, "search operation failed")
}
