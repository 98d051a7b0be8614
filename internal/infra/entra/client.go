package entra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/securedocs/obo-search-relay/internal/domain/token"
	httpclient "github.com/securedocs/obo-search-relay/pkg/http"
	"github.com/securedocs/obo-search-relay/pkg/logger"
)

const (
	oboGrantType      = "urn:ietf:params:oauth:grant-type:jwt-bearer"
	requestedTokenUse = "on_behalf_of"
	defaultMaxRetries = 2
	defaultRetryDelay = 200 * time.Millisecond
)

type tokenEndpointResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	Scope       string `json:"scope"`
}

type tokenEndpointError struct {
	Code        string `json:"error"`
	Description string `json:"error_description"`
	Suberror    string `json:"suberror"`
}

// Client performs the on-behalf-of grant against the identity provider
// token endpoint. Only provider-unavailable failures are retried, with
// exponential backoff; consent and assertion failures are terminal for
// the current request.
type Client struct {
	tokenURL     string
	clientID     string
	clientSecret string

	maxRetries uint
	retryDelay time.Duration
}

type ClientOption func(*Client)

// WithRetryPolicy overrides the retry budget for provider-unavailable
// failures.
func WithRetryPolicy(maxRetries uint, initialDelay time.Duration) ClientOption {
	return func(c *Client) {
		c.maxRetries = maxRetries
		c.retryDelay = initialDelay
	}
}

func NewClient(tokenURL, clientID, clientSecret string, opts ...ClientOption) *Client {
	c := &Client{
		tokenURL:     tokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		maxRetries:   defaultMaxRetries,
		retryDelay:   defaultRetryDelay,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *Client) Exchange(ctx context.Context, userAssertion string, scopes []string) (*token.DownstreamToken, error) {
	operation := func() (*token.DownstreamToken, error) {
		tok, err := c.exchangeOnce(ctx, userAssertion, scopes)
		if err != nil {
			var exErr *token.ExchangeError
			if errors.As(err, &exErr) && exErr.Kind == token.KindProviderUnavailable {
				return nil, err
			}
			return nil, backoff.Permanent(err)
		}
		return tok, nil
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = c.retryDelay

	tok, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(expo),
		backoff.WithMaxTries(c.maxRetries+1),
	)
	if err != nil {
		return nil, err
	}

	logger.DebugContext(ctx, "obo exchange succeeded",
		slog.String("token", logger.TokenPreview(tok.Value)),
		slog.Time("expires_at", tok.ExpiresAt))

	return tok, nil
}

func (c *Client) exchangeOnce(ctx context.Context, userAssertion string, scopes []string) (*token.DownstreamToken, error) {
	form := url.Values{}
	form.Set("grant_type", oboGrantType)
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)
	form.Set("assertion", userAssertion)
	form.Set("scope", strings.Join(scopes, " "))
	form.Set("requested_token_use", requestedTokenUse)

	var tokenResp tokenEndpointResponse
	resp, err := httpclient.PostForm(ctx, c.tokenURL, form, &tokenResp)
	if err != nil {
		return nil, transportError(err)
	}

	if resp.IsError() {
		return nil, c.classifyError(resp.StatusCode(), resp.Body())
	}

	if tokenResp.AccessToken == "" {
		return nil, token.NewExchangeError(token.KindProviderUnavailable,
			errors.New("token endpoint returned no access token"))
	}

	grantedScopes := strings.Fields(tokenResp.Scope)
	if len(grantedScopes) == 0 {
		grantedScopes = scopes
	}

	return &token.DownstreamToken{
		Value:     tokenResp.AccessToken,
		ExpiresAt: time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second),
		Scopes:    grantedScopes,
	}, nil
}

func transportError(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return token.NewExchangeError(token.KindTimeout, err)
	}
	return token.NewExchangeError(token.KindProviderUnavailable, err)
}

// classifyError maps a token-endpoint error body to the exchange
// taxonomy. The raw provider description stays inside the wrapped cause
// and never reaches the caller.
func (c *Client) classifyError(status int, body []byte) error {
	if status >= http.StatusInternalServerError {
		return token.NewExchangeError(token.KindProviderUnavailable,
			fmt.Errorf("token endpoint returned status %d", status))
	}

	var provider tokenEndpointError
	if err := json.Unmarshal(body, &provider); err != nil {
		return token.NewExchangeError(token.KindInvalidAssertion,
			fmt.Errorf("token endpoint returned status %d with unparseable body", status))
	}

	cause := fmt.Errorf("%s: %s", provider.Code, provider.Description)

	switch {
	case provider.Code == "interaction_required",
		provider.Suberror == "consent_required",
		strings.Contains(provider.Description, "AADSTS65001"):
		return token.NewExchangeError(token.KindConsentRequired, cause)

	case provider.Code == "invalid_scope",
		strings.Contains(provider.Description, "AADSTS70011"):
		return token.NewExchangeError(token.KindScopeDenied, cause)

	case provider.Code == "temporarily_unavailable":
		return token.NewExchangeError(token.KindProviderUnavailable, cause)

	default:
		return token.NewExchangeError(token.KindInvalidAssertion, cause)
	}
}
