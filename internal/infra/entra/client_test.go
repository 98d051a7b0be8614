package entra_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/securedocs/obo-search-relay/internal/domain/token"
	"github.com/securedocs/obo-search-relay/internal/infra/entra"
)

var testScopes = []string{"https://search.azure.com/.default"}

func newTestClient(endpoint string) *entra.Client {
	return entra.NewClient(endpoint, "client-1", "secret",
		entra.WithRetryPolicy(2, time.Millisecond))
}

func TestExchange_Success(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)

		if err := r.ParseForm(); err != nil {
			t.Fatalf("failed to parse form: %v", err)
		}
		if got := r.PostForm.Get("grant_type"); got != "urn:ietf:params:oauth:grant-type:jwt-bearer" {
			t.Errorf("unexpected grant_type %q", got)
		}
		if got := r.PostForm.Get("requested_token_use"); got != "on_behalf_of" {
			t.Errorf("unexpected requested_token_use %q", got)
		}
		if got := r.PostForm.Get("assertion"); got != "inbound-assertion" {
			t.Errorf("unexpected assertion %q", got)
		}
		if got := r.PostForm.Get("scope"); got != "https://search.azure.com/.default" {
			t.Errorf("unexpected scope %q", got)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "downstream-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
			"scope":        "https://search.azure.com/.default",
		})
	}))
	defer srv.Close()

	tok, err := newTestClient(srv.URL).Exchange(context.Background(), "inbound-assertion", testScopes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tok.Value != "downstream-token" {
		t.Errorf("unexpected token %q", tok.Value)
	}
	if time.Until(tok.ExpiresAt) < 55*time.Minute {
		t.Errorf("unexpected expiry %v", tok.ExpiresAt)
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 call, got %d", calls.Load())
	}
}

func TestExchange_ConsentRequiredIsTerminal(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"error":             "invalid_grant",
			"suberror":          "consent_required",
			"error_description": "AADSTS65001: user or administrator has not consented",
		})
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Exchange(context.Background(), "assertion", testScopes)

	var exErr *token.ExchangeError
	if !errors.As(err, &exErr) {
		t.Fatalf("expected ExchangeError, got %v", err)
	}
	if exErr.Kind != token.KindConsentRequired {
		t.Errorf("expected consent_required, got %s", exErr.Kind)
	}
	if exErr.Retryable() {
		t.Error("consent_required must not be retryable")
	}
	if calls.Load() != 1 {
		t.Errorf("consent_required must not be retried, got %d calls", calls.Load())
	}
}

func TestExchange_RetriesProviderUnavailable(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "downstream-token",
			"expires_in":   3600,
		})
	}))
	defer srv.Close()

	tok, err := newTestClient(srv.URL).Exchange(context.Background(), "assertion", testScopes)
	if err != nil {
		t.Fatalf("expected success within retry budget: %v", err)
	}
	if tok.Value != "downstream-token" {
		t.Errorf("unexpected token %q", tok.Value)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestExchange_RetryBudgetExhausted(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Exchange(context.Background(), "assertion", testScopes)

	var exErr *token.ExchangeError
	if !errors.As(err, &exErr) {
		t.Fatalf("expected ExchangeError, got %v", err)
	}
	if exErr.Kind != token.KindProviderUnavailable {
		t.Errorf("expected provider_unavailable, got %s", exErr.Kind)
	}
	if calls.Load() != 3 {
		t.Errorf("expected exactly 3 attempts (1 + 2 retries), got %d", calls.Load())
	}
}

func TestExchange_ErrorKinds(t *testing.T) {
	tests := []struct {
		name string
		body map[string]string
		want token.ExchangeErrorKind
	}{
		{
			"invalid assertion",
			map[string]string{"error": "invalid_grant", "error_description": "AADSTS50013: assertion audience mismatch"},
			token.KindInvalidAssertion,
		},
		{
			"scope denied",
			map[string]string{"error": "invalid_scope", "error_description": "AADSTS70011: invalid scope"},
			token.KindScopeDenied,
		},
		{
			"interaction required",
			map[string]string{"error": "interaction_required", "error_description": "AADSTS50079: MFA required"},
			token.KindConsentRequired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				_ = json.NewEncoder(w).Encode(tt.body)
			}))
			defer srv.Close()

			_, err := newTestClient(srv.URL).Exchange(context.Background(), "assertion", testScopes)

			var exErr *token.ExchangeError
			if !errors.As(err, &exErr) {
				t.Fatalf("expected ExchangeError, got %v", err)
			}
			if exErr.Kind != tt.want {
				t.Errorf("expected %s, got %s", tt.want, exErr.Kind)
			}
			if exErr.Retryable() {
				t.Errorf("%s must not be retryable", tt.want)
			}
		})
	}
}
