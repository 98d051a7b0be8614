package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/securedocs/obo-search-relay/internal/app/relay"
	"github.com/securedocs/obo-search-relay/internal/config"
	"github.com/securedocs/obo-search-relay/internal/domain/query"
	mcptransport "github.com/securedocs/obo-search-relay/internal/transport/mcp"
)

type stubService struct{}

func (stubService) Search(_ context.Context, _, _ string, _ int) ([]query.Projection, error) {
	return nil, nil
}

func (stubService) Get(_ context.Context, _, _ string) (query.Projection, error) {
	return query.Projection{}, nil
}

func (stubService) Suggest(_ context.Context, _, _ string, _ int) ([]query.Projection, error) {
	return nil, nil
}

func (stubService) WhoAmI(_ context.Context, _ string) (*relay.Profile, error) {
	return &relay.Profile{}, nil
}

func testRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{}
	cfg.Server.Mode = "test"
	return NewRouter(mcptransport.NewServer(stubService{}), cfg)
}

func TestHealthz(t *testing.T) {
	router := testRouter()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	if w.Body.String() != "ok" {
		t.Fatalf("unexpected body: %q", w.Body.String())
	}
}

func TestRequestIDEchoedAndMinted(t *testing.T) {
	router := testRouter()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "req-42")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := w.Header().Get(requestIDHeader); got != "req-42" {
		t.Fatalf("request id not echoed, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := w.Header().Get(requestIDHeader); got == "" {
		t.Fatal("expected a minted request id")
	}
}

func TestMCPRouteMounted(t *testing.T) {
	router := testRouter()

	// A GET without an MCP session is rejected by the protocol layer,
	// but the route itself must resolve. The streamable HTTP handler
	// holds a GET open as an SSE stream until the request context is
	// cancelled, so the request needs a deadline for ServeHTTP to return.
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/mcp", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code == http.StatusNotFound {
		t.Fatal("mcp endpoint not mounted")
	}
}
