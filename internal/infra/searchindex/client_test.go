package searchindex_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/securedocs/obo-search-relay/internal/infra/searchindex"
)

func newTestClient(endpoint string) *searchindex.Client {
	return searchindex.NewClient(endpoint, "documents", "admin-key", "2025-05-01-preview", "sg")
}

func TestSearch_AttachesCredential(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("api-key"); got != "admin-key" {
			t.Errorf("expected api-key header, got %q", got)
		}
		if got := r.Header.Get("x-ms-query-source-authorization"); got != "Bearer downstream-token" {
			t.Errorf("expected query source authorization header, got %q", got)
		}

		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if req["search"] != "security" {
			t.Errorf("unexpected search text %v", req["search"])
		}
		if req["top"] != float64(10) {
			t.Errorf("unexpected top %v", req["top"])
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"value": []map[string]any{
				{"@search.score": 1.2, "id": "doc1", "name": "Security Best Practices"},
			},
		})
	}))
	defer srv.Close()

	docs, err := newTestClient(srv.URL).Search(context.Background(), "downstream-token", "security", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(docs) != 1 || docs[0]["id"] != "doc1" {
		t.Errorf("unexpected documents: %v", docs)
	}
}

func TestGetDocument_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"missing", http.StatusNotFound, searchindex.ErrNotFound},
		{"forbidden", http.StatusForbidden, searchindex.ErrForbidden},
		{"unauthorized", http.StatusUnauthorized, searchindex.ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			_, err := newTestClient(srv.URL).GetDocument(context.Background(), "tok", "doc1")
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestGetDocument_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("x-ms-query-source-authorization"); got != "Bearer tok" {
			t.Errorf("expected credential header, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "doc1", "name": "Security Best Practices"})
	}))
	defer srv.Close()

	doc, err := newTestClient(srv.URL).GetDocument(context.Background(), "tok", "doc1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc["name"] != "Security Best Practices" {
		t.Errorf("unexpected document %v", doc)
	}
}

func TestSuggest_UsesConfiguredSuggester(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if req["suggesterName"] != "sg" {
			t.Errorf("unexpected suggester %v", req["suggesterName"])
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"value": []map[string]any{
				{"@search.text": "security", "id": "doc1"},
			},
		})
	}))
	defer srv.Close()

	docs, err := newTestClient(srv.URL).Suggest(context.Background(), "tok", "sec", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(docs) != 1 {
		t.Errorf("unexpected suggestions: %v", docs)
	}
}

func TestUploadDocuments_AddsAction(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Value []map[string]any `json:"value"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if len(req.Value) != 1 {
			t.Fatalf("expected 1 document, got %d", len(req.Value))
		}
		if req.Value[0]["@search.action"] != "mergeOrUpload" {
			t.Errorf("expected mergeOrUpload action, got %v", req.Value[0]["@search.action"])
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"value": []map[string]any{{"key": "doc1", "status": true}},
		})
	}))
	defer srv.Close()

	err := newTestClient(srv.URL).UploadDocuments(context.Background(), []searchindex.Document{
		{"id": "doc1", "name": "Security Best Practices"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
