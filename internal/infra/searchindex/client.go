package searchindex

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	httpclient "github.com/securedocs/obo-search-relay/pkg/http"
)

// queryAuthorizationHeader carries the downstream token on query
// operations. The store uses it to filter results to documents the
// token's subject may see; the relay never filters client-side.
const queryAuthorizationHeader = "x-ms-query-source-authorization"

var (
	// ErrNotFound is returned when the store reports that a document
	// does not exist.
	ErrNotFound = errors.New("document not found")

	// ErrForbidden is returned when the store rejects access to a
	// document. The query layer folds this into ErrNotFound before it
	// reaches a caller.
	ErrForbidden = errors.New("document access denied")
)

// Client issues search, lookup and suggest calls against one index of
// an Azure AI Search-style REST endpoint. The admin key authenticates
// the connection; per-document authorization comes exclusively from the
// downstream token passed per call.
type Client struct {
	endpoint   string
	index      string
	apiKey     string
	apiVersion string
	suggester  string
}

func NewClient(endpoint, index, apiKey, apiVersion, suggester string) *Client {
	return &Client{
		endpoint:   strings.TrimSuffix(endpoint, "/"),
		index:      index,
		apiKey:     apiKey,
		apiVersion: apiVersion,
		suggester:  suggester,
	}
}

func (c *Client) Search(ctx context.Context, credential, queryText string, top int) ([]Document, error) {
	var result documentsResponse
	resp, err := httpclient.Post(ctx, c.docsURL("search"),
		c.queryOptions(credential,
			httpclient.WithBody(searchRequest{Search: queryText, Top: top}),
			httpclient.WithResult(&result))...,
	)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	if resp.IsError() {
		return nil, statusError("search", resp.StatusCode())
	}

	return result.Value, nil
}

func (c *Client) GetDocument(ctx context.Context, credential, id string) (Document, error) {
	requestURL := fmt.Sprintf("%s/indexes/%s/docs('%s')?api-version=%s",
		c.endpoint, c.index, url.PathEscape(id), c.apiVersion)

	var result Document
	resp, err := httpclient.Get(ctx, requestURL,
		c.queryOptions(credential, httpclient.WithResult(&result))...,
	)
	if err != nil {
		return nil, fmt.Errorf("lookup request failed: %w", err)
	}
	if resp.IsError() {
		return nil, statusError("lookup", resp.StatusCode())
	}

	return result, nil
}

func (c *Client) Suggest(ctx context.Context, credential, queryText string, top int) ([]Document, error) {
	var result documentsResponse
	resp, err := httpclient.Post(ctx, c.docsURL("search.post.suggest"),
		c.queryOptions(credential,
			httpclient.WithBody(suggestRequest{
				Search:        queryText,
				SuggesterName: c.suggester,
				Top:           top,
			}),
			httpclient.WithResult(&result))...,
	)
	if err != nil {
		return nil, fmt.Errorf("suggest request failed: %w", err)
	}
	if resp.IsError() {
		return nil, statusError("suggest", resp.StatusCode())
	}

	return result.Value, nil
}

func (c *Client) docsURL(operation string) string {
	return fmt.Sprintf("%s/indexes/%s/docs/%s?api-version=%s",
		c.endpoint, c.index, operation, c.apiVersion)
}

// queryOptions attaches the admin connection key and the per-request
// downstream credential.
func (c *Client) queryOptions(credential string, opts ...httpclient.RequestOption) []httpclient.RequestOption {
	base := []httpclient.RequestOption{
		httpclient.WithHeader("api-key", c.apiKey),
		httpclient.WithHeader(queryAuthorizationHeader, "Bearer "+credential),
	}
	return append(base, opts...)
}

func statusError(operation string, status int) error {
	switch status {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusForbidden, http.StatusUnauthorized:
		return ErrForbidden
	default:
		return fmt.Errorf("%s failed with status %d", operation, status)
	}
}
