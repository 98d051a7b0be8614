package searchindex

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	httpclient "github.com/securedocs/obo-search-relay/pkg/http"
	"github.com/securedocs/obo-search-relay/pkg/logger"
)

// DefaultSchema builds the permission-filtered index schema: the two
// permission collections the store filters on, plus the searchable
// content fields feeding the suggester.
func DefaultSchema(index, suggester string) IndexSchema {
	return IndexSchema{
		Name: index,
		Fields: []IndexField{
			{Name: FieldID, Type: "Edm.String", Key: true, Filterable: true},
			{Name: FieldUserIDs, Type: "Collection(Edm.String)", Filterable: true},
			{Name: FieldGroupIDs, Type: "Collection(Edm.String)", Filterable: true},
			{Name: FieldName, Type: "Edm.String", Searchable: true, Filterable: true, Sortable: true},
			{Name: FieldContent, Type: "Edm.String", Searchable: true},
			{Name: FieldCategory, Type: "Edm.String", Searchable: true, Filterable: true, Facetable: true},
		},
		Suggesters: []IndexSuggester{
			{
				Name:         suggester,
				SearchMode:   "analyzingInfixMatching",
				SourceFields: []string{FieldName, FieldContent, FieldCategory},
			},
		},
	}
}

// RecreateIndex drops the index if it exists and creates it from the
// schema. Destructive; used by the ingestion command only.
func (c *Client) RecreateIndex(ctx context.Context, schema IndexSchema) error {
	indexURL := fmt.Sprintf("%s/indexes/%s?api-version=%s", c.endpoint, c.index, c.apiVersion)

	resp, err := httpclient.Delete(ctx, indexURL, httpclient.WithHeader("api-key", c.apiKey))
	if err != nil {
		return fmt.Errorf("failed to delete index: %w", err)
	}
	if resp.IsError() && resp.StatusCode() != http.StatusNotFound {
		return fmt.Errorf("failed to delete index: status %d", resp.StatusCode())
	}
	if resp.StatusCode() != http.StatusNotFound {
		logger.InfoContext(ctx, "deleted existing index", slog.String("index", c.index))
	}

	resp, err = httpclient.Put(ctx, indexURL,
		httpclient.WithHeader("api-key", c.apiKey),
		httpclient.WithBody(schema),
	)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("failed to create index: status %d: %s", resp.StatusCode(), resp.Body())
	}

	logger.InfoContext(ctx, "index created", slog.String("index", c.index))
	return nil
}

// UploadDocuments pushes documents into the index with merge-or-upload
// semantics.
func (c *Client) UploadDocuments(ctx context.Context, docs []Document) error {
	payload := uploadRequest{Value: make([]Document, 0, len(docs))}
	for _, doc := range docs {
		action := make(Document, len(doc)+1)
		for k, v := range doc {
			action[k] = v
		}
		action["@search.action"] = "mergeOrUpload"
		payload.Value = append(payload.Value, action)
	}

	var result uploadResult
	resp, err := httpclient.Post(ctx, c.docsURL("search.index"),
		httpclient.WithHeader("api-key", c.apiKey),
		httpclient.WithBody(payload),
		httpclient.WithResult(&result),
	)
	if err != nil {
		return fmt.Errorf("upload request failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("upload failed with status %d", resp.StatusCode())
	}

	var failed int
	for _, r := range result.Value {
		if !r.Status {
			failed++
			logger.WarnContext(ctx, "document upload failed",
				slog.String("key", r.Key),
				slog.String("error", r.ErrorMessage))
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed to upload", failed, len(docs))
	}

	logger.InfoContext(ctx, "documents uploaded", slog.Int("count", len(docs)))
	return nil
}
