package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/securedocs/obo-search-relay/internal/config"
	"github.com/securedocs/obo-search-relay/internal/infra/searchindex"
	"github.com/securedocs/obo-search-relay/pkg/logger"
)

// Options controls a single ingestion run.
type Options struct {
	// Recreate drops and rebuilds the index before uploading. Without
	// it, documents are merged into the existing index.
	Recreate bool

	// ExtraUserIDs and ExtraGroupIDs are appended to every document's
	// permission lists.
	ExtraUserIDs  []string
	ExtraGroupIDs []string
}

// Run provisions the index schema and uploads the sample corpus.
func Run(ctx context.Context, cfg *config.Config, opts Options) error {
	client := searchindex.NewClient(
		cfg.Search.Endpoint,
		cfg.Search.Index,
		cfg.Search.AdminKey,
		cfg.Search.APIVersion,
		cfg.Search.Suggester,
	)

	if opts.Recreate {
		schema := searchindex.DefaultSchema(cfg.Search.Index, cfg.Search.Suggester)
		if err := client.RecreateIndex(ctx, schema); err != nil {
			return fmt.Errorf("failed to recreate index %q: %w", cfg.Search.Index, err)
		}
		logger.InfoContext(ctx, "index recreated", slog.String("index", cfg.Search.Index))
	}

	docs := SampleDocuments()
	if len(opts.ExtraUserIDs) > 0 || len(opts.ExtraGroupIDs) > 0 {
		docs = WithExtraAccess(docs, opts.ExtraUserIDs, opts.ExtraGroupIDs)
	}

	if err := client.UploadDocuments(ctx, docs); err != nil {
		return fmt.Errorf("failed to upload documents: %w", err)
	}
	return nil
}
