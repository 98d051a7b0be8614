package main

import (
	"context"
	"flag"
	"log"
	"strings"
	"time"

	"github.com/securedocs/obo-search-relay/internal/config"
	"github.com/securedocs/obo-search-relay/internal/ingest"
	"github.com/securedocs/obo-search-relay/pkg/logger"
)

const runTimeout = 2 * time.Minute

func main() {
	recreate := flag.Bool("recreate", false, "drop and recreate the index before uploading")
	extraUsers := flag.String("grant-users", "", "comma-separated user ids granted access to every document")
	extraGroups := flag.String("grant-groups", "", "comma-separated group ids granted access to every document")
	flag.Parse()

	cfg := config.MustLoad()
	logger.InitLogger(cfg.Observability.LogLevel, cfg.Observability.Format, cfg.Observability.LogSource)

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	opts := ingest.Options{
		Recreate:      *recreate,
		ExtraUserIDs:  splitList(*extraUsers),
		ExtraGroupIDs: splitList(*extraGroups),
	}

	if err := ingest.Run(ctx, cfg, opts); err != nil {
		log.Fatalf("Ingestion failed: %v", err)
	}

	log.Println("Ingestion completed successfully")
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
