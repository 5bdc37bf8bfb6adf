package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/loomworks/loom/pkg/persistence"
	"github.com/loomworks/loom/pkg/persistence/file"
	"github.com/loomworks/loom/pkg/persistence/postgresql"
)

// NewPersistence creates a persistence backend from a database URL.
// file://<path> stores JSON documents on disk; postgres:// connects to
// PostgreSQL and runs pending migrations.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) persistence.Persistence {
	scheme := parseScheme(databaseURL)

	switch scheme {
	case "postgres", "postgresql":
		p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			panic(fmt.Errorf("failed to initialize postgres persistence: %w", err))
		}

		return p
	case "file":
		return file.NewPersistence(strings.TrimPrefix(databaseURL, "file://"))
	default:
		panic("unsupported persistence scheme: " + scheme + " (supported: file, postgres)")
	}
}

func parseScheme(databaseURL string) string {
	parts := strings.Split(databaseURL, "://")
	if len(parts) < 2 {
		return "file"
	}

	return parts[0]
}
