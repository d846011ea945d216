// Command migrate applies migrations/schema.sql to the configured database with Atlas.
// It needs the atlas CLI on PATH.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"pixelgrid/internal/pkg/config"

	"ariga.io/atlas-go-sdk/atlasexec"
	"github.com/kelseyhightower/envconfig"
)

type migrateConfig struct {
	DB config.DBConfig
	// DevURL is the scratch database Atlas diffs against.
	DevURL  string        `envconfig:"MIGRATE_DEV_URL" default:"docker://postgres/16/dev?search_path=public"`
	Timeout time.Duration `envconfig:"MIGRATE_TIMEOUT" default:"2m"`
}

func main() {
	schema := flag.String("schema", "file://migrations/schema.sql", "desired schema")
	dryRun := flag.Bool("dry-run", false, "print the plan without applying it")
	flag.Parse()

	var cfg migrateConfig
	if err := envconfig.Process("", &cfg); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	client, err := atlasexec.NewClient(".", "atlas")
	if err != nil {
		slog.Error("failed to start atlas client", "error", err)
		os.Exit(1)
	}

	res, err := client.SchemaApply(ctx, &atlasexec.SchemaApplyParams{
		URL:         cfg.DB.BuildDSN(),
		To:          *schema,
		DevURL:      cfg.DevURL,
		DryRun:      *dryRun,
		AutoApprove: true,
	})
	if err != nil {
		slog.Error("schema apply failed", "error", err)
		os.Exit(1)
	}

	slog.Info("schema applied",
		"dry_run", *dryRun,
		"applied", len(res.Changes.Applied),
		"pending", len(res.Changes.Pending))
}
