// Command migrate applies the BigQuery schema migrations and checks the
// live tables against the schema the store expects.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/dvloznov/gastosmart/internal/config"
	infraBQ "github.com/dvloznov/gastosmart/internal/infra/bigquery"
	"github.com/dvloznov/gastosmart/internal/logger"
)

var (
	projectID     = flag.String("project", "", "GCP project ID (defaults to store.project_id)")
	datasetID     = flag.String("dataset", "", "BigQuery dataset ID (defaults to store.dataset_id)")
	appliedBy     = flag.String("applied-by", "migrate-cli", "Name of the tool applying migrations")
	migrationsDir = flag.String("migrations", "", "Read migrations from this directory instead of the embedded set")
	dryRun        = flag.Bool("dry-run", false, "List pending migrations without applying them")
	check         = flag.Bool("check", false, "Compare the live tables with the expected schema after migrating")
)

func main() {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log := logger.NewConsole(os.Stderr, "info")
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log := logger.NewConsole(os.Stderr, cfg.Log.Level)
	ctx := logger.WithContext(context.Background(), log)

	project, dataset := *projectID, *datasetID
	if project == "" {
		project = cfg.Store.ProjectID
	}
	if dataset == "" {
		dataset = cfg.Store.DatasetID
	}
	if project == "" {
		log.Fatal().Msg("-project flag is required. Please specify your GCP project ID.")
	}

	migrations, err := loadMigrations(*migrationsDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read migrations")
	}
	log.Info().Int("count", len(migrations)).Msg("Found migration files")

	store, err := infraBQ.NewStore(ctx, infraBQ.Config{ProjectID: project, DatasetID: dataset})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery client")
	}
	defer store.Close()

	log.Info().Str("project", project).Str("dataset", dataset).Msg("Connected to BigQuery")

	applied, err := store.AppliedMigrations(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to get applied migrations")
	}
	pending, err := infraBQ.Pending(migrations, applied)
	if err != nil {
		log.Fatal().Err(err).Msg("Migrations do not match the applied history")
	}
	printPlan(os.Stdout, migrations, pending)

	if *dryRun {
		return
	}

	ran, err := store.Migrate(ctx, migrations, *appliedBy)
	for _, m := range ran {
		fmt.Printf("  [OK]   %04d_%s\n", m.Version, m.Name)
	}
	if err != nil {
		log.Fatal().Err(err).Int("applied", len(ran)).Msg("Migration failed")
	}

	if len(ran) == 0 {
		fmt.Println("No new migrations to apply. Database is up to date.")
	} else {
		fmt.Printf("Successfully applied %d migration(s)\n", len(ran))
	}

	if *check {
		drift, err := store.CheckSchema(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to check schema")
		}
		if printDrift(os.Stdout, drift) {
			os.Exit(1)
		}
	}
}

// loadMigrations reads dir, or the embedded migrations when dir is empty.
func loadMigrations(dir string) ([]infraBQ.Migration, error) {
	if dir == "" {
		return infraBQ.Migrations()
	}
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("loadMigrations: %w", err)
	}
	return infraBQ.ReadMigrations(os.DirFS(dir))
}

// printPlan lists every migration as already applied or pending.
func printPlan(w io.Writer, all, pending []infraBQ.Migration) {
	waiting := make(map[int]bool, len(pending))
	for _, m := range pending {
		waiting[m.Version] = true
	}
	for _, m := range all {
		if waiting[m.Version] {
			fmt.Fprintf(w, "  [RUN]  %04d_%s\n", m.Version, m.Name)
		} else {
			fmt.Fprintf(w, "  [SKIP] %04d_%s (already applied)\n", m.Version, m.Name)
		}
	}
}

// printDrift reports schema drift and whether there was any.
func printDrift(w io.Writer, drift []infraBQ.SchemaDrift) bool {
	if len(drift) == 0 {
		fmt.Fprintln(w, "Schema matches.")
		return false
	}
	fmt.Fprintf(w, "Schema drift in %d column(s):\n", len(drift))
	for _, d := range drift {
		fmt.Fprintf(w, "  %s\n", d)
	}
	return true
}
