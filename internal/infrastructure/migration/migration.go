package migration

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v4/pgxpool"
)

// RunMigrations executes all necessary database migrations on startup
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info("Starting database migrations")

	migrations := []Migration{
		{
			Name: "create_cv_snapshots",
			Up: func(ctx context.Context, pool *pgxpool.Pool) error {
				return createCVSnapshots(ctx, pool)
			},
		},
		{
			Name: "add_snapshot_ts_index",
			Up: func(ctx context.Context, pool *pgxpool.Pool) error {
				return addSnapshotTSIndex(ctx, pool)
			},
		},
	}

	for _, m := range migrations {
		if err := m.Up(ctx, pool); err != nil {
			slog.Error("Migration failed", "name", m.Name, "error", err)
			return err
		}
		slog.Info("Migration completed", "name", m.Name)
	}

	slog.Info("All migrations completed successfully")
	return nil
}

// Migration represents a database migration
type Migration struct {
	Name string
	Up   func(ctx context.Context, pool *pgxpool.Pool) error
}

// createCVSnapshots creates the cv_snapshots table if it doesn't exist
func createCVSnapshots(ctx context.Context, pool *pgxpool.Pool) error {
	query := `
		CREATE TABLE IF NOT EXISTS cv_snapshots (
			id UUID PRIMARY KEY,
			key TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			snapshot_ts TEXT NOT NULL,
			html TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`

	if _, err := pool.Exec(ctx, query); err != nil {
		slog.Warn("Error creating cv_snapshots table (may already exist)", "error", err)
		return nil
	}

	slog.Info("Successfully created cv_snapshots table")
	return nil
}

// addSnapshotTSIndex adds the listing index if it doesn't exist
func addSnapshotTSIndex(ctx context.Context, pool *pgxpool.Pool) error {
	query := `
		CREATE INDEX IF NOT EXISTS cv_snapshots_ts_idx
		ON cv_snapshots (snapshot_ts DESC);
	`

	if _, err := pool.Exec(ctx, query); err != nil {
		slog.Warn("Error creating snapshot_ts index (may already exist)", "error", err)
		return nil
	}

	slog.Info("Successfully created snapshot_ts index")
	return nil
}
