package repository

import (
	"context"
	"time"

	"cv-editor/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// SnapshotsRepo mirrors snapshots to postgres. Every method is a no-op
// when no pool is available, so the editor keeps working with local
// storage only.
type SnapshotsRepo struct {
	pool *pgxpool.Pool
}

func NewSnapshotsRepo(pool *pgxpool.Pool) *SnapshotsRepo {
	return &SnapshotsRepo{pool: pool}
}

func (r *SnapshotsRepo) Available() bool { return r != nil && r.pool != nil }

func (r *SnapshotsRepo) Save(ctx context.Context, s *domain.Snapshot) error {
	if r.pool == nil {
		return nil
	}
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	now := time.Now()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now

	_, err := r.pool.Exec(ctx, `INSERT INTO cv_snapshots (id, key, name, snapshot_ts, html, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (key) DO UPDATE SET name = EXCLUDED.name, snapshot_ts = EXCLUDED.snapshot_ts, html = EXCLUDED.html, updated_at = EXCLUDED.updated_at`,
		s.ID, s.Key, s.Name, s.Timestamp, s.HTML, s.CreatedAt, s.UpdatedAt)
	return err
}

// List returns snapshot metadata newest first, without loading bodies.
func (r *SnapshotsRepo) List(ctx context.Context) ([]domain.Snapshot, error) {
	if r.pool == nil {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT id, key, name, snapshot_ts, created_at, updated_at
		FROM cv_snapshots ORDER BY snapshot_ts DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Snapshot
	for rows.Next() {
		var s domain.Snapshot
		if err := rows.Scan(&s.ID, &s.Key, &s.Name, &s.Timestamp, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SnapshotsRepo) Get(ctx context.Context, key string) (*domain.Snapshot, error) {
	if r.pool == nil {
		return nil, pgx.ErrNoRows
	}
	var s domain.Snapshot
	err := r.pool.QueryRow(ctx, `SELECT id, key, name, snapshot_ts, html, created_at, updated_at
		FROM cv_snapshots WHERE key = $1`, key).
		Scan(&s.ID, &s.Key, &s.Name, &s.Timestamp, &s.HTML, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SnapshotsRepo) Delete(ctx context.Context, key string) error {
	if r.pool == nil {
		return nil
	}
	_, err := r.pool.Exec(ctx, `DELETE FROM cv_snapshots WHERE key = $1`, key)
	return err
}
