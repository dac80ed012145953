package exportrepo

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yanqian/mealplanner/internal/domain/session"
)

const schema = `
CREATE TABLE IF NOT EXISTS meal_plan_exports (
	id          TEXT PRIMARY KEY,
	session_id  TEXT NOT NULL,
	object_key  TEXT NOT NULL,
	filename    TEXT NOT NULL,
	pages       INTEGER NOT NULL,
	meals       INTEGER NOT NULL,
	size_bytes  BIGINT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS meal_plan_exports_session_idx ON meal_plan_exports (session_id, created_at DESC);
`

// PostgresRepository implements session.ExportRepository using pgx.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository constructs the repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// EnsureSchema creates the export table when missing.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, schema)
	return err
}

// Save inserts an export record.
func (r *PostgresRepository) Save(ctx context.Context, record session.ExportRecord) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO meal_plan_exports (id, session_id, object_key, filename, pages, meals, size_bytes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, record.ID, record.SessionID, record.ObjectKey, record.Filename, record.Pages, record.Meals, record.SizeBytes, record.CreatedAt)
	return err
}

// ListBySession returns the newest records of a session first.
func (r *PostgresRepository) ListBySession(ctx context.Context, sessionID string, limit int) ([]session.ExportRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, session_id, object_key, filename, pages, meals, size_bytes, created_at
		FROM meal_plan_exports
		WHERE session_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	records, err := pgx.CollectRows(rows, scanRecord)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []session.ExportRecord{}
	}
	return records, nil
}

// DeleteBySession removes every record of a session.
func (r *PostgresRepository) DeleteBySession(ctx context.Context, sessionID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM meal_plan_exports WHERE session_id = $1`, sessionID)
	return err
}

func scanRecord(row pgx.CollectableRow) (session.ExportRecord, error) {
	var rec session.ExportRecord
	err := row.Scan(&rec.ID, &rec.SessionID, &rec.ObjectKey, &rec.Filename, &rec.Pages, &rec.Meals, &rec.SizeBytes, &rec.CreatedAt)
	return rec, err
}

var _ session.ExportRepository = (*PostgresRepository)(nil)
