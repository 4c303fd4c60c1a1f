package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/containerd/errdefs"
	_ "github.com/lib/pq"
)

var postgresDialect = dialect{
	name:     DriverPostgres,
	numbered: true,
	schema: `
	CREATE TABLE IF NOT EXISTS profiles (
		user_id TEXT PRIMARY KEY,
		age INTEGER NOT NULL DEFAULT 0,
		grade INTEGER NOT NULL DEFAULT 0,
		skill_level TEXT NOT NULL DEFAULT '',
		weak_areas_json TEXT NOT NULL DEFAULT '[]',
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS submissions (
		id BIGSERIAL PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES profiles(user_id) ON DELETE CASCADE,
		date TEXT NOT NULL,
		topic TEXT NOT NULL,
		score INTEGER NOT NULL,
		comments TEXT NOT NULL DEFAULT '',
		created_at BIGINT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_submissions_user ON submissions(user_id, id);
	`,
}

// NewPostgres creates a PostgreSQL-backed repository.
func NewPostgres(dsn string) (Repository, error) {
	if dsn == "" {
		return nil, fmt.Errorf("DATABASE_URL is required for postgres: %w", errdefs.ErrInvalidArgument)
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &sqlStore{db: db, dialect: postgresDialect}
	if err := s.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}
