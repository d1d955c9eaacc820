package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const postgresSchema = `CREATE TABLE IF NOT EXISTS places (
    id         TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    location   TEXT,
    type       TEXT,
    image      BYTEA,
    rating     DOUBLE PRECISION NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Postgres stores places in PostgreSQL through the pgx database/sql driver.
type Postgres struct {
	sqlStore
}

func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	p := &Postgres{sqlStore{db: db, d: dialect{
		name:        "postgres",
		schema:      postgresSchema,
		placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
	}}}
	if err := p.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return p, nil
}
