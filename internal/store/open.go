package store

import (
	"context"
	"strings"
)

// Open selects a backend from dsn:
//   - ""                                   in-memory
//   - postgres://, postgresql://           Postgres
//   - mongodb://, mongodb+srv://           MongoDB (database from mongoDB, default "myplaces")
//   - sqlite:<path>, *.db, *.sqlite, :memory:  SQLite
func Open(ctx context.Context, dsn, mongoDB string) (Store, error) {
	dsn = strings.TrimSpace(dsn)
	switch {
	case dsn == "":
		return NewMemory(), nil
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return NewPostgres(ctx, dsn)
	case strings.HasPrefix(dsn, "mongodb://"), strings.HasPrefix(dsn, "mongodb+srv://"):
		return NewMongo(ctx, dsn, mongoDB)
	case strings.HasPrefix(dsn, "sqlite:"):
		return NewSQLite(ctx, strings.TrimPrefix(strings.TrimPrefix(dsn, "sqlite:"), "//"))
	default:
		return NewSQLite(ctx, dsn)
	}
}
