package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"myplaces/internal/model"
)

// dialect captures the few differences between the SQL backends.
type dialect struct {
	name   string
	schema string
	// placeholder returns the bind marker for the n-th (1-based) argument.
	placeholder func(n int) string
}

// sqlStore implements Store over database/sql. Postgres and SQLite embed it.
type sqlStore struct {
	db *sql.DB
	d  dialect
}

// bind rewrites ? markers into the dialect's placeholders.
func (s *sqlStore) bind(q string) string {
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteString(s.d.placeholder(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Migrate creates the places table when missing.
func (s *sqlStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.d.schema); err != nil {
		return fmt.Errorf("%s migrate: %w", s.d.name, err)
	}
	return nil
}

func (s *sqlStore) CreatePlace(ctx context.Context, in model.PlaceInput) (model.Place, error) {
	in, err := validate(in)
	if err != nil {
		return model.Place{}, err
	}
	p := model.Place{ID: uuid.New().String()}
	in.Apply(&p)
	_, err = s.db.ExecContext(ctx, s.bind(`INSERT INTO places (id, name, location, type, image, rating) VALUES (?,?,?,?,?,?)`),
		p.ID, p.Name, nullIfEmpty(p.Location), nullIfEmpty(p.Type), nullIfNoBytes(p.ImageData), p.Rating)
	if err != nil {
		return model.Place{}, err
	}
	return p, nil
}

func (s *sqlStore) UpdatePlace(ctx context.Context, id string, in model.PlaceInput) (model.Place, error) {
	in, err := validate(in)
	if err != nil {
		return model.Place{}, err
	}
	res, err := s.db.ExecContext(ctx, s.bind(`UPDATE places SET name=?, location=?, type=?, image=?, rating=? WHERE id=?`),
		in.Name, nullIfEmpty(in.Location), nullIfEmpty(in.Type), nullIfNoBytes(in.ImageData), in.Rating, id)
	if err != nil {
		return model.Place{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.Place{}, ErrNotFound
	}
	p := model.Place{ID: id}
	in.Apply(&p)
	return p, nil
}

func (s *sqlStore) DeletePlace(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.bind(`DELETE FROM places WHERE id=?`), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqlStore) GetPlace(ctx context.Context, id string) (model.Place, error) {
	row := s.db.QueryRowContext(ctx, s.bind(`SELECT id, name, location, type, image, rating FROM places WHERE id=?`), id)
	p, err := scanPlace(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Place{}, ErrNotFound
	}
	return p, err
}

func (s *sqlStore) ListPlaces(ctx context.Context, srt model.Sort) ([]model.Place, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, location, type, image, rating FROM places`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Place{}
	for rows.Next() {
		p, err := scanPlace(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// lower() and collations disagree with strings.ToLower outside ASCII
	SortPlaces(out, srt)
	return out, nil
}

func (s *sqlStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *sqlStore) Close() error { return s.db.Close() }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlace(r rowScanner) (model.Place, error) {
	var p model.Place
	var location, typ sql.NullString
	var image []byte
	if err := r.Scan(&p.ID, &p.Name, &location, &typ, &image, &p.Rating); err != nil {
		return model.Place{}, err
	}
	p.Location = location.String
	p.Type = typ.String
	if len(image) > 0 {
		p.ImageData = image
	}
	return p, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullIfNoBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
