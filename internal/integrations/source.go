// Package integrations imports places from external sources into the store.
package integrations

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"myplaces/internal/model"
	"myplaces/internal/store"
)

// Source yields place records from outside the store. Each record carries
// its position in the source so rejects can be reported.
type Source interface {
	Name() string
	Records(ctx context.Context) ([]Record, error)
}

type Record struct {
	Line  int
	Place model.PlaceInput
	Err   error // set when the record could not be parsed
}

// Reject is a record that was not imported.
type Reject struct {
	Line int
	Err  error
}

func (r Reject) Error() string { return fmt.Sprintf("line %d: %v", r.Line, r.Err) }

type Result struct {
	Imported []string // ids of created places
	Rejected []Reject
}

// Import creates a place for every valid record. Invalid records are
// collected in Result.Rejected; any other store error aborts the import.
func Import(ctx context.Context, src Source, st store.Store, log *zap.Logger) (Result, error) {
	if log == nil {
		log = zap.NewNop()
	}
	var res Result
	recs, err := src.Records(ctx)
	if err != nil {
		return res, fmt.Errorf("%s: %w", src.Name(), err)
	}
	for _, rec := range recs {
		if rec.Err != nil {
			res.Rejected = append(res.Rejected, Reject{Line: rec.Line, Err: rec.Err})
			continue
		}
		p, err := st.CreatePlace(ctx, rec.Place)
		if errors.Is(err, store.ErrInvalidPlace) {
			res.Rejected = append(res.Rejected, Reject{Line: rec.Line, Err: err})
			continue
		}
		if err != nil {
			return res, fmt.Errorf("%s line %d: %w", src.Name(), rec.Line, err)
		}
		res.Imported = append(res.Imported, p.ID)
	}
	log.Info("import finished", zap.String("source", src.Name()),
		zap.Int("imported", len(res.Imported)), zap.Int("rejected", len(res.Rejected)))
	return res, nil
}
