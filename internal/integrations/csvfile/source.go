// Package csvfile reads places from a CSV or TSV file with a header row.
//
// Recognised columns (case-insensitive, any order): name, location, type,
// rating, image. image is a file path relative to the CSV file. Other
// columns are ignored.
package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"myplaces/internal/integrations"
	"myplaces/internal/model"
)

type Source struct {
	Path  string
	Comma rune // zero picks tab for .tsv files and comma otherwise
}

func (s Source) Name() string { return "csv:" + filepath.Base(s.Path) }

func (s Source) Records(ctx context.Context) ([]integrations.Record, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = s.comma()
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("empty file")
	}
	if err != nil {
		return nil, err
	}
	cols := map[string]int{}
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := cols["name"]; !ok {
		return nil, errors.New("missing name column")
	}

	var out []integrations.Record
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				out = append(out, integrations.Record{Line: perr.Line, Err: perr.Err})
				continue
			}
			return nil, err
		}
		line, _ := r.FieldPos(0)
		in, err := s.parse(cols, row)
		out = append(out, integrations.Record{Line: line, Place: in, Err: err})
	}
}

func (s Source) comma() rune {
	if s.Comma != 0 {
		return s.Comma
	}
	if strings.EqualFold(filepath.Ext(s.Path), ".tsv") {
		return '\t'
	}
	return ','
}

func (s Source) parse(cols map[string]int, row []string) (model.PlaceInput, error) {
	field := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}
	in := model.PlaceInput{
		Name:     field("name"),
		Location: field("location"),
		Type:     field("type"),
	}
	if v := field("rating"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return in, fmt.Errorf("rating %q: %w", v, err)
		}
		in.Rating = f
	}
	if v := field("image"); v != "" {
		if !filepath.IsAbs(v) {
			v = filepath.Join(filepath.Dir(s.Path), v)
		}
		b, err := os.ReadFile(v)
		if err != nil {
			return in, fmt.Errorf("image: %w", err)
		}
		in.ImageData = b
	}
	return in, nil
}
