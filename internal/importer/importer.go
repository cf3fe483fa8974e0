// Package importer loads benches from CSV files.
//
// The first row is a header. Recognised columns, in any order:
//
//	lat, lng, ambiente_rating, view_rating, accessibility_rating,
//	fireplace, description, photo_url, photo_url_2
//
// lat and lng are required. Missing ratings default to 3, a missing
// fireplace to false. Rows that fail to parse or validate are reported
// with their line number and skipped.
package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/samirrijal/baenkli/internal/core/domain"
)

// DefaultBatchSize is the number of benches written per batch.
const DefaultBatchSize = 500

// Sink receives validated benches; usecases.BenchService implements it.
type Sink interface {
	Import(ctx context.Context, benches []domain.Bench) (int, error)
}

// RowError describes a skipped row.
type RowError struct {
	Line int
	Err  error
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

// Report summarises an import.
type Report struct {
	Rows     int
	Imported int
	Skipped  []RowError
}

// Importer streams a CSV into a Sink in batches.
type Importer struct {
	sink      Sink
	batchSize int
	logger    *slog.Logger
}

// New returns an importer writing to sink. batchSize <= 0 selects DefaultBatchSize.
func New(sink Sink, batchSize int, logger *slog.Logger) *Importer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{sink: sink, batchSize: batchSize, logger: logger}
}

// Run reads r to the end. A failing batch aborts the import; rows from
// earlier batches stay imported.
func (im *Importer) Run(ctx context.Context, r io.Reader) (Report, error) {
	var report Report

	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return report, fmt.Errorf("read header: %w", err)
	}
	cols := indexColumns(header)
	for _, required := range []string{"lat", "lng"} {
		if _, ok := cols[required]; !ok {
			return report, fmt.Errorf("header is missing required column %q", required)
		}
	}

	batch := make([]domain.Bench, 0, im.batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := im.sink.Import(ctx, batch)
		if err != nil {
			return err
		}
		report.Imported += n
		im.logger.Info("imported batch", "benches", n, "total", report.Imported)
		batch = batch[:0]
		return nil
	}

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				report.Rows++
				report.Skipped = append(report.Skipped, RowError{Line: perr.Line, Err: perr.Err})
				continue
			}
			return report, fmt.Errorf("read csv: %w", err)
		}
		report.Rows++
		line, _ := reader.FieldPos(0)

		b, err := parseRow(record, cols)
		if err != nil {
			report.Skipped = append(report.Skipped, RowError{Line: line, Err: err})
			continue
		}
		batch = append(batch, b)

		if len(batch) >= im.batchSize {
			if err := flush(); err != nil {
				return report, fmt.Errorf("import batch ending at line %d: %w", line, err)
			}
		}
	}

	if err := flush(); err != nil {
		return report, fmt.Errorf("import final batch: %w", err)
	}
	return report, nil
}

func indexColumns(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		cols[h] = i
	}
	return cols
}

func field(record []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func parseRow(record []string, cols map[string]int) (domain.Bench, error) {
	lat, err := strconv.ParseFloat(field(record, cols, "lat"), 64)
	if err != nil {
		return domain.Bench{}, &domain.ValidationError{Field: "lat", Message: "must be a number"}
	}
	lng, err := strconv.ParseFloat(field(record, cols, "lng"), 64)
	if err != nil {
		return domain.Bench{}, &domain.ValidationError{Field: "lng", Message: "must be a number"}
	}

	b := domain.Bench{
		Lat:                 lat,
		Lng:                 lng,
		AmbienteRating:      domain.DefaultRating,
		ViewRating:          domain.DefaultRating,
		AccessibilityRating: domain.DefaultRating,
		Description:         field(record, cols, "description"),
	}

	for _, r := range []struct {
		name string
		dst  *int
	}{
		{"ambiente_rating", &b.AmbienteRating},
		{"view_rating", &b.ViewRating},
		{"accessibility_rating", &b.AccessibilityRating},
	} {
		raw := field(record, cols, r.name)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return domain.Bench{}, &domain.ValidationError{Field: r.name, Message: fmt.Sprintf("not a number: %q", raw)}
		}
		*r.dst = v
	}

	if raw := field(record, cols, "fireplace"); raw != "" {
		v, err := parseBool(raw)
		if err != nil {
			return domain.Bench{}, &domain.ValidationError{Field: "fireplace", Message: err.Error()}
		}
		b.Fireplace = v
	}

	if u := field(record, cols, "photo_url"); u != "" {
		b.PhotoURL1 = &u
	}
	if u := field(record, cols, "photo_url_2"); u != "" {
		b.PhotoURL2 = &u
	}

	if err := b.Validate(); err != nil {
		return domain.Bench{}, err
	}
	return b, nil
}

// parseBool accepts the spellings found in hand-maintained spreadsheets.
func parseBool(raw string) (bool, error) {
	switch strings.ToLower(raw) {
	case "1", "true", "yes", "ja", "x":
		return true, nil
	case "0", "false", "no", "nein":
		return false, nil
	}
	return false, fmt.Errorf("not a boolean: %q", raw)
}
