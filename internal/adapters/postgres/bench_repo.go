package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/baenkli/internal/core/domain"
)

const benchColumns = `id::text, lat, lng, ambiente_rating, view_rating, accessibility_rating, fireplace,
		       COALESCE(photo_url, ''), COALESCE(photo_url_2, ''), COALESCE(description, ''),
		       created_at, updated_at`

// BenchRepo implements ports.BenchRepository with pgx.
type BenchRepo struct {
	db Querier
}

// NewBenchRepo creates a new BenchRepo.
func NewBenchRepo(db Querier) *BenchRepo {
	return &BenchRepo{db: db}
}

// List returns every bench, oldest first.
func (r *BenchRepo) List(ctx context.Context) ([]domain.Bench, error) {
	rows, err := r.db.Query(ctx, `SELECT `+benchColumns+` FROM benches ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query benches: %w", err)
	}
	defer rows.Close()

	var benches []domain.Bench
	for rows.Next() {
		b, err := scanBench(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bench: %w", err)
		}
		benches = append(benches, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate benches: %w", err)
	}
	return benches, nil
}

// GetByID returns a bench by UUID.
func (r *BenchRepo) GetByID(ctx context.Context, id string) (*domain.Bench, error) {
	row := r.db.QueryRow(ctx, `SELECT `+benchColumns+` FROM benches WHERE id = $1`, id)
	b, err := scanBench(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrBenchNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get bench: %w", err)
	}
	return b, nil
}

// Insert stores a new bench and fills in its id and timestamps.
func (r *BenchRepo) Insert(ctx context.Context, b *domain.Bench) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO benches (lat, lng, ambiente_rating, view_rating, accessibility_rating, fireplace,
		                     photo_url, photo_url_2, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id::text, created_at, updated_at
	`, b.Lat, b.Lng, b.AmbienteRating, b.ViewRating, b.AccessibilityRating, b.Fireplace,
		b.PhotoURL1, b.PhotoURL2, b.Description,
	).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert bench: %w", err)
	}
	return nil
}

// Update overwrites every mutable column of bench b.ID.
func (r *BenchRepo) Update(ctx context.Context, b *domain.Bench) error {
	err := r.db.QueryRow(ctx, `
		UPDATE benches
		SET lat = $2, lng = $3, ambiente_rating = $4, view_rating = $5, accessibility_rating = $6,
		    fireplace = $7, photo_url = $8, photo_url_2 = $9, description = $10, updated_at = now()
		WHERE id = $1
		RETURNING created_at, updated_at
	`, b.ID, b.Lat, b.Lng, b.AmbienteRating, b.ViewRating, b.AccessibilityRating, b.Fireplace,
		b.PhotoURL1, b.PhotoURL2, b.Description,
	).Scan(&b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrBenchNotFound
	}
	if err != nil {
		return fmt.Errorf("update bench: %w", err)
	}
	return nil
}

// Delete removes a bench by UUID.
func (r *BenchRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM benches WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete bench: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrBenchNotFound
	}
	return nil
}

// InsertBatch inserts many benches using pgx.Batch.
func (r *BenchRepo) InsertBatch(ctx context.Context, benches []domain.Bench) error {
	if len(benches) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, b := range benches {
		batch.Queue(`
			INSERT INTO benches (lat, lng, ambiente_rating, view_rating, accessibility_rating, fireplace,
			                     photo_url, photo_url_2, description)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, b.Lat, b.Lng, b.AmbienteRating, b.ViewRating, b.AccessibilityRating, b.Fireplace,
			b.PhotoURL1, b.PhotoURL2, b.Description)
	}
	br := r.db.SendBatch(ctx, batch)
	defer br.Close()
	for range benches {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch exec: %w", err)
		}
	}
	return nil
}

// PhotoURLs returns the distinct photo URLs referenced by any bench.
func (r *BenchRepo) PhotoURLs(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `
		SELECT photo_url FROM benches WHERE photo_url IS NOT NULL AND photo_url <> ''
		UNION
		SELECT photo_url_2 FROM benches WHERE photo_url_2 IS NOT NULL AND photo_url_2 <> ''
	`)
	if err != nil {
		return nil, fmt.Errorf("query photo urls: %w", err)
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("scan photo url: %w", err)
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}

func scanBench(row pgx.Row) (*domain.Bench, error) {
	var b domain.Bench
	var photo1, photo2 string
	err := row.Scan(
		&b.ID, &b.Lat, &b.Lng, &b.AmbienteRating, &b.ViewRating, &b.AccessibilityRating, &b.Fireplace,
		&photo1, &photo2, &b.Description, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	b.PhotoURL1 = nilEmpty(photo1)
	b.PhotoURL2 = nilEmpty(photo2)
	return &b, nil
}

func nilEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
