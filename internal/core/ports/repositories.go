package ports

import (
	"context"
	"io"

	"github.com/samirrijal/baenkli/internal/core/domain"
)

// BenchRepository persists benches.
type BenchRepository interface {
	List(ctx context.Context) ([]domain.Bench, error)
	GetByID(ctx context.Context, id string) (*domain.Bench, error)
	// Insert assigns ID and timestamps on b.
	Insert(ctx context.Context, b *domain.Bench) error
	Update(ctx context.Context, b *domain.Bench) error
	Delete(ctx context.Context, id string) error
	InsertBatch(ctx context.Context, benches []domain.Bench) error
	// PhotoURLs returns every photo URL referenced by a stored bench.
	PhotoURLs(ctx context.Context) ([]string, error)
}

// PhotoStore keeps bench photos in an object bucket.
type PhotoStore interface {
	Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	PublicURL(key string) string
	Remove(ctx context.Context, keys []string) error
	List(ctx context.Context, prefix string) ([]domain.StoredObject, error)
}
