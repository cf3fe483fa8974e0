package workflows

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/activity"

	"github.com/samirrijal/baenkli/internal/core/domain"
	"github.com/samirrijal/baenkli/internal/core/ports"
	"github.com/samirrijal/baenkli/internal/core/usecases"
	"github.com/samirrijal/baenkli/internal/pkg/metrics"
)

// SweepActivities holds the activity implementations for the orphan sweep.
type SweepActivities struct {
	Benches ports.BenchRepository
	Photos  ports.PhotoStore
}

// ListStoredPhotos lists every object under prefix.
func (a *SweepActivities) ListStoredPhotos(ctx context.Context, prefix string) ([]domain.StoredObject, error) {
	objects, err := a.Photos.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list stored photos: %w", err)
	}
	return objects, nil
}

// ReferencedPhotoKeys returns the object keys of every stored photo URL.
func (a *SweepActivities) ReferencedPhotoKeys(ctx context.Context) ([]string, error) {
	urls, err := a.Benches.PhotoURLs(ctx)
	if err != nil {
		return nil, fmt.Errorf("referenced photo urls: %w", err)
	}
	keys := make([]string, 0, len(urls))
	for _, u := range urls {
		if k := usecases.KeyFromURL(u); k != "" {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// RemovePhotos deletes keys and reports how many were removed.
func (a *SweepActivities) RemovePhotos(ctx context.Context, keys []string) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	activity.GetLogger(ctx).Info("removing orphan photos", "count", len(keys))
	if err := a.Photos.Remove(ctx, keys); err != nil {
		return 0, fmt.Errorf("remove orphan photos: %w", err)
	}
	metrics.OrphansSwept.Add(float64(len(keys)))
	return len(keys), nil
}
