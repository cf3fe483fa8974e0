package ports

import (
	"context"

	"github.com/samirrijal/baenkli/internal/core/domain"
)

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishBenchEvent(ctx context.Context, event *domain.BenchEvent) error
}

// EventSubscriber delivers bench events until the returned cancel func is called.
type EventSubscriber interface {
	SubscribeBenchEvents(handler func(event *domain.BenchEvent)) (func(), error)
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// Locator reports the device position.
// Implementations return domain.ErrGeolocationUnsupported when no position
// source exists at all and domain.ErrPositionUnavailable otherwise.
type Locator interface {
	CurrentPosition(ctx context.Context) (domain.GeoPoint, error)
}
