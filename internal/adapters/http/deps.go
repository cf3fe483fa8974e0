package http

import (
	"context"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/baenkli/internal/adapters/postgres"
	"github.com/samirrijal/baenkli/internal/core/ports"
	"github.com/samirrijal/baenkli/internal/core/usecases"
)

// Pinger is a backing service that can report its reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Benches *usecases.BenchService
	// Events feeds open board sessions; nil disables live refresh.
	Events ports.EventSubscriber
	NATS   *nats.Conn
	DB     *postgres.DB
	Cache  Pinger
	Photos Pinger
}
