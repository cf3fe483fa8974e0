package natsadapter

import (
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/baenkli/internal/core/domain"
)

// Subscriber implements ports.EventSubscriber with plain NATS subscriptions,
// so every API instance sees every event.
type Subscriber struct {
	conn *nats.Conn
}

// NewSubscriber wraps an existing connection.
func NewSubscriber(conn *nats.Conn) *Subscriber {
	return &Subscriber{conn: conn}
}

// SubscribeBenchEvents calls handler for each bench event until the returned
// cancel func runs. Malformed payloads are logged and skipped.
func (s *Subscriber) SubscribeBenchEvents(handler func(event *domain.BenchEvent)) (func(), error) {
	sub, err := s.conn.Subscribe(SubjectPrefix+">", func(msg *nats.Msg) {
		var ev domain.BenchEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			slog.Warn("dropping malformed bench event", "subject", msg.Subject, "error", err)
			return
		}
		handler(&ev)
	})
	if err != nil {
		return nil, err
	}
	return func() { _ = sub.Unsubscribe() }, nil
}
