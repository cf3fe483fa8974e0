package http

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/baenkli/internal/core/board"
	"github.com/samirrijal/baenkli/internal/core/domain"
	"github.com/samirrijal/baenkli/internal/pkg/metrics"
)

// maxPhotoBytes caps a single base64-decoded photo sent over the socket.
const maxPhotoBytes = 10 << 20

// wsMessage is a client action on its board session.
//
//	{"action":"pick","lat":47.05,"lng":8.31}
//	{"action":"set","field":"view_rating","value":4}
//	{"action":"delete","id":"...","confirm":true}
//	{"action":"locate","error":"unsupported"}
type wsMessage struct {
	Action      string          `json:"action"`
	Lat         float64         `json:"lat"`
	Lng         float64         `json:"lng"`
	ID          string          `json:"id"`
	Field       string          `json:"field"`
	Value       json.RawMessage `json:"value"`
	Slot        int             `json:"slot"`
	Name        string          `json:"name"`
	ContentType string          `json:"content_type"`
	Data        string          `json:"data"` // base64
	Confirm     bool            `json:"confirm"`
	Filter      domain.Filter   `json:"filter"`
	Error       string          `json:"error"`
}

type wsView struct {
	Type string     `json:"type"`
	View board.View `json:"view"`
}

type wsError struct {
	Type    string `json:"type"`
	Action  string `json:"action,omitempty"`
	Message string `json:"message"`
}

type wsPrompt struct {
	Type   string `json:"type"`
	ID     string `json:"id"`
	Prompt string `json:"prompt"`
}

// wsLocator answers a single locate request with what the client reported.
type wsLocator struct {
	msg wsMessage
}

func (l wsLocator) CurrentPosition(context.Context) (domain.GeoPoint, error) {
	switch l.msg.Error {
	case "":
		return domain.GeoPoint{Lat: l.msg.Lat, Lng: l.msg.Lng}, nil
	case "unsupported":
		return domain.GeoPoint{}, domain.ErrGeolocationUnsupported
	default:
		return domain.GeoPoint{}, fmt.Errorf("%s: %w", l.msg.Error, domain.ErrPositionUnavailable)
	}
}

// session binds one socket to one board.
type session struct {
	board  *board.Board
	send   func(v interface{}) error
	logger *slog.Logger
}

// handle applies m to the board and answers with the new view, a delete
// prompt, or an error. Only failures of send are returned.
func (s *session) handle(ctx context.Context, m wsMessage) error {
	if err := s.apply(ctx, m); err != nil {
		if errors.Is(err, errPromptSent) {
			return nil
		}
		if sendErr := s.send(wsError{Type: "error", Action: m.Action, Message: err.Error()}); sendErr != nil {
			return sendErr
		}
	}
	return s.pushView()
}

var errPromptSent = errors.New("confirmation requested")

func (s *session) apply(ctx context.Context, m wsMessage) error {
	b := s.board
	switch m.Action {
	case "refresh":
		return b.Refresh(ctx)
	case "pick":
		return b.PickPosition(domain.GeoPoint{Lat: m.Lat, Lng: m.Lng})
	case "confirm":
		return b.ConfirmPosition()
	case "cancel":
		b.Cancel()
		return nil
	case "edit":
		return b.StartEditing(m.ID)
	case "set":
		return s.setField(m)
	case "photo":
		return s.setPhoto(m)
	case "submit":
		_, err := b.Submit(ctx)
		return err
	case "delete":
		var promptErr error
		_, err := b.Delete(ctx, m.ID, func(prompt string) bool {
			if !m.Confirm {
				promptErr = s.send(wsPrompt{Type: "confirm", ID: m.ID, Prompt: prompt})
			}
			return m.Confirm
		})
		if err != nil {
			return err
		}
		if !m.Confirm {
			if promptErr != nil {
				return promptErr
			}
			return errPromptSent
		}
		return nil
	case "filter":
		if err := m.Filter.Validate(); err != nil {
			return err
		}
		b.SetFilter(m.Filter)
		return nil
	case "reset_filter":
		b.ResetFilter()
		return nil
	case "locate":
		err := b.Locate(ctx, wsLocator{msg: m})
		if err != nil {
			s.logger.DebugContext(ctx, "locate failed", "error", err)
		}
		return nil
	case "dismiss":
		b.DismissNotice()
		return nil
	default:
		return fmt.Errorf("unknown action: %q", m.Action)
	}
}

func (s *session) setField(m wsMessage) error {
	b := s.board
	switch m.Field {
	case "ambiente_rating", "view_rating", "accessibility_rating":
		var v int
		if err := json.Unmarshal(m.Value, &v); err != nil {
			return &domain.ValidationError{Field: m.Field, Message: "must be an integer"}
		}
		switch m.Field {
		case "ambiente_rating":
			return b.SetAmbiente(v)
		case "view_rating":
			return b.SetView(v)
		default:
			return b.SetAccessibility(v)
		}
	case "fireplace":
		var v bool
		if err := json.Unmarshal(m.Value, &v); err != nil {
			return &domain.ValidationError{Field: m.Field, Message: "must be true or false"}
		}
		return b.SetFireplace(v)
	case "description":
		var v string
		if err := json.Unmarshal(m.Value, &v); err != nil {
			return &domain.ValidationError{Field: m.Field, Message: "must be a string"}
		}
		return b.SetDescription(v)
	default:
		return &domain.ValidationError{Field: "field", Message: fmt.Sprintf("unknown form field %q", m.Field)}
	}
}

func (s *session) setPhoto(m wsMessage) error {
	if m.Data == "" {
		return s.board.SetPhoto(m.Slot, nil)
	}
	if base64.StdEncoding.DecodedLen(len(m.Data)) > maxPhotoBytes {
		return &domain.ValidationError{Field: "data", Message: "photo too large"}
	}
	data, err := base64.StdEncoding.DecodeString(m.Data)
	if err != nil {
		return &domain.ValidationError{Field: "data", Message: "must be base64"}
	}
	return s.board.SetPhoto(m.Slot, &board.Photo{Name: m.Name, ContentType: m.ContentType, Data: data})
}

func (s *session) pushView() error {
	return s.send(wsView{Type: "view", View: s.board.Snapshot()})
}

// WebSocketHandler returns a handler that gives every connection its own
// bench board. Clients drive the board with wsMessage actions and receive a
// fresh view after each one, and whenever any instance mutates a bench.
func WebSocketHandler(deps *Dependencies) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		remoteAddr := c.RemoteAddr().String()
		logger := slog.Default().With("remote_addr", remoteAddr)
		logger.Info("ws client connected")
		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var mu sync.Mutex
		writeJSON := func(v interface{}) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}

		s := &session{
			board:  board.New(deps.Benches, logger),
			send:   writeJSON,
			logger: logger,
		}
		_ = s.board.Refresh(ctx)
		if err := s.pushView(); err != nil {
			return
		}

		// Live refresh when any instance changes the collection
		if deps.Events != nil {
			unsubscribe, err := deps.Events.SubscribeBenchEvents(func(ev *domain.BenchEvent) {
				if err := s.board.Refresh(ctx); err != nil {
					return
				}
				_ = s.pushView()
			})
			if err != nil {
				logger.Warn("ws bench event subscribe failed", "error", err)
			} else {
				defer unsubscribe()
			}
		}

		// Keep-alive ping
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
				case <-ctx.Done():
					return
				}
			}
		}()

		for {
			_, raw, err := c.ReadMessage()
			if err != nil {
				break
			}

			var m wsMessage
			if err := json.Unmarshal(raw, &m); err != nil {
				if err := writeJSON(wsError{Type: "error", Message: "invalid JSON"}); err != nil {
					break
				}
				continue
			}
			if err := s.handle(ctx, m); err != nil {
				break
			}
		}

		logger.Info("ws client disconnected")
	}
}
