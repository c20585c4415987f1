package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/gymsmart/gymsmart-backend/internal/chat"
	"github.com/gymsmart/gymsmart-backend/internal/domain"
	"github.com/gymsmart/gymsmart-backend/internal/ws"
	"github.com/rs/zerolog"
)

const eventBuffer = 64

// Subscribe opens the realtime websocket. Inserted rows addressed to the
// caller arrive on Events until Close or until the connection drops.
func (c *Client) Subscribe(ctx context.Context) (chat.Subscription, error) {
	if c.token == "" {
		return nil, errEmptyToken
	}

	u := *c.baseURL
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = c.baseURL.Path + "/ws/messages"

	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.token)
	conn, resp, err := c.dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, &APIError{Status: resp.StatusCode, Message: "websocket handshake rejected", kind: kindFor(resp.StatusCode)}
		}
		return nil, err
	}

	s := &subscription{
		conn:   conn,
		events: make(chan domain.Message, eventBuffer),
		done:   make(chan struct{}),
		log:    c.log,
	}
	go s.readLoop()
	return s, nil
}

type subscription struct {
	conn   *websocket.Conn
	events chan domain.Message
	done   chan struct{}
	log    zerolog.Logger

	closeOnce sync.Once
}

func (s *subscription) Events() <-chan domain.Message { return s.events }

func (s *subscription) readLoop() {
	defer close(s.events)
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
			default:
				s.log.Warn().Err(err).Msg("realtime connection lost")
			}
			return
		}

		var event ws.Event
		if err := json.Unmarshal(data, &event); err != nil {
			s.log.Warn().Err(err).Msg("malformed realtime event dropped")
			continue
		}
		if event.Type != ws.EventMessageInsert {
			continue
		}
		var msg domain.Message
		if err := json.Unmarshal(event.Payload, &msg); err != nil || checkMessage(&msg) != nil {
			s.log.Warn().Msg("malformed message event dropped")
			continue
		}

		select {
		case s.events <- msg:
		case <-s.done:
			return
		}
	}
}

func (s *subscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")) //nolint:errcheck
		err = s.conn.Close()
	})
	return err
}
