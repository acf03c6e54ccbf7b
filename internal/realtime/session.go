package realtime

import (
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a frame to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = 54 * time.Second

	// Maximum frame size allowed from peer.
	maxMessageSize = 64 * 1024

	sendBufferSize = 256
)

// Session is one authenticated WebSocket connection.
type Session struct {
	ID     string
	UserID uuid.UUID

	conn *websocket.Conn
	send chan []byte

	// closed is owned by the hub's dispatcher goroutine.
	closed bool
}

func newSession(userID uuid.UUID) *Session {
	return &Session{
		ID:     uuid.NewString(),
		UserID: userID,
		send:   make(chan []byte, sendBufferSize),
	}
}

// readPump feeds client frames to the gateway until the socket fails.
func (s *Session) readPump(g *Gateway) {
	defer func() {
		g.disconnect(s)
		s.conn.Close()
	}()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("session %s read error: %v", s.ID, err)
			} else {
				log.Debug("session %s closed: %v", s.ID, err)
			}
			return
		}
		g.handle(s, raw)
	}
}

// writePump writes queued frames, one event per WebSocket message, and
// keeps the connection alive with pings.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Debug("session %s write error: %v", s.ID, err)
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
