package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"lecture-chat/domain"
	"lecture-chat/domain/event"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second
)

// Session is the server side of one websocket connection: the identity it
// authenticated as, the single room it is joined to, and the buffered
// outbound queue its room actor broadcasts land in.
//
// Consume is called by the fanout worker; everything else runs on the
// session's own read/write goroutines.
type Session struct {
	log       *slog.Logger
	conn      *websocket.Conn
	identity  domain.Identity
	connID    string
	sessionID string

	// set by join-room, cleared by leave-room; only the readLoop touches them
	roomID    domain.RoomID
	lectureID string
	joined    bool

	outbound chan ServerFrame
}

func NewSession(log *slog.Logger, conn *websocket.Conn, identity domain.Identity,
	connID string, bufferSize int) *Session {
	return &Session{
		log:      log.With("conn_id", connID, "user_id", identity.UserID),
		conn:     conn,
		identity: identity,
		connID:   connID,
		outbound: make(chan ServerFrame, bufferSize),
	}
}

// Consume queues a broadcast for delivery. A full queue means the client
// cannot keep up; the event is dropped for this connection and the client
// recovers from the next snapshot on reconnect.
func (s *Session) Consume(ctx context.Context, e event.DomainEvent) error {
	select {
	case s.outbound <- EncodeEvent(e):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("outbound queue full for connection %s", s.connID)
	}
}

// send queues a frame originating from the session itself (acks).
func (s *Session) send(frame ServerFrame) {
	select {
	case s.outbound <- frame:
	default:
		s.log.Warn("Dropping ack frame, outbound queue full")
	}
}

// WriteLoop drains the outbound queue onto the socket and keeps the
// connection alive with pings. Returns on write error or context end.
func (s *Session) WriteLoop(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-s.outbound:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(frame); err != nil {
				s.log.Debug("Write failed, closing session", "error", err)
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
