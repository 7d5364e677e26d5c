package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"lecture-chat/auth"
	"lecture-chat/contract"
	"lecture-chat/domain"
	"lecture-chat/errors"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Gateway upgrades websocket connections, authenticates them against the
// platform's identity tokens, and relays commands and broadcasts between
// clients and room actors. It never touches room state itself.
type Gateway struct {
	log        *slog.Logger
	registry   contract.IRoomRegistry
	enrollment contract.EnrollmentChecker
	verifier   auth.Verifier
	upgrader   websocket.Upgrader
	bufferSize int
}

func NewGateway(log *slog.Logger, registry contract.IRoomRegistry,
	enrollment contract.EnrollmentChecker, verifier auth.Verifier, bufferSize int) *Gateway {
	return &Gateway{
		log:        log,
		registry:   registry,
		enrollment: enrollment,
		verifier:   verifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Origin policy is enforced upstream by the platform proxy
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		bufferSize: bufferSize,
	}
}

func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", g.serveWS)
	return mux
}

func (g *Gateway) serveWS(w http.ResponseWriter, r *http.Request) {
	identity, err := g.authenticate(r)
	if err != nil {
		http.Error(w, errors.MapToCode(err), http.StatusUnauthorized)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Warn("Upgrade failed", "error", err)
		return
	}

	session := NewSession(g.log, conn, identity, uuid.NewString(), g.bufferSize)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go func() {
		session.WriteLoop(ctx)
		cancel()
	}()

	g.readLoop(ctx, session)

	// Raw disconnect and leave-room end the same way: a Remove command
	// and a detached sink. The actor downgrades presence only after the
	// grace period, so a reconnecting tab never flaps.
	g.leaveRoom(session)
	_ = conn.Close()
}

func (g *Gateway) authenticate(r *http.Request) (domain.Identity, error) {
	token := r.URL.Query().Get("token")
	if token == "" {
		header := r.Header.Get("Authorization")
		token = strings.TrimPrefix(header, "Bearer ")
	}
	if token == "" {
		return domain.Identity{}, errors.ErrAuth
	}
	return g.verifier.ValidateToken(token)
}

func (g *Gateway) readLoop(ctx context.Context, s *Session) {
	s.conn.SetReadLimit(64 * 1024)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var frame ClientFrame
		if err := s.conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug("Connection closed unexpectedly", "error", err)
			}
			return
		}
		g.handleFrame(ctx, s, frame)
	}
}

func (g *Gateway) handleFrame(ctx context.Context, s *Session, frame ClientFrame) {
	switch frame.Type {
	case "join-room":
		s.send(ackFrame(frame.Ref, g.joinRoom(ctx, s, frame)))
	case "leave-room":
		g.leaveRoom(s)
		s.send(ackFrame(frame.Ref, nil))
	default:
		s.send(ackFrame(frame.Ref, g.forward(ctx, s, frame)))
	}
}

// joinRoom validates enrollment, attaches the connection's sink, and admits
// the connection. A connection may join only one lecture room at a time;
// re-joining the same room within the grace period is idempotent.
func (g *Gateway) joinRoom(ctx context.Context, s *Session, frame ClientFrame) error {
	var p joinRoomPayload
	if err := decodePayload(frame.Payload, &p); err != nil {
		return err
	}
	roomID := domain.RoomID(p.RoomID)

	if s.joined && s.roomID != roomID {
		return fmt.Errorf("%w: connection already joined to room %s", errors.ErrConflict, s.roomID)
	}

	enrolled, err := g.enrollment.IsEnrolled(ctx, s.identity.UserID, p.LectureID)
	if err != nil {
		return fmt.Errorf("enrollment check failed: %w", err)
	}
	if !enrolled {
		return errors.ErrNotEnrolled
	}

	g.registry.Attach(roomID, p.LectureID, s.connID, s)
	err = g.registry.Dispatch(ctx, domain.Admit{
		Room:      roomID,
		ConnID:    s.connID,
		SessionID: p.SessionID,
		Identity:  s.identity,
	})
	if err != nil {
		g.registry.Detach(roomID, s.connID)
		return err
	}

	s.roomID = roomID
	s.lectureID = p.LectureID
	s.sessionID = p.SessionID
	s.joined = true
	g.log.Info("Connection joined room", "user_id", s.identity.UserID, "room", roomID)
	return nil
}

func (g *Gateway) leaveRoom(s *Session) {
	if !s.joined {
		return
	}
	// The socket context may already be gone; the Remove command still
	// has to reach the actor.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := g.registry.Dispatch(ctx, domain.Remove{
		Room:   s.roomID,
		ConnID: s.connID,
		UserID: s.identity.UserID,
	}); err != nil {
		g.log.Warn("Failed to remove connection from room", "room", s.roomID, "error", err)
	}
	g.registry.Detach(s.roomID, s.connID)
	s.joined = false
}

// forward decodes an in-room command and dispatches it to the owning actor.
func (g *Gateway) forward(ctx context.Context, s *Session, frame ClientFrame) error {
	if !s.joined {
		return fmt.Errorf("%w: join a room first", errors.ErrConflict)
	}
	cmd, err := DecodeCommand(frame, s.roomID, s.identity, time.Now().UTC())
	if err != nil {
		return err
	}
	return g.registry.Dispatch(ctx, cmd)
}
