package runtime

import (
	"context"
	"log/slog"
	"sync"

	"lecture-chat/contract"
	"lecture-chat/domain"
	"lecture-chat/domain/event"
	"lecture-chat/errors"
	"lecture-chat/moderation"
	"lecture-chat/observability"
)

// Registry maps room identifiers to live room actors and connections to
// their delivery sinks. Actors are created lazily on the first join for a
// roomId and retire themselves after the idle period; a retired roomId is
// recreated fresh on the next join.
type Registry struct {
	mu        sync.RWMutex
	log       *slog.Logger
	sup       contract.ISupervisor
	events    chan<- event.DomainEvent
	monitor   *observability.Monitor
	moderator *moderation.Moderator
	cfg       ActorConfig

	runCtx context.Context
	actors map[domain.RoomID]*RoomActor
	sinks  map[domain.RoomID]map[string]contract.EventSink
}

var _ contract.IRoomRegistry = (*Registry)(nil)

func NewRegistry(log *slog.Logger, sup contract.ISupervisor,
	events chan<- event.DomainEvent, monitor *observability.Monitor,
	moderator *moderation.Moderator, cfg ActorConfig) *Registry {
	return &Registry{
		log:       log,
		sup:       sup,
		events:    events,
		monitor:   monitor,
		moderator: moderator,
		cfg:       cfg,
		actors:    make(map[domain.RoomID]*RoomActor),
		sinks:     make(map[domain.RoomID]map[string]contract.EventSink),
	}
}

// Start records the lifetime context under which future actors run.
// Must be called once before the gateway starts serving.
func (r *Registry) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runCtx = ctx
}

// getOrCreate resolves the actor for a room, creating and supervising it on
// first join. Creation is idempotent: concurrent first-joiners race on the
// mutex, the loser reuses the winner's actor.
func (r *Registry) getOrCreate(roomID domain.RoomID, lectureID string) *RoomActor {
	r.mu.Lock()
	defer r.mu.Unlock()

	if actor, ok := r.actors[roomID]; ok {
		return actor
	}

	actor := NewRoomActor(roomID, lectureID, r.log, r.events, r.monitor, r.moderator, r.cfg, r.Retire)
	r.actors[roomID] = actor
	r.sup.Start(r.runCtx, actor)
	r.log.Info("Room actor created", "room", roomID, "lecture", lectureID)
	return actor
}

// Dispatch routes a command to the owning actor and waits for its ack.
func (r *Registry) Dispatch(ctx context.Context, cmd domain.Command) error {
	r.mu.RLock()
	actor, ok := r.actors[cmd.RoomID()]
	r.mu.RUnlock()
	if !ok {
		return errors.ErrNotFound
	}
	return actor.Submit(ctx, cmd, r.cfg.AckTimeout)
}

// Attach registers a connection's sink with a room, creating the room on
// first join. It must precede the Admit command for that connection.
func (r *Registry) Attach(roomID domain.RoomID, lectureID, connID string, sink contract.EventSink) {
	r.getOrCreate(roomID, lectureID)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sinks[roomID]; !ok {
		r.sinks[roomID] = make(map[string]contract.EventSink)
	}
	r.sinks[roomID][connID] = sink
}

// Detach removes a connection's sink and cleans up empty sets so the map
// does not leak over time.
func (r *Registry) Detach(roomID domain.RoomID, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if conns, ok := r.sinks[roomID]; ok {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(r.sinks, roomID)
		}
	}
}

// GetSinksForRoom retrieves all active delivery channels for a room.
func (r *Registry) GetSinksForRoom(roomID domain.RoomID) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns, ok := r.sinks[roomID]
	if !ok {
		return nil
	}
	out := make([]contract.EventSink, 0, len(conns))
	for _, sink := range conns {
		out = append(out, sink)
	}
	return out
}

// SinkFor resolves one connection's sink, used for targeted snapshots.
func (r *Registry) SinkFor(roomID domain.RoomID, connID string) (contract.EventSink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns, ok := r.sinks[roomID]
	if !ok {
		return nil, false
	}
	sink, ok := conns[connID]
	return sink, ok
}

// Retire forgets a room actor. Called by the actor itself once idle; the
// in-memory state is discarded with it.
func (r *Registry) Retire(roomID domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.actors, roomID)
	delete(r.sinks, roomID)
}

// RoomsLive and ParticipantsOnline feed the monitor's gauges. Both are
// registry-side approximations: live actor count and attached connections.
func (r *Registry) RoomsLive() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.actors)
}

func (r *Registry) ParticipantsOnline() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	total := 0
	for _, conns := range r.sinks {
		total += len(conns)
	}
	return total
}
