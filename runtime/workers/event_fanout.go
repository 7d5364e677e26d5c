package workers

import (
	"context"
	"log/slog"
	"time"

	"lecture-chat/contract"
	"lecture-chat/domain"
	"lecture-chat/domain/event"
	"lecture-chat/observability"
)

// SinkDirectory resolves which connections currently listen to a room.
type SinkDirectory interface {
	GetSinksForRoom(roomID domain.RoomID) []contract.EventSink
	SinkFor(roomID domain.RoomID, connID string) (contract.EventSink, bool)
}

// EventFanout broadcasts room events to the connections of that room plus
// the permanent sinks (persistence, projections).
//
// It provides best-effort fan-out with no guarantees regarding delivery,
// durability, or retries once a sink misbehaves; a slow sink is cut off at
// sinkTimeout and the event counted as dropped for that sink. EventFanout
// is not a message broker.
type EventFanout struct {
	log         *slog.Logger
	directory   SinkDirectory
	events      <-chan event.DomainEvent
	monitor     *observability.Monitor
	permanent   []contract.EventSink
	sinkTimeout time.Duration
}

var _ contract.Worker = (*EventFanout)(nil)

func NewEventFanout(log *slog.Logger, directory SinkDirectory,
	events <-chan event.DomainEvent, monitor *observability.Monitor,
	permanent []contract.EventSink, sinkTimeout time.Duration) *EventFanout {
	return &EventFanout{
		log:         log,
		directory:   directory,
		events:      events,
		monitor:     monitor,
		permanent:   permanent,
		sinkTimeout: sinkTimeout,
	}
}

func (w *EventFanout) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping worker")
			return ctx.Err()
		case evt, ok := <-w.events:
			if !ok {
				w.log.Debug("Channel is closed")
				return nil
			}
			w.Fanout(ctx, evt)
		}
	}
}

// Fanout routes one event. Snapshots carry a target connection and are
// delivered to that sink only; everything else goes room-wide plus to the
// permanent sinks.
func (w *EventFanout) Fanout(ctx context.Context, evt event.DomainEvent) {
	if snapshot, ok := evt.(event.RoomData); ok {
		sink, found := w.directory.SinkFor(snapshot.Room, snapshot.ConnID)
		if !found {
			// The connection dropped between admit and delivery
			w.log.Debug("Snapshot target gone", "room", snapshot.Room, "conn_id", snapshot.ConnID)
			return
		}
		w.deliver(ctx, sink, evt)
		return
	}

	for _, sink := range w.directory.GetSinksForRoom(evt.RoomID()) {
		w.deliver(ctx, sink, evt)
	}
	for _, sink := range w.permanent {
		w.deliver(ctx, sink, evt)
	}
}

func (w *EventFanout) deliver(ctx context.Context, sink contract.EventSink, evt event.DomainEvent) {
	deliveryCtx, cancel := context.WithTimeout(ctx, w.sinkTimeout)
	defer cancel()

	if err := sink.Consume(deliveryCtx, evt); err != nil {
		w.log.Warn("Sink rejected event", "event", evt.Name(), "room", evt.RoomID(), "error", err)
		w.monitor.IncrDropped()
		return
	}
	w.monitor.IncrDelivered()
}
