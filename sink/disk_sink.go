// Package sink holds the permanent event consumers attached to the fanout.
package sink

import (
	"context"
	"log/slog"

	"lecture-chat/domain/event"
	"lecture-chat/repositories"
)

// DiskSink persists accepted messages through the message repository.
// It is a permanent fanout sink: failures are logged, never propagated back
// into the room actor.
type DiskSink struct {
	repository repositories.IMessageRepository
	log        *slog.Logger
}

func NewDiskSink(repository repositories.IMessageRepository, log *slog.Logger) *DiskSink {
	return &DiskSink{repository: repository, log: log}
}

func (s *DiskSink) Consume(_ context.Context, e event.DomainEvent) error {
	switch evt := e.(type) {
	case event.NewMessage:
		if err := s.repository.StoreMessage(repositories.FromMessage(evt.Message)); err != nil {
			s.log.Warn("Failed to persist message",
				"room", evt.Room,
				"message_id", evt.Message.ID,
				"error", err)
			return err
		}
	}
	return nil
}
