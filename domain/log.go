package domain

import (
	"github.com/google/uuid"
)

// MessageLog is the append-only, sequence-numbered store of one room's
// messages. It keeps a bounded window of recent messages for snapshots and
// an ID-keyed dedup window so retried sends are suppressed without
// consuming a sequence number.
type MessageLog struct {
	seq        uint64
	window     []*Message
	windowSize int
	byID       map[uuid.UUID]*Message

	dedup      map[uuid.UUID]struct{}
	dedupOrder []uuid.UUID
	dedupSize  int
}

func NewMessageLog(windowSize, dedupSize int) *MessageLog {
	return &MessageLog{
		windowSize: windowSize,
		byID:       make(map[uuid.UUID]*Message),
		dedup:      make(map[uuid.UUID]struct{}),
		dedupSize:  dedupSize,
	}
}

// Append assigns the next sequence number and stores the message.
// A message whose ID is still in the dedup window is dropped and reported
// with ok=false; the caller acks it as a success without side effects.
func (l *MessageLog) Append(msg Message) (Message, bool) {
	if _, seen := l.dedup[msg.ID]; seen {
		return Message{}, false
	}

	l.seq++
	msg.Seq = l.seq

	stored := msg
	l.window = append(l.window, &stored)
	l.byID[stored.ID] = &stored
	if len(l.window) > l.windowSize {
		evicted := l.window[0]
		l.window = l.window[1:]
		delete(l.byID, evicted.ID)
	}

	l.dedup[msg.ID] = struct{}{}
	l.dedupOrder = append(l.dedupOrder, msg.ID)
	if len(l.dedupOrder) > l.dedupSize {
		oldest := l.dedupOrder[0]
		l.dedupOrder = l.dedupOrder[1:]
		delete(l.dedup, oldest)
	}

	return stored, true
}

// Get returns the live entry for flag mutations (pin, delete).
// Messages evicted from the window are no longer addressable.
func (l *MessageLog) Get(id uuid.UUID) (*Message, bool) {
	msg, ok := l.byID[id]
	return msg, ok
}

// Recent returns a copy of the snapshot window in seq order.
func (l *MessageLog) Recent() []Message {
	out := make([]Message, 0, len(l.window))
	for _, msg := range l.window {
		out = append(out, *msg)
	}
	return out
}

func (l *MessageLog) Seq() uint64 {
	return l.seq
}
