package domain

import (
	"time"

	"github.com/google/uuid"
)

type MessageType string

const (
	MessageText         MessageType = "TEXT"
	MessageSystem       MessageType = "SYSTEM"
	MessagePoll         MessageType = "POLL"
	MessageAnnouncement MessageType = "ANNOUNCEMENT"
)

// Message is an entry of a room's append-only log. Immutable once appended
// except for the IsPinned and IsDeleted flags; Seq is strictly increasing
// per room and a deleted message keeps its slot.
type Message struct {
	ID        uuid.UUID
	Room      RoomID
	Seq       uint64
	UserID    string
	UserName  string
	UserImage string
	Role      Role
	Type      MessageType
	Content   string
	Lang      string
	CreatedAt time.Time
	IsPinned  bool
	IsDeleted bool
}
