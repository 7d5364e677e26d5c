// Package event defines the closed catalog of outbound broadcasts.
// One variant per wire event name; Name() is the tag used on the wire.
package event

import (
	"time"

	"lecture-chat/domain"

	"github.com/google/uuid"
)

type DomainEvent interface {
	RoomID() domain.RoomID
	Name() string
}

// RoomData is the full snapshot sent to a joining or reconnecting
// connection. ConnID targets delivery to that single connection; it is
// never fanned out room-wide.
type RoomData struct {
	Room          domain.RoomID
	ConnID        string
	IsActive      bool
	IsLectureLive bool
	IsChatVisible bool
	Settings      domain.Settings
	Messages      []domain.Message
	Participants  []domain.Participant
	Polls         []domain.Poll
	Mutes         []domain.MutedUser
	Pinned        *domain.Message
}

func (e RoomData) RoomID() domain.RoomID { return e.Room }
func (e RoomData) Name() string          { return "room-data" }

type NewMessage struct {
	Room    domain.RoomID
	Message domain.Message
}

func (e NewMessage) RoomID() domain.RoomID { return e.Room }
func (e NewMessage) Name() string          { return "new-message" }

type MessagePinned struct {
	Room    domain.RoomID
	Message domain.Message
}

func (e MessagePinned) RoomID() domain.RoomID { return e.Room }
func (e MessagePinned) Name() string          { return "message-pinned" }

type MessageUnpinned struct {
	Room      domain.RoomID
	MessageID uuid.UUID
}

func (e MessageUnpinned) RoomID() domain.RoomID { return e.Room }
func (e MessageUnpinned) Name() string          { return "message-unpinned" }

type MessageDeleted struct {
	Room      domain.RoomID
	MessageID uuid.UUID
	Seq       uint64
}

func (e MessageDeleted) RoomID() domain.RoomID { return e.Room }
func (e MessageDeleted) Name() string          { return "message-deleted" }

type NewPoll struct {
	Room domain.RoomID
	Poll domain.Poll
}

func (e NewPoll) RoomID() domain.RoomID { return e.Room }
func (e NewPoll) Name() string          { return "new-poll" }

type PollUpdated struct {
	Room domain.RoomID
	Poll domain.Poll
}

func (e PollUpdated) RoomID() domain.RoomID { return e.Room }
func (e PollUpdated) Name() string          { return "poll-updated" }

type PollClosed struct {
	Room domain.RoomID
	Poll domain.Poll
}

func (e PollClosed) RoomID() domain.RoomID { return e.Room }
func (e PollClosed) Name() string          { return "poll-closed" }

type UserMuted struct {
	Room       domain.RoomID
	UserID     string
	MutedUntil time.Time
}

func (e UserMuted) RoomID() domain.RoomID { return e.Room }
func (e UserMuted) Name() string          { return "user-muted" }

type UserUnmuted struct {
	Room   domain.RoomID
	UserID string
}

func (e UserUnmuted) RoomID() domain.RoomID { return e.Room }
func (e UserUnmuted) Name() string          { return "user-unmuted" }

type RoomSettingsUpdated struct {
	Room     domain.RoomID
	Settings domain.Settings
}

func (e RoomSettingsUpdated) RoomID() domain.RoomID { return e.Room }
func (e RoomSettingsUpdated) Name() string          { return "room-settings-updated" }

type RoomToggled struct {
	Room     domain.RoomID
	IsActive bool
}

func (e RoomToggled) RoomID() domain.RoomID { return e.Room }
func (e RoomToggled) Name() string          { return "room-toggled" }

// RoomDisabled accompanies RoomToggled{IsActive: false} so clients with a
// simple banner can react without inspecting the toggle payload.
type RoomDisabled struct {
	Room domain.RoomID
}

func (e RoomDisabled) RoomID() domain.RoomID { return e.Room }
func (e RoomDisabled) Name() string          { return "room-disabled" }

type LectureLiveStatus struct {
	Room   domain.RoomID
	IsLive bool
}

func (e LectureLiveStatus) RoomID() domain.RoomID { return e.Room }
func (e LectureLiveStatus) Name() string          { return "lecture-live-status" }

type ChatVisibilityUpdate struct {
	Room      domain.RoomID
	IsVisible bool
}

func (e ChatVisibilityUpdate) RoomID() domain.RoomID { return e.Room }
func (e ChatVisibilityUpdate) Name() string          { return "chat-visibility-update" }

type UserJoined struct {
	Room        domain.RoomID
	Participant domain.Participant
}

func (e UserJoined) RoomID() domain.RoomID { return e.Room }
func (e UserJoined) Name() string          { return "user-joined" }

type UserLeft struct {
	Room   domain.RoomID
	UserID string
}

func (e UserLeft) RoomID() domain.RoomID { return e.Room }
func (e UserLeft) Name() string          { return "user-left" }
