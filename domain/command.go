package domain

import (
	"time"

	"github.com/google/uuid"
)

// Command is the closed union of every inbound room command. One variant per
// wire command; dispatchers match exhaustively on the concrete types.
type Command interface {
	RoomID() RoomID
}

// Admit registers a connection in a room and requests a snapshot.
type Admit struct {
	Room      RoomID
	ConnID    string
	SessionID string
	Identity  Identity
}

func (c Admit) RoomID() RoomID { return c.Room }

// Remove is enqueued on leave-room and on raw disconnect alike.
type Remove struct {
	Room   RoomID
	ConnID string
	UserID string
}

func (c Remove) RoomID() RoomID { return c.Room }

type SendMessage struct {
	Room      RoomID
	MessageID uuid.UUID
	Identity  Identity
	Content   string
	Type      MessageType
	At        time.Time
}

func (c SendMessage) RoomID() RoomID { return c.Room }

type PinMessage struct {
	Room      RoomID
	Identity  Identity
	MessageID uuid.UUID
}

func (c PinMessage) RoomID() RoomID { return c.Room }

type UnpinMessage struct {
	Room     RoomID
	Identity Identity
}

func (c UnpinMessage) RoomID() RoomID { return c.Room }

type DeleteMessage struct {
	Room      RoomID
	Identity  Identity
	MessageID uuid.UUID
}

func (c DeleteMessage) RoomID() RoomID { return c.Room }

type MuteUser struct {
	Room     RoomID
	Identity Identity
	TargetID string
	Duration time.Duration
}

func (c MuteUser) RoomID() RoomID { return c.Room }

type UnmuteUser struct {
	Room     RoomID
	Identity Identity
	TargetID string
}

func (c UnmuteUser) RoomID() RoomID { return c.Room }

type CreatePoll struct {
	Room     RoomID
	Identity Identity
	Question string
	Options  []string
}

func (c CreatePoll) RoomID() RoomID { return c.Room }

type VotePoll struct {
	Room     RoomID
	Identity Identity
	PollID   uuid.UUID
	OptionID string
}

func (c VotePoll) RoomID() RoomID { return c.Room }

type ClosePoll struct {
	Room     RoomID
	Identity Identity
	PollID   uuid.UUID
}

func (c ClosePoll) RoomID() RoomID { return c.Room }

type UpdateSettings struct {
	Room     RoomID
	Identity Identity
	Settings Settings
}

func (c UpdateSettings) RoomID() RoomID { return c.Room }

// ToggleRoom flips the chat-enabled flag.
type ToggleRoom struct {
	Room     RoomID
	Identity Identity
	IsActive bool
}

func (c ToggleRoom) RoomID() RoomID { return c.Room }

// ToggleLecture flips the lecture-live flag.
type ToggleLecture struct {
	Room     RoomID
	Identity Identity
	IsLive   bool
}

func (c ToggleLecture) RoomID() RoomID { return c.Room }

// SetChatVisibility covers both activate-chat and deactivate-chat.
type SetChatVisibility struct {
	Room     RoomID
	Identity Identity
	Visible  bool
}

func (c SetChatVisibility) RoomID() RoomID { return c.Room }
