package gateway

import (
	"time"

	"lecture-chat/domain"
	"lecture-chat/domain/event"

	"github.com/samber/lo"
)

// Wire shapes for outbound payloads. Field names follow the client
// protocol (camelCase), decoupled from the domain structs.

type wireMessage struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"roomId"`
	Seq       uint64    `json:"seq"`
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName"`
	UserImage string    `json:"userImage,omitempty"`
	Role      string    `json:"role"`
	Type      string    `json:"type"`
	Content   string    `json:"content"`
	Lang      string    `json:"lang,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	IsPinned  bool      `json:"isPinned"`
	IsDeleted bool      `json:"isDeleted"`
}

type wireParticipant struct {
	UserID     string    `json:"userId"`
	UserName   string    `json:"userName"`
	UserImage  string    `json:"userImage,omitempty"`
	Role       string    `json:"role"`
	IsOnline   bool      `json:"isOnline"`
	LastActive time.Time `json:"lastActive"`
}

type wirePollOption struct {
	ID    string `json:"id"`
	Text  string `json:"text"`
	Votes int    `json:"votes"`
}

type wirePoll struct {
	ID        string           `json:"id"`
	RoomID    string           `json:"roomId"`
	Question  string           `json:"question"`
	Options   []wirePollOption `json:"options"`
	Status    string           `json:"status"`
	CreatedAt time.Time        `json:"createdAt"`
	EndedAt   *time.Time       `json:"endedAt,omitempty"`
}

type wireSettings struct {
	IsModerated             bool `json:"isModerated"`
	AllowPolls              bool `json:"allowPolls"`
	SlowMode                bool `json:"slowMode"`
	SlowModeIntervalSeconds int  `json:"slowModeIntervalSeconds"`
	AllowLinks              bool `json:"allowLinks"`
	AllowImages             bool `json:"allowImages"`
	AllowReplies            bool `json:"allowReplies"`
	MaxMessageLength        int  `json:"maxMessageLength"`
}

type wireMute struct {
	UserID     string    `json:"userId"`
	MutedUntil time.Time `json:"mutedUntil"`
}

type wireRoomData struct {
	RoomID        string            `json:"roomId"`
	IsActive      bool              `json:"isActive"`
	IsLectureLive bool              `json:"isLectureLive"`
	IsChatVisible bool              `json:"isChatVisible"`
	Settings      wireSettings      `json:"settings"`
	Messages      []wireMessage     `json:"messages"`
	Participants  []wireParticipant `json:"participants"`
	Polls         []wirePoll        `json:"polls"`
	Mutes         []wireMute        `json:"mutes"`
	Pinned        *wireMessage      `json:"pinnedMessage,omitempty"`
}

func toWireMessage(m domain.Message) wireMessage {
	return wireMessage{
		ID:        m.ID.String(),
		RoomID:    string(m.Room),
		Seq:       m.Seq,
		UserID:    m.UserID,
		UserName:  m.UserName,
		UserImage: m.UserImage,
		Role:      string(m.Role),
		Type:      string(m.Type),
		Content:   m.Content,
		Lang:      m.Lang,
		CreatedAt: m.CreatedAt,
		IsPinned:  m.IsPinned,
		IsDeleted: m.IsDeleted,
	}
}

func toWireParticipant(p domain.Participant) wireParticipant {
	return wireParticipant{
		UserID:     p.UserID,
		UserName:   p.UserName,
		UserImage:  p.UserImage,
		Role:       string(p.Role),
		IsOnline:   p.IsOnline,
		LastActive: p.LastActive,
	}
}

func toWirePoll(p domain.Poll) wirePoll {
	return wirePoll{
		ID:       p.ID.String(),
		RoomID:   string(p.Room),
		Question: p.Question,
		Options: lo.Map(p.Options, func(opt domain.PollOption, _ int) wirePollOption {
			return wirePollOption{ID: opt.ID, Text: opt.Text, Votes: opt.Votes}
		}),
		Status:    string(p.Status),
		CreatedAt: p.CreatedAt,
		EndedAt:   p.EndedAt,
	}
}

func toWireSettings(s domain.Settings) wireSettings {
	return wireSettings{
		IsModerated:             s.IsModerated,
		AllowPolls:              s.AllowPolls,
		SlowMode:                s.SlowMode,
		SlowModeIntervalSeconds: int(s.SlowModeInterval / time.Second),
		AllowLinks:              s.AllowLinks,
		AllowImages:             s.AllowImages,
		AllowReplies:            s.AllowReplies,
		MaxMessageLength:        s.MaxMessageLength,
	}
}

func fromWireSettings(s wireSettings) domain.Settings {
	return domain.Settings{
		IsModerated:      s.IsModerated,
		AllowPolls:       s.AllowPolls,
		SlowMode:         s.SlowMode,
		SlowModeInterval: time.Duration(s.SlowModeIntervalSeconds) * time.Second,
		AllowLinks:       s.AllowLinks,
		AllowImages:      s.AllowImages,
		AllowReplies:     s.AllowReplies,
		MaxMessageLength: s.MaxMessageLength,
	}
}

func toWireRoomData(e event.RoomData) wireRoomData {
	var pinned *wireMessage
	if e.Pinned != nil {
		p := toWireMessage(*e.Pinned)
		pinned = &p
	}
	return wireRoomData{
		RoomID:        string(e.Room),
		IsActive:      e.IsActive,
		IsLectureLive: e.IsLectureLive,
		IsChatVisible: e.IsChatVisible,
		Settings:      toWireSettings(e.Settings),
		Messages:      lo.Map(e.Messages, func(m domain.Message, _ int) wireMessage { return toWireMessage(m) }),
		Participants:  lo.Map(e.Participants, func(p domain.Participant, _ int) wireParticipant { return toWireParticipant(p) }),
		Polls:         lo.Map(e.Polls, func(p domain.Poll, _ int) wirePoll { return toWirePoll(p) }),
		Mutes: lo.Map(e.Mutes, func(m domain.MutedUser, _ int) wireMute {
			return wireMute{UserID: m.UserID, MutedUntil: m.MutedUntil}
		}),
		Pinned: pinned,
	}
}
