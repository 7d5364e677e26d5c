// Package gateway holds the per-connection sessions: websocket transport,
// command decoding and ack envelopes.
package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	"lecture-chat/domain"
	"lecture-chat/domain/event"
	"lecture-chat/errors"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New()

// ClientFrame is the uniform inbound envelope. Ref correlates the ack back
// to the issuing request; clients retry a frame with the same ref (and the
// same messageId where applicable) on timeout.
type ClientFrame struct {
	Type    string          `json:"type"`
	Ref     string          `json:"ref,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ServerFrame is the uniform outbound envelope for both acks and events.
type ServerFrame struct {
	Type    string `json:"type"`
	Ref     string `json:"ref,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

type ackPayload struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func ackFrame(ref string, err error) ServerFrame {
	if err != nil {
		return ServerFrame{Type: "ack", Ref: ref, Payload: ackPayload{Error: errors.MapToCode(err)}}
	}
	return ServerFrame{Type: "ack", Ref: ref, Payload: ackPayload{Success: true}}
}

// Inbound payload shapes, validated before any command is built.

type joinRoomPayload struct {
	RoomID    string `json:"roomId" validate:"required"`
	LectureID string `json:"lectureId" validate:"required"`
	SessionID string `json:"sessionId"`
}

type sendMessagePayload struct {
	MessageID string `json:"messageId" validate:"omitempty,uuid4"`
	Content   string `json:"content" validate:"required"`
	Type      string `json:"type" validate:"omitempty,oneof=TEXT ANNOUNCEMENT"`
}

type messageIDPayload struct {
	MessageID string `json:"messageId" validate:"required,uuid4"`
}

type muteUserPayload struct {
	UserID          string `json:"userId" validate:"required"`
	DurationMinutes int    `json:"durationMinutes" validate:"required,gt=0"`
}

type unmuteUserPayload struct {
	UserID string `json:"userId" validate:"required"`
}

type createPollPayload struct {
	Question string   `json:"question" validate:"required,min=3"`
	Options  []string `json:"options" validate:"required,min=2"`
}

type votePollPayload struct {
	PollID   string `json:"pollId" validate:"required,uuid4"`
	OptionID string `json:"optionId" validate:"required"`
}

type closePollPayload struct {
	PollID string `json:"pollId" validate:"required,uuid4"`
}

type updateSettingsPayload struct {
	Settings wireSettings `json:"settings"`
}

type toggleRoomPayload struct {
	IsActive bool `json:"isActive"`
}

type toggleLecturePayload struct {
	IsLive bool `json:"isLive"`
}

func decodePayload(raw json.RawMessage, out any) error {
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrValidation, err)
	}
	if err := validate.Struct(out); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrValidation, err)
	}
	return nil
}

// DecodeCommand maps an in-room client frame onto the command union.
// join-room and leave-room are resolved by the session itself because they
// change what the connection is attached to.
func DecodeCommand(frame ClientFrame, room domain.RoomID, id domain.Identity, now time.Time) (domain.Command, error) {
	switch frame.Type {
	case "send-message":
		var p sendMessagePayload
		if err := decodePayload(frame.Payload, &p); err != nil {
			return nil, err
		}
		msgType := domain.MessageText
		if p.Type != "" {
			msgType = domain.MessageType(p.Type)
		}
		var msgID uuid.UUID
		if p.MessageID != "" {
			msgID = uuid.MustParse(p.MessageID)
		}
		return domain.SendMessage{
			Room:      room,
			MessageID: msgID,
			Identity:  id,
			Content:   p.Content,
			Type:      msgType,
			At:        now,
		}, nil

	case "pin-message":
		var p messageIDPayload
		if err := decodePayload(frame.Payload, &p); err != nil {
			return nil, err
		}
		return domain.PinMessage{Room: room, Identity: id, MessageID: uuid.MustParse(p.MessageID)}, nil

	case "unpin-message":
		return domain.UnpinMessage{Room: room, Identity: id}, nil

	case "delete-message":
		var p messageIDPayload
		if err := decodePayload(frame.Payload, &p); err != nil {
			return nil, err
		}
		return domain.DeleteMessage{Room: room, Identity: id, MessageID: uuid.MustParse(p.MessageID)}, nil

	case "mute-user":
		var p muteUserPayload
		if err := decodePayload(frame.Payload, &p); err != nil {
			return nil, err
		}
		return domain.MuteUser{
			Room:     room,
			Identity: id,
			TargetID: p.UserID,
			Duration: time.Duration(p.DurationMinutes) * time.Minute,
		}, nil

	case "unmute-user":
		var p unmuteUserPayload
		if err := decodePayload(frame.Payload, &p); err != nil {
			return nil, err
		}
		return domain.UnmuteUser{Room: room, Identity: id, TargetID: p.UserID}, nil

	case "create-poll":
		var p createPollPayload
		if err := decodePayload(frame.Payload, &p); err != nil {
			return nil, err
		}
		return domain.CreatePoll{Room: room, Identity: id, Question: p.Question, Options: p.Options}, nil

	case "vote-poll":
		var p votePollPayload
		if err := decodePayload(frame.Payload, &p); err != nil {
			return nil, err
		}
		return domain.VotePoll{Room: room, Identity: id, PollID: uuid.MustParse(p.PollID), OptionID: p.OptionID}, nil

	case "close-poll":
		var p closePollPayload
		if err := decodePayload(frame.Payload, &p); err != nil {
			return nil, err
		}
		return domain.ClosePoll{Room: room, Identity: id, PollID: uuid.MustParse(p.PollID)}, nil

	case "update-room-settings":
		var p updateSettingsPayload
		if err := decodePayload(frame.Payload, &p); err != nil {
			return nil, err
		}
		return domain.UpdateSettings{Room: room, Identity: id, Settings: fromWireSettings(p.Settings)}, nil

	case "toggle-room":
		var p toggleRoomPayload
		if err := decodePayload(frame.Payload, &p); err != nil {
			return nil, err
		}
		return domain.ToggleRoom{Room: room, Identity: id, IsActive: p.IsActive}, nil

	case "toggle-lecture":
		var p toggleLecturePayload
		if err := decodePayload(frame.Payload, &p); err != nil {
			return nil, err
		}
		return domain.ToggleLecture{Room: room, Identity: id, IsLive: p.IsLive}, nil

	case "activate-chat":
		return domain.SetChatVisibility{Room: room, Identity: id, Visible: true}, nil

	case "deactivate-chat":
		return domain.SetChatVisibility{Room: room, Identity: id, Visible: false}, nil
	}

	return nil, fmt.Errorf("%w: unknown command type %q", errors.ErrValidation, frame.Type)
}

// EncodeEvent maps a broadcast onto its wire frame, one case per variant.
func EncodeEvent(e event.DomainEvent) ServerFrame {
	frame := ServerFrame{Type: e.Name()}

	switch evt := e.(type) {
	case event.RoomData:
		frame.Payload = toWireRoomData(evt)
	case event.NewMessage:
		frame.Payload = toWireMessage(evt.Message)
	case event.MessagePinned:
		frame.Payload = toWireMessage(evt.Message)
	case event.MessageUnpinned:
		frame.Payload = map[string]any{"messageId": evt.MessageID.String()}
	case event.MessageDeleted:
		frame.Payload = map[string]any{"messageId": evt.MessageID.String(), "seq": evt.Seq}
	case event.NewPoll:
		frame.Payload = toWirePoll(evt.Poll)
	case event.PollUpdated:
		frame.Payload = toWirePoll(evt.Poll)
	case event.PollClosed:
		frame.Payload = toWirePoll(evt.Poll)
	case event.UserMuted:
		frame.Payload = wireMute{UserID: evt.UserID, MutedUntil: evt.MutedUntil}
	case event.UserUnmuted:
		frame.Payload = map[string]any{"userId": evt.UserID}
	case event.RoomSettingsUpdated:
		frame.Payload = toWireSettings(evt.Settings)
	case event.RoomToggled:
		frame.Payload = map[string]any{"isActive": evt.IsActive}
	case event.RoomDisabled:
		frame.Payload = map[string]any{"roomId": string(evt.Room)}
	case event.LectureLiveStatus:
		frame.Payload = map[string]any{"isLive": evt.IsLive}
	case event.ChatVisibilityUpdate:
		frame.Payload = map[string]any{"isChatVisible": evt.IsVisible}
	case event.UserJoined:
		frame.Payload = toWireParticipant(evt.Participant)
	case event.UserLeft:
		frame.Payload = map[string]any{"userId": evt.UserID}
	}

	return frame
}
