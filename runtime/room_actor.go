// Package runtime owns the live side of the engine: the room registry and
// the per-room actors. It orchestrates without containing domain rules.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"lecture-chat/contract"
	"lecture-chat/domain"
	"lecture-chat/domain/event"
	"lecture-chat/errors"
	"lecture-chat/moderation"
	"lecture-chat/observability"

	"github.com/google/uuid"
)

const housekeepInterval = 1 * time.Second

type envelope struct {
	cmd   domain.Command
	reply chan error
}

// RoomActor is the single serialized owner of one room's mutable state.
// Every command for the room flows through its inbox and is processed one
// at a time, in arrival order; that is the whole concurrency story for
// pins, mutes and vote tallies. Housekeeping (presence grace, mute expiry,
// idle detection) runs on a ticker inside the same loop, so it can never
// interleave with a command.
type RoomActor struct {
	room      *domain.Room
	inbox     chan envelope
	events    chan<- event.DomainEvent
	log       *slog.Logger
	monitor   *observability.Monitor
	moderator *moderation.Moderator

	presenceGrace  time.Duration
	idleRetirement time.Duration
	retire         func(domain.RoomID)
	clock          func() time.Time

	// Connection bookkeeping. A user's presence collapses over all of
	// their connections; only the last one leaving arms the grace timer.
	conns          map[string]string
	userConns      map[string]int
	pendingOffline map[string]time.Time
	idleSince      time.Time

	closed chan struct{}
}

var _ contract.Worker = (*RoomActor)(nil)

type ActorConfig struct {
	BufferSize     int
	SnapshotWindow int
	DedupWindow    int
	AckTimeout     time.Duration
	PresenceGrace  time.Duration
	IdleRetirement time.Duration
}

func NewRoomActor(roomID domain.RoomID, lectureID string, log *slog.Logger,
	events chan<- event.DomainEvent, monitor *observability.Monitor,
	moderator *moderation.Moderator, cfg ActorConfig, retire func(domain.RoomID)) *RoomActor {
	return &RoomActor{
		room:           domain.NewRoom(roomID, lectureID, cfg.SnapshotWindow, cfg.DedupWindow, time.Now().UTC()),
		inbox:          make(chan envelope, cfg.BufferSize),
		events:         events,
		log:            log.With("room", roomID),
		monitor:        monitor,
		moderator:      moderator,
		presenceGrace:  cfg.PresenceGrace,
		idleRetirement: cfg.IdleRetirement,
		retire:         retire,
		clock:          func() time.Time { return time.Now().UTC() },
		conns:          make(map[string]string),
		userConns:      make(map[string]int),
		pendingOffline: make(map[string]time.Time),
		closed:         make(chan struct{}),
	}
}

// Submit hands a command to the actor and waits for its ack. A command not
// acknowledged within timeout surfaces as a retryable failure, never a
// silent drop.
func (a *RoomActor) Submit(ctx context.Context, cmd domain.Command, timeout time.Duration) error {
	env := envelope{cmd: cmd, reply: make(chan error, 1)}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case a.inbox <- env:
	case <-a.closed:
		return errors.ErrRoomClosed
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return errors.ErrAckTimeout
	}

	select {
	case err := <-env.reply:
		return err
	case <-a.closed:
		return errors.ErrRoomClosed
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return errors.ErrAckTimeout
	}
}

// Run drains the inbox until the room is retired or the context ends.
// A nil return tells the supervisor the actor terminated on purpose.
func (a *RoomActor) Run(ctx context.Context) error {
	defer close(a.closed)

	ticker := time.NewTicker(housekeepInterval)
	defer ticker.Stop()

	a.log.Info("Room actor started")
	for {
		select {
		case <-ctx.Done():
			a.log.Debug("Stopping worker")
			return ctx.Err()
		case env := <-a.inbox:
			evts, err := a.handle(env.cmd)
			if err != nil {
				a.monitor.IncrRejected()
			}
			env.reply <- err
			a.emit(ctx, evts...)
		case <-ticker.C:
			if done := a.housekeep(ctx); done {
				a.retire(a.room.ID)
				a.log.Info("Room retired after idle period")
				return nil
			}
		}
	}
}

func (a *RoomActor) emit(ctx context.Context, evts ...event.DomainEvent) {
	for _, evt := range evts {
		select {
		case a.events <- evt:
		case <-ctx.Done():
			return
		}
	}
}

// handle applies one command to the room. Validation and permission errors
// only reach the issuing connection through the ack; the loop itself keeps
// going whatever the outcome.
func (a *RoomActor) handle(cmd domain.Command) ([]event.DomainEvent, error) {
	now := a.clock()

	switch c := cmd.(type) {
	case domain.Admit:
		return a.admit(c, now), nil

	case domain.Remove:
		a.remove(c, now)
		return nil, nil

	case domain.SendMessage:
		return a.sendMessage(c, now)

	case domain.PinMessage:
		if err := requireModerator(c.Identity); err != nil {
			return nil, err
		}
		msg, err := a.room.Pin(c.MessageID)
		if err != nil {
			return nil, err
		}
		return []event.DomainEvent{event.MessagePinned{Room: a.room.ID, Message: msg}}, nil

	case domain.UnpinMessage:
		if err := requireModerator(c.Identity); err != nil {
			return nil, err
		}
		id, ok := a.room.Unpin()
		if !ok {
			// Nothing pinned: benign no-op
			return nil, nil
		}
		return []event.DomainEvent{event.MessageUnpinned{Room: a.room.ID, MessageID: id}}, nil

	case domain.DeleteMessage:
		msg, err := a.room.Delete(c.MessageID, c.Identity)
		if err != nil {
			return nil, err
		}
		return []event.DomainEvent{event.MessageDeleted{Room: a.room.ID, MessageID: msg.ID, Seq: msg.Seq}}, nil

	case domain.MuteUser:
		if err := requireModerator(c.Identity); err != nil {
			return nil, err
		}
		mute, err := a.room.Mute(c.TargetID, c.Duration, c.Identity, now)
		if err != nil {
			return nil, err
		}
		return []event.DomainEvent{event.UserMuted{Room: a.room.ID, UserID: mute.UserID, MutedUntil: mute.MutedUntil}}, nil

	case domain.UnmuteUser:
		if err := requireModerator(c.Identity); err != nil {
			return nil, err
		}
		if !a.room.Unmute(c.TargetID) {
			return nil, nil
		}
		return []event.DomainEvent{event.UserUnmuted{Room: a.room.ID, UserID: c.TargetID}}, nil

	case domain.CreatePoll:
		if err := requireModerator(c.Identity); err != nil {
			return nil, err
		}
		if !a.room.Settings.AllowPolls {
			return nil, fmt.Errorf("%w: polls are disabled in this room", errors.ErrPermission)
		}
		poll, err := a.room.Polls().Create(a.room.ID, c.Question, c.Options, now)
		if err != nil {
			return nil, err
		}
		return []event.DomainEvent{event.NewPoll{Room: a.room.ID, Poll: poll}}, nil

	case domain.VotePoll:
		poll, err := a.room.Polls().Vote(c.PollID, c.Identity.UserID, c.OptionID)
		if err != nil {
			return nil, err
		}
		return []event.DomainEvent{event.PollUpdated{Room: a.room.ID, Poll: poll}}, nil

	case domain.ClosePoll:
		if err := requireModerator(c.Identity); err != nil {
			return nil, err
		}
		poll, err := a.room.Polls().Close(c.PollID, now)
		if err != nil {
			return nil, err
		}
		return []event.DomainEvent{event.PollClosed{Room: a.room.ID, Poll: poll}}, nil

	case domain.UpdateSettings:
		if err := requireModerator(c.Identity); err != nil {
			return nil, err
		}
		a.room.Settings = c.Settings
		return []event.DomainEvent{event.RoomSettingsUpdated{Room: a.room.ID, Settings: c.Settings}}, nil

	case domain.ToggleRoom:
		if err := requireModerator(c.Identity); err != nil {
			return nil, err
		}
		a.room.IsActive = c.IsActive
		evts := []event.DomainEvent{event.RoomToggled{Room: a.room.ID, IsActive: c.IsActive}}
		if !c.IsActive {
			evts = append(evts, event.RoomDisabled{Room: a.room.ID})
		}
		return evts, nil

	case domain.ToggleLecture:
		if err := requireModerator(c.Identity); err != nil {
			return nil, err
		}
		a.room.IsLectureLive = c.IsLive
		return []event.DomainEvent{event.LectureLiveStatus{Room: a.room.ID, IsLive: c.IsLive}}, nil

	case domain.SetChatVisibility:
		if err := requireModerator(c.Identity); err != nil {
			return nil, err
		}
		if c.Visible && !a.room.IsLectureLive {
			return nil, fmt.Errorf("%w: chat cannot be activated before the lecture is live", errors.ErrConflict)
		}
		a.room.IsChatVisible = c.Visible
		return []event.DomainEvent{event.ChatVisibilityUpdate{Room: a.room.ID, IsVisible: c.Visible}}, nil
	}

	return nil, fmt.Errorf("%w: unknown command %T", errors.ErrValidation, cmd)
}

func (a *RoomActor) admit(c domain.Admit, now time.Time) []event.DomainEvent {
	a.conns[c.ConnID] = c.Identity.UserID
	a.userConns[c.Identity.UserID]++
	// A rejoin within the grace period cancels the pending offline
	// transition; the user never flaps.
	delete(a.pendingOffline, c.Identity.UserID)
	a.idleSince = time.Time{}

	participant, joined := a.room.Admit(c.Identity, now)

	evts := []event.DomainEvent{a.snapshot(c.ConnID)}
	if joined {
		evts = append(evts, event.UserJoined{Room: a.room.ID, Participant: participant})
	}
	return evts
}

func (a *RoomActor) remove(c domain.Remove, now time.Time) {
	userID, ok := a.conns[c.ConnID]
	if !ok {
		return
	}
	delete(a.conns, c.ConnID)
	a.userConns[userID]--
	if a.userConns[userID] <= 0 {
		delete(a.userConns, userID)
		a.pendingOffline[userID] = now.Add(a.presenceGrace)
	}
}

func (a *RoomActor) sendMessage(c domain.SendMessage, now time.Time) ([]event.DomainEvent, error) {
	switch c.Type {
	case domain.MessageText:
	case domain.MessageAnnouncement:
		if err := requireModerator(c.Identity); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: clients may only send TEXT or ANNOUNCEMENT messages", errors.ErrValidation)
	}

	if err := a.room.CanPost(c.Identity, c.Content, now); err != nil {
		return nil, err
	}

	content, hits := a.moderator.Censor(c.Content)
	a.monitor.AddCensoredHits(hits)
	if hits > 0 {
		a.log.Debug("Censored message content", "user_id", c.Identity.UserID, "hits", hits)
	}

	id := c.MessageID
	if id == uuid.Nil {
		id = uuid.New()
	}
	createdAt := c.At
	if createdAt.IsZero() {
		createdAt = now
	}

	msg, ok := a.room.Append(domain.Message{
		ID:        id,
		Room:      a.room.ID,
		UserID:    c.Identity.UserID,
		UserName:  c.Identity.UserName,
		UserImage: c.Identity.UserImage,
		Role:      c.Identity.Role,
		Type:      c.Type,
		Content:   content,
		Lang:      moderation.DetectLang(content),
		CreatedAt: createdAt,
	}, now)
	if !ok {
		// Duplicate ID inside the dedup window: a retried send. Ack
		// success, append nothing, broadcast nothing.
		a.log.Debug("Duplicate message suppressed", "message_id", id)
		return nil, nil
	}

	a.monitor.IncrMessages()
	return []event.DomainEvent{event.NewMessage{Room: a.room.ID, Message: msg}}, nil
}

// housekeep sweeps grace deadlines and mutes, and reports whether the room
// has been empty long enough to retire.
func (a *RoomActor) housekeep(ctx context.Context) bool {
	now := a.clock()

	var evts []event.DomainEvent
	for userID, deadline := range a.pendingOffline {
		if now.After(deadline) {
			delete(a.pendingOffline, userID)
			if a.room.SetOffline(userID, now) {
				evts = append(evts, event.UserLeft{Room: a.room.ID, UserID: userID})
			}
		}
	}
	a.room.SweepMutes(now)
	a.emit(ctx, evts...)

	if len(a.conns) == 0 && a.room.OnlineCount() == 0 {
		if a.idleSince.IsZero() {
			a.idleSince = now
			return false
		}
		return now.Sub(a.idleSince) >= a.idleRetirement
	}
	a.idleSince = time.Time{}
	return false
}

// snapshot builds the room-data view for one connection. Clients treat it
// as the sole source of truth and replace any predicted state with it.
func (a *RoomActor) snapshot(connID string) event.RoomData {
	return event.RoomData{
		Room:          a.room.ID,
		ConnID:        connID,
		IsActive:      a.room.IsActive,
		IsLectureLive: a.room.IsLectureLive,
		IsChatVisible: a.room.IsChatVisible,
		Settings:      a.room.Settings,
		Messages:      a.room.RecentMessages(),
		Participants:  a.room.Participants(),
		Polls:         a.room.Polls().All(),
		Mutes:         a.room.Mutes(),
		Pinned:        a.room.Pinned(),
	}
}

func requireModerator(id domain.Identity) error {
	if !id.Role.IsModerator() {
		return errors.ErrPermission
	}
	return nil
}
