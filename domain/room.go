package domain

import (
	"fmt"
	"time"

	"lecture-chat/errors"

	"github.com/google/uuid"
)

// Room is the aggregate owned by one room actor: message log, poll store,
// presence table, mutes, pinned-message pointer and settings. Nothing here
// is safe for concurrent use; the owning actor serializes all access.
type Room struct {
	ID            RoomID
	LectureID     string
	IsActive      bool
	IsLectureLive bool
	IsChatVisible bool
	Settings      Settings
	CreatedAt     time.Time

	log           *MessageLog
	polls         *PollStore
	participants  map[string]*Participant
	mutes         map[string]MutedUser
	lastMessageAt map[string]time.Time
	pinned        *Message
}

func NewRoom(id RoomID, lectureID string, windowSize, dedupSize int, now time.Time) *Room {
	return &Room{
		ID:            id,
		LectureID:     lectureID,
		IsActive:      true,
		Settings:      DefaultSettings(),
		CreatedAt:     now,
		log:           NewMessageLog(windowSize, dedupSize),
		polls:         NewPollStore(),
		participants:  make(map[string]*Participant),
		mutes:         make(map[string]MutedUser),
		lastMessageAt: make(map[string]time.Time),
	}
}

// Admit upserts the presence entry for an identity and reports whether the
// user transitioned to online. A second connection from an already-online
// user is absorbed silently, which keeps join broadcasts idempotent.
func (r *Room) Admit(id Identity, now time.Time) (Participant, bool) {
	p, ok := r.participants[id.UserID]
	if !ok {
		p = &Participant{Identity: id}
		r.participants[id.UserID] = p
	}
	joined := !p.IsOnline
	p.Identity = id
	p.IsOnline = true
	p.LastActive = now
	return *p, joined
}

// SetOffline downgrades a user's presence after the grace period elapsed.
// Reports whether the user was online, i.e. whether a leave event is due.
func (r *Room) SetOffline(userID string, now time.Time) bool {
	p, ok := r.participants[userID]
	if !ok || !p.IsOnline {
		return false
	}
	p.IsOnline = false
	p.LastActive = now
	return true
}

func (r *Room) OnlineCount() int {
	count := 0
	for _, p := range r.participants {
		if p.IsOnline {
			count++
		}
	}
	return count
}

func (r *Room) Participants() []Participant {
	out := make([]Participant, 0, len(r.participants))
	for _, p := range r.participants {
		out = append(out, *p)
	}
	return out
}

func (r *Room) Participant(userID string) (Participant, bool) {
	p, ok := r.participants[userID]
	if !ok {
		return Participant{}, false
	}
	return *p, true
}

// CanPost applies every send-message precondition in policy order:
// room state, mute, length, slow mode.
func (r *Room) CanPost(id Identity, content string, now time.Time) error {
	if !r.IsActive {
		return fmt.Errorf("%w: chat is disabled", errors.ErrConflict)
	}
	if !r.IsChatVisible && !id.Role.IsModerator() {
		return fmt.Errorf("%w: chat is not visible yet", errors.ErrPermission)
	}
	if r.IsMuted(id.UserID, now) {
		return errors.ErrMuted
	}
	if max := r.Settings.MaxMessageLength; max > 0 && len([]rune(content)) > max {
		return fmt.Errorf("%w: message exceeds %d characters", errors.ErrValidation, max)
	}
	if r.Settings.SlowMode && !id.Role.IsModerator() {
		if last, ok := r.lastMessageAt[id.UserID]; ok && now.Sub(last) < r.Settings.SlowModeInterval {
			return errors.ErrRateLimited
		}
	}
	return nil
}

// Append stamps the sender's slow-mode clock and appends to the log.
// ok=false means the ID was a duplicate and nothing changed.
func (r *Room) Append(msg Message, now time.Time) (Message, bool) {
	stored, ok := r.log.Append(msg)
	if !ok {
		return Message{}, false
	}
	r.lastMessageAt[msg.UserID] = now
	if p, present := r.participants[msg.UserID]; present {
		p.LastActive = now
	}
	return stored, true
}

// Pin sets the room's single pinned message, atomically unpinning the
// previous one. There is never a window with two pins.
func (r *Room) Pin(messageID uuid.UUID) (Message, error) {
	msg, ok := r.log.Get(messageID)
	if !ok || msg.IsDeleted {
		return Message{}, fmt.Errorf("%w: message %s", errors.ErrNotFound, messageID)
	}
	if r.pinned != nil {
		r.pinned.IsPinned = false
	}
	msg.IsPinned = true
	r.pinned = msg
	return *msg, nil
}

// Unpin clears the pointer. Unpinning when nothing is pinned is a benign
// no-op, reported via ok=false so no broadcast is emitted.
func (r *Room) Unpin() (uuid.UUID, bool) {
	if r.pinned == nil {
		return uuid.Nil, false
	}
	id := r.pinned.ID
	r.pinned.IsPinned = false
	r.pinned = nil
	return id, true
}

func (r *Room) Pinned() *Message {
	if r.pinned == nil {
		return nil
	}
	copied := *r.pinned
	return &copied
}

// Delete marks a message deleted; its seq slot is preserved so ordering is
// never renumbered. Allowed for moderators and the author.
func (r *Room) Delete(messageID uuid.UUID, requester Identity) (Message, error) {
	msg, ok := r.log.Get(messageID)
	if !ok {
		return Message{}, fmt.Errorf("%w: message %s", errors.ErrNotFound, messageID)
	}
	if !requester.Role.IsModerator() && msg.UserID != requester.UserID {
		return Message{}, fmt.Errorf("%w: only moderators or the author may delete", errors.ErrPermission)
	}
	msg.IsDeleted = true
	msg.Content = ""
	if r.pinned != nil && r.pinned.ID == messageID {
		r.pinned.IsPinned = false
		r.pinned = nil
	}
	return *msg, nil
}

// Mute suspends a user until now+duration. Moderators cannot be muted.
func (r *Room) Mute(targetID string, duration time.Duration, by Identity, now time.Time) (MutedUser, error) {
	if duration <= 0 {
		return MutedUser{}, fmt.Errorf("%w: mute duration must be positive", errors.ErrValidation)
	}
	if target, ok := r.participants[targetID]; ok && target.Role.IsModerator() {
		return MutedUser{}, fmt.Errorf("%w: moderators cannot be muted", errors.ErrPermission)
	}
	mute := MutedUser{
		UserID:     targetID,
		MutedUntil: now.Add(duration),
		MutedBy:    by.UserID,
	}
	r.mutes[targetID] = mute
	return mute, nil
}

// Unmute lifts a mute; ok=false when the user was not muted (benign no-op).
func (r *Room) Unmute(targetID string) bool {
	if _, ok := r.mutes[targetID]; !ok {
		return false
	}
	delete(r.mutes, targetID)
	return true
}

// IsMuted observes mute state lazily and drops expired entries on the way.
func (r *Room) IsMuted(userID string, now time.Time) bool {
	mute, ok := r.mutes[userID]
	if !ok {
		return false
	}
	if mute.Expired(now) {
		delete(r.mutes, userID)
		return false
	}
	return true
}

// SweepMutes removes every expired mute. Called from the actor's
// housekeeping tick so state observed by snapshots stays clean.
func (r *Room) SweepMutes(now time.Time) {
	for userID, mute := range r.mutes {
		if mute.Expired(now) {
			delete(r.mutes, userID)
		}
	}
}

func (r *Room) Mutes() []MutedUser {
	out := make([]MutedUser, 0, len(r.mutes))
	for _, m := range r.mutes {
		out = append(out, m)
	}
	return out
}

func (r *Room) Polls() *PollStore {
	return r.polls
}

func (r *Room) RecentMessages() []Message {
	return r.log.Recent()
}

func (r *Room) Seq() uint64 {
	return r.log.Seq()
}
