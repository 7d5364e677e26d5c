package domain

import (
	goerrors "errors"
	"testing"
	"time"

	apperrors "lecture-chat/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var (
	student = Identity{UserID: "u-student", UserName: "Alice", Role: RoleStudent}
	creator = Identity{UserID: "u-creator", UserName: "Bob", Role: RoleCreator}
)

func newVisibleRoom(now time.Time) *Room {
	room := NewRoom("room-1", "lecture-1", 100, 512, now)
	room.IsLectureLive = true
	room.IsChatVisible = true
	return room
}

func appendText(t *testing.T, room *Room, id Identity, content string, now time.Time) Message {
	t.Helper()
	msg, ok := room.Append(Message{
		ID:        uuid.New(),
		Room:      room.ID,
		UserID:    id.UserID,
		UserName:  id.UserName,
		Role:      id.Role,
		Type:      MessageText,
		Content:   content,
		CreatedAt: now,
	}, now)
	require.True(t, ok)
	return msg
}

func TestRoom_PinSwap(t *testing.T) {
	req := require.New(t)
	now := time.Now().UTC()
	room := newVisibleRoom(now)

	// Given two appended messages
	first := appendText(t, room, student, "first", now)
	second := appendText(t, room, student, "second", now)

	// When pinning the first and then the second
	pinned, err := room.Pin(first.ID)
	req.NoError(err)
	req.True(pinned.IsPinned)

	pinned, err = room.Pin(second.ID)
	req.NoError(err)

	// Then only the second is pinned, the first was swapped out
	req.Equal(second.ID, pinned.ID)
	req.Equal(second.ID, room.Pinned().ID)
	for _, msg := range room.RecentMessages() {
		if msg.ID == first.ID {
			req.False(msg.IsPinned)
		}
	}
}

func TestRoom_UnpinIsIdempotent(t *testing.T) {
	req := require.New(t)
	now := time.Now().UTC()
	room := newVisibleRoom(now)
	msg := appendText(t, room, student, "hello", now)

	_, err := room.Pin(msg.ID)
	req.NoError(err)

	id, ok := room.Unpin()
	req.True(ok)
	req.Equal(msg.ID, id)

	// Unpinning again is a benign no-op, no broadcast due
	_, ok = room.Unpin()
	req.False(ok)
	req.Nil(room.Pinned())
}

func TestRoom_PinUnknownOrDeleted(t *testing.T) {
	req := require.New(t)
	now := time.Now().UTC()
	room := newVisibleRoom(now)

	_, err := room.Pin(uuid.New())
	req.True(goerrors.Is(err, apperrors.ErrNotFound))

	msg := appendText(t, room, student, "soon gone", now)
	_, err = room.Delete(msg.ID, creator)
	req.NoError(err)

	_, err = room.Pin(msg.ID)
	req.True(goerrors.Is(err, apperrors.ErrNotFound))
}

func TestRoom_DeletePreservesSeqAndUnpins(t *testing.T) {
	req := require.New(t)
	now := time.Now().UTC()
	room := newVisibleRoom(now)

	first := appendText(t, room, student, "one", now)
	second := appendText(t, room, student, "two", now)
	third := appendText(t, room, student, "three", now)
	req.Equal(uint64(1), first.Seq)
	req.Equal(uint64(3), third.Seq)

	_, err := room.Pin(second.ID)
	req.NoError(err)

	// When the author deletes the pinned message
	deleted, err := room.Delete(second.ID, student)
	req.NoError(err)

	// Then the slot keeps its seq, content is cleared, pin is gone
	req.Equal(uint64(2), deleted.Seq)
	req.True(deleted.IsDeleted)
	req.Empty(deleted.Content)
	req.Nil(room.Pinned())
	req.Equal(uint64(3), room.Seq())
}

func TestRoom_DeletePermissions(t *testing.T) {
	req := require.New(t)
	now := time.Now().UTC()
	room := newVisibleRoom(now)
	msg := appendText(t, room, student, "mine", now)

	other := Identity{UserID: "u-other", Role: RoleStudent}
	_, err := room.Delete(msg.ID, other)
	req.True(goerrors.Is(err, apperrors.ErrPermission))

	// Moderator may delete anyone's message
	_, err = room.Delete(msg.ID, creator)
	req.NoError(err)
}

func TestRoom_CanPost_Gates(t *testing.T) {
	now := time.Now().UTC()

	tests := []struct {
		name    string
		setup   func(*Room)
		id      Identity
		content string
		wantErr error
	}{
		{
			name:    "Disabled room rejects everyone",
			setup:   func(r *Room) { r.IsActive = false },
			id:      creator,
			content: "hi",
			wantErr: apperrors.ErrConflict,
		},
		{
			name:    "Hidden chat rejects students",
			setup:   func(r *Room) { r.IsChatVisible = false },
			id:      student,
			content: "hi",
			wantErr: apperrors.ErrPermission,
		},
		{
			name:    "Hidden chat still open to moderators",
			setup:   func(r *Room) { r.IsChatVisible = false },
			id:      creator,
			content: "hi",
			wantErr: nil,
		},
		{
			name:    "Message over the length limit",
			setup:   func(r *Room) { r.Settings.MaxMessageLength = 5 },
			id:      student,
			content: "this is way too long",
			wantErr: apperrors.ErrValidation,
		},
		{
			name:    "Length limit counts runes not bytes",
			setup:   func(r *Room) { r.Settings.MaxMessageLength = 5 },
			id:      student,
			content: "héllo",
			wantErr: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			room := newVisibleRoom(now)
			tt.setup(room)

			err := room.CanPost(tt.id, tt.content, now)
			if tt.wantErr != nil {
				req.True(goerrors.Is(err, tt.wantErr), "got %v", err)
			} else {
				req.NoError(err)
			}
		})
	}
}

func TestRoom_SlowMode(t *testing.T) {
	req := require.New(t)
	now := time.Now().UTC()
	room := newVisibleRoom(now)
	room.Settings.SlowMode = true
	room.Settings.SlowModeInterval = 10 * time.Second

	// Given a first accepted message
	req.NoError(room.CanPost(student, "first", now))
	appendText(t, room, student, "first", now)

	// Then a second one inside the interval is rate limited
	err := room.CanPost(student, "second", now.Add(3*time.Second))
	req.True(goerrors.Is(err, apperrors.ErrRateLimited))

	// And accepted again once the interval elapsed
	req.NoError(room.CanPost(student, "second", now.Add(11*time.Second)))

	// Moderators are exempt
	appendText(t, room, creator, "mod", now)
	req.NoError(room.CanPost(creator, "mod again", now.Add(1*time.Second)))
}

func TestRoom_MuteLifecycle(t *testing.T) {
	req := require.New(t)
	now := time.Now().UTC()
	room := newVisibleRoom(now)
	room.Admit(student, now)
	room.Admit(creator, now)

	// Given a one minute mute
	mute, err := room.Mute(student.UserID, 1*time.Minute, creator, now)
	req.NoError(err)
	req.Equal(creator.UserID, mute.MutedBy)

	err = room.CanPost(student, "hello", now.Add(30*time.Second))
	req.True(goerrors.Is(err, apperrors.ErrMuted))

	// When the mute expires, posting works again without any unmute
	req.NoError(room.CanPost(student, "hello", now.Add(2*time.Minute)))
	req.False(room.IsMuted(student.UserID, now.Add(2*time.Minute)))
}

func TestRoom_MuteValidation(t *testing.T) {
	req := require.New(t)
	now := time.Now().UTC()
	room := newVisibleRoom(now)
	room.Admit(creator, now)

	_, err := room.Mute(student.UserID, 0, creator, now)
	req.True(goerrors.Is(err, apperrors.ErrValidation))

	_, err = room.Mute(creator.UserID, time.Minute, creator, now)
	req.True(goerrors.Is(err, apperrors.ErrPermission))

	// Unmuting a user who is not muted is a benign no-op
	req.False(room.Unmute(student.UserID))
}

func TestRoom_SweepMutes(t *testing.T) {
	req := require.New(t)
	now := time.Now().UTC()
	room := newVisibleRoom(now)

	_, err := room.Mute("u-1", 1*time.Minute, creator, now)
	req.NoError(err)
	_, err = room.Mute("u-2", 1*time.Hour, creator, now)
	req.NoError(err)

	room.SweepMutes(now.Add(10 * time.Minute))

	mutes := room.Mutes()
	req.Len(mutes, 1)
	req.Equal("u-2", mutes[0].UserID)
}

func TestRoom_AdmitCollapsesPresence(t *testing.T) {
	req := require.New(t)
	now := time.Now().UTC()
	room := newVisibleRoom(now)

	// First admission transitions the user online
	_, joined := room.Admit(student, now)
	req.True(joined)
	req.Equal(1, room.OnlineCount())

	// A second connection from the same user is absorbed silently
	_, joined = room.Admit(student, now.Add(time.Second))
	req.False(joined)
	req.Equal(1, room.OnlineCount())

	req.True(room.SetOffline(student.UserID, now.Add(time.Minute)))
	req.Equal(0, room.OnlineCount())

	// Going offline twice reports nothing to broadcast
	req.False(room.SetOffline(student.UserID, now.Add(time.Minute)))

	p, ok := room.Participant(student.UserID)
	req.True(ok)
	req.False(p.IsOnline)
}
