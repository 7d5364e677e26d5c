package runtime

import (
	"context"
	goerrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"lecture-chat/domain"
	"lecture-chat/domain/event"
	apperrors "lecture-chat/errors"
	"lecture-chat/moderation"
	"lecture-chat/observability"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

const ackTimeout = 2 * time.Second

var (
	student = domain.Identity{UserID: "u-student", UserName: "Alice", Role: domain.RoleStudent}
	creator = domain.Identity{UserID: "u-creator", UserName: "Bob", Role: domain.RoleCreator}
)

func testActorConfig() ActorConfig {
	return ActorConfig{
		BufferSize:     16,
		SnapshotWindow: 100,
		DedupWindow:    512,
		AckTimeout:     ackTimeout,
		PresenceGrace:  50 * time.Millisecond,
		IdleRetirement: 10 * time.Minute,
	}
}

func newTestActor(t *testing.T, cfg ActorConfig, retire func(domain.RoomID)) (*RoomActor, chan event.DomainEvent) {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	monitor := observability.NewMonitor(log)
	mod, err := moderation.NewModerator([]string{"badger"}, '*')
	require.NoError(t, err)

	if retire == nil {
		retire = func(domain.RoomID) {}
	}
	events := make(chan event.DomainEvent, 64)
	actor := NewRoomActor("room-1", "lecture-1", log, events, monitor, &mod, cfg, retire)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = actor.Run(ctx) }()
	t.Cleanup(cancel)
	return actor, events
}

func submit(t *testing.T, actor *RoomActor, cmd domain.Command) error {
	t.Helper()
	return actor.Submit(context.Background(), cmd, ackTimeout)
}

func waitEvent(t *testing.T, events <-chan event.DomainEvent) event.DomainEvent {
	t.Helper()
	select {
	case evt := <-events:
		return evt
	case <-time.After(3 * time.Second):
		t.Fatal("expected an event, got none")
		return nil
	}
}

func expectNoEvent(t *testing.T, events <-chan event.DomainEvent, wait time.Duration) {
	t.Helper()
	select {
	case evt := <-events:
		t.Fatalf("expected no event, got %s", evt.Name())
	case <-time.After(wait):
	}
}

func makeChatVisible(t *testing.T, actor *RoomActor, events <-chan event.DomainEvent) {
	t.Helper()
	require.NoError(t, submit(t, actor, domain.ToggleLecture{Room: "room-1", Identity: creator, IsLive: true}))
	require.NoError(t, submit(t, actor, domain.SetChatVisibility{Room: "room-1", Identity: creator, Visible: true}))
	waitEvent(t, events) // lecture-live-status
	waitEvent(t, events) // chat-visibility-update
}

func TestRoomActor_JoinEmitsTargetedSnapshot(t *testing.T) {
	req := require.New(t)
	actor, events := newTestActor(t, testActorConfig(), nil)

	// When a first connection joins
	req.NoError(submit(t, actor, domain.Admit{Room: "room-1", ConnID: "c-1", Identity: student}))

	// Then the snapshot targets that connection and a join is broadcast
	snapshot, ok := waitEvent(t, events).(event.RoomData)
	req.True(ok)
	req.Equal("c-1", snapshot.ConnID)
	req.True(snapshot.IsActive)
	req.Empty(snapshot.Messages)

	joined, ok := waitEvent(t, events).(event.UserJoined)
	req.True(ok)
	req.Equal(student.UserID, joined.Participant.UserID)

	// When the same user opens a second connection
	req.NoError(submit(t, actor, domain.Admit{Room: "room-1", ConnID: "c-2", Identity: student}))

	// Then only a snapshot goes out, the presence did not flap
	snapshot, ok = waitEvent(t, events).(event.RoomData)
	req.True(ok)
	req.Equal("c-2", snapshot.ConnID)
	expectNoEvent(t, events, 300*time.Millisecond)
}

func TestRoomActor_SendMessageFlow(t *testing.T) {
	req := require.New(t)
	actor, events := newTestActor(t, testActorConfig(), nil)

	req.NoError(submit(t, actor, domain.Admit{Room: "room-1", ConnID: "c-mod", Identity: creator}))
	waitEvent(t, events)
	waitEvent(t, events)
	makeChatVisible(t, actor, events)

	req.NoError(submit(t, actor, domain.Admit{Room: "room-1", ConnID: "c-stu", Identity: student}))
	waitEvent(t, events)
	waitEvent(t, events)

	// When the student sends a message containing a blacklisted word
	msgID := uuid.New()
	req.NoError(submit(t, actor, domain.SendMessage{
		Room: "room-1", MessageID: msgID, Identity: student,
		Content: "hello badger", Type: domain.MessageText,
	}))

	// Then the broadcast carries the censored content and seq 1
	broadcast, ok := waitEvent(t, events).(event.NewMessage)
	req.True(ok)
	req.Equal(uint64(1), broadcast.Message.Seq)
	req.Equal("hello ******", broadcast.Message.Content)
	req.Equal(msgID, broadcast.Message.ID)

	// A retried send with the same ID acks success without a new broadcast
	req.NoError(submit(t, actor, domain.SendMessage{
		Room: "room-1", MessageID: msgID, Identity: student,
		Content: "hello badger", Type: domain.MessageText,
	}))
	expectNoEvent(t, events, 300*time.Millisecond)

	// The next fresh message continues the sequence
	req.NoError(submit(t, actor, domain.SendMessage{
		Room: "room-1", MessageID: uuid.New(), Identity: student,
		Content: "second", Type: domain.MessageText,
	}))
	broadcast, ok = waitEvent(t, events).(event.NewMessage)
	req.True(ok)
	req.Equal(uint64(2), broadcast.Message.Seq)
}

func TestRoomActor_MessageTypeRules(t *testing.T) {
	req := require.New(t)
	actor, events := newTestActor(t, testActorConfig(), nil)

	// Students cannot author announcements
	err := submit(t, actor, domain.SendMessage{
		Room: "room-1", Identity: student, Content: "exam moved", Type: domain.MessageAnnouncement,
	})
	req.True(goerrors.Is(err, apperrors.ErrPermission))

	// SYSTEM is server-authored only
	err = submit(t, actor, domain.SendMessage{
		Room: "room-1", Identity: creator, Content: "nope", Type: domain.MessageSystem,
	})
	req.True(goerrors.Is(err, apperrors.ErrValidation))

	// Moderators may announce even while the chat is hidden
	req.NoError(submit(t, actor, domain.SendMessage{
		Room: "room-1", Identity: creator, Content: "exam moved", Type: domain.MessageAnnouncement,
	}))
	broadcast, ok := waitEvent(t, events).(event.NewMessage)
	req.True(ok)
	req.Equal(domain.MessageAnnouncement, broadcast.Message.Type)
}

func TestRoomActor_ModeratorGuards(t *testing.T) {
	req := require.New(t)
	actor, _ := newTestActor(t, testActorConfig(), nil)

	commands := []domain.Command{
		domain.PinMessage{Room: "room-1", Identity: student, MessageID: uuid.New()},
		domain.UnpinMessage{Room: "room-1", Identity: student},
		domain.MuteUser{Room: "room-1", Identity: student, TargetID: "u-x", Duration: time.Minute},
		domain.UnmuteUser{Room: "room-1", Identity: student, TargetID: "u-x"},
		domain.CreatePoll{Room: "room-1", Identity: student, Question: "Ready?", Options: []string{"Yes", "No"}},
		domain.ClosePoll{Room: "room-1", Identity: student, PollID: uuid.New()},
		domain.UpdateSettings{Room: "room-1", Identity: student, Settings: domain.DefaultSettings()},
		domain.ToggleRoom{Room: "room-1", Identity: student, IsActive: false},
		domain.ToggleLecture{Room: "room-1", Identity: student, IsLive: true},
		domain.SetChatVisibility{Room: "room-1", Identity: student, Visible: true},
	}

	for _, cmd := range commands {
		err := submit(t, actor, cmd)
		req.True(goerrors.Is(err, apperrors.ErrPermission), "command %T should require a moderator", cmd)
	}
}

func TestRoomActor_ChatVisibilityRequiresLiveLecture(t *testing.T) {
	req := require.New(t)
	actor, events := newTestActor(t, testActorConfig(), nil)

	// Activating the chat before the lecture went live is rejected
	err := submit(t, actor, domain.SetChatVisibility{Room: "room-1", Identity: creator, Visible: true})
	req.True(goerrors.Is(err, apperrors.ErrConflict))

	req.NoError(submit(t, actor, domain.ToggleLecture{Room: "room-1", Identity: creator, IsLive: true}))
	live, ok := waitEvent(t, events).(event.LectureLiveStatus)
	req.True(ok)
	req.True(live.IsLive)

	req.NoError(submit(t, actor, domain.SetChatVisibility{Room: "room-1", Identity: creator, Visible: true}))
	visibility, ok := waitEvent(t, events).(event.ChatVisibilityUpdate)
	req.True(ok)
	req.True(visibility.IsVisible)

	// Hiding the chat again needs no live lecture
	req.NoError(submit(t, actor, domain.SetChatVisibility{Room: "room-1", Identity: creator, Visible: false}))
}

func TestRoomActor_DisabledRoomRejectsPosts(t *testing.T) {
	req := require.New(t)
	actor, events := newTestActor(t, testActorConfig(), nil)
	makeChatVisible(t, actor, events)

	req.NoError(submit(t, actor, domain.ToggleRoom{Room: "room-1", Identity: creator, IsActive: false}))

	toggled, ok := waitEvent(t, events).(event.RoomToggled)
	req.True(ok)
	req.False(toggled.IsActive)
	_, ok = waitEvent(t, events).(event.RoomDisabled)
	req.True(ok)

	err := submit(t, actor, domain.SendMessage{
		Room: "room-1", Identity: student, Content: "anyone?", Type: domain.MessageText,
	})
	req.True(goerrors.Is(err, apperrors.ErrConflict))
}

func TestRoomActor_MuteFlow(t *testing.T) {
	req := require.New(t)
	actor, events := newTestActor(t, testActorConfig(), nil)
	makeChatVisible(t, actor, events)

	req.NoError(submit(t, actor, domain.MuteUser{
		Room: "room-1", Identity: creator, TargetID: student.UserID, Duration: time.Hour,
	}))
	muted, ok := waitEvent(t, events).(event.UserMuted)
	req.True(ok)
	req.Equal(student.UserID, muted.UserID)

	err := submit(t, actor, domain.SendMessage{
		Room: "room-1", Identity: student, Content: "let me talk", Type: domain.MessageText,
	})
	req.True(goerrors.Is(err, apperrors.ErrMuted))

	req.NoError(submit(t, actor, domain.UnmuteUser{Room: "room-1", Identity: creator, TargetID: student.UserID}))
	unmuted, ok := waitEvent(t, events).(event.UserUnmuted)
	req.True(ok)
	req.Equal(student.UserID, unmuted.UserID)

	req.NoError(submit(t, actor, domain.SendMessage{
		Room: "room-1", Identity: student, Content: "thanks", Type: domain.MessageText,
	}))

	// Unmuting an unmuted user acks fine and broadcasts nothing
	req.NoError(submit(t, actor, domain.UnmuteUser{Room: "room-1", Identity: creator, TargetID: student.UserID}))
	waitEvent(t, events) // the thanks message
	expectNoEvent(t, events, 300*time.Millisecond)
}

func TestRoomActor_VoteExactlyOnceUnderConcurrency(t *testing.T) {
	req := require.New(t)
	actor, events := newTestActor(t, testActorConfig(), nil)

	req.NoError(submit(t, actor, domain.CreatePoll{
		Room: "room-1", Identity: creator, Question: "Ready for the quiz?", Options: []string{"Yes", "No"},
	}))
	created, ok := waitEvent(t, events).(event.NewPoll)
	req.True(ok)
	pollID := created.Poll.ID

	// When one user races 8 concurrent votes on the same poll
	var wg sync.WaitGroup
	results := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- submit(t, actor, domain.VotePoll{
				Room: "room-1", Identity: student, PollID: pollID, OptionID: "opt-1",
			})
		}()
	}
	wg.Wait()
	close(results)

	// Then exactly one vote landed
	accepted, conflicts := 0, 0
	for err := range results {
		switch {
		case err == nil:
			accepted++
		case goerrors.Is(err, apperrors.ErrConflict):
			conflicts++
		default:
			req.FailNow("unexpected error", "%v", err)
		}
	}
	req.Equal(1, accepted)
	req.Equal(7, conflicts)

	// And other users may still vote once each
	for i := 0; i < 5; i++ {
		voter := domain.Identity{UserID: fmt.Sprintf("u-%d", i), Role: domain.RoleStudent}
		req.NoError(submit(t, actor, domain.VotePoll{
			Room: "room-1", Identity: voter, PollID: pollID, OptionID: "opt-2",
		}))
	}

	var last event.PollUpdated
	for i := 0; i < 6; i++ {
		updated, isUpdate := waitEvent(t, events).(event.PollUpdated)
		req.True(isUpdate)
		last = updated
	}
	total := 0
	for _, opt := range last.Poll.Options {
		total += opt.Votes
	}
	req.Equal(6, total)
}

func TestRoomActor_PresenceGraceCollapse(t *testing.T) {
	req := require.New(t)
	actor, events := newTestActor(t, testActorConfig(), nil)

	req.NoError(submit(t, actor, domain.Admit{Room: "room-1", ConnID: "c-1", Identity: student}))
	req.NoError(submit(t, actor, domain.Admit{Room: "room-1", ConnID: "c-2", Identity: student}))
	waitEvent(t, events) // snapshot c-1
	waitEvent(t, events) // user-joined
	waitEvent(t, events) // snapshot c-2

	// Closing one of two connections never broadcasts a leave
	req.NoError(submit(t, actor, domain.Remove{Room: "room-1", ConnID: "c-1", UserID: student.UserID}))
	expectNoEvent(t, events, 1500*time.Millisecond)

	// Closing the last connection does, once the grace period elapsed
	req.NoError(submit(t, actor, domain.Remove{Room: "room-1", ConnID: "c-2", UserID: student.UserID}))
	left, ok := waitEvent(t, events).(event.UserLeft)
	req.True(ok)
	req.Equal(student.UserID, left.UserID)
}

func TestRoomActor_RejoinWithinGraceCancelsLeave(t *testing.T) {
	req := require.New(t)
	cfg := testActorConfig()
	cfg.PresenceGrace = 2 * time.Second
	actor, events := newTestActor(t, cfg, nil)

	req.NoError(submit(t, actor, domain.Admit{Room: "room-1", ConnID: "c-1", Identity: student}))
	waitEvent(t, events)
	waitEvent(t, events)

	// When the connection drops and the user reconnects within the grace
	req.NoError(submit(t, actor, domain.Remove{Room: "room-1", ConnID: "c-1", UserID: student.UserID}))
	req.NoError(submit(t, actor, domain.Admit{Room: "room-1", ConnID: "c-2", Identity: student}))

	// Then the reconnect only yields a snapshot: no leave, no rejoin
	snapshot, ok := waitEvent(t, events).(event.RoomData)
	req.True(ok)
	req.Equal("c-2", snapshot.ConnID)
	expectNoEvent(t, events, 2500*time.Millisecond)
}

func TestRoomActor_IdleRetirement(t *testing.T) {
	req := require.New(t)
	cfg := testActorConfig()
	cfg.IdleRetirement = 1 * time.Millisecond

	retired := make(chan domain.RoomID, 1)
	actor, _ := newTestActor(t, cfg, func(id domain.RoomID) { retired <- id })

	// An actor with no connections retires itself
	select {
	case id := <-retired:
		req.Equal(domain.RoomID("room-1"), id)
	case <-time.After(5 * time.Second):
		req.Fail("actor did not retire")
	}

	// Commands submitted after retirement fail fast
	req.Eventually(func() bool {
		err := submit(t, actor, domain.Admit{Room: "room-1", ConnID: "c-1", Identity: student})
		return goerrors.Is(err, apperrors.ErrRoomClosed)
	}, 2*time.Second, 50*time.Millisecond)
}

func TestRoomActor_SubmitAfterShutdown(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	monitor := observability.NewMonitor(log)
	mod, err := moderation.NewModerator([]string{"badger"}, '*')
	req.NoError(err)

	events := make(chan event.DomainEvent, 8)
	actor := NewRoomActor("room-1", "lecture-1", log, events, monitor, &mod, testActorConfig(), func(domain.RoomID) {})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = actor.Run(ctx)
		close(done)
	}()

	cancel()
	<-done

	err = actor.Submit(context.Background(), domain.Admit{Room: "room-1", ConnID: "c-1", Identity: student}, ackTimeout)
	req.True(goerrors.Is(err, apperrors.ErrRoomClosed))
}
