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
	"lecture-chat/mocks"
	"lecture-chat/moderation"
	"lecture-chat/observability"
	"lecture-chat/runtime/workers"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	monitor := observability.NewMonitor(log)
	mod, err := moderation.NewModerator([]string{"badger"}, '*')
	require.NoError(t, err)

	sup := workers.NewSupervisor(log, 10*time.Millisecond)
	events := make(chan event.DomainEvent, 256)
	registry := NewRegistry(log, sup, events, monitor, &mod, testActorConfig())

	ctx, cancel := context.WithCancel(context.Background())
	registry.Start(ctx)
	t.Cleanup(cancel)

	// Drain broadcasts so actors never block on a full channel
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-events:
			}
		}
	}()
	return registry
}

func TestRegistry_DispatchUnknownRoom(t *testing.T) {
	req := require.New(t)
	registry := newTestRegistry(t)

	err := registry.Dispatch(context.Background(), domain.Admit{Room: "nowhere", ConnID: "c-1", Identity: student})
	req.True(goerrors.Is(err, apperrors.ErrNotFound))
}

func TestRegistry_AttachCreatesRoomLazily(t *testing.T) {
	req := require.New(t)
	registry := newTestRegistry(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	sink := mocks.NewMockEventSink(ctrl)

	req.Zero(registry.RoomsLive())

	// When the first connection attaches
	registry.Attach("room-1", "lecture-1", "c-1", sink)

	// Then the actor exists and commands are routed to it
	req.Equal(1, registry.RoomsLive())
	req.Equal(1, registry.ParticipantsOnline())
	req.NoError(registry.Dispatch(context.Background(), domain.Admit{Room: "room-1", ConnID: "c-1", Identity: student}))

	resolved, ok := registry.SinkFor("room-1", "c-1")
	req.True(ok)
	req.Same(sink, resolved)
	req.Len(registry.GetSinksForRoom("room-1"), 1)
}

func TestRegistry_DetachCleansUp(t *testing.T) {
	req := require.New(t)
	registry := newTestRegistry(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	sink := mocks.NewMockEventSink(ctrl)

	registry.Attach("room-1", "lecture-1", "c-1", sink)
	registry.Detach("room-1", "c-1")

	_, ok := registry.SinkFor("room-1", "c-1")
	req.False(ok)
	req.Empty(registry.GetSinksForRoom("room-1"))
	req.Zero(registry.ParticipantsOnline())

	// Detaching an unknown connection is harmless
	registry.Detach("room-1", "c-ghost")
	registry.Detach("nowhere", "c-1")
}

func TestRegistry_ConcurrentAttachSingleActor(t *testing.T) {
	req := require.New(t)
	registry := newTestRegistry(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// When ten connections race to create the same room
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			registry.Attach("room-1", "lecture-1", fmt.Sprintf("c-%d", n), mocks.NewMockEventSink(ctrl))
		}(i)
	}
	wg.Wait()

	// Then exactly one actor serves them all
	req.Equal(1, registry.RoomsLive())
	req.Equal(10, registry.ParticipantsOnline())
}

func TestRegistry_RetireForgetsRoom(t *testing.T) {
	req := require.New(t)
	registry := newTestRegistry(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	sink := mocks.NewMockEventSink(ctrl)

	registry.Attach("room-1", "lecture-1", "c-1", sink)
	req.Equal(1, registry.RoomsLive())

	registry.Retire("room-1")

	req.Zero(registry.RoomsLive())
	err := registry.Dispatch(context.Background(), domain.Admit{Room: "room-1", ConnID: "c-1", Identity: student})
	req.True(goerrors.Is(err, apperrors.ErrNotFound))

	// A retired roomId is recreated fresh on the next join
	registry.Attach("room-1", "lecture-1", "c-2", sink)
	req.Equal(1, registry.RoomsLive())
	req.NoError(registry.Dispatch(context.Background(), domain.Admit{Room: "room-1", ConnID: "c-2", Identity: student}))
}
