//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"lecture-chat/domain"
	"lecture-chat/domain/event"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself.
// Can be silly, focused.
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker
// initialization or lifecycle events, avoiding the need for manual naming
// in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// IRoomRegistry is what the gateway layer sees of the room world:
// attach/detach a connection's sink and hand commands to the owning actor.
type IRoomRegistry interface {
	Dispatch(ctx context.Context, cmd domain.Command) error
	Attach(roomID domain.RoomID, lectureID, connID string, sink EventSink)
	Detach(roomID domain.RoomID, connID string)
	GetSinksForRoom(roomID domain.RoomID) []EventSink
	SinkFor(roomID domain.RoomID, connID string) (EventSink, bool)
}

// EnrollmentChecker answers whether a user may access a lecture's chat.
// The real implementation lives in the platform; the engine only consumes it.
type EnrollmentChecker interface {
	IsEnrolled(ctx context.Context, userID, lectureID string) (bool, error)
}
