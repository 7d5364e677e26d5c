package errors

import (
	"errors"
	"fmt"
)

var (
	ErrAuth        = fmt.Errorf("unauthenticated connection")
	ErrNotEnrolled = fmt.Errorf("user is not enrolled in this lecture")
	ErrPermission  = fmt.Errorf("moderator role required")
	ErrValidation  = fmt.Errorf("invalid payload")
	ErrRateLimited = fmt.Errorf("slow mode interval not elapsed")
	ErrMuted       = fmt.Errorf("user is muted")
	ErrConflict    = fmt.Errorf("conflicting state")
	ErrNotFound    = fmt.Errorf("not found")
	ErrAckTimeout  = fmt.Errorf("command was not acknowledged in time")
	ErrRoomClosed  = fmt.Errorf("room has been retired")
	ErrWorkerPanic = fmt.Errorf("worker panic")
)

// MapToCode converts an internal error into the stable wire code carried by
// command acks. Unknown errors are reported as INTERNAL so internals never
// leak to clients.
func MapToCode(err error) string {
	switch {
	case errors.Is(err, ErrAuth):
		return "AUTH_ERROR"
	case errors.Is(err, ErrNotEnrolled):
		return "NOT_ENROLLED"
	case errors.Is(err, ErrPermission):
		return "PERMISSION_DENIED"
	case errors.Is(err, ErrValidation):
		return "VALIDATION_ERROR"
	case errors.Is(err, ErrRateLimited):
		return "RATE_LIMITED"
	case errors.Is(err, ErrMuted):
		return "MUTED"
	case errors.Is(err, ErrConflict):
		return "CONFLICT"
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrAckTimeout):
		return "ACK_TIMEOUT"
	case errors.Is(err, ErrRoomClosed):
		return "ROOM_CLOSED"
	default:
		return "INTERNAL"
	}
}
