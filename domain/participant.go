// Package domain contains core concepts of the lecture chat engine.
// No runtime, network, or UI logic should be added here.
package domain

import "time"

type RoomID string

type Role string

const (
	RoleStudent Role = "STUDENT"
	RoleCreator Role = "CREATOR"
	RoleAdmin   Role = "ADMIN"
)

// IsModerator reports whether the role may issue moderation commands.
func (r Role) IsModerator() bool {
	return r == RoleCreator || r == RoleAdmin
}

// Identity is the authenticated identity attached to a connection,
// resolved by the platform's identity provider before the engine sees it.
type Identity struct {
	UserID    string
	UserName  string
	UserImage string
	Role      Role
}

// Participant is the presence entry of one user in one room.
// Multiple connections from the same user collapse into a single entry.
type Participant struct {
	Identity
	IsOnline   bool
	LastActive time.Time
}
