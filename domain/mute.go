package domain

import "time"

// MutedUser is a time-boxed suspension of a user's ability to author
// messages. Expiry is observed lazily: no background timer, a mute is
// simply ignored once now is past MutedUntil.
type MutedUser struct {
	UserID     string
	MutedUntil time.Time
	MutedBy    string
}

func (m MutedUser) Expired(now time.Time) bool {
	return now.After(m.MutedUntil)
}
