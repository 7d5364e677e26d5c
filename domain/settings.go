package domain

import "time"

// Settings are the per-room knobs mutable only by moderators.
// They are enforced on every inbound command, never cached client-side.
type Settings struct {
	IsModerated      bool
	AllowPolls       bool
	SlowMode         bool
	SlowModeInterval time.Duration
	AllowLinks       bool
	AllowImages      bool
	AllowReplies     bool
	MaxMessageLength int
}

func DefaultSettings() Settings {
	return Settings{
		IsModerated:      true,
		AllowPolls:       true,
		SlowMode:         false,
		SlowModeInterval: 10 * time.Second,
		AllowLinks:       true,
		AllowImages:      true,
		AllowReplies:     true,
		MaxMessageLength: 500,
	}
}
