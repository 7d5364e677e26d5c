package main

import (
	"fmt"
	"time"
)

type Config struct {
	Host      string `env:"HOST,default=localhost"`
	Port      int    `env:"PORT,default=8080"`
	DebugPort int    `env:"DEBUG_PORT,default=8081"`
	LogLevel  string `env:"LOG_LEVEL,required=true"`

	BufferSize           int           `env:"BUFFER_SIZE,default=256"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=64"`
	SinkTimeout          time.Duration `env:"SINK_TIMEOUT,default=2s"`
	AckTimeout           time.Duration `env:"ACK_TIMEOUT,default=5s"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,default=200ms"`

	SnapshotWindow int           `env:"SNAPSHOT_WINDOW,default=100"`
	DedupWindow    int           `env:"DEDUP_WINDOW,default=512"`
	PresenceGrace  time.Duration `env:"PRESENCE_GRACE,default=30s"`
	IdleRetirement time.Duration `env:"IDLE_RETIREMENT,default=10m"`

	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	LimitMessages  *int   `env:"LIMIT_MESSAGES"`

	ModerationCharReplacement string `env:"MODERATION_CHARACTER_REPLACEMENT,default=*"`

	AuthSecret        string        `env:"AUTH_SECRET,required=true"`
	EnrollmentURL     string        `env:"ENROLLMENT_URL"`
	EnrollmentTimeout time.Duration `env:"ENROLLMENT_TIMEOUT,default=3s"`
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"MODERATION_CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
