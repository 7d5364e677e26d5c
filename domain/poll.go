package domain

import (
	"fmt"
	"strings"
	"time"

	"lecture-chat/errors"

	"github.com/google/uuid"
)

type PollStatus string

const (
	PollActive PollStatus = "ACTIVE"
	PollEnded  PollStatus = "ENDED"
)

type PollOption struct {
	ID    string
	Text  string
	Votes int
}

type Poll struct {
	ID        uuid.UUID
	Room      RoomID
	Question  string
	Options   []PollOption
	Status    PollStatus
	CreatedAt time.Time
	EndedAt   *time.Time
}

// clone returns a deep copy safe to hand to broadcasts and snapshots.
func (p *Poll) clone() Poll {
	out := *p
	out.Options = append([]PollOption(nil), p.Options...)
	if p.EndedAt != nil {
		endedAt := *p.EndedAt
		out.EndedAt = &endedAt
	}
	return out
}

// PollStore holds poll definitions, the per-user vote ledger and aggregated
// tallies for one room. It is owned by the room actor and never accessed
// concurrently; the ledger itself is internal and never exposed.
type PollStore struct {
	polls  map[uuid.UUID]*Poll
	order  []uuid.UUID
	ledger map[uuid.UUID]map[string]string // pollID -> userID -> optionID
}

func NewPollStore() *PollStore {
	return &PollStore{
		polls:  make(map[uuid.UUID]*Poll),
		ledger: make(map[uuid.UUID]map[string]string),
	}
}

// Create validates and registers a new ACTIVE poll.
func (s *PollStore) Create(room RoomID, question string, options []string, now time.Time) (Poll, error) {
	if len(strings.TrimSpace(question)) < 3 {
		return Poll{}, fmt.Errorf("%w: question must be at least 3 characters", errors.ErrValidation)
	}

	var cleaned []PollOption
	for _, opt := range options {
		text := strings.TrimSpace(opt)
		if text == "" {
			continue
		}
		cleaned = append(cleaned, PollOption{
			ID:   fmt.Sprintf("opt-%d", len(cleaned)+1),
			Text: text,
		})
	}
	if len(cleaned) < 2 {
		return Poll{}, fmt.Errorf("%w: a poll needs at least 2 non-empty options", errors.ErrValidation)
	}

	poll := &Poll{
		ID:        uuid.New(),
		Room:      room,
		Question:  strings.TrimSpace(question),
		Options:   cleaned,
		Status:    PollActive,
		CreatedAt: now,
	}
	s.polls[poll.ID] = poll
	s.order = append(s.order, poll.ID)
	s.ledger[poll.ID] = make(map[string]string)
	return poll.clone(), nil
}

// Vote records exactly one vote per (pollID, userID). The ledger check and
// the tally increment happen as one step inside the actor's serialized
// command processing, which is what rules out the double-vote race.
func (s *PollStore) Vote(pollID uuid.UUID, userID, optionID string) (Poll, error) {
	poll, ok := s.polls[pollID]
	if !ok {
		return Poll{}, fmt.Errorf("%w: poll %s", errors.ErrNotFound, pollID)
	}
	if poll.Status == PollEnded {
		return Poll{}, fmt.Errorf("%w: poll has ended", errors.ErrConflict)
	}
	if _, voted := s.ledger[pollID][userID]; voted {
		return Poll{}, fmt.Errorf("%w: user already voted on this poll", errors.ErrConflict)
	}

	for i := range poll.Options {
		if poll.Options[i].ID == optionID {
			s.ledger[pollID][userID] = optionID
			poll.Options[i].Votes++
			return poll.clone(), nil
		}
	}
	return Poll{}, fmt.Errorf("%w: option %s", errors.ErrNotFound, optionID)
}

// Close is a one-way transition; tallies are frozen afterwards.
func (s *PollStore) Close(pollID uuid.UUID, now time.Time) (Poll, error) {
	poll, ok := s.polls[pollID]
	if !ok {
		return Poll{}, fmt.Errorf("%w: poll %s", errors.ErrNotFound, pollID)
	}
	if poll.Status == PollEnded {
		return Poll{}, fmt.Errorf("%w: poll already ended", errors.ErrConflict)
	}
	poll.Status = PollEnded
	endedAt := now
	poll.EndedAt = &endedAt
	return poll.clone(), nil
}

// HasVoted reports whether the ledger holds an entry for the pair.
func (s *PollStore) HasVoted(pollID uuid.UUID, userID string) bool {
	_, ok := s.ledger[pollID][userID]
	return ok
}

// All returns copies of every poll in creation order.
func (s *PollStore) All() []Poll {
	out := make([]Poll, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.polls[id].clone())
	}
	return out
}
