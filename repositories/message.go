//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"lecture-chat/domain"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type IMessageRepository interface {
	StoreMessage(message DiskMessage) error
	GetMessages(room domain.RoomID, cursor *string) ([]DiskMessage, *string, error)
}

// DiskMessage is the persisted shape of a chat message. The engine never
// reads it on the hot path; retention exists for offline inspection and for
// a durable store collaborator to pick up later.
type DiskMessage struct {
	ID       uuid.UUID          `json:"id"`
	Room     domain.RoomID      `json:"room"`
	Seq      uint64             `json:"seq"`
	UserID   string             `json:"user_id"`
	UserName string             `json:"user_name"`
	Role     domain.Role        `json:"role"`
	Type     domain.MessageType `json:"type"`
	Content  string             `json:"content"`
	Lang     string             `json:"lang,omitempty"`
	At       time.Time          `json:"at"`
}

type MessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int) MessageRepository {
	return MessageRepository{db: db, log: log, limitMessages: limitMessages}
}

// StoreMessage persists a message in BadgerDB.
// The key is "msg:{room}:{seq_padded}" with 19-digit zero padding so a
// lexicographical prefix scan walks messages in sequence order.
func (m MessageRepository) StoreMessage(message DiskMessage) error {
	key := fmt.Sprintf("msg:%s:%019d", message.Room, message.Seq)
	bytes, err := json.Marshal(message)
	if err != nil {
		return err
	}
	return m.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), bytes)
	})
}

// GetMessages retrieves the newest messages for a room using a reverse
// prefix scan. The returned cursor is the key remainder of the oldest entry
// read; passing it back resumes the scan further into history.
func (m MessageRepository) GetMessages(room domain.RoomID, cursor *string) ([]DiskMessage, *string, error) {
	var diskMessages []DiskMessage
	var lastKey string
	err := m.db.View(func(txn *badger.Txn) error {
		prefixStr := fmt.Sprintf("msg:%s:", room)
		prefix := []byte(prefixStr)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch cursor {
		case nil:
			// Seek past the highest possible seq, then walk backwards
			seekKey = append(prefix, []byte("9999999999999999999")...)
		default:
			seekKey = append(prefix, []byte(*cursor)...)
		}

		it.Seek(seekKey)

		if cursor != nil && it.ValidForPrefix(prefix) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if m.limitMessages != nil && len(diskMessages) == *m.limitMessages {
				m.log.Debug(fmt.Sprintf("Maximum of %d messages reached", *m.limitMessages))
				break
			}
			item := it.Item()
			lastKey = string(item.Key()[len(prefixStr):])
			err := item.Value(func(value []byte) error {
				var msg DiskMessage
				if err := json.Unmarshal(value, &msg); err != nil {
					return err
				}
				diskMessages = append(diskMessages, msg)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return diskMessages, &lastKey, nil
}

// FromMessage maps a room log entry to its persisted shape.
func FromMessage(msg domain.Message) DiskMessage {
	return DiskMessage{
		ID:       msg.ID,
		Room:     msg.Room,
		Seq:      msg.Seq,
		UserID:   msg.UserID,
		UserName: msg.UserName,
		Role:     msg.Role,
		Type:     msg.Type,
		Content:  msg.Content,
		Lang:     msg.Lang,
		At:       msg.CreatedAt,
	}
}
