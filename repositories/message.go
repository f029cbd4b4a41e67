package repositories

import (
	"chat-broker/domain"
	"chat-broker/errors"
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

const (
	keyPrefix   = "msg"
	tsDigits    = 19
	newestKeyTs = "9999999999999999999"
)

// latestKeyTime is the last instant a key timestamp can encode.
var latestKeyTime = time.Unix(0, math.MaxInt64)

// channelLog serializes appends of one channel.
// last is the CreatedAt of the newest persisted message of the channel.
type channelLog struct {
	mu   sync.Mutex
	last time.Time
}

type MessageRepository struct {
	db   *badger.DB
	log  *slog.Logger
	now  func() time.Time
	logs map[domain.Channel]*channelLog // built once, read-only afterwards
}

// NewMessageRepository recovers the newest timestamp of every channel so that
// CreatedAt keeps increasing across restarts.
func NewMessageRepository(db *badger.DB, log *slog.Logger) (*MessageRepository, error) {
	m := &MessageRepository{
		db:   db,
		log:  log,
		now:  time.Now,
		logs: make(map[domain.Channel]*channelLog),
	}
	for _, channel := range domain.Channels() {
		last, err := m.newest(channel)
		if err != nil {
			return nil, fmt.Errorf("%w: recovering %s: %v", errors.ErrStoreUnavailable, channel, err)
		}
		m.logs[channel] = &channelLog{last: last}
	}
	return m, nil
}

// Append persists a message in BadgerDB.
// The key is formatted as "msg:{channel}:{timestamp_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding (lexicographical order).
//  2. Keep keys unique even if the clock goes backwards, the timestamp is
//     bumped to last+1ns under the channel lock.
//
// committed runs after the transaction commits and before the channel lock is
// released, so callers observe commits of one channel in CreatedAt order.
func (m *MessageRepository) Append(ctx context.Context, draft domain.Draft,
	committed func(domain.Message)) (domain.Message, error) {
	if err := draft.Validate(); err != nil {
		return domain.Message{}, err
	}
	if err := ctx.Err(); err != nil {
		return domain.Message{}, err
	}

	cl := m.logs[draft.Channel]
	cl.mu.Lock()
	defer cl.mu.Unlock()

	at := time.Unix(0, m.now().UnixNano()).UTC()
	if !at.After(cl.last) {
		at = cl.last.Add(time.Nanosecond)
	}
	id, err := uuid.NewV7()
	if err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}

	message := domain.Message{
		ID:        id,
		AuthorID:  draft.AuthorID,
		Channel:   draft.Channel,
		Content:   draft.Content,
		Code:      copyCode(draft.Code),
		CreatedAt: at,
	}
	err = m.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(message), encodeMessage(message))
	})
	if err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}
	cl.last = at
	m.log.Debug("Message appended", "channel", message.Channel, "id", message.ID)

	if committed != nil {
		committed(message)
	}
	return message, nil
}

// Replicate stores a message appended by another broker node, keeping its id
// and CreatedAt. It returns false when the record is already present.
func (m *MessageRepository) Replicate(ctx context.Context, message domain.Message) (bool, error) {
	if !message.Channel.IsValid() {
		return false, fmt.Errorf("%w: %q", errors.ErrUnknownChannel, message.Channel)
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	cl := m.logs[message.Channel]
	cl.mu.Lock()
	defer cl.mu.Unlock()

	stored := false
	key := messageKey(message)
	err := m.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == nil {
			return nil
		}
		if err != badger.ErrKeyNotFound {
			return err
		}
		stored = true
		return txn.Set(key, encodeMessage(message))
	})
	if err != nil {
		return false, fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}
	if message.CreatedAt.After(cl.last) {
		cl.last = message.CreatedAt
	}
	return stored, nil
}

// ReadPage retrieves one page of a channel using a reverse prefix scan.
// Thanks to the padded timestamp in the key, messages are naturally sorted by time.
// The limit most recent messages strictly older than before are collected, then
// returned oldest first.
func (m *MessageRepository) ReadPage(ctx context.Context, channel domain.Channel,
	before *time.Time, limit int) ([]domain.Message, error) {
	if !channel.IsValid() {
		return nil, fmt.Errorf("%w: %q", errors.ErrUnknownChannel, channel)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	limit = domain.ClampLimit(limit)

	prefix := channelPrefix(channel)
	var seekKey []byte
	switch {
	case before == nil || before.After(latestKeyTime):
		// Let's go the newest position msg:dsa:9999999999999999999
		// Then, we go back and find few messages
		seekKey = append([]byte(prefix), newestKeyTs...)
	default:
		// UnixNano is undefined outside 1678..2262, nothing is stored before the epoch
		if !before.After(time.Unix(0, 0)) {
			return []domain.Message{}, nil
		}
		// Keys of that exact nanosecond carry a ":uuid" suffix and sort after the
		// seek key, so the reverse scan starts strictly before the cursor.
		seekKey = append([]byte(prefix), padTimestamp(*before)...)
	}

	messages := make([]domain.Message, 0, limit)
	err := m.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		options.Prefix = []byte(prefix)
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(seekKey); it.ValidForPrefix([]byte(prefix)); it.Next() {
			if len(messages) == limit {
				break
			}
			err := it.Item().Value(func(value []byte) error {
				message, err := decodeMessage(value)
				if err != nil {
					return err
				}
				messages = append(messages, message)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}

	// Collected newest first, the page is served oldest first
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// newest reads the timestamp part of the last key of a channel.
func (m *MessageRepository) newest(channel domain.Channel) (time.Time, error) {
	var last time.Time
	prefix := channelPrefix(channel)
	err := m.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		options.PrefetchValues = false
		options.Prefix = []byte(prefix)
		it := txn.NewIterator(options)
		defer it.Close()

		it.Seek(append([]byte(prefix), newestKeyTs...))
		if !it.ValidForPrefix([]byte(prefix)) {
			return nil
		}
		key := it.Item().Key()
		if len(key) < len(prefix)+tsDigits {
			return fmt.Errorf("malformed key %q", key)
		}
		ns, err := strconv.ParseInt(string(key[len(prefix):len(prefix)+tsDigits]), 10, 64)
		if err != nil {
			return err
		}
		last = time.Unix(0, ns).UTC()
		return nil
	})
	return last, err
}

func channelPrefix(channel domain.Channel) string {
	return fmt.Sprintf("%s:%s:", keyPrefix, channel)
}

func padTimestamp(at time.Time) string {
	return fmt.Sprintf("%0*d", tsDigits, at.UnixNano())
}

func messageKey(message domain.Message) []byte {
	return []byte(fmt.Sprintf("%s%s:%s",
		channelPrefix(message.Channel),
		padTimestamp(message.CreatedAt),
		message.ID,
	))
}

func copyCode(code *domain.CodeSnippet) *domain.CodeSnippet {
	if code == nil {
		return nil
	}
	c := *code
	return &c
}
