// Package history persists finished dictations in an embedded Badger store.
// Keys are time-ordered so recent entries are one reverse iteration away.
package history

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// Entry is one stored dictation.
type Entry struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Language  string    `json:"language,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store is a dictation history backed by Badger.
type Store struct {
	db         *badger.DB
	maxEntries int
}

// Options configures a Store.
type Options struct {
	Dir string
	// MaxEntries caps the history size; older entries are pruned on save.
	// Zero means unlimited.
	MaxEntries int
}

// Open opens or creates the history database.
func Open(opts Options) (*Store, error) {
	badgerOpts := badger.DefaultOptions(opts.Dir).
		WithLogger(nil)
	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	return &Store{db: db, maxEntries: opts.MaxEntries}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// key layout: "t:" + zero-padded unix nanos + ":" + uuid. Lexicographic
// order over these keys is creation order.
func entryKey(at time.Time, id string) []byte {
	return []byte(fmt.Sprintf("t:%020d:%s", at.UnixNano(), id))
}

// Save stores a dictation and prunes past the size cap.
func (s *Store) Save(text, language string) (Entry, error) {
	entry := Entry{
		ID:        uuid.NewString(),
		Text:      text,
		Language:  language,
		CreatedAt: time.Now(),
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return Entry{}, fmt.Errorf("marshal entry: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(entryKey(entry.CreatedAt, entry.ID), data)
	})
	if err != nil {
		return Entry{}, fmt.Errorf("save entry: %w", err)
	}

	if s.maxEntries > 0 {
		if err := s.prune(); err != nil {
			slog.Warn("history prune failed", "err", err)
		}
	}
	return entry, nil
}

// Recent returns up to n entries, newest first.
func (s *Store) Recent(n int) ([]Entry, error) {
	var entries []Entry
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte("t:")
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration needs a seek key past the whole prefix range.
		for it.Seek([]byte("t;")); it.Valid() && len(entries) < n; it.Next() {
			var e Entry
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			})
			if err != nil {
				return err
			}
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	return entries, nil
}

// Count returns the number of stored entries.
func (s *Store) Count() (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte("t:")
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

// prune deletes the oldest entries beyond maxEntries.
func (s *Store) prune() error {
	return s.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte("t:")
		it := txn.NewIterator(opts)

		var keys [][]byte
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		it.Close()

		excess := len(keys) - s.maxEntries
		for i := 0; i < excess; i++ {
			if err := txn.Delete(keys[i]); err != nil {
				return err
			}
		}
		return nil
	})
}
