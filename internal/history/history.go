// File: internal/history/history.go

package history

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.etcd.io/bbolt"
	"go.uber.org/zap"
)

const (
	historyBucket = "history"
	defaultLimit  = 1000
)

// Entry is one line typed at the prompt.
type Entry struct {
	ID        uint64    `json:"id"`
	SessionID string    `json:"session_id"`
	Line      string    `json:"line"`
	Time      time.Time `json:"time"`
}

// Store persists input lines across runs using BoltDB.
type Store struct {
	db        *bbolt.DB
	limit     int
	sessionID string
	logger    *zap.Logger
	now       func() time.Time
}

// StoreConfig holds configuration for Store initialization
type StoreConfig struct {
	DBPath    string
	Limit     int // entries kept; <0 keeps everything
	SessionID string
	Logger    *zap.Logger
}

// Open opens (or creates) the history database.
func Open(cfg StoreConfig) (*Store, error) {
	limit := cfg.Limit
	if limit == 0 {
		limit = defaultLimit
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	// another pwrepl instance may hold the lock; do not hang the prompt waiting for it
	db, err := bbolt.Open(cfg.DBPath, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(historyBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	logger.Debug("History store opened",
		zap.String("db_path", cfg.DBPath),
		zap.Int("limit", limit))

	return &Store{
		db:        db,
		limit:     limit,
		sessionID: cfg.SessionID,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// Add appends a line. Blank lines are ignored.
func (s *Store) Add(line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(historyBucket))
		id, err := b.NextSequence()
		if err != nil {
			return err
		}
		data, err := json.Marshal(Entry{ID: id, SessionID: s.sessionID, Line: line, Time: s.now()})
		if err != nil {
			return fmt.Errorf("failed to encode entry: %w", err)
		}
		if err := b.Put(itob(id), data); err != nil {
			return err
		}
		return s.prune(b)
	})
}

// prune deletes the oldest entries beyond the limit.
func (s *Store) prune(b *bbolt.Bucket) error {
	if s.limit < 0 {
		return nil
	}
	excess := count(b) - s.limit
	if excess <= 0 {
		return nil
	}

	var stale [][]byte
	c := b.Cursor()
	for k, _ := c.First(); k != nil && len(stale) < excess; k, _ = c.Next() {
		stale = append(stale, append([]byte(nil), k...))
	}
	for _, k := range stale {
		if err := b.Delete(k); err != nil {
			return err
		}
	}
	s.logger.Debug("History pruned", zap.Int("removed", len(stale)))
	return nil
}

// List returns the n most recent entries, oldest first. n <= 0 returns everything.
func (s *Store) List(n int) ([]Entry, error) {
	var entries []Entry
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(historyBucket)).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if n > 0 && len(entries) >= n {
				break
			}
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				s.logger.Debug("Skipping unreadable history entry", zap.Uint64("id", btoi(k)), zap.Error(err))
				continue
			}
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// Clear removes every entry and returns how many there were.
func (s *Store) Clear() (int, error) {
	var n int
	err := s.db.Update(func(tx *bbolt.Tx) error {
		n = count(tx.Bucket([]byte(historyBucket)))
		if err := tx.DeleteBucket([]byte(historyBucket)); err != nil {
			return err
		}
		_, err := tx.CreateBucket([]byte(historyBucket))
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to clear history: %w", err)
	}
	s.logger.Info("History cleared", zap.Int("entries", n))
	return n, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// count walks the bucket; Stats does not see writes pending in the current transaction.
func count(b *bbolt.Bucket) int {
	n := 0
	c := b.Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		n++
	}
	return n
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func btoi(b []byte) uint64 {
	if len(b) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}
