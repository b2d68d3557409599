// Package boltledger records which WiseNews documents were already
// delivered, one bucket per keyword.
package boltledger

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Ledger is a bbolt file mapping document ids to the time they were marked.
type Ledger struct {
	db  *bolt.DB
	ttl time.Duration
	now func() time.Time
}

// Option tweaks a Ledger.
type Option func(*Ledger)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// Open opens or creates the ledger file. Entries older than ttl count as
// unseen; a ttl of zero keeps entries forever.
func Open(path string, ttl time.Duration, opts ...Option) (*Ledger, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("ledger path is empty")
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open ledger %s: %w", path, err)
	}
	l := &Ledger{db: db, ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Seen reports whether documentID was marked for keyword within the ttl.
func (l *Ledger) Seen(keyword, documentID string) (bool, error) {
	var seen bool
	err := l.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName(keyword))
		if b == nil {
			return nil
		}
		v := b.Get([]byte(documentID))
		if len(v) != 8 {
			return nil
		}
		marked := time.Unix(0, int64(binary.BigEndian.Uint64(v)))
		seen = l.ttl <= 0 || l.now().Sub(marked) < l.ttl
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("ledger lookup %s/%s: %w", keyword, documentID, err)
	}
	return seen, nil
}

// Mark records documentIDs as delivered for keyword now.
func (l *Ledger) Mark(keyword string, documentIDs ...string) error {
	if len(documentIDs) == 0 {
		return nil
	}
	stamp := make([]byte, 8)
	binary.BigEndian.PutUint64(stamp, uint64(l.now().UnixNano()))

	err := l.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketName(keyword))
		if err != nil {
			return err
		}
		for _, id := range documentIDs {
			if id == "" {
				continue
			}
			if err := b.Put([]byte(id), stamp); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("ledger mark %s: %w", keyword, err)
	}
	return nil
}

// Prune deletes entries older than the ttl and returns how many were removed.
func (l *Ledger) Prune() (int, error) {
	if l.ttl <= 0 {
		return 0, nil
	}
	cutoff := l.now().Add(-l.ttl).UnixNano()

	removed := 0
	err := l.db.Update(func(tx *bolt.Tx) error {
		return tx.ForEach(func(_ []byte, b *bolt.Bucket) error {
			var stale [][]byte
			if err := b.ForEach(func(k, v []byte) error {
				if len(v) != 8 || int64(binary.BigEndian.Uint64(v)) < cutoff {
					stale = append(stale, append([]byte(nil), k...))
				}
				return nil
			}); err != nil {
				return err
			}
			for _, k := range stale {
				if err := b.Delete(k); err != nil {
					return err
				}
			}
			removed += len(stale)
			return nil
		})
	})
	if err != nil {
		return removed, fmt.Errorf("ledger prune: %w", err)
	}
	return removed, nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

func bucketName(keyword string) []byte {
	return []byte("seen:" + strings.ToLower(strings.TrimSpace(keyword)))
}
