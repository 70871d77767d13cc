// Package history persists completed poll snapshots in a Pebble key/value
// store, providing a bounded, time-ordered record of what the monitor
// observed (and synthesized) over time.
package history

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/pebble"
	jsoniter "github.com/json-iterator/go"

	"lucamon/status"
)

const (
	tickPrefix   = "t|"
	metaCountKey = "meta|count"

	defaultCacheSizeBytes = int64(8 << 20) // snapshots are small; 8MB is plenty
)

var (
	errStoreClosed  = errors.New("history: store is closed")
	errInvalidCount = errors.New("history: invalid count metadata")
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Store manages the Pebble database that holds the snapshot timeline. The
// poll goroutine is the only writer; reads may come from any goroutine.
type Store struct {
	db    *pebble.DB
	cache *pebble.Cache // owned cache for the DB; unref'd on Close

	mu         sync.Mutex
	closed     bool
	lastDigest uint64
	haveDigest bool
	count      atomic.Int64
}

// Open opens or creates the history database at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("history: database path is empty")
	}
	if info, err := os.Stat(path); err == nil {
		if !info.IsDir() {
			return nil, fmt.Errorf("history: %s exists and is not a directory", path)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("history: stat path: %w", err)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("history: ensure directory: %w", err)
	}

	cache := pebble.NewCache(defaultCacheSizeBytes)
	db, err := pebble.Open(path, &pebble.Options{Cache: cache})
	if err != nil {
		cache.Unref()
		return nil, fmt.Errorf("history: open: %w", err)
	}

	store := &Store{db: db, cache: cache}
	count, err := loadCount(db)
	if err != nil {
		_ = db.Close()
		cache.Unref()
		return nil, err
	}
	store.count.Store(count)

	if last, ok, err := store.newest(); err != nil {
		_ = db.Close()
		cache.Unref()
		return nil, err
	} else if ok {
		store.lastDigest = last.Digest()
		store.haveDigest = true
	}
	return store, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	err := s.db.Close()
	if s.cache != nil {
		s.cache.Unref()
		s.cache = nil
	}
	return err
}

// Append stores one completed poll snapshot. Consecutive snapshots with an
// identical digest are skipped; the bool reports whether a record was
// written.
func (s *Store) Append(snap status.Snapshot) (bool, error) {
	if s == nil || s.db == nil {
		return false, errors.New("history: store is not initialized")
	}
	digest := snap.Digest()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, errStoreClosed
	}
	if s.haveDigest && s.lastDigest == digest {
		return false, nil
	}

	value, err := json.Marshal(snap)
	if err != nil {
		return false, fmt.Errorf("history: encode snapshot: %w", err)
	}
	at := snap.FetchedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}

	batch := s.db.NewBatch()
	defer batch.Close()
	if err := batch.Set(tickKeyBytes(at.UnixNano()), value, nil); err != nil {
		return false, fmt.Errorf("history: batch set: %w", err)
	}
	count := s.count.Load() + 1
	if err := batch.Set([]byte(metaCountKey), encodeCount(count), nil); err != nil {
		return false, fmt.Errorf("history: batch set count: %w", err)
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return false, fmt.Errorf("history: batch commit: %w", err)
	}
	s.count.Store(count)
	s.lastDigest = digest
	s.haveDigest = true
	return true, nil
}

// Recent returns up to n snapshots, newest first.
func (s *Store) Recent(n int) ([]status.Snapshot, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("history: store is not initialized")
	}
	if n <= 0 {
		return nil, nil
	}
	iter, err := s.db.NewIter(iterOptionsForPrefix(tickPrefix))
	if err != nil {
		return nil, fmt.Errorf("history: recent iterator: %w", err)
	}
	defer iter.Close()

	var list []status.Snapshot
	for ok := iter.Last(); ok && len(list) < n; ok = iter.Prev() {
		var snap status.Snapshot
		if err := json.Unmarshal(iter.Value(), &snap); err != nil {
			return nil, fmt.Errorf("history: decode record: %w", err)
		}
		list = append(list, snap)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("history: iterate recent: %w", err)
	}
	return list, nil
}

// PurgeOlderThan deletes records with tick times before the cutoff and
// returns how many were removed.
func (s *Store) PurgeOlderThan(cutoff time.Time) (int64, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("history: store is not initialized")
	}
	if cutoff.IsZero() {
		return 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, errStoreClosed
	}

	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(tickPrefix),
		UpperBound: tickKeyBytes(cutoff.UTC().UnixNano()),
	})
	if err != nil {
		return 0, fmt.Errorf("history: purge iterator: %w", err)
	}
	defer iter.Close()

	batch := s.db.NewBatch()
	defer batch.Close()

	removed := int64(0)
	for iter.First(); iter.Valid(); iter.Next() {
		if err := batch.Delete(iter.Key(), nil); err != nil {
			return 0, fmt.Errorf("history: purge delete: %w", err)
		}
		removed++
	}
	if err := iter.Error(); err != nil {
		return 0, fmt.Errorf("history: purge iterate: %w", err)
	}
	if removed == 0 {
		return 0, nil
	}
	count := s.count.Load() - removed
	if count < 0 {
		count = 0
	}
	if err := batch.Set([]byte(metaCountKey), encodeCount(count), nil); err != nil {
		return 0, fmt.Errorf("history: purge set count: %w", err)
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return 0, fmt.Errorf("history: purge commit: %w", err)
	}
	s.count.Store(count)
	return removed, nil
}

// Count returns the number of stored records without touching the database.
func (s *Store) Count() int64 {
	if s == nil {
		return 0
	}
	return s.count.Load()
}

func (s *Store) newest() (status.Snapshot, bool, error) {
	iter, err := s.db.NewIter(iterOptionsForPrefix(tickPrefix))
	if err != nil {
		return status.Snapshot{}, false, fmt.Errorf("history: newest iterator: %w", err)
	}
	defer iter.Close()
	if !iter.Last() {
		return status.Snapshot{}, false, iter.Error()
	}
	var snap status.Snapshot
	if err := json.Unmarshal(iter.Value(), &snap); err != nil {
		return status.Snapshot{}, false, fmt.Errorf("history: decode newest: %w", err)
	}
	return snap, true, nil
}

func tickKeyBytes(unixNano int64) []byte {
	buf := make([]byte, len(tickPrefix)+8)
	copy(buf, tickPrefix)
	binary.BigEndian.PutUint64(buf[len(tickPrefix):], uint64(unixNano))
	return buf
}

func encodeCount(count int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(count))
	return buf
}

func loadCount(db *pebble.DB) (int64, error) {
	value, closer, err := db.Get([]byte(metaCountKey))
	if err == nil {
		defer closer.Close()
		if len(value) != 8 {
			return 0, errInvalidCount
		}
		return int64(binary.BigEndian.Uint64(value)), nil
	}
	if !errors.Is(err, pebble.ErrNotFound) {
		return 0, fmt.Errorf("history: read count: %w", err)
	}
	return computeCount(db)
}

func computeCount(db *pebble.DB) (int64, error) {
	iter, err := db.NewIter(iterOptionsForPrefix(tickPrefix))
	if err != nil {
		return 0, fmt.Errorf("history: count iterator: %w", err)
	}
	defer iter.Close()
	count := int64(0)
	for iter.First(); iter.Valid(); iter.Next() {
		count++
	}
	if err := iter.Error(); err != nil {
		return 0, fmt.Errorf("history: count iterate: %w", err)
	}
	return count, nil
}

func iterOptionsForPrefix(prefix string) *pebble.IterOptions {
	lower := []byte(prefix)
	upper := prefixUpperBound(lower)
	return &pebble.IterOptions{LowerBound: lower, UpperBound: upper}
}

func prefixUpperBound(prefix []byte) []byte {
	if len(prefix) == 0 {
		return nil
	}
	upper := make([]byte, len(prefix))
	copy(upper, prefix)
	for i := len(upper) - 1; i >= 0; i-- {
		if upper[i] != 0xFF {
			upper[i]++
			return upper[:i+1]
		}
	}
	return nil
}
