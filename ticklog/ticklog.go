// Package ticklog records poll outcomes in a daily-rotated SQLite database
// without blocking the poll goroutine. It is a diagnostic audit trail: one
// row per tick with connectivity, error classification and the snapshot
// digest, cheap enough to leave on permanently.
package ticklog

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite" // SQLite driver (pure Go)

	"lucamon/status"
)

const defaultQueueSize = 1024

// Entry is one recorded poll outcome.
type Entry struct {
	At        time.Time
	Connected bool
	ErrorKind string
	ErrorText string
	Digest    uint64
}

// FromSnapshot derives a log entry from a completed poll snapshot.
func FromSnapshot(snap status.Snapshot) Entry {
	entry := Entry{
		At:        snap.FetchedAt,
		Connected: snap.Connected,
		Digest:    snap.Digest(),
	}
	if snap.LastError != "" {
		entry.ErrorText = snap.LastError
		if kind, _, ok := strings.Cut(snap.LastError, ":"); ok {
			entry.ErrorKind = strings.TrimSpace(kind)
		}
	}
	return entry
}

// Logger buffers entries on a bounded channel and writes them from a single
// goroutine. When the queue is full, entries are dropped and counted; the
// poll path never blocks on disk.
type Logger struct {
	dir   string
	queue chan Entry

	mu          sync.Mutex
	db          *sql.DB
	currentPath string
	insertStmt  *sql.Stmt

	wg        sync.WaitGroup
	closeOnce sync.Once

	dropped  atomic.Int64
	errCount atomic.Int64
}

// New builds a non-blocking tick logger writing ticks_YYYY-MM-DD.db files
// under dir. The caller must invoke Close on shutdown to flush buffered
// entries.
func New(dir string, queueSize int) *Logger {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	l := &Logger{
		dir:   strings.TrimSpace(dir),
		queue: make(chan Entry, queueSize),
	}
	l.wg.Add(1)
	go l.run()
	return l
}

// Enqueue attempts to buffer the entry without blocking. When the queue is
// full the entry is dropped and the drop counter increments.
func (l *Logger) Enqueue(entry Entry) {
	if l == nil {
		return
	}
	select {
	case l.queue <- entry:
	default:
		d := l.dropped.Add(1)
		if d == 1 || d%1000 == 0 {
			log.Printf("ticklog: backpressure, dropped %d entries", d)
		}
	}
}

// Dropped returns how many entries were discarded due to backpressure.
func (l *Logger) Dropped() int64 {
	return l.dropped.Load()
}

// Close flushes the queue and releases database handles.
func (l *Logger) Close() error {
	var closeErr error
	l.closeOnce.Do(func() {
		close(l.queue)
		l.wg.Wait()
		l.mu.Lock()
		defer l.mu.Unlock()
		closeErr = l.closeDBLocked()
	})
	return closeErr
}

func (l *Logger) run() {
	defer l.wg.Done()
	for entry := range l.queue {
		if err := l.write(entry); err != nil {
			l.reportError(err)
		}
	}
}

func (l *Logger) write(entry Entry) error {
	ts := entry.At
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	if err := l.ensureDB(ts); err != nil {
		return err
	}
	connected := 0
	if entry.Connected {
		connected = 1
	}
	_, err := l.insertStmt.Exec(
		ts.UTC().Unix(),
		connected,
		entry.ErrorKind,
		entry.ErrorText,
		fmt.Sprintf("%016x", entry.Digest),
	)
	if err != nil {
		return fmt.Errorf("ticklog: insert tick: %w", err)
	}
	return nil
}

func (l *Logger) ensureDB(ts time.Time) error {
	path := l.pathFor(ts)

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.db != nil && l.currentPath == path {
		return nil
	}
	if err := l.closeDBLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ticklog: mkdir %s: %w", filepath.Dir(path), err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("ticklog: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode = WAL; PRAGMA synchronous = NORMAL;`); err != nil {
		db.Close()
		return fmt.Errorf("ticklog: pragmas: %w", err)
	}
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS ticks (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    ts INTEGER NOT NULL,
    connected INTEGER NOT NULL,
    error_kind TEXT NOT NULL DEFAULT '',
    error_text TEXT NOT NULL DEFAULT '',
    digest TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_ticks_ts ON ticks(ts);
`); err != nil {
		db.Close()
		return fmt.Errorf("ticklog: schema: %w", err)
	}

	stmt, err := db.Prepare(`INSERT INTO ticks (ts, connected, error_kind, error_text, digest) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		db.Close()
		return fmt.Errorf("ticklog: prepare insert: %w", err)
	}

	l.db = db
	l.currentPath = path
	l.insertStmt = stmt
	return nil
}

func (l *Logger) closeDBLocked() error {
	var firstErr error
	if l.insertStmt != nil {
		if err := l.insertStmt.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		l.insertStmt = nil
	}
	if l.db != nil {
		if err := l.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		l.db = nil
	}
	l.currentPath = ""
	return firstErr
}

func (l *Logger) pathFor(ts time.Time) string {
	dir := l.dir
	if dir == "" {
		dir = "data/ticklog"
	}
	return filepath.Join(dir, "ticks_"+ts.UTC().Format("2006-01-02")+".db")
}

func (l *Logger) reportError(err error) {
	n := l.errCount.Add(1)
	if n == 1 || n%100 == 0 {
		log.Printf("ticklog: write failed (%d so far): %v", n, err)
	}
}
