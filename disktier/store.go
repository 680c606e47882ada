package disktier

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS detailed (
	key TEXT PRIMARY KEY,
	filename TEXT,
	inline_data BLOB,
	size INTEGER NOT NULL,
	last_access_time INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_detailed_last_access_time ON detailed(last_access_time);
`

const dbFileName = "diskcache.sqlite"

// item is one row of the detailed table, trimmed to what size/age-based
// trimming needs.
type item struct {
	Key      string
	Filename string // "" if inline
	Size     int64
}

// store owns the sidecar directory and the embedded database. It carries no
// locking of its own; Tier serializes all access under its mutex, per the
// concurrency model.
type store struct {
	dir    string
	appID  string
	db     *sql.DB
	hasher Hasher
	logger Logger

	mu    sync.Mutex // guards stmts only, for the close-retry protocol
	stmts map[string]*sql.Stmt
}

func openStore(rootDir, appID string, hasher Hasher, logger Logger) (*store, error) {
	dir := filepath.Join(rootDir, "diskcache."+appID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("disktier: create cache directory: %w", err)
	}
	s := &store{dir: dir, appID: appID, hasher: hasher, logger: logger, stmts: make(map[string]*sql.Stmt)}
	if err := s.open(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *store) open() error {
	dsn := filepath.Join(s.dir, dbFileName)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("disktier: open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return fmt.Errorf("disktier: %s: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schemaDDL); err != nil {
		db.Close()
		return fmt.Errorf("disktier: create schema: %w", err)
	}
	s.db = db
	return nil
}

func (s *store) prepare(query string) (*sql.Stmt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if stmt, ok := s.stmts[query]; ok {
		return stmt, nil
	}
	stmt, err := s.db.Prepare(query)
	if err != nil {
		return nil, err
	}
	s.stmts[query] = stmt
	return stmt, nil
}

func (s *store) sidecarPath(filename string) string {
	return filepath.Join(s.dir, filename)
}

// write persists bytes under key. When inlineFilename is non-empty, the
// bytes go to that sidecar file and the row's inline_data is cleared; when
// empty, the bytes go into inline_data and any previous sidecar file for
// key is removed.
func (s *store) write(key string, data []byte, inlineFilename string, now time.Time) error {
	prevFilename, _, hadRow, err := s.lookupFilename(key)
	if err != nil {
		return err
	}

	if inlineFilename != "" {
		path := s.sidecarPath(inlineFilename)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("disktier: write sidecar file: %w", err)
		}
		if err := s.upsert(key, inlineFilename, nil, int64(len(data)), now); err != nil {
			os.Remove(path)
			return err
		}
		if hadRow && prevFilename != "" && prevFilename != inlineFilename {
			os.Remove(s.sidecarPath(prevFilename))
		}
		return nil
	}

	if err := s.upsert(key, "", data, int64(len(data)), now); err != nil {
		return err
	}
	if hadRow && prevFilename != "" {
		os.Remove(s.sidecarPath(prevFilename))
	}
	return nil
}

func (s *store) upsert(key, filename string, inlineData []byte, size int64, now time.Time) error {
	stmt, err := s.prepare(`
		INSERT INTO detailed(key, filename, inline_data, size, last_access_time)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			filename = excluded.filename,
			inline_data = excluded.inline_data,
			size = excluded.size,
			last_access_time = excluded.last_access_time
	`)
	if err != nil {
		return fmt.Errorf("disktier: prepare upsert: %w", err)
	}
	var filenameArg any
	if filename != "" {
		filenameArg = filename
	}
	_, err = stmt.Exec(key, filenameArg, inlineData, size, now.Unix())
	if err != nil {
		return fmt.Errorf("disktier: upsert row: %w", err)
	}
	return nil
}

// lookupFilename returns the current filename (empty if inline), whether
// the row is inline, and whether a row exists at all.
func (s *store) lookupFilename(key string) (filename string, inline bool, exists bool, err error) {
	stmt, err := s.prepare(`SELECT filename, inline_data FROM detailed WHERE key = ?`)
	if err != nil {
		return "", false, false, err
	}
	var fn sql.NullString
	var data []byte
	err = stmt.QueryRow(key).Scan(&fn, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, false, nil
	}
	if err != nil {
		return "", false, false, fmt.Errorf("disktier: query row: %w", err)
	}
	return fn.String, !fn.Valid, true, nil
}

// read returns the bytes stored under key, touching last_access_time as a
// side effect, same as the source implementation.
func (s *store) read(key string, now time.Time) ([]byte, bool, error) {
	stmt, err := s.prepare(`SELECT filename, inline_data FROM detailed WHERE key = ?`)
	if err != nil {
		return nil, false, err
	}
	var fn sql.NullString
	var inline []byte
	err = stmt.QueryRow(key).Scan(&fn, &inline)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("disktier: query row: %w", err)
	}

	if err := s.touch(key, now); err != nil {
		s.logger.Printf("disktier: touch last_access_time for %q: %v", key, err)
	}

	if fn.Valid && fn.String != "" {
		data, err := os.ReadFile(s.sidecarPath(fn.String))
		if err != nil {
			return nil, false, fmt.Errorf("disktier: read sidecar file: %w", err)
		}
		return data, true, nil
	}
	return inline, true, nil
}

func (s *store) touch(key string, now time.Time) error {
	stmt, err := s.prepare(`UPDATE detailed SET last_access_time = ? WHERE key = ?`)
	if err != nil {
		return err
	}
	_, err = stmt.Exec(now.Unix(), key)
	return err
}

func (s *store) contains(key string) (bool, error) {
	stmt, err := s.prepare(`SELECT count(key) FROM detailed WHERE key = ?`)
	if err != nil {
		return false, err
	}
	var n int
	if err := stmt.QueryRow(key).Scan(&n); err != nil {
		return false, fmt.Errorf("disktier: count row: %w", err)
	}
	return n > 0, nil
}

func (s *store) remove(key string) error {
	filename, _, exists, err := s.lookupFilename(key)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}
	stmt, err := s.prepare(`DELETE FROM detailed WHERE key = ?`)
	if err != nil {
		return err
	}
	if _, err := stmt.Exec(key); err != nil {
		return fmt.Errorf("disktier: delete row: %w", err)
	}
	if filename != "" {
		os.Remove(s.sidecarPath(filename))
	}
	return nil
}

// removeAll wipes the database and sidecar directory entirely and
// reinitializes both, per the source's remove_all protocol.
func (s *store) removeAll() error {
	s.mu.Lock()
	for _, stmt := range s.stmts {
		stmt.Close()
	}
	s.stmts = make(map[string]*sql.Stmt)
	s.mu.Unlock()

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("disktier: close database before removeAll: %w", err)
	}

	if err := os.RemoveAll(s.dir); err != nil {
		return fmt.Errorf("disktier: remove cache directory: %w", err)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("disktier: recreate cache directory: %w", err)
	}
	return s.open()
}

// oldestItems returns up to limit items ordered by ascending
// last_access_time, for size- and count-based trimming.
func (s *store) oldestItems(limit int) ([]item, error) {
	stmt, err := s.prepare(`SELECT key, filename, size FROM detailed ORDER BY last_access_time ASC LIMIT ?`)
	if err != nil {
		return nil, err
	}
	rows, err := stmt.Query(limit)
	if err != nil {
		return nil, fmt.Errorf("disktier: query oldest items: %w", err)
	}
	defer rows.Close()

	var out []item
	for rows.Next() {
		var it item
		var fn sql.NullString
		if err := rows.Scan(&it.Key, &fn, &it.Size); err != nil {
			return nil, fmt.Errorf("disktier: scan oldest item: %w", err)
		}
		it.Filename = fn.String
		out = append(out, it)
	}
	return out, rows.Err()
}

// expiredItems returns every item whose last_access_time is older than
// cutoff.
func (s *store) expiredItems(cutoff time.Time) ([]item, error) {
	stmt, err := s.prepare(`SELECT key, filename, size FROM detailed WHERE last_access_time < ?`)
	if err != nil {
		return nil, err
	}
	rows, err := stmt.Query(cutoff.Unix())
	if err != nil {
		return nil, fmt.Errorf("disktier: query expired items: %w", err)
	}
	defer rows.Close()

	var out []item
	for rows.Next() {
		var it item
		var fn sql.NullString
		if err := rows.Scan(&it.Key, &fn, &it.Size); err != nil {
			return nil, fmt.Errorf("disktier: scan expired item: %w", err)
		}
		it.Filename = fn.String
		out = append(out, it)
	}
	return out, rows.Err()
}

// deleteExpired removes every item whose last_access_time is older than
// cutoff, sidecar file first, then row, and reports how many were removed.
func (s *store) deleteExpired(cutoff time.Time) (int, error) {
	items, err := s.expiredItems(cutoff)
	if err != nil {
		return 0, err
	}
	stmt, err := s.prepare(`DELETE FROM detailed WHERE key = ?`)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, it := range items {
		if it.Filename != "" {
			os.Remove(s.sidecarPath(it.Filename))
		}
		if _, err := stmt.Exec(it.Key); err != nil {
			return n, fmt.Errorf("disktier: delete expired row: %w", err)
		}
		n++
	}
	return n, nil
}

// deleteItem removes a single row and its sidecar file, used by cost/count
// trimming. Callers account for the freed size from it.Size themselves.
func (s *store) deleteItem(it item) error {
	stmt, err := s.prepare(`DELETE FROM detailed WHERE key = ?`)
	if err != nil {
		return err
	}
	if it.Filename != "" {
		os.Remove(s.sidecarPath(it.Filename))
	}
	_, err = stmt.Exec(it.Key)
	return err
}

func (s *store) totalSize() (int64, error) {
	stmt, err := s.prepare(`SELECT COALESCE(SUM(size), 0) FROM detailed`)
	if err != nil {
		return 0, err
	}
	var total int64
	if err := stmt.QueryRow().Scan(&total); err != nil {
		return 0, fmt.Errorf("disktier: total size: %w", err)
	}
	return total, nil
}

func (s *store) totalCount() (int, error) {
	stmt, err := s.prepare(`SELECT COUNT(*) FROM detailed`)
	if err != nil {
		return 0, err
	}
	var total int
	if err := stmt.QueryRow().Scan(&total); err != nil {
		return 0, fmt.Errorf("disktier: total count: %w", err)
	}
	return total, nil
}

func (s *store) checkpoint() error {
	_, err := s.db.Exec(`PRAGMA wal_checkpoint(PASSIVE)`)
	return err
}

// close finalizes every cached statement before closing the database,
// since a close can otherwise fail with "statements still in use".
func (s *store) close() error {
	s.mu.Lock()
	for _, stmt := range s.stmts {
		stmt.Close()
	}
	s.stmts = make(map[string]*sql.Stmt)
	s.mu.Unlock()

	err := s.db.Close()
	if err != nil {
		// One retry: a concurrent reader may have been mid-query when the
		// statements above were finalized. Finalizing is idempotent, so
		// just retry the close itself.
		err = s.db.Close()
	}
	return err
}
