// Package cache keeps HTTP responses from the UN Digital Library and the
// documents API in a sqlite table so that re-running a pipeline stage never
// fetches the same page twice.
package cache

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

type Key struct {
	Method string
	URL    string
}

type Entry struct {
	Key
	StatusCode int
	Status     string
	Header     http.Header
	Body       []byte
	Timestamp  time.Time
}

type Store struct {
	db *sql.DB
}

func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	// sqlite allows one writer; the proxy and a CLI may share a file.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
	CREATE TABLE IF NOT EXISTS cache (
		method TEXT NOT NULL,
		url TEXT NOT NULL,
		status_code INTEGER NOT NULL,
		status TEXT NOT NULL,
		headers TEXT NOT NULL,
		body BLOB,
		timestamp DATETIME NOT NULL,
		PRIMARY KEY (method, url)
	);`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cache table: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns nil, nil on a miss.
func (s *Store) Get(k Key) (*Entry, error) {
	var (
		e       Entry
		headers string
		ts      string
	)
	err := s.db.QueryRow(`
	SELECT method, url, status_code, status, headers, body, timestamp
	FROM cache WHERE method = ? AND url = ?`, k.Method, k.URL).
		Scan(&e.Method, &e.URL, &e.StatusCode, &e.Status, &headers, &e.Body, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query cache: %w", err)
	}

	if err := json.Unmarshal([]byte(headers), &e.Header); err != nil {
		return nil, fmt.Errorf("corrupt headers for %s: %w", k.URL, err)
	}
	if e.Timestamp, err = time.Parse(time.RFC3339, ts); err != nil {
		return nil, fmt.Errorf("failed to parse timestamp: %w", err)
	}
	return &e, nil
}

// Put stores or replaces an entry.
func (s *Store) Put(e Entry) error {
	headers, err := json.Marshal(e.Header)
	if err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // noop if tx has been committed

	_, err = tx.Exec(`
	INSERT INTO cache (method, url, status_code, status, headers, body, timestamp)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (method, url) DO UPDATE SET
		status_code = excluded.status_code,
		status = excluded.status,
		headers = excluded.headers,
		body = excluded.body,
		timestamp = excluded.timestamp`,
		e.Method, e.URL, e.StatusCode, e.Status, string(headers), e.Body, e.Timestamp.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to insert cache entry: %w", err)
	}

	return tx.Commit()
}

func (s *Store) Delete(k Key) error {
	if _, err := s.db.Exec(`DELETE FROM cache WHERE method = ? AND url = ?`, k.Method, k.URL); err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

// PurgeStatus removes entries with the given status codes. Older cache files
// stored 429 and 5xx bodies; this clears them out.
func (s *Store) PurgeStatus(codes ...int) (int64, error) {
	var total int64
	for _, c := range codes {
		res, err := s.db.Exec(`DELETE FROM cache WHERE status_code = ?`, c)
		if err != nil {
			return total, fmt.Errorf("failed to purge status %d: %w", c, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

func (s *Store) Count() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM cache`).Scan(&n)
	return n, err
}
