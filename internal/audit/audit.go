// Package audit keeps a write-only trail of resolution attempts.
// Recording is best-effort and must never slow down or fail a request.
package audit

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/shortsget/shortsget/internal/config"
)

const auditDBFile = "audit.db"

// Record is one top-level resolution attempt.
type Record struct {
	ID        string    `json:"id"`
	SourceURL string    `json:"source_url"`
	Outcome   string    `json:"outcome"` // "success" or "error"
	Format    string    `json:"format"`
	Quality   string    `json:"quality"`
	Provider  string    `json:"provider,omitempty"`
	Error     string    `json:"error,omitempty"`
	ClientIP  string    `json:"client_ip"`
	CreatedAt time.Time `json:"created_at"`
}

// Recorder persists records to a local SQLite database. A nil Recorder
// is valid and drops everything, so callers never need to branch on
// whether auditing is enabled.
type Recorder struct {
	db *sql.DB
	mu sync.RWMutex
	wg sync.WaitGroup
}

// Open creates or opens the audit database under the config directory.
func Open() (*Recorder, error) {
	dir, err := config.ConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config dir: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config dir: %w", err)
	}
	return OpenPath(filepath.Join(dir, auditDBFile))
}

// OpenPath opens the audit database at an explicit path.
func OpenPath(path string) (*Recorder, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS resolutions (
			id TEXT PRIMARY KEY,
			source_url TEXT NOT NULL,
			outcome TEXT NOT NULL,
			format TEXT,
			quality TEXT,
			provider TEXT,
			error_message TEXT,
			client_ip TEXT,
			created_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_created_at ON resolutions(created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_outcome ON resolutions(outcome);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create resolutions table: %w", err)
	}

	return &Recorder{db: db}, nil
}

// Close waits for in-flight writes and closes the database.
func (r *Recorder) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	r.wg.Wait()
	return r.db.Close()
}

// Record writes rec asynchronously. Failures are logged at debug level
// and otherwise discarded.
func (r *Recorder) Record(rec Record) {
	if r == nil || r.db == nil {
		return
	}

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.insert(rec); err != nil {
			logrus.WithError(err).Debug("audit write dropped")
		}
	}()
}

func (r *Recorder) insert(rec Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`
		INSERT INTO resolutions
		(id, source_url, outcome, format, quality, provider, error_message, client_ip, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID,
		rec.SourceURL,
		rec.Outcome,
		rec.Format,
		rec.Quality,
		rec.Provider,
		rec.Error,
		rec.ClientIP,
		rec.CreatedAt.Unix(),
	)
	return err
}

// Recent returns records ordered newest first, with the total count.
func (r *Recorder) Recent(limit, offset int) ([]Record, int, error) {
	if r == nil || r.db == nil {
		return nil, 0, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var total int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM resolutions").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count records: %w", err)
	}

	rows, err := r.db.Query(`
		SELECT id, source_url, outcome, format, quality, provider, error_message, client_ip, created_at
		FROM resolutions
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	records := make([]Record, 0)
	for rows.Next() {
		var rec Record
		var provider, errMsg, clientIP sql.NullString
		var createdAt int64

		if err := rows.Scan(&rec.ID, &rec.SourceURL, &rec.Outcome, &rec.Format,
			&rec.Quality, &provider, &errMsg, &clientIP, &createdAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan record: %w", err)
		}

		rec.Provider = provider.String
		rec.Error = errMsg.String
		rec.ClientIP = clientIP.String
		rec.CreatedAt = time.Unix(createdAt, 0)
		records = append(records, rec)
	}

	return records, total, rows.Err()
}

// Stats summarizes outcomes and the per-provider success split.
func (r *Recorder) Stats() (succeeded, failed int, byProvider map[string]int, err error) {
	byProvider = make(map[string]int)
	if r == nil || r.db == nil {
		return 0, 0, byProvider, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	err = r.db.QueryRow(`
		SELECT
			COUNT(CASE WHEN outcome = 'success' THEN 1 END),
			COUNT(CASE WHEN outcome = 'error' THEN 1 END)
		FROM resolutions
	`).Scan(&succeeded, &failed)
	if err != nil {
		return 0, 0, byProvider, err
	}

	rows, err := r.db.Query(`
		SELECT provider, COUNT(*)
		FROM resolutions
		WHERE outcome = 'success' AND provider != ''
		GROUP BY provider
	`)
	if err != nil {
		return succeeded, failed, byProvider, err
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		var count int
		if err := rows.Scan(&name, &count); err != nil {
			return succeeded, failed, byProvider, err
		}
		byProvider[name] = count
	}

	return succeeded, failed, byProvider, rows.Err()
}
