// Package history keeps a local SQLite log of produced reports.
package history

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ppiankov/opslens/internal/report"
	_ "modernc.org/sqlite"
)

// Entry is one stored report.
type Entry struct {
	ID          int64
	Tool        string
	Subject     string
	GeneratedAt time.Time
	Failed      bool
	Report      json.RawMessage
}

// DB wraps the SQLite connection.
type DB struct {
	db *sql.DB
}

// Open opens or creates the history database at path.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("history db: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS reports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tool TEXT NOT NULL,
		subject TEXT NOT NULL,
		generated_at TEXT NOT NULL,
		failed INTEGER NOT NULL DEFAULT 0,
		report TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_reports_tool ON reports(tool);
	CREATE INDEX IF NOT EXISTS idx_reports_generated_at ON reports(generated_at);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("history schema: %w", err)
	}

	return &DB{db: db}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// Record stores a report and returns its row id.
func (d *DB) Record(r *report.Report) (int64, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return 0, fmt.Errorf("marshal report: %w", err)
	}

	res, err := d.db.Exec(`
		INSERT INTO reports (tool, subject, generated_at, failed, report)
		VALUES (?, ?, ?, ?, ?)
	`, r.Tool, r.Subject, r.GeneratedAt.UTC().Format(time.RFC3339Nano), r.Failed(), string(data))
	if err != nil {
		return 0, fmt.Errorf("insert report: %w", err)
	}
	return res.LastInsertId()
}

// List returns the newest reports first. An empty tool matches every tool.
func (d *DB) List(tool string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := d.db.Query(`
		SELECT id, tool, subject, generated_at, failed, report
		FROM reports
		WHERE (? = '' OR tool = ?)
		ORDER BY generated_at DESC, id DESC
		LIMIT ?
	`, tool, tool, limit)
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e    Entry
			ts   string
			body string
		)
		if err := rows.Scan(&e.ID, &e.Tool, &e.Subject, &ts, &e.Failed, &body); err != nil {
			return nil, err
		}
		e.GeneratedAt, _ = time.Parse(time.RFC3339Nano, ts)
		e.Report = json.RawMessage(body)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Get loads the full report stored under id.
func (d *DB) Get(id int64) (*report.Report, error) {
	var body string
	err := d.db.QueryRow(`SELECT report FROM reports WHERE id = ?`, id).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no report with id %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("query report: %w", err)
	}

	var r report.Report
	if err := json.Unmarshal([]byte(body), &r); err != nil {
		return nil, fmt.Errorf("decode report %d: %w", id, err)
	}
	return &r, nil
}

// Counts returns the number of stored reports per tool.
func (d *DB) Counts() (map[string]int, error) {
	rows, err := d.db.Query(`SELECT tool, COUNT(*) FROM reports GROUP BY tool`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var tool string
		var n int
		if err := rows.Scan(&tool, &n); err != nil {
			return nil, err
		}
		counts[tool] = n
	}
	return counts, rows.Err()
}
