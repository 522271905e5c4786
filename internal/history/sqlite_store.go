package history

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// SQLiteStore keeps the history in a local SQLite file. It offers the same
// append-only semantics as JSONStore; records are ordered by seq.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite creates or opens a SQLite history at path.
// Reopening an existing file keeps its records; the schema is only
// created where it is missing.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Append inserts rec as the newest row.
func (s *SQLiteStore) Append(ctx context.Context, rec Record) error {
	rec.normalize()
	details, err := json.Marshal(rec.Details)
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO records (id, timestamp, module, summary, details, status, completed_timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID,
		rec.Timestamp.String(),
		rec.Module,
		rec.Summary,
		string(details),
		string(rec.Status),
		nullableTimestamp(rec.CompletedTimestamp),
	)
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

// List returns every record ordered by seq.
func (s *SQLiteStore) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, id, timestamp, module, summary, details, status, completed_timestamp
		FROM records
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		_, rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("list history: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return records, nil
}

// Finalize completes the pending record at the 1-based position.
func (s *SQLiteStore) Finalize(ctx context.Context, index int, finalCount float64, at time.Time) (Record, error) {
	if index < 1 {
		return Record{}, checkIndex(index, 0)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Record{}, fmt.Errorf("finalize history: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	row := tx.QueryRowContext(ctx, `
		SELECT seq, id, timestamp, module, summary, details, status, completed_timestamp
		FROM records
		ORDER BY seq ASC
		LIMIT 1 OFFSET ?
	`, index-1)
	seq, rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		var n int
		if cerr := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&n); cerr != nil {
			return Record{}, fmt.Errorf("finalize history: %w", cerr)
		}
		return Record{}, checkIndex(index, n)
	}
	if err != nil {
		return Record{}, fmt.Errorf("finalize history: %w", err)
	}

	if err := finalize(&rec, finalCount, at); err != nil {
		return Record{}, err
	}
	details, err := json.Marshal(rec.Details)
	if err != nil {
		return Record{}, fmt.Errorf("finalize history: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE records SET details = ?, status = ?, completed_timestamp = ?
		WHERE seq = ?
	`, string(details), string(rec.Status), nullableTimestamp(rec.CompletedTimestamp), seq)
	if err != nil {
		return Record{}, fmt.Errorf("finalize history: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Record{}, fmt.Errorf("finalize history: commit: %w", err)
	}
	return rec, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (int64, Record, error) {
	var (
		seq       int64
		rec       Record
		ts        string
		details   string
		status    string
		completed sql.NullString
	)
	if err := row.Scan(&seq, &rec.ID, &ts, &rec.Module, &rec.Summary, &details, &status, &completed); err != nil {
		return 0, Record{}, err
	}

	var err error
	if rec.Timestamp, err = ParseTimestamp(ts); err != nil {
		return 0, Record{}, err
	}
	if completed.Valid && completed.String != "" {
		c, err := ParseTimestamp(completed.String)
		if err != nil {
			return 0, Record{}, err
		}
		rec.CompletedTimestamp = &c
	}
	if err := json.Unmarshal([]byte(details), &rec.Details); err != nil {
		return 0, Record{}, fmt.Errorf("decode details of row %d: %w", seq, err)
	}
	rec.Status = Status(status)
	rec.normalize()
	return seq, rec, nil
}

func nullableTimestamp(ts *Timestamp) any {
	if ts == nil || ts.IsZero() {
		return nil
	}
	return ts.String()
}
