// Package history implements jarvish's History Index (spec.md §4.5): a
// single-file SQLite database recording every completed command invocation,
// with output bodies referenced by blob identity rather than stored inline.
package history

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/kiosk404/jarvish/internal/blobstore"
	"github.com/kiosk404/jarvish/internal/logging"
)

const component = "history"

const schema = `
CREATE TABLE IF NOT EXISTS command_history (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	command     TEXT NOT NULL,
	cwd         TEXT NOT NULL,
	exit_code   INTEGER NOT NULL,
	stdout_hash TEXT NULL,
	stderr_hash TEXT NULL,
	created_at  TEXT NOT NULL
)`

// Record is one row of command_history.
type Record struct {
	ID         int64
	Command    string
	Cwd        string
	ExitCode   int
	StdoutHash string // empty when no stdout was captured
	StderrHash string // empty when no stderr was captured
	CreatedAt  time.Time
}

// Index wraps the command_history database and lends blob access to
// callers that need to materialize recorded output text.
type Index struct {
	db    *sql.DB
	blobs *blobstore.Store
}

// Open opens (creating if necessary) the history database at path and
// ensures its schema, per spec.md: "On first open, the file and parent
// directories are created and the schema is applied idempotently."
func Open(path string, blobs *blobstore.Store) (*Index, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply history schema: %w", err)
	}

	return &Index{db: db, blobs: blobs}, nil
}

// Close releases the underlying database handle.
func (idx *Index) Close() error {
	return idx.db.Close()
}

// Record inserts a completed invocation, storing non-empty outputs as blobs
// first. Storage failures are returned to the caller, who per spec.md §4.5
// must log and continue rather than surface them as shell errors.
func (idx *Index) Record(command, cwd string, exitCode int, stdout, stderr []byte) (int64, error) {
	var stdoutHash, stderrHash sql.NullString

	if len(stdout) > 0 {
		id, err := idx.blobs.Put(stdout)
		if err != nil {
			return 0, fmt.Errorf("store stdout blob: %w", err)
		}
		stdoutHash = sql.NullString{String: id, Valid: id != ""}
	}
	if len(stderr) > 0 {
		id, err := idx.blobs.Put(stderr)
		if err != nil {
			return 0, fmt.Errorf("store stderr blob: %w", err)
		}
		stderrHash = sql.NullString{String: id, Valid: id != ""}
	}

	createdAt := time.Now().Format(time.RFC3339)
	res, err := idx.db.Exec(
		`INSERT INTO command_history (command, cwd, exit_code, stdout_hash, stderr_hash, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		command, cwd, exitCode, stdoutHash, stderrHash, createdAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert command_history row: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read inserted id: %w", err)
	}
	return id, nil
}

// RecordSafely calls Record and logs (rather than propagates) any storage
// failure, matching spec.md §7: "Storage error ... logged; the shell
// continues."
func (idx *Index) RecordSafely(command, cwd string, exitCode int, stdout, stderr []byte) {
	if _, err := idx.Record(command, cwd, exitCode, stdout, stderr); err != nil {
		logging.WarnX(component, "failed to record %q: %v", command, err)
	}
}

// Recent returns the n most recently recorded rows, newest first.
func (idx *Index) Recent(n int) ([]Record, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := idx.db.Query(
		`SELECT id, command, cwd, exit_code, stdout_hash, stderr_hash, created_at
		 FROM command_history ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query recent history: %w", err)
	}
	defer rows.Close()
	return scanAll(rows)
}

// ByID returns the record with the given id.
func (idx *Index) ByID(id int64) (*Record, error) {
	row := idx.db.QueryRow(
		`SELECT id, command, cwd, exit_code, stdout_hash, stderr_hash, created_at
		 FROM command_history WHERE id = ?`, id)
	rec, err := scanOne(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("record %d: %w", id, err)
	}
	return rec, err
}

// LoadOutput decompresses and returns the text stored under a blob hash
// referenced by a command_history row. Used by the AI router to recover
// "the previous error" context.
func (idx *Index) LoadOutput(hash string) (string, error) {
	if hash == "" {
		return "", nil
	}
	b, err := idx.blobs.Get(hash)
	if err != nil {
		return "", fmt.Errorf("load output blob %s: %w", hash, err)
	}
	return string(b), nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanOne(row scanner) (*Record, error) {
	var rec Record
	var stdoutHash, stderrHash sql.NullString
	var createdAt string
	if err := row.Scan(&rec.ID, &rec.Command, &rec.Cwd, &rec.ExitCode, &stdoutHash, &stderrHash, &createdAt); err != nil {
		return nil, err
	}
	rec.StdoutHash = stdoutHash.String
	rec.StderrHash = stderrHash.String
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		rec.CreatedAt = t
	}
	return &rec, nil
}

func scanAll(rows *sql.Rows) ([]Record, error) {
	var out []Record
	for rows.Next() {
		rec, err := scanOne(rows)
		if err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history rows: %w", err)
	}
	return out, nil
}
