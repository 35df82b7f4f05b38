package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// categorySep joins category labels in the categories column. Labels are
// lowercase identifiers and never contain it.
const categorySep = ","

// SqlStore implements Store with SQLite.
type SqlStore struct {
	db *sql.DB
}

// Open opens or creates a SQLite catalog at path and runs migrations.
// Creates the parent directory if it does not exist.
func Open(path string) (*SqlStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps foreign_keys and writes on one handle.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	s := &SqlStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SqlStore) migrate() error {
	var tableCount int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableCount)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableCount == 0 {
		return s.freshInstall()
	}

	var v int
	err = s.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return s.freshInstall()
	}
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if v != currentSchemaVersion {
		return fmt.Errorf("unknown schema version %d", v)
	}
	return nil
}

func (s *SqlStore) freshInstall() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin schema: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck
	if _, err := tx.Exec(schemaV1); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.Exec("INSERT INTO schema_version(version) VALUES(?)", currentSchemaVersion); err != nil {
		return fmt.Errorf("set schema version: %w", err)
	}
	return tx.Commit()
}

func (s *SqlStore) Close() error {
	return s.db.Close()
}

func (s *SqlStore) SaveRun(run *Run, buckets []Bucket) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin save run: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.Exec(
		`INSERT INTO runs(dir, started_at, scanned, unique_count, incomplete, errors)
		 VALUES(?, ?, ?, ?, ?, ?)`,
		run.Dir, run.StartedAt.UTC().Format(time.RFC3339Nano),
		run.Scanned, run.Unique, run.Incomplete, run.Errors,
	)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}

	stmt, err := tx.Prepare(
		`INSERT INTO buckets(run_id, representative, signature, categories) VALUES(?, ?, ?, ?)`,
	)
	if err != nil {
		return 0, fmt.Errorf("prepare bucket insert: %w", err)
	}
	defer stmt.Close()
	for _, b := range buckets {
		if _, err := stmt.Exec(id, b.Representative, b.Signature, strings.Join(b.Categories, categorySep)); err != nil {
			return 0, fmt.Errorf("insert bucket %s: %w", b.Representative, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit run: %w", err)
	}
	run.ID = id
	return id, nil
}

const runColumns = `id, dir, started_at, scanned, unique_count, incomplete, errors`

func scanRun(row interface{ Scan(...any) error }) (*Run, error) {
	var r Run
	var started string
	if err := row.Scan(&r.ID, &r.Dir, &started, &r.Scanned, &r.Unique, &r.Incomplete, &r.Errors); err != nil {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339Nano, started)
	if err != nil {
		return nil, fmt.Errorf("parse started_at %q: %w", started, err)
	}
	r.StartedAt = t
	return &r, nil
}

func (s *SqlStore) GetRun(id int64) (*Run, error) {
	r, err := scanRun(s.db.QueryRow("SELECT "+runColumns+" FROM runs WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

func (s *SqlStore) LatestRun() (*Run, error) {
	r, err := scanRun(s.db.QueryRow("SELECT " + runColumns + " FROM runs ORDER BY id DESC LIMIT 1"))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoRuns
	}
	if err != nil {
		return nil, fmt.Errorf("latest run: %w", err)
	}
	return r, nil
}

func (s *SqlStore) ListRuns() ([]*Run, error) {
	rows, err := s.db.Query("SELECT " + runColumns + " FROM runs ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()
	var list []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		list = append(list, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return list, nil
}

func (s *SqlStore) ListBuckets(runID int64) ([]Bucket, error) {
	return s.queryBuckets(
		`SELECT run_id, representative, signature, categories FROM buckets
		 WHERE run_id = ? ORDER BY rowid`, runID)
}

func (s *SqlStore) FindSignature(signature string) ([]Bucket, error) {
	return s.queryBuckets(
		`SELECT run_id, representative, signature, categories FROM buckets
		 WHERE signature = ? ORDER BY run_id, rowid`, signature)
}

func (s *SqlStore) queryBuckets(query string, arg any) ([]Bucket, error) {
	rows, err := s.db.Query(query, arg)
	if err != nil {
		return nil, fmt.Errorf("list buckets: %w", err)
	}
	defer rows.Close()
	var list []Bucket
	for rows.Next() {
		var b Bucket
		var cats string
		if err := rows.Scan(&b.RunID, &b.Representative, &b.Signature, &cats); err != nil {
			return nil, fmt.Errorf("scan bucket: %w", err)
		}
		if cats != "" {
			b.Categories = strings.Split(cats, categorySep)
		}
		list = append(list, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list buckets: %w", err)
	}
	return list, nil
}
