package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/picogrid/scenario-config/pkg/scenario"
)

const schema = `
CREATE TABLE IF NOT EXISTS scenario_loads (
	seq           INTEGER PRIMARY KEY AUTOINCREMENT,
	id            TEXT NOT NULL UNIQUE,
	source        TEXT NOT NULL,
	format        TEXT NOT NULL,
	stage         TEXT NOT NULL,
	digest        TEXT,
	error_count   INTEGER NOT NULL DEFAULT 0,
	warning_count INTEGER NOT NULL DEFAULT 0,
	message       TEXT,
	document_json TEXT,
	created_at    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_scenario_loads_source ON scenario_loads(source);
`

// timeLayout has a fixed width so stored timestamps sort lexically
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrNotFound is returned when no record matches an ID
var ErrNotFound = errors.New("audit record not found")

// Record is one load attempt
type Record struct {
	ID           string
	Source       string
	Format       string
	Stage        string // "ready" on success, otherwise the stage that failed
	Digest       string
	ErrorCount   int
	WarningCount int
	Message      string
	Document     string // canonical JSON of successful loads
	CreatedAt    time.Time
}

// Succeeded reports whether the load produced a configuration
func (r Record) Succeeded() bool {
	return r.Stage == scenario.StageReady.String()
}

// Filter narrows List results
type Filter struct {
	Source     string
	FailedOnly bool
	Limit      int // <= 0 means no limit
}

// Store keeps the load history in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if dbPath == ":memory:" {
		// Every pooled connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma busy_timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record writes rec, assigning an ID and timestamp when they are unset.
func (s *Store) Record(ctx context.Context, rec Record) (Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scenario_loads (id, source, format, stage, digest, error_count, warning_count, message, document_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.Source,
		rec.Format,
		rec.Stage,
		nullIfEmpty(rec.Digest),
		rec.ErrorCount,
		rec.WarningCount,
		nullIfEmpty(rec.Message),
		nullIfEmpty(rec.Document),
		rec.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return Record{}, fmt.Errorf("insert load record: %w", err)
	}
	return rec, nil
}

// RecordLoad summarises the outcome of loading source and stores it.
// cfg is nil when loadErr is set.
func (s *Store) RecordLoad(ctx context.Context, source string, format scenario.Format, cfg *scenario.ScenarioConfig, loadErr error) (Record, error) {
	return s.Record(ctx, NewRecord(source, format, cfg, loadErr))
}

// NewRecord builds the record for one load outcome without storing it
func NewRecord(source string, format scenario.Format, cfg *scenario.ScenarioConfig, loadErr error) Record {
	rec := Record{
		Source: source,
		Format: format.String(),
		Stage:  scenario.FailedStage(loadErr).String(),
	}

	if loadErr != nil {
		rec.Message = loadErr.Error()
		rec.ErrorCount = 1
		var verr *scenario.ValidationError
		if errors.As(loadErr, &verr) {
			rec.ErrorCount = len(verr.Issues)
			rec.WarningCount = len(verr.Warnings)
		}
		return rec
	}

	if cfg != nil {
		rec.Digest = cfg.Digest()
		rec.WarningCount = len(cfg.Warnings())
		if doc, err := cfg.MarshalJSON(); err == nil {
			rec.Document = string(doc)
		}
	}
	return rec
}

// Get returns the record with the given ID
func (s *Store) Get(ctx context.Context, id string) (Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, source, format, stage, digest, error_count, warning_count, message, document_json, created_at
		 FROM scenario_loads WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return rec, err
}

// List returns matching records, newest first
func (s *Store) List(ctx context.Context, f Filter) ([]Record, error) {
	query := `SELECT id, source, format, stage, digest, error_count, warning_count, message, document_json, created_at
		FROM scenario_loads WHERE 1 = 1`
	var args []interface{}
	if f.Source != "" {
		query += " AND source = ?"
		args = append(args, f.Source)
	}
	if f.FailedOnly {
		query += " AND stage != ?"
		args = append(args, scenario.StageReady.String())
	}
	query += " ORDER BY seq DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query load records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate load records: %w", err)
	}
	return records, nil
}

// Prune deletes all but the newest keep records and returns how many were removed
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM scenario_loads WHERE seq NOT IN (
			SELECT seq FROM scenario_loads ORDER BY seq DESC LIMIT ?
		)`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune load records: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune rows affected: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row scanner) (Record, error) {
	var (
		rec                  Record
		digest, message, doc sql.NullString
		created              string
	)
	if err := row.Scan(&rec.ID, &rec.Source, &rec.Format, &rec.Stage, &digest,
		&rec.ErrorCount, &rec.WarningCount, &message, &doc, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, err
		}
		return Record{}, fmt.Errorf("scan load record: %w", err)
	}
	rec.Digest = digest.String
	rec.Message = message.String
	rec.Document = doc.String

	t, err := time.Parse(timeLayout, created)
	if err != nil {
		return Record{}, fmt.Errorf("parse created_at: %w", err)
	}
	rec.CreatedAt = t
	return rec, nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
