// Package sqlite provides a SQLite-backed RollStore.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/rollkit/pkg/adapters/sqlite/migrations"
	"github.com/aretw0/rollkit/pkg/domain"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// goose keeps its dialect and base FS in package state.
var migrateMu sync.Mutex

// Store persists rolls in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite roll store and applies embedded migrations.
// Use ":memory:" for a private in-memory database.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := ":memory:"
	if path != ":memory:" {
		dsn = filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	}
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if path == ":memory:" {
		// every connection to :memory: is a separate database
		sqlDB.SetMaxOpenConns(1)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

func applyMigrations(db *sql.DB) error {
	migrateMu.Lock()
	defer migrateMu.Unlock()

	goose.SetLogger(gooseLogger{})
	goose.SetBaseFS(migrations.FS)
	defer goose.SetBaseFS(nil)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return goose.Up(db, ".")
}

// gooseLogger forwards goose output to slog at debug level.
type gooseLogger struct{}

func (gooseLogger) Printf(format string, v ...any) {
	slog.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "goose")
}

// Fatalf logs without exiting; goose returns the error to Open.
func (gooseLogger) Fatalf(format string, v ...any) {
	slog.Error(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "goose")
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Save inserts or replaces one roll record.
func (s *Store) Save(ctx context.Context, record *domain.RollRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(record.ID) == "" {
		return fmt.Errorf("roll id is required")
	}
	metadata, err := json.Marshal(record.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	var total sql.NullFloat64
	if record.Total != nil {
		total = sql.NullFloat64{Float64: *record.Total, Valid: true}
	}

	_, err = s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO rolls (id, channel, formula, mode, total, roll_json, metadata, trace_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   channel = excluded.channel,
		   formula = excluded.formula,
		   mode = excluded.mode,
		   total = excluded.total,
		   roll_json = excluded.roll_json,
		   metadata = excluded.metadata,
		   trace_id = excluded.trace_id,
		   created_at = excluded.created_at`,
		record.ID,
		record.Channel,
		record.Formula,
		record.Mode,
		total,
		string(record.Roll),
		string(metadata),
		record.TraceID,
		toMillis(record.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("save roll: %w", err)
	}
	return nil
}

const selectColumns = `id, channel, formula, mode, total, roll_json, metadata, trace_id, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*domain.RollRecord, error) {
	var (
		rec       domain.RollRecord
		total     sql.NullFloat64
		rollJSON  string
		metadata  string
		createdAt int64
	)
	if err := row.Scan(&rec.ID, &rec.Channel, &rec.Formula, &rec.Mode, &total, &rollJSON, &metadata, &rec.TraceID, &createdAt); err != nil {
		return nil, err
	}
	if total.Valid {
		v := total.Float64
		rec.Total = &v
	}
	if rollJSON != "" {
		rec.Roll = json.RawMessage(rollJSON)
	}
	if metadata != "" && metadata != "null" {
		if err := json.Unmarshal([]byte(metadata), &rec.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata for %s: %w", rec.ID, err)
		}
	}
	rec.CreatedAt = fromMillis(createdAt)
	return &rec, nil
}

// Load returns one roll by ID.
func (s *Store) Load(ctx context.Context, id string) (*domain.RollRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM rolls WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrRollNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load roll: %w", err)
	}
	return rec, nil
}

// Delete removes one roll. Missing rows are not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM rolls WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete roll: %w", err)
	}
	return nil
}

// List returns the rolls of a channel, oldest first.
func (s *Store) List(ctx context.Context, channel string) ([]*domain.RollRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM rolls WHERE channel = ? ORDER BY created_at ASC, id ASC`,
		channel,
	)
	if err != nil {
		return nil, fmt.Errorf("list rolls: %w", err)
	}
	defer rows.Close()

	records := make([]*domain.RollRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan roll: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rolls: %w", err)
	}
	return records, nil
}
