package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/loykin/scriptwatch/internal/history"
)

// Sink persists script events to SQLite. A start event inserts an open row;
// the matching stop event updates that row in place (end time, duration,
// final resources). A stop with no open row is appended standalone so the
// record is never lost.
type Sink struct {
	db *sql.DB
}

// New creates a SQLite sink.
// DSN format:
//   - "sqlite:///path/to/file.db"
//   - "sqlite://:memory:"
//   - "/path/to/file.db" or ":memory:" (without prefix)
func New(dsn string) (*Sink, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("empty SQLite DSN")
	}
	if strings.HasPrefix(strings.ToLower(dsn), "sqlite://") {
		dsn = dsn[len("sqlite://"):]
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// Keep correlation between INSERT and UPDATE on one connection.
	db.SetMaxOpenConns(1)

	s := &Sink{db: db}
	if err := s.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Sink) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS script_event(
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			uniq TEXT NOT NULL,
			event TEXT NOT NULL,
			ip TEXT NOT NULL,
			pid INTEGER NOT NULL,
			script_path TEXT NOT NULL,
			start_time TIMESTAMP NOT NULL,
			end_time TIMESTAMP NULL,
			duration_seconds REAL NULL,
			resources TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_script_event_uniq ON script_event(uniq);`,
		`CREATE INDEX IF NOT EXISTS idx_script_event_path ON script_event(script_path);`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sink) Name() string { return "sqlite" }

func (s *Sink) Send(ctx context.Context, e history.Event) error {
	resources, err := json.Marshal(e.Resources)
	if err != nil {
		return err
	}
	if e.Type == history.EventStart {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO script_event(uniq, event, ip, pid, script_path, start_time, resources)
			VALUES(?, ?, ?, ?, ?, ?, ?);`,
			e.Key(), string(e.Type), e.LocalIP, e.PID, e.ScriptPath, e.StartedAt.UTC(), string(resources))
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE script_event
		SET event = ?, end_time = ?, duration_seconds = ?, resources = ?
		WHERE uniq = ? AND event = ?;`,
		string(history.EventStop), e.OccurredAt.UTC(), e.Duration.Seconds(), string(resources),
		e.Key(), string(history.EventStart))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// No open start row to correlate against; append so the stop survives.
		slog.Warn("Stop event without open start row, appending", "uniq", e.Key())
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO script_event(uniq, event, ip, pid, script_path, start_time, end_time, duration_seconds, resources)
			VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?);`,
			e.Key(), string(e.Type), e.LocalIP, e.PID, e.ScriptPath, e.StartedAt.UTC(),
			e.OccurredAt.UTC(), e.Duration.Seconds(), string(resources))
	}
	return err
}

func (s *Sink) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
