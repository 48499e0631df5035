// Package trace persists run lifecycle events to a local SQLite database so
// finished runs can be inspected after the fact.
package trace

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/harun/loom/internal/observability"
	"github.com/harun/loom/pkg/graph"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// Recorder writes hook events to SQLite. It attaches to a run through its
// hook registry and observes only; it never alters execution.
type Recorder struct {
	db     *sql.DB
	logger zerolog.Logger
	mu     sync.Mutex
	closed bool
}

// Config holds recorder configuration.
type Config struct {
	// Path is the SQLite database file.
	Path   string
	Logger zerolog.Logger
}

// NewRecorder opens (and if needed creates) the trace database.
func NewRecorder(cfg Config) (*Recorder, error) {
	observability.EnsureRegistered()

	if cfg.Path == "" {
		return nil, errors.New("database path is required")
	}

	db, err := sql.Open("sqlite3", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	r := &Recorder{db: db, logger: cfg.Logger.With().Str("component", "trace").Logger()}
	if err := r.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Recorder) initSchema() error {
	_, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS run_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			point TEXT NOT NULL,
			graph_name TEXT,
			node_name TEXT,
			error TEXT,
			fields TEXT,
			at TIMESTAMP NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_run_events_run_id ON run_events(run_id);
		CREATE INDEX IF NOT EXISTS idx_run_events_point ON run_events(point);
	`)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// Attach registers the recorder on every hook point of a registry.
func (r *Recorder) Attach(hooks *graph.HookRegistry) {
	hooks.OnAny(r.Record)
}

// Record persists one event. Write failures are logged, never propagated:
// tracing must not fail a run.
func (r *Recorder) Record(event graph.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}

	var errText sql.NullString
	if event.Err != nil {
		errText = sql.NullString{String: event.Err.Error(), Valid: true}
	}
	var fieldsJSON sql.NullString
	if len(event.Fields) > 0 {
		if data, err := json.Marshal(event.Fields); err == nil {
			fieldsJSON = sql.NullString{String: string(data), Valid: true}
		}
	}
	at := event.At
	if at.IsZero() {
		at = time.Now()
	}

	_, err := r.db.Exec(
		`INSERT INTO run_events (run_id, point, graph_name, node_name, error, fields, at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		event.RunID, string(event.Point), event.Graph, event.Node, errText, fieldsJSON, at,
	)
	if err != nil {
		r.logger.Warn().Err(err).Str("point", string(event.Point)).Msg("failed to record event")
	}
}

// StoredEvent is one persisted lifecycle event.
type StoredEvent struct {
	RunID  string
	Point  graph.HookPoint
	Graph  string
	Node   string
	Error  string
	Fields map[string]interface{}
	At     time.Time
}

// RunEvents returns every recorded event of a run in insertion order.
func (r *Recorder) RunEvents(ctx context.Context, runID string) ([]StoredEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT run_id, point, graph_name, node_name, error, fields, at
		 FROM run_events WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []StoredEvent
	for rows.Next() {
		var ev StoredEvent
		var point string
		var errText, fieldsJSON sql.NullString
		if err := rows.Scan(&ev.RunID, &point, &ev.Graph, &ev.Node, &errText, &fieldsJSON, &ev.At); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		ev.Point = graph.HookPoint(point)
		ev.Error = errText.String
		if fieldsJSON.Valid {
			_ = json.Unmarshal([]byte(fieldsJSON.String), &ev.Fields)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// RunIDs lists recorded runs, most recent first.
func (r *Recorder) RunIDs(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT run_id FROM run_events GROUP BY run_id ORDER BY MAX(id) DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close flushes and closes the database.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	return r.db.Close()
}
