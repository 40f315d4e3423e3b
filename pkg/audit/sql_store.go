package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"  // postgres driver
	_ "modernc.org/sqlite" // sqlite driver
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// SQLStore persists events in a SQL table.
type SQLStore struct {
	db     *sql.DB
	driver string
}

// Open connects to dsn with driver and migrates the schema.
func Open(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("audit: open %s: %w", driver, err)
	}
	s, err := NewSQLStore(ctx, db, driver)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLStore wraps an existing handle and migrates the schema.
func NewSQLStore(ctx context.Context, db *sql.DB, driver string) (*SQLStore, error) {
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("audit: unsupported driver %q", driver)
	}
	s := &SQLStore{db: db, driver: driver}
	if err := s.migrate(ctx); err != nil {
		return nil, fmt.Errorf("audit: migrate: %w", err)
	}
	return s, nil
}

func (s *SQLStore) migrate(ctx context.Context) error {
	query := `CREATE TABLE IF NOT EXISTS audit_events (
		id TEXT PRIMARY KEY,
		actor_id TEXT NOT NULL,
		session_id TEXT,
		request_id TEXT,
		event_type TEXT NOT NULL,
		action TEXT NOT NULL,
		input_digest TEXT,
		created_at TIMESTAMP NOT NULL,
		metadata TEXT
	)`
	_, err := s.db.ExecContext(ctx, query)
	return err
}

// rebind rewrites ? placeholders into the driver's dialect.
func (s *SQLStore) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) Record(ctx context.Context, evt Event) error {
	var metadata []byte
	if len(evt.Metadata) > 0 {
		var err error
		if metadata, err = json.Marshal(evt.Metadata); err != nil {
			return fmt.Errorf("audit: marshal metadata: %w", err)
		}
	}

	query := s.rebind(`INSERT INTO audit_events
		(id, actor_id, session_id, request_id, event_type, action, input_digest, created_at, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, query,
		evt.ID, evt.ActorID, evt.SessionID, evt.RequestID, string(evt.Type),
		evt.Action, evt.InputDigest, evt.Timestamp.UTC(), string(metadata))
	if err != nil {
		return fmt.Errorf("audit: insert event %s: %w", evt.ID, err)
	}
	return nil
}

// List returns up to limit events for actorID, newest first.
func (s *SQLStore) List(ctx context.Context, actorID string, limit int) ([]Event, error) {
	query := s.rebind(`SELECT id, actor_id, session_id, request_id, event_type, action, input_digest, created_at, metadata
		FROM audit_events WHERE actor_id = ? ORDER BY created_at DESC LIMIT ?`)
	rows, err := s.db.QueryContext(ctx, query, actorID, limit)
	if err != nil {
		return nil, fmt.Errorf("audit: list events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []Event
	for rows.Next() {
		var (
			evt                                    Event
			sessionID, requestID, digest, metadata sql.NullString
			eventType                              string
			createdAt                              time.Time
		)
		if err := rows.Scan(&evt.ID, &evt.ActorID, &sessionID, &requestID, &eventType,
			&evt.Action, &digest, &createdAt, &metadata); err != nil {
			return nil, fmt.Errorf("audit: scan event: %w", err)
		}
		evt.SessionID = sessionID.String
		evt.RequestID = requestID.String
		evt.InputDigest = digest.String
		evt.Type = EventType(eventType)
		evt.Timestamp = createdAt.UTC()
		if metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &evt.Metadata); err != nil {
				return nil, fmt.Errorf("audit: decode metadata for %s: %w", evt.ID, err)
			}
		}
		events = append(events, evt)
	}
	return events, rows.Err()
}

// Close closes the underlying database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
