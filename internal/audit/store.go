package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/FairForge/warden/internal/events"
)

// Record is one audited event row
type Record struct {
	ID        uuid.UUID         `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	Service   string            `json:"service,omitempty"`
	Node      string            `json:"node,omitempty"`
	Message   string            `json:"message,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
}

// Query filters for ListRecords
type Query struct {
	Service   string
	EventType string
	Since     time.Time
	Limit     int
}

// Store persists events to Postgres for later forensics
type Store struct {
	db *sql.DB
}

// Open connects to Postgres and prepares the schema
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("audit: open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("audit: ping database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the connection pool
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS audit_events (
			id UUID PRIMARY KEY,
			timestamp TIMESTAMPTZ NOT NULL,
			event_type VARCHAR(64) NOT NULL,
			service VARCHAR(255),
			node VARCHAR(255),
			message TEXT,
			details JSONB
		);
		CREATE INDEX IF NOT EXISTS idx_audit_events_service
			ON audit_events (service, timestamp DESC);
		CREATE INDEX IF NOT EXISTS idx_audit_events_type
			ON audit_events (event_type, timestamp DESC);
	`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("audit: create schema: %w", err)
	}
	return nil
}

// LogEvent writes one event row
func (s *Store) LogEvent(ctx context.Context, e events.Event) error {
	id, err := uuid.Parse(e.ID)
	if err != nil {
		id = uuid.New()
	}
	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	var details []byte
	if len(e.Details) > 0 {
		details, err = json.Marshal(e.Details)
		if err != nil {
			return fmt.Errorf("audit: marshal details: %w", err)
		}
	}

	query := `
		INSERT INTO audit_events (id, timestamp, event_type, service, node, message, details)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = s.db.ExecContext(ctx, query,
		id, ts, string(e.Type),
		nullString(e.Service), nullString(e.Node), nullString(e.Message),
		nullBytes(details),
	)
	if err != nil {
		return fmt.Errorf("audit: insert event: %w", err)
	}
	return nil
}

// ListRecords returns matching rows newest first
func (s *Store) ListRecords(ctx context.Context, q Query) ([]*Record, error) {
	if q.Limit <= 0 {
		q.Limit = 100
	}
	if q.Limit > 1000 {
		q.Limit = 1000
	}

	query := `
		SELECT id, timestamp, event_type, service, node, message, details
		FROM audit_events
		WHERE 1=1
	`
	args := []interface{}{}
	argIdx := 1

	if q.Service != "" {
		query += fmt.Sprintf(" AND service = $%d", argIdx)
		args = append(args, q.Service)
		argIdx++
	}
	if q.EventType != "" {
		query += fmt.Sprintf(" AND event_type = $%d", argIdx)
		args = append(args, q.EventType)
		argIdx++
	}
	if !q.Since.IsZero() {
		query += fmt.Sprintf(" AND timestamp >= $%d", argIdx)
		args = append(args, q.Since)
		argIdx++
	}
	query += fmt.Sprintf(" ORDER BY timestamp DESC LIMIT $%d", argIdx)
	args = append(args, q.Limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: query events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []*Record
	for rows.Next() {
		var (
			r       Record
			service sql.NullString
			node    sql.NullString
			message sql.NullString
			details []byte
		)
		if err := rows.Scan(&r.ID, &r.Timestamp, &r.EventType, &service, &node, &message, &details); err != nil {
			return nil, fmt.Errorf("audit: scan event: %w", err)
		}
		r.Service = service.String
		r.Node = node.String
		r.Message = message.String
		if len(details) > 0 {
			if err := json.Unmarshal(details, &r.Details); err != nil {
				return nil, fmt.Errorf("audit: unmarshal details: %w", err)
			}
		}
		records = append(records, &r)
	}
	return records, rows.Err()
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullBytes(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return b
}
