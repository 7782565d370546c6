package history

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/mqttwaker/internal/command"
)

// timeLayout is fixed-width so that stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000Z"

// List limits.
const (
	defaultLimit = 20
	maxLimit     = 500
)

// Event is one row of command history.
type Event struct {
	ID         string    `json:"id"`
	Topic      string    `json:"topic"`
	Payload    string    `json:"payload"`
	Command    string    `json:"command"`
	Outcome    string    `json:"outcome"`
	Reason     string    `json:"reason,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
}

// ConnectionEvent is one recorded connection state transition.
type ConnectionEvent struct {
	ID         string    `json:"id"`
	State      string    `json:"state"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Filter controls which events List returns.
type Filter struct {
	Command string // optional: wake, lock or unknown
	Outcome string // optional: success, permission_required, failed, ignored
	Limit   int    // default 20, max 500
}

// SQLiteRepository stores history in the tables created by the migrations
// package.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteRepository creates a repository on db.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

// Create inserts e. ID and ReceivedAt are generated when empty.
func (r *SQLiteRepository) Create(ctx context.Context, e *Event) error {
	if e.ID == "" {
		e.ID = "cmd-" + uuid.NewString()
	}
	if e.ReceivedAt.IsZero() {
		e.ReceivedAt = r.now()
	}
	e.ReceivedAt = e.ReceivedAt.UTC()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO command_history (id, topic, payload, command, outcome, reason, received_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Topic, e.Payload, e.Command, e.Outcome,
		nullableString(e.Reason),
		e.ReceivedAt.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting command history: %w", err)
	}
	return nil
}

// RecordCommand implements command.Recorder.
func (r *SQLiteRepository) RecordCommand(ctx context.Context, rec command.Record) error {
	return r.Create(ctx, &Event{
		Topic:      rec.Topic,
		Payload:    rec.Payload,
		Command:    rec.Command.String(),
		Outcome:    rec.OutcomeName(),
		Reason:     rec.Outcome.Reason,
		ReceivedAt: rec.Received,
	})
}

// RecordState inserts a connection state transition.
func (r *SQLiteRepository) RecordState(ctx context.Context, state, reason string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO connection_events (id, state, reason, occurred_at) VALUES (?, ?, ?, ?)`,
		"conn-"+uuid.NewString(), state, nullableString(reason),
		r.now().UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting connection event: %w", err)
	}
	return nil
}

// List returns command history matching filter, newest first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) ([]Event, error) {
	limit := clampLimit(filter.Limit)

	var conditions []string
	var args []any
	if filter.Command != "" {
		conditions = append(conditions, "command = ?")
		args = append(args, filter.Command)
	}
	if filter.Outcome != "" {
		conditions = append(conditions, "outcome = ?")
		args = append(args, filter.Outcome)
	}
	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf( //nolint:gosec // WHERE built from parameterised conditions, not user input
		`SELECT id, topic, payload, command, outcome, reason, received_at
		 FROM command_history %s ORDER BY received_at DESC, rowid DESC LIMIT ?`, where)
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying command history: %w", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var e Event
		var reason sql.NullString
		var receivedAt string
		if err := rows.Scan(&e.ID, &e.Topic, &e.Payload, &e.Command, &e.Outcome, &reason, &receivedAt); err != nil {
			return nil, fmt.Errorf("scanning command history: %w", err)
		}
		e.Reason = reason.String
		if e.ReceivedAt, err = time.Parse(timeLayout, receivedAt); err != nil {
			return nil, fmt.Errorf("parsing command history timestamp %q: %w", receivedAt, err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating command history: %w", err)
	}
	return events, nil
}

// ListStates returns connection events, newest first.
func (r *SQLiteRepository) ListStates(ctx context.Context, limit int) ([]ConnectionEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, state, reason, occurred_at FROM connection_events
		 ORDER BY occurred_at DESC, rowid DESC LIMIT ?`, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("querying connection events: %w", err)
	}
	defer rows.Close()

	events := []ConnectionEvent{}
	for rows.Next() {
		var e ConnectionEvent
		var reason sql.NullString
		var occurredAt string
		if err := rows.Scan(&e.ID, &e.State, &reason, &occurredAt); err != nil {
			return nil, fmt.Errorf("scanning connection event: %w", err)
		}
		e.Reason = reason.String
		if e.OccurredAt, err = time.Parse(timeLayout, occurredAt); err != nil {
			return nil, fmt.Errorf("parsing connection event timestamp %q: %w", occurredAt, err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating connection events: %w", err)
	}
	return events, nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultLimit
	case limit > maxLimit:
		return maxLimit
	default:
		return limit
	}
}

// nullableString maps "" to NULL for optional TEXT columns.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
