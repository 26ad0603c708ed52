// Package postgres stores journal entries in PostgreSQL through pgx.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/on-the-ground/flux_ive_go/journal"
	"github.com/rickb777/date/v2/timespan"
)

const defaultTable = "flux_journal"

var validTable = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Querier is the part of pgx the storage needs. *pgx.Conn, *pgxpool.Pool
// and pgx.Tx all satisfy it.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Option func(*Storage)

// WithTable overrides the table name. Only identifiers made of letters,
// digits and underscores are accepted.
func WithTable(name string) Option {
	return func(s *Storage) {
		s.table = name
	}
}

// Storage is a journal.Storage backed by a single table. Actions and states
// are stored as JSON; Fetch returns them as json.RawMessage.
type Storage struct {
	q     Querier
	table string
}

var _ journal.Storage = (*Storage)(nil)

// NewStorage creates the table when it does not exist yet.
func NewStorage(ctx context.Context, q Querier, opts ...Option) (*Storage, error) {
	s := &Storage{q: q, table: defaultTable}
	for _, opt := range opts {
		opt(s)
	}
	if !validTable.MatchString(s.table) {
		return nil, fmt.Errorf("postgres: invalid table name %q", s.table)
	}

	_, err := q.Exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	seq BIGSERIAL PRIMARY KEY,
	id UUID NOT NULL UNIQUE,
	action_type TEXT NOT NULL,
	action JSONB,
	state JSONB,
	started_at TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL
)`, s.table))
	if err != nil {
		return nil, fmt.Errorf("postgres: create table %s: %w", s.table, err)
	}
	return s, nil
}

func (s *Storage) Save(ctx context.Context, entry journal.Entry) error {
	action, err := json.Marshal(entry.Action)
	if err != nil {
		return fmt.Errorf("postgres: encode action %s: %w", entry.ActionType, err)
	}
	state, err := json.Marshal(entry.State)
	if err != nil {
		return fmt.Errorf("postgres: encode state: %w", err)
	}

	tag, err := s.q.Exec(ctx,
		fmt.Sprintf(`INSERT INTO %s (id, action_type, action, state, started_at, finished_at) VALUES ($1, $2, $3, $4, $5, $6)`, s.table),
		entry.ID.String(), entry.ActionType, action, state, entry.Span.Start(), entry.Span.End(),
	)
	if err != nil {
		return fmt.Errorf("postgres: insert entry %s: %w", entry.ID, err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("postgres: insert entry %s: %d rows affected", entry.ID, tag.RowsAffected())
	}
	return nil
}

func (s *Storage) Fetch(ctx context.Context, limit int) ([]journal.Entry, error) {
	var limitArg any
	if limit > 0 {
		limitArg = limit
	}

	rows, err := s.q.Query(ctx, fmt.Sprintf(`SELECT id, action_type, action, state, started_at, finished_at FROM (
	SELECT * FROM %s ORDER BY seq DESC LIMIT $1
) newest ORDER BY seq ASC`, s.table), limitArg)
	if err != nil {
		return nil, fmt.Errorf("postgres: query entries: %w", err)
	}
	defer rows.Close()

	var entries []journal.Entry
	for rows.Next() {
		var (
			id                    string
			actionType            string
			action, state         []byte
			startedAt, finishedAt time.Time
		)
		if err := rows.Scan(&id, &actionType, &action, &state, &startedAt, &finishedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan entry: %w", err)
		}
		parsed, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("postgres: parse entry id %q: %w", id, err)
		}
		entries = append(entries, journal.Entry{
			ID:         parsed,
			ActionType: actionType,
			Action:     json.RawMessage(action),
			State:      json.RawMessage(state),
			Span:       timespan.BetweenTimes(startedAt, finishedAt),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: read entries: %w", err)
	}
	return entries, nil
}

// Count returns how many entries the table holds.
func (s *Storage) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.q.QueryRow(ctx, fmt.Sprintf(`SELECT count(*) FROM %s`, s.table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count entries: %w", err)
	}
	return n, nil
}
