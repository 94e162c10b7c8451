// Package sqlstore persists processed messages in a relational database.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"msgmon/internal/history"
	"msgmon/pkg/ids"
	"msgmon/pkg/metrics"
)

const columns = `id, run_id, attempt, message_type, description, dispatched_at, received_at,
	finished_at, wait_time, handle_time, transport, tags, results, failure_type,
	failure_message, memory_usage`

type row struct {
	ID             string         `db:"id"`
	RunID          int64          `db:"run_id"`
	Attempt        int            `db:"attempt"`
	MessageType    string         `db:"message_type"`
	Description    sql.NullString `db:"description"`
	DispatchedAt   int64          `db:"dispatched_at"`
	ReceivedAt     int64          `db:"received_at"`
	FinishedAt     int64          `db:"finished_at"`
	WaitTime       int64          `db:"wait_time"`
	HandleTime     int64          `db:"handle_time"`
	Transport      string         `db:"transport"`
	Tags           sql.NullString `db:"tags"`
	Results        string         `db:"results"`
	FailureType    sql.NullString `db:"failure_type"`
	FailureMessage sql.NullString `db:"failure_message"`
	MemoryUsage    int64          `db:"memory_usage"`
}

func toRow(id string, m *history.ProcessedMessage) (row, error) {
	results, err := m.Results().Encode()
	if err != nil {
		return row{}, fmt.Errorf("failed to encode results: %w", err)
	}

	r := row{
		ID:           id,
		RunID:        m.RunID(),
		Attempt:      m.Attempt(),
		MessageType:  m.Type(),
		Description:  nullString(m.Description()),
		DispatchedAt: m.DispatchedAt().UnixMilli(),
		ReceivedAt:   m.ReceivedAt().UnixMilli(),
		FinishedAt:   m.FinishedAt().UnixMilli(),
		WaitTime:     m.TimeInQueue().Milliseconds(),
		HandleTime:   m.TimeToHandle().Milliseconds(),
		Transport:    m.Transport(),
		Tags:         nullString(m.Tags().Implode(history.TagSeparator)),
		Results:      string(results),
		MemoryUsage:  int64(m.MemoryUsage()),
	}
	if failure := m.Failure(); failure != nil {
		r.FailureType = nullString(failure.Type)
		r.FailureMessage = sql.NullString{String: failure.Message, Valid: true}
	}
	return r, nil
}

func (r row) message() (*history.ProcessedMessage, error) {
	results, err := history.DecodeResults([]byte(r.Results))
	if err != nil {
		return nil, fmt.Errorf("failed to decode results of %s: %w", r.ID, err)
	}

	return history.FromRecord(history.Record{
		ID:             r.ID,
		RunID:          r.RunID,
		Attempt:        r.Attempt,
		Type:           r.MessageType,
		Description:    r.Description.String,
		DispatchedAt:   time.UnixMilli(r.DispatchedAt),
		ReceivedAt:     time.UnixMilli(r.ReceivedAt),
		FinishedAt:     time.UnixMilli(r.FinishedAt),
		Transport:      r.Transport,
		Tags:           history.ParseTags(r.Tags.String).All(),
		Results:        results,
		FailureType:    r.FailureType.String,
		FailureMessage: r.FailureMessage.String,
		MemoryUsage:    uint64(r.MemoryUsage),
	}), nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Storage is a history.Storage over the processed_messages table.
type Storage struct {
	db      *sqlx.DB
	dialect Dialect
	table   string
}

var _ history.Storage = (*Storage)(nil)

func New(db *sqlx.DB, dialect Dialect) *Storage {
	return &Storage{db: db, dialect: dialect, table: "processed_messages"}
}

// NewFromDB wraps an already opened database/sql handle.
func NewFromDB(db *sql.DB, dialect Dialect) *Storage {
	return New(sqlx.NewDb(db, dialect.DriverName), dialect)
}

// EnsureSQLiteSchema creates the table on SQLite databases. Postgres is
// managed by migrations.
func EnsureSQLiteSchema(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("failed to create sqlite schema: %w", err)
	}
	return nil
}

func (s *Storage) Find(ctx context.Context, id string) (m *history.ProcessedMessage, err error) {
	if !s.dialect.validID(id) {
		return nil, nil
	}
	done := metrics.TrackStorageQuery(s.dialect.Name, "find")
	defer func() { done(err) }()

	var r row
	query := s.dialect.rebind("SELECT " + columns + " FROM " + s.table + " WHERE id = ?")
	if err := s.db.GetContext(ctx, &r, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find processed message %s: %w", id, err)
	}
	return r.message()
}

func (s *Storage) Filter(spec history.Specification) history.Sequence {
	cond := buildConditions(s.dialect, spec)
	query := s.dialect.rebind("SELECT " + columns + " FROM " + s.table + cond.where() + orderBy(spec) + " LIMIT ? OFFSET ?")

	return history.NewSequence(func(ctx context.Context, offset, limit int) (_ []*history.ProcessedMessage, err error) {
		done := metrics.TrackStorageQuery(s.dialect.Name, "filter")
		defer func() { done(err) }()

		var rows []row
		args := append(append([]any{}, cond.args...), limit, offset)
		if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
			return nil, fmt.Errorf("failed to filter processed messages: %w", err)
		}

		messages := make([]*history.ProcessedMessage, 0, len(rows))
		for _, r := range rows {
			m, err := r.message()
			if err != nil {
				return nil, err
			}
			messages = append(messages, m)
		}
		return messages, nil
	})
}

func (s *Storage) Count(ctx context.Context, spec history.Specification) (count int, err error) {
	done := metrics.TrackStorageQuery(s.dialect.Name, "count")
	defer func() { done(err) }()

	cond := buildConditions(s.dialect, spec)
	query := s.dialect.rebind("SELECT COUNT(*) FROM " + s.table + cond.where())
	if err := s.db.GetContext(ctx, &count, query, cond.args...); err != nil {
		return 0, fmt.Errorf("failed to count processed messages: %w", err)
	}
	return count, nil
}

// Purge deletes every match. Deletes carry no ORDER BY.
func (s *Storage) Purge(ctx context.Context, spec history.Specification) (purged int, err error) {
	done := metrics.TrackStorageQuery(s.dialect.Name, "purge")
	defer func() { done(err) }()

	cond := buildConditions(s.dialect, spec)
	query := s.dialect.rebind("DELETE FROM " + s.table + cond.where())
	res, err := s.db.ExecContext(ctx, query, cond.args...)
	if err != nil {
		return 0, fmt.Errorf("failed to purge processed messages: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read purged count: %w", err)
	}
	metrics.AddStoragePurged(s.dialect.Name, int(affected))
	return int(affected), nil
}

func (s *Storage) Save(ctx context.Context, m *history.ProcessedMessage) (err error) {
	done := metrics.TrackStorageQuery(s.dialect.Name, "save")
	defer func() { done(err) }()

	id := m.ID()
	if id == "" {
		id = ids.NewUUID()
	}
	r, err := toRow(id, m)
	if err != nil {
		return err
	}

	query := "INSERT INTO " + s.table + ` (` + columns + `) VALUES (:id, :run_id, :attempt, :message_type,
		:description, :dispatched_at, :received_at, :finished_at, :wait_time, :handle_time,
		:transport, :tags, :results, :failure_type, :failure_message, :memory_usage)`
	query, args, err := sqlx.Named(query, r)
	if err != nil {
		return fmt.Errorf("failed to bind processed message: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, s.dialect.rebind(query), args...); err != nil {
		return fmt.Errorf("failed to insert processed message: %w", err)
	}

	m.AssignID(id)
	return nil
}

func (s *Storage) Delete(ctx context.Context, id string) (err error) {
	if !s.dialect.validID(id) {
		return nil
	}
	done := metrics.TrackStorageQuery(s.dialect.Name, "delete")
	defer func() { done(err) }()

	query := s.dialect.rebind("DELETE FROM " + s.table + " WHERE id = ?")
	if _, err := s.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to delete processed message %s: %w", id, err)
	}
	return nil
}

func (s *Storage) AverageWaitTime(ctx context.Context, spec history.Specification) (float64, bool, error) {
	return s.average(ctx, "wait_time", spec)
}

func (s *Storage) AverageHandlingTime(ctx context.Context, spec history.Specification) (float64, bool, error) {
	return s.average(ctx, "handle_time", spec)
}

// average returns the mean of a millisecond column in seconds.
func (s *Storage) average(ctx context.Context, column string, spec history.Specification) (seconds float64, ok bool, err error) {
	done := metrics.TrackStorageQuery(s.dialect.Name, "average")
	defer func() { done(err) }()

	cond := buildConditions(s.dialect, spec)
	query := s.dialect.rebind("SELECT AVG(" + column + ") FROM " + s.table + cond.where())

	var avg sql.NullFloat64
	if err := s.db.QueryRowxContext(ctx, query, cond.args...).Scan(&avg); err != nil {
		return 0, false, fmt.Errorf("failed to average %s: %w", column, err)
	}
	if !avg.Valid {
		return 0, false, nil
	}
	return avg.Float64 / 1000, true, nil
}

func (s *Storage) AvailableMessageTypes(ctx context.Context, spec history.Specification) (types []string, err error) {
	done := metrics.TrackStorageQuery(s.dialect.Name, "message_types")
	defer func() { done(err) }()

	cond := buildConditions(s.dialect, spec)
	query := s.dialect.rebind("SELECT DISTINCT message_type FROM " + s.table + cond.where() + " ORDER BY message_type")

	types = []string{}
	if err := s.db.SelectContext(ctx, &types, query, cond.args...); err != nil {
		return nil, fmt.Errorf("failed to list message types: %w", err)
	}
	return types, nil
}
