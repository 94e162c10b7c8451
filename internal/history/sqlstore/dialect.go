package sqlstore

import (
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Dialect captures what differs between the supported SQL databases.
type Dialect struct {
	Name       string
	DriverName string
	BindType   int
	// Position is a format for the 1-based index of a substring (second
	// verb) in a string (first verb), 0 when absent.
	Position string
}

var (
	Postgres = Dialect{Name: "postgres", DriverName: "postgres", BindType: sqlx.DOLLAR, Position: "strpos(%s, %s)"}
	SQLite   = Dialect{Name: "sqlite", DriverName: "sqlite", BindType: sqlx.QUESTION, Position: "instr(%s, %s)"}
)

func (d Dialect) rebind(query string) string {
	return sqlx.Rebind(d.BindType, query)
}

// validID reports whether id can be stored in the id column. Postgres
// rejects malformed UUIDs instead of finding nothing.
func (d Dialect) validID(id string) bool {
	if d.Name != Postgres.Name {
		return id != ""
	}
	_, err := uuid.Parse(id)
	return err == nil
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS processed_messages (
	id              TEXT PRIMARY KEY,
	run_id          INTEGER NOT NULL,
	attempt         INTEGER NOT NULL DEFAULT 1,
	message_type    TEXT NOT NULL,
	description     TEXT,
	dispatched_at   INTEGER NOT NULL,
	received_at     INTEGER NOT NULL,
	finished_at     INTEGER NOT NULL,
	wait_time       INTEGER NOT NULL,
	handle_time     INTEGER NOT NULL,
	transport       TEXT NOT NULL,
	tags            TEXT,
	results         TEXT NOT NULL DEFAULT '[]',
	failure_type    TEXT,
	failure_message TEXT,
	memory_usage    INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_processed_messages_finished_at ON processed_messages (finished_at);
CREATE INDEX IF NOT EXISTS idx_processed_messages_type ON processed_messages (message_type, finished_at);
CREATE INDEX IF NOT EXISTS idx_processed_messages_run_id ON processed_messages (run_id);
`
