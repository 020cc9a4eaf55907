package store

// migration is one forward-only schema step.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations must stay sorted by Version; applied steps are never edited.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create session and outreach_message",
		SQL: `
			CREATE TABLE session (
				id              TEXT PRIMARY KEY,
				session_context TEXT NOT NULL,
				user_id         TEXT NOT NULL,
				user_name       TEXT,
				created_at      TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE TABLE outreach_message (
				id          TEXT PRIMARY KEY,
				session_id  TEXT NOT NULL,
				type        TEXT NOT NULL,
				subject     TEXT NOT NULL,
				content     TEXT NOT NULL,
				timing      TEXT NOT NULL,
				order_no    INTEGER NOT NULL,
				FOREIGN KEY (session_id) REFERENCES session(id) ON DELETE CASCADE
			);

			CREATE INDEX idx_outreach_session ON outreach_message (session_id, order_no);
		`,
	},
	{
		Version: 2,
		Name:    "track session updates and finalization",
		SQL: `
			ALTER TABLE session ADD COLUMN updated_at TEXT;
			ALTER TABLE session ADD COLUMN finalized_at TEXT;
			UPDATE session SET updated_at = created_at;
		`,
	},
}
