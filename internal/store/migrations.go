package store

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create accounts, queue and dedup index",
		SQL: `
			CREATE TABLE accounts (
				id          TEXT PRIMARY KEY,
				name        TEXT NOT NULL DEFAULT '',
				credential  TEXT NOT NULL DEFAULT '',
				state       TEXT NOT NULL DEFAULT 'pending',
				msg_count   INTEGER NOT NULL DEFAULT 0,
				err_count   INTEGER NOT NULL DEFAULT 0,
				quality     REAL NOT NULL DEFAULT 0,
				sampled_at  TEXT NOT NULL DEFAULT '',
				created_at  TEXT NOT NULL DEFAULT (datetime('now')),
				updated_at  TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE TABLE ingest_queue (
				id          INTEGER PRIMARY KEY AUTOINCREMENT,
				msg_id      TEXT NOT NULL,
				channel_id  TEXT NOT NULL,
				payload     TEXT NOT NULL,
				status      INTEGER NOT NULL DEFAULT 0,
				enqueued_at TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE UNIQUE INDEX idx_queue_msg ON ingest_queue (msg_id);
			CREATE INDEX idx_queue_status ON ingest_queue (status, id);

			CREATE TABLE seen_messages (
				msg_id     TEXT PRIMARY KEY,
				first_seen TEXT NOT NULL
			);

			CREATE INDEX idx_seen_first ON seen_messages (first_seen);
		`,
	},
	{
		Version: 2,
		Name:    "create mappings, feedback and learned pairs",
		SQL: `
			CREATE TABLE mappings (
				id             INTEGER PRIMARY KEY AUTOINCREMENT,
				source_channel TEXT NOT NULL,
				platform       TEXT NOT NULL,
				bot_id         TEXT NOT NULL,
				dest_channel   TEXT NOT NULL,
				enabled        INTEGER NOT NULL DEFAULT 1,
				created_at     TEXT NOT NULL DEFAULT (datetime('now')),
				UNIQUE (source_channel, platform, bot_id, dest_channel)
			);

			CREATE INDEX idx_mappings_source ON mappings (source_channel, enabled);

			CREATE TABLE mapping_feedback (
				id             INTEGER PRIMARY KEY AUTOINCREMENT,
				source_channel TEXT NOT NULL,
				dest_key       TEXT NOT NULL,
				accepted       INTEGER NOT NULL,
				created_at     TEXT NOT NULL
			);

			CREATE INDEX idx_feedback_age ON mapping_feedback (created_at);

			CREATE TABLE learned_pairs (
				source_channel TEXT NOT NULL,
				dest_key       TEXT NOT NULL,
				use_count      REAL NOT NULL DEFAULT 0,
				last_used      TEXT NOT NULL,
				PRIMARY KEY (source_channel, dest_key)
			);
		`,
	},
	{
		Version: 3,
		Name:    "create retry records, delivery log and media failures",
		SQL: `
			CREATE TABLE retry_records (
				id            TEXT PRIMARY KEY,
				task          TEXT NOT NULL,
				dest_key      TEXT NOT NULL,
				retry_count   INTEGER NOT NULL DEFAULT 0,
				last_error    TEXT NOT NULL DEFAULT '',
				next_eligible TEXT NOT NULL,
				state         TEXT NOT NULL DEFAULT 'retrying',
				created_at    TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE INDEX idx_retry_due ON retry_records (state, next_eligible);

			CREATE TABLE delivery_log (
				id             INTEGER PRIMARY KEY AUTOINCREMENT,
				task_id        TEXT NOT NULL,
				source_msg_id  TEXT NOT NULL,
				source_channel TEXT NOT NULL,
				dest_key       TEXT NOT NULL,
				status         TEXT NOT NULL,
				latency_ms     INTEGER NOT NULL DEFAULT 0,
				error          TEXT NOT NULL DEFAULT '',
				created_at     TEXT NOT NULL
			);

			CREATE INDEX idx_log_time ON delivery_log (created_at);
			CREATE INDEX idx_log_dest ON delivery_log (dest_key, created_at);

			CREATE TABLE media_failures (
				id          INTEGER PRIMARY KEY AUTOINCREMENT,
				source_url  TEXT NOT NULL,
				dest_key    TEXT NOT NULL DEFAULT '',
				reason      TEXT NOT NULL DEFAULT '',
				created_at  TEXT NOT NULL DEFAULT (datetime('now'))
			);
		`,
	},
}
