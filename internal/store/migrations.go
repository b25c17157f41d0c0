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
		Name:    "create entity history",
		SQL: `
			CREATE TABLE entity_history (
				seq         INTEGER PRIMARY KEY AUTOINCREMENT,
				entity_id   TEXT NOT NULL,
				mime        TEXT NOT NULL DEFAULT '',
				location    TEXT NOT NULL DEFAULT '',
				summary     TEXT NOT NULL DEFAULT '',
				entity      TEXT NOT NULL,
				accepted    INTEGER NOT NULL DEFAULT 0,
				cancelled   INTEGER NOT NULL DEFAULT 0,
				handlers    TEXT NOT NULL DEFAULT '[]',
				created_at  TEXT NOT NULL
			);

			CREATE INDEX idx_history_entity ON entity_history (entity_id);
			CREATE INDEX idx_history_mime ON entity_history (mime);
		`,
	},
	{
		Version: 2,
		Name:    "create history full-text index",
		SQL: `
			CREATE VIRTUAL TABLE history_fts USING fts5(
				summary,
				mime,
				location,
				content='entity_history',
				content_rowid='seq'
			);

			CREATE TRIGGER history_ai AFTER INSERT ON entity_history BEGIN
				INSERT INTO history_fts(rowid, summary, mime, location)
				VALUES (new.seq, new.summary, new.mime, new.location);
			END;

			CREATE TRIGGER history_ad AFTER DELETE ON entity_history BEGIN
				INSERT INTO history_fts(history_fts, rowid, summary, mime, location)
				VALUES ('delete', old.seq, old.summary, old.mime, old.location);
			END;
		`,
	},
	{
		Version: 3,
		Name:    "create plugin settings",
		SQL: `
			CREATE TABLE plugin_settings (
				plugin      TEXT NOT NULL,
				key         TEXT NOT NULL,
				value       TEXT NOT NULL,
				updated_at  TEXT NOT NULL DEFAULT (datetime('now')),
				PRIMARY KEY (plugin, key)
			);
		`,
	},
}
