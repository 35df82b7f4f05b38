package store

// schemaVersion1 is the initial catalog layout.
const schemaVersion1 = 1

const currentSchemaVersion = schemaVersion1

var schemaV1 = `
CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL);

CREATE TABLE IF NOT EXISTS runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	dir TEXT NOT NULL,
	started_at TEXT NOT NULL,
	scanned INTEGER NOT NULL,
	unique_count INTEGER NOT NULL,
	incomplete INTEGER NOT NULL,
	errors INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS buckets (
	run_id INTEGER NOT NULL,
	representative TEXT NOT NULL,
	signature TEXT NOT NULL,
	categories TEXT NOT NULL,
	PRIMARY KEY (run_id, representative),
	FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_buckets_signature ON buckets(signature);
`
