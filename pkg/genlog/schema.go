package genlog

const schemaSQL = `
CREATE TABLE IF NOT EXISTS generations (
	id             TEXT PRIMARY KEY,
	provider       TEXT NOT NULL,
	text_length    INTEGER NOT NULL,
	cached         INTEGER NOT NULL DEFAULT 0,
	actual_cost    REAL NOT NULL DEFAULT 0,
	estimated_cost REAL NOT NULL DEFAULT 0,
	mode           TEXT NOT NULL DEFAULT '',
	created_at     TEXT NOT NULL,
	session_id     TEXT NOT NULL DEFAULT '',
	voice          TEXT NOT NULL DEFAULT '',
	hash           TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_generations_created ON generations(created_at);
CREATE INDEX IF NOT EXISTS idx_generations_session ON generations(session_id);
`
