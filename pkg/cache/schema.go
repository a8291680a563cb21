package cache

const schemaSQL = `
CREATE TABLE IF NOT EXISTS audio_cache (
	hash         TEXT PRIMARY KEY,
	text         TEXT NOT NULL,
	voice_name   TEXT NOT NULL,
	audio_url    TEXT NOT NULL,
	content_type TEXT NOT NULL DEFAULT '',
	bitrate      INTEGER NOT NULL DEFAULT 0,
	expires_at   TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_audio_cache_expires ON audio_cache(expires_at);
`
