package sqlite

const schema = `
CREATE TABLE IF NOT EXISTS inbox_activity (
	client_id          TEXT PRIMARY KEY,
	inbox_id           TEXT NOT NULL,
	last_activity_unix INTEGER,
	conversation_count INTEGER NOT NULL DEFAULT 0,
	created_at_unix    INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS pending_invite (
	client_id              TEXT PRIMARY KEY,
	inbox_id               TEXT NOT NULL,
	pending_conversation_ids TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS conversation_metadata (
	conversation_id   TEXT PRIMARY KEY,
	owner_inbox_id    TEXT NOT NULL,
	is_locked         INTEGER NOT NULL DEFAULT 0,
	invite_tag        TEXT NOT NULL DEFAULT '',
	expires_at_unix   INTEGER,
	name              TEXT NOT NULL DEFAULT '',
	description       TEXT NOT NULL DEFAULT '',
	image_url         TEXT NOT NULL DEFAULT '',
	compact_blob      BLOB
);

CREATE TABLE IF NOT EXISTS conversation_member (
	conversation_id TEXT NOT NULL,
	member_inbox_id TEXT NOT NULL,
	role            INTEGER NOT NULL,
	PRIMARY KEY (conversation_id, member_inbox_id)
);
`
