package sqlite

import "fmt"

// schemaVersion is the version the bundled schema corresponds to. Opening a
// database whose user_version is lower triggers table and index creation.
const schemaVersion = 1

// schemaTemplate defines the entry table plus every secondary index the
// engine's lookups rely on. The %[1]s placeholder is the namespaced table
// name.
const schemaTemplate = `
CREATE TABLE IF NOT EXISTS %[1]s (
    id               TEXT PRIMARY KEY,
    user_id          TEXT NOT NULL,
    field_identifier TEXT NOT NULL,
    category         TEXT NOT NULL,
    subcategory      TEXT,
    content          TEXT NOT NULL,
    structured_data  TEXT,
    metadata         TEXT,
    version          INTEGER NOT NULL,
    is_current       INTEGER NOT NULL DEFAULT 0,
    local_changes    INTEGER NOT NULL DEFAULT 1,
    created_at       INTEGER NOT NULL,
    updated_at       INTEGER NOT NULL,
    last_synced_at   INTEGER
);

CREATE INDEX IF NOT EXISTS idx_%[1]s_user ON %[1]s(user_id);
CREATE INDEX IF NOT EXISTS idx_%[1]s_field ON %[1]s(field_identifier);
CREATE INDEX IF NOT EXISTS idx_%[1]s_user_field ON %[1]s(user_id, field_identifier);
CREATE INDEX IF NOT EXISTS idx_%[1]s_category ON %[1]s(category);
CREATE INDEX IF NOT EXISTS idx_%[1]s_user_category ON %[1]s(user_id, category);
CREATE INDEX IF NOT EXISTS idx_%[1]s_current ON %[1]s(is_current) WHERE is_current = 1;
CREATE INDEX IF NOT EXISTS idx_%[1]s_local_changes ON %[1]s(local_changes) WHERE local_changes = 1;
CREATE INDEX IF NOT EXISTS idx_%[1]s_last_synced ON %[1]s(last_synced_at);
`

// entryColumns is the canonical column list shared by every SELECT.
const entryColumns = `id, user_id, field_identifier, category, subcategory, content,
structured_data, metadata, version, is_current, local_changes,
created_at, updated_at, last_synced_at`

func schemaFor(table string) string {
	return fmt.Sprintf(schemaTemplate, table)
}
