// Package catalog provides the durable schema catalog for tablet schema
// descriptors (catalog.db).
package catalog

// The schema catalog is a SQLite database that serves as the source of
// truth for all persisted tablet schema descriptors and the binding of
// tablets to schema versions.

// CreateTabletSchemasTableSQL creates the core schema table. Descriptor
// blobs are snappy-compressed JSON.
const CreateTabletSchemasTableSQL = `
CREATE TABLE IF NOT EXISTS tablet_schemas (
    schema_id INTEGER NOT NULL,
    schema_version INTEGER NOT NULL,
    schema_blob BLOB NOT NULL,
    created_at INTEGER NOT NULL,
    PRIMARY KEY (schema_id, schema_version)
)`

// CreateTabletsTableSQL creates the tablet binding table. Each tablet
// points at the schema version it currently serves.
const CreateTabletsTableSQL = `
CREATE TABLE IF NOT EXISTS tablets (
    tablet_id TEXT PRIMARY KEY,
    schema_id INTEGER NOT NULL,
    schema_version INTEGER NOT NULL,
    updated_at INTEGER NOT NULL,
    FOREIGN KEY (schema_id, schema_version)
        REFERENCES tablet_schemas(schema_id, schema_version)
)`

// CreateTabletsIndexSQL indexes tablets by schema for reverse lookups
// (which tablets still reference a schema version).
const CreateTabletsIndexSQL = `
CREATE INDEX IF NOT EXISTS idx_tablets_schema ON tablets(schema_id, schema_version)`

// AllSchemaSQL returns all SQL statements needed to initialize the
// schema catalog.
func AllSchemaSQL() []string {
	return []string{
		CreateTabletSchemasTableSQL,
		CreateTabletsTableSQL,
		CreateTabletsIndexSQL,
	}
}
