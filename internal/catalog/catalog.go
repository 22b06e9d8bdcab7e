package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/golang/snappy"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/arkilian/tabletmeta/internal/tablet"
	"github.com/arkilian/tabletmeta/pkg/schemapb"
)

// Catalog errors.
var (
	ErrSchemaNotFound  = errors.New("schema not found in catalog")
	ErrTabletNotFound  = errors.New("tablet not found in catalog")
	ErrInvalidSchemaID = errors.New("schema id must not be the invalid id")
)

// SchemaRecord is one stored schema version.
type SchemaRecord struct {
	SchemaID      int64
	SchemaVersion int
	Descriptor    *schemapb.TabletSchemaPB
	CreatedAt     time.Time
}

// Catalog persists tablet schema descriptors and tablet bindings.
type Catalog interface {
	// PutSchema validates and stores a descriptor. The descriptor must
	// decode cleanly; invalid descriptors are never persisted. Storing
	// the same (id, version) again replaces the blob.
	PutSchema(ctx context.Context, pb *schemapb.TabletSchemaPB) error

	// GetSchema retrieves one stored schema version.
	GetSchema(ctx context.Context, schemaID int64, version int) (*schemapb.TabletSchemaPB, error)

	// ListSchemas returns all stored schema versions ordered by
	// (schema_id, schema_version).
	ListSchemas(ctx context.Context) ([]SchemaRecord, error)

	// DeleteSchema removes one stored schema version.
	DeleteSchema(ctx context.Context, schemaID int64, version int) error

	// RegisterTablet creates a new tablet bound to a stored schema
	// version and returns its generated id.
	RegisterTablet(ctx context.Context, schemaID int64, version int) (string, error)

	// GetTabletSchema returns the descriptor the given tablet is bound to.
	GetTabletSchema(ctx context.Context, tabletID string) (*schemapb.TabletSchemaPB, error)

	// WarmSchemaMap decodes every stored descriptor through the given
	// interning map, so structurally equal schemas share one instance
	// after startup. Returns the number of descriptors loaded.
	WarmSchemaMap(ctx context.Context, m *tablet.SchemaMap) (int, error)

	// Close closes the catalog database connections.
	Close() error
}

// SQLiteCatalog implements Catalog using SQLite.
type SQLiteCatalog struct {
	db     *sql.DB // write connection (single writer)
	readDB *sql.DB // read connection pool (concurrent readers)
	dbPath string
}

// NewCatalog creates a new SQLite-based schema catalog.
func NewCatalog(dbPath string) (*SQLiteCatalog, error) {
	// Write connection: single writer with WAL mode.
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, stmt := range AllSchemaSQL() {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("catalog: failed to initialize schema: %w", err)
		}
	}

	// Read connection pool: concurrent readers.
	readDB, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("catalog: failed to open read database: %w", err)
	}
	readDB.SetMaxOpenConns(4)
	readDB.SetMaxIdleConns(4)
	readDB.SetConnMaxLifetime(5 * time.Minute)

	return &SQLiteCatalog{db: db, readDB: readDB, dbPath: dbPath}, nil
}

// Close closes the catalog database connections.
func (c *SQLiteCatalog) Close() error {
	rerr := c.readDB.Close()
	werr := c.db.Close()
	if werr != nil {
		return werr
	}
	return rerr
}

// PutSchema validates and stores a descriptor.
func (c *SQLiteCatalog) PutSchema(ctx context.Context, pb *schemapb.TabletSchemaPB) error {
	if pb.ID == tablet.InvalidSchemaID {
		return fmt.Errorf("catalog: put schema: %w", ErrInvalidSchemaID)
	}
	// Decode before persisting: a descriptor the engine cannot decode
	// must never enter the catalog.
	if _, err := tablet.SchemaFromPB(pb); err != nil {
		return fmt.Errorf("catalog: put schema %d: %w", pb.ID, err)
	}

	blob, err := encodeBlob(pb)
	if err != nil {
		return fmt.Errorf("catalog: put schema %d: %w", pb.ID, err)
	}

	_, err = c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO tablet_schemas (schema_id, schema_version, schema_blob, created_at)
		 VALUES (?, ?, ?, ?)`,
		pb.ID, descriptorVersion(pb), blob, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("catalog: failed to store schema %d: %w", pb.ID, err)
	}
	return nil
}

// GetSchema retrieves one stored schema version.
func (c *SQLiteCatalog) GetSchema(ctx context.Context, schemaID int64, version int) (*schemapb.TabletSchemaPB, error) {
	var blob []byte
	err := c.readDB.QueryRowContext(ctx,
		"SELECT schema_blob FROM tablet_schemas WHERE schema_id = ? AND schema_version = ?",
		schemaID, version,
	).Scan(&blob)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("catalog: schema %d version %d: %w", schemaID, version, ErrSchemaNotFound)
		}
		return nil, fmt.Errorf("catalog: failed to get schema %d: %w", schemaID, err)
	}
	return decodeBlob(blob)
}

// ListSchemas returns all stored schema versions.
func (c *SQLiteCatalog) ListSchemas(ctx context.Context) ([]SchemaRecord, error) {
	rows, err := c.readDB.QueryContext(ctx,
		`SELECT schema_id, schema_version, schema_blob, created_at
		 FROM tablet_schemas ORDER BY schema_id, schema_version`,
	)
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to list schemas: %w", err)
	}
	defer rows.Close()

	var records []SchemaRecord
	for rows.Next() {
		var rec SchemaRecord
		var blob []byte
		var createdAt int64
		if err := rows.Scan(&rec.SchemaID, &rec.SchemaVersion, &blob, &createdAt); err != nil {
			return nil, fmt.Errorf("catalog: failed to scan schema row: %w", err)
		}
		pb, err := decodeBlob(blob)
		if err != nil {
			return nil, err
		}
		rec.Descriptor = pb
		rec.CreatedAt = time.Unix(createdAt, 0)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: error iterating schemas: %w", err)
	}
	return records, nil
}

// DeleteSchema removes one stored schema version.
func (c *SQLiteCatalog) DeleteSchema(ctx context.Context, schemaID int64, version int) error {
	_, err := c.db.ExecContext(ctx,
		"DELETE FROM tablet_schemas WHERE schema_id = ? AND schema_version = ?",
		schemaID, version,
	)
	if err != nil {
		return fmt.Errorf("catalog: failed to delete schema %d: %w", schemaID, err)
	}
	return nil
}

// RegisterTablet creates a new tablet bound to a stored schema version.
func (c *SQLiteCatalog) RegisterTablet(ctx context.Context, schemaID int64, version int) (string, error) {
	// The binding must reference a stored schema.
	if _, err := c.GetSchema(ctx, schemaID, version); err != nil {
		return "", err
	}

	tabletID := uuid.NewString()
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO tablets (tablet_id, schema_id, schema_version, updated_at)
		 VALUES (?, ?, ?, ?)`,
		tabletID, schemaID, version, time.Now().Unix(),
	)
	if err != nil {
		return "", fmt.Errorf("catalog: failed to register tablet: %w", err)
	}
	return tabletID, nil
}

// GetTabletSchema returns the descriptor the given tablet is bound to.
func (c *SQLiteCatalog) GetTabletSchema(ctx context.Context, tabletID string) (*schemapb.TabletSchemaPB, error) {
	var schemaID int64
	var version int
	err := c.readDB.QueryRowContext(ctx,
		"SELECT schema_id, schema_version FROM tablets WHERE tablet_id = ?",
		tabletID,
	).Scan(&schemaID, &version)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("catalog: tablet %s: %w", tabletID, ErrTabletNotFound)
		}
		return nil, fmt.Errorf("catalog: failed to get tablet %s: %w", tabletID, err)
	}
	return c.GetSchema(ctx, schemaID, version)
}

// WarmSchemaMap decodes every stored descriptor through the interning map.
func (c *SQLiteCatalog) WarmSchemaMap(ctx context.Context, m *tablet.SchemaMap) (int, error) {
	records, err := c.ListSchemas(ctx)
	if err != nil {
		return 0, err
	}
	loaded := 0
	for _, rec := range records {
		if _, err := m.GetOrCreate(rec.Descriptor); err != nil {
			return loaded, fmt.Errorf("catalog: warm schema %d: %w", rec.SchemaID, err)
		}
		loaded++
	}
	stats := m.Stats()
	log.Printf("catalog: warmed schema map with %d descriptors (%d distinct, %d bytes saved)",
		loaded, stats.NumItems, stats.SavedMemUsage)
	return loaded, nil
}

// descriptorVersion maps an unset schema version to 0 for storage keys.
func descriptorVersion(pb *schemapb.TabletSchemaPB) int {
	if pb.SchemaVersion == nil {
		return 0
	}
	return *pb.SchemaVersion
}

// encodeBlob marshals a descriptor and compresses it with snappy.
func encodeBlob(pb *schemapb.TabletSchemaPB) ([]byte, error) {
	raw, err := json.Marshal(pb)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal descriptor: %w", err)
	}
	return snappy.Encode(nil, raw), nil
}

// decodeBlob decompresses and unmarshals a stored descriptor blob.
func decodeBlob(blob []byte) (*schemapb.TabletSchemaPB, error) {
	raw, err := snappy.Decode(nil, blob)
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to decompress descriptor: %w", err)
	}
	var pb schemapb.TabletSchemaPB
	if err := json.Unmarshal(raw, &pb); err != nil {
		return nil, fmt.Errorf("catalog: failed to unmarshal descriptor: %w", err)
	}
	return &pb, nil
}
