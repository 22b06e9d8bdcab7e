// Package schemapb defines the decoded descriptor formats exchanged with
// the catalog and metadata services. These structs are the serialization
// boundary of the schema core: they carry every attribute of a tablet
// schema in a stable, self-describing form, and are marshalled as JSON
// wherever a byte representation is needed.
package schemapb

// InvalidSchemaVersion marks a descriptor whose schema version is unset.
const InvalidSchemaVersion = -1

// TabletSchemaPB is the serialized form of a tablet's column layout.
type TabletSchemaPB struct {
	// ID is the globally unique schema id (0 = unset).
	ID int64 `json:"id,omitempty"`

	// KeysType is the key comparison policy: DUP_KEYS, AGG_KEYS,
	// UNIQUE_KEYS, or PRIMARY_KEYS. Empty means DUP_KEYS.
	KeysType string `json:"keys_type,omitempty"`

	// Columns holds the column descriptors in physical order.
	Columns []ColumnPB `json:"columns"`

	// NumShortKeyColumns is the number of prefix columns covered by the
	// sparse short-key index.
	NumShortKeyColumns int `json:"num_short_key_columns,omitempty"`

	// NumRowsPerRowBlock is the row-block sizing hint.
	NumRowsPerRowBlock int `json:"num_rows_per_row_block,omitempty"`

	// BloomFilterFPP is the bloom filter false positive probability.
	// Nil means no tablet-level bloom filter setting.
	BloomFilterFPP *float64 `json:"bf_fpp,omitempty"`

	// CompressionType names the block compression codec. Empty means the
	// engine default.
	CompressionType string `json:"compression_type,omitempty"`

	// NextColumnUniqueID is the next unused column unique id.
	NextColumnUniqueID int64 `json:"next_column_unique_id,omitempty"`

	// SortKeyIdxes lists the ordinals of the sort key columns, in sort
	// order.
	SortKeyIdxes []int `json:"sort_key_idxes,omitempty"`

	// SchemaVersion tracks schema evolution. Nil means unset
	// (InvalidSchemaVersion after decode).
	SchemaVersion *int `json:"schema_version,omitempty"`
}

// ColumnPB is the serialized form of a single column descriptor.
type ColumnPB struct {
	// UniqueID is the column's stable id across schema evolution.
	UniqueID int32 `json:"unique_id"`

	// Name is the column name.
	Name string `json:"name"`

	// Type names the logical type (see types.ParseLogicalType).
	Type string `json:"type"`

	// IsKey marks the column as part of the tablet key.
	IsKey bool `json:"is_key,omitempty"`

	// IsNullable marks the column as accepting NULL values.
	IsNullable bool `json:"is_nullable,omitempty"`

	// Aggregation names the merge policy for value columns. Empty means
	// NONE.
	Aggregation string `json:"aggregation,omitempty"`

	// Length is the declared storage length.
	Length int32 `json:"length,omitempty"`

	// IndexLength is the prefix length covered by the short-key index.
	IndexLength int32 `json:"index_length,omitempty"`

	// Precision and Scale apply to decimal columns. Nil means unset.
	Precision *int32 `json:"precision,omitempty"`
	Scale     *int32 `json:"frac,omitempty"`

	// DefaultValue is the column default. Nil means no default; an empty
	// string default is distinct from no default.
	DefaultValue *string `json:"default_value,omitempty"`

	// IsBloomFilterColumn marks the column for bloom filter indexing.
	IsBloomFilterColumn bool `json:"is_bf_column,omitempty"`

	// HasBitmapIndex marks the column as carrying a bitmap index.
	HasBitmapIndex bool `json:"has_bitmap_index,omitempty"`

	// IsAutoIncrement marks the column as auto-increment.
	IsAutoIncrement bool `json:"is_auto_increment,omitempty"`

	// IsSortKey marks the column as a member of the tablet sort key.
	IsSortKey bool `json:"is_sort_key,omitempty"`

	// Children holds nested column descriptors for composite types
	// (ARRAY, MAP, STRUCT).
	Children []ColumnPB `json:"children_columns,omitempty"`
}

// TColumn is the reduced column definition received from the metadata
// service over RPC, used when a tablet is created from a table
// definition rather than from a previously persisted descriptor.
type TColumn struct {
	ColumnName      string  `json:"column_name"`
	ColUniqueID     int32   `json:"col_unique_id"`
	Type            string  `json:"type"`
	AggregationType string  `json:"aggregation_type,omitempty"`
	IsKey           bool    `json:"is_key,omitempty"`
	IsAllowNull     bool    `json:"is_allow_null,omitempty"`
	IsAutoIncrement bool    `json:"is_auto_increment,omitempty"`
	DefaultValue    *string `json:"default_value,omitempty"`
	ColumnLen       int32   `json:"column_len,omitempty"`
	IndexLen        int32   `json:"index_len,omitempty"`
	Precision       *int32  `json:"precision,omitempty"`
	Scale           *int32  `json:"scale,omitempty"`
	IsBloomFilter   bool    `json:"is_bloom_filter_column,omitempty"`
}

// TabletIndexPB describes one materialized index of a table: the schema
// subset and metadata for a specific index version. Index columns may
// reference base-table columns by unique id without repeating their full
// metadata.
type TabletIndexPB struct {
	// IndexID identifies the materialized index.
	IndexID int64 `json:"index_id"`

	// SchemaHash is the legacy schema hash of the index.
	SchemaHash int64 `json:"schema_hash,omitempty"`

	// Columns holds the index's column definitions. A column with only
	// UniqueID set is resolved against the originating tablet schema.
	Columns []ColumnPB `json:"columns"`

	// NumShortKeyColumns overrides the short-key count for this index.
	NumShortKeyColumns int `json:"num_short_key_columns,omitempty"`

	// SortKeyIdxes overrides the sort key ordinals for this index.
	SortKeyIdxes []int `json:"sort_key_idxes,omitempty"`
}
