// Package types provides core data types for the tabletmeta schema engine.
package types

import "fmt"

// LogicalType identifies the logical type of a column's values.
type LogicalType uint8

const (
	TypeUnknown LogicalType = iota
	TypeBoolean
	TypeTinyint
	TypeSmallint
	TypeInt
	TypeBigint
	TypeLargeint
	TypeFloat
	TypeDouble
	TypeDecimal32
	TypeDecimal64
	TypeDecimal128
	TypeDate
	TypeDatetime
	TypeChar
	TypeVarchar
	TypeJSON
	TypeArray
	TypeMap
	TypeStruct
	TypeHLL
	TypeBitmap
)

var logicalTypeNames = map[LogicalType]string{
	TypeUnknown:    "UNKNOWN",
	TypeBoolean:    "BOOLEAN",
	TypeTinyint:    "TINYINT",
	TypeSmallint:   "SMALLINT",
	TypeInt:        "INT",
	TypeBigint:     "BIGINT",
	TypeLargeint:   "LARGEINT",
	TypeFloat:      "FLOAT",
	TypeDouble:     "DOUBLE",
	TypeDecimal32:  "DECIMAL32",
	TypeDecimal64:  "DECIMAL64",
	TypeDecimal128: "DECIMAL128",
	TypeDate:       "DATE",
	TypeDatetime:   "DATETIME",
	TypeChar:       "CHAR",
	TypeVarchar:    "VARCHAR",
	TypeJSON:       "JSON",
	TypeArray:      "ARRAY",
	TypeMap:        "MAP",
	TypeStruct:     "STRUCT",
	TypeHLL:        "HLL",
	TypeBitmap:     "BITMAP",
}

var logicalTypesByName = invert(logicalTypeNames)

// String returns the canonical name of the logical type.
func (t LogicalType) String() string {
	if name, ok := logicalTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("LogicalType(%d)", uint8(t))
}

// ParseLogicalType resolves a type name to a LogicalType.
// An empty name resolves to TypeUnknown.
func ParseLogicalType(name string) (LogicalType, error) {
	if name == "" {
		return TypeUnknown, nil
	}
	if t, ok := logicalTypesByName[name]; ok {
		return t, nil
	}
	return TypeUnknown, fmt.Errorf("%w: logical type %q", ErrInvalidDescriptor, name)
}

// IsVariableWidth reports whether values of this type have no fixed
// storage width. CHAR is fixed: its width is the declared length.
func (t LogicalType) IsVariableWidth() bool {
	switch t {
	case TypeVarchar, TypeJSON, TypeArray, TypeMap, TypeStruct, TypeHLL, TypeBitmap:
		return true
	default:
		return false
	}
}

// KeysType identifies the key comparison policy of a tablet.
type KeysType uint8

const (
	DupKeys KeysType = iota
	AggKeys
	UniqueKeys
	PrimaryKeys
)

var keysTypeNames = map[KeysType]string{
	DupKeys:     "DUP_KEYS",
	AggKeys:     "AGG_KEYS",
	UniqueKeys:  "UNIQUE_KEYS",
	PrimaryKeys: "PRIMARY_KEYS",
}

var keysTypesByName = invert(keysTypeNames)

func (k KeysType) String() string {
	if name, ok := keysTypeNames[k]; ok {
		return name
	}
	return fmt.Sprintf("KeysType(%d)", uint8(k))
}

// ParseKeysType resolves a keys-type name. An empty name resolves to
// DupKeys, the engine default.
func ParseKeysType(name string) (KeysType, error) {
	if name == "" {
		return DupKeys, nil
	}
	if k, ok := keysTypesByName[name]; ok {
		return k, nil
	}
	return DupKeys, fmt.Errorf("%w: keys type %q", ErrInvalidDescriptor, name)
}

// AggregateType identifies the merge policy applied to a value column
// when rows with equal keys are combined.
type AggregateType uint8

const (
	AggNone AggregateType = iota
	AggSum
	AggMin
	AggMax
	AggReplace
	AggReplaceIfNotNull
	AggHLLUnion
	AggBitmapUnion
)

var aggregateTypeNames = map[AggregateType]string{
	AggNone:             "NONE",
	AggSum:              "SUM",
	AggMin:              "MIN",
	AggMax:              "MAX",
	AggReplace:          "REPLACE",
	AggReplaceIfNotNull: "REPLACE_IF_NOT_NULL",
	AggHLLUnion:         "HLL_UNION",
	AggBitmapUnion:      "BITMAP_UNION",
}

var aggregateTypesByName = invert(aggregateTypeNames)

func (a AggregateType) String() string {
	if name, ok := aggregateTypeNames[a]; ok {
		return name
	}
	return fmt.Sprintf("AggregateType(%d)", uint8(a))
}

// ParseAggregateType resolves an aggregation name. An empty name
// resolves to AggNone.
func ParseAggregateType(name string) (AggregateType, error) {
	if name == "" {
		return AggNone, nil
	}
	if a, ok := aggregateTypesByName[name]; ok {
		return a, nil
	}
	return AggNone, fmt.Errorf("%w: aggregate type %q", ErrInvalidDescriptor, name)
}

// CompressionType identifies the block compression codec for a tablet.
type CompressionType uint8

const (
	CompressionNone CompressionType = iota
	CompressionSnappy
	CompressionLZ4
	CompressionLZ4Frame
	CompressionZlib
	CompressionZstd
)

// DefaultCompression is applied when a decoded descriptor does not name
// a codec.
const DefaultCompression = CompressionSnappy

var compressionTypeNames = map[CompressionType]string{
	CompressionNone:     "NONE",
	CompressionSnappy:   "SNAPPY",
	CompressionLZ4:      "LZ4",
	CompressionLZ4Frame: "LZ4_FRAME",
	CompressionZlib:     "ZLIB",
	CompressionZstd:     "ZSTD",
}

var compressionTypesByName = invert(compressionTypeNames)

func (c CompressionType) String() string {
	if name, ok := compressionTypeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("CompressionType(%d)", uint8(c))
}

// ParseCompressionType resolves a codec name. An empty name resolves to
// DefaultCompression.
func ParseCompressionType(name string) (CompressionType, error) {
	if name == "" {
		return DefaultCompression, nil
	}
	if c, ok := compressionTypesByName[name]; ok {
		return c, nil
	}
	return DefaultCompression, fmt.Errorf("%w: compression type %q", ErrInvalidDescriptor, name)
}

func invert[E comparable](m map[E]string) map[string]E {
	out := make(map[string]E, len(m))
	for k, v := range m {
		out[v] = k
	}
	return out
}
