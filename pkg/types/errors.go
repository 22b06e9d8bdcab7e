package types

import "errors"

// Schema descriptor errors
var (
	// ErrInvalidDescriptor is returned when a decoded descriptor is
	// structurally invalid (bad enum value, malformed field).
	ErrInvalidDescriptor = errors.New("invalid schema descriptor")

	// ErrDuplicateColumnID is returned when a descriptor assigns the same
	// unique id to more than one column.
	ErrDuplicateColumnID = errors.New("duplicate column unique id")

	// ErrColumnNotFound is returned when a referenced column unique id
	// does not exist in the schema.
	ErrColumnNotFound = errors.New("column not found")

	// ErrOrdinalOutOfRange is returned when a column ordinal is outside
	// [0, num_columns).
	ErrOrdinalOutOfRange = errors.New("column ordinal out of range")

	// ErrSchemaPublished is returned by mutators invoked after a schema
	// has been interned or its execution schema has been built.
	ErrSchemaPublished = errors.New("schema is published and read-only")
)
