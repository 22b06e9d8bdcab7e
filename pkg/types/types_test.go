package types

import (
	"errors"
	"testing"
)

func TestLogicalTypeRoundTrip(t *testing.T) {
	for typ, name := range logicalTypeNames {
		parsed, err := ParseLogicalType(name)
		if err != nil {
			t.Fatalf("ParseLogicalType(%q) failed: %v", name, err)
		}
		if parsed != typ {
			t.Errorf("ParseLogicalType(%q) = %v, want %v", name, parsed, typ)
		}
		if typ.String() != name {
			t.Errorf("%v.String() = %q, want %q", typ, typ.String(), name)
		}
	}
}

func TestParseLogicalTypeDefaults(t *testing.T) {
	typ, err := ParseLogicalType("")
	if err != nil {
		t.Fatalf("empty type name should not fail: %v", err)
	}
	if typ != TypeUnknown {
		t.Errorf("empty type name = %v, want TypeUnknown", typ)
	}

	if _, err := ParseLogicalType("TIMESTAMP"); !errors.Is(err, ErrInvalidDescriptor) {
		t.Errorf("unknown type name error = %v, want ErrInvalidDescriptor", err)
	}
}

func TestIsVariableWidth(t *testing.T) {
	variable := []LogicalType{TypeVarchar, TypeJSON, TypeArray, TypeMap, TypeStruct, TypeHLL, TypeBitmap}
	for _, typ := range variable {
		if !typ.IsVariableWidth() {
			t.Errorf("%v should be variable width", typ)
		}
	}
	// CHAR is fixed width: its storage width is the declared length.
	fixed := []LogicalType{TypeBoolean, TypeInt, TypeBigint, TypeChar, TypeDate, TypeDecimal128}
	for _, typ := range fixed {
		if typ.IsVariableWidth() {
			t.Errorf("%v should be fixed width", typ)
		}
	}
}

func TestParseKeysType(t *testing.T) {
	k, err := ParseKeysType("")
	if err != nil || k != DupKeys {
		t.Errorf("empty keys type = (%v, %v), want (DupKeys, nil)", k, err)
	}
	k, err = ParseKeysType("PRIMARY_KEYS")
	if err != nil || k != PrimaryKeys {
		t.Errorf("PRIMARY_KEYS = (%v, %v), want (PrimaryKeys, nil)", k, err)
	}
	if _, err := ParseKeysType("MERGE_KEYS"); !errors.Is(err, ErrInvalidDescriptor) {
		t.Errorf("unknown keys type error = %v, want ErrInvalidDescriptor", err)
	}
}

func TestParseAggregateType(t *testing.T) {
	a, err := ParseAggregateType("")
	if err != nil || a != AggNone {
		t.Errorf("empty aggregation = (%v, %v), want (AggNone, nil)", a, err)
	}
	a, err = ParseAggregateType("REPLACE_IF_NOT_NULL")
	if err != nil || a != AggReplaceIfNotNull {
		t.Errorf("REPLACE_IF_NOT_NULL = (%v, %v), want (AggReplaceIfNotNull, nil)", a, err)
	}
	if _, err := ParseAggregateType("AVG"); !errors.Is(err, ErrInvalidDescriptor) {
		t.Errorf("unknown aggregation error = %v, want ErrInvalidDescriptor", err)
	}
}

func TestParseCompressionType(t *testing.T) {
	c, err := ParseCompressionType("")
	if err != nil || c != DefaultCompression {
		t.Errorf("empty compression = (%v, %v), want (DefaultCompression, nil)", c, err)
	}
	c, err = ParseCompressionType("ZSTD")
	if err != nil || c != CompressionZstd {
		t.Errorf("ZSTD = (%v, %v), want (CompressionZstd, nil)", c, err)
	}
	if _, err := ParseCompressionType("BROTLI"); !errors.Is(err, ErrInvalidDescriptor) {
		t.Errorf("unknown compression error = %v, want ErrInvalidDescriptor", err)
	}
}
