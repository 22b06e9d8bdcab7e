// Package tablet implements the in-memory schema model of the storage
// engine: column descriptors, tablet schemas with their derived lookup
// indexes, structural schema interning, and the lazily built execution
// schema consumed by the read path.
package tablet

import (
	"fmt"
	"strings"
	"unsafe"

	"github.com/arkilian/tabletmeta/pkg/schemapb"
	"github.com/arkilian/tabletmeta/pkg/types"
)

// Flag bit positions inside TabletColumn.flags. The packing is an
// implementation detail; only the named accessors are exposed.
const (
	flagIsKey uint8 = 1 << iota
	flagIsNullable
	flagIsBloomFilterColumn
	flagHasBitmapIndex
	flagHasPrecision
	flagHasScale
	flagIsAutoIncrement
	flagIsSortKey
)

// extraFields holds the rarely used column attributes. It is allocated
// on first write of a default value or sub-column so the common-case
// TabletColumn stays small across millions of live descriptors.
type extraFields struct {
	defaultValue    string
	subColumns      []TabletColumn
	hasDefaultValue bool
}

func (e *extraFields) clone() *extraFields {
	if e == nil {
		return nil
	}
	cp := &extraFields{
		defaultValue:    e.defaultValue,
		hasDefaultValue: e.hasDefaultValue,
	}
	if len(e.subColumns) > 0 {
		cp.subColumns = make([]TabletColumn, len(e.subColumns))
		for i := range e.subColumns {
			cp.subColumns[i] = e.subColumns[i].Clone()
		}
	}
	return cp
}

// TabletColumn is the static metadata of a single column. Field order
// matters: keep the layout packed, the engine holds one of these per
// column per live schema.
type TabletColumn struct {
	name        string
	extra       *extraFields
	uniqueID    int32
	length      int32
	aggregation types.AggregateType
	typ         types.LogicalType
	indexLength uint8
	precision   uint8
	scale       uint8
	flags       uint8
}

// NewColumn creates a synthetic column with the given merge policy and
// logical type. Used for internally generated columns.
func NewColumn(agg types.AggregateType, typ types.LogicalType) TabletColumn {
	return TabletColumn{aggregation: agg, typ: typ}
}

// NewNullableColumn creates a synthetic column with explicit nullability.
func NewNullableColumn(agg types.AggregateType, typ types.LogicalType, nullable bool) TabletColumn {
	c := NewColumn(agg, typ)
	c.SetIsNullable(nullable)
	return c
}

// NewSizedColumn creates a synthetic column with a unique id and a
// declared storage length.
func NewSizedColumn(agg types.AggregateType, typ types.LogicalType, nullable bool, uniqueID int32, length int32) TabletColumn {
	c := NewNullableColumn(agg, typ, nullable)
	c.uniqueID = uniqueID
	c.length = length
	return c
}

// ColumnFromPB decodes a persisted column descriptor.
func ColumnFromPB(pb *schemapb.ColumnPB) (TabletColumn, error) {
	var c TabletColumn

	typ, err := types.ParseLogicalType(pb.Type)
	if err != nil {
		return c, fmt.Errorf("tablet: column %q: %w", pb.Name, err)
	}
	agg, err := types.ParseAggregateType(pb.Aggregation)
	if err != nil {
		return c, fmt.Errorf("tablet: column %q: %w", pb.Name, err)
	}

	indexLength, err := byteWidth(pb.Name, "index length", pb.IndexLength)
	if err != nil {
		return c, err
	}

	c.name = pb.Name
	c.uniqueID = pb.UniqueID
	c.typ = typ
	c.aggregation = agg
	c.length = pb.Length
	c.indexLength = indexLength
	c.SetIsKey(pb.IsKey)
	c.SetIsNullable(pb.IsNullable)
	c.SetIsBloomFilterColumn(pb.IsBloomFilterColumn)
	c.SetHasBitmapIndex(pb.HasBitmapIndex)
	c.SetIsAutoIncrement(pb.IsAutoIncrement)
	c.SetIsSortKey(pb.IsSortKey)
	if pb.Precision != nil {
		p, err := byteWidth(pb.Name, "precision", *pb.Precision)
		if err != nil {
			return c, err
		}
		c.SetPrecision(p)
	}
	if pb.Scale != nil {
		s, err := byteWidth(pb.Name, "scale", *pb.Scale)
		if err != nil {
			return c, err
		}
		c.SetScale(s)
	}
	if pb.DefaultValue != nil {
		c.SetDefaultValue(*pb.DefaultValue)
	}
	for i := range pb.Children {
		sub, err := ColumnFromPB(&pb.Children[i])
		if err != nil {
			return TabletColumn{}, err
		}
		c.AddSubColumn(sub)
	}
	return c, nil
}

// ColumnFromTColumn decodes a column definition received from the
// metadata service. The reduced field set must still yield a descriptor
// satisfying the same invariants as ColumnFromPB.
func ColumnFromTColumn(tc *schemapb.TColumn) (TabletColumn, error) {
	var c TabletColumn

	typ, err := types.ParseLogicalType(tc.Type)
	if err != nil {
		return c, fmt.Errorf("tablet: column %q: %w", tc.ColumnName, err)
	}
	agg, err := types.ParseAggregateType(tc.AggregationType)
	if err != nil {
		return c, fmt.Errorf("tablet: column %q: %w", tc.ColumnName, err)
	}

	indexLength, err := byteWidth(tc.ColumnName, "index length", tc.IndexLen)
	if err != nil {
		return c, err
	}

	c.name = tc.ColumnName
	c.uniqueID = tc.ColUniqueID
	c.typ = typ
	c.aggregation = agg
	c.length = tc.ColumnLen
	if c.length == 0 {
		c.length = int32(FieldLengthByType(typ, 0))
	}
	c.indexLength = indexLength
	c.SetIsKey(tc.IsKey)
	c.SetIsNullable(tc.IsAllowNull)
	c.SetIsAutoIncrement(tc.IsAutoIncrement)
	c.SetIsBloomFilterColumn(tc.IsBloomFilter)
	if tc.Precision != nil {
		p, err := byteWidth(tc.ColumnName, "precision", *tc.Precision)
		if err != nil {
			return c, err
		}
		c.SetPrecision(p)
	}
	if tc.Scale != nil {
		s, err := byteWidth(tc.ColumnName, "scale", *tc.Scale)
		if err != nil {
			return c, err
		}
		c.SetScale(s)
	}
	if tc.DefaultValue != nil {
		c.SetDefaultValue(*tc.DefaultValue)
	}
	return c, nil
}

// byteWidth narrows a descriptor width field to the byte-sized storage
// the column layout uses. Out-of-range values fail the decode; silent
// truncation would make the encode round trip lossy.
func byteWidth(column, field string, v int32) (uint8, error) {
	if v < 0 || v > 255 {
		return 0, fmt.Errorf("tablet: column %q: %w: %s %d out of range [0, 255]",
			column, types.ErrInvalidDescriptor, field, v)
	}
	return uint8(v), nil
}

// ToPB re-encodes the column into its descriptor form. The round trip
// ColumnFromPB -> ToPB -> ColumnFromPB is lossless.
func (c *TabletColumn) ToPB() schemapb.ColumnPB {
	pb := schemapb.ColumnPB{
		UniqueID:            c.uniqueID,
		Name:                c.name,
		Type:                c.typ.String(),
		IsKey:               c.IsKey(),
		IsNullable:          c.IsNullable(),
		Aggregation:         c.aggregation.String(),
		Length:              c.length,
		IndexLength:         int32(c.indexLength),
		IsBloomFilterColumn: c.IsBloomFilterColumn(),
		HasBitmapIndex:      c.HasBitmapIndex(),
		IsAutoIncrement:     c.IsAutoIncrement(),
		IsSortKey:           c.IsSortKey(),
	}
	if c.HasPrecision() {
		p := int32(c.precision)
		pb.Precision = &p
	}
	if c.HasScale() {
		s := int32(c.scale)
		pb.Scale = &s
	}
	if c.HasDefaultValue() {
		v := c.extra.defaultValue
		pb.DefaultValue = &v
	}
	for i := 0; i < c.SubcolumnCount(); i++ {
		pb.Children = append(pb.Children, c.Subcolumn(i).ToPB())
	}
	return pb
}

// Clone returns an independent deep copy, including a fresh extra-fields
// block when the source has one.
func (c TabletColumn) Clone() TabletColumn {
	cp := c
	cp.extra = c.extra.clone()
	return cp
}

func (c *TabletColumn) setFlag(mask uint8, value bool) {
	if value {
		c.flags |= mask
	} else {
		c.flags &^= mask
	}
}

func (c *TabletColumn) checkFlag(mask uint8) bool { return c.flags&mask != 0 }

func (c *TabletColumn) UniqueID() int32        { return c.uniqueID }
func (c *TabletColumn) SetUniqueID(id int32)   { c.uniqueID = id }
func (c *TabletColumn) Name() string           { return c.name }
func (c *TabletColumn) SetName(name string)    { c.name = name }
func (c *TabletColumn) Type() types.LogicalType { return c.typ }
func (c *TabletColumn) SetType(t types.LogicalType) { c.typ = t }

func (c *TabletColumn) IsKey() bool          { return c.checkFlag(flagIsKey) }
func (c *TabletColumn) SetIsKey(v bool)      { c.setFlag(flagIsKey, v) }
func (c *TabletColumn) IsNullable() bool     { return c.checkFlag(flagIsNullable) }
func (c *TabletColumn) SetIsNullable(v bool) { c.setFlag(flagIsNullable, v) }

func (c *TabletColumn) IsBloomFilterColumn() bool     { return c.checkFlag(flagIsBloomFilterColumn) }
func (c *TabletColumn) SetIsBloomFilterColumn(v bool) { c.setFlag(flagIsBloomFilterColumn, v) }
func (c *TabletColumn) HasBitmapIndex() bool          { return c.checkFlag(flagHasBitmapIndex) }
func (c *TabletColumn) SetHasBitmapIndex(v bool)      { c.setFlag(flagHasBitmapIndex, v) }
func (c *TabletColumn) IsAutoIncrement() bool         { return c.checkFlag(flagIsAutoIncrement) }
func (c *TabletColumn) SetIsAutoIncrement(v bool)     { c.setFlag(flagIsAutoIncrement, v) }
func (c *TabletColumn) IsSortKey() bool               { return c.checkFlag(flagIsSortKey) }
func (c *TabletColumn) SetIsSortKey(v bool)           { c.setFlag(flagIsSortKey, v) }

func (c *TabletColumn) Length() int32               { return c.length }
func (c *TabletColumn) SetLength(length int32)      { c.length = length }
func (c *TabletColumn) IndexLength() uint8          { return c.indexLength }
func (c *TabletColumn) SetIndexLength(length uint8) { c.indexLength = length }

func (c *TabletColumn) Aggregation() types.AggregateType       { return c.aggregation }
func (c *TabletColumn) SetAggregation(agg types.AggregateType) { c.aggregation = agg }

// Precision/scale values are only meaningful when the matching "has"
// flag is set; the setters keep the two in sync.

func (c *TabletColumn) HasPrecision() bool { return c.checkFlag(flagHasPrecision) }
func (c *TabletColumn) Precision() uint8   { return c.precision }
func (c *TabletColumn) SetPrecision(p uint8) {
	c.precision = p
	c.setFlag(flagHasPrecision, true)
}

func (c *TabletColumn) HasScale() bool { return c.checkFlag(flagHasScale) }
func (c *TabletColumn) Scale() uint8   { return c.scale }
func (c *TabletColumn) SetScale(s uint8) {
	c.scale = s
	c.setFlag(flagHasScale, true)
}

func (c *TabletColumn) HasDefaultValue() bool {
	return c.extra != nil && c.extra.hasDefaultValue
}

func (c *TabletColumn) DefaultValue() string {
	if c.extra == nil {
		return ""
	}
	return c.extra.defaultValue
}

func (c *TabletColumn) SetDefaultValue(value string) {
	ext := c.getOrAllocExtraFields()
	ext.hasDefaultValue = true
	ext.defaultValue = value
}

// AddSubColumn appends a nested column descriptor for composite types.
// The sub-column is deep-copied so ownership stays exclusive.
func (c *TabletColumn) AddSubColumn(sub TabletColumn) {
	ext := c.getOrAllocExtraFields()
	ext.subColumns = append(ext.subColumns, sub.Clone())
}

func (c *TabletColumn) SubcolumnCount() int {
	if c.extra == nil {
		return 0
	}
	return len(c.extra.subColumns)
}

func (c *TabletColumn) Subcolumn(i int) *TabletColumn {
	return &c.extra.subColumns[i]
}

func (c *TabletColumn) getOrAllocExtraFields() *extraFields {
	if c.extra == nil {
		c.extra = &extraFields{}
	}
	return c.extra
}

// Equals reports full structural equality: every scalar attribute, the
// flag byte, and any extra fields including recursively equal
// sub-columns.
func (c *TabletColumn) Equals(other *TabletColumn) bool {
	if c.name != other.name ||
		c.uniqueID != other.uniqueID ||
		c.typ != other.typ ||
		c.aggregation != other.aggregation ||
		c.length != other.length ||
		c.indexLength != other.indexLength ||
		c.flags != other.flags {
		return false
	}
	if c.HasPrecision() && c.precision != other.precision {
		return false
	}
	if c.HasScale() && c.scale != other.scale {
		return false
	}
	if c.HasDefaultValue() != other.HasDefaultValue() {
		return false
	}
	if c.HasDefaultValue() && c.extra.defaultValue != other.extra.defaultValue {
		return false
	}
	if c.SubcolumnCount() != other.SubcolumnCount() {
		return false
	}
	for i := 0; i < c.SubcolumnCount(); i++ {
		if !c.Subcolumn(i).Equals(other.Subcolumn(i)) {
			return false
		}
	}
	return true
}

// EstimateFieldSize returns the column's storage footprint estimate.
// Fixed-width types report their declared length; variable-width types
// fold in the caller-supplied estimate.
func (c *TabletColumn) EstimateFieldSize(variableLength int) int {
	if c.typ.IsVariableWidth() {
		return variableLength
	}
	return int(c.length)
}

// FieldLengthByType maps a logical type to its canonical storage width.
// String-like types take the caller-declared length.
func FieldLengthByType(typ types.LogicalType, stringLength uint32) uint32 {
	switch typ {
	case types.TypeBoolean, types.TypeTinyint:
		return 1
	case types.TypeSmallint:
		return 2
	case types.TypeInt, types.TypeFloat, types.TypeDecimal32:
		return 4
	case types.TypeBigint, types.TypeDouble, types.TypeDecimal64, types.TypeDatetime:
		return 8
	case types.TypeLargeint, types.TypeDecimal128:
		return 16
	case types.TypeDate:
		return 3
	case types.TypeChar, types.TypeVarchar, types.TypeJSON, types.TypeHLL, types.TypeBitmap:
		return stringLength
	default:
		return 0
	}
}

// MemUsage returns the accounted memory footprint: struct size plus
// buffered name/default bytes plus recursive sub-column usage. Never
// undercounts; accounting correctness beats tight precision.
func (c *TabletColumn) MemUsage() int64 {
	usage := int64(unsafe.Sizeof(*c)) + int64(len(c.name))
	if c.extra != nil {
		usage += int64(unsafe.Sizeof(*c.extra)) + int64(len(c.extra.defaultValue))
		for i := range c.extra.subColumns {
			usage += c.extra.subColumns[i].MemUsage()
		}
	}
	return usage
}

// DebugString returns a deterministic human-readable summary. Equal
// columns produce identical strings.
func (c *TabletColumn) DebugString() string {
	var b strings.Builder
	fmt.Fprintf(&b, "{name=%s, uid=%d, type=%s, agg=%s, len=%d, index_len=%d",
		c.name, c.uniqueID, c.typ, c.aggregation, c.length, c.indexLength)
	fmt.Fprintf(&b, ", is_key=%t, nullable=%t, bf=%t, bitmap=%t, auto_inc=%t, sort_key=%t",
		c.IsKey(), c.IsNullable(), c.IsBloomFilterColumn(), c.HasBitmapIndex(),
		c.IsAutoIncrement(), c.IsSortKey())
	if c.HasPrecision() {
		fmt.Fprintf(&b, ", precision=%d", c.precision)
	}
	if c.HasScale() {
		fmt.Fprintf(&b, ", scale=%d", c.scale)
	}
	if c.HasDefaultValue() {
		fmt.Fprintf(&b, ", default=%q", c.extra.defaultValue)
	}
	if n := c.SubcolumnCount(); n > 0 {
		b.WriteString(", children=[")
		for i := 0; i < n; i++ {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(c.Subcolumn(i).DebugString())
		}
		b.WriteString("]")
	}
	b.WriteString("}")
	return b.String()
}
