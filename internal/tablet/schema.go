package tablet

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/arkilian/tabletmeta/pkg/schemapb"
	"github.com/arkilian/tabletmeta/pkg/types"
)

// InvalidSchemaID marks a schema whose id was never assigned by the
// catalog. Must stay consistent with the metadata service's notion of an
// invalid materialized-index schema id.
const InvalidSchemaID int64 = 0

// TabletSchema is the full column layout of one tablet version. It is
// mutable while being constructed or evolved; once published (interned
// into a SchemaMap or after its execution schema has been built) it is
// read-only and safe for unlimited concurrent readers.
type TabletSchema struct {
	id int64

	cols               []TabletColumn
	numKeyColumns      int
	numShortKeyColumns int
	numRowsPerRowBlock int
	keysType           types.KeysType
	compressionType    types.CompressionType
	nextColumnUniqueID int64
	schemaVersion      int

	bfFpp    float64
	hasBfFpp bool

	sortKeyIdxes  []int
	sortKeyIdxSet map[int]struct{}

	fieldIDToIndex map[int32]int

	// Interning state. schemaMap is a non-owning back-reference used only
	// to deregister on the last Release; refs is guarded by the owning
	// shard's mutex.
	schemaMap  *SchemaMap
	internHash uint64
	refs       int64

	execOnce  sync.Once
	exec      *ExecSchema
	execBuilt atomic.Bool
}

// SchemaFromPB decodes a persisted tablet schema descriptor. It derives
// the key-column count, builds the unique-id index, and fails on
// duplicate unique ids or malformed enum values; no partially
// constructed schema is returned.
func SchemaFromPB(pb *schemapb.TabletSchemaPB) (*TabletSchema, error) {
	s := &TabletSchema{}
	if err := s.initFromPB(pb); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *TabletSchema) initFromPB(pb *schemapb.TabletSchemaPB) error {
	keysType, err := types.ParseKeysType(pb.KeysType)
	if err != nil {
		return fmt.Errorf("tablet: %w", err)
	}
	compression, err := types.ParseCompressionType(pb.CompressionType)
	if err != nil {
		return fmt.Errorf("tablet: %w", err)
	}

	cols := make([]TabletColumn, 0, len(pb.Columns))
	fieldIDToIndex := make(map[int32]int, len(pb.Columns))
	numKeyColumns := 0
	maxUniqueID := int64(-1)
	for i := range pb.Columns {
		col, err := ColumnFromPB(&pb.Columns[i])
		if err != nil {
			return err
		}
		if _, dup := fieldIDToIndex[col.UniqueID()]; dup {
			return fmt.Errorf("tablet: %w: id %d", types.ErrDuplicateColumnID, col.UniqueID())
		}
		fieldIDToIndex[col.UniqueID()] = i
		if col.IsKey() {
			numKeyColumns++
		}
		if int64(col.UniqueID()) > maxUniqueID {
			maxUniqueID = int64(col.UniqueID())
		}
		cols = append(cols, col)
	}

	// The sort key list in the descriptor is authoritative when present;
	// otherwise it is derived from the per-column flags.
	sortKeyIdxes := pb.SortKeyIdxes
	if len(sortKeyIdxes) == 0 {
		for i := range cols {
			if cols[i].IsSortKey() {
				sortKeyIdxes = append(sortKeyIdxes, i)
			}
		}
	}
	sortKeyIdxSet := make(map[int]struct{}, len(sortKeyIdxes))
	for _, idx := range sortKeyIdxes {
		if idx < 0 || idx >= len(cols) {
			return fmt.Errorf("tablet: %w: sort key ordinal %d of %d columns",
				types.ErrOrdinalOutOfRange, idx, len(cols))
		}
		if _, dup := sortKeyIdxSet[idx]; dup {
			return fmt.Errorf("tablet: %w: duplicate sort key ordinal %d",
				types.ErrInvalidDescriptor, idx)
		}
		sortKeyIdxSet[idx] = struct{}{}
	}
	for i := range cols {
		_, isSortKey := sortKeyIdxSet[i]
		cols[i].SetIsSortKey(isSortKey)
	}

	nextUniqueID := pb.NextColumnUniqueID
	if nextUniqueID <= maxUniqueID {
		nextUniqueID = maxUniqueID + 1
	}

	schemaVersion := schemapb.InvalidSchemaVersion
	if pb.SchemaVersion != nil {
		schemaVersion = *pb.SchemaVersion
	}

	s.id = pb.ID
	s.cols = cols
	s.numKeyColumns = numKeyColumns
	s.numShortKeyColumns = pb.NumShortKeyColumns
	s.numRowsPerRowBlock = pb.NumRowsPerRowBlock
	s.keysType = keysType
	s.compressionType = compression
	s.nextColumnUniqueID = nextUniqueID
	s.schemaVersion = schemaVersion
	s.hasBfFpp = pb.BloomFilterFPP != nil
	if s.hasBfFpp {
		s.bfFpp = *pb.BloomFilterFPP
	}
	s.sortKeyIdxes = sortKeyIdxes
	s.sortKeyIdxSet = sortKeyIdxSet
	s.fieldIDToIndex = fieldIDToIndex
	return nil
}

// ToPB re-encodes the schema into its descriptor form, lossless for
// every attribute. decode -> encode -> decode yields an equal schema.
func (s *TabletSchema) ToPB() *schemapb.TabletSchemaPB {
	pb := &schemapb.TabletSchemaPB{
		ID:                 s.id,
		KeysType:           s.keysType.String(),
		NumShortKeyColumns: s.numShortKeyColumns,
		NumRowsPerRowBlock: s.numRowsPerRowBlock,
		CompressionType:    s.compressionType.String(),
		NextColumnUniqueID: s.nextColumnUniqueID,
	}
	pb.Columns = make([]schemapb.ColumnPB, len(s.cols))
	for i := range s.cols {
		pb.Columns[i] = s.cols[i].ToPB()
	}
	if s.hasBfFpp {
		fpp := s.bfFpp
		pb.BloomFilterFPP = &fpp
	}
	if len(s.sortKeyIdxes) > 0 {
		pb.SortKeyIdxes = append([]int(nil), s.sortKeyIdxes...)
	}
	if s.schemaVersion != schemapb.InvalidSchemaVersion {
		v := s.schemaVersion
		pb.SchemaVersion = &v
	}
	return pb
}

// ID returns the catalog-assigned schema id. Callers must check against
// InvalidSchemaID.
func (s *TabletSchema) ID() int64 { return s.id }

func (s *TabletSchema) NumColumns() int         { return len(s.cols) }
func (s *TabletSchema) NumKeyColumns() int      { return s.numKeyColumns }
func (s *TabletSchema) NumShortKeyColumns() int { return s.numShortKeyColumns }
func (s *TabletSchema) NumRowsPerRowBlock() int { return s.numRowsPerRowBlock }

func (s *TabletSchema) KeysType() types.KeysType               { return s.keysType }
func (s *TabletSchema) CompressionType() types.CompressionType { return s.compressionType }
func (s *TabletSchema) NextColumnUniqueID() int64              { return s.nextColumnUniqueID }
func (s *TabletSchema) SchemaVersion() int                     { return s.schemaVersion }

func (s *TabletSchema) HasBfFpp() bool { return s.hasBfFpp }
func (s *TabletSchema) BfFpp() float64 { return s.bfFpp }

// Column returns the descriptor at the given ordinal.
func (s *TabletSchema) Column(ordinal int) *TabletColumn { return &s.cols[ordinal] }

// Columns returns the column sequence in physical order. Read-only.
func (s *TabletSchema) Columns() []TabletColumn { return s.cols }

// SortKeyIdxes returns the sort key ordinals in sort order. Read-only.
func (s *TabletSchema) SortKeyIdxes() []int { return s.sortKeyIdxes }

// IsSortKeyIdx reports whether the given ordinal is a sort key column.
func (s *TabletSchema) IsSortKeyIdx(ordinal int) bool {
	_, ok := s.sortKeyIdxSet[ordinal]
	return ok
}

// FieldIndex returns the ordinal of the column with the given unique id,
// or -1 if no such column exists. O(1) via the unique-id index.
func (s *TabletSchema) FieldIndex(uniqueID int32) int {
	if idx, ok := s.fieldIDToIndex[uniqueID]; ok {
		return idx
	}
	return -1
}

// FieldIndexByName returns the ordinal of the named column, or -1. This
// is a linear scan: name lookups are rare relative to id lookups, so the
// schema keeps no name index. Callers doing repeated name lookups should
// cache the result.
func (s *TabletSchema) FieldIndexByName(name string) int {
	for i := range s.cols {
		if s.cols[i].Name() == name {
			return i
		}
	}
	return -1
}

// EstimateRowSize sums every column's field-size estimate, applying one
// shared variable-length estimate to all variable-width columns.
func (s *TabletSchema) EstimateRowSize(variableLength int) int {
	size := 0
	for i := range s.cols {
		size += s.cols[i].EstimateFieldSize(variableLength)
	}
	return size
}

// MemUsage returns the accounted memory footprint of the schema and all
// of its columns.
func (s *TabletSchema) MemUsage() int64 {
	usage := int64(unsafe.Sizeof(*s))
	for i := range s.cols {
		usage += s.cols[i].MemUsage()
	}
	return usage
}

// Shared reports whether this schema was created through a SchemaMap.
func (s *TabletSchema) Shared() bool { return s.schemaMap != nil }

// published reports whether the schema has been exposed for shared read
// access; mutators are rejected from then on.
func (s *TabletSchema) published() bool {
	return s.schemaMap != nil || s.execBuilt.Load()
}

// AppendColumn adds a column at the end of the sequence. It maintains
// the unique-id index and the next-unique-id watermark but deliberately
// does not touch the key or sort-key bookkeeping; evolving callers own
// those.
func (s *TabletSchema) AppendColumn(col TabletColumn) error {
	if s.published() {
		return fmt.Errorf("tablet: append column: %w", types.ErrSchemaPublished)
	}
	if _, dup := s.fieldIDToIndex[col.UniqueID()]; dup {
		return fmt.Errorf("tablet: append column: %w: id %d", types.ErrDuplicateColumnID, col.UniqueID())
	}
	if s.fieldIDToIndex == nil {
		s.fieldIDToIndex = make(map[int32]int)
	}
	s.fieldIDToIndex[col.UniqueID()] = len(s.cols)
	s.cols = append(s.cols, col.Clone())
	if int64(col.UniqueID()) >= s.nextColumnUniqueID {
		s.nextColumnUniqueID = int64(col.UniqueID()) + 1
	}
	return nil
}

// ClearColumns resets the schema to an empty column sequence, dropping
// the derived indexes with it.
func (s *TabletSchema) ClearColumns() error {
	if s.published() {
		return fmt.Errorf("tablet: clear columns: %w", types.ErrSchemaPublished)
	}
	s.cols = nil
	s.numKeyColumns = 0
	s.sortKeyIdxes = nil
	s.sortKeyIdxSet = make(map[int]struct{})
	s.fieldIDToIndex = make(map[int32]int)
	return nil
}

// SetSortKeyIdxes replaces the sort key. Previously referenced columns
// have their sort-key flag cleared before the new list is applied, so no
// stale flag survives on a column no longer in the list.
func (s *TabletSchema) SetSortKeyIdxes(idxes []int) error {
	if s.published() {
		return fmt.Errorf("tablet: set sort key idxes: %w", types.ErrSchemaPublished)
	}
	set := make(map[int]struct{}, len(idxes))
	for _, idx := range idxes {
		if idx < 0 || idx >= len(s.cols) {
			return fmt.Errorf("tablet: set sort key idxes: %w: ordinal %d of %d columns",
				types.ErrOrdinalOutOfRange, idx, len(s.cols))
		}
		if _, dup := set[idx]; dup {
			return fmt.Errorf("tablet: set sort key idxes: %w: duplicate ordinal %d",
				types.ErrInvalidDescriptor, idx)
		}
		set[idx] = struct{}{}
	}
	for _, idx := range s.sortKeyIdxes {
		s.cols[idx].SetIsSortKey(false)
	}
	s.sortKeyIdxes = append([]int(nil), idxes...)
	s.sortKeyIdxSet = set
	for _, idx := range s.sortKeyIdxes {
		s.cols[idx].SetIsSortKey(true)
	}
	return nil
}

// SetNumShortKeyColumns overrides the short-key column count.
func (s *TabletSchema) SetNumShortKeyColumns(n int) error {
	if s.published() {
		return fmt.Errorf("tablet: set num short key columns: %w", types.ErrSchemaPublished)
	}
	s.numShortKeyColumns = n
	return nil
}

// Equals reports content equality: equal column sequences and equal
// schema-level metadata. Identity (id, schema version), the interning
// back-reference, and the lazy execution schema are excluded; equality
// is a function of schema content, not of identity or derived caches.
func (s *TabletSchema) Equals(other *TabletSchema) bool {
	if len(s.cols) != len(other.cols) {
		return false
	}
	for i := range s.cols {
		if !s.cols[i].Equals(&other.cols[i]) {
			return false
		}
	}
	if s.keysType != other.keysType ||
		s.numKeyColumns != other.numKeyColumns ||
		s.numShortKeyColumns != other.numShortKeyColumns ||
		s.compressionType != other.compressionType ||
		s.hasBfFpp != other.hasBfFpp {
		return false
	}
	if s.hasBfFpp && s.bfFpp != other.bfFpp {
		return false
	}
	if len(s.sortKeyIdxes) != len(other.sortKeyIdxes) {
		return false
	}
	for i := range s.sortKeyIdxes {
		if s.sortKeyIdxes[i] != other.sortKeyIdxes[i] {
			return false
		}
	}
	return true
}

// DebugString returns a deterministic human-readable summary. Equal
// schemas produce identical strings.
func (s *TabletSchema) DebugString() string {
	var b strings.Builder
	fmt.Fprintf(&b, "TabletSchema{id=%d, keys_type=%s, num_key_columns=%d, num_short_key_columns=%d",
		s.id, s.keysType, s.numKeyColumns, s.numShortKeyColumns)
	fmt.Fprintf(&b, ", compression=%s, next_unique_id=%d, schema_version=%d",
		s.compressionType, s.nextColumnUniqueID, s.schemaVersion)
	if s.hasBfFpp {
		fmt.Fprintf(&b, ", bf_fpp=%g", s.bfFpp)
	}
	fmt.Fprintf(&b, ", sort_key_idxes=%v, columns=[", s.sortKeyIdxes)
	for i := range s.cols {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(s.cols[i].DebugString())
	}
	b.WriteString("]}")
	return b.String()
}
