package tablet

import (
	"fmt"

	"github.com/arkilian/tabletmeta/pkg/schemapb"
	"github.com/arkilian/tabletmeta/pkg/types"
)

// Copy returns an independent deep copy of base. The copy is never
// registered with any SchemaMap and carries no execution-schema state.
func Copy(base *TabletSchema) *TabletSchema {
	cp := &TabletSchema{}
	cp.assignFrom(base)
	return cp
}

// CopyFrom replaces this schema's full state with a deep copy of other,
// rebuilding the instance in place without changing its identity.
func (s *TabletSchema) CopyFrom(other *TabletSchema) error {
	if s.published() {
		return fmt.Errorf("tablet: copy from: %w", types.ErrSchemaPublished)
	}
	s.assignFrom(other)
	return nil
}

// assignFrom deep-copies content state. Interning and execution-schema
// state is deliberately untouched: the destination stays unshared.
func (s *TabletSchema) assignFrom(src *TabletSchema) {
	s.id = src.id
	s.cols = make([]TabletColumn, len(src.cols))
	for i := range src.cols {
		s.cols[i] = src.cols[i].Clone()
	}
	s.numKeyColumns = src.numKeyColumns
	s.numShortKeyColumns = src.numShortKeyColumns
	s.numRowsPerRowBlock = src.numRowsPerRowBlock
	s.keysType = src.keysType
	s.compressionType = src.compressionType
	s.nextColumnUniqueID = src.nextColumnUniqueID
	s.schemaVersion = src.schemaVersion
	s.bfFpp = src.bfFpp
	s.hasBfFpp = src.hasBfFpp
	s.sortKeyIdxes = append([]int(nil), src.sortKeyIdxes...)
	s.sortKeyIdxSet = make(map[int]struct{}, len(src.sortKeyIdxes))
	for _, idx := range src.sortKeyIdxes {
		s.sortKeyIdxSet[idx] = struct{}{}
	}
	s.fieldIDToIndex = make(map[int32]int, len(src.fieldIDToIndex))
	for id, idx := range src.fieldIDToIndex {
		s.fieldIDToIndex[id] = idx
	}
}

// ProjectByOrdinals builds a new schema containing exactly the columns
// at the given base ordinals, in the given order. The key-column count
// is recomputed from the projected columns; sort key ordinals whose
// columns survive are remapped in their original relative order.
//
// Sort key columns projected out are silently dropped from the sort key
// list. Partial-update planning on primary-key tablets relies on this:
// the resulting partial schema's sort-key and short-key metadata is not
// authoritative for downstream consumers.
func ProjectByOrdinals(base *TabletSchema, ordinals []int) (*TabletSchema, error) {
	for _, ord := range ordinals {
		if ord < 0 || ord >= base.NumColumns() {
			return nil, fmt.Errorf("tablet: project: %w: ordinal %d of %d columns",
				types.ErrOrdinalOutOfRange, ord, base.NumColumns())
		}
	}
	return project(base, ordinals)
}

// ProjectByUniqueIDs builds a projection selected by column unique id
// rather than by physical ordinal. The selected columns need not be
// adjacent in the base schema.
func ProjectByUniqueIDs(base *TabletSchema, uniqueIDs []int32) (*TabletSchema, error) {
	ordinals := make([]int, 0, len(uniqueIDs))
	for _, uid := range uniqueIDs {
		ord := base.FieldIndex(uid)
		if ord < 0 {
			return nil, fmt.Errorf("tablet: project: %w: unique id %d", types.ErrColumnNotFound, uid)
		}
		ordinals = append(ordinals, ord)
	}
	return project(base, ordinals)
}

func project(base *TabletSchema, ordinals []int) (*TabletSchema, error) {
	s := &TabletSchema{
		numShortKeyColumns: base.numShortKeyColumns,
		numRowsPerRowBlock: base.numRowsPerRowBlock,
		keysType:           base.keysType,
		compressionType:    base.compressionType,
		nextColumnUniqueID: base.nextColumnUniqueID,
		schemaVersion:      base.schemaVersion,
		bfFpp:              base.bfFpp,
		hasBfFpp:           base.hasBfFpp,
	}

	oldToNew := make(map[int]int, len(ordinals))
	s.cols = make([]TabletColumn, 0, len(ordinals))
	s.fieldIDToIndex = make(map[int32]int, len(ordinals))
	for newOrd, oldOrd := range ordinals {
		col := base.cols[oldOrd].Clone()
		if _, dup := s.fieldIDToIndex[col.UniqueID()]; dup {
			return nil, fmt.Errorf("tablet: project: %w: id %d", types.ErrDuplicateColumnID, col.UniqueID())
		}
		s.fieldIDToIndex[col.UniqueID()] = newOrd
		if col.IsKey() {
			s.numKeyColumns++
		}
		oldToNew[oldOrd] = newOrd
		s.cols = append(s.cols, col)
	}

	// Remap surviving sort key ordinals, preserving their relative order.
	s.sortKeyIdxSet = make(map[int]struct{})
	for _, oldIdx := range base.sortKeyIdxes {
		if newIdx, ok := oldToNew[oldIdx]; ok {
			s.sortKeyIdxes = append(s.sortKeyIdxes, newIdx)
			s.sortKeyIdxSet[newIdx] = struct{}{}
		}
	}
	for i := range s.cols {
		_, isSortKey := s.sortKeyIdxSet[i]
		s.cols[i].SetIsSortKey(isSortKey)
	}
	return s, nil
}

// BuildCurrentTabletSchema rebuilds this schema for a specific
// materialized-index version, combining the index's column definitions
// with the originating full schema. Index columns that carry only a
// unique id are resolved against the original schema; a reference to a
// missing id fails the build and leaves this schema unmodified.
func (s *TabletSchema) BuildCurrentTabletSchema(indexID int64, version int, index *schemapb.TabletIndexPB, original *TabletSchema) error {
	if s.published() {
		return fmt.Errorf("tablet: build current tablet schema: %w", types.ErrSchemaPublished)
	}

	cols := make([]TabletColumn, 0, len(index.Columns))
	fieldIDToIndex := make(map[int32]int, len(index.Columns))
	numKeyColumns := 0
	for i := range index.Columns {
		var col TabletColumn
		if index.Columns[i].Type == "" {
			// Reference by id only: take the column from the original schema.
			ord := original.FieldIndex(index.Columns[i].UniqueID)
			if ord < 0 {
				return fmt.Errorf("tablet: build current tablet schema: %w: unique id %d in index %d",
					types.ErrColumnNotFound, index.Columns[i].UniqueID, indexID)
			}
			col = original.cols[ord].Clone()
		} else {
			decoded, err := ColumnFromPB(&index.Columns[i])
			if err != nil {
				return err
			}
			col = decoded
		}
		if _, dup := fieldIDToIndex[col.UniqueID()]; dup {
			return fmt.Errorf("tablet: build current tablet schema: %w: id %d",
				types.ErrDuplicateColumnID, col.UniqueID())
		}
		fieldIDToIndex[col.UniqueID()] = i
		if col.IsKey() {
			numKeyColumns++
		}
		cols = append(cols, col)
	}

	sortKeyIdxes := index.SortKeyIdxes
	sortKeyIdxSet := make(map[int]struct{}, len(sortKeyIdxes))
	for _, idx := range sortKeyIdxes {
		if idx < 0 || idx >= len(cols) {
			return fmt.Errorf("tablet: build current tablet schema: %w: sort key ordinal %d of %d columns",
				types.ErrOrdinalOutOfRange, idx, len(cols))
		}
		if _, dup := sortKeyIdxSet[idx]; dup {
			return fmt.Errorf("tablet: build current tablet schema: %w: duplicate sort key ordinal %d",
				types.ErrInvalidDescriptor, idx)
		}
		sortKeyIdxSet[idx] = struct{}{}
	}
	for i := range cols {
		_, isSortKey := sortKeyIdxSet[i]
		cols[i].SetIsSortKey(isSortKey)
	}

	s.id = indexID
	s.cols = cols
	s.numKeyColumns = numKeyColumns
	s.numShortKeyColumns = index.NumShortKeyColumns
	s.numRowsPerRowBlock = original.numRowsPerRowBlock
	s.keysType = original.keysType
	s.compressionType = original.compressionType
	s.nextColumnUniqueID = original.nextColumnUniqueID
	s.schemaVersion = version
	s.bfFpp = original.bfFpp
	s.hasBfFpp = original.hasBfFpp
	s.sortKeyIdxes = append([]int(nil), sortKeyIdxes...)
	s.sortKeyIdxSet = sortKeyIdxSet
	s.fieldIDToIndex = fieldIDToIndex
	return nil
}
