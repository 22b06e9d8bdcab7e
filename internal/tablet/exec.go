package tablet

import "github.com/arkilian/tabletmeta/pkg/types"

// ExecField is one column of the execution schema: the flat, read-only
// view of a column descriptor the query and storage execution paths
// consume per batch.
type ExecField struct {
	Name        string
	UniqueID    int32
	Type        types.LogicalType
	Aggregation types.AggregateType
	Length      int32
	IsKey       bool
	IsNullable  bool
}

// ExecSchema is the derived runtime schema built once from a published
// TabletSchema. It never changes after construction.
type ExecSchema struct {
	Fields       []ExecField
	KeyFields    int
	SortKeyIdxes []int
}

// ExecSchema returns the execution schema, building it on first access.
// The build happens exactly once: the first caller computes and
// publishes the result, and all callers, concurrent or sequential,
// observe the same fully built value. The column sequence must not be
// mutated once this has been called; mutators enforce that.
func (s *TabletSchema) ExecSchema() *ExecSchema {
	s.execOnce.Do(func() {
		exec := &ExecSchema{
			Fields:       make([]ExecField, len(s.cols)),
			KeyFields:    s.numKeyColumns,
			SortKeyIdxes: append([]int(nil), s.sortKeyIdxes...),
		}
		for i := range s.cols {
			col := &s.cols[i]
			exec.Fields[i] = ExecField{
				Name:        col.Name(),
				UniqueID:    col.UniqueID(),
				Type:        col.Type(),
				Aggregation: col.Aggregation(),
				Length:      col.Length(),
				IsKey:       col.IsKey(),
				IsNullable:  col.IsNullable(),
			}
		}
		s.exec = exec
		s.execBuilt.Store(true)
	})
	return s.exec
}
