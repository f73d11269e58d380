package storage

import "github.com/smallnest/coregraph/metadata"

// PartKey identifies one slice of a DataView: a named part (e.g. "root" for
// the whole dataset, or a partition label) plus a delta generation (0 for
// the base snapshot, incrementing for each incremental update layered on
// top of it).
type PartKey struct {
	Part  string
	Delta int
}

// DefaultPart is the slice MapDataItemNode extracts when a job does not ask
// for a specific partition or delta.
var DefaultPart = PartKey{Part: "root", Delta: 0}

// DataView is the typed, partitioned wrapper DataViewNode builds over a
// single root data item: one schema, shared by every part, and the tables
// making up each part/delta slice actually materialized so far.
type DataView struct {
	Schema metadata.TableDefinition
	Parts  map[PartKey]*Table
}

// NewDataView wraps root as the default (root, delta=0) slice of a view
// over schema.
func NewDataView(schema metadata.TableDefinition, root *Table) *DataView {
	return &DataView{
		Schema: schema,
		Parts:  map[PartKey]*Table{DefaultPart: root},
	}
}

// Default returns the view's (root, delta=0) slice.
func (v *DataView) Default() (*Table, bool) {
	t, ok := v.Parts[DefaultPart]
	return t, ok
}
