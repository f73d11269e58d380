package graph

import "github.com/smallnest/coregraph/metadata"

// DependencyType labels one edge of a node's dependency map. A tolerant
// dependency does not poison its dependent when it fails; an intolerant
// one does.
type DependencyType struct {
	Tolerant bool
}

// Base is embedded by every concrete Node kind; it carries the fields
// common to all of them.
type Base struct {
	ID           NodeId
	Dependencies map[NodeId]DependencyType
}

// NodeID returns the node's identity.
func (b Base) NodeID() NodeId { return b.ID }

// Deps returns the node's dependency edges.
func (b Base) Deps() map[NodeId]DependencyType { return b.Dependencies }

// Node is the tagged-union interface every node kind implements. isNode is
// unexported so the set of kinds is sealed to this package: callers switch
// on concrete type, never implement their own Node.
type Node interface {
	NodeID() NodeId
	Deps() map[NodeId]DependencyType
	isNode()
}

// IdentityNode passes its input context straight through.
type IdentityNode struct{ Base }

func (IdentityNode) isNode() {}

// JobNode is the terminal node of a job's graph; its result is the job's
// result.
type JobNode struct{ Base }

func (JobNode) isNode() {}

// NoopNode produces no result; it exists only to occupy a place in the
// graph.
type NoopNode struct{ Base }

func (NoopNode) isNode() {}

// ContextPushNode reshapes a context on entry to a subgraph: Mapping maps
// each target id (in the pushed Namespace) to the source id it is bound
// from in the enclosing namespace.
type ContextPushNode struct {
	Base
	Mapping   map[NodeId]NodeId
	Namespace Namespace
}

func (ContextPushNode) isNode() {}

// ContextPopNode reshapes a context on exit from a subgraph: Mapping maps
// each source id (inside the subgraph) to the target id it is bound to in
// the enclosing namespace.
type ContextPopNode struct {
	Base
	Mapping map[NodeId]NodeId
}

func (ContextPopNode) isNode() {}

// MapIdentityNode selects a prior node's whole result.
type MapIdentityNode struct {
	Base
	SrcID NodeId
}

func (MapIdentityNode) isNode() {}

// MapKeyedItemNode selects one keyed item out of a prior node's
// map-shaped result.
type MapKeyedItemNode struct {
	Base
	SrcID   NodeId
	SrcItem string
}

func (MapKeyedItemNode) isNode() {}

// DataViewNode builds a typed, partitioned view over a single root data
// item.
type DataViewNode struct {
	Base
	Schema   metadata.TableDefinition
	RootItem NodeId
}

func (DataViewNode) isNode() {}

// MapDataItemNode extracts one data item (by default, part=root, delta=0)
// out of a DataViewNode's result.
type MapDataItemNode struct {
	Base
	DataViewID NodeId
}

func (MapDataItemNode) isNode() {}

// LoadDataNode reads one data item from storage.
type LoadDataNode struct {
	Base
	DataItem   string
	DataDef    metadata.DataDefinition
	StorageDef metadata.StorageDefinition
}

func (LoadDataNode) isNode() {}

// SaveDataNode writes one data item's current value to storage.
type SaveDataNode struct {
	Base
	DataItemID NodeId
	DataDef    metadata.DataDefinition
}

func (SaveDataNode) isNode() {}

// ModelNode invokes a user model. Parameters carries the job-level
// parameter bindings a model's ModelContext is constructed from; the job
// builder threads these in from JobConfig.Parameters since a model
// declaration itself has no notion of a particular job's values.
type ModelNode struct {
	Base
	ModelDef   metadata.ModelDefinition
	Parameters map[string]string
}

func (ModelNode) isNode() {}

// JobOutputMetadataNode is a supplemented bookkeeping node (see
// functions.py's node_mapping, which resolves it to a no-op): it marks the
// point in the graph where output metadata would be recorded once the
// corresponding SaveDataNode completes.
type JobOutputMetadataNode struct{ Base }

func (JobOutputMetadataNode) isNode() {}

// JobResultMetadataNode is the result-side counterpart of
// JobOutputMetadataNode: a no-op placeholder marking where a job's result
// metadata would be recorded.
type JobResultMetadataNode struct{ Base }

func (JobResultMetadataNode) isNode() {}

// Graph is a lowered, executable job: every node keyed by id, plus the id
// of the terminal node whose result is the job's result.
type Graph struct {
	Nodes  map[NodeId]Node
	RootID NodeId
}
