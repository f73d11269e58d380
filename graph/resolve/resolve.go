// Package resolve binds every node in a built graph.Graph to an executable
// NodeFunction. Resolution falls into two groups: "basic" node kinds that
// resolve purely from their own declarative fields, and "complex" kinds
// (LoadData, SaveData, Model) that need environment services threaded in
// at resolve time.
package resolve

import (
	"context"
	"fmt"

	"github.com/smallnest/coregraph/graph"
	"github.com/smallnest/coregraph/modelapi"
	"github.com/smallnest/coregraph/repos"
	"github.com/smallnest/coregraph/rtconfig"
	"github.com/smallnest/coregraph/storage"
)

// NodeContext is the read-only mapping of already-evaluated nodes' results
// a NodeFunction consumes.
type NodeContext map[graph.NodeId]any

// NodeFunction is a pure callable over a NodeContext producing one node's
// result. It is constructed once at resolve time and invoked at most once
// per graph execution.
type NodeFunction func(ctx context.Context, nodeCtx NodeContext) (any, error)

// MissingDependencyError is raised when a node function looks up a
// dependency id that the caller's snapshot does not contain — either a
// resolver bug (a node kind reading an id it never declared as a
// dependency) or a build-time mistake that slipped past the builder's own
// checks.
type MissingDependencyError struct {
	Node graph.NodeId
	Dep  graph.NodeId
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("resolve: %s: missing result for dependency %s", e.Node, e.Dep)
}

// UnresolvableNodeError is raised by Resolve if it encounters a graph.Node
// concrete type it has no resolver for. Since graph.Node is a sealed
// interface, this only happens if the package is extended with a new node
// kind and its resolver is forgotten.
type UnresolvableNodeError struct {
	Node graph.NodeId
	Kind any
}

func (e *UnresolvableNodeError) Error() string {
	return fmt.Sprintf("resolve: %s: no resolver for node kind %T", e.Node, e.Kind)
}

// Resolver binds each node in a graph to its NodeFunction. Storage and
// Repos are the environment services the complex node kinds close over;
// Defaults supplies the save-path destination a SaveDataNode writes to,
// since a JobConfig only ever describes read provenance, not a symmetric
// "where do outputs go" storage definition (see DESIGN.md).
type Resolver struct {
	Storage  storage.StorageManager
	Repos    repos.Repositories
	Defaults rtconfig.StorageSettings
}

// New creates a Resolver over the given environment services.
func New(sm storage.StorageManager, rp repos.Repositories, defaults rtconfig.StorageSettings) *Resolver {
	return &Resolver{Storage: sm, Repos: rp, Defaults: defaults}
}

// Resolve binds every node in g to an executable NodeFunction, keyed by id.
func (r *Resolver) Resolve(g *graph.Graph) (map[graph.NodeId]NodeFunction, error) {
	fns := make(map[graph.NodeId]NodeFunction, len(g.Nodes))
	for id, n := range g.Nodes {
		fn, err := r.resolveNode(n)
		if err != nil {
			return nil, err
		}
		fns[id] = fn
	}
	return fns, nil
}

func (r *Resolver) resolveNode(n graph.Node) (NodeFunction, error) {
	switch node := n.(type) {
	// Basic node kinds: resolution is just wrapping the node's own
	// declarative fields in a function, no environment services needed.
	case graph.IdentityNode:
		return resolveIdentity(node), nil
	case graph.NoopNode:
		return resolveNoop(), nil
	case graph.JobOutputMetadataNode:
		return resolveNoop(), nil
	case graph.JobResultMetadataNode:
		return resolveNoop(), nil
	case graph.JobNode:
		return resolveJob(node), nil
	case graph.ContextPushNode:
		return resolveContextPush(node), nil
	case graph.ContextPopNode:
		return resolveContextPop(node), nil
	case graph.MapIdentityNode:
		return resolveMapIdentity(node), nil
	case graph.MapKeyedItemNode:
		return resolveMapKeyedItem(node), nil
	case graph.DataViewNode:
		return resolveDataView(node), nil
	case graph.MapDataItemNode:
		return resolveMapDataItem(node), nil

	// Complex node kinds: resolution needs the job config / environment
	// services (storage manager, repositories) to close over.
	case graph.LoadDataNode:
		return r.resolveLoadData(node), nil
	case graph.SaveDataNode:
		return r.resolveSaveData(node), nil
	case graph.ModelNode:
		return r.resolveModel(node), nil

	default:
		return nil, &UnresolvableNodeError{Node: n.NodeID(), Kind: n}
	}
}

func resolveNoop() NodeFunction {
	return func(ctx context.Context, nodeCtx NodeContext) (any, error) {
		return nil, nil
	}
}

// resolveIdentity passes its single dependency's result straight through.
func resolveIdentity(n graph.IdentityNode) NodeFunction {
	return func(ctx context.Context, nodeCtx NodeContext) (any, error) {
		for dep := range n.Dependencies {
			if v, ok := nodeCtx[dep]; ok {
				return v, nil
			}
		}
		return nil, nil
	}
}

// resolveJob collects every dependency's result into the job's terminal
// result, keyed by dependency id string (stable, human-readable keys for a
// result that is itself mostly diagnostic — the graph's real output values
// already landed in storage via SaveDataNode by the time JobNode runs).
func resolveJob(n graph.JobNode) NodeFunction {
	return func(ctx context.Context, nodeCtx NodeContext) (any, error) {
		out := make(map[string]any, len(n.Dependencies))
		for dep := range n.Dependencies {
			out[dep.String()] = nodeCtx[dep]
		}
		return out, nil
	}
}

// resolveContextPush builds the entry-framing mapping: for every declared
// target->source binding, copy the source's resolved value under the
// target id. Nothing downstream actually reads this node's own result
// (MapIdentityNode reads its bound source directly, see DESIGN.md) — it
// exists to gate ordering and, for completeness, produce the reshaped
// mapping.
func resolveContextPush(n graph.ContextPushNode) NodeFunction {
	return func(ctx context.Context, nodeCtx NodeContext) (any, error) {
		out := make(map[graph.NodeId]any, len(n.Mapping))
		for target, source := range n.Mapping {
			v, ok := nodeCtx[source]
			if !ok {
				return nil, &MissingDependencyError{Node: n.ID, Dep: source}
			}
			out[target] = v
		}
		return out, nil
	}
}

// resolveContextPop is the exit-framing counterpart of resolveContextPush.
func resolveContextPop(n graph.ContextPopNode) NodeFunction {
	return func(ctx context.Context, nodeCtx NodeContext) (any, error) {
		out := make(map[graph.NodeId]any, len(n.Mapping))
		for source, target := range n.Mapping {
			v, ok := nodeCtx[source]
			if !ok {
				return nil, &MissingDependencyError{Node: n.ID, Dep: source}
			}
			out[target] = v
		}
		return out, nil
	}
}

func resolveMapIdentity(n graph.MapIdentityNode) NodeFunction {
	return func(ctx context.Context, nodeCtx NodeContext) (any, error) {
		v, ok := nodeCtx[n.SrcID]
		if !ok {
			return nil, &MissingDependencyError{Node: n.ID, Dep: n.SrcID}
		}
		return v, nil
	}
}

func resolveMapKeyedItem(n graph.MapKeyedItemNode) NodeFunction {
	return func(ctx context.Context, nodeCtx NodeContext) (any, error) {
		v, ok := nodeCtx[n.SrcID]
		if !ok {
			return nil, &MissingDependencyError{Node: n.ID, Dep: n.SrcID}
		}
		items, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("resolve: %s: source %s did not produce a keyed item map", n.ID, n.SrcID)
		}
		item, ok := items[n.SrcItem]
		if !ok {
			return nil, fmt.Errorf("resolve: %s: source %s has no item %q", n.ID, n.SrcID, n.SrcItem)
		}
		return item, nil
	}
}

// resolveDataView wraps a root item's table (LoadDataNode's result) into a
// DataView carrying the node's declared schema.
func resolveDataView(n graph.DataViewNode) NodeFunction {
	return func(ctx context.Context, nodeCtx NodeContext) (any, error) {
		v, ok := nodeCtx[n.RootItem]
		if !ok {
			return nil, &MissingDependencyError{Node: n.ID, Dep: n.RootItem}
		}
		table, ok := v.(*storage.Table)
		if !ok {
			return nil, fmt.Errorf("resolve: %s: root item %s did not produce a table", n.ID, n.RootItem)
		}
		return storage.NewDataView(n.Schema, table), nil
	}
}

// resolveMapDataItem extracts the default (root, delta=0) slice out of a
// DataViewNode's result. The same node kind also sits between a model's
// produced output and its save sink; there the upstream value is already a
// plain *storage.Table rather than a DataView, so this passes any
// non-DataView value through unchanged instead of erroring.
func resolveMapDataItem(n graph.MapDataItemNode) NodeFunction {
	return func(ctx context.Context, nodeCtx NodeContext) (any, error) {
		v, ok := nodeCtx[n.DataViewID]
		if !ok {
			return nil, &MissingDependencyError{Node: n.ID, Dep: n.DataViewID}
		}
		view, ok := v.(*storage.DataView)
		if !ok {
			return v, nil
		}
		table, ok := view.Default()
		if !ok {
			return nil, fmt.Errorf("resolve: %s: data view %s has no default part", n.ID, n.DataViewID)
		}
		return table, nil
	}
}

// resolveLoadData defers the storage-copy choice to execution time: copy
// availability can change between resolve and run, so the scan happens
// inside the returned function, not at closure construction.
func (r *Resolver) resolveLoadData(n graph.LoadDataNode) NodeFunction {
	return func(ctx context.Context, nodeCtx NodeContext) (any, error) {
		copy, err := storage.ChooseCopy(r.Storage, n.DataItem, n.StorageDef)
		if err != nil {
			return nil, err
		}
		ds, err := r.Storage.GetDataStorage(copy.StorageKey)
		if err != nil {
			return nil, err
		}
		table, err := ds.ReadTable(ctx, n.DataDef.Schema, copy.StoragePath, copy.StorageFormat, nil)
		if err != nil {
			return nil, err
		}
		return table, nil
	}
}

// resolveSaveData writes the node's bound source value to the runtime's
// default storage location and format, under a path named for the data
// item. See DESIGN.md for why destinations come from runtime defaults
// rather than a per-output StorageDefinition.
func (r *Resolver) resolveSaveData(n graph.SaveDataNode) NodeFunction {
	return func(ctx context.Context, nodeCtx NodeContext) (any, error) {
		v, ok := nodeCtx[n.DataItemID]
		if !ok {
			return nil, &MissingDependencyError{Node: n.ID, Dep: n.DataItemID}
		}
		table, ok := v.(*storage.Table)
		if !ok {
			return nil, fmt.Errorf("resolve: %s: source %s did not produce a table", n.ID, n.DataItemID)
		}
		ds, err := r.Storage.GetDataStorage(r.Defaults.DefaultStorage)
		if err != nil {
			return nil, err
		}
		path := n.DataDef.DataItem
		if err := ds.WriteTable(ctx, n.DataDef.Schema, table, path, r.Defaults.DefaultFormat, nil); err != nil {
			return nil, err
		}
		return n.DataDef.DataItem, nil
	}
}

// resolveModel loads the model's class and invokes it with a freshly built
// ModelContext seeded from the job's parameters and the bound inputs.
func (r *Resolver) resolveModel(n graph.ModelNode) NodeFunction {
	return func(ctx context.Context, nodeCtx NodeContext) (any, error) {
		loader, err := r.Repos.GetModelLoader(n.ModelDef.Repository)
		if err != nil {
			return nil, err
		}
		model, err := loader.LoadModel(n.ModelDef)
		if err != nil {
			return nil, err
		}

		inputs := make(map[string]any, len(n.ModelDef.Input))
		for name := range n.ModelDef.Input {
			id := graph.NewNodeId(name, n.ID.Namespace)
			v, ok := nodeCtx[id]
			if !ok {
				return nil, fmt.Errorf("resolve: model %s: missing bound input %q", n.ID, name)
			}
			inputs[name] = v
		}

		mc := modelapi.NewModelContext(n.ModelDef, n.Parameters, inputs)
		if err := model.RunModel(mc); err != nil {
			return nil, err
		}
		return mc.Outputs(), nil
	}
}
