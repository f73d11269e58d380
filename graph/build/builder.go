// Package build lowers a declarative job configuration into an executable
// graph.Graph, following the lowering rules for data loads, data saves,
// model invocation, and context framing. A complete job lowers into the
// pipeline load -> view -> item -> push -> bind -> model -> extract ->
// pop -> save, with a terminal job node collecting the saves.
package build

import (
	"fmt"
	"sort"

	"github.com/smallnest/coregraph/graph"
	"github.com/smallnest/coregraph/rtconfig"
)

// Builder lowers JobConfigs into graphs. It holds no state between builds.
type Builder struct{}

// New creates a Builder.
func New() *Builder { return &Builder{} }

// Build lowers cfg into an executable graph for the job identified by
// jobID (used only to name the job's private namespace; uniqueness across
// concurrently running jobs is the caller's responsibility).
func (b *Builder) Build(jobID string, cfg *rtconfig.JobConfig) (*graph.Graph, error) {
	model, err := cfg.Model()
	if err != nil {
		return nil, err
	}

	outer := graph.RootNamespace
	inner := outer.Push("job=" + jobID)

	nodes := map[graph.NodeId]graph.Node{}
	add := func(n graph.Node) { nodes[n.NodeID()] = n }

	// Data-load inputs: Load -> DataView -> MapDataItem, one chain per
	// declared input, in the outer namespace.
	outerItem := map[string]graph.NodeId{}
	for _, name := range sortedKeys(cfg.Inputs) {
		objKey := cfg.Inputs[name]

		dataDef, err := cfg.Data(objKey)
		if err != nil {
			return nil, fmt.Errorf("build: input %q: %w", name, err)
		}
		storageDef, err := cfg.Storage(objKey)
		if err != nil {
			return nil, fmt.Errorf("build: input %q: %w", name, err)
		}

		loadID := graph.NewNodeId("load:"+objKey, outer)
		add(graph.LoadDataNode{
			Base:       graph.Base{ID: loadID},
			DataItem:   dataDef.DataItem,
			DataDef:    dataDef,
			StorageDef: storageDef,
		})

		viewID := graph.NewNodeId("view:"+objKey, outer)
		add(graph.DataViewNode{
			Base:     graph.Base{ID: viewID, Dependencies: deps(loadID)},
			Schema:   dataDef.Schema,
			RootItem: loadID,
		})

		itemID := graph.NewNodeId("item:"+objKey, outer)
		add(graph.MapDataItemNode{
			Base:       graph.Base{ID: itemID, Dependencies: deps(viewID)},
			DataViewID: viewID,
		})

		outerItem[name] = itemID
	}

	// Context push: enter the model's namespace, one binding per input.
	pushMapping := map[graph.NodeId]graph.NodeId{}
	pushDeps := map[graph.NodeId]graph.DependencyType{}
	for name, itemID := range outerItem {
		formalID := graph.NewNodeId(name, inner)
		pushMapping[formalID] = itemID
		pushDeps[itemID] = graph.DependencyType{}
	}
	pushID := graph.NewNodeId("ctx_push", outer)
	add(graph.ContextPushNode{
		Base:      graph.Base{ID: pushID, Dependencies: pushDeps},
		Mapping:   pushMapping,
		Namespace: inner,
	})

	// Bind each formal input inside the model's namespace.
	modelInputs := map[string]graph.NodeId{}
	for name, itemID := range outerItem {
		formalID := graph.NewNodeId(name, inner)
		add(graph.MapIdentityNode{
			Base:  graph.Base{ID: formalID, Dependencies: map[graph.NodeId]graph.DependencyType{itemID: {}, pushID: {}}},
			SrcID: itemID,
		})
		modelInputs[name] = formalID
	}

	// Model invocation.
	modelID := graph.NewNodeId("MODEL", inner)
	modelDeps := map[graph.NodeId]graph.DependencyType{}
	for _, id := range modelInputs {
		modelDeps[id] = graph.DependencyType{}
	}
	add(graph.ModelNode{
		Base:       graph.Base{ID: modelID, Dependencies: modelDeps},
		ModelDef:   model,
		Parameters: cfg.Parameters,
	})

	// Data-save outputs: extract -> item -> pop -> save, mirroring the
	// input chain in reverse, crossing back into the outer namespace.
	popMapping := map[graph.NodeId]graph.NodeId{}
	popDeps := map[graph.NodeId]graph.DependencyType{}
	outerSaveSrc := map[string]graph.NodeId{}
	innerItem := map[string]graph.NodeId{}

	for _, name := range sortedKeys(cfg.Outputs) {
		objKey := cfg.Outputs[name]

		extractID := graph.NewNodeId("out:"+name, inner)
		add(graph.MapKeyedItemNode{
			Base:    graph.Base{ID: extractID, Dependencies: deps(modelID)},
			SrcID:   modelID,
			SrcItem: name,
		})

		itemID := graph.NewNodeId("outitem:"+name, inner)
		add(graph.MapDataItemNode{
			Base:       graph.Base{ID: itemID, Dependencies: deps(extractID)},
			DataViewID: extractID,
		})

		outerID := graph.NewNodeId("saveSrc:"+objKey, outer)
		popMapping[itemID] = outerID
		popDeps[itemID] = graph.DependencyType{}
		outerSaveSrc[name] = outerID
		innerItem[name] = itemID
	}

	popID := graph.NewNodeId("ctx_pop", outer)
	add(graph.ContextPopNode{
		Base:    graph.Base{ID: popID, Dependencies: popDeps},
		Mapping: popMapping,
	})

	saveIDs := make([]graph.NodeId, 0, len(cfg.Outputs))
	for _, name := range sortedKeys(cfg.Outputs) {
		objKey := cfg.Outputs[name]
		dataDef, err := cfg.Data(objKey)
		if err != nil {
			return nil, fmt.Errorf("build: output %q: %w", name, err)
		}

		outerID := outerSaveSrc[name]
		add(graph.MapIdentityNode{
			Base:  graph.Base{ID: outerID, Dependencies: map[graph.NodeId]graph.DependencyType{innerItem[name]: {}, popID: {}}},
			SrcID: innerItem[name],
		})

		saveID := graph.NewNodeId("save:"+objKey, outer)
		add(graph.SaveDataNode{
			Base:       graph.Base{ID: saveID, Dependencies: deps(outerID)},
			DataItemID: outerID,
			DataDef:    dataDef,
		})
		saveIDs = append(saveIDs, saveID)

		outMetaID := graph.NewNodeId("job_output_meta:"+name, outer)
		add(graph.JobOutputMetadataNode{
			Base: graph.Base{ID: outMetaID, Dependencies: deps(saveID)},
		})
	}

	// Terminal job node: depends on every save (or, for a job with no
	// declared outputs, on the model directly), producing the job result.
	jobDeps := map[graph.NodeId]graph.DependencyType{}
	if len(saveIDs) > 0 {
		for _, id := range saveIDs {
			jobDeps[id] = graph.DependencyType{}
		}
	} else {
		jobDeps[modelID] = graph.DependencyType{}
	}
	jobNodeID := graph.NewNodeId("JOB", outer)
	add(graph.JobNode{Base: graph.Base{ID: jobNodeID, Dependencies: jobDeps}})

	resultMetaID := graph.NewNodeId("job_result_meta", outer)
	add(graph.JobResultMetadataNode{Base: graph.Base{ID: resultMetaID, Dependencies: deps(jobNodeID)}})

	g := &graph.Graph{Nodes: nodes, RootID: jobNodeID}
	if cyclic, cycle := hasCycle(g); cyclic {
		return nil, fmt.Errorf("build: graph is not acyclic: %v", cycle)
	}
	return g, nil
}

func deps(ids ...graph.NodeId) map[graph.NodeId]graph.DependencyType {
	d := make(map[graph.NodeId]graph.DependencyType, len(ids))
	for _, id := range ids {
		d[id] = graph.DependencyType{}
	}
	return d
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// hasCycle runs a DFS over the dependency edges looking for a back edge.
// The builder above only ever emits forward edges by construction, but a
// future lowering rule (or a hand-built graph fed in for testing) could
// violate that, so this check is a real invariant, not a formality.
func hasCycle(g *graph.Graph) (bool, []graph.NodeId) {
	const (
		white = iota
		gray
		black
	)
	color := make(map[graph.NodeId]int, len(g.Nodes))
	var stack []graph.NodeId

	var visit func(id graph.NodeId) []graph.NodeId
	visit = func(id graph.NodeId) []graph.NodeId {
		color[id] = gray
		stack = append(stack, id)

		n, ok := g.Nodes[id]
		if ok {
			for dep := range n.Deps() {
				switch color[dep] {
				case gray:
					return append(append([]graph.NodeId{}, stack...), dep)
				case white:
					if cycle := visit(dep); cycle != nil {
						return cycle
					}
				}
			}
		}

		color[id] = black
		stack = stack[:len(stack)-1]
		return nil
	}

	for id := range g.Nodes {
		if color[id] == white {
			if cycle := visit(id); cycle != nil {
				return true, cycle
			}
		}
	}
	return false, nil
}
