package engine

import (
	"sort"

	"github.com/smallnest/coregraph/actor"
	"github.com/smallnest/coregraph/graph"
	"github.com/smallnest/coregraph/graph/resolve"
)

// submitViableArgs is the internal "submit_viable_nodes" message's (empty)
// payload.
type submitViableArgs struct{}

// graphSucceededArgs/graphFailedArgs are what GraphProcessor reports to its
// parent (JobProcessor) once the graph reaches a terminal state.
type graphSucceededArgs struct {
	Result any
}

type graphFailedArgs struct {
	Err error
}

// GraphProcessor is the actor that drives one job's GraphContext to
// completion: it tracks the four disjoint partitions (pending, active,
// succeeded, failed) and dispatches every node that becomes viable, fans
// out upstream failures to poisoned dependents, and reports the job's
// terminal status to its parent.
type GraphProcessor struct {
	actor.Base

	g    *graph.Graph
	fns  map[graph.NodeId]resolve.NodeFunction
	pool *workerPool

	pending   map[graph.NodeId]struct{}
	active    map[graph.NodeId]struct{}
	succeeded map[graph.NodeId]struct{}
	failed    map[graph.NodeId]struct{}

	results map[graph.NodeId]any
	errs    map[graph.NodeId]error
}

// NewGraphProcessor builds a GraphProcessor over a resolved graph. pool may
// be nil (the default: node bodies run synchronously on the dispatch
// goroutine).
func NewGraphProcessor(g *graph.Graph, fns map[graph.NodeId]resolve.NodeFunction, pool *workerPool) *GraphProcessor {
	p := &GraphProcessor{
		g:         g,
		fns:       fns,
		pool:      pool,
		pending:   make(map[graph.NodeId]struct{}, len(g.Nodes)),
		active:    make(map[graph.NodeId]struct{}),
		succeeded: make(map[graph.NodeId]struct{}),
		failed:    make(map[graph.NodeId]struct{}),
		results:   make(map[graph.NodeId]any),
		errs:      make(map[graph.NodeId]error),
	}
	for id := range g.Nodes {
		p.pending[id] = struct{}{}
	}
	return p
}

func (p *GraphProcessor) Handlers() actor.Handlers {
	h := actor.NewHandlers()
	actor.On(h, "submit_viable_nodes", p.onSubmitViable)
	actor.On(h, "node_succeeded", p.onNodeSucceeded)
	actor.On(h, "node_failed", p.onNodeFailed)
	return h
}

func (p *GraphProcessor) OnStart(ctx *actor.Context) error {
	return ctx.Send(ctx.ID(), "submit_viable_nodes", submitViableArgs{})
}

func (p *GraphProcessor) onNodeSucceeded(ctx *actor.Context, args nodeSucceeded) error {
	delete(p.active, args.NodeID)
	p.succeeded[args.NodeID] = struct{}{}
	p.results[args.NodeID] = args.Result
	return ctx.Send(ctx.ID(), "submit_viable_nodes", submitViableArgs{})
}

func (p *GraphProcessor) onNodeFailed(ctx *actor.Context, args nodeFailed) error {
	delete(p.active, args.NodeID)
	p.failed[args.NodeID] = struct{}{}
	p.errs[args.NodeID] = args.Err
	return ctx.Send(ctx.ID(), "submit_viable_nodes", submitViableArgs{})
}

// onSubmitViable is the core scheduling step: fan out upstream poisoning
// to a fixed point, dispatch every now-viable pending node, then apply the
// terminal rule.
func (p *GraphProcessor) onSubmitViable(ctx *actor.Context, _ submitViableArgs) error {
	for {
		if !p.poisonPass() {
			break
		}
	}

	for _, id := range p.sortedPending() {
		n := p.g.Nodes[id]
		if !isViable(n, p.succeeded, p.failed) {
			continue
		}
		p.dispatch(ctx, id)
	}

	return p.checkTerminal(ctx)
}

// poisonPass moves every currently-poisoned pending node into failed and
// reports whether it moved at least one — the caller loops until a pass
// moves none, since poisoning one node can newly poison another that
// depends on it.
func (p *GraphProcessor) poisonPass() bool {
	moved := false
	for _, id := range p.sortedPending() {
		n := p.g.Nodes[id]
		if dep, ok := isPoisoned(n, p.failed); ok {
			delete(p.pending, id)
			p.failed[id] = struct{}{}
			p.errs[id] = &UpstreamFailureError{NodeID: id, FailedOn: dep}
			log.Warn("node %s: upstream failure (dependency %s failed)", id, dep)
			moved = true
		}
	}
	return moved
}

func (p *GraphProcessor) dispatch(ctx *actor.Context, id graph.NodeId) {
	snapshot := make(resolve.NodeContext, len(p.succeeded))
	for s := range p.succeeded {
		snapshot[s] = p.results[s]
	}

	fn := p.fns[id]
	child := NewNodeProcessor(id, fn, snapshot, p.pool)
	actorID := ctx.Spawn(child, "nodeprocessor")
	// Spawn only enqueues the START signal; evaluate_node is queued right
	// behind it from this same sender, so it is guaranteed to be processed
	// after the actor finishes starting.
	ctx.Send(actorID, "evaluate_node", evaluateArgs{})

	delete(p.pending, id)
	p.active[id] = struct{}{}
}

// checkTerminal applies the terminal rule: only once active is empty do we
// decide the job is deadlocked, failed, or succeeded.
func (p *GraphProcessor) checkTerminal(ctx *actor.Context) error {
	if len(p.active) > 0 {
		return nil
	}

	if len(p.pending) > 0 {
		pending := p.sortedPending()
		err := &DeadlockError{Pending: pending}
		ctx.SendParent("job_failed", graphFailedArgs{Err: err})
		ctx.Stop()
		return nil
	}

	if len(p.failed) > 0 {
		ctx.SendParent("job_failed", graphFailedArgs{Err: p.aggregateFailure()})
		ctx.Stop()
		return nil
	}

	ctx.SendParent("job_succeeded", graphSucceededArgs{Result: p.results[p.g.RootID]})
	ctx.Stop()
	return nil
}

func (p *GraphProcessor) aggregateFailure() error {
	ids := make([]graph.NodeId, 0, len(p.failed))
	for id := range p.failed {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return &FailedNodesError{Failures: p.errs, Order: ids}
}

func (p *GraphProcessor) sortedPending() []graph.NodeId {
	ids := make([]graph.NodeId, 0, len(p.pending))
	for id := range p.pending {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}

// isPoisoned reports whether n has at least one intolerant dependency in
// failed, and which one (the first found, in map iteration order — any one
// is a valid diagnostic).
func isPoisoned(n graph.Node, failed map[graph.NodeId]struct{}) (graph.NodeId, bool) {
	for dep, dt := range n.Deps() {
		if dt.Tolerant {
			continue
		}
		if _, ok := failed[dep]; ok {
			return dep, true
		}
	}
	return graph.NodeId{}, false
}

// isViable reports whether every dependency of n is either succeeded, or
// (for a tolerant edge) failed — a tolerant dependency's failure does not
// block viability, it just means the context handed to n's function has no
// entry for it.
func isViable(n graph.Node, succeeded, failed map[graph.NodeId]struct{}) bool {
	for dep, dt := range n.Deps() {
		if _, ok := succeeded[dep]; ok {
			continue
		}
		if dt.Tolerant {
			if _, ok := failed[dep]; ok {
				continue
			}
		}
		return false
	}
	return true
}
