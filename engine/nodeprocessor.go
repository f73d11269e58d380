package engine

import (
	"context"

	"github.com/smallnest/coregraph/actor"
	"github.com/smallnest/coregraph/graph"
	"github.com/smallnest/coregraph/graph/resolve"
)

// nodeSucceeded/nodeFailed are the typed reply messages a NodeProcessor
// sends to its parent GraphProcessor.
type nodeSucceeded struct {
	NodeID graph.NodeId
	Result any
}

type nodeFailed struct {
	NodeID graph.NodeId
	Err    error
}

// evaluateArgs is the single meaningful message a NodeProcessor handles.
type evaluateArgs struct{}

// NodeProcessor is a short-lived actor spawned once per dispatched node: it
// invokes the node's resolved function against the snapshot it was given
// at spawn time and reports success or failure back to its parent, then
// stops itself. Node bodies run synchronously on the dispatch goroutine
// unless the engine was built with WithNodeWorkerPool.
type NodeProcessor struct {
	actor.Base
	nodeID   graph.NodeId
	fn       resolve.NodeFunction
	snapshot resolve.NodeContext
	pool     *workerPool
}

// NewNodeProcessor creates the actor that will evaluate fn against
// snapshot once started. pool may be nil, meaning evaluation runs inline
// on the dispatch goroutine.
func NewNodeProcessor(nodeID graph.NodeId, fn resolve.NodeFunction, snapshot resolve.NodeContext, pool *workerPool) *NodeProcessor {
	return &NodeProcessor{nodeID: nodeID, fn: fn, snapshot: snapshot, pool: pool}
}

func (p *NodeProcessor) Handlers() actor.Handlers {
	h := actor.NewHandlers()
	actor.On(h, "evaluate_node", p.onEvaluate)
	return h
}

func (p *NodeProcessor) onEvaluate(ctx *actor.Context, _ evaluateArgs) error {
	if p.pool == nil {
		p.evaluateAndReport(ctx)
		return nil
	}
	// Offload the potentially long-running node body to the worker pool;
	// the worker posts the reply message back once it finishes, preserving
	// single-writer semantics on the GraphProcessor's GraphContext (it only
	// ever learns the outcome via a message on its own queue).
	p.pool.submit(func() {
		p.evaluateAndReport(ctx)
	})
	return nil
}

func (p *NodeProcessor) evaluateAndReport(ctx *actor.Context) {
	result, err := p.fn(context.Background(), p.snapshot)
	if err != nil {
		ctx.SendParent("node_failed", nodeFailed{NodeID: p.nodeID, Err: &NodeEvaluationError{NodeID: p.nodeID, Cause: err}})
	} else {
		ctx.SendParent("node_succeeded", nodeSucceeded{NodeID: p.nodeID, Result: result})
	}
	ctx.Stop()
}
