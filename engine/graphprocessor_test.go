package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/smallnest/coregraph/actor"
	"github.com/smallnest/coregraph/graph"
	"github.com/smallnest/coregraph/graph/resolve"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingParent stands in for a JobProcessor in these white-box tests: it
// spawns the GraphProcessor under test as its one child and captures
// whichever of job_succeeded/job_failed arrives.
type recordingParent struct {
	actor.Base
	build    func() *GraphProcessor
	resultCh chan graphSucceededArgs
	failCh   chan graphFailedArgs
}

func (p *recordingParent) Handlers() actor.Handlers {
	h := actor.NewHandlers()
	actor.On(h, "job_succeeded", p.onSucceeded)
	actor.On(h, "job_failed", p.onFailed)
	return h
}

func (p *recordingParent) OnStart(ctx *actor.Context) error {
	ctx.Spawn(p.build(), "graphprocessor")
	return nil
}

func (p *recordingParent) onSucceeded(ctx *actor.Context, args graphSucceededArgs) error {
	p.resultCh <- args
	ctx.Stop()
	return nil
}

func (p *recordingParent) onFailed(ctx *actor.Context, args graphFailedArgs) error {
	p.failCh <- args
	ctx.Stop()
	return nil
}

func runGraph(t *testing.T, g *graph.Graph, fns map[graph.NodeId]resolve.NodeFunction) (*graphSucceededArgs, *graphFailedArgs) {
	t.Helper()
	parent := &recordingParent{
		build:    func() *GraphProcessor { return NewGraphProcessor(g, fns, nil) },
		resultCh: make(chan graphSucceededArgs, 1),
		failCh:   make(chan graphFailedArgs, 1),
	}
	sys := actor.New(parent, "testparent")
	require.NoError(t, sys.Start(true, time.Second))

	select {
	case r := <-parent.resultCh:
		sys.WaitForShutdown()
		return &r, nil
	case f := <-parent.failCh:
		sys.WaitForShutdown()
		return nil, &f
	case <-time.After(2 * time.Second):
		t.Fatal("graph did not reach a terminal state in time")
		return nil, nil
	}
}

// orderRecorder lets a test observe the sequence in which node functions
// actually ran, proving dependency order without reaching into
// GraphProcessor's private partitions.
type orderRecorder struct {
	mu    sync.Mutex
	order []string
}

func (r *orderRecorder) record(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = append(r.order, name)
}

func (r *orderRecorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

func TestGraphProcessorLinearSuccess(t *testing.T) {
	idA := graph.NewNodeId("A", graph.RootNamespace)
	idB := graph.NewNodeId("B", graph.RootNamespace)
	idC := graph.NewNodeId("C", graph.RootNamespace)

	rec := &orderRecorder{}
	g := &graph.Graph{
		Nodes: map[graph.NodeId]graph.Node{
			idA: graph.NoopNode{Base: graph.Base{ID: idA}},
			idB: graph.NoopNode{Base: graph.Base{ID: idB, Dependencies: map[graph.NodeId]graph.DependencyType{idA: {}}}},
			idC: graph.NoopNode{Base: graph.Base{ID: idC, Dependencies: map[graph.NodeId]graph.DependencyType{idB: {}}}},
		},
		RootID: idC,
	}
	fns := map[graph.NodeId]resolve.NodeFunction{
		idA: func(ctx context.Context, nc resolve.NodeContext) (any, error) {
			rec.record("A")
			return "a", nil
		},
		idB: func(ctx context.Context, nc resolve.NodeContext) (any, error) {
			rec.record("B")
			return nc[idA], nil
		},
		idC: func(ctx context.Context, nc resolve.NodeContext) (any, error) {
			rec.record("C")
			return nc[idB], nil
		},
	}

	result, failure := runGraph(t, g, fns)
	require.Nil(t, failure)
	require.NotNil(t, result)
	assert.Equal(t, "a", result.Result)
	assert.Equal(t, []string{"A", "B", "C"}, rec.snapshot())
}

func TestGraphProcessorFanOutFanIn(t *testing.T) {
	idA := graph.NewNodeId("A", graph.RootNamespace)
	idB := graph.NewNodeId("B", graph.RootNamespace)
	idC := graph.NewNodeId("C", graph.RootNamespace)
	idD := graph.NewNodeId("D", graph.RootNamespace)

	g := &graph.Graph{
		Nodes: map[graph.NodeId]graph.Node{
			idA: graph.NoopNode{Base: graph.Base{ID: idA}},
			idB: graph.NoopNode{Base: graph.Base{ID: idB, Dependencies: map[graph.NodeId]graph.DependencyType{idA: {}}}},
			idC: graph.NoopNode{Base: graph.Base{ID: idC, Dependencies: map[graph.NodeId]graph.DependencyType{idA: {}}}},
			idD: graph.NoopNode{Base: graph.Base{ID: idD, Dependencies: map[graph.NodeId]graph.DependencyType{idB: {}, idC: {}}}},
		},
		RootID: idD,
	}
	fns := map[graph.NodeId]resolve.NodeFunction{
		idA: func(ctx context.Context, nc resolve.NodeContext) (any, error) { return nil, nil },
		idB: func(ctx context.Context, nc resolve.NodeContext) (any, error) { return "b", nil },
		idC: func(ctx context.Context, nc resolve.NodeContext) (any, error) { return 42, nil },
		idD: func(ctx context.Context, nc resolve.NodeContext) (any, error) {
			bVal, bOK := nc[idB]
			cVal, cOK := nc[idC]
			if !bOK || !cOK {
				return nil, errors.New("D ran without both fan-in results present")
			}
			return []any{bVal, cVal}, nil
		},
	}

	result, failure := runGraph(t, g, fns)
	require.Nil(t, failure)
	require.NotNil(t, result)
	assert.Equal(t, []any{"b", 42}, result.Result)
}

func TestGraphProcessorIntolerantUpstreamFailure(t *testing.T) {
	idA := graph.NewNodeId("A", graph.RootNamespace)
	idB := graph.NewNodeId("B", graph.RootNamespace)
	idC := graph.NewNodeId("C", graph.RootNamespace)

	cInvoked := false
	g := &graph.Graph{
		Nodes: map[graph.NodeId]graph.Node{
			idA: graph.NoopNode{Base: graph.Base{ID: idA}},
			idB: graph.NoopNode{Base: graph.Base{ID: idB, Dependencies: map[graph.NodeId]graph.DependencyType{idA: {}}}},
			idC: graph.NoopNode{Base: graph.Base{ID: idC, Dependencies: map[graph.NodeId]graph.DependencyType{idB: {Tolerant: false}}}},
		},
		RootID: idC,
	}
	boom := errors.New("boom")
	fns := map[graph.NodeId]resolve.NodeFunction{
		idA: func(ctx context.Context, nc resolve.NodeContext) (any, error) { return "a", nil },
		idB: func(ctx context.Context, nc resolve.NodeContext) (any, error) { return nil, boom },
		idC: func(ctx context.Context, nc resolve.NodeContext) (any, error) {
			cInvoked = true
			return nil, nil
		},
	}

	result, failure := runGraph(t, g, fns)
	require.Nil(t, result)
	require.NotNil(t, failure)
	assert.False(t, cInvoked, "C must not run: its intolerant dependency B failed")

	var failedNodes *FailedNodesError
	require.ErrorAs(t, failure.Err, &failedNodes)
	assert.Contains(t, failedNodes.Failures, idB)
	assert.Contains(t, failedNodes.Failures, idC)

	var upstream *UpstreamFailureError
	require.ErrorAs(t, failedNodes.Failures[idC], &upstream)
	assert.Equal(t, idB, upstream.FailedOn)

	var eval *NodeEvaluationError
	require.ErrorAs(t, failedNodes.Failures[idB], &eval)
}

func TestGraphProcessorTolerantUpstreamFailure(t *testing.T) {
	idA := graph.NewNodeId("A", graph.RootNamespace)
	idB := graph.NewNodeId("B", graph.RootNamespace)
	idC := graph.NewNodeId("C", graph.RootNamespace)

	var cInvoked bool
	var bPresent bool
	g := &graph.Graph{
		Nodes: map[graph.NodeId]graph.Node{
			idA: graph.NoopNode{Base: graph.Base{ID: idA}},
			idB: graph.NoopNode{Base: graph.Base{ID: idB, Dependencies: map[graph.NodeId]graph.DependencyType{idA: {}}}},
			idC: graph.NoopNode{Base: graph.Base{ID: idC, Dependencies: map[graph.NodeId]graph.DependencyType{idB: {Tolerant: true}}}},
		},
		RootID: idC,
	}
	boom := errors.New("boom")
	fns := map[graph.NodeId]resolve.NodeFunction{
		idA: func(ctx context.Context, nc resolve.NodeContext) (any, error) { return "a", nil },
		idB: func(ctx context.Context, nc resolve.NodeContext) (any, error) { return nil, boom },
		idC: func(ctx context.Context, nc resolve.NodeContext) (any, error) {
			cInvoked = true
			_, bPresent = nc[idB]
			return "c-ran-anyway", nil
		},
	}

	result, failure := runGraph(t, g, fns)
	require.Nil(t, result)
	require.NotNil(t, failure, "job_failed is still reported because failed is non-empty")
	assert.True(t, cInvoked, "C must run despite its tolerant dependency B failing")
	assert.False(t, bPresent, "C's context must contain no entry for the failed tolerant dependency")
}

func TestGraphProcessorDeadlockOnMissingDependency(t *testing.T) {
	idA := graph.NewNodeId("A", graph.RootNamespace)
	ghost := graph.NewNodeId("ghost", graph.RootNamespace)

	g := &graph.Graph{
		Nodes: map[graph.NodeId]graph.Node{
			idA: graph.NoopNode{Base: graph.Base{ID: idA, Dependencies: map[graph.NodeId]graph.DependencyType{ghost: {}}}},
		},
		RootID: idA,
	}
	fns := map[graph.NodeId]resolve.NodeFunction{
		idA: func(ctx context.Context, nc resolve.NodeContext) (any, error) { return nil, nil },
	}

	result, failure := runGraph(t, g, fns)
	require.Nil(t, result)
	require.NotNil(t, failure)

	var deadlock *DeadlockError
	require.ErrorAs(t, failure.Err, &deadlock)
	assert.Equal(t, []graph.NodeId{idA}, deadlock.Pending)
}
