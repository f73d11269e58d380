package engine

import (
	"fmt"

	"github.com/smallnest/coregraph/graph"
)

// NodeEvaluationError wraps whatever a NodeFunction raised during
// evaluate_node. It is carried as data on node_failed, never as an actor
// handler error: node errors are recorded on the graph, not escalated
// through supervision.
type NodeEvaluationError struct {
	NodeID graph.NodeId
	Cause  error
}

func (e *NodeEvaluationError) Error() string {
	return fmt.Sprintf("node %s: evaluation failed: %v", e.NodeID, e.Cause)
}

func (e *NodeEvaluationError) Unwrap() error { return e.Cause }

// UpstreamFailureError is the synthetic failure recorded on a node whose
// intolerant dependency failed; no NodeFunction ever runs for it.
type UpstreamFailureError struct {
	NodeID   graph.NodeId
	FailedOn graph.NodeId
}

func (e *UpstreamFailureError) Error() string {
	return fmt.Sprintf("node %s: upstream failure: dependency %s failed", e.NodeID, e.FailedOn)
}

// DeadlockError is reported when the terminal rule finds no active nodes
// but a non-empty pending set: every remaining pending node is
// transitively unsatisfiable (a missing dependency id, or a cycle the
// builder's check somehow missed).
type DeadlockError struct {
	Pending []graph.NodeId
}

func (e *DeadlockError) Error() string {
	return fmt.Sprintf("graph processor: deadlock: %d node(s) pending with nothing active: %v", len(e.Pending), e.Pending)
}

// FailedNodesError is a job's terminal error when at least one node ended
// up in the failed partition. Order lists the failed node ids sorted for
// deterministic reporting; Failures holds the per-node cause (a
// *NodeEvaluationError for a node whose function actually ran and
// returned an error, or an *UpstreamFailureError for one poisoned by an
// intolerant dependency).
type FailedNodesError struct {
	Failures map[graph.NodeId]error
	Order    []graph.NodeId
}

func (e *FailedNodesError) Error() string {
	if len(e.Order) == 1 {
		return fmt.Sprintf("job failed: %v", e.Failures[e.Order[0]])
	}
	return fmt.Sprintf("job failed: %d node(s) failed, first: %v", len(e.Order), e.Failures[e.Order[0]])
}

// Unwrap exposes the first failure so errors.Is/As can match through it.
func (e *FailedNodesError) Unwrap() error {
	if len(e.Order) == 0 {
		return nil
	}
	return e.Failures[e.Order[0]]
}
