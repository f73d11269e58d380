// Package engine drives a resolved graph to completion and hosts the
// engine façade: GraphProcessor (the scheduling loop over a graph's
// pending/active/succeeded/failed partitions), NodeProcessor (one
// short-lived actor per dispatched node), JobProcessor (builds and
// resolves one job's graph, then owns its GraphProcessor), and Engine
// (accepts job submissions, assigns ids, and tracks the JobProcessor
// actors it spawns).
package engine

import "github.com/smallnest/coregraph/rtlog"

var log = rtlog.ForComponent("engine")
