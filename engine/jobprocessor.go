package engine

import (
	"github.com/smallnest/coregraph/actor"
	"github.com/smallnest/coregraph/graph/build"
	"github.com/smallnest/coregraph/graph/resolve"
	"github.com/smallnest/coregraph/repos"
	"github.com/smallnest/coregraph/rtconfig"
	"github.com/smallnest/coregraph/storage"
)

// JobResult is what a submitted job eventually resolves to, reported by
// Engine on the channel it hands back from SubmitJob.
type JobResult struct {
	JobID  string
	Result any
	Err    error
}

// JobProcessor owns a single job end to end: it builds the job's graph,
// resolves every node to a function, spawns a GraphProcessor to drive it,
// and forwards the terminal result to its parent (Engine) tagged with the
// job id.
type JobProcessor struct {
	actor.Base

	jobID    string
	cfg      *rtconfig.JobConfig
	sm       storage.StorageManager
	repos    repos.Repositories
	defaults rtconfig.StorageSettings
	pool     *workerPool
}

// NewJobProcessor creates the actor responsible for running one job.
func NewJobProcessor(jobID string, cfg *rtconfig.JobConfig, sm storage.StorageManager, rp repos.Repositories, defaults rtconfig.StorageSettings, pool *workerPool) *JobProcessor {
	return &JobProcessor{jobID: jobID, cfg: cfg, sm: sm, repos: rp, defaults: defaults, pool: pool}
}

func (p *JobProcessor) Handlers() actor.Handlers {
	h := actor.NewHandlers()
	actor.On(h, "job_succeeded", p.onGraphSucceeded)
	actor.On(h, "job_failed", p.onGraphFailed)
	return h
}

// OnStart builds and resolves the job's graph, then spawns the
// GraphProcessor that will drive it. A build or resolve failure is itself
// reported as a job failure — no GraphProcessor ever runs for it.
func (p *JobProcessor) OnStart(ctx *actor.Context) error {
	g, err := build.New().Build(p.jobID, p.cfg)
	if err != nil {
		p.reportFailure(ctx, err)
		return nil
	}

	fns, err := resolve.New(p.sm, p.repos, p.defaults).Resolve(g)
	if err != nil {
		p.reportFailure(ctx, err)
		return nil
	}

	gp := NewGraphProcessor(g, fns, p.pool)
	ctx.Spawn(gp, "graphprocessor")
	return nil
}

func (p *JobProcessor) onGraphSucceeded(ctx *actor.Context, args graphSucceededArgs) error {
	ctx.SendParent("job_succeeded", JobResult{JobID: p.jobID, Result: args.Result})
	ctx.Stop()
	return nil
}

func (p *JobProcessor) onGraphFailed(ctx *actor.Context, args graphFailedArgs) error {
	ctx.SendParent("job_failed", JobResult{JobID: p.jobID, Err: args.Err})
	ctx.Stop()
	return nil
}

func (p *JobProcessor) reportFailure(ctx *actor.Context, err error) {
	log.Error("job %s: build/resolve failed: %v", p.jobID, err)
	ctx.SendParent("job_failed", JobResult{JobID: p.jobID, Err: err})
	ctx.Stop()
}
