package engine

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/smallnest/coregraph/actor"
	"github.com/smallnest/coregraph/repos"
	"github.com/smallnest/coregraph/rtconfig"
	"github.com/smallnest/coregraph/storage"
)

// submitJobArgs is the "submit_job" message Engine.SubmitJob sends into
// the actor system on the caller's behalf.
type submitJobArgs struct {
	JobID string
	Cfg   *rtconfig.JobConfig
}

// Config holds the dependencies every job's graph is resolved against.
// Build one with New's required arguments and any Option.
type Config struct {
	Storage  storage.StorageManager
	Repos    repos.Repositories
	Defaults rtconfig.StorageSettings

	batch          bool
	workerPoolSize int
}

// Option configures optional Engine behavior.
type Option func(*Config)

// WithBatchMode makes the engine stop itself as soon as the first
// submitted job reaches a terminal state, instead of running indefinitely
// — the shape cmd/coregraph uses for a one-shot job run.
func WithBatchMode() Option {
	return func(c *Config) { c.batch = true }
}

// WithNodeWorkerPool offloads node evaluation onto a fixed pool of n
// goroutines instead of running node bodies inline on the dispatch
// goroutine. Off by default: node evaluation is synchronous on the single
// dispatch goroutine, per the runtime's baseline single-threaded model.
func WithNodeWorkerPool(n int) Option {
	return func(c *Config) { c.workerPoolSize = n }
}

// resultRegistry lets the engineActor (running on the dispatch goroutine)
// deliver a JobResult to the channel an external caller's SubmitJob
// registered, without the actor system needing to know anything about
// channels itself.
type resultRegistry struct {
	mu    sync.Mutex
	chans map[string]chan JobResult
}

func newResultRegistry() *resultRegistry {
	return &resultRegistry{chans: make(map[string]chan JobResult)}
}

func (r *resultRegistry) register(jobID string) chan JobResult {
	ch := make(chan JobResult, 1)
	r.mu.Lock()
	r.chans[jobID] = ch
	r.mu.Unlock()
	return ch
}

func (r *resultRegistry) deliver(result JobResult) {
	r.mu.Lock()
	ch, ok := r.chans[result.JobID]
	if ok {
		delete(r.chans, result.JobID)
	}
	r.mu.Unlock()
	if !ok {
		log.Warn("job %s: result delivered with no waiting caller", result.JobID)
		return
	}
	ch <- result
}

// engineActor is the root user actor: it spawns one JobProcessor per
// submitted job and relays each terminal JobResult to the registry.
type engineActor struct {
	actor.Base

	sm       storage.StorageManager
	repos    repos.Repositories
	defaults rtconfig.StorageSettings
	pool     *workerPool
	batch    bool

	registry *resultRegistry
}

func (a *engineActor) Handlers() actor.Handlers {
	h := actor.NewHandlers()
	actor.On(h, "submit_job", a.onSubmitJob)
	actor.On(h, "job_succeeded", a.onJobDone)
	actor.On(h, "job_failed", a.onJobDone)
	return h
}

func (a *engineActor) onSubmitJob(ctx *actor.Context, args submitJobArgs) error {
	jp := NewJobProcessor(args.JobID, args.Cfg, a.sm, a.repos, a.defaults, a.pool)
	ctx.Spawn(jp, "job")
	return nil
}

func (a *engineActor) onJobDone(ctx *actor.Context, args JobResult) error {
	a.registry.deliver(args)
	if a.batch {
		ctx.Stop()
	}
	return nil
}

// Engine is the façade a caller submits jobs through. It owns an actor
// system whose root actor fans job submissions out to one JobProcessor
// per job.
type Engine struct {
	sys      *actor.System
	registry *resultRegistry
	pool     *workerPool
}

// New creates an Engine. sm and rp are shared across every job it runs;
// defaults supplies the storage location and format every SaveDataNode
// writes to (a job config carries no per-output save destination).
func New(sm storage.StorageManager, rp repos.Repositories, defaults rtconfig.StorageSettings, opts ...Option) *Engine {
	cfg := Config{Storage: sm, Repos: rp, Defaults: defaults}
	for _, opt := range opts {
		opt(&cfg)
	}

	var pool *workerPool
	if cfg.workerPoolSize > 0 {
		pool = newWorkerPool(cfg.workerPoolSize)
	}

	registry := newResultRegistry()
	root := &engineActor{
		sm:       sm,
		repos:    rp,
		defaults: defaults,
		pool:     pool,
		batch:    cfg.batch,
		registry: registry,
	}

	return &Engine{
		sys:      actor.New(root, "engine"),
		registry: registry,
		pool:     pool,
	}
}

// Start launches the engine's dispatch goroutine. If wait, it blocks until
// the root actor has finished starting (up to timeout; timeout <= 0 means
// indefinitely).
func (e *Engine) Start(wait bool, timeout time.Duration) error {
	return e.sys.Start(wait, timeout)
}

// Stop requests the engine shut down: every in-flight job is abandoned.
func (e *Engine) Stop() {
	e.sys.Stop()
	if e.pool != nil {
		e.pool.stop()
	}
}

// WaitForShutdown blocks until the engine's dispatch loop has terminated.
func (e *Engine) WaitForShutdown() {
	e.sys.WaitForShutdown()
}

// ShutdownCode returns 0 for a clean shutdown, non-zero if an unhandled
// failure propagated to the root.
func (e *Engine) ShutdownCode() int { return e.sys.ShutdownCode() }

// ShutdownError returns the terminal error, if any.
func (e *Engine) ShutdownError() error { return e.sys.ShutdownError() }

// SubmitJob assigns a new job id, enqueues the job for execution, and
// returns a channel that receives exactly one JobResult once the job
// reaches a terminal state.
func (e *Engine) SubmitJob(cfg *rtconfig.JobConfig) (string, <-chan JobResult, error) {
	jobID := uuid.NewString()
	ch := e.registry.register(jobID)

	if err := e.sys.Send("submit_job", submitJobArgs{JobID: jobID, Cfg: cfg}); err != nil {
		return jobID, ch, err
	}
	return jobID, ch, nil
}
