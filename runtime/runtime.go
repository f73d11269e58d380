// Package runtime is the programmatic entry point of the execution core:
// it wires a RuntimeConfig into a storage.Registry and an engine.Engine,
// and exposes the job-submission lifecycle (Start/SubmitJob/
// WaitForShutdown/Stop) a host process drives.
//
// Configuration parsing lives in rtconfig; this package's job is solely
// to turn a parsed RuntimeConfig into live storage backends and to hand
// job submissions to the engine façade.
package runtime

import (
	"context"
	"fmt"
	"time"

	"github.com/smallnest/coregraph/engine"
	"github.com/smallnest/coregraph/repos"
	"github.com/smallnest/coregraph/rtconfig"
	"github.com/smallnest/coregraph/rtlog"
	"github.com/smallnest/coregraph/storage"
	"github.com/smallnest/coregraph/storage/localfs"
	"github.com/smallnest/coregraph/storage/pgstore"
	"github.com/smallnest/coregraph/storage/rediscache"
	"github.com/smallnest/coregraph/storage/sqlitestore"
)

var log = rtlog.ForComponent("runtime")

// config holds the optional knobs NewRuntime accepts, mirroring engine.Config's
// functional-options shape.
type config struct {
	repos   repos.Repositories
	batch   bool
	workers int
}

// Option configures optional Runtime behavior.
type Option func(*config)

// WithRepositories supplies the model-loader registry the engine resolves
// ModelNodes against. Without one, Runtime starts with an empty
// StaticRepositories, and every ModelNode fails with an
// UnknownRepositoryError when it is evaluated.
func WithRepositories(r repos.Repositories) Option {
	return func(c *config) { c.repos = r }
}

// WithBatchMode makes the runtime shut itself down as soon as the first
// submitted job reaches a terminal state — the shape cmd/coregraph's "run"
// subcommand uses for a one-shot job.
func WithBatchMode() Option {
	return func(c *config) { c.batch = true }
}

// WithNodeWorkers offloads node evaluation onto a fixed worker pool
// instead of running node bodies inline on the dispatch goroutine.
func WithNodeWorkers(n int) Option {
	return func(c *config) { c.workers = n }
}

// Runtime owns one engine.Engine, built from a parsed RuntimeConfig.
type Runtime struct {
	cfg *rtconfig.RuntimeConfig
	eng *engine.Engine
}

// NewRuntime parses sysConfigPath into a RuntimeConfig, builds a
// storage.Registry from its Storage section, and constructs the engine
// façade. devMode
// raises the process-wide log level to Debug; production runs stay at
// Info, matching rtlog's process-wide-configuration-at-construction-time
// convention.
func NewRuntime(sysConfigPath string, devMode bool, opts ...Option) (*Runtime, error) {
	if devMode {
		rtlog.SetDefaultLevel(rtlog.LevelDebug)
	} else {
		rtlog.SetDefaultLevel(rtlog.LevelInfo)
	}

	cfg, err := rtconfig.LoadRuntimeConfig(sysConfigPath)
	if err != nil {
		return nil, fmt.Errorf("runtime: %w", err)
	}

	sm, err := buildStorageManager(cfg)
	if err != nil {
		return nil, fmt.Errorf("runtime: %w", err)
	}

	oc := config{repos: repos.NewStaticRepositories(nil)}
	for _, opt := range opts {
		opt(&oc)
	}

	var engOpts []engine.Option
	if oc.batch {
		engOpts = append(engOpts, engine.WithBatchMode())
	}
	if oc.workers > 0 {
		engOpts = append(engOpts, engine.WithNodeWorkerPool(oc.workers))
	}

	eng := engine.New(sm, oc.repos, cfg.StorageSettings, engOpts...)
	return &Runtime{cfg: cfg, eng: eng}, nil
}

// buildStorageManager turns RuntimeConfig.Storage into a populated
// storage.Registry. Backends that wrap another named backend (today, only
// rediscache) are built in a second pass once every non-wrapping backend
// already has a DataStorage to wrap.
func buildStorageManager(cfg *rtconfig.RuntimeConfig) (*storage.Registry, error) {
	reg := storage.NewRegistry()
	built := make(map[string]storage.DataStorage, len(cfg.Storage))
	var deferred []string

	for key, sc := range cfg.Storage {
		switch sc.StorageType {
		case "localfs":
			dir := sc.StorageConfig["dir"]
			if dir == "" {
				return nil, fmt.Errorf("storage %q: localfs requires a %q setting", key, "dir")
			}
			store, err := localfs.New(dir)
			if err != nil {
				return nil, fmt.Errorf("storage %q: %w", key, err)
			}
			reg.Add(key, store, store)
			built[key] = store

		case "sqlite":
			store, err := sqlitestore.Open(sqlitestore.Options{
				Path:      sc.StorageConfig["path"],
				TableName: sc.StorageConfig["tableName"],
			})
			if err != nil {
				return nil, fmt.Errorf("storage %q: %w", key, err)
			}
			reg.Add(key, nil, store)
			built[key] = store

		case "postgres":
			store, err := pgstore.Open(context.Background(), pgstore.Options{
				DSN:       sc.StorageConfig["dsn"],
				TableName: sc.StorageConfig["tableName"],
			})
			if err != nil {
				return nil, fmt.Errorf("storage %q: %w", key, err)
			}
			reg.Add(key, nil, store)
			built[key] = store

		case "rediscache":
			deferred = append(deferred, key)

		default:
			return nil, fmt.Errorf("storage %q: unknown storageType %q", key, sc.StorageType)
		}
	}

	for _, key := range deferred {
		sc := cfg.Storage[key]
		backendKey := sc.StorageConfig["backend"]
		backend, ok := built[backendKey]
		if !ok {
			return nil, fmt.Errorf("storage %q: rediscache backend %q is not a configured storage location", key, backendKey)
		}
		cache := rediscache.New(backend, rediscache.Options{
			Addr:     sc.StorageConfig["addr"],
			Password: sc.StorageConfig["password"],
			Prefix:   sc.StorageConfig["prefix"],
			TTL:      parseTTL(sc.StorageConfig["ttlSeconds"]),
		})
		reg.Add(key, nil, cache)
		built[key] = cache
	}

	log.Info("storage registry built: %d location(s)", len(cfg.Storage))
	return reg, nil
}

func parseTTL(raw string) time.Duration {
	if raw == "" {
		return 0
	}
	var seconds int64
	if _, err := fmt.Sscanf(raw, "%d", &seconds); err != nil {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// Start launches the engine's dispatch goroutine, waiting up to timeout
// for the root actor to finish starting.
func (r *Runtime) Start(timeout time.Duration) error {
	return r.eng.Start(true, timeout)
}

// SubmitJob parses jobConfigPath into a JobConfig and submits it to the
// engine, returning the assigned job id and a channel that receives
// exactly one JobResult once the job reaches a terminal state.
func (r *Runtime) SubmitJob(jobConfigPath string) (string, <-chan engine.JobResult, error) {
	cfg, err := rtconfig.LoadJobConfig(jobConfigPath)
	if err != nil {
		return "", nil, fmt.Errorf("runtime: %w", err)
	}
	return r.eng.SubmitJob(cfg)
}

// Stop requests the engine shut down; any in-flight job is abandoned.
func (r *Runtime) Stop() {
	r.eng.Stop()
}

// WaitForShutdown blocks until the engine's dispatch loop has terminated.
func (r *Runtime) WaitForShutdown() {
	r.eng.WaitForShutdown()
}

// ShutdownCode returns 0 for a clean shutdown, non-zero if an unhandled
// failure propagated to the root actor.
func (r *Runtime) ShutdownCode() int { return r.eng.ShutdownCode() }

// ShutdownError returns the terminal error recorded on the root actor, if
// any.
func (r *Runtime) ShutdownError() error { return r.eng.ShutdownError() }
