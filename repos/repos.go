// Package repos resolves a model's repository and entry point into a
// loaded modelapi.Model. The execution core never imports model code
// directly; it only ever calls through this package, mirroring the
// source's repository-abstraction layer (local packages, PyPI, git,
// and so on all answering to the same ModelLoader contract).
package repos

import (
	"fmt"
	"sync"

	"github.com/smallnest/coregraph/metadata"
	"github.com/smallnest/coregraph/modelapi"
)

// ModelLoader loads a model given its declaration. A loader is free to
// cache loaded models keyed by entry point.
type ModelLoader interface {
	LoadModel(def metadata.ModelDefinition) (modelapi.Model, error)
}

// Repositories resolves a repository id (as named in a model's
// ModelDefinition.Repository) to the loader that knows how to load models
// from it.
type Repositories interface {
	GetModelLoader(repository string) (ModelLoader, error)
}

// UnknownRepositoryError is returned when a model names a repository the
// Repositories instance has no loader for.
type UnknownRepositoryError struct {
	Repository string
}

func (e *UnknownRepositoryError) Error() string {
	return fmt.Sprintf("no model loader registered for repository %q", e.Repository)
}

// UnknownEntryPointError is returned when an InProcessLoader has no
// factory registered for a model's entry point.
type UnknownEntryPointError struct {
	EntryPoint string
}

func (e *UnknownEntryPointError) Error() string {
	return fmt.Sprintf("no model factory registered for entry point %q", e.EntryPoint)
}

// ModelFactory builds a fresh modelapi.Model instance for one model
// declaration. In-process models register one of these under their entry
// point instead of being loaded from an external package or repository,
// since the runtime is a single Go binary with no dynamic code loading.
type ModelFactory func(def metadata.ModelDefinition) (modelapi.Model, error)

// InProcessLoader is a ModelLoader backed by a registry of factories keyed
// by entry point, standing in for the source's importlib-based package
// loader: models compiled into this binary register themselves by entry
// point instead of being imported by name at runtime.
type InProcessLoader struct {
	mu        sync.RWMutex
	factories map[string]ModelFactory
}

// NewInProcessLoader creates an empty in-process loader.
func NewInProcessLoader() *InProcessLoader {
	return &InProcessLoader{factories: make(map[string]ModelFactory)}
}

// Register associates an entry point string with a factory. Re-registering
// the same entry point overwrites the previous factory.
func (l *InProcessLoader) Register(entryPoint string, factory ModelFactory) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.factories[entryPoint] = factory
}

// LoadModel implements ModelLoader.
func (l *InProcessLoader) LoadModel(def metadata.ModelDefinition) (modelapi.Model, error) {
	l.mu.RLock()
	factory, ok := l.factories[def.EntryPoint]
	l.mu.RUnlock()
	if !ok {
		return nil, &UnknownEntryPointError{EntryPoint: def.EntryPoint}
	}
	return factory(def)
}

// StaticRepositories is a Repositories implementation backed by a fixed
// map of repository id to loader, built once at startup from runtime
// configuration.
type StaticRepositories struct {
	loaders map[string]ModelLoader
}

// NewStaticRepositories builds a Repositories from a fixed set of named
// loaders.
func NewStaticRepositories(loaders map[string]ModelLoader) *StaticRepositories {
	copied := make(map[string]ModelLoader, len(loaders))
	for k, v := range loaders {
		copied[k] = v
	}
	return &StaticRepositories{loaders: copied}
}

// GetModelLoader implements Repositories.
func (r *StaticRepositories) GetModelLoader(repository string) (ModelLoader, error) {
	loader, ok := r.loaders[repository]
	if !ok {
		return nil, &UnknownRepositoryError{Repository: repository}
	}
	return loader, nil
}
