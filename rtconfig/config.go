// Package rtconfig loads the runtime's two configuration documents —
// RuntimeConfig (process-wide: storage locations, defaults) and JobConfig
// (one job submission: target, parameters, input/output bindings, and the
// object definitions they reference) — from YAML or JSON, dispatched by
// file extension.
package rtconfig

import (
	"fmt"

	"github.com/smallnest/coregraph/metadata"
)

// StorageConfig is one named storage location's driver and connection
// settings.
type StorageConfig struct {
	StorageType   string            `yaml:"storageType" json:"storageType"`
	StorageConfig map[string]string `yaml:"storageConfig" json:"storageConfig"`
}

// StorageSettings are the process-wide storage defaults.
type StorageSettings struct {
	DefaultStorage string `yaml:"defaultStorage" json:"defaultStorage"`
	DefaultFormat  string `yaml:"defaultFormat" json:"defaultFormat"`
}

// RuntimeConfig is the process-wide configuration document: every storage
// location the runtime may read or write, plus their defaults.
type RuntimeConfig struct {
	Storage         map[string]StorageConfig `yaml:"storage" json:"storage"`
	StorageSettings StorageSettings          `yaml:"storageSettings" json:"storageSettings"`
}

// StorageByKey looks up one named storage location, erroring if absent.
func (c *RuntimeConfig) StorageByKey(key string) (StorageConfig, error) {
	sc, ok := c.Storage[key]
	if !ok {
		return StorageConfig{}, fmt.Errorf("rtconfig: no storage configured for key %q", key)
	}
	return sc, nil
}

// JobConfig describes one job submission: the target object to run (a
// model, by key into Objects), its parameters, its input/output dataset
// bindings (also by key into Objects), and every object the job
// references. A data object's storage bookkeeping is looked up under the
// convention "<key>:storage" — a ":storage"-suffixed key in the same
// Objects map, holding an ObjectTypeStorage entry for the same data item.
type JobConfig struct {
	Target     string                               `yaml:"target" json:"target"`
	Parameters map[string]string                     `yaml:"parameters" json:"parameters"`
	Inputs     map[string]string                     `yaml:"inputs" json:"inputs"`
	Outputs    map[string]string                     `yaml:"outputs" json:"outputs"`
	Objects    map[string]metadata.ObjectDefinition `yaml:"objects" json:"objects"`
}

// StorageKeyFor is the join convention between a data object and its
// storage bookkeeping object.
func StorageKeyFor(dataObjectKey string) string {
	return dataObjectKey + ":storage"
}

// Model resolves the job's target model definition.
func (c *JobConfig) Model() (metadata.ModelDefinition, error) {
	obj, ok := c.Objects[c.Target]
	if !ok || obj.Model == nil {
		return metadata.ModelDefinition{}, fmt.Errorf("rtconfig: target %q is not a model object", c.Target)
	}
	return *obj.Model, nil
}

// Data resolves one data object referenced from Inputs or Outputs by key.
func (c *JobConfig) Data(key string) (metadata.DataDefinition, error) {
	obj, ok := c.Objects[key]
	if !ok || obj.Data == nil {
		return metadata.DataDefinition{}, fmt.Errorf("rtconfig: object %q is not a data object", key)
	}
	return *obj.Data, nil
}

// Storage resolves the storage bookkeeping object for a data object key.
func (c *JobConfig) Storage(dataObjectKey string) (metadata.StorageDefinition, error) {
	key := StorageKeyFor(dataObjectKey)
	obj, ok := c.Objects[key]
	if !ok || obj.Storage == nil {
		return metadata.StorageDefinition{}, fmt.Errorf("rtconfig: object %q is not a storage object", key)
	}
	return *obj.Storage, nil
}
