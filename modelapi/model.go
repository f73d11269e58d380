// Package modelapi is the narrow contract between a loaded user model and
// the node function that invokes it: the read-only context a model
// receives, and the single entry point it must implement. Declaring
// parameters/fields for a model (the author-facing API) is explicitly out
// of scope here — this package only covers what the execution core needs
// to call into a model that already exists.
package modelapi

import "github.com/smallnest/coregraph/metadata"

// Model is the entry point every loadable model implements.
type Model interface {
	RunModel(ctx *ModelContext) error
}

// ModelContext is the read-only-by-convention view a model receives: its
// own declaration, the job's parameters, and a data map pre-populated with
// one entry per declared input (already resolved) and one empty entry per
// declared output (for the model to fill in via SetOutput).
type ModelContext struct {
	ModelDef   metadata.ModelDefinition
	Parameters map[string]string
	data       map[string]any
}

// NewModelContext builds a ModelContext from resolved inputs; one empty
// entry is pre-seeded per declared output so SetOutput never needs to
// special-case first-write.
func NewModelContext(def metadata.ModelDefinition, params map[string]string, inputs map[string]any) *ModelContext {
	data := make(map[string]any, len(inputs)+len(def.Output))
	for name, v := range inputs {
		data[name] = v
	}
	for name := range def.Output {
		data[name] = nil
	}
	return &ModelContext{ModelDef: def, Parameters: params, data: data}
}

// GetInput returns the resolved value bound to a declared input name.
func (c *ModelContext) GetInput(name string) any {
	return c.data[name]
}

// SetOutput records the value produced for a declared output name.
func (c *ModelContext) SetOutput(name string, value any) {
	c.data[name] = value
}

// Outputs returns the current value of every declared output, in the
// shape the graph's output-extraction nodes expect: one entry per output
// name.
func (c *ModelContext) Outputs() map[string]any {
	out := make(map[string]any, len(c.ModelDef.Output))
	for name := range c.ModelDef.Output {
		out[name] = c.data[name]
	}
	return out
}
