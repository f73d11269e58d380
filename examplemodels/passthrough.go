// Package examplemodels holds small, dependency-free modelapi.Model
// implementations used by cmd/coregraph's demo job and by tests that need
// a runnable model without standing up a real one. They are deliberately
// trivial callers of modelapi — the execution core has no author-facing
// parameter/field declaration surface for them to demonstrate.
package examplemodels

import (
	"fmt"

	"github.com/smallnest/coregraph/metadata"
	"github.com/smallnest/coregraph/modelapi"
)

// Passthrough copies its single input to its single output, unchanged.
// EntryPoint: "examplemodels:Passthrough".
type Passthrough struct {
	Input  string
	Output string
}

// NewPassthrough is a repos.ModelFactory for Passthrough. Input/Output are
// set to the model declaration's sole input/output name; a declaration
// with other than exactly one input and one output is rejected.
func NewPassthrough(def metadata.ModelDefinition) (modelapi.Model, error) {
	in, err := soleName(def.Input)
	if err != nil {
		return nil, fmt.Errorf("examplemodels: passthrough: %w", err)
	}
	out, err := soleName(def.Output)
	if err != nil {
		return nil, fmt.Errorf("examplemodels: passthrough: %w", err)
	}
	return Passthrough{Input: in, Output: out}, nil
}

func (m Passthrough) RunModel(ctx *modelapi.ModelContext) error {
	ctx.SetOutput(m.Output, ctx.GetInput(m.Input))
	return nil
}

func soleName(m map[string]metadata.TableDefinition) (string, error) {
	if len(m) != 1 {
		return "", fmt.Errorf("expected exactly one dataset, got %d", len(m))
	}
	for name := range m {
		return name, nil
	}
	return "", nil
}
