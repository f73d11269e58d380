package actor

import (
	"fmt"
	"reflect"
)

// handlerFunc is the type-erased form every registered handler reduces to.
type handlerFunc func(ctx *Context, args any) error

// Handler is one entry in an actor's handler table: the statically known
// argument type (nil means untyped, accept anything) plus the invoker.
type Handler struct {
	ArgType reflect.Type
	invoke  handlerFunc
}

// Handlers is the name -> Handler table built once per actor class.
type Handlers map[string]Handler

// NewHandlers creates an empty handler table.
func NewHandlers() Handlers {
	return make(Handlers)
}

// On registers a typed handler for message name. The generic parameter T
// is the handler's statically-known argument type: a wrong type arriving
// at Send is rejected before the handler ever runs.
func On[T any](h Handlers, name string, fn func(ctx *Context, args T) error) Handlers {
	var zero T
	h[name] = Handler{
		ArgType: reflect.TypeOf(zero),
		invoke: func(ctx *Context, args any) error {
			typed, ok := args.(T)
			if !ok {
				return fmt.Errorf("wrong argument type for %q: expected %T, got %T", name, zero, args)
			}
			return fn(ctx, typed)
		},
	}
	return h
}

// OnAny registers a handler that accepts any argument value, including nil.
func OnAny(h Handlers, name string, fn func(ctx *Context, args any) error) Handlers {
	h[name] = Handler{
		ArgType: nil,
		invoke:  fn,
	}
	return h
}
