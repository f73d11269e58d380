// Package actor implements the single-threaded, cooperative actor runtime
// described by the job graph engine: one FIFO envelope queue, one dispatch
// goroutine, a supervision tree rooted at "/", and FAILED-signal escalation
// up the tree until an ancestor handles it or the root is reached.
//
// # Handlers
//
// Each actor builds its handler table once via On/OnAny:
//
//	func (a *MyActor) Handlers() actor.Handlers {
//		h := actor.NewHandlers()
//		actor.On(h, "greet", a.onGreet)
//		return h
//	}
//
//	func (a *MyActor) onGreet(ctx *actor.Context, args string) error {
//		ctx.Reply("greeting", "hello, "+args)
//		return nil
//	}
//
// # Lifecycle
//
// Every actor transitions through NOT_STARTED -> STARTING -> RUNNING and,
// on stop, RUNNING -> STOPPING -> STOPPED, or to ERROR/FAILED on a handler
// error. A handler error schedules a STOP unless the failing envelope was
// itself START or STOP, in which case the actor goes straight to FAILED.
// Once the STOP completes, a FAILED signal reaches the parent, which may
// handle it (return true from OnSignal) or be stopped in turn.
package actor
