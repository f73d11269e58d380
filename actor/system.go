package actor

import (
	"errors"
	"reflect"
	"sync"
	"time"

	"github.com/smallnest/coregraph/rtlog"
)

var log = rtlog.ForComponent("actor")

// pollInterval is how long the dispatch loop parks when the queue is
// empty. A short timed park keeps the loop simple without busy-waiting.
const pollInterval = 1 * time.Millisecond

type node struct {
	parentID     ID
	id           ID
	behavior     Behavior
	handlers     Handlers
	state        State
	lastErr      error
	children     map[ID]struct{}
	nextChildSeq int
}

// System owns the supervision tree, the message queue, and the single
// dispatch goroutine.
type System struct {
	mu     sync.Mutex
	nodes  map[ID]*node
	queue  []Envelope
	mainID ID

	started      bool
	up           chan struct{}
	upFired      bool
	done         chan struct{}
	mainTerminal bool
	shutdownErr  error
}

// signalUp closes the up channel the first time the main actor finishes
// starting (successfully or not), unblocking Start(wait=true).
func (s *System) signalUp() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.upFired {
		s.upFired = true
		close(s.up)
	}
}

// New creates a system whose root user actor is main, spawned under "/".
func New(main Behavior, className string) *System {
	s := &System{
		nodes: map[ID]*node{
			RootID: {id: RootID, children: map[ID]struct{}{}, state: Running},
		},
		up:   make(chan struct{}),
		done: make(chan struct{}),
	}

	s.mu.Lock()
	root := s.nodes[RootID]
	s.mainID = childID(RootID, root.nextChildSeq, className)
	root.nextChildSeq++
	root.children[s.mainID] = struct{}{}
	s.nodes[s.mainID] = &node{
		parentID: RootID,
		id:       s.mainID,
		behavior: main,
		handlers: main.Handlers(),
		state:    NotStarted,
		children: map[ID]struct{}{},
	}
	s.mu.Unlock()

	return s
}

// MainID returns the id assigned to the root user actor.
func (s *System) MainID() ID { return s.mainID }

// Start launches the dispatch goroutine and sends START to the main actor.
// If wait, it blocks (up to timeout) until the main actor has finished
// starting; timeout <= 0 means wait indefinitely.
func (s *System) Start(wait bool, timeout time.Duration) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.mu.Unlock()

	go s.dispatchLoop()
	s.enqueueSignal(System, s.mainID, SignalStart)

	if !wait {
		return nil
	}
	if timeout <= 0 {
		<-s.up
		return nil
	}
	select {
	case <-s.up:
		return nil
	case <-time.After(timeout):
		return errors.New("actor system: startup timed out")
	}
}

// Stop requests the main actor (and transitively its whole subtree) stop.
func (s *System) Stop() {
	s.stopActor(System, s.mainID)
}

// Send injects a message from outside the actor system, addressed to the
// main actor. This is how an external caller (e.g. a facade's
// SubmitJob) reaches into a running system.
func (s *System) Send(name string, args any) error {
	return s.sendMessage(External, s.mainID, name, args)
}

// WaitForShutdown blocks until the dispatch loop has terminated.
func (s *System) WaitForShutdown() {
	<-s.done
}

// ShutdownCode returns 0 for a clean shutdown, non-zero if the root
// failure propagated all the way up.
func (s *System) ShutdownCode() int {
	if s.ShutdownError() == nil {
		return 0
	}
	return 1
}

// ShutdownError returns the terminal error, if any.
func (s *System) ShutdownError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shutdownErr
}

// spawnActor registers a new child under parentID and enqueues its START
// signal. It panics if parentID does not exist — spawning from a dead
// actor's handler is a programming error, not a runtime condition to
// recover from.
func (s *System) spawnActor(parentID ID, behavior Behavior, className string) ID {
	s.mu.Lock()
	parent, ok := s.nodes[parentID]
	if !ok {
		s.mu.Unlock()
		panic("actor: spawn from unknown parent " + string(parentID))
	}
	id := childID(parentID, parent.nextChildSeq, className)
	parent.nextChildSeq++
	parent.children[id] = struct{}{}
	s.nodes[id] = &node{
		parentID: parentID,
		id:       id,
		behavior: behavior,
		handlers: behavior.Handlers(),
		state:    NotStarted,
		children: map[ID]struct{}{},
	}
	s.mu.Unlock()

	s.enqueueSignal(parentID, id, SignalStart)
	return id
}

// sendMessage validates and enqueues a message envelope. Validation
// failures are reported against sender (never silently dropped) and also
// returned so a caller checking the error sees it immediately.
func (s *System) sendMessage(sender, target ID, name string, args any) error {
	if isSignal(name) {
		err := &BadMessageError{Target: target, Message: name, Reason: "signals cannot be sent like messages"}
		s.reportError(sender, name, err)
		return err
	}

	s.mu.Lock()
	targetNode, ok := s.nodes[target]
	s.mu.Unlock()

	if ok {
		handler, known := targetNode.handlers[name]
		if !known {
			err := &BadMessageError{Target: target, Message: name, Reason: "unknown message"}
			s.reportError(sender, name, err)
			return err
		}
		if handler.ArgType != nil && !argMatchesType(args, handler.ArgType) {
			err := &BadMessageError{Target: target, Message: name, Reason: "wrong argument type"}
			s.reportError(sender, name, err)
			return err
		}
	}

	s.enqueue(Envelope{Sender: sender, Target: target, Name: name, Args: args})
	return nil
}

// argMatchesType reports whether args is assignable to want, the type a
// handler was registered with via actor.On[T].
func argMatchesType(args any, want reflect.Type) bool {
	if args == nil {
		// A nil interface only matches a handler registered for a
		// nillable type (pointer, interface, map, slice, channel or
		// function); primitive/struct T can't hold nil.
		switch want.Kind() {
		case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func:
			return true
		default:
			return false
		}
	}
	return reflect.TypeOf(args).AssignableTo(want)
}

func (s *System) enqueueSignal(sender, target ID, signal string) {
	s.enqueue(Envelope{Sender: sender, Target: target, Name: signal})
}

// enqueueFailed is like enqueueSignal but carries the failing actor's
// recorded error as the envelope's payload, so an ancestor that does not
// handle the signal can still fold the real cause into its own lastErr
// instead of substituting a generic placeholder.
func (s *System) enqueueFailed(sender, target ID, cause error) {
	s.enqueue(Envelope{Sender: sender, Target: target, Name: SignalFailed, Args: cause})
}

func (s *System) enqueue(e Envelope) {
	s.mu.Lock()
	s.queue = append(s.queue, e)
	s.mu.Unlock()
}

// stopActor enqueues STOP for target, provided sender is permitted to stop
// it (itself, its direct parent, or the reserved System sender), and
// recursively stops target's children first, leaf-first.
func (s *System) stopActor(sender, target ID) {
	s.mu.Lock()
	allowed := sender == target || s.parentOf(target) == sender || sender == System
	targetNode, ok := s.nodes[target]
	var children []ID
	if ok {
		for c := range targetNode.children {
			children = append(children, c)
		}
	}
	s.mu.Unlock()

	if !allowed {
		log.Warn("signal ignored: [%s] -> %s (%s is not allowed to stop this actor)", SignalStop, target, sender)
		return
	}
	if !ok {
		log.Warn("signal ignored: [%s] -> %s (target actor not found)", SignalStop, target)
		return
	}

	for _, child := range children {
		s.stopActor(target, child)
	}
	s.enqueueSignal(sender, target, SignalStop)
}

func (s *System) parentOf(id ID) ID {
	n, ok := s.nodes[id]
	if !ok {
		return parentID(id)
	}
	return n.parentID
}

// reportError marks actor as failed and drives the escalation sequence:
// the actor is marked ERROR (or straight to FAILED if the failing message
// was itself START/STOP), a STOP is scheduled unless already terminal, and
// a FAILED signal eventually reaches the parent once that STOP completes.
// A failure during STOP handling does not emit FAILED here — the STOP
// completion path in processSignal does, so the parent sees exactly one
// FAILED per failed child.
func (s *System) reportError(actorID ID, message string, err error) {
	s.mu.Lock()
	n, ok := s.nodes[actorID]
	if !ok {
		s.mu.Unlock()
		log.Warn("error ignored: %s (failed actor not found)", actorID)
		return
	}
	n.lastErr = err
	log.Error("%s [%s]: %v", actorID, message, err)

	if message == SignalStart {
		n.state = Failed
		parent := n.parentID
		s.mu.Unlock()
		s.enqueueFailed(actorID, parent, err)
		return
	}
	if message == SignalStop {
		n.state = Failed
		s.mu.Unlock()
		return
	}

	n.state = ErrorState
	s.mu.Unlock()
	s.stopActor(System, actorID)
}

func (s *System) dispatchLoop() {
	for {
		s.mu.Lock()
		terminal := s.mainTerminal
		s.mu.Unlock()
		if terminal {
			break
		}

		env, ok := s.dequeue()
		if !ok {
			time.Sleep(pollInterval)
			continue
		}

		if env.isSignal() {
			s.processSignal(env)
		} else {
			s.processMessage(env)
		}
	}

	close(s.done)
}

func (s *System) dequeue() (Envelope, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return Envelope{}, false
	}
	e := s.queue[0]
	s.queue = s.queue[1:]
	return e, true
}

func (s *System) processMessage(e Envelope) {
	s.mu.Lock()
	target, ok := s.nodes[e.Target]
	if !ok {
		s.mu.Unlock()
		log.Warn("message ignored: [%s] -> %s (target actor not found)", e.Name, e.Target)
		return
	}
	if target.state != Running {
		s.mu.Unlock()
		log.Warn("message ignored: [%s] -> %s (target actor not running)", e.Name, e.Target)
		return
	}
	handler, known := target.handlers[e.Name]
	parent := target.parentID
	s.mu.Unlock()

	if !known {
		log.Warn("message ignored: [%s] -> %s (actor does not support this message)", e.Name, e.Target)
		return
	}

	ctx := &Context{system: s, id: e.Target, parent: parent, sender: e.Sender}
	if err := handler.invoke(ctx, e.Args); err != nil {
		s.reportError(e.Target, e.Name, err)
	}
}

func (s *System) processSignal(e Envelope) {
	if e.Target == RootID {
		// Nothing ever addresses the root directly except a FAILED signal
		// that escalated past the main actor without being handled; the
		// root has no behavior, so treat it as the terminal case rather
		// than dereferencing a nil behavior.
		if e.Name == SignalFailed {
			log.Error("unhandled failure reached the root: %v", e)
			cause, ok := e.Args.(error)
			if !ok || cause == nil {
				cause = errors.New("root actor failed")
			}
			s.mu.Lock()
			s.mainTerminal = true
			s.shutdownErr = &failedError{source: e.Sender, cause: cause}
			s.mu.Unlock()
			s.signalUp()
		}
		return
	}

	s.mu.Lock()
	target, ok := s.nodes[e.Target]
	s.mu.Unlock()
	if !ok {
		log.Warn("signal ignored: [%s] -> %s (target actor not found)", e.Name, e.Target)
		return
	}

	ctx := &Context{system: s, id: e.Target, parent: target.parentID, sender: e.Sender}
	handled := s.receiveSignal(target, ctx, e)

	switch e.Name {
	case SignalStop:
		s.mu.Lock()
		cause := target.lastErr
		s.mu.Unlock()
		if cause != nil {
			s.enqueueFailed(e.Target, target.parentID, cause)
		} else {
			s.enqueueSignal(e.Target, target.parentID, SignalStopped)
		}

	case SignalFailed:
		if e.Target == s.parentOf(e.Sender) && !handled {
			cause, ok := e.Args.(error)
			if !ok || cause == nil {
				// No cause travelled with the signal (e.g. a test
				// enqueued it directly); fall back to a generic one
				// rather than losing the escalation altogether.
				cause = errors.New("child actor failed")
			}
			s.mu.Lock()
			target.lastErr = &failedError{source: e.Sender, cause: cause}
			s.mu.Unlock()
			s.stopActor(System, e.Target)
		}
	}

	s.mu.Lock()
	terminal := target.state.Terminal()
	running := target.state == Running
	isMain := e.Target == s.mainID
	if terminal && isMain {
		s.mainTerminal = true
		s.shutdownErr = target.lastErr
	}
	s.mu.Unlock()

	if isMain && (running || terminal) {
		s.signalUp()
	}
	if terminal {
		s.removeActor(e.Target)
	}
}

// receiveSignal runs the lifecycle FSM transition for one signal and
// returns whether the signal was considered "handled" (only meaningful
// for anything beyond START/STOP, chiefly FAILED).
func (s *System) receiveSignal(n *node, ctx *Context, e Envelope) bool {
	switch e.Name {
	case SignalStart:
		s.mu.Lock()
		state := n.state
		if state == NotStarted {
			n.state = Starting
		}
		s.mu.Unlock()
		if state != NotStarted && state != Starting {
			s.reportError(n.id, SignalStart, &LifecycleError{Actor: n.id, State: state, Op: "start"})
			return true
		}
		if err := n.behavior.OnStart(ctx); err != nil {
			s.reportError(n.id, SignalStart, err)
			return true
		}
		s.mu.Lock()
		n.state = Running
		s.mu.Unlock()
		return true

	case SignalStop:
		s.mu.Lock()
		state := n.state
		if state == Running || state == ErrorState {
			n.state = Stopping
		}
		s.mu.Unlock()
		if state != Running && state != Stopping && state != ErrorState {
			s.reportError(n.id, SignalStop, &LifecycleError{Actor: n.id, State: state, Op: "stop"})
			return true
		}
		if err := n.behavior.OnStop(ctx); err != nil {
			s.reportError(n.id, SignalStop, err)
			return true
		}
		s.mu.Lock()
		if n.lastErr == nil {
			n.state = Stopped
		} else {
			n.state = Failed
		}
		s.mu.Unlock()
		return true

	default:
		return n.behavior.OnSignal(ctx, e.Name)
	}
}

func (s *System) removeActor(id ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	if !ok {
		return
	}
	if parent, ok := s.nodes[n.parentID]; ok {
		delete(parent.children, id)
	}
	delete(s.nodes, id)
}

// State returns the current lifecycle state of id, for tests and
// diagnostics.
func (s *System) State(id ID) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	if !ok {
		return 0, false
	}
	return n.state, true
}

// Error returns the last recorded error for id, if any.
func (s *System) Error(id ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	if !ok {
		return nil
	}
	return n.lastErr
}
