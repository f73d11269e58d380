package actor

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingActor appends every signal/message it receives to a shared,
// mutex-protected log so tests can assert ordering without racing the
// dispatch goroutine.
type recordingActor struct {
	Base
	mu       *sync.Mutex
	log      *[]string
	name     string
	startErr error
	stopErr  error
	onSignal func(ctx *Context, signal string) bool
}

func (a *recordingActor) record(s string) {
	a.mu.Lock()
	*a.log = append(*a.log, a.name+":"+s)
	a.mu.Unlock()
}

func (a *recordingActor) Handlers() Handlers {
	h := NewHandlers()
	On(h, "ping", func(ctx *Context, args string) error {
		a.record("ping:" + args)
		return nil
	})
	On(h, "fail", func(ctx *Context, args string) error {
		return errors.New(args)
	})
	return h
}

func (a *recordingActor) OnStart(ctx *Context) error {
	a.record("start")
	return a.startErr
}

func (a *recordingActor) OnStop(ctx *Context) error {
	a.record("stop")
	return a.stopErr
}

func (a *recordingActor) OnSignal(ctx *Context, signal string) bool {
	if a.onSignal != nil {
		return a.onSignal(ctx, signal)
	}
	return false
}

func newRecorder(name string) (*recordingActor, *sync.Mutex, *[]string) {
	mu := &sync.Mutex{}
	log := &[]string{}
	return &recordingActor{mu: mu, log: log, name: name}, mu, log
}

func snapshot(mu *sync.Mutex, log *[]string) []string {
	mu.Lock()
	defer mu.Unlock()
	out := make([]string, len(*log))
	copy(out, *log)
	return out
}

func TestLifecycleStartStop(t *testing.T) {
	main, mu, log := newRecorder("main")
	sys := New(main, "main")

	require.NoError(t, sys.Start(true, time.Second))
	state, ok := sys.State(sys.MainID())
	require.True(t, ok)
	assert.Equal(t, Running, state)

	sys.Stop()
	sys.WaitForShutdown()

	assert.Equal(t, []string{"main:start", "main:stop"}, snapshot(mu, log))
	assert.Equal(t, 0, sys.ShutdownCode())
	assert.NoError(t, sys.ShutdownError())
}

func TestMessagesDeliveredInFIFOOrder(t *testing.T) {
	main, mu, log := newRecorder("main")
	sys := New(main, "main")
	require.NoError(t, sys.Start(true, time.Second))

	for i := 0; i < 5; i++ {
		require.NoError(t, sys.Send("ping", string(rune('a'+i))))
	}

	assert.Eventually(t, func() bool {
		return len(snapshot(mu, log)) == 6 // start + 5 pings
	}, time.Second, time.Millisecond)

	got := snapshot(mu, log)
	want := []string{"main:start", "main:ping:a", "main:ping:b", "main:ping:c", "main:ping:d", "main:ping:e"}
	assert.Equal(t, want, got)

	sys.Stop()
	sys.WaitForShutdown()
}

func TestUnknownMessageReportsBadMessageError(t *testing.T) {
	main, _, _ := newRecorder("main")
	sys := New(main, "main")
	require.NoError(t, sys.Start(true, time.Second))

	err := sys.Send("no-such-handler", nil)
	var bad *BadMessageError
	require.ErrorAs(t, err, &bad)
	assert.Equal(t, "unknown message", bad.Reason)

	sys.Stop()
	sys.WaitForShutdown()
}

func TestWrongArgumentTypeRejected(t *testing.T) {
	main, _, _ := newRecorder("main")
	sys := New(main, "main")
	require.NoError(t, sys.Start(true, time.Second))

	err := sys.Send("ping", 42)
	var bad *BadMessageError
	require.ErrorAs(t, err, &bad)
	assert.Equal(t, "wrong argument type", bad.Reason)

	sys.Stop()
	sys.WaitForShutdown()
}

func TestStopPermissionDenied(t *testing.T) {
	main, _, _ := newRecorder("main")
	sys := New(main, "main")
	require.NoError(t, sys.Start(true, time.Second))

	child, _, _ := newRecorder("child")
	childID := sys.spawnActor(sys.MainID(), child, "child")

	assert.Eventually(t, func() bool {
		st, ok := sys.State(childID)
		return ok && st == Running
	}, time.Second, time.Millisecond)

	// An unrelated id (not self, not parent) may not stop the child.
	sys.stopActor(ID("/main-0/stranger-9"), childID)
	time.Sleep(20 * time.Millisecond)
	st, ok := sys.State(childID)
	require.True(t, ok)
	assert.Equal(t, Running, st)

	// The parent may.
	sys.stopActor(sys.MainID(), childID)
	assert.Eventually(t, func() bool {
		_, ok := sys.State(childID)
		return !ok
	}, time.Second, time.Millisecond)

	sys.Stop()
	sys.WaitForShutdown()
}

// TestSupervisedErrorPropagation: a grandchild fails, the failure
// escalates to its parent, which does not handle it and is stopped in
// turn, re-escalating to main (which also does not handle it),
// terminating the whole system with a non-zero shutdown code while
// preserving the root cause through the failedError chain.
func TestSupervisedErrorPropagation(t *testing.T) {
	main, _, _ := newRecorder("main")
	sys := New(main, "main")
	require.NoError(t, sys.Start(true, time.Second))

	mid, _, _ := newRecorder("mid")
	midID := sys.spawnActor(sys.MainID(), mid, "mid")

	leaf, _, _ := newRecorder("leaf")
	leafID := sys.spawnActor(midID, leaf, "leaf")

	assert.Eventually(t, func() bool {
		st, ok := sys.State(leafID)
		return ok && st == Running
	}, time.Second, time.Millisecond)

	boom := errors.New("boom")
	require.NoError(t, sys.sendMessage(External, leafID, "fail", boom.Error()))

	sys.WaitForShutdown()

	assert.Equal(t, 1, sys.ShutdownCode())
	err := sys.ShutdownError()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")

	var fe *failedError
	require.ErrorAs(t, err, &fe)
}

func TestStartFailureGoesStraightToFailed(t *testing.T) {
	main, _, _ := newRecorder("main")
	main.startErr = errors.New("cannot start")
	sys := New(main, "main")

	require.NoError(t, sys.Start(true, time.Second))
	sys.WaitForShutdown()

	assert.Equal(t, 1, sys.ShutdownCode())
	require.Error(t, sys.ShutdownError())
}

func TestHandledFailureDoesNotStopSupervisor(t *testing.T) {
	main, _, _ := newRecorder("main")
	main.onSignal = func(ctx *Context, signal string) bool {
		return signal == SignalFailed
	}
	sys := New(main, "main")
	require.NoError(t, sys.Start(true, time.Second))

	child, _, _ := newRecorder("child")
	childID := sys.spawnActor(sys.MainID(), child, "child")

	assert.Eventually(t, func() bool {
		st, ok := sys.State(childID)
		return ok && st == Running
	}, time.Second, time.Millisecond)

	require.NoError(t, sys.sendMessage(External, childID, "fail", "child broke"))

	assert.Eventually(t, func() bool {
		_, ok := sys.State(childID)
		return !ok
	}, time.Second, time.Millisecond)

	time.Sleep(20 * time.Millisecond)
	state, ok := sys.State(sys.MainID())
	require.True(t, ok)
	assert.Equal(t, Running, state)

	sys.Stop()
	sys.WaitForShutdown()
	assert.Equal(t, 0, sys.ShutdownCode())
}
