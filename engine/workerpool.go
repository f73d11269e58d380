package engine

// workerPool offloads node evaluation onto a small fixed pool of
// goroutines instead of running it inline on the dispatch goroutine. Off
// by default: the baseline model keeps node bodies synchronous on the
// driver thread, and a worker only ever reports back by posting
// node_succeeded/node_failed onto the queue, so the GraphProcessor stays
// the sole writer of its graph state.
type workerPool struct {
	tasks chan func()
	done  chan struct{}
}

// newWorkerPool starts n goroutines draining a shared task queue. n <= 0
// is invalid; callers only construct a workerPool when the option is
// explicitly enabled.
func newWorkerPool(n int) *workerPool {
	p := &workerPool{
		tasks: make(chan func()),
		done:  make(chan struct{}),
	}
	for i := 0; i < n; i++ {
		go p.run()
	}
	return p
}

func (p *workerPool) run() {
	for {
		select {
		case task, ok := <-p.tasks:
			if !ok {
				return
			}
			task()
		case <-p.done:
			return
		}
	}
}

func (p *workerPool) submit(task func()) {
	p.tasks <- task
}

func (p *workerPool) stop() {
	close(p.done)
}
