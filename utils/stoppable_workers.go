package utils

import (
	"context"
	"sync"

	goutils "go.viam.com/utils"
)

// StoppableWorkers is a group of goroutines that share a context and are stopped together. The
// monitors, controllers and file watchers all run their loops in one.
type StoppableWorkers struct {
	mu        sync.Mutex
	cancelCtx context.Context
	cancel    func()
	active    sync.WaitGroup
}

// NewStoppableWorkers starts each function in its own goroutine. The functions should return once
// their context is done.
func NewStoppableWorkers(funcs ...func(context.Context)) *StoppableWorkers {
	cancelCtx, cancel := context.WithCancel(context.Background())
	sw := &StoppableWorkers{cancelCtx: cancelCtx, cancel: cancel}
	sw.Add(funcs...)
	return sw
}

// Add starts more workers. It does nothing once Stop has been called.
func (sw *StoppableWorkers) Add(funcs ...func(context.Context)) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	if sw.cancelCtx.Err() != nil {
		return
	}
	sw.active.Add(len(funcs))
	for _, f := range funcs {
		goutils.PanicCapturingGo(func() {
			defer sw.active.Done()
			f(sw.cancelCtx)
		})
	}
}

// Stop cancels the shared context and waits for every worker to return. It is safe to call more
// than once.
func (sw *StoppableWorkers) Stop() {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	sw.cancel()
	sw.active.Wait()
}

// Stopped returns whether Stop has been called.
func (sw *StoppableWorkers) Stopped() bool {
	return sw.cancelCtx.Err() != nil
}

// Context returns the context the workers run with.
func (sw *StoppableWorkers) Context() context.Context {
	return sw.cancelCtx
}
