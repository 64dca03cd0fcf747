package utils

// Guard runs cleanup functions when a constructor fails partway through. The usual pattern is:
//
//	guard := NewGuard(func() { monitor.Stop() })
//	defer guard.OnFail()
//	...
//	guard.Add(func() { manager.Stop() })
//	...
//	guard.Success()
//	return m, nil
//
// Cleanups run in reverse order of registration.
type Guard struct {
	cleanups []func()
	success  bool
}

// NewGuard returns a guard with the given cleanups registered.
func NewGuard(cleanups ...func()) *Guard {
	return &Guard{cleanups: cleanups}
}

// Add registers another cleanup.
func (g *Guard) Add(cleanup func()) {
	g.cleanups = append(g.cleanups, cleanup)
}

// OnFail runs the cleanups unless Success has been called.
func (g *Guard) OnFail() {
	if g.success {
		return
	}
	for i := len(g.cleanups) - 1; i >= 0; i-- {
		g.cleanups[i]()
	}
}

// Success marks the guarded function as having succeeded.
func (g *Guard) Success() {
	g.success = true
}
