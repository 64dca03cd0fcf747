package testutils

import (
	"go.uber.org/goleak"
)

// VerifyTestMain runs the tests of a package and then fails if any goroutine is left running.
func VerifyTestMain(m goleak.TestingM) {
	goleak.VerifyTestMain(m,
		// lumberjack starts its mill goroutine lazily and never stops it.
		goleak.IgnoreTopFunction("gopkg.in/natefinch/lumberjack%2ev2.(*Logger).millRun"),
		goleak.IgnoreAnyFunction("github.com/fsnotify/fsnotify.(*Watcher).readEvents"),
	)
}
