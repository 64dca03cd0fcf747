package utils

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"

	"go.viam.com/motionkit/logging"
)

// SlowLogger logs msg as a warning every few seconds of clk time until the returned function is
// called or ctx is done. The first warning comes after two seconds, the next after three more, and
// then every five. Scope logger with Logger.With to say what is slow.
func SlowLogger(ctx context.Context, clk clock.Clock, msg string, logger logging.Logger) func() {
	slowTimer := clk.Timer(2 * time.Second)
	nextWait := 3 * time.Second
	start := clk.Now()

	ctxWithCancel, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-slowTimer.C:
				elapsed := clk.Since(start).Round(time.Second).String()
				logger.Warnw(msg, "time_elapsed", elapsed)
				slowTimer.Reset(nextWait)
				nextWait = 5 * time.Second
			case <-ctxWithCancel.Done():
				return
			}
		}
	}()
	return func() {
		cancel()
		<-done
		slowTimer.Stop()
	}
}
