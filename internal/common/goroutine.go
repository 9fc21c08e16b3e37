// -----------------------------------------------------------------------
// Safe Goroutine - Panic-protected goroutine wrappers
// -----------------------------------------------------------------------

package common

import (
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/ternarybob/arbor"
	"golang.org/x/sync/errgroup"
)

// goroutineCounter tracks spawned goroutines for diagnostics
var goroutineCounter int64

// GetGoroutineCount returns the number of goroutines spawned via SafeGo
func GetGoroutineCount() int64 {
	return atomic.LoadInt64(&goroutineCounter)
}

// SafeGo runs fn on the errgroup with panic recovery.
// A panic is logged with its stack and returned from the group as an error,
// so Wait() reports it instead of the process crashing.
//
// Example:
//
//	common.SafeGo(&group, logger, "extractTiming", func() error {
//	    return observer.collect(ctx, req)
//	})
func SafeGo(group *errgroup.Group, logger arbor.ILogger, name string, fn func() error) {
	atomic.AddInt64(&goroutineCounter, 1)

	group.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				buf := make([]byte, 4096)
				n := runtime.Stack(buf, false)
				stackTrace := string(buf[:n])

				if logger != nil {
					logger.Error().
						Str("goroutine", name).
						Str("panic", fmt.Sprintf("%v", r)).
						Str("stack", stackTrace).
						Msg("Recovered from panic in goroutine")
				}

				err = fmt.Errorf("goroutine %s panicked: %v", name, r)
			}
		}()

		return fn()
	})
}
