package compositor

import (
	"errors"
	"sync"
)

// ErrCodecStopped is returned by Startup once Shutdown has run. libvips
// cannot be initialised again within the same process.
var ErrCodecStopped = errors.New("image codec runtime already shut down")

// codecRuntime is the process-wide codec lifecycle. start and stop are
// provided by the build-specific codec.
var codecRuntime = lifecycle{start: startCodec, stop: stopCodec}

type lifecycle struct {
	start func()
	stop  func()

	mu      sync.Mutex
	started bool
	stopped bool
}

// Startup initialises the codec runtime. Repeated calls are no-ops.
func Startup() error {
	return codecRuntime.Startup()
}

// Shutdown releases the codec runtime for the rest of the process. Call it
// once, on exit.
func Shutdown() {
	codecRuntime.Shutdown()
}

func (l *lifecycle) Startup() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return ErrCodecStopped
	}
	if !l.started {
		l.start()
		l.started = true
	}
	return nil
}

func (l *lifecycle) Shutdown() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.started && !l.stopped {
		l.stop()
	}
	l.stopped = true
}
