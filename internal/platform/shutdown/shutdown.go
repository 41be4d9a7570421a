package shutdown

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// Signals that stop the server and the long-running CLI commands.
var Signals = []os.Signal{syscall.SIGINT, syscall.SIGTERM}

// NotifyContext is cancelled on the first of Signals.
func NotifyContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, Signals...)
}
