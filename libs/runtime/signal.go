package runtime

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// ShutdownSignals are the signals that start a graceful shutdown.
var ShutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

// SignalContext is cancelled on the first shutdown signal.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), ShutdownSignals...)
}
