package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// SetupSignalHandler returns a context canceled on SIGINT or SIGTERM. A
// second signal is left to the default handler, so it kills the process.
// Call stop to release the signal registration.
func SetupSignalHandler(parent context.Context) (ctx context.Context, stop context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
