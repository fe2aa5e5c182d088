// FILE: logveil/src/cmd/logveil/signal.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/lixenwraith/log"
)

// Manages OS signals
type SignalHandler struct {
	onReport func()
	logger   *log.Logger
	sigChan  chan os.Signal
}

// Creates a signal handler. onReport runs on SIGUSR1.
func NewSignalHandler(onReport func(), logger *log.Logger) *SignalHandler {
	sh := &SignalHandler{
		onReport: onReport,
		logger:   logger,
		sigChan:  make(chan os.Signal, 1),
	}

	// Register for signals
	signal.Notify(sh.sigChan,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGUSR1, // On-demand status report
	)

	return sh
}

// Processes signals until a termination signal arrives or the context
// ends.
func (sh *SignalHandler) Handle(ctx context.Context) os.Signal {
	for {
		select {
		case sig := <-sh.sigChan:
			switch sig {
			case syscall.SIGUSR1:
				sh.logger.Info("msg", "Status report signal received",
					"signal", sig)
				if sh.onReport != nil {
					sh.onReport()
				}
				// Continue handling signals
			default:
				// Return termination signals
				return sig
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// Cleans up signal handling
func (sh *SignalHandler) Stop() {
	signal.Stop(sh.sigChan)
	close(sh.sigChan)
}
