// Package sigmon implements the cooperative-shutdown monitor shared by the
// stream and process services. The first SIGINT or SIGTERM flips a sticky
// shutdown flag and cancels the monitor's context; long-running loops poll
// the flag at their top, while select-based waiters use Done().
package sigmon

import (
	"context"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	log "github.com/sirupsen/logrus"
)

// Monitor watches for termination signals on behalf of a named service.
type Monitor struct {
	name     string
	shutdown atomic.Bool
	ctx      context.Context
	cancel   context.CancelFunc
}

// New installs handlers for SIGINT and SIGTERM and returns the monitor.
// The name appears in shutdown log lines.
func New(name string) *Monitor {
	var ctx, cancel = context.WithCancel(context.Background())
	var m = &Monitor{name: name, ctx: ctx, cancel: cancel}

	var ch = make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)

	go func() {
		var sig = <-ch
		log.WithFields(log.Fields{"monitor": m.name, "signal": sig.String()}).
			Info("shutdown signal received")
		m.Trip()
	}()
	return m
}

// Trip marks the monitor as shut down, exactly as signal delivery does.
func (m *Monitor) Trip() {
	m.shutdown.Store(true)
	m.cancel()
}

// Shutdown reports whether a termination signal has been received.
// Once true it stays true.
func (m *Monitor) Shutdown() bool { return m.shutdown.Load() }

// Done returns a channel closed on the first termination signal.
func (m *Monitor) Done() <-chan struct{} { return m.ctx.Done() }

// Context returns a context cancelled on the first termination signal.
func (m *Monitor) Context() context.Context { return m.ctx }
