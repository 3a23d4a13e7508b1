package lifecycle

import (
	"context"
	"errors"
	"sync"
	"time"
)

// instance holds the single running Lifecycle a service-manager wrapper
// (Windows service control manager, systemd, etc.) drives through the
// package-level ServiceStart/ServiceStop entry points below, mirroring the
// static-method shape such wrappers require.
var (
	instanceMu sync.Mutex
	instance   *Lifecycle
)

// ServiceStart binds l as the process-wide singleton and runs DaemonInit +
// DaemonStart. Calling it again while an instance is already installed is a
// double-init error, guarding against the service manager restarting the
// entry point without a clean ServiceStop first.
func ServiceStart(ctx context.Context, l *Lifecycle) error {
	instanceMu.Lock()
	if instance != nil {
		instanceMu.Unlock()
		return errors.New("lifecycle: ServiceStart called while an instance is already running")
	}
	instance = l
	instanceMu.Unlock()

	if err := l.DaemonInit(); err != nil {
		return err
	}
	return l.DaemonStart(ctx)
}

// ServiceStop stops the singleton installed by ServiceStart and clears it,
// allowing a subsequent ServiceStart. grace <= 0 uses defaultStopGrace.
func ServiceStop(ctx context.Context, grace time.Duration) error {
	instanceMu.Lock()
	l := instance
	instance = nil
	instanceMu.Unlock()

	if l == nil {
		return errors.New("lifecycle: ServiceStop called with no running instance")
	}
	if grace <= 0 {
		grace = defaultStopGrace
	}
	return l.DaemonStop(ctx, grace)
}

const defaultStopGrace = 3 * time.Second
