// Package lifecycle implements the adaptor's two-phase bootstrap: daemonInit
// binds listeners, daemonStart runs the repository's own Init under a
// startup retry loop, and daemonStop tears both down in reverse order.
package lifecycle

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/aras-services/gsa-adaptor/internal/repository"
)

const (
	initialBackoff = 8 * time.Second
	maxBackoff     = time.Hour
)

// Lifecycle owns the HTTP listeners and drives the repository's
// Init/Destroy through the documented two-stage sequence. A single
// Lifecycle guards against double init; see DaemonInit.
type Lifecycle struct {
	logger *zap.Logger
	repo   repository.Repository

	mu       sync.Mutex
	inited   bool
	started  bool
	servers  []*http.Server
	listeners []net.Listener
	shutdown chan struct{} // closed once: the "inverted semaphore" shutdown signals flow through
}

// New builds a Lifecycle around repo. servers are the http.Server values to
// bind and serve once DaemonInit runs (the core's doc/authz/dashboard
// servers); each must already have its Addr and Handler set.
func New(logger *zap.Logger, repo repository.Repository, servers ...*http.Server) *Lifecycle {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Lifecycle{logger: logger, repo: repo, servers: servers, shutdown: make(chan struct{})}
}

// DaemonInit binds every server socket and starts accepting connections (but
// does not yet serve meaningful responses until DaemonStart's repository
// Init completes). Calling it twice on the same Lifecycle is an error —
// guards against the double-init failure mode a singleton service wrapper
// can trigger.
func (l *Lifecycle) DaemonInit() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.inited {
		return errors.New("lifecycle: DaemonInit called twice")
	}
	l.inited = true

	for _, srv := range l.servers {
		ln, err := net.Listen("tcp", srv.Addr)
		if err != nil {
			return err
		}
		l.listeners = append(l.listeners, ln)
	}
	return nil
}

// DaemonStart runs the repository's Init in a retry loop with exponential
// backoff from ~8s to a 1h cap, then starts serving every bound listener.
// The loop exits on success, on a non-retriable repository.StartupError, or
// on Shutdown being signaled mid-backoff.
func (l *Lifecycle) DaemonStart(ctx context.Context) error {
	l.mu.Lock()
	listeners := append([]net.Listener(nil), l.listeners...)
	servers := append([]*http.Server(nil), l.servers...)
	l.mu.Unlock()

	if err := l.retryInit(ctx); err != nil {
		return err
	}

	l.mu.Lock()
	l.started = true
	l.mu.Unlock()

	for i, srv := range servers {
		srv := srv
		ln := listeners[i]
		go func() {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				l.logger.Error("lifecycle: server exited", zap.String("addr", srv.Addr), zap.Error(err))
			}
		}()
	}
	return nil
}

func (l *Lifecycle) retryInit(ctx context.Context) error {
	backoff := initialBackoff
	attempt := 0
	for {
		attempt++
		err := l.repo.Init(ctx)
		if err == nil {
			return nil
		}

		var startupErr *repository.StartupError
		if errors.As(err, &startupErr) && !startupErr.Retriable {
			return err
		}

		l.logger.Warn("lifecycle: repository init failed, retrying",
			zap.Int("attempt", attempt), zap.Duration("backoff", backoff), zap.Error(err))

		select {
		case <-time.After(backoff):
		case <-l.shutdown:
			return errors.New("lifecycle: shutdown signaled during startup retry")
		case <-ctx.Done():
			return ctx.Err()
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// DaemonStop signals shutdown, stops every listener with a grace period,
// calls the repository's Destroy, and releases server sockets.
func (l *Lifecycle) DaemonStop(ctx context.Context, grace time.Duration) error {
	l.mu.Lock()
	if l.shutdown != nil {
		select {
		case <-l.shutdown:
			// already closed
		default:
			close(l.shutdown)
		}
	}
	servers := append([]*http.Server(nil), l.servers...)
	l.mu.Unlock()

	stopCtx, cancel := context.WithTimeout(ctx, grace)
	defer cancel()

	var firstErr error
	for _, srv := range servers {
		if err := srv.Shutdown(stopCtx); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if err := l.repo.Destroy(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// ShutdownHook starts a goroutine that waits until stop is closed (or
// receives a value) and then calls DaemonStop with a 3s grace period.
func (l *Lifecycle) ShutdownHook(stop <-chan struct{}) {
	go func() {
		<-stop
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := l.DaemonStop(ctx, 3*time.Second); err != nil {
			l.logger.Error("lifecycle: shutdown hook failed", zap.Error(err))
		}
	}()
}
