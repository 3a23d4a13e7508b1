package lifecycle

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aras-services/gsa-adaptor/internal/docrequest"
	"github.com/aras-services/gsa-adaptor/internal/repository"
)

type fakeRepo struct {
	initErr    func(attempt int) error
	destroyErr error
	attempts   int32
	destroyed  int32
}

func (r *fakeRepo) Init(ctx context.Context) error {
	n := atomic.AddInt32(&r.attempts, 1)
	if r.initErr == nil {
		return nil
	}
	return r.initErr(int(n))
}

func (r *fakeRepo) GetDocIds(ctx context.Context, p repository.DocPusher) error { return nil }

func (r *fakeRepo) GetModifiedDocIds(ctx context.Context, cp repository.Checkpoint, p repository.DocPusher) (repository.Checkpoint, error) {
	return nil, repository.ErrIncrementalUnsupported
}

func (r *fakeRepo) GetDocContent(ctx context.Context, req *docrequest.Request, resp *docrequest.Response) error {
	return nil
}

func (r *fakeRepo) Destroy(ctx context.Context) error {
	atomic.AddInt32(&r.destroyed, 1)
	return r.destroyErr
}

var _ repository.Repository = (*fakeRepo)(nil)

func TestDaemonInitRejectsDoubleCall(t *testing.T) {
	l := New(nil, &fakeRepo{})
	if err := l.DaemonInit(); err != nil {
		t.Fatalf("first DaemonInit: %v", err)
	}
	if err := l.DaemonInit(); err == nil {
		t.Fatal("expected a second DaemonInit call to fail")
	}
}

func TestDaemonStartSucceedsImmediatelyWhenRepositoryInitSucceeds(t *testing.T) {
	repo := &fakeRepo{}
	srv := &http.Server{Addr: "127.0.0.1:0"}
	l := New(nil, repo, srv)

	if err := l.DaemonInit(); err != nil {
		t.Fatalf("DaemonInit: %v", err)
	}
	if err := l.DaemonStart(context.Background()); err != nil {
		t.Fatalf("DaemonStart: %v", err)
	}
	if atomic.LoadInt32(&repo.attempts) != 1 {
		t.Errorf("got %d Init attempts, want 1", repo.attempts)
	}

	if err := l.DaemonStop(context.Background(), time.Second); err != nil {
		t.Errorf("DaemonStop: %v", err)
	}
	if atomic.LoadInt32(&repo.destroyed) != 1 {
		t.Error("expected Destroy to be called once")
	}
}

func TestDaemonStartFailsFastOnNonRetriableStartupError(t *testing.T) {
	wantErr := errors.New("invalid root directory")
	repo := &fakeRepo{initErr: func(attempt int) error {
		return &repository.StartupError{Err: wantErr, Retriable: false}
	}}
	l := New(nil, repo)

	err := l.DaemonStart(context.Background())
	if err == nil || !errors.Is(err, wantErr) {
		t.Fatalf("got %v, want an error wrapping %v", err, wantErr)
	}
	if atomic.LoadInt32(&repo.attempts) != 1 {
		t.Errorf("got %d Init attempts, want exactly 1 (no retry for a non-retriable error)", repo.attempts)
	}
}

func TestDaemonStartAbortsWhenShutdownSignaledDuringRetryBackoff(t *testing.T) {
	repo := &fakeRepo{initErr: func(attempt int) error {
		return errors.New("transient: database unreachable")
	}}
	l := New(nil, repo)

	done := make(chan error, 1)
	go func() { done <- l.DaemonStart(context.Background()) }()

	// Give retryInit time to fail once and enter its backoff select before
	// signaling shutdown; the 8s initial backoff would otherwise make this
	// test slow if we raced the goroutine's first attempt.
	time.Sleep(50 * time.Millisecond)
	if err := l.DaemonStop(context.Background(), time.Second); err != nil {
		t.Errorf("DaemonStop: %v", err)
	}

	select {
	case err := <-done:
		if err == nil {
			t.Error("expected DaemonStart to return an error when shutdown is signaled mid-retry")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("DaemonStart did not return promptly after shutdown was signaled")
	}
}
