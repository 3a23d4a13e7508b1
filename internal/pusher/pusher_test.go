package pusher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aras-services/gsa-adaptor/internal/apperr"
	"github.com/aras-services/gsa-adaptor/internal/feed"
)

func newTestJournal(t *testing.T) *Journal {
	t.Helper()
	return NewJournal(prometheus.NewRegistry())
}

func recordsOf(n int) []feed.Record {
	out := make([]feed.Record, n)
	for i := range out {
		out[i] = feed.Record{DocId: "doc" + string(rune('a'+i))}
	}
	return out
}

func TestPushRecordsBatchesAtMaxUrls(t *testing.T) {
	var batches int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&batches, 1)
		w.Write([]byte("Success"))
	}))
	defer srv.Close()

	submitter := feed.NewSubmitter(srv.Client(), srv.URL, false)
	journal := newTestJournal(t)
	p := New(submitter, journal, nil, Config{FeedName: "ds1", MaxUrls: 2})

	_, err := p.PushRecords(context.Background(), recordsOf(5), nil)
	if err != nil {
		t.Fatalf("PushRecords: %v", err)
	}
	if got := atomic.LoadInt32(&batches); got != 3 {
		t.Errorf("got %d batches for 5 records at maxUrls=2, want 3 (2+2+1)", got)
	}
	if journal.Snapshot().TotalPushed != 5 {
		t.Errorf("got %d pushed, want 5", journal.Snapshot().TotalPushed)
	}
}

func TestPushRecordsStopsAtFirstFailingBatch(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			w.Write([]byte("Failure"))
			return
		}
		w.Write([]byte("Success"))
	}))
	defer srv.Close()

	submitter := feed.NewSubmitter(srv.Client(), srv.URL, false)
	journal := newTestJournal(t)
	p := New(submitter, journal, nil, Config{FeedName: "ds1", MaxUrls: 2})

	noRetry := func(kind apperr.Kind, attempt int) (bool, time.Duration) { return false, 0 }

	first, err := p.PushRecords(context.Background(), recordsOf(5), noRetry)
	if err == nil {
		t.Fatal("expected an error from the failing first batch")
	}
	if first == nil || first.DocId != "doca" {
		t.Errorf("expected the first record of the failing batch to be returned, got %+v", first)
	}
	// Only one HTTP call should have happened: submitBatchWithRetry gives up
	// immediately since noRetry always refuses, and PushRecords returns
	// before attempting a second batch.
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("got %d submit calls, want 1", got)
	}
}

func TestSubmitXMLWithRetryRetriesThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n < 3 {
			w.Write([]byte("Failure"))
			return
		}
		w.Write([]byte("Success"))
	}))
	defer srv.Close()

	submitter := feed.NewSubmitter(srv.Client(), srv.URL, false)
	journal := newTestJournal(t)
	p := New(submitter, journal, nil, Config{FeedName: "ds1", MaxUrls: 10})

	fastRetry := func(kind apperr.Kind, attempt int) (bool, time.Duration) {
		if attempt > 5 {
			return false, 0
		}
		return true, time.Millisecond
	}

	_, err := p.PushRecords(context.Background(), recordsOf(1), fastRetry)
	if err != nil {
		t.Fatalf("PushRecords: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("got %d submit calls, want 3 (2 failures then success)", got)
	}
}

func TestPushModifiedDocIdsReturnsNextCheckpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Success"))
	}))
	defer srv.Close()

	submitter := feed.NewSubmitter(srv.Client(), srv.URL, false)
	journal := newTestJournal(t)
	p := New(submitter, journal, nil, Config{FeedName: "ds1", MaxUrls: 10})

	pull := func(ctx context.Context, checkpoint []byte, q *Queue) ([]byte, error) {
		if err := q.PushRecord(ctx, feed.Record{DocId: "doc1"}); err != nil {
			return nil, err
		}
		return []byte("cp2"), nil
	}

	next, err := p.PushModifiedDocIds(context.Background(), []byte("cp1"), pull, nil)
	if err != nil {
		t.Fatalf("PushModifiedDocIds: %v", err)
	}
	if string(next) != "cp2" {
		t.Errorf("got checkpoint %q, want %q", next, "cp2")
	}
}

func TestPushModifiedDocIdsHasIndependentLockFromFullPush(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Success"))
	}))
	defer srv.Close()

	submitter := feed.NewSubmitter(srv.Client(), srv.URL, false)
	journal := newTestJournal(t)
	p := New(submitter, journal, nil, Config{FeedName: "ds1", MaxUrls: 10})

	release := make(chan struct{})
	started := make(chan struct{})
	fullPull := func(ctx context.Context, q *Queue) error {
		close(started)
		<-release
		return q.PushRecord(ctx, feed.Record{DocId: "doc1"})
	}

	done := make(chan error, 1)
	go func() { done <- p.PushDocIds(context.Background(), fullPull, nil) }()
	<-started

	incPull := func(ctx context.Context, checkpoint []byte, q *Queue) ([]byte, error) {
		return nil, q.PushRecord(ctx, feed.Record{DocId: "doc2"})
	}
	if _, err := p.PushModifiedDocIds(context.Background(), nil, incPull, nil); err != nil {
		t.Errorf("expected an incremental push to proceed while a full push is in flight, got %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Errorf("full push: %v", err)
	}
}

func TestPushDocIdsRejectsConcurrentCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Success"))
	}))
	defer srv.Close()

	submitter := feed.NewSubmitter(srv.Client(), srv.URL, false)
	journal := newTestJournal(t)
	p := New(submitter, journal, nil, Config{FeedName: "ds1", MaxUrls: 10})

	release := make(chan struct{})
	started := make(chan struct{})
	pull := func(ctx context.Context, q *Queue) error {
		close(started)
		<-release
		return q.PushRecord(ctx, feed.Record{DocId: "doc1"})
	}

	done := make(chan error, 1)
	go func() {
		done <- p.PushDocIds(context.Background(), pull, nil)
	}()
	<-started

	if err := p.PushDocIds(context.Background(), pull, nil); err != ErrPushInProgress {
		t.Errorf("got %v, want ErrPushInProgress", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Errorf("first PushDocIds call: %v", err)
	}
}
