package pusher

import (
	"context"

	"github.com/aras-services/gsa-adaptor/internal/feed"
)

// Queue is the bounded channel a Repository.GetDocIds/GetModifiedDocIds
// implementation pushes records into; Pusher drains it on the other end
// into maxUrls-sized batches. It implements repository.DocPusher.
type Queue struct {
	ch chan feed.Record
}

func newQueue(capacity int) *Queue {
	return &Queue{ch: make(chan feed.Record, capacity)}
}

// PushRecord enqueues one record, blocking if the queue is full until a
// batch drains or ctx is cancelled.
func (q *Queue) PushRecord(ctx context.Context, r feed.Record) error {
	select {
	case q.ch <- r:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close signals no more records will be pushed. Called once by the
// repository-driving goroutine after GetDocIds/GetModifiedDocIds returns.
func (q *Queue) Close() { close(q.ch) }

// Next pops the next record, or reports !ok once the queue has been closed
// and drained.
func (q *Queue) Next(ctx context.Context) (feed.Record, bool) {
	select {
	case r, ok := <-q.ch:
		return r, ok
	case <-ctx.Done():
		return feed.Record{}, false
	}
}
