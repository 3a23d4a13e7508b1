// Package pusher drives the repository -> appliance data plane: it pulls
// identifiers from the repository, batches them into feeds via
// internal/feed, submits each batch, and applies the per-call retry policy.
package pusher

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/aras-services/gsa-adaptor/internal/acl"
	"github.com/aras-services/gsa-adaptor/internal/apperr"
	"github.com/aras-services/gsa-adaptor/internal/feed"
)

// ErrPushInProgress is returned immediately by PushDocIds when another full
// push is already running process-wide. Per the Open Question resolution in
// spec.md §9, simultaneous calls serialize on a single lock and a losing
// caller is told immediately rather than queued.
var ErrPushInProgress = errors.New("pusher: a push is already in progress")

// Config configures a Pusher.
type Config struct {
	FeedName   string // the connector's feed.name datasource
	MaxUrls    int    // feed.maxUrls, the batch size cap
	BuilderOpt feed.Options
}

// Pusher batches and submits identifier and group feeds to the appliance.
type Pusher struct {
	builder   *feed.Builder
	submitter *feed.Submitter
	journal   *Journal
	logger    *zap.Logger
	cfg       Config

	fullPushMu        sync.Mutex
	incrementalPushMu sync.Mutex
}

// New builds a Pusher.
func New(submitter *feed.Submitter, journal *Journal, logger *zap.Logger, cfg Config) *Pusher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxUrls <= 0 {
		cfg.MaxUrls = 500
	}
	return &Pusher{
		builder:   feed.NewBuilder(cfg.FeedName, cfg.BuilderOpt),
		submitter: submitter,
		journal:   journal,
		logger:    logger,
		cfg:       cfg,
	}
}

// docSource is implemented by whatever drives a push: either the repository
// streaming through a queue (see Queue below) or a plain slice for direct
// pushRecords-style calls.
type docSource interface {
	Next(ctx context.Context) (feed.Record, bool, error)
}

// sliceSource adapts a []feed.Record to docSource for PushRecords.
type sliceSource struct {
	records []feed.Record
	i       int
}

func (s *sliceSource) Next(ctx context.Context) (feed.Record, bool, error) {
	if s.i >= len(s.records) {
		return feed.Record{}, false, nil
	}
	r := s.records[s.i]
	s.i++
	return r, true, nil
}

// PushRecords batches and submits records via the content datasource
// (cfg.FeedName), at most cfg.MaxUrls per feed. One pushRecords call yields
// ceil(N / maxUrls) feeds submitted in order; the first batch failure
// short-circuits and its first record is returned. handler overrides the
// default per-call retry policy when non-nil.
func (p *Pusher) PushRecords(ctx context.Context, records []feed.Record, handler ErrorHandler) (*feed.Record, error) {
	if handler == nil {
		handler = DefaultErrorHandler(0)
	}
	return p.pushFromSource(ctx, &sliceSource{records: records}, p.cfg.FeedName, handler)
}

func (p *Pusher) pushFromSource(ctx context.Context, src docSource, datasource string, handler ErrorHandler) (*feed.Record, error) {
	for {
		batch, err := p.nextBatch(ctx, src)
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			return nil, nil
		}

		if err := p.submitBatchWithRetry(ctx, datasource, batch, handler); err != nil {
			first := batch[0]
			return &first, err
		}
		for _, r := range batch {
			p.journal.RecordPushed(r.DocId)
		}
	}
}

func (p *Pusher) nextBatch(ctx context.Context, src docSource) ([]feed.Record, error) {
	batch := make([]feed.Record, 0, p.cfg.MaxUrls)
	for len(batch) < p.cfg.MaxUrls {
		r, ok, err := src.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		batch = append(batch, r)
	}
	return batch, nil
}

// submitBatchWithRetry builds one feed document from batch and submits it,
// retrying per handler on feed-kind failures. Attempt counts are 1-origin
// and reset for every new batch.
func (p *Pusher) submitBatchWithRetry(ctx context.Context, datasource string, batch []feed.Record, handler ErrorHandler) error {
	xmlBody, err := p.builder.BuildMetadataAndURL(batch)
	if err != nil {
		return apperr.Wrap(apperr.KindInvalidInput, "pusher: failed to build feed", err)
	}
	return p.submitXMLWithRetry(ctx, datasource, "metadata-and-url", xmlBody, handler)
}

// PushNamedResources pushes a set of identifier/ACL pairs as a
// metadata-and-url feed carrying only ACL information (no body), used for
// out-of-band ACL updates.
func (p *Pusher) PushNamedResources(ctx context.Context, resources map[string]acl.Acl, handler ErrorHandler) error {
	records := make([]feed.Record, 0, len(resources))
	for id, a := range resources {
		aCopy := a
		records = append(records, feed.Record{DocId: id, Acl: &aCopy})
	}
	_, err := p.PushRecords(ctx, records, handler)
	return err
}

// PushGroupDefinitions submits a group-membership feed to sourceName, with
// the same per-call retry policy as a record feed.
func (p *Pusher) PushGroupDefinitions(ctx context.Context, memberships map[acl.Principal][]acl.Principal, caseSensitive bool, feedType feed.FeedType, sourceName string, handler ErrorHandler) error {
	if handler == nil {
		handler = DefaultErrorHandler(0)
	}
	xmlBody, err := p.builder.BuildGroupDefinitions(memberships, caseSensitive, feedType)
	if err != nil {
		return apperr.Wrap(apperr.KindInvalidInput, "pusher: failed to build group feed", err)
	}
	return p.submitXMLWithRetry(ctx, sourceName, "groups", xmlBody, handler)
}

// submitXMLWithRetry submits an already-built XML document, retrying per
// handler on feed-kind failures. Attempt counts are 1-origin and reset per
// call.
func (p *Pusher) submitXMLWithRetry(ctx context.Context, datasource, feedtype string, xmlBody []byte, handler ErrorHandler) error {
	attempt := 0
	for {
		attempt++
		err := p.submitter.Submit(ctx, datasource, feedtype, xmlBody)
		if err == nil {
			return nil
		}
		kind, _ := apperr.KindOf(err)
		retry, backoff := handler(kind, attempt)
		if !retry {
			return err
		}
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return apperr.Wrap(apperr.KindInterrupted, "pusher: cancelled during retry backoff", ctx.Err())
		}
	}
}

// PushDocIds drives a full push: it calls repo-supplied GetDocIds through a
// bounded in-memory queue, batching what arrives into feeds. Only one full
// push may run at a time process-wide; a losing concurrent caller gets
// ErrPushInProgress immediately (spec.md §9's resolved Open Question). A
// repository that errors before producing anything counts as an
// interruption rather than a failure.
func (p *Pusher) PushDocIds(ctx context.Context, pull func(ctx context.Context, q *Queue) error, handler ErrorHandler) error {
	if !p.fullPushMu.TryLock() {
		return ErrPushInProgress
	}
	defer p.fullPushMu.Unlock()

	_, err := p.runQueueBackedPush(ctx, handler, func(ctx context.Context, q *Queue) ([]byte, error) {
		return nil, pull(ctx, q)
	})
	return err
}

// PushModifiedDocIds drives an incremental push: it calls the repository's
// GetModifiedDocIds through the same bounded-queue plumbing as PushDocIds,
// batching what arrives into feeds, and returns the checkpoint to resume
// from next time. It guards on its own lock, independent of any full push in
// flight, per spec.md §4.4 ("at most one push of each kind is in flight
// process-wide").
func (p *Pusher) PushModifiedDocIds(ctx context.Context, checkpoint []byte, pull func(ctx context.Context, checkpoint []byte, q *Queue) ([]byte, error), handler ErrorHandler) ([]byte, error) {
	if !p.incrementalPushMu.TryLock() {
		return nil, ErrPushInProgress
	}
	defer p.incrementalPushMu.Unlock()

	return p.runQueueBackedPush(ctx, handler, func(ctx context.Context, q *Queue) ([]byte, error) {
		return pull(ctx, checkpoint, q)
	})
}

// runQueueBackedPush runs the shared queue-draining/journal-recording
// machinery behind both PushDocIds and PushModifiedDocIds: pull streams
// records into a bounded Queue on one goroutine while this goroutine drains
// it into maxUrls-sized feed batches, and the journal records a
// success/interruption/failure outcome for the run.
func (p *Pusher) runQueueBackedPush(ctx context.Context, handler ErrorHandler, pull func(ctx context.Context, q *Queue) ([]byte, error)) ([]byte, error) {
	if handler == nil {
		handler = DefaultErrorHandler(0)
	}

	start := timeNow()
	p.journal.RecordPushStart(start)

	q := newQueue(128)
	var nextCheckpoint []byte
	pullErrCh := make(chan error, 1)
	go func() {
		defer q.Close()
		cp, err := pull(ctx, q)
		nextCheckpoint = cp
		pullErrCh <- err
	}()

	produced := false
	wrappedSrc := queueSourceFunc(func(ctx context.Context) (feed.Record, bool, error) {
		r, ok := q.Next(ctx)
		if ok {
			produced = true
		}
		return r, ok, nil
	})

	_, pushErr := p.pushFromSource(ctx, wrappedSrc, p.cfg.FeedName, handler)
	pullErr := <-pullErrCh

	status := StatusSuccess
	switch {
	case pushErr != nil:
		status = StatusFailure
	case pullErr != nil && !produced:
		status = StatusInterruption
	case pullErr != nil:
		status = StatusFailure
	}
	p.journal.RecordPushEnd(timeNow(), status)

	if pushErr != nil {
		return nil, pushErr
	}
	return nextCheckpoint, pullErr
}

// queueSourceFunc adapts a plain function to docSource.
type queueSourceFunc func(ctx context.Context) (feed.Record, bool, error)

func (f queueSourceFunc) Next(ctx context.Context) (feed.Record, bool, error) { return f(ctx) }
