// Package repository defines the seam a connector author implements: the
// contract between this framework and the repository-specific code that
// actually knows how to list and fetch documents. Everything else in this
// module (Pusher, DocServer, AuthzBatch) is written against this interface,
// never against a concrete repository.
package repository

import (
	"context"
	"time"

	"github.com/aras-services/gsa-adaptor/internal/acl"
	"github.com/aras-services/gsa-adaptor/internal/docrequest"
	"github.com/aras-services/gsa-adaptor/internal/feed"
)

// DocPusher is the subset of Pusher a repository's GetDocIds/GetModifiedDocIds
// implementation is handed: a sink to push identifier records to, without
// exposing the rest of Pusher's batching/retry machinery.
type DocPusher interface {
	// PushRecord enqueues one record for the current feed push. Repository
	// implementations call this from inside GetDocIds/GetModifiedDocIds;
	// Pusher drains the queue into maxUrls-sized batches behind the scenes.
	PushRecord(ctx context.Context, r feed.Record) error
}

// Checkpoint is an opaque cursor a repository hands back from
// GetModifiedDocIds and receives back on the next poll, so it can resume an
// incremental scan. The framework never inspects its contents.
type Checkpoint []byte

// Repository is the contract a connector author implements. Init/Destroy
// bracket the process lifetime; GetDocIds/GetModifiedDocIds/GetDocContent are
// invoked repeatedly while the process runs.
type Repository interface {
	// Init is called once at startup, under Lifecycle's retry loop. Returning
	// a StartupError with Retriable=false aborts the retry loop immediately.
	Init(ctx context.Context) error

	// GetDocIds streams the repository's complete identifier list (and,
	// optionally, ACLs/metadata as part of each Record) to pusher. Called on
	// every scheduled or on-demand full push.
	GetDocIds(ctx context.Context, pusher DocPusher) error

	// GetModifiedDocIds streams only identifiers that changed since
	// checkpoint, returning the checkpoint to resume from next time. A
	// repository that does not support incremental polling should return
	// ErrIncrementalUnsupported; the Scheduler then skips incremental pushes.
	GetModifiedDocIds(ctx context.Context, checkpoint Checkpoint, pusher DocPusher) (Checkpoint, error)

	// GetDocContent serves one document pull: the repository inspects req
	// (conditional headers, trusted caller) and writes exactly one terminal
	// response through resp.
	GetDocContent(ctx context.Context, req *docrequest.Request, resp *docrequest.Response) error

	// Destroy releases repository-held resources at shutdown.
	Destroy(ctx context.Context) error
}

// AclRepository is an optional capability: a repository that can answer
// batched ACL-chain lookups for AuthzBatch. Repositories that serve documents
// with no independent ACL store (ACLs are always inlined on push) need not
// implement it.
type AclRepository interface {
	// GetAcls returns the ACL for every id it can resolve; ids it cannot
	// resolve are simply absent from the result, per acl.BatchRetriever.
	GetAcls(ctx context.Context, ids []string) (map[string]acl.Acl, error)
}

// StartupError distinguishes a fatal repository Init failure (bypasses the
// retry loop) from a transient one (retried with backoff). Repositories
// return a plain error for the transient case.
type StartupError struct {
	Err       error
	Retriable bool
}

func (e *StartupError) Error() string { return e.Err.Error() }
func (e *StartupError) Unwrap() error { return e.Err }

// ErrIncrementalUnsupported is returned by GetModifiedDocIds when the
// repository has no incremental story; the Scheduler treats this as "do not
// schedule incremental polling for this repository" rather than an error.
var ErrIncrementalUnsupported = &unsupportedError{}

type unsupportedError struct{}

func (*unsupportedError) Error() string { return "repository: incremental polling unsupported" }

// LastModifiedOf is a small helper repositories use to build Records: nil
// means "unknown", which the feed builder omits from the record entirely.
func LastModifiedOf(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
