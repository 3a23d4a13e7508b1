// Package exampleadaptor is a reference repository.Repository
// implementation: it walks a local filesystem tree and serves its files as
// GSA documents, inheriting one ACL per directory (grouped by owning Unix
// group, child-overrides). It exists to exercise the framework end to end
// and as a template for connector authors; it is not meant to be a
// production connector on its own.
package exampleadaptor

import (
	"context"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/aras-services/gsa-adaptor/internal/acl"
	"github.com/aras-services/gsa-adaptor/internal/docrequest"
	"github.com/aras-services/gsa-adaptor/internal/repository"
)

// Config configures a Repository.
type Config struct {
	// RootDir is the directory tree served as documents; every regular file
	// under it becomes one document, identified by its path relative to
	// RootDir.
	RootDir string
	// DefaultGroup, if set, is PERMIT-listed on every directory ACL that
	// would otherwise be empty (no restriction beyond trusted-peer access).
	DefaultGroup string
}

// Repository walks RootDir on demand; it keeps no persistent index, so
// GetModifiedDocIds is unsupported (the tree is re-walked in full on every
// scheduled push instead).
type Repository struct {
	cfg    Config
	logger *zap.Logger

	mu      sync.RWMutex
	aclByID map[string]acl.Acl // populated as GetDocIds walks; consulted by GetAcls
}

// NewRepository builds a Repository over cfg.RootDir.
func NewRepository(cfg Config, logger *zap.Logger) *Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository{cfg: cfg, logger: logger, aclByID: make(map[string]acl.Acl)}
}

// Init verifies RootDir exists and is a directory.
func (r *Repository) Init(ctx context.Context) error {
	info, err := os.Stat(r.cfg.RootDir)
	if err != nil {
		return &repository.StartupError{Err: err, Retriable: true}
	}
	if !info.IsDir() {
		return &repository.StartupError{Err: os.ErrInvalid, Retriable: false}
	}
	return nil
}

// Destroy releases nothing; the repository holds no handles between calls.
func (r *Repository) Destroy(ctx context.Context) error { return nil }

// GetDocIds walks RootDir, pushing one record per regular file and caching
// each directory's inherited ACL for later GetAcls calls.
func (r *Repository) GetDocIds(ctx context.Context, pusher repository.DocPusher) error {
	return filepath.WalkDir(r.cfg.RootDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if d.IsDir() {
			r.cacheDirAcl(path)
			return nil
		}

		id, relErr := r.docID(path)
		if relErr != nil {
			return relErr
		}
		info, statErr := d.Info()
		if statErr != nil {
			return statErr
		}

		a := r.aclFor(filepath.Dir(path))
		rec := recordFor(id, path, info, &a)
		return pusher.PushRecord(ctx, rec)
	})
}

// GetModifiedDocIds reports that incremental polling is unsupported; every
// push is a full walk.
func (r *Repository) GetModifiedDocIds(ctx context.Context, checkpoint repository.Checkpoint, pusher repository.DocPusher) (repository.Checkpoint, error) {
	return nil, repository.ErrIncrementalUnsupported
}

// GetDocContent serves one file's bytes, honoring If-Modified-Since.
func (r *Repository) GetDocContent(ctx context.Context, req *docrequest.Request, resp *docrequest.Response) error {
	path := filepath.Join(r.cfg.RootDir, filepath.FromSlash(req.DocId))
	info, err := os.Stat(path)
	if err != nil {
		return resp.RespondNotFound()
	}

	if req.CanRespondWithNoContent(info.ModTime()) {
		return resp.RespondNotModified()
	}

	f, err := os.Open(path)
	if err != nil {
		return resp.RespondNotFound()
	}
	defer f.Close()

	if err := resp.SetContentType(contentTypeFor(path)); err != nil {
		return err
	}
	if err := resp.SetLastModified(info.ModTime()); err != nil {
		return err
	}
	if req.IsGSA {
		a := r.aclFor(filepath.Dir(path))
		if err := resp.SetAcl(a); err != nil {
			return err
		}
	}

	out, err := resp.GetOutputStream()
	if err != nil {
		return err
	}
	_, err = io.Copy(out, f)
	return err
}

// GetAcls implements acl.BatchRetriever (via repository.AclRepository) so
// cmd/server can wire an authzserver.Handler against this repository
// without a separate ACL store. ids may be real document ids (file paths)
// or the synthetic "<dir>/.acl" ids an Acl's InheritFrom chain climbs
// through (see cacheDirAcl); both resolve to "the directory containing
// this id" the same way.
func (r *Repository) GetAcls(ctx context.Context, ids []string) (map[string]acl.Acl, error) {
	out := make(map[string]acl.Acl, len(ids))
	for _, id := range ids {
		dir := filepath.Dir(filepath.Join(r.cfg.RootDir, filepath.FromSlash(id)))
		out[id] = r.aclFor(dir)
	}
	return out, nil
}

func (r *Repository) docID(path string) (string, error) {
	rel, err := filepath.Rel(r.cfg.RootDir, path)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

// aclFor returns dir's ACL, building and caching it on first access. Every
// directory ACL permits its owning Unix group (or DefaultGroup as a
// fallback) and, except at the root, inherits from its parent directory
// with child-overrides — a deeper, more specific grant wins over a broader
// one higher in the tree.
func (r *Repository) aclFor(dir string) acl.Acl {
	r.mu.RLock()
	if a, ok := r.aclByID[dir]; ok {
		r.mu.RUnlock()
		return a
	}
	r.mu.RUnlock()
	return r.cacheDirAcl(dir)
}

func (r *Repository) cacheDirAcl(dir string) acl.Acl {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.aclByID[dir]; ok {
		return a
	}

	b := acl.NewBuilder(false)
	group := dirGroup(dir)
	if group == "" {
		group = r.cfg.DefaultGroup
	}
	if group != "" {
		b.PermitGroup(acl.NewGroup(group))
	}

	if dir != r.cfg.RootDir && strings.HasPrefix(dir, r.cfg.RootDir) {
		parent := filepath.Dir(dir)
		b.WithInheritFrom(aclSentinel(r.cfg.RootDir, parent), "").WithInheritanceType(acl.ChildOverrides)
	}

	built := b.Build()
	r.aclByID[dir] = built
	return built
}

// aclSentinel names a synthetic, non-existent file inside dir so GetAcls'
// Dir(join(root, id)) step resolves back to dir itself, letting file ids
// and directory-inheritance ids share one id space.
func aclSentinel(root, dir string) string {
	rel, err := filepath.Rel(root, dir)
	if err != nil || rel == "." {
		return ".acl"
	}
	return filepath.ToSlash(rel) + "/.acl"
}

func contentTypeFor(path string) string {
	if ct := mime.TypeByExtension(filepath.Ext(path)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
