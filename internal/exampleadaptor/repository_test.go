package exampleadaptor

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/aras-services/gsa-adaptor/internal/docrequest"
	"github.com/aras-services/gsa-adaptor/internal/feed"
	"github.com/aras-services/gsa-adaptor/internal/repository"
)

type fakePusher struct {
	records []feed.Record
}

func (p *fakePusher) PushRecord(ctx context.Context, r feed.Record) error {
	p.records = append(p.records, r)
	return nil
}

func writeTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "top.txt"), []byte("top"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "sub", "nested.txt"), []byte("nested"), 0o644); err != nil {
		t.Fatal(err)
	}
	return root
}

func TestGetDocIdsWalksEveryRegularFile(t *testing.T) {
	root := writeTree(t)
	repo := NewRepository(Config{RootDir: root, DefaultGroup: "everyone"}, nil)

	p := &fakePusher{}
	if err := repo.GetDocIds(context.Background(), p); err != nil {
		t.Fatalf("GetDocIds: %v", err)
	}

	got := map[string]bool{}
	for _, r := range p.records {
		got[r.DocId] = true
	}
	if !got["top.txt"] || !got["sub/nested.txt"] {
		t.Errorf("expected top.txt and sub/nested.txt to be pushed, got %v", got)
	}
}

func TestGetDocIdsAssignsDefaultGroupAclToEveryFile(t *testing.T) {
	root := writeTree(t)
	repo := NewRepository(Config{RootDir: root, DefaultGroup: "everyone"}, nil)

	p := &fakePusher{}
	if err := repo.GetDocIds(context.Background(), p); err != nil {
		t.Fatalf("GetDocIds: %v", err)
	}

	for _, r := range p.records {
		if r.Acl == nil || r.Acl.IsEmpty() {
			t.Errorf("expected %s to carry a non-empty ACL, got %+v", r.DocId, r.Acl)
		}
	}
}

func TestGetModifiedDocIdsReportsUnsupported(t *testing.T) {
	root := t.TempDir()
	repo := NewRepository(Config{RootDir: root}, nil)

	_, err := repo.GetModifiedDocIds(context.Background(), nil, &fakePusher{})
	if err != repository.ErrIncrementalUnsupported {
		t.Errorf("got %v, want ErrIncrementalUnsupported", err)
	}
}

func TestGetDocContentServesFileBytes(t *testing.T) {
	root := writeTree(t)
	repo := NewRepository(Config{RootDir: root}, nil)

	req := &docrequest.Request{DocId: "top.txt"}
	rec := httptest.NewRecorder()
	resp := docrequest.NewResponse(rec, false)

	if err := repo.GetDocContent(context.Background(), req, resp); err != nil {
		t.Fatalf("GetDocContent: %v", err)
	}
	if rec.Body.String() != "top" {
		t.Errorf("got body %q, want %q", rec.Body.String(), "top")
	}
}

func TestGetDocContentRespondsNotFoundForMissingFile(t *testing.T) {
	root := t.TempDir()
	repo := NewRepository(Config{RootDir: root}, nil)

	req := &docrequest.Request{DocId: "missing.txt"}
	rec := httptest.NewRecorder()
	resp := docrequest.NewResponse(rec, false)

	if err := repo.GetDocContent(context.Background(), req, resp); err != nil {
		t.Fatalf("GetDocContent: %v", err)
	}
	if rec.Code != 404 {
		t.Errorf("got status %d, want 404", rec.Code)
	}
}
