package exampleadaptor

import (
	"os"

	"github.com/aras-services/gsa-adaptor/internal/acl"
	"github.com/aras-services/gsa-adaptor/internal/feed"
	"github.com/aras-services/gsa-adaptor/internal/repository"
)

// recordFor builds the feed.Record for one walked file.
func recordFor(id, path string, info os.FileInfo, a *acl.Acl) feed.Record {
	return feed.Record{
		DocId:        id,
		LastModified: repository.LastModifiedOf(info.ModTime()),
		Action:       feed.Add,
		Acl:          a,
	}
}
