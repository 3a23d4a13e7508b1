// Package feed builds and submits the appliance's XML feed documents: the
// metadata-and-url feed (identifier records) and the group-definitions feed
// (group membership).
package feed

import (
	"time"

	"github.com/aras-services/gsa-adaptor/internal/acl"
)

// Action is what the appliance should do with a Record's identifier.
type Action int

const (
	Add Action = iota
	Delete
)

func (a Action) String() string {
	if a == Delete {
		return "delete"
	}
	return "add"
}

// Record is one entry in a metadata-and-url feed.
type Record struct {
	DocId            string
	LastModified     *time.Time
	DisplayUrl       string
	Action           Action
	CrawlImmediately bool
	CrawlOnce        bool
	Lock             bool
	NoFollow         bool
	Metadata         *acl.Metadata
	Acl              *acl.Acl
}
