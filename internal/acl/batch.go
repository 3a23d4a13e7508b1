package acl

import (
	"context"

	"go.uber.org/zap"
)

// AclId names an ACL node (typically a document identifier) for batch
// chain materialization.
type AclId = string

// BatchRetriever fetches ACLs for a batch of ids. It may fetch fewer or
// more than requested per call; AuthzBatch re-requests whatever it still
// needs. A missing id is simply absent from the returned map.
type BatchRetriever interface {
	GetAcls(ctx context.Context, ids []AclId) (map[AclId]Acl, error)
}

// Batch evaluates isAuthorized for many ids at once, fetching ACLs lazily
// (one retriever round-trip per still-unresolved chain depth) and
// coalescing duplicate parent lookups across ids that share an ancestor.
type Batch struct {
	retriever BatchRetriever
	logger    *zap.Logger
}

// NewBatch builds a batch evaluator over the given retriever.
func NewBatch(retriever BatchRetriever, logger *zap.Logger) *Batch {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Batch{retriever: retriever, logger: logger}
}

// Evaluate returns, for every id in ids, the authorization decision for
// identity. Missing ACLs or a chain cycle yield INDETERMINATE (coerced to
// DENY) for that id's root, and are logged; every id still gets an entry.
func (b *Batch) Evaluate(ctx context.Context, identity Identity, ids []AclId) (map[AclId]Status, error) {
	acls := make(map[AclId]Acl)   // resolved ACLs, keyed by id
	missing := make(map[AclId]bool)

	// frontier starts as the requested ids and grows to include every
	// parent reached while walking inheritFrom links; duplicate parents
	// shared by multiple ids are only ever fetched once because they drop
	// out of the frontier once resolved.
	frontier := make([]AclId, 0, len(ids))
	seen := make(map[AclId]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			frontier = append(frontier, id)
		}
	}

	for len(frontier) > 0 {
		toFetch := frontier[:0:0]
		for _, id := range frontier {
			if _, ok := acls[id]; ok {
				continue
			}
			if missing[id] {
				continue
			}
			toFetch = append(toFetch, id)
		}
		if len(toFetch) == 0 {
			break
		}

		fetched, err := b.retriever.GetAcls(ctx, toFetch)
		if err != nil {
			return nil, err
		}

		var nextFrontier []AclId
		for _, id := range toFetch {
			a, ok := fetched[id]
			if !ok {
				missing[id] = true
				continue
			}
			acls[id] = a
			if a.InheritFrom != nil {
				nextFrontier = append(nextFrontier, a.InheritFrom.DocId)
			}
		}
		frontier = nextFrontier
	}

	result := make(map[AclId]Status, len(ids))
	for _, id := range ids {
		chain, cyclic, ok := materializeChain(id, acls)
		if !ok {
			b.logger.Warn("authz batch: missing ACL in chain", zap.String("id", id))
			result[id] = Deny
			continue
		}
		if cyclic {
			b.logger.Warn("authz batch: ACL chain cycle detected", zap.String("id", id))
			result[id] = Deny
			continue
		}
		status, err := IsAuthorized(identity, chain)
		if err != nil {
			b.logger.Warn("authz batch: invalid chain", zap.String("id", id), zap.Error(err))
			result[id] = Deny
			continue
		}
		result[id] = status
	}
	return result, nil
}

// materializeChain walks id's inheritFrom links to the root using the
// already-resolved acls map, returning the chain in root-first order. ok
// is false if any node along the way is missing from acls. cyclic is true
// if id's own ACL reappears along its own chain.
func materializeChain(id AclId, acls map[AclId]Acl) (chain []Acl, cyclic bool, ok bool) {
	visited := make(map[AclId]bool)
	var reversed []Acl // leaf-first

	cur := id
	for {
		if visited[cur] {
			return nil, true, true
		}
		visited[cur] = true

		a, present := acls[cur]
		if !present {
			return nil, false, false
		}
		reversed = append(reversed, a)

		if a.InheritFrom == nil {
			break
		}
		cur = a.InheritFrom.DocId
	}

	chain = make([]Acl, len(reversed))
	for i, a := range reversed {
		chain[len(reversed)-1-i] = a
	}
	return chain, false, true
}
