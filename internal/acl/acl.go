package acl

import (
	"strings"

	"github.com/elliotchance/orderedmap/v2"
)

// InheritanceType is one of the four combine rules evaluated in eval.go.
type InheritanceType int

const (
	ChildOverrides InheritanceType = iota
	ParentOverrides
	AndBothPermit
	LeafNode
)

// inheritanceTypeNames is the canonical wire/display form used in feed XML.
var inheritanceTypeNames = map[InheritanceType]string{
	ChildOverrides:  "child-overrides",
	ParentOverrides: "parent-overrides",
	AndBothPermit:   "and-both-permit",
	LeafNode:        "leaf-node",
}

// Name returns the wire-format inheritance type name used in feed XML.
func (t InheritanceType) Name() string { return inheritanceTypeNames[t] }

// String supports %v/%s formatting in logs and test failures.
func (t InheritanceType) String() string { return t.Name() }

// InheritFrom identifies an ACL's parent: an identifier plus an optional
// fragment, conveyed on the wire as a query string (see feed builder).
type InheritFrom struct {
	DocId    string
	Fragment string
}

// principalSet is an ordered set of principals, deduplicated by either the
// case-sensitive or case-folded comparison key depending on the owning
// Acl's CaseSensitive flag. Built on orderedmap.OrderedMap keyed by the
// comparison key so members stay in insertion order for display/emission
// while dedup and membership tests are O(1).
type principalSet struct {
	order *orderedmap.OrderedMap[key, Principal]
	fold  bool
}

func newPrincipalSet(fold bool) *principalSet {
	return &principalSet{order: orderedmap.NewOrderedMap[key, Principal](), fold: fold}
}

func (s *principalSet) keyOf(p Principal) key {
	pp := p.Parse()
	if s.fold {
		return pp.KeyFold()
	}
	return pp.Key()
}

func (s *principalSet) Add(p Principal) {
	s.order.Set(s.keyOf(p), p)
}

func (s *principalSet) Contains(p Principal) bool {
	_, ok := s.order.Get(s.keyOf(p))
	return ok
}

func (s *principalSet) Intersects(o *principalSet) bool {
	for _, k := range s.order.Keys() {
		// Re-derive comparison using whichever set is case-folding, since
		// both sets in a single Acl share CaseSensitive.
		if p, ok := s.order.Get(k); ok {
			if o.Contains(p) {
				return true
			}
		}
	}
	return false
}

func (s *principalSet) Members() []Principal {
	out := make([]Principal, 0, s.order.Len())
	for _, k := range s.order.Keys() {
		p, _ := s.order.Get(k)
		out = append(out, p)
	}
	return out
}

func (s *principalSet) Len() int { return s.order.Len() }

func (s *principalSet) Equal(o *principalSet) bool {
	if s.Len() != o.Len() {
		return false
	}
	for _, p := range s.Members() {
		if !o.Contains(p) {
			return false
		}
	}
	return true
}

// Acl is an immutable ACL value: permit/deny sets for users and groups, an
// optional parent link, an inheritance rule, and a case-sensitivity flag.
type Acl struct {
	permitUsers  *principalSet
	denyUsers    *principalSet
	permitGroups *principalSet
	denyGroups   *principalSet

	InheritFrom     *InheritFrom
	InheritanceType InheritanceType
	CaseSensitive   bool
}

// Builder accumulates principals into an Acl; Acl itself is immutable.
type Builder struct {
	acl Acl
	set bool
}

// NewBuilder starts building an Acl with the given case-sensitivity.
func NewBuilder(caseSensitive bool) *Builder {
	fold := !caseSensitive
	return &Builder{acl: Acl{
		permitUsers:   newPrincipalSet(fold),
		denyUsers:     newPrincipalSet(fold),
		permitGroups:  newPrincipalSet(fold),
		denyGroups:    newPrincipalSet(fold),
		CaseSensitive: caseSensitive,
	}}
}

func validMember(p Principal) bool {
	if p.Name == "" {
		return false
	}
	return p.Name == strings.TrimSpace(p.Name)
}

// PermitUser adds p to the permit-users set. Panics if p is an invalid
// member (empty or whitespace-padded name) — construction-time invariant,
// not a runtime user error.
func (b *Builder) PermitUser(p Principal) *Builder {
	mustValid(p)
	b.acl.permitUsers.Add(p)
	return b
}

func (b *Builder) DenyUser(p Principal) *Builder {
	mustValid(p)
	b.acl.denyUsers.Add(p)
	return b
}

func (b *Builder) PermitGroup(p Principal) *Builder {
	mustValid(p)
	b.acl.permitGroups.Add(p)
	return b
}

func (b *Builder) DenyGroup(p Principal) *Builder {
	mustValid(p)
	b.acl.denyGroups.Add(p)
	return b
}

func mustValid(p Principal) {
	if !validMember(p) {
		panic("acl: invalid principal member: empty or surrounded by whitespace")
	}
}

// WithInheritFrom sets the parent link.
func (b *Builder) WithInheritFrom(docID, fragment string) *Builder {
	b.acl.InheritFrom = &InheritFrom{DocId: docID, Fragment: fragment}
	return b
}

// WithInheritanceType sets the combine rule.
func (b *Builder) WithInheritanceType(t InheritanceType) *Builder {
	b.acl.InheritanceType = t
	return b
}

// Build finalizes the immutable Acl.
func (b *Builder) Build() Acl {
	return b.acl
}

// PermitUsers, DenyUsers, PermitGroups, DenyGroups return the member
// principals in insertion order.
func (a Acl) PermitUsers() []Principal  { return a.permitUsers.Members() }
func (a Acl) DenyUsers() []Principal    { return a.denyUsers.Members() }
func (a Acl) PermitGroups() []Principal { return a.permitGroups.Members() }
func (a Acl) DenyGroups() []Principal   { return a.denyGroups.Members() }

// IsEmpty reports whether the Acl has no permit/deny entries and no parent
// — the "document has no ACLs at all" shape distinguished from "empty ACL
// that is public" in eval.go. It does not examine InheritanceType: a
// length-1 chain is only ever treated as "no ACLs" when every other field
// is empty too, regardless of what inheritance type the lone entry carries.
func (a Acl) IsEmpty() bool {
	return a.permitUsers.Len() == 0 && a.denyUsers.Len() == 0 &&
		a.permitGroups.Len() == 0 && a.denyGroups.Len() == 0 &&
		a.InheritFrom == nil
}

// Equal compares two Acls field-by-field: member sets, parent link,
// inheritance type, and case-sensitivity.
func (a Acl) Equal(o Acl) bool {
	if a.CaseSensitive != o.CaseSensitive || a.InheritanceType != o.InheritanceType {
		return false
	}
	if (a.InheritFrom == nil) != (o.InheritFrom == nil) {
		return false
	}
	if a.InheritFrom != nil && *a.InheritFrom != *o.InheritFrom {
		return false
	}
	return a.permitUsers.Equal(o.permitUsers) &&
		a.denyUsers.Equal(o.denyUsers) &&
		a.permitGroups.Equal(o.permitGroups) &&
		a.denyGroups.Equal(o.denyGroups)
}
