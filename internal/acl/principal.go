// Package acl implements the Principal/Acl value types and the pure
// authorization evaluator over an ACL chain.
package acl

import "strings"

// DomainFormat is the qualifier format embedded in a principal's raw name.
type DomainFormat int

const (
	// DomainFormatNone means the name carries no domain qualifier.
	DomainFormatNone DomainFormat = iota
	// DomainFormatDNS is "user@domain".
	DomainFormatDNS
	// DomainFormatNetbios is `domain\user`.
	DomainFormatNetbios
	// DomainFormatNetbiosForwardslash is "domain/user".
	DomainFormatNetbiosForwardslash
)

// DefaultNamespace is used when a Principal is constructed without one.
const DefaultNamespace = "Default"

// Principal is either a User or a Group, carrying a raw (possibly
// domain-qualified) name and a namespace.
type Principal struct {
	IsGroup   bool
	Name      string
	Namespace string
}

// NewUser builds a User principal in the default namespace.
func NewUser(name string) Principal {
	return Principal{Name: strings.TrimSpace(name), Namespace: DefaultNamespace}
}

// NewGroup builds a Group principal in the default namespace.
func NewGroup(name string) Principal {
	return Principal{IsGroup: true, Name: strings.TrimSpace(name), Namespace: DefaultNamespace}
}

// WithNamespace returns a copy of p in the given namespace.
func (p Principal) WithNamespace(ns string) Principal {
	p.Namespace = ns
	return p
}

// ParsedPrincipal is the split form of a Principal: whether it is a group,
// its plain (unqualified) name, the domain it was qualified with (if any),
// the format that qualifier was written in, and the namespace.
//
// Principal.Parse().ToPrincipal() == Principal is the codec's round-trip
// invariant; every comparison (equality, hashing, ordering) operates on
// this parsed form, never on the raw name, so principals written in
// different domain formats that denote the same (namespace, domain,
// plainName) triple compare equal.
type ParsedPrincipal struct {
	IsGroup      bool
	PlainName    string
	Domain       string
	DomainFormat DomainFormat
	Namespace    string
}

// Parse splits p's raw name into its domain-qualifier parts. An empty
// Namespace is normalized to DefaultNamespace.
func (p Principal) Parse() ParsedPrincipal {
	ns := p.Namespace
	if ns == "" {
		ns = DefaultNamespace
	}

	if domain, plain, ok := strings.Cut(p.Name, "\\"); ok {
		return ParsedPrincipal{
			IsGroup: p.IsGroup, PlainName: plain, Domain: domain,
			DomainFormat: DomainFormatNetbios, Namespace: ns,
		}
	}
	if idx := strings.LastIndex(p.Name, "@"); idx >= 0 && idx < len(p.Name)-1 {
		return ParsedPrincipal{
			IsGroup: p.IsGroup, PlainName: p.Name[:idx], Domain: p.Name[idx+1:],
			DomainFormat: DomainFormatDNS, Namespace: ns,
		}
	}
	if domain, plain, ok := strings.Cut(p.Name, "/"); ok {
		return ParsedPrincipal{
			IsGroup: p.IsGroup, PlainName: plain, Domain: domain,
			DomainFormat: DomainFormatNetbiosForwardslash, Namespace: ns,
		}
	}
	return ParsedPrincipal{
		IsGroup: p.IsGroup, PlainName: p.Name, Domain: "",
		DomainFormat: DomainFormatNone, Namespace: ns,
	}
}

// ToPrincipal reconstitutes the raw-name Principal, re-applying the
// original domain format. Parse/ToPrincipal round-trip for every valid
// principal.
func (pp ParsedPrincipal) ToPrincipal() Principal {
	name := pp.PlainName
	switch pp.DomainFormat {
	case DomainFormatDNS:
		name = pp.PlainName + "@" + pp.Domain
	case DomainFormatNetbios:
		name = pp.Domain + "\\" + pp.PlainName
	case DomainFormatNetbiosForwardslash:
		name = pp.Domain + "/" + pp.PlainName
	}
	return Principal{IsGroup: pp.IsGroup, Name: name, Namespace: pp.Namespace}
}

// key is the tuple used for equality and case-insensitive comparisons.
type key struct {
	isGroup   bool
	namespace string
	domain    string
	plainName string
}

// Key returns the comparison key, case-sensitive.
func (pp ParsedPrincipal) Key() key {
	return key{pp.IsGroup, pp.Namespace, pp.Domain, pp.PlainName}
}

// KeyFold returns the comparison key lowercased for case-insensitive ACLs.
// Principals are kept in their original case for display/emission; only
// the comparator lowercases, preserving round-trip fidelity.
func (pp ParsedPrincipal) KeyFold() key {
	return key{
		pp.IsGroup,
		strings.ToLower(pp.Namespace),
		strings.ToLower(pp.Domain),
		strings.ToLower(pp.PlainName),
	}
}

// Equal compares two principals by their parsed, case-sensitive form.
func (p Principal) Equal(o Principal) bool {
	return p.Parse().Key() == o.Parse().Key()
}

// EqualFold compares two principals by their parsed, case-folded form.
func (p Principal) EqualFold(o Principal) bool {
	return p.Parse().KeyFold() == o.Parse().KeyFold()
}

// Less orders two principals for deterministic emission: groups after
// users, then namespace, domain, plain name.
func (p Principal) Less(o Principal) bool {
	a, b := p.Parse(), o.Parse()
	if a.IsGroup != b.IsGroup {
		return !a.IsGroup
	}
	if a.Namespace != b.Namespace {
		return a.Namespace < b.Namespace
	}
	if a.Domain != b.Domain {
		return a.Domain < b.Domain
	}
	return a.PlainName < b.PlainName
}
