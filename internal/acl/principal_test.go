package acl

import "testing"

func TestParseToPrincipalRoundTrip(t *testing.T) {
	cases := []Principal{
		NewUser("alice"),
		NewUser("alice@example.com"),
		NewUser(`EXAMPLE\alice`),
		NewUser("EXAMPLE/alice"),
		NewGroup("engineering"),
		NewUser("alice").WithNamespace("ldap"),
	}
	for _, p := range cases {
		got := p.Parse().ToPrincipal()
		if got != p {
			t.Errorf("round trip mismatch: %+v -> %+v", p, got)
		}
	}
}

func TestParseDomainFormats(t *testing.T) {
	cases := []struct {
		name   string
		domain string
		plain  string
		format DomainFormat
	}{
		{`EXAMPLE\alice`, "EXAMPLE", "alice", DomainFormatNetbios},
		{"alice@example.com", "example.com", "alice", DomainFormatDNS},
		{"EXAMPLE/alice", "EXAMPLE", "alice", DomainFormatNetbiosForwardslash},
		{"alice", "", "alice", DomainFormatNone},
	}
	for _, c := range cases {
		pp := NewUser(c.name).Parse()
		if pp.DomainFormat != c.format || pp.Domain != c.domain || pp.PlainName != c.plain {
			t.Errorf("Parse(%q) = %+v, want domain=%q plain=%q format=%v", c.name, pp, c.domain, c.plain, c.format)
		}
	}
}

func TestEqualFoldIgnoresCaseAcrossFormats(t *testing.T) {
	a := NewUser(`EXAMPLE\Alice`)
	b := NewUser(`example\alice`)
	if a.Equal(b) {
		t.Error("case-sensitive Equal should not match differing case")
	}
	if !a.EqualFold(b) {
		t.Error("EqualFold should match differing case of the same principal")
	}
}

func TestLessOrdersUsersBeforeGroupsThenByName(t *testing.T) {
	u := NewUser("zzz")
	g := NewGroup("aaa")
	if !u.Less(g) {
		t.Error("a user should sort before a group regardless of name")
	}
	a := NewUser("alice")
	b := NewUser("bob")
	if !a.Less(b) || b.Less(a) {
		t.Error("users should sort by plain name")
	}
}
