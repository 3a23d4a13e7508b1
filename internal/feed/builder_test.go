package feed

import (
	"strings"
	"testing"
	"time"

	"github.com/aras-services/gsa-adaptor/internal/acl"
)

func TestBuildMetadataAndURLEmptyProducesEmptyGroup(t *testing.T) {
	b := NewBuilder("ds1", Options{})
	out, err := b.BuildMetadataAndURL(nil)
	if err != nil {
		t.Fatalf("BuildMetadataAndURL: %v", err)
	}
	s := string(out)
	if !strings.Contains(s, "<!DOCTYPE gsafeed PUBLIC") {
		t.Error("missing appliance DOCTYPE")
	}
	if !strings.Contains(s, "<group/>") {
		t.Errorf("expected self-closed empty <group/>, got: %s", s)
	}
}

func TestBuildMetadataAndURLRejectsEmptyDocId(t *testing.T) {
	b := NewBuilder("ds1", Options{})
	_, err := b.BuildMetadataAndURL([]Record{{DocId: ""}})
	if err == nil {
		t.Fatal("expected error for a record with an empty DocId")
	}
}

func TestBuildMetadataAndURLRecordAttributes(t *testing.T) {
	b := NewBuilder("ds1", Options{})
	lm := time.Date(2023, 1, 3, 15, 4, 5, 0, time.UTC)
	out, err := b.BuildMetadataAndURL([]Record{{
		DocId:        "doc1",
		LastModified: &lm,
		Action:       Delete,
		Lock:         true,
	}})
	if err != nil {
		t.Fatalf("BuildMetadataAndURL: %v", err)
	}
	s := string(out)
	for _, want := range []string{
		`url="doc1"`,
		`last-modified="Tue, 03 Jan 2023 15:04:05 GMT"`,
		`action="delete"`,
		`lock="true"`,
		`crawl-immediately="false"`,
		`crawl-once="false"`,
		"/>\n",
	} {
		if !strings.Contains(s, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, s)
		}
	}
}

func TestForceNonSelfClosingRecord(t *testing.T) {
	b := NewBuilder("ds1", Options{ForceNonSelfClosingRecord: true})
	out, err := b.BuildMetadataAndURL([]Record{{DocId: "doc1"}})
	if err != nil {
		t.Fatalf("BuildMetadataAndURL: %v", err)
	}
	if !strings.Contains(string(out), "> </record>") {
		t.Errorf("expected a non-self-closing <record>, got:\n%s", out)
	}
}

func TestWriteAclInheritFromCarriesFragmentAsQueryString(t *testing.T) {
	b := NewBuilder("ds1", Options{})
	a := acl.NewBuilder(false).
		PermitUser(acl.NewUser("alice")).
		WithInheritFrom("parent", "frag value").
		WithInheritanceType(acl.ParentOverrides).
		Build()
	out, err := b.BuildMetadataAndURL([]Record{{DocId: "child", Acl: &a}})
	if err != nil {
		t.Fatalf("BuildMetadataAndURL: %v", err)
	}
	s := string(out)
	if !strings.Contains(s, `inherit-from="parent?frag+value"`) {
		t.Errorf("expected escaped fragment as query string, got:\n%s", s)
	}
	if !strings.Contains(s, `inheritance-type="parent-overrides"`) {
		t.Errorf("expected inheritance-type attribute, got:\n%s", s)
	}
	if !strings.Contains(s, `<principal scope="user" access="permit"`) {
		t.Errorf("expected a permit-user principal element, got:\n%s", s)
	}
}

func TestBuildGroupDefinitionsSortsGroupsAndMembers(t *testing.T) {
	b := NewBuilder("ds1", Options{})
	memberships := map[acl.Principal][]acl.Principal{
		acl.NewGroup("zzz"): {acl.NewUser("bob"), acl.NewUser("alice")},
		acl.NewGroup("aaa"): {acl.NewUser("carol")},
	}
	out, err := b.BuildGroupDefinitions(memberships, true, Replace)
	if err != nil {
		t.Fatalf("BuildGroupDefinitions: %v", err)
	}
	s := string(out)
	if !strings.Contains(s, `<xmlgroups feedtype="replace">`) {
		t.Errorf("expected replace feedtype, got:\n%s", s)
	}
	idxAAA := strings.Index(s, ">aaa<")
	idxZZZ := strings.Index(s, ">zzz<")
	if idxAAA == -1 || idxZZZ == -1 || idxAAA > idxZZZ {
		t.Errorf("expected group aaa before zzz, got:\n%s", s)
	}
	idxAlice := strings.Index(s, ">alice<")
	idxBob := strings.Index(s, ">bob<")
	if idxAlice == -1 || idxBob == -1 || idxAlice > idxBob {
		t.Errorf("expected member alice before bob within zzz, got:\n%s", s)
	}
}
