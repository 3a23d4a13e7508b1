package feed

import (
	"bytes"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/aras-services/gsa-adaptor/internal/acl"
)

const doctype = `<!DOCTYPE gsafeed PUBLIC "-//Google//DTD GSA Feeds//EN" "">`

// FeedType distinguishes a replace of a group's whole membership list from
// an incremental add/remove.
type FeedType int

const (
	Incremental FeedType = iota
	Replace
)

func (t FeedType) String() string {
	if t == Replace {
		return "replace"
	}
	return "incremental"
}

// Options controls appliance-compatibility workarounds and global overrides
// applied uniformly across a built feed.
type Options struct {
	// ForceNonSelfClosingRecord emits a single-space text node inside every
	// <record> so older appliance XML parsers that mishandle "<record/>"
	// still accept the element.
	ForceNonSelfClosingRecord bool
	// AuthMethod, if set, is emitted as authmethod="..." on every <record>.
	AuthMethod string
	// OverrideCrawlImmediately, if non-nil, replaces every record's
	// CrawlImmediately flag.
	OverrideCrawlImmediately *bool
	// OverrideCrawlOnce, if non-nil, replaces every record's CrawlOnce flag.
	OverrideCrawlOnce *bool
}

// Builder serializes Records and group memberships into the appliance's XML
// feed formats. It holds no state beyond configuration; every Build call is
// independent and safe to call from multiple goroutines.
type Builder struct {
	datasource string
	opts       Options
}

// NewBuilder returns a Builder that stamps datasource into every feed's
// <header>.
func NewBuilder(datasource string, opts Options) *Builder {
	return &Builder{datasource: datasource, opts: opts}
}

// BuildMetadataAndURL renders a metadata-and-url feed for records. An empty
// records slice still produces a well-formed feed with an empty <group/>,
// per the boundary behavior that an empty identifier list is not omitted.
func (b *Builder) BuildMetadataAndURL(records []Record) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	buf.WriteString(doctype + "\n")
	buf.WriteString("<!--GSA EntityID=" + xmlEscapeAttr(b.datasource) + "-->\n")
	buf.WriteString("<gsafeed>\n")

	buf.WriteString("  <header>\n")
	buf.WriteString("    <datasource>" + xmlEscapeText(b.datasource) + "</datasource>\n")
	buf.WriteString("    <feedtype>metadata-and-url</feedtype>\n")
	buf.WriteString("  </header>\n")

	if len(records) == 0 {
		buf.WriteString("  <group/>\n")
	} else {
		buf.WriteString("  <group>\n")
		for _, r := range records {
			if err := b.writeRecord(&buf, r); err != nil {
				return nil, err
			}
		}
		buf.WriteString("  </group>\n")
	}

	buf.WriteString("</gsafeed>\n")
	return buf.Bytes(), nil
}

func (b *Builder) writeRecord(buf *bytes.Buffer, r Record) error {
	if r.DocId == "" {
		return fmt.Errorf("feed: record has empty DocId")
	}

	buf.WriteString(`    <record url="` + xmlEscapeAttr(r.DocId) + `" mimetype="text/plain"`)

	if r.LastModified != nil {
		buf.WriteString(` last-modified="` + rfc822GMT(*r.LastModified) + `"`)
	}
	if r.Action == Delete {
		buf.WriteString(` action="delete"`)
	}
	if r.DisplayUrl != "" {
		buf.WriteString(` displayurl="` + xmlEscapeAttr(r.DisplayUrl) + `"`)
	}
	if r.Lock {
		buf.WriteString(` lock="true"`)
	}
	crawlImmediately := r.CrawlImmediately
	if b.opts.OverrideCrawlImmediately != nil {
		crawlImmediately = *b.opts.OverrideCrawlImmediately
	}
	buf.WriteString(` crawl-immediately="` + boolStr(crawlImmediately) + `"`)
	crawlOnce := r.CrawlOnce
	if b.opts.OverrideCrawlOnce != nil {
		crawlOnce = *b.opts.OverrideCrawlOnce
	}
	buf.WriteString(` crawl-once="` + boolStr(crawlOnce) + `"`)
	if b.opts.AuthMethod != "" {
		buf.WriteString(` authmethod="` + xmlEscapeAttr(b.opts.AuthMethod) + `"`)
	}

	hasBody := r.Acl != nil || (r.Metadata != nil && r.Metadata.Len() > 0)
	if !hasBody {
		if b.opts.ForceNonSelfClosingRecord {
			buf.WriteString("> </record>\n")
		} else {
			buf.WriteString("/>\n")
		}
		return nil
	}
	buf.WriteString(">\n")
	if r.Acl != nil {
		if err := writeAcl(buf, r.DocId, *r.Acl); err != nil {
			return err
		}
	}
	if r.Metadata != nil && r.Metadata.Len() > 0 {
		buf.WriteString("      <metadata>\n")
		for _, p := range r.Metadata.All() {
			buf.WriteString(`        <meta name="` + xmlEscapeAttr(p.Key) + `" content="` + xmlEscapeAttr(p.Value) + `"/>` + "\n")
		}
		buf.WriteString("      </metadata>\n")
	}
	buf.WriteString("    </record>\n")
	return nil
}

// writeAcl renders one <acl> element. The url and inherit-from values are
// the identifiers as given; they are not run through idcodec. The
// inherit-from identifier's fragment, if any, is appended as a query string
// rather than a URI fragment, because the appliance strips real fragments
// before forwarding the value back.
func writeAcl(buf *bytes.Buffer, docID string, a acl.Acl) error {
	buf.WriteString(`      <acl url="` + xmlEscapeAttr(docID) + `"`)
	if a.InheritFrom != nil {
		ref := a.InheritFrom.DocId
		if a.InheritFrom.Fragment != "" {
			ref += "?" + url.QueryEscape(a.InheritFrom.Fragment)
		}
		buf.WriteString(` inherit-from="` + xmlEscapeAttr(ref) + `"`)
		buf.WriteString(` inheritance-type="` + a.InheritanceType.Name() + `"`)
	}
	buf.WriteString(">\n")

	writePrincipals(buf, "user", "permit", a.PermitUsers(), a.CaseSensitive)
	writePrincipals(buf, "user", "deny", a.DenyUsers(), a.CaseSensitive)
	writePrincipals(buf, "group", "permit", a.PermitGroups(), a.CaseSensitive)
	writePrincipals(buf, "group", "deny", a.DenyGroups(), a.CaseSensitive)

	buf.WriteString("      </acl>\n")
	return nil
}

func writePrincipals(buf *bytes.Buffer, scope, access string, principals []acl.Principal, caseSensitive bool) {
	for _, p := range principals {
		buf.WriteString(`        <principal scope="` + scope + `" access="` + access + `"`)
		if p.Namespace != "" && p.Namespace != acl.DefaultNamespace {
			buf.WriteString(` namespace="` + xmlEscapeAttr(p.Namespace) + `"`)
		}
		if !caseSensitive {
			buf.WriteString(` case-sensitivity-type="everything-case-insensitive"`)
		}
		buf.WriteString(">" + xmlEscapeText(p.Name) + "</principal>\n")
	}
}

// BuildGroupDefinitions renders a group-definitions feed. memberships maps
// group principal to its members; members within each group are sorted for
// determinism.
func (b *Builder) BuildGroupDefinitions(memberships map[acl.Principal][]acl.Principal, caseSensitive bool, feedType FeedType) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	buf.WriteString(doctype + "\n")
	buf.WriteString("<!--GSA EntityID=" + xmlEscapeAttr(b.datasource) + "-->\n")
	buf.WriteString(`<xmlgroups feedtype="` + feedType.String() + `">` + "\n")

	groups := make([]acl.Principal, 0, len(memberships))
	for g := range memberships {
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Less(groups[j]) })

	for _, g := range groups {
		buf.WriteString("  <membership>\n")
		buf.WriteString(`    <principal scope="GROUP"`)
		if g.Namespace != "" && g.Namespace != acl.DefaultNamespace {
			buf.WriteString(` namespace="` + xmlEscapeAttr(g.Namespace) + `"`)
		}
		buf.WriteString(">" + xmlEscapeText(g.Name) + "</principal>\n")

		members := append([]acl.Principal(nil), memberships[g]...)
		sort.Slice(members, func(i, j int) bool { return members[i].Less(members[j]) })

		buf.WriteString("    <members>\n")
		for _, m := range members {
			scope := "USER"
			if m.IsGroup {
				scope = "GROUP"
			}
			caseType := "EVERYTHING_CASE_SENSITIVE"
			if !caseSensitive {
				caseType = "EVERYTHING_CASE_INSENSITIVE"
			}
			buf.WriteString(fmt.Sprintf(`      <principal scope="%s" namespace="%s" case-sensitivity-type="%s">%s</principal>`+"\n",
				scope, xmlEscapeAttr(m.Namespace), caseType, xmlEscapeText(m.Name)))
		}
		buf.WriteString("    </members>\n")
		buf.WriteString("  </membership>\n")
	}

	buf.WriteString("</xmlgroups>\n")
	return buf.Bytes(), nil
}

func boolStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// rfc822GMT formats t as "EEE, dd MMM yyyy HH:mm:ss Z" in GMT, e.g.
// "Tue, 03 Jan 2023 15:04:05 GMT".
func rfc822GMT(t time.Time) string {
	return t.UTC().Format("Mon, 02 Jan 2006 15:04:05 ") + "GMT"
}

var xmlAttrReplacer = strings.NewReplacer(
	"&", "&amp;",
	`"`, "&quot;",
	"<", "&lt;",
	">", "&gt;",
)

var xmlTextReplacer = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
)

func xmlEscapeAttr(s string) string { return xmlAttrReplacer.Replace(s) }
func xmlEscapeText(s string) string { return xmlTextReplacer.Replace(s) }
