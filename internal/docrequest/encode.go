package docrequest

import (
	"net/url"
	"strings"

	"github.com/aras-services/gsa-adaptor/internal/acl"
)

func boolHeaderValue(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// encodeMetaHeader renders one repository metadata pair as the value of an
// X-Gsa-External-Metadata header: "name=VALUE", percent-encoded.
func encodeMetaHeader(name, value string) string {
	return url.QueryEscape(name) + "=" + url.QueryEscape(value)
}

// encodeAclHeaders renders an Acl as a sequence of X-Gsa-External-Metadata
// header values encoding its principals and inheritance.
func encodeAclHeaders(a acl.Acl) []string {
	var out []string
	out = append(out, encodePrincipals("google:aclusers", a.PermitUsers())...)
	out = append(out, encodePrincipals("google:acldenyusers", a.DenyUsers())...)
	out = append(out, encodePrincipals("google:aclgroups", a.PermitGroups())...)
	out = append(out, encodePrincipals("google:acldenygroups", a.DenyGroups())...)
	if a.InheritFrom != nil {
		out = append(out, encodeMetaHeader("google:aclinheritfrom", a.InheritFrom.DocId))
		out = append(out, encodeMetaHeader("google:aclinheritancetype", a.InheritanceType.Name()))
	}
	return out
}

func encodePrincipals(key string, principals []acl.Principal) []string {
	if len(principals) == 0 {
		return nil
	}
	names := make([]string, len(principals))
	for i, p := range principals {
		names[i] = p.Name
	}
	return []string{encodeMetaHeader(key, strings.Join(names, ","))}
}
