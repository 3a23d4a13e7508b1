// Package idcodec implements the bijective mapping between opaque document
// identifiers and the request URIs the appliance is handed, so that
// whatever URI the appliance pushes back at the adaptor decodes to exactly
// the identifier that was encoded.
package idcodec

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/aras-services/gsa-adaptor/internal/apperr"
)

// Codec encodes/decodes DocumentIds against a fixed base URL.
type Codec struct {
	base       *url.URL
	isDocIdURL bool
}

// New builds a Codec rooted at baseURL. baseURL must have a non-empty path
// (encoding would otherwise be unable to tell the base apart from the
// identifier it is joining); this is checked eagerly since a missing path
// is a fatal configuration invariant, not a per-request error.
func New(baseURL string, isDocIdURL bool) (*Codec, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInvalidInput, "idcodec: invalid base URL", err)
	}
	if u.Path == "" {
		return nil, apperr.New(apperr.KindInvalidInput, "idcodec: base URL must have a path")
	}
	return &Codec{base: u, isDocIdURL: isDocIdURL}, nil
}

var (
	// doubledSlash matches "/" immediately followed by another "/", except
	// when preceded by ":" (so "scheme://" survives): (?<!:)/(?=/).
	// Go's RE2 has no lookbehind, so this is applied with a manual scan
	// instead of a single regexp (see expandDoubledSlashes/collapse below).
	indexFilename      = regexp.MustCompile(`(^|/)(_*)(index\.html?)$`)
	indexFilenameExtra = regexp.MustCompile(`(^|/)_(_*)(index\.html?)$`)
)

// Encode maps a DocumentId to a URI under Codec's base URL. With isDocIdURL
// the identifier is itself the URI and is returned unchanged.
func (c *Codec) Encode(id string) (string, error) {
	if id == "" {
		return "", apperr.New(apperr.KindInvalidInput, "idcodec: identifier must not be empty")
	}

	if c.isDocIdURL {
		if _, err := url.Parse(id); err != nil {
			return "", apperr.Wrap(apperr.KindInvalidInput, "idcodec: identifier is not a valid URL", err)
		}
		return id, nil
	}

	s := id
	s = extendDotRuns(s)
	s = expandDoubledSlashes(s)
	s = escapeIndexFilenames(s)
	if strings.HasPrefix(s, "/") {
		s = "..." + s
	}
	return c.resolve(s)
}

func (c *Codec) resolve(relPath string) (string, error) {
	encoded := encodePathPreservingSlashes(relPath)
	ref, err := url.Parse(encoded)
	if err != nil {
		return "", apperr.Wrap(apperr.KindInvalidInput, "idcodec: cannot encode identifier", err)
	}
	resolved := joinPath(c.base, ref)
	return resolved.String(), nil
}

// Decode inverts Encode: given a request URI the appliance sent back,
// recover the original DocumentId. With isDocIdURL the URI is the
// identifier and is returned unchanged.
func (c *Codec) Decode(requestURI string) (string, error) {
	u, err := url.Parse(requestURI)
	if err != nil {
		return "", apperr.Wrap(apperr.KindInvalidInput, "idcodec: invalid request URI", err)
	}

	if c.isDocIdURL {
		return requestURI, nil
	}

	basePath := strings.TrimSuffix(c.base.Path, "/")
	reqPath := u.Path
	if !strings.HasPrefix(reqPath, basePath) {
		return "", apperr.New(apperr.KindInvalidInput, "idcodec: request URI does not share the base path")
	}
	rel := strings.TrimPrefix(reqPath, basePath)
	rel = strings.TrimPrefix(rel, "/")

	s := rel
	// Rule 4 only prepended "..." when the pre-rule-4 form itself started
	// with "/"; that shape survives encoding as literal ".../" (dots then
	// separator), which is the only case to undo here. A dot run produced
	// by rule 1 that happens to reach the start of the path (e.g. the
	// identifier was just "..") looks like "....." with no following
	// separator and must be left to shrinkDotRuns below instead.
	if strings.HasPrefix(s, ".../") {
		s = strings.TrimPrefix(s, "...")
	} else if s == "..." {
		s = ""
	}
	s = unescapeIndexFilenames(s)
	s = collapseDoubledSlashes(s)
	s = shrinkDotRuns(s)
	return s, nil
}

// extendDotRuns extends every maximal run of dots that forms a whole path
// segment by three extra dots, so "/../" and "/./" cannot be reinterpreted
// as relative path navigation once percent-encoded and resolved. Rule 1 is
// specified as (^|/)(\.+)(?=$|/) — a zero-width lookahead on the trailing
// separator, so two adjacent dot-only segments (e.g. "../../") each extend
// independently, sharing the separator between them. Go's RE2 has no
// lookahead, and a naive (^|/)(\.+)($|/) regexp would consume the trailing
// separator, making it unavailable as the leading separator for an
// immediately-following dot run — only every other dot-only segment in a
// consecutive run would get extended. This is worked around the same way
// expandDoubledSlashes works around RE2's missing lookbehind: a manual scan,
// here over path segments rather than bytes, so each segment is inspected
// without consuming the separators around it.
func extendDotRuns(s string) string {
	return mapDotSegments(s, func(seg string) string { return seg + "..." })
}

func shrinkDotRuns(s string) string {
	return mapDotSegments(s, func(seg string) string {
		if len(seg) >= 3 && strings.HasSuffix(seg, "...") {
			return strings.TrimSuffix(seg, "...")
		}
		return seg
	})
}

// mapDotSegments splits s on "/" and applies f to every non-empty segment
// that consists entirely of dots, leaving all other segments (including the
// empty segments produced by "//" or leading/trailing "/") untouched. Since
// strings.Split already separates the string at every "/", adjacent dot-only
// segments are distinct elements of the result and never share a separator,
// unlike a consuming regexp match.
func mapDotSegments(s string, f func(string) string) string {
	segments := strings.Split(s, "/")
	for i, seg := range segments {
		if seg != "" && isAllDots(seg) {
			segments[i] = f(seg)
		}
	}
	return strings.Join(segments, "/")
}

func isAllDots(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] != '.' {
			return false
		}
	}
	return true
}

// expandDoubledSlashes inserts "..." after every "/" that is immediately
// followed by another "/", unless the first "/" is preceded by ":" (so
// "scheme://" is left alone). RE2 lacks lookbehind, so this is a manual
// byte scan rather than a single regexp substitution.
func expandDoubledSlashes(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 8)
	for i := 0; i < len(s); i++ {
		b.WriteByte(s[i])
		if s[i] == '/' && i+1 < len(s) && s[i+1] == '/' {
			precededByColon := i > 0 && s[i-1] == ':'
			if !precededByColon {
				b.WriteString("...")
			}
		}
	}
	return b.String()
}

func collapseDoubledSlashes(s string) string {
	return strings.ReplaceAll(s, "/.../", "//")
}

// escapeIndexFilenames adds one extra leading underscore to filenames
// matching _*index\.html?$ at the end of a path segment, working around an
// appliance behavior that collapses index.html.
func escapeIndexFilenames(s string) string {
	return indexFilename.ReplaceAllString(s, `${1}_${2}${3}`)
}

func unescapeIndexFilenames(s string) string {
	return indexFilenameExtra.ReplaceAllString(s, "${1}${2}${3}")
}

// encodePathPreservingSlashes percent-encodes a relative path for safe URI
// transport without touching the "/" separators that give it structure.
func encodePathPreservingSlashes(s string) string {
	segments := strings.Split(s, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.Join(segments, "/")
}

// joinPath resolves rel against base the way a browser would resolve a
// relative href, but treating rel's encoded dots literally (they have
// already been defused by extendDotRuns) rather than letting
// url.ResolveReference collapse them as ".."/"." navigation.
func joinPath(base, rel *url.URL) *url.URL {
	out := *base
	basePath := strings.TrimSuffix(base.Path, "/")
	if rel.Path == "" {
		out.Path = basePath
	} else {
		out.Path = basePath + "/" + strings.TrimPrefix(rel.Path, "/")
	}
	out.RawQuery = rel.RawQuery
	out.Fragment = rel.Fragment
	return &out
}
