package render

import (
	"regexp"
	"strings"
)

// transparentPixelPNG is a 1x1 transparent PNG, inlined as the data-URI
// replacement for inline-attachment image references.
const transparentPixelPNG = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNkYAAAAAYAAjCB0C8AAAAASUVORK5CYII="

var (
	cidSrcPattern  = regexp.MustCompile(`(?i)src=["']cid:[^"']*["']`)
	cidHrefPattern = regexp.MustCompile(`(?i)href=["']cid:[^"']*["']`)
)

// SanitizeCIDReferences rewrites content-id references, which are
// meaningless outside the original message, into self-contained
// placeholders: image sources become a pixel data-URI marked
// "[Embedded Image]" and link targets become neutral anchors marked
// "[Embedded Content]". Both attribute quoting styles and any casing of
// the cid: scheme are handled. HTML without cid references is returned
// unchanged.
func SanitizeCIDReferences(html string) string {
	if !strings.Contains(strings.ToLower(html), "cid:") {
		return html
	}

	html = cidSrcPattern.ReplaceAllString(html,
		`src="data:image/png;base64,`+transparentPixelPNG+`" alt="[Embedded Image]"`)
	html = cidHrefPattern.ReplaceAllString(html,
		`href="#" title="[Embedded Content]"`)
	return html
}
