package arcgis

import (
	"bytes"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Raw HTML in a description is dropped by the markdown renderer; the policy
// then limits the output to what the portal item page displays.
var (
	descriptionMarkdown = goldmark.New(
		goldmark.WithExtensions(extension.Table, extension.Strikethrough, extension.Linkify),
	)
	descriptionPolicy = newDescriptionPolicy()
)

// newDescriptionPolicy allows text formatting, lists, tables and absolute
// http(s) or mailto links. Images, iframes and styles are removed.
func newDescriptionPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements(
		"p", "br", "hr", "h2", "h3", "h4",
		"strong", "em", "b", "i", "del", "code", "pre", "blockquote",
		"ul", "ol", "li",
	)
	p.AllowTables()
	p.AllowAttrs("href").OnElements("a")
	p.AllowStandardURLs()
	p.AddTargetBlankToFullyQualifiedLinks(true)
	return p
}

// RenderDescription converts an item description written in markdown to the
// HTML stored on the portal item. Returns empty string for empty input.
func RenderDescription(src string) string {
	if src == "" {
		return ""
	}

	var buf bytes.Buffer
	if err := descriptionMarkdown.Convert([]byte(src), &buf); err != nil {
		return descriptionPolicy.Sanitize(src)
	}
	return descriptionPolicy.Sanitize(buf.String())
}
