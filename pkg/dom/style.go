package dom

import (
	"strings"

	"golang.org/x/net/html"
)

// Inline style helpers. The editor applies transforms, hides affordances
// during measurement and switches grid layouts through the style attribute,
// the same surface the browser projection reads.

// Style returns the value of a single inline style property, "" if unset.
func Style(n *html.Node, prop string) string {
	for _, decl := range strings.Split(Attr(n, "style"), ";") {
		k, v, ok := strings.Cut(decl, ":")
		if ok && strings.EqualFold(strings.TrimSpace(k), prop) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// SetStyle sets or replaces a single inline style property.
func SetStyle(n *html.Node, prop, val string) {
	decls := parseStyle(Attr(n, "style"))
	replaced := false
	for i := range decls {
		if strings.EqualFold(decls[i][0], prop) {
			decls[i][1] = val
			replaced = true
		}
	}
	if !replaced {
		decls = append(decls, [2]string{prop, val})
	}
	writeStyle(n, decls)
}

// RemoveStyle drops a single inline style property, removing the attribute
// entirely when nothing remains.
func RemoveStyle(n *html.Node, prop string) {
	decls := parseStyle(Attr(n, "style"))
	kept := decls[:0]
	for _, d := range decls {
		if !strings.EqualFold(d[0], prop) {
			kept = append(kept, d)
		}
	}
	writeStyle(n, kept)
}

func parseStyle(attr string) [][2]string {
	var out [][2]string
	for _, decl := range strings.Split(attr, ";") {
		k, v, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		k = strings.TrimSpace(k)
		v = strings.TrimSpace(v)
		if k != "" && v != "" {
			out = append(out, [2]string{k, v})
		}
	}
	return out
}

func writeStyle(n *html.Node, decls [][2]string) {
	if len(decls) == 0 {
		RemoveAttr(n, "style")
		return
	}
	var sb strings.Builder
	for i, d := range decls {
		if i > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString(d[0])
		sb.WriteString(": ")
		sb.WriteString(d[1])
		sb.WriteString(";")
	}
	SetAttr(n, "style", sb.String())
}
