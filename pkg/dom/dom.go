// Package dom holds the in-memory HTML document model the editor operates
// on. The rendered page is a projection of this tree; all mutation goes
// through it so the editing logic stays testable without a browser.
package dom

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Document wraps a parsed HTML tree.
type Document struct {
	Root *html.Node
}

func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, err
	}
	return &Document{Root: root}, nil
}

func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// Render serializes the full document back to markup.
func (d *Document) Render() string {
	return RenderNode(d.Root)
}

// Body returns the document body element, or nil before parsing settled.
func (d *Document) Body() *html.Node {
	return FindByTag(d.Root, atom.Body)
}

func RenderNode(n *html.Node) string {
	var buf bytes.Buffer
	_ = html.Render(&buf, n)
	return buf.String()
}

// InnerHTML serializes the children of n, not n itself.
func InnerHTML(n *html.Node) string {
	var buf bytes.Buffer
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		_ = html.Render(&buf, c)
	}
	return buf.String()
}

// SetInnerHTML replaces the children of n with the parsed fragment.
// Parsing happens in the context of n so list items, table cells etc.
// survive the round trip.
func SetInnerHTML(n *html.Node, fragment string) error {
	nodes, err := html.ParseFragment(strings.NewReader(fragment), n)
	if err != nil {
		return err
	}
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
	for _, c := range nodes {
		n.AppendChild(c)
	}
	return nil
}

// AppendFragment parses fragment in the context of parent, appends the
// result and returns the first appended element node.
func AppendFragment(parent *html.Node, fragment string) (*html.Node, error) {
	nodes, err := html.ParseFragment(strings.NewReader(fragment), parent)
	if err != nil {
		return nil, err
	}
	var first *html.Node
	for _, c := range nodes {
		parent.AppendChild(c)
		if first == nil && c.Type == html.ElementNode {
			first = c
		}
	}
	if first == nil {
		return nil, fmt.Errorf("fragment contains no element node")
	}
	return first, nil
}

// CreateElement builds a detached element with an optional class.
func CreateElement(tag string, class string) *html.Node {
	n := &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
	}
	if class != "" {
		n.Attr = append(n.Attr, html.Attribute{Key: "class", Val: class})
	}
	return n
}

// CreateText builds a detached text node.
func CreateText(text string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: text}
}

func Remove(n *html.Node) {
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

// InsertAfter places newNode as the next sibling of ref.
func InsertAfter(ref, newNode *html.Node) {
	if ref.Parent == nil {
		return
	}
	if ref.NextSibling != nil {
		ref.Parent.InsertBefore(newNode, ref.NextSibling)
	} else {
		ref.Parent.AppendChild(newNode)
	}
}

// InsertFirst places newNode as the first child of parent.
func InsertFirst(parent, newNode *html.Node) {
	if parent.FirstChild != nil {
		parent.InsertBefore(newNode, parent.FirstChild)
	} else {
		parent.AppendChild(newNode)
	}
}

// TextContent collects all text below n, whitespace preserved as-is.
func TextContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(m *html.Node) {
		if m.Type == html.TextNode {
			sb.WriteString(m.Data)
			return
		}
		for c := m.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

// ContentSignature is the cheap size-based fingerprint used to decide
// whether content changed since the last layout pass.
func ContentSignature(n *html.Node) string {
	return fmt.Sprintf("%d-%d", len(strings.TrimSpace(TextContent(n))), len(InnerHTML(n)))
}

// Closest walks from n upward (self included) until pred matches, giving up
// after maxDepth parents. Returns nil when nothing matched.
func Closest(n *html.Node, maxDepth int, pred func(*html.Node) bool) *html.Node {
	current := n
	for depth := 0; current != nil && depth <= maxDepth; depth++ {
		if current.Type == html.ElementNode && pred(current) {
			return current
		}
		current = current.Parent
	}
	return nil
}

// Ancestor walks strictly upward without a depth limit.
func Ancestor(n *html.Node, pred func(*html.Node) bool) *html.Node {
	for current := n.Parent; current != nil; current = current.Parent {
		if current.Type == html.ElementNode && pred(current) {
			return current
		}
	}
	return nil
}
