package dom

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Walk visits every element node below root (root included) until visit
// returns false.
func Walk(root *html.Node, visit func(*html.Node) bool) {
	var rec func(*html.Node) bool
	rec = func(n *html.Node) bool {
		if n.Type == html.ElementNode && !visit(n) {
			return false
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if !rec(c) {
				return false
			}
		}
		return true
	}
	rec(root)
}

func Attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func HasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

func SetAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func RemoveAttr(n *html.Node, key string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}

func HasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(Attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func AddClass(n *html.Node, class string) {
	if HasClass(n, class) {
		return
	}
	existing := Attr(n, "class")
	if existing == "" {
		SetAttr(n, "class", class)
		return
	}
	SetAttr(n, "class", existing+" "+class)
}

func RemoveClass(n *html.Node, class string) {
	fields := strings.Fields(Attr(n, "class"))
	kept := fields[:0]
	for _, c := range fields {
		if c != class {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		RemoveAttr(n, "class")
		return
	}
	SetAttr(n, "class", strings.Join(kept, " "))
}

func FindByClass(root *html.Node, class string) *html.Node {
	var found *html.Node
	Walk(root, func(n *html.Node) bool {
		if HasClass(n, class) {
			found = n
			return false
		}
		return true
	})
	return found
}

func FindAllByClass(root *html.Node, class string) []*html.Node {
	var out []*html.Node
	Walk(root, func(n *html.Node) bool {
		if HasClass(n, class) {
			out = append(out, n)
		}
		return true
	})
	return out
}

func FindByTag(root *html.Node, a atom.Atom) *html.Node {
	var found *html.Node
	Walk(root, func(n *html.Node) bool {
		if n.DataAtom == a {
			found = n
			return false
		}
		return true
	})
	return found
}

func FindAllByTag(root *html.Node, a atom.Atom) []*html.Node {
	var out []*html.Node
	Walk(root, func(n *html.Node) bool {
		if n.DataAtom == a {
			out = append(out, n)
		}
		return true
	})
	return out
}

func FindByID(root *html.Node, id string) *html.Node {
	var found *html.Node
	Walk(root, func(n *html.Node) bool {
		if Attr(n, "id") == id {
			found = n
			return false
		}
		return true
	})
	return found
}
