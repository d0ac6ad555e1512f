package editor

import (
	"context"
	"math"
	"strconv"
	"strings"

	"cv-editor/pkg/dom"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// MetricsMeasurer estimates the natural content size from text metrics
// alone. It is deterministic, needs no rendering engine, and is the default
// measurer for tests and for the server-side export path. A headless-browser
// measurer (pkg/infrastructure) can replace it when exact layout matters.
type MetricsMeasurer struct {
	CharWidth  float64 // average glyph advance in px
	LineHeight float64 // px per text line
	BlockGap   float64 // vertical gap between block elements
}

func NewMetricsMeasurer() *MetricsMeasurer {
	return &MetricsMeasurer{CharWidth: 7.2, LineHeight: 18, BlockGap: 8}
}

var blockTags = map[atom.Atom]bool{
	atom.Div: true, atom.P: true, atom.H1: true, atom.H2: true,
	atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Li: true, atom.Ul: true, atom.Ol: true, atom.Article: true,
	atom.Section: true, atom.Aside: true, atom.Table: true, atom.Tr: true,
}

// Measure sums estimated line boxes over the content container. Elements
// hidden with display:none contribute nothing, which is what lets the
// scaler exclude interactive affordances from the bounding box.
func (m *MetricsMeasurer) Measure(_ context.Context, doc *dom.Document, _ Viewport) (ContentSize, error) {
	container := dom.FindByClass(doc.Root, "cv-columns")
	if container == nil {
		return ContentSize{}, ErrNoContainer
	}

	columnWidth := A4().availableWidthPx()
	var height, maxWidth float64
	m.walk(container, columnWidth, &height, &maxWidth)
	if maxWidth < columnWidth {
		maxWidth = columnWidth
	}
	return ContentSize{Width: maxWidth, Height: height}, nil
}

func (m *MetricsMeasurer) walk(n *html.Node, columnWidth float64, height, maxWidth *float64) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		if dom.Style(c, "display") == "none" {
			continue
		}
		switch c.DataAtom {
		case atom.Img:
			*height += imgHeight(c)
			continue
		case atom.Br:
			*height += m.LineHeight
			continue
		case atom.Hr:
			*height += m.BlockGap
			continue
		case atom.Script, atom.Style:
			continue
		}

		if blockTags[c.DataAtom] && hasBlockChildren(c) {
			// container block: recurse, charge only the gap
			*height += m.BlockGap
			m.walk(c, columnWidth, height, maxWidth)
			continue
		}

		if blockTags[c.DataAtom] {
			text := strings.TrimSpace(dom.TextContent(c))
			lines := 1.0
			if text != "" {
				textWidth := float64(len([]rune(text))) * m.CharWidth
				lines = math.Ceil(textWidth / columnWidth)
				if w := math.Min(textWidth, columnWidth); w > *maxWidth {
					*maxWidth = w
				}
			}
			*height += lines*m.LineHeight + m.BlockGap
			continue
		}

		// inline element: contributes through its parent block
		m.walk(c, columnWidth, height, maxWidth)
	}
}

func hasBlockChildren(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && blockTags[c.DataAtom] {
			return true
		}
	}
	return false
}

func imgHeight(n *html.Node) float64 {
	if h := dom.Attr(n, "height"); h != "" {
		if v, err := strconv.ParseFloat(h, 64); err == nil {
			return v
		}
	}
	// unknown image size: assume a square avatar-sized box
	return 96
}
