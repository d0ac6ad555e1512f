package editor

import (
	"context"
	"fmt"
	"strings"

	"cv-editor/pkg/dom"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Placeholder templates for repeatable fragments. Outer containers are
// created by the add operations themselves.
var fragmentTemplates = map[string]string{
	"timelineItem": `<div class="meta"><div><strong>Nowa firma</strong><br/>Nowe stanowisko</div><div>2024</div></div>
<ul>
  <li>Opis obowiązków 1</li>
  <li>Opis obowiązków 2</li>
</ul>`,
	"refCard": `<div class="name">Nowy projekt</div>
<div class="small">Opis projektu</div>`,
	"sideListItem":  `<div>Nowy element</div>`,
	"educationItem": `<div><strong>2024 – 2025</strong><br/>Nowa szkoła<br/>Opis</div>`,
}

// Layout-adjustment thresholds. Soft and advisory only; they never block
// the mutation itself.
const (
	refCardsSingleColumnAbove = 6
	refCardsAdviseAbove       = 4
	timelineAdviseAbove       = 4
	pageOverflowFactor        = 1.3
)

// Toolkit implements the add/delete operations for repeatable document
// fragments. Every mutation marks the document dirty, persists and
// schedules a debounced rescale through the owning editor.
type Toolkit struct {
	ed *Editor
}

// AddTimelineItem appends a new experience entry to the timeline container
// and opens an edit session on its company field.
func (t *Toolkit) AddTimelineItem(container *html.Node) (*html.Node, error) {
	item := dom.CreateElement("article", "timeline-item")
	if err := dom.SetInnerHTML(item, fragmentTemplates["timelineItem"]); err != nil {
		return nil, err
	}
	t.attachDeleteButton(item)
	for _, li := range dom.FindAllByTag(item, atom.Li) {
		t.attachListItemDeleteButton(li)
	}
	if ul := dom.FindByTag(item, atom.Ul); ul != nil {
		t.attachListAddButton(ul)
	}
	container.AppendChild(item)

	t.adjustLayout(container)
	t.ed.afterMutation()

	if meta := dom.FindByClass(item, "meta"); meta != nil {
		if strong := dom.FindByTag(meta, atom.Strong); strong != nil {
			// the <strong> company name sits inside the primary field
			_, _ = t.ed.sessions.Open(strong.Parent)
		}
	}
	return item, nil
}

// AddRefCard appends a new reference/project card and opens an edit session
// on its name field.
func (t *Toolkit) AddRefCard(container *html.Node) (*html.Node, error) {
	card := dom.CreateElement("div", "ref-card")
	if err := dom.SetInnerHTML(card, fragmentTemplates["refCard"]); err != nil {
		return nil, err
	}
	t.attachDeleteButton(card)
	container.AppendChild(card)

	t.adjustLayout(container)
	t.ed.afterMutation()

	if name := dom.FindByClass(card, "name"); name != nil {
		_, _ = t.ed.sessions.Open(name)
	}
	return card, nil
}

// AddSideListItem appends a sidebar entry (skills, languages, ...).
func (t *Toolkit) AddSideListItem(container *html.Node) (*html.Node, error) {
	item := dom.CreateElement("div", "")
	if err := dom.SetInnerHTML(item, fragmentTemplates["sideListItem"]); err != nil {
		return nil, err
	}
	t.attachDeleteButton(item)
	container.AppendChild(item)

	t.ed.afterMutation()
	_, _ = t.ed.sessions.Open(item)
	return item, nil
}

// AddEducationItem appends a sidebar education entry.
func (t *Toolkit) AddEducationItem(container *html.Node) (*html.Node, error) {
	item := dom.CreateElement("div", "")
	if err := dom.SetInnerHTML(item, fragmentTemplates["educationItem"]); err != nil {
		return nil, err
	}
	t.attachDeleteButton(item)
	container.AppendChild(item)

	t.ed.afterMutation()
	_, _ = t.ed.sessions.Open(item)
	return item, nil
}

// AddListItem appends a new bullet to an experience entry's list.
func (t *Toolkit) AddListItem(ul *html.Node) (*html.Node, error) {
	li := dom.CreateElement("li", "")
	li.AppendChild(dom.CreateText("Nowy punkt listy"))
	ul.AppendChild(li)
	t.attachListItemDeleteButton(li)

	t.ed.afterMutation()
	_, _ = t.ed.sessions.Open(li)
	return li, nil
}

// Delete removes a fragment after explicit confirmation. Declining leaves
// the document untouched.
func (t *Toolkit) Delete(fragment *html.Node) error {
	if !t.ed.confirmer.Confirm("Czy na pewno chcesz usunąć ten element?") {
		return ErrDeclined
	}
	parent := fragment.Parent
	dom.Remove(fragment)
	if parent != nil {
		t.adjustLayout(parent)
	}
	t.ed.afterMutation()
	return nil
}

// DeleteListItem removes a single bullet after confirmation.
func (t *Toolkit) DeleteListItem(li *html.Node) error {
	if !t.ed.confirmer.Confirm("Czy na pewno chcesz usunąć ten punkt z listy?") {
		return ErrDeclined
	}
	ul := li.Parent
	dom.Remove(li)
	if ul != nil {
		if item := dom.Ancestor(ul, func(n *html.Node) bool { return dom.HasClass(n, "timeline-item") }); item != nil {
			t.adjustLayout(item)
		}
	}
	t.ed.afterMutation()
	return nil
}

// DeleteSection removes a whole section, naming it in the confirmation.
func (t *Toolkit) DeleteSection(section *html.Node) error {
	title := "tę sekcję"
	if tn := dom.FindByClass(section, "title"); tn != nil {
		if s := strings.TrimSpace(dom.TextContent(tn)); s != "" {
			title = s
		}
	} else if tn := dom.FindByClass(section, "side-title"); tn != nil {
		if s := strings.TrimSpace(dom.TextContent(tn)); s != "" {
			title = s
		}
	}
	msg := fmt.Sprintf("Czy na pewno chcesz usunąć całą sekcję %q wraz z wszystkimi jej elementami?", title)
	if !t.ed.confirmer.Confirm(msg) {
		return ErrDeclined
	}
	parent := section.Parent
	dom.Remove(section)
	if parent != nil {
		t.adjustLayout(parent)
	}
	t.ed.afterMutation()
	return nil
}

// adjustLayout re-evaluates the soft layout heuristics around a mutated
// container: column switching for crowded reference grids, one-time
// advisories, and the page-level overflow warning.
func (t *Toolkit) adjustLayout(around *html.Node) {
	isRefs := func(n *html.Node) bool { return dom.HasClass(n, "references") }
	refs := around
	if !dom.HasClass(refs, "references") {
		refs = dom.Ancestor(around, isRefs)
	}
	if refs != nil {
		count := len(dom.FindAllByClass(refs, "ref-card"))
		if count > refCardsSingleColumnAbove {
			// past this point the single column restores readability, so
			// the advisory is skipped
			dom.SetStyle(refs, "grid-template-columns", "1fr")
		} else if count > refCardsAdviseAbove {
			t.adviseOnce(refs, "Dużo projektów - rozważ usunięcie niektórych lub utworzenie osobnej strony")
		}
	}

	isTimeline := func(n *html.Node) bool { return dom.HasClass(n, "timeline") }
	timeline := around
	if !dom.HasClass(timeline, "timeline") {
		timeline = dom.Ancestor(around, isTimeline)
	}
	if timeline != nil {
		count := len(dom.FindAllByClass(timeline, "timeline-item"))
		if count > timelineAdviseAbove {
			t.adviseOnce(timeline, "Dużo doświadczeń - rozważ usunięcie niektórych lub utworzenie osobnej strony")
		}
	}

	t.checkPageOverflow()
}

// adviseOnce shows a dismissible advisory once per section, tracked by a
// marker attribute on the enclosing section.
func (t *Toolkit) adviseOnce(n *html.Node, message string) {
	section := dom.Ancestor(n, func(p *html.Node) bool {
		return dom.HasClass(p, "section") || dom.HasClass(p, "side-section")
	})
	if section == nil {
		section = n
	}
	if dom.HasAttr(section, "data-warning-shown") {
		return
	}
	dom.SetAttr(section, "data-warning-shown", "true")
	t.ed.notifier.Notify(NoticeSectionAdvice, message)
}

// checkPageOverflow keeps the persistent page-level warning in sync with
// whether the natural content height fits the nominal page with margin to
// spare. One-page fit is best effort, never a hard guarantee.
func (t *Toolkit) checkPageOverflow() {
	page := dom.FindByClass(t.ed.doc.Root, "page")
	container := dom.FindByClass(t.ed.doc.Root, "cv-columns")
	if page == nil || container == nil {
		return
	}
	size, err := t.ed.scaler.measure(context.Background(), t.ed.doc, t.ed.viewport)
	if err != nil {
		return
	}
	warning := dom.FindByClass(page, "cv-page-warning")
	if size.Height > t.ed.scaler.geom.PageHeightPx()*pageOverflowFactor {
		if warning == nil {
			w := dom.CreateElement("div", "cv-page-warning")
			w.AppendChild(dom.CreateText("Zawartość przekracza rozmiar strony A4. Przy druku część może zostać przycięta."))
			dom.InsertFirst(page, w)
		}
	} else if warning != nil {
		dom.Remove(warning)
	}
}

// attachDeleteButton adds the per-fragment delete affordance. A second call
// on the same element is a no-op.
func (t *Toolkit) attachDeleteButton(el *html.Node) {
	if dom.FindByClass(el, "cv-delete-btn") != nil {
		return
	}
	btn := dom.CreateElement("button", "cv-delete-btn")
	dom.SetAttr(btn, "title", "Usuń element")
	dom.SetStyle(el, "position", "relative")
	el.AppendChild(btn)
}

func (t *Toolkit) attachListItemDeleteButton(li *html.Node) {
	if dom.FindByClass(li, "cv-delete-btn") != nil {
		return
	}
	btn := dom.CreateElement("button", "cv-delete-btn cv-delete-li-btn")
	dom.SetAttr(btn, "title", "Usuń ten punkt z listy")
	dom.SetStyle(li, "position", "relative")
	li.AppendChild(btn)
}

// attachListAddButton places the "+ Dodaj punkt" affordance after a list.
func (t *Toolkit) attachListAddButton(ul *html.Node) {
	if ul.Parent == nil {
		return
	}
	for next := ul.NextSibling; next != nil; next = next.NextSibling {
		if next.Type != html.ElementNode {
			continue
		}
		if dom.HasClass(next, "cv-add-li-btn") {
			return
		}
		break
	}
	btn := dom.CreateElement("button", "cv-add-btn cv-add-li-btn")
	dom.SetAttr(btn, "title", "Dodaj nowy punkt do listy")
	btn.AppendChild(dom.CreateText("+ Dodaj punkt"))
	dom.InsertAfter(ul, btn)
}
