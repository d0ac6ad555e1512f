package editor

import (
	"strings"
	"sync"

	"cv-editor/pkg/dom"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// maxAncestorDepth bounds the outward search for an eligible element from
// the double-click target.
const maxAncestorDepth = 5

// Key is a keystroke the session manager resolves while a region is in
// edit mode.
type Key int

const (
	KeyEnter Key = iota
	KeyEscape
	KeyTab
)

// Region is one element with an open edit session. The original markup is
// buffered only while the session is open and discarded on every exit path.
type Region struct {
	Node     *html.Node
	original string
}

// SessionManager turns leaf DOM nodes into editable regions. Each region is
// independently committed or cancelled; several may be in session at once.
// Blur resolutions arrive on per-region timer goroutines, so every session
// transition is serialized on mu.
type SessionManager struct {
	mu       sync.Mutex
	open     map[*html.Node]*Region
	paste    *bluemonday.Policy
	notifier Notifier

	// onCommit runs after a commit that actually changed content: dirty
	// flag, autosave, debounced rescale.
	onCommit func()
	// onResolve runs on every session close, commit or cancel.
	onResolve func()
}

func newSessionManager(notifier Notifier, onCommit, onResolve func()) *SessionManager {
	return &SessionManager{
		open:      make(map[*html.Node]*Region),
		paste:     bluemonday.StrictPolicy(),
		notifier:  notifier,
		onCommit:  onCommit,
		onResolve: onResolve,
	}
}

var excludedAtoms = map[atom.Atom]bool{
	atom.Script: true, atom.Style: true, atom.Meta: true, atom.Title: true,
	atom.Head: true, atom.Html: true, atom.Body: true,
	atom.Section: true, atom.Article: true, atom.Aside: true,
	atom.Img: true, atom.Br: true, atom.Hr: true,
}

var textContainerAtoms = map[atom.Atom]bool{
	atom.Div: true, atom.P: true, atom.Span: true,
	atom.H1: true, atom.H2: true, atom.H3: true,
	atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Li: true, atom.Dt: true, atom.Dd: true,
	atom.Td: true, atom.Th: true, atom.A: true,
}

// Eligible applies the exclusion/inclusion rule to a single element.
func Eligible(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if excludedAtoms[n.DataAtom] {
		return false
	}
	// decorative pieces and structural chrome
	if dom.HasClass(n, "underline") || dom.HasClass(n, "rule") {
		return false
	}
	if dom.Attr(n, "role") == "banner" {
		return false
	}
	if strings.TrimSpace(dom.TextContent(n)) != "" {
		return true
	}
	// empty but conventionally text-bearing
	return textContainerAtoms[n.DataAtom]
}

// FindEditable locates the nearest eligible ancestor-or-self of the click
// target, searching at most maxAncestorDepth levels up.
func FindEditable(n *html.Node) *html.Node {
	return dom.Closest(n, maxAncestorDepth, Eligible)
}

// Open enters edit mode on the nearest eligible element. Re-opening an
// already-editing region keeps its existing original-content buffer so the
// pre-edit markup cannot be lost.
func (m *SessionManager) Open(target *html.Node) (*Region, error) {
	el := FindEditable(target)
	if el == nil {
		return nil, ErrNotEligible
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.open[el]; ok {
		return r, nil
	}
	r := &Region{Node: el, original: dom.InnerHTML(el)}
	m.open[el] = r
	dom.AddClass(el, "editing")
	m.notifier.Notify(NoticeEditHint, "Edytujesz element. Enter zapisuje, Esc anuluje.")
	return r, nil
}

// Session returns the open region for an element, if any.
func (m *SessionManager) Session(el *html.Node) (*Region, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.open[el]
	return r, ok
}

// OpenCount reports how many regions are currently in session.
func (m *SessionManager) OpenCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.open)
}

// HandleKey resolves a keystroke for an editing region. The returned bool
// tells the caller whether the event was consumed (Escape must not reach
// the global cancel-all handler).
func (m *SessionManager) HandleKey(r *Region, k Key, shift bool) (consumed bool) {
	switch k {
	case KeyEnter:
		if shift {
			return false // shift+enter stays a line break inside the region
		}
		m.resolve(r)
		return true
	case KeyEscape:
		m.Cancel(r)
		return true
	case KeyTab:
		// commit, then let default focus navigation happen
		m.resolve(r)
		return false
	}
	return false
}

// Paste strips all formatting from the clipboard payload and inserts the
// remaining plain text into the region.
func (m *SessionManager) Paste(r *Region, clipboard string) {
	text := m.paste.Sanitize(clipboard)
	if text == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r.Node.AppendChild(dom.CreateText(text))
}

// Commit closes the session. Unchanged content is treated as a cancel: no
// dirty flag, no autosave. Returns whether content actually changed; a
// region with no open session is a no-op.
func (m *SessionManager) Commit(r *Region) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.commitLocked(r)
}

func (m *SessionManager) commitLocked(r *Region) bool {
	if _, ok := m.open[r.Node]; !ok {
		return false
	}
	changed := dom.InnerHTML(r.Node) != r.original
	m.closeLocked(r)
	if changed && m.onCommit != nil {
		m.onCommit()
	}
	if m.onResolve != nil {
		m.onResolve()
	}
	return changed
}

// Cancel restores the buffered markup and closes the session.
func (m *SessionManager) Cancel(r *Region) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelLocked(r)
}

func (m *SessionManager) cancelLocked(r *Region) {
	if _, ok := m.open[r.Node]; !ok {
		return
	}
	_ = dom.SetInnerHTML(r.Node, r.original)
	m.closeLocked(r)
	if m.onResolve != nil {
		m.onResolve()
	}
}

// resolve applies the commit-if-changed-else-cancel rule shared by Enter,
// Tab, blur and deactivate-all.
func (m *SessionManager) resolve(r *Region) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolveLocked(r)
}

func (m *SessionManager) resolveLocked(r *Region) {
	if _, ok := m.open[r.Node]; !ok {
		return
	}
	if dom.InnerHTML(r.Node) != r.original {
		m.commitLocked(r)
	} else {
		m.cancelLocked(r)
	}
}

// Blur resolves the region the same way as an explicit commit, once the
// caller's short focus-settling delay elapsed. Returns ErrNoSession when
// the region already resolved through another path.
func (m *SessionManager) Blur(r *Region) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.open[r.Node]; !ok {
		return ErrNoSession
	}
	m.resolveLocked(r)
	return nil
}

// DeactivateAll resolves every currently-editing region. Invoked before
// printing, on background clicks and on a global Escape with no focused
// region.
func (m *SessionManager) DeactivateAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.snapshotOpenLocked() {
		m.resolveLocked(r)
	}
}

// CancelAll discards every open session without committing; used when the
// whole document is about to be replaced.
func (m *SessionManager) CancelAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.snapshotOpenLocked() {
		m.cancelLocked(r)
	}
}

func (m *SessionManager) snapshotOpenLocked() []*Region {
	out := make([]*Region, 0, len(m.open))
	for _, r := range m.open {
		out = append(out, r)
	}
	return out
}

func (m *SessionManager) closeLocked(r *Region) {
	dom.RemoveClass(r.Node, "editing")
	r.original = ""
	delete(m.open, r.Node)
}
