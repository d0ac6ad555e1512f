// Package editor implements the in-place CV editing core: layout scaling,
// edit sessions, structural mutations and snapshot integration, all
// operating on the explicit document model in pkg/dom.
package editor

import (
	"context"
	"fmt"
	"sync"

	"cv-editor/internal/snapshot"
	"cv-editor/pkg/dom"
	"cv-editor/pkg/logger"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Scheduler slot names.
const (
	slotRescale = "rescale"
	slotResize  = "resize"
	slotMount   = "mount"
)

// Options configures a new Editor. Zero values fall back to sane defaults:
// A4 geometry, text-metrics measurement, no-op notifier, approve-all
// confirmer.
type Options struct {
	Geometry  PageGeometry
	Measurer  Measurer
	Store     *snapshot.Store
	Notifier  Notifier
	Confirmer Confirmer
	Logger    *logger.Logger
	Viewport  Viewport
}

// Editor is the per-document editing context. It owns every piece of state
// the browser original kept in ambient globals: the scaler cache, the open
// sessions, the dirty flag and the init marker. Constructed once per
// document load, reset on full document replacement.
type Editor struct {
	mu sync.Mutex

	doc      *dom.Document
	scaler   *Scaler
	sessions *SessionManager
	toolkit  *Toolkit
	sched    *Scheduler

	store     *snapshot.Store
	notifier  Notifier
	confirmer Confirmer
	log       *logger.Logger

	viewport    Viewport
	dirty       bool
	initialized bool
}

func New(doc *dom.Document, opts Options) *Editor {
	if opts.Geometry == (PageGeometry{}) {
		opts.Geometry = A4()
	}
	if opts.Measurer == nil {
		opts.Measurer = NewMetricsMeasurer()
	}
	if opts.Notifier == nil {
		opts.Notifier = NopNotifier{}
	}
	if opts.Confirmer == nil {
		opts.Confirmer = AlwaysConfirm
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	if opts.Viewport == (Viewport{}) {
		opts.Viewport = Viewport{Width: 1280, Height: 900}
	}

	e := &Editor{
		doc:       doc,
		scaler:    NewScaler(opts.Geometry, opts.Measurer),
		sched:     NewScheduler(),
		store:     opts.Store,
		notifier:  opts.Notifier,
		confirmer: opts.Confirmer,
		log:       opts.Logger,
		viewport:  opts.Viewport,
	}
	e.sessions = newSessionManager(e.notifier, e.afterMutation, nil)
	e.toolkit = &Toolkit{ed: e}
	return e
}

func (e *Editor) Document() *dom.Document   { return e.doc }
func (e *Editor) Fragments() *Toolkit       { return e.toolkit }
func (e *Editor) Sessions() *SessionManager { return e.sessions }
func (e *Editor) Scheduler() *Scheduler     { return e.sched }

// Dirty reports whether the document changed since the last explicit save.
func (e *Editor) Dirty() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dirty
}

// Init wires the interactive affordances into the document: delete buttons
// on every repeatable fragment, add buttons on every section, and the init
// marker on body. Idempotent; force tears existing affordances down first,
// which is what a restore needs after replacing the whole document.
func (e *Editor) Init(force bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	body := e.doc.Body()
	if body == nil {
		return ErrNoContainer
	}
	if e.initialized && !force {
		return nil
	}
	if force {
		for _, class := range []string{"cv-add-btn", "cv-delete-btn", "cv-delete-section-btn"} {
			for _, n := range dom.FindAllByClass(e.doc.Root, class) {
				dom.Remove(n)
			}
		}
	}

	e.wireAffordances()
	dom.SetAttr(body, "data-cv-initialized", "true")
	e.initialized = true
	return nil
}

func (e *Editor) wireAffordances() {
	root := e.doc.Root

	for _, item := range dom.FindAllByClass(root, "timeline-item") {
		e.toolkit.attachDeleteButton(item)
	}
	for _, card := range dom.FindAllByClass(root, "ref-card") {
		e.toolkit.attachDeleteButton(card)
	}

	if columns := dom.FindByClass(root, "cv-columns"); columns != nil {
		for _, li := range dom.FindAllByTag(columns, atom.Li) {
			e.toolkit.attachListItemDeleteButton(li)
		}
		for _, ul := range dom.FindAllByTag(columns, atom.Ul) {
			e.toolkit.attachListAddButton(ul)
		}
	}

	for _, list := range dom.FindAllByClass(root, "side-list") {
		for c := list.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && c.DataAtom == atom.Div {
				e.toolkit.attachDeleteButton(c)
			}
		}
	}

	for _, timeline := range dom.FindAllByClass(root, "timeline") {
		e.attachAddButton(timeline, "cv-add-timeline-btn", "+ Dodaj doświadczenie", "add-timeline-item")
	}
	for _, refs := range dom.FindAllByClass(root, "references") {
		e.attachAddButton(refs, "cv-add-ref-btn", "+ Dodaj projekt", "add-ref-card")
	}
	for _, side := range dom.FindAllByClass(root, "side-section") {
		if title := dom.FindByClass(side, "side-title"); title != nil {
			e.attachAddButton(title, "cv-add-side-btn", "+", "add-side-item")
			e.attachSectionDeleteButton(side, title)
		}
	}
	for _, section := range dom.FindAllByClass(root, "section") {
		if title := dom.FindByClass(section, "title"); title != nil {
			e.attachSectionDeleteButton(section, title)
		}
	}
}

// attachAddButton places an add affordance after the anchor, once. The
// data-action attribute is what the rendered projection routes back to the
// matching toolkit operation.
func (e *Editor) attachAddButton(anchor *html.Node, class, label, action string) {
	section := dom.Ancestor(anchor, func(n *html.Node) bool {
		return dom.HasClass(n, "section") || dom.HasClass(n, "side-section")
	})
	scope := section
	if scope == nil {
		scope = anchor
	}
	if dom.FindByClass(scope, class) != nil {
		return
	}
	btn := dom.CreateElement("button", "cv-add-btn "+class)
	dom.SetAttr(btn, "data-action", action)
	btn.AppendChild(dom.CreateText(label))
	dom.InsertAfter(anchor, btn)
}

func (e *Editor) attachSectionDeleteButton(section, title *html.Node) {
	if dom.FindByClass(section, "cv-delete-section-btn") != nil {
		return
	}
	btn := dom.CreateElement("button", "cv-delete-section-btn")
	dom.SetAttr(btn, "title", "Usuń całą sekcję")
	if dom.Style(title, "position") == "" {
		dom.SetStyle(title, "position", "relative")
	}
	title.AppendChild(btn)
}

// DoubleClick opens an edit session on the nearest eligible element.
func (e *Editor) DoubleClick(target *html.Node) (*Region, error) {
	return e.sessions.Open(target)
}

// Blur schedules the commit-if-changed-else-cancel resolution after the
// short focus-settling delay. Each region gets its own timer slot;
// independently open sessions must not cancel each other's resolution.
func (e *Editor) Blur(r *Region) {
	e.sched.Debounce(fmt.Sprintf("blur:%p", r.Node), BlurResolveDelay, func() {
		// the region may have resolved through Enter or deactivate-all
		// while the timer was pending
		_ = e.sessions.Blur(r)
	})
}

// DeactivateAll resolves every open edit session; used before printing and
// on background clicks.
func (e *Editor) DeactivateAll() {
	e.sessions.DeactivateAll()
}

// Resize records the new viewport and schedules a debounced layout pass.
func (e *Editor) Resize(vp Viewport) {
	e.mu.Lock()
	e.viewport = vp
	e.mu.Unlock()
	e.sched.Debounce(slotResize, ResizeDebounce, func() {
		_, _ = e.FitNow(context.Background())
	})
}

// RequestFit schedules a debounced layout pass; edit and mutation
// operations funnel through here so only the last request in a window
// actually runs. A not-yet-mounted container is retried on a short delay.
func (e *Editor) RequestFit() {
	e.sched.Debounce(slotRescale, RescaleDebounce, func() {
		if _, err := e.FitNow(context.Background()); err == ErrNoContainer {
			e.sched.Debounce(slotMount, MountRetryDelay, func() {
				_, _ = e.FitNow(context.Background())
			})
		}
	})
}

// FitNow runs a layout pass immediately.
func (e *Editor) FitNow(ctx context.Context) (float64, error) {
	e.mu.Lock()
	vp := e.viewport
	doc := e.doc
	e.mu.Unlock()
	return e.scaler.FitToPage(ctx, doc, vp)
}

// Scale returns the currently applied scale factor.
func (e *Editor) Scale() float64 { return e.scaler.Applied() }

// PreparePrint resolves edit sessions, rescales synchronously and returns
// the serialized document ready for print rendering. The caller owns the
// settle delay before actually invoking the print pipeline.
func (e *Editor) PreparePrint(ctx context.Context) (string, error) {
	e.sessions.DeactivateAll()
	if _, err := e.FitNow(ctx); err != nil && err != ErrBusy {
		return "", err
	}
	return e.doc.Render(), nil
}

// afterMutation is the shared tail of every content change: dirty flag,
// autosave, debounced rescale.
func (e *Editor) afterMutation() {
	e.mu.Lock()
	e.dirty = true
	e.mu.Unlock()
	e.autosave()
	e.RequestFit()
}

// autosave persists the full document. Storage failures are warned about
// and surfaced as a notification, never fatal.
func (e *Editor) autosave() {
	if e.store == nil {
		return
	}
	if err := e.store.SetAutosave(e.doc.Render()); err != nil {
		e.log.Warn("autosave failed", "error", err)
		e.notifier.Notify(NoticeStorageError, "Nie można zapisać zmian")
	}
}

// SaveState writes a named full-document snapshot.
func (e *Editor) SaveState(name string) (string, error) {
	if e.store == nil {
		return "", fmt.Errorf("no snapshot store configured")
	}
	key, err := e.store.Save(name, e.doc.Render())
	if err != nil {
		e.log.Warn("snapshot save failed", "name", name, "error", err)
		e.notifier.Notify(NoticeStorageError, "Nie można zapisać stanu")
		return "", err
	}
	e.mu.Lock()
	e.dirty = false
	e.mu.Unlock()
	e.notifier.Notify(NoticeSaveIndicator, fmt.Sprintf("Stan zapisany: %q", name))
	return key, nil
}

// ListStates lists stored snapshots newest first.
func (e *Editor) ListStates() ([]snapshot.Meta, error) {
	if e.store == nil {
		return nil, nil
	}
	return e.store.List()
}

// RestoreState replaces the entire live document with a stored snapshot
// after explicit confirmation, then re-runs initialization. Replacing the
// document discards all attached behavior, so initialization is retried
// with bounded attempts in case the restored markup is not immediately
// wireable.
func (e *Editor) RestoreState(key string) error {
	if e.store == nil {
		return fmt.Errorf("no snapshot store configured")
	}
	state, err := e.store.Get(key)
	if err != nil {
		return err
	}
	msg := fmt.Sprintf("Czy na pewno chcesz przywrócić stan %q? Obecne zmiany zostaną utracone.", state.Name)
	if !e.confirmer.Confirm(msg) {
		return ErrDeclined
	}

	newDoc, err := dom.ParseString(state.HTML)
	if err != nil {
		return fmt.Errorf("parse snapshot %s: %w", key, err)
	}

	e.mu.Lock()
	e.sessions = newSessionManager(e.notifier, e.afterMutation, nil)
	e.doc = newDoc
	e.dirty = false
	e.initialized = false
	e.mu.Unlock()
	e.scaler.Reset()

	if err := e.Init(true); err == nil {
		e.notifier.Notify(NoticeSaveIndicator, fmt.Sprintf("Przywrócono stan: %q", state.Name))
		return nil
	}
	e.sched.Retry(ReinitAttempts, ReinitRetryDelay,
		func() error { return e.Init(true) },
		func(err error) {
			e.log.Error("reinitialize after restore failed", "key", key, "error", err)
		})
	return nil
}

// DeleteState removes a stored snapshot.
func (e *Editor) DeleteState(key string) error {
	if e.store == nil {
		return fmt.Errorf("no snapshot store configured")
	}
	if err := e.store.Delete(key); err != nil {
		return err
	}
	e.notifier.Notify(NoticeSaveIndicator, "Stan został usunięty")
	return nil
}

// Close cancels every pending timer.
func (e *Editor) Close() {
	e.sched.Stop()
}
