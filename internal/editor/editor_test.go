package editor

import (
	"context"
	"strings"
	"testing"
	"time"

	"cv-editor/internal/snapshot"
	"cv-editor/pkg/dom"

	"golang.org/x/net/html/atom"
)

const sampleHTML = `<!DOCTYPE html>
<html><head><title>CV</title></head><body>
<div class="page">
  <header role="banner"><h1>Jan Kowalski</h1><div class="rule"></div></header>
  <div class="cv-columns">
    <main>
      <section class="section">
        <h2 class="title">Doświadczenie zawodowe</h2>
        <div class="timeline">
          <article class="timeline-item">
            <div class="meta"><div><strong>Softwarehouse</strong><br/>Starszy programista</div><div>2021</div></div>
            <ul><li>Rozwój usług backendowych</li><li>Przeglądy kodu</li></ul>
          </article>
          <article class="timeline-item">
            <div class="meta"><div><strong>Startup Labs</strong><br/>Programista</div><div>2018</div></div>
            <ul><li>Budowa API REST</li></ul>
          </article>
        </div>
      </section>
      <section class="section">
        <h2 class="title">Referencje</h2>
        <div class="references">
          <div class="ref-card"><div class="name">Anna Nowak</div><div class="small">Kierownik projektu</div></div>
          <div class="ref-card"><div class="name">Piotr Wiśniewski</div><div class="small">CTO</div></div>
        </div>
      </section>
    </main>
    <aside>
      <section class="side-section">
        <h3 class="side-title">Umiejętności</h3>
        <div class="side-list"><div>Go, SQL</div><div>Docker</div></div>
      </section>
    </aside>
  </div>
</div>
</body></html>`

// fixedMeasurer pins the measured geometry exactly; Size may be mutated
// between layout passes.
type fixedMeasurer struct {
	Size  ContentSize
	Calls int
}

func (f *fixedMeasurer) Measure(context.Context, *dom.Document, Viewport) (ContentSize, error) {
	f.Calls++
	return f.Size, nil
}

type recordNotifier struct {
	kinds    []string
	messages []string
}

func (r *recordNotifier) Notify(kind, message string) {
	r.kinds = append(r.kinds, kind)
	r.messages = append(r.messages, message)
}

func (r *recordNotifier) count(kind string) int {
	n := 0
	for _, k := range r.kinds {
		if k == kind {
			n++
		}
	}
	return n
}

// stubConfirmer records the last prompt and answers with a fixed verdict.
type stubConfirmer struct {
	answer bool
	asked  []string
}

func (s *stubConfirmer) Confirm(message string) bool {
	s.asked = append(s.asked, message)
	return s.answer
}

func mustParse(t *testing.T, src string) *dom.Document {
	t.Helper()
	doc, err := dom.ParseString(src)
	if err != nil {
		t.Fatalf("parse sample document: %v", err)
	}
	return doc
}

func newTestEditor(t *testing.T, opts Options) (*Editor, *dom.Document) {
	t.Helper()
	doc := mustParse(t, sampleHTML)
	if opts.Measurer == nil {
		opts.Measurer = &fixedMeasurer{Size: ContentSize{Width: 600, Height: 800}}
	}
	ed := New(doc, opts)
	t.Cleanup(ed.Close)
	return ed, doc
}

func TestInitWiresAffordances(t *testing.T) {
	ed, doc := newTestEditor(t, Options{})
	if err := ed.Init(false); err != nil {
		t.Fatalf("Init: %v", err)
	}

	body := doc.Body()
	if dom.Attr(body, "data-cv-initialized") != "true" {
		t.Error("init marker missing on body")
	}
	for _, item := range dom.FindAllByClass(doc.Root, "timeline-item") {
		if dom.FindByClass(item, "cv-delete-btn") == nil {
			t.Error("timeline item missing delete button")
		}
	}
	for _, card := range dom.FindAllByClass(doc.Root, "ref-card") {
		if dom.FindByClass(card, "cv-delete-btn") == nil {
			t.Error("ref card missing delete button")
		}
	}
	if dom.FindByClass(doc.Root, "cv-add-timeline-btn") == nil {
		t.Error("timeline add button missing")
	}
	if dom.FindByClass(doc.Root, "cv-add-ref-btn") == nil {
		t.Error("references add button missing")
	}
	if dom.FindByClass(doc.Root, "cv-delete-section-btn") == nil {
		t.Error("section delete button missing")
	}
}

func TestInitIsIdempotent(t *testing.T) {
	// WHAT: A second Init must not duplicate affordances.
	ed, doc := newTestEditor(t, Options{})
	if err := ed.Init(false); err != nil {
		t.Fatalf("first Init: %v", err)
	}
	before := len(dom.FindAllByClass(doc.Root, "cv-delete-btn"))
	if err := ed.Init(false); err != nil {
		t.Fatalf("second Init: %v", err)
	}
	after := len(dom.FindAllByClass(doc.Root, "cv-delete-btn"))
	if before != after {
		t.Errorf("delete buttons = %d after re-init, want %d", after, before)
	}
}

func TestInitForceRewires(t *testing.T) {
	ed, doc := newTestEditor(t, Options{})
	if err := ed.Init(false); err != nil {
		t.Fatalf("Init: %v", err)
	}
	before := len(dom.FindAllByClass(doc.Root, "cv-add-btn"))
	if err := ed.Init(true); err != nil {
		t.Fatalf("forced Init: %v", err)
	}
	after := len(dom.FindAllByClass(doc.Root, "cv-add-btn"))
	if before != after {
		t.Errorf("add buttons = %d after forced re-init, want %d", after, before)
	}
}

func TestAutosaveOnlyOnChangedCommit(t *testing.T) {
	store := snapshot.NewStore(snapshot.NewMemKV())
	ed, doc := newTestEditor(t, Options{Store: store})

	li := dom.FindByTag(doc.Root, atom.Li)
	r, err := ed.DoubleClick(li)
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	// unchanged commit behaves as cancel: nothing persisted
	ed.Sessions().Commit(r)
	if _, ok, _ := store.Autosave(); ok {
		t.Fatal("autosave written after unchanged commit")
	}

	r, err = ed.DoubleClick(li)
	if err != nil {
		t.Fatalf("reopen session: %v", err)
	}
	if err := dom.SetInnerHTML(li, "Nowa treść"); err != nil {
		t.Fatalf("edit region: %v", err)
	}
	ed.Sessions().Commit(r)

	saved, ok, err := store.Autosave()
	if err != nil || !ok {
		t.Fatalf("autosave missing after changed commit (ok=%v, err=%v)", ok, err)
	}
	if !strings.Contains(saved, "Nowa treść") {
		t.Error("autosave does not contain the committed edit")
	}
	if !ed.Dirty() {
		t.Error("editor not dirty after changed commit")
	}
}

func TestSaveAndRestoreState(t *testing.T) {
	store := snapshot.NewStore(snapshot.NewMemKV())
	ed, doc := newTestEditor(t, Options{Store: store})
	if err := ed.Init(false); err != nil {
		t.Fatalf("Init: %v", err)
	}

	key, err := ed.SaveState("przed zmianą")
	if err != nil {
		t.Fatalf("SaveState: %v", err)
	}
	if ed.Dirty() {
		t.Error("dirty flag not cleared by explicit save")
	}

	li := dom.FindByTag(doc.Root, atom.Li)
	if err := dom.SetInnerHTML(li, "Zmieniona treść"); err != nil {
		t.Fatalf("mutate: %v", err)
	}

	if err := ed.RestoreState(key); err != nil {
		t.Fatalf("RestoreState: %v", err)
	}
	text := dom.TextContent(ed.Document().Root)
	if strings.Contains(text, "Zmieniona treść") {
		t.Error("restored document still contains the discarded edit")
	}
	if !strings.Contains(text, "Rozwój usług backendowych") {
		t.Error("restored document lost original content")
	}
	if dom.Attr(ed.Document().Body(), "data-cv-initialized") != "true" {
		t.Error("restored document was not re-initialized")
	}
}

func TestRestoreStateDeclined(t *testing.T) {
	store := snapshot.NewStore(snapshot.NewMemKV())
	conf := &stubConfirmer{answer: false}
	ed, doc := newTestEditor(t, Options{Store: store, Confirmer: conf})

	key, err := ed.SaveState("zapis")
	if err != nil {
		t.Fatalf("SaveState: %v", err)
	}
	li := dom.FindByTag(doc.Root, atom.Li)
	if err := dom.SetInnerHTML(li, "Edycja w toku"); err != nil {
		t.Fatalf("mutate: %v", err)
	}

	if err := ed.RestoreState(key); err != ErrDeclined {
		t.Fatalf("RestoreState = %v, want ErrDeclined", err)
	}
	if !strings.Contains(dom.TextContent(doc.Root), "Edycja w toku") {
		t.Error("declined restore modified the document")
	}
	if len(conf.asked) != 1 {
		t.Errorf("confirmations = %d, want 1", len(conf.asked))
	}
}

func TestListStatesNewestFirst(t *testing.T) {
	store := snapshot.NewStore(snapshot.NewMemKV())
	ed, _ := newTestEditor(t, Options{Store: store})

	if _, err := ed.SaveState("pierwszy"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := ed.SaveState("drugi"); err != nil {
		t.Fatalf("save: %v", err)
	}

	metas, err := ed.ListStates()
	if err != nil {
		t.Fatalf("ListStates: %v", err)
	}
	if len(metas) != 2 {
		t.Fatalf("states = %d, want 2", len(metas))
	}
	if metas[0].Timestamp < metas[1].Timestamp {
		t.Error("states not ordered newest first")
	}
}

func TestPreparePrintAppliesTransform(t *testing.T) {
	fm := &fixedMeasurer{Size: ContentSize{Width: 600, Height: 2100}}
	ed, _ := newTestEditor(t, Options{Measurer: fm})

	out, err := ed.PreparePrint(context.Background())
	if err != nil {
		t.Fatalf("PreparePrint: %v", err)
	}
	if !strings.Contains(out, "transform") || !strings.Contains(out, "scale(") {
		t.Error("printable document missing the shrink transform")
	}
	if ed.Scale() >= 1 {
		t.Errorf("scale = %f, want < 1 for oversized content", ed.Scale())
	}
}

func TestPreparePrintResolvesSessions(t *testing.T) {
	ed, doc := newTestEditor(t, Options{})
	li := dom.FindByTag(doc.Root, atom.Li)
	if _, err := ed.DoubleClick(li); err != nil {
		t.Fatalf("open session: %v", err)
	}

	out, err := ed.PreparePrint(context.Background())
	if err != nil {
		t.Fatalf("PreparePrint: %v", err)
	}
	if strings.Contains(out, "editing") {
		t.Error("printable document still contains an editing region")
	}
	if ed.Sessions().OpenCount() != 0 {
		t.Errorf("open sessions = %d after print prep, want 0", ed.Sessions().OpenCount())
	}
}

func TestBlurResolvesEachRegionIndependently(t *testing.T) {
	// WHAT: Two regions blurring inside the same settle window must both
	// resolve; one region's timer must not cancel the other's.
	store := snapshot.NewStore(snapshot.NewMemKV())
	ed, doc := newTestEditor(t, Options{Store: store})

	items := dom.FindAllByTag(doc.Root, atom.Li)
	if len(items) < 2 {
		t.Fatalf("list items = %d, want at least 2", len(items))
	}
	ra, err := ed.DoubleClick(items[0])
	if err != nil {
		t.Fatalf("open first session: %v", err)
	}
	rb, err := ed.DoubleClick(items[1])
	if err != nil {
		t.Fatalf("open second session: %v", err)
	}
	if err := dom.SetInnerHTML(items[0], "Pierwsza zmiana"); err != nil {
		t.Fatalf("edit first region: %v", err)
	}
	if err := dom.SetInnerHTML(items[1], "Druga zmiana"); err != nil {
		t.Fatalf("edit second region: %v", err)
	}

	ed.Blur(ra)
	ed.Blur(rb)
	time.Sleep(4 * BlurResolveDelay)

	if n := ed.Sessions().OpenCount(); n != 0 {
		t.Fatalf("open sessions after both blurs = %d, want 0", n)
	}
	saved, ok, err := store.Autosave()
	if err != nil || !ok {
		t.Fatalf("autosave missing after blur commits (ok=%v, err=%v)", ok, err)
	}
	for _, edit := range []string{"Pierwsza zmiana", "Druga zmiana"} {
		if !strings.Contains(saved, edit) {
			t.Errorf("autosave missing committed edit %q", edit)
		}
	}
}
