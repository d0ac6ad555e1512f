package editor

import (
	"context"
	"fmt"
	"sync"

	"cv-editor/pkg/dom"

	"golang.org/x/net/html"
)

// PxPerMM converts physical page millimeters to on-screen pixels at 96 DPI.
const PxPerMM = 3.779527559

const (
	scaleFloor       = 0.5
	scaleSafety      = 0.98
	revalidateFactor = 1.1
)

// PageGeometry is the fixed physical page the content must fit.
type PageGeometry struct {
	WidthMM, HeightMM                        float64
	MarginTopMM, MarginBottomMM, MarginSideMM float64
}

// A4 portrait with the template's print margins.
func A4() PageGeometry {
	return PageGeometry{
		WidthMM:        210,
		HeightMM:       297,
		MarginTopMM:    12,
		MarginBottomMM: 15,
		MarginSideMM:   12,
	}
}

func (g PageGeometry) availableHeightPx() float64 {
	return (g.HeightMM - g.MarginTopMM - g.MarginBottomMM) * PxPerMM
}

func (g PageGeometry) availableWidthPx() float64 {
	return (g.WidthMM - 2*g.MarginSideMM) * PxPerMM
}

// PageHeightPx is the nominal page height used by the overflow heuristic.
func (g PageGeometry) PageHeightPx() float64 {
	return g.HeightMM * PxPerMM
}

// Viewport is the on-screen window size, part of the rescale cache key.
type Viewport struct {
	Width, Height int
}

// ContentSize is the natural (unscaled) bounding box of the content.
type ContentSize struct {
	Width, Height float64
}

// Measurer reads the natural content size of the document's content
// container. Implementations range from deterministic text metrics to a
// headless browser.
type Measurer interface {
	Measure(ctx context.Context, doc *dom.Document, vp Viewport) (ContentSize, error)
}

// Scaler computes and applies the uniform shrink transform that fits the
// content container into one page. All of its previously-ambient state
// (busy flag, content fingerprint, last window size, applied scale) lives
// here with an explicit lifecycle: constructed per document, reset on full
// document replacement.
type Scaler struct {
	geom     PageGeometry
	measurer Measurer

	mu      sync.Mutex
	busy    bool
	lastSig string
	lastVP  Viewport
	applied float64
}

func NewScaler(geom PageGeometry, m Measurer) *Scaler {
	return &Scaler{geom: geom, measurer: m, applied: 1}
}

// Applied returns the currently applied scale factor (1 when untransformed).
func (s *Scaler) Applied() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applied
}

// Reset forgets the cache and applied scale; used when the whole document
// is replaced.
func (s *Scaler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSig = ""
	s.lastVP = Viewport{}
	s.applied = 1
}

// FitToPage runs one layout pass. A call arriving while a pass is in flight
// is dropped (ErrBusy), not deferred. When neither the content signature nor
// the viewport changed, the pass short-circuits — but only after re-checking
// that the applied scale still fits, so incremental edits cannot drift.
func (s *Scaler) FitToPage(ctx context.Context, doc *dom.Document, vp Viewport) (float64, error) {
	container := dom.FindByClass(doc.Root, "cv-columns")
	if container == nil {
		return 1, ErrNoContainer
	}

	s.mu.Lock()
	if s.busy {
		applied := s.applied
		s.mu.Unlock()
		return applied, ErrBusy
	}
	s.busy = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.busy = false
		s.mu.Unlock()
	}()

	sig := dom.ContentSignature(container)

	s.mu.Lock()
	cacheHit := sig == s.lastSig && vp == s.lastVP
	applied := s.applied
	s.mu.Unlock()

	if cacheHit {
		ok, err := s.stillFits(ctx, doc, vp, applied)
		if err == nil && ok {
			return applied, nil
		}
		// fall through to a full pass when the quick check fails
	}

	scale, err := s.fullPass(ctx, doc, container, vp)
	if err != nil {
		return applied, err
	}

	s.mu.Lock()
	s.lastSig = sig
	s.lastVP = vp
	s.applied = scale
	s.mu.Unlock()
	return scale, nil
}

// stillFits cheaply re-validates the applied scale instead of trusting the
// cache blindly.
func (s *Scaler) stillFits(ctx context.Context, doc *dom.Document, vp Viewport, applied float64) (bool, error) {
	size, err := s.measure(ctx, doc, vp)
	if err != nil {
		return false, err
	}
	limit := s.geom.availableHeightPx() * revalidateFactor
	if applied < 1 {
		return size.Height*applied <= limit, nil
	}
	return size.Height <= limit, nil
}

func (s *Scaler) fullPass(ctx context.Context, doc *dom.Document, container *html.Node, vp Viewport) (float64, error) {
	// Reset any existing transform so measurement reflects natural size.
	dom.RemoveStyle(container, "transform")
	dom.RemoveStyle(container, "transform-origin")

	size, err := s.measure(ctx, doc, vp)
	if err != nil {
		return 1, err
	}

	availH := s.geom.availableHeightPx()
	availW := s.geom.availableWidthPx()

	heightScale := 1.0
	if size.Height > availH {
		heightScale = availH / size.Height * scaleSafety
	}
	widthScale := 1.0
	if size.Width > availW {
		widthScale = availW / size.Width * scaleSafety
	}

	scale := heightScale
	if widthScale < scale {
		scale = widthScale
	}
	if scale < scaleFloor {
		scale = scaleFloor
	}

	if scale < 1 {
		dom.SetStyle(container, "transform", fmt.Sprintf("scale(%.4f)", scale))
		dom.SetStyle(container, "transform-origin", "top left")
	}
	return scale, nil
}

// measure hides the add/delete affordances so they do not inflate the
// bounding box, and restores their visibility unconditionally afterwards,
// even when measurement fails.
func (s *Scaler) measure(ctx context.Context, doc *dom.Document, vp Viewport) (ContentSize, error) {
	type hidden struct {
		node    *html.Node
		display string
		had     bool
	}
	var hiddenNodes []hidden
	for _, class := range []string{"cv-add-btn", "cv-delete-btn", "cv-delete-section-btn"} {
		for _, n := range dom.FindAllByClass(doc.Root, class) {
			display := dom.Style(n, "display")
			hiddenNodes = append(hiddenNodes, hidden{node: n, display: display, had: display != ""})
			dom.SetStyle(n, "display", "none")
		}
	}
	defer func() {
		for _, h := range hiddenNodes {
			if h.had {
				dom.SetStyle(h.node, "display", h.display)
			} else {
				dom.RemoveStyle(h.node, "display")
			}
		}
	}()

	return s.measurer.Measure(ctx, doc, vp)
}
