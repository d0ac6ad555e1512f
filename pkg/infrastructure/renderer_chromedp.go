package infrastructure

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

// ChromedpRenderer drives a headless browser for the two jobs that need a
// real layout engine: printing the edited document to PDF and measuring
// natural content size for the layout scaler.
type ChromedpRenderer struct{}

func NewChromedpRenderer() *ChromedpRenderer { return &ChromedpRenderer{} }

func (r *ChromedpRenderer) newContext(ctx context.Context) (context.Context, func()) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if p := os.Getenv("CHROME_PATH"); p != "" {
		opts = append(opts, chromedp.ExecPath(p))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	cctx, cancelCtx := chromedp.NewContext(allocCtx)
	return cctx, func() {
		cancelCtx()
		cancelAlloc()
	}
}

// stageHTML writes the document to a temp dir and copies the stylesheet
// next to it when available, so relative links resolve.
func stageHTML(html string) (string, func(), error) {
	tmpDir, err := os.MkdirTemp("", "cv-")
	if err != nil {
		return "", nil, err
	}
	cleanup := func() { os.RemoveAll(tmpDir) }

	htmlPath := filepath.Join(tmpDir, "index.html")
	if err := os.WriteFile(htmlPath, []byte(html), 0o644); err != nil {
		cleanup()
		return "", nil, err
	}

	candidates := []string{"./public/style.css", "public/style.css", "/app/public/style.css", "./style.css", "style.css"}
	for _, c := range candidates {
		if b, err := os.ReadFile(c); err == nil {
			_ = os.WriteFile(filepath.Join(tmpDir, "style.css"), b, 0o644)
			break
		}
	}
	return htmlPath, cleanup, nil
}

// RenderHTMLToPDF prints the document on one A4 page. The document is
// expected to have been run through the editor's print preparation first
// (sessions resolved, scale applied).
func (r *ChromedpRenderer) RenderHTMLToPDF(ctx context.Context, html string) ([]byte, error) {
	cctx, cancel := r.newContext(ctx)
	defer cancel()

	ctx2, cancel2 := context.WithTimeout(cctx, 60*time.Second)
	defer cancel2()

	htmlPath, cleanup, err := stageHTML(html)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	var pdfBuf []byte
	err = chromedp.Run(ctx2,
		chromedp.Navigate("file://"+htmlPath),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			// A4: 210mm x 297mm -> inches: 8.27 x 11.69
			pdfBuf, _, err = page.PrintToPDF().WithPrintBackground(true).
				WithPaperWidth(8.27).
				WithPaperHeight(11.69).
				WithPreferCSSPageSize(true).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, err
	}
	return pdfBuf, nil
}

// MeasureHTML loads the document and reads the natural scroll size of the
// content container once every image has loaded or failed. Returns width
// and height in CSS pixels.
func (r *ChromedpRenderer) MeasureHTML(ctx context.Context, html string) (width, height float64, err error) {
	cctx, cancel := r.newContext(ctx)
	defer cancel()

	ctx2, cancel2 := context.WithTimeout(cctx, 30*time.Second)
	defer cancel2()

	htmlPath, cleanup, err := stageHTML(html)
	if err != nil {
		return 0, 0, err
	}
	defer cleanup()

	var size []float64
	err = chromedp.Run(ctx2,
		chromedp.Navigate("file://"+htmlPath),
		chromedp.WaitReady("body", chromedp.ByQuery),
		// wait for every image to settle before the first layout read
		chromedp.Evaluate(`Promise.all(Array.from(document.images).map(img =>
			img.complete ? Promise.resolve() : new Promise(res => {
				img.addEventListener('load', res); img.addEventListener('error', res);
			})))`, nil, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithAwaitPromise(true)
		}),
		chromedp.Evaluate(`(() => {
			const el = document.querySelector('.cv-columns') || document.body;
			const prev = el.style.transform;
			el.style.transform = '';
			const out = [el.scrollWidth, el.scrollHeight];
			el.style.transform = prev;
			return out;
		})()`, &size),
	)
	if err != nil {
		return 0, 0, err
	}
	if len(size) != 2 {
		return 0, 0, nil
	}
	return size[0], size[1], nil
}
