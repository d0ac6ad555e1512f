package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"cv-editor/internal/editor"
	"cv-editor/pkg/dom"
	infra "cv-editor/pkg/infrastructure"
)

func main() {
	in := flag.String("in", "public/index.html", "input CV HTML file")
	out := flag.String("out", "cv.pdf", "output PDF file")
	flag.Parse()

	b, err := os.ReadFile(*in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read input: %v\n", err)
		os.Exit(2)
	}
	doc, err := dom.ParseString(string(b))
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse html: %v\n", err)
		os.Exit(2)
	}

	ed := editor.New(doc, editor.Options{})
	defer ed.Close()

	ctx := context.Background()
	printable, err := ed.PreparePrint(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fit document: %v\n", err)
		os.Exit(2)
	}
	// debounced layout timers may still fire after print preparation; let
	// them settle and reserialize before handing off to the renderer
	time.Sleep(editor.PrintSettleDelay)
	printable = ed.Document().Render()

	renderer := infra.NewChromedpRenderer()
	pdf, err := renderer.RenderHTMLToPDF(ctx, printable)
	if err != nil {
		fmt.Fprintf(os.Stderr, "render pdf: %v\n", err)
		os.Exit(2)
	}
	if err := os.WriteFile(*out, pdf, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "write out: %v\n", err)
		os.Exit(2)
	}
	fmt.Printf("wrote %s (scale %.4f)\n", *out, ed.Scale())
}
