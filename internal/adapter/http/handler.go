package http

import (
	"context"
	"errors"
	"log"
	"runtime/debug"

	"cv-editor/internal/adapter/repository"
	"cv-editor/internal/domain"
	"cv-editor/internal/editor"
	"cv-editor/internal/model"
	"cv-editor/internal/snapshot"
	"cv-editor/pkg/ai"
	"cv-editor/pkg/dom"
	"cv-editor/pkg/logger"

	"github.com/gofiber/fiber/v2"
)

// Request body limits, enforced before anything is forwarded upstream.
const (
	maxPromptLen   = 100000
	maxTemplateLen = 500000
)

// Renderer abstracts the headless browser used for PDF export and real
// layout measurement.
type Renderer interface {
	RenderHTMLToPDF(ctx context.Context, html string) ([]byte, error)
	MeasureHTML(ctx context.Context, html string) (width, height float64, err error)
}

// Handler serves the generation relay, snapshot storage and PDF export.
type Handler struct {
	ai         *ai.Client
	store      *snapshot.Store
	repo       *repository.SnapshotsRepo
	renderer   Renderer
	log        *logger.Logger
	schemaPath string
	production bool
}

type Options struct {
	AI         *ai.Client
	Store      *snapshot.Store
	Repo       *repository.SnapshotsRepo
	Renderer   Renderer
	Logger     *logger.Logger
	SchemaPath string
	Production bool
}

func NewHandler(opts Options) *Handler {
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	if opts.SchemaPath == "" {
		opts.SchemaPath = model.DefaultSchemaPath
	}
	return &Handler{
		ai:         opts.AI,
		store:      opts.Store,
		repo:       opts.Repo,
		renderer:   opts.Renderer,
		log:        opts.Logger,
		schemaPath: opts.SchemaPath,
		production: opts.Production,
	}
}

func (h *Handler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok", "message": "API działa poprawnie"})
}

type generateReq struct {
	Provider     string                 `json:"provider"`
	Prompt       string                 `json:"prompt"`
	TemplateHTML string                 `json:"templateHtml"`
	CVData       map[string]interface{} `json:"cvData"`
}

// GenerateCV relays a prompt plus CV data to the requested provider and
// returns the cleaned HTML. Provider failures keep their upstream status.
func (h *Handler) GenerateCV(c *fiber.Ctx) error {
	var req generateReq
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Nieprawidłowy format żądania"})
	}

	if req.Provider == "" || req.Prompt == "" || req.TemplateHTML == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Wymagane pola: provider, prompt, templateHtml",
		})
	}
	if len(req.Prompt) > maxPromptLen {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Prompt jest zbyt długi"})
	}
	if len(req.TemplateHTML) > maxTemplateLen {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Szablon HTML jest zbyt długi"})
	}

	if req.CVData != nil {
		if !model.SchemaAvailable(h.schemaPath) {
			h.log.Warn("cv schema not found, skipping validation", "path", h.schemaPath)
		} else if err := model.ValidateMap(h.schemaPath, req.CVData); err != nil {
			h.log.Warn("cv data failed schema validation", "error", err)
		}
	}

	html, err := h.ai.Generate(c.Context(), req.Provider, req.Prompt, req.TemplateHTML, req.CVData)
	if err != nil {
		var cfgErr *ai.ConfigError
		var unknownErr *ai.UnknownProviderError
		var provErr *ai.ProviderError
		switch {
		case errors.As(err, &cfgErr), errors.As(err, &unknownErr):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		case errors.As(err, &provErr):
			return c.Status(provErr.Status).JSON(fiber.Map{"error": provErr.Message})
		default:
			return h.internalError(c, err)
		}
	}

	return c.JSON(fiber.Map{"html": html})
}

type saveSnapshotReq struct {
	Name string `json:"name"`
	HTML string `json:"html"`
}

func (h *Handler) SaveSnapshot(c *fiber.Ctx) error {
	var req saveSnapshotReq
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Nieprawidłowy format żądania"})
	}
	if req.HTML == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Wymagane pole: html"})
	}

	key, err := h.store.Save(req.Name, req.HTML)
	if err != nil {
		if errors.Is(err, snapshot.ErrQuota) {
			return c.Status(fiber.StatusInsufficientStorage).JSON(fiber.Map{
				"error": "Brak miejsca w pamięci. Usuń starsze zapisy.",
			})
		}
		return h.internalError(c, err)
	}

	// mirror to postgres, best-effort
	if h.repo.Available() {
		state, gerr := h.store.Get(key)
		if gerr == nil {
			s := &domain.Snapshot{Key: state.Key, Name: state.Name, Timestamp: state.Timestamp, HTML: state.HTML}
			if serr := h.repo.Save(c.Context(), s); serr != nil {
				log.Printf("warning: failed to mirror snapshot %s: %v", key, serr)
			}
		}
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"key": key})
}

func (h *Handler) ListSnapshots(c *fiber.Ctx) error {
	metas, err := h.store.List()
	if err != nil {
		return h.internalError(c, err)
	}
	if metas == nil {
		metas = []snapshot.Meta{}
	}
	return c.JSON(fiber.Map{"snapshots": metas})
}

func (h *Handler) GetSnapshot(c *fiber.Ctx) error {
	state, err := h.store.Get(c.Params("key"))
	if err != nil {
		if errors.Is(err, snapshot.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Nie znaleziono zapisu"})
		}
		return h.internalError(c, err)
	}
	return c.JSON(state)
}

func (h *Handler) DeleteSnapshot(c *fiber.Ctx) error {
	key := c.Params("key")
	if err := h.store.Delete(key); err != nil {
		if errors.Is(err, snapshot.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Nie znaleziono zapisu"})
		}
		return h.internalError(c, err)
	}
	if h.repo.Available() {
		if err := h.repo.Delete(c.Context(), key); err != nil {
			log.Printf("warning: failed to delete mirrored snapshot %s: %v", key, err)
		}
	}
	return c.JSON(fiber.Map{"deleted": key})
}

// RestoreSnapshot loads a stored document, runs it through full editor
// initialization and returns the wired HTML ready to replace the live
// document.
func (h *Handler) RestoreSnapshot(c *fiber.Ctx) error {
	state, err := h.store.Get(c.Params("key"))
	if err != nil {
		if errors.Is(err, snapshot.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Nie znaleziono zapisu"})
		}
		return h.internalError(c, err)
	}

	doc, err := dom.ParseString(state.HTML)
	if err != nil {
		return h.internalError(c, err)
	}
	ed := editor.New(doc, editor.Options{
		Store:    h.store,
		Measurer: h.measurer(),
		Logger:   h.log,
	})
	defer ed.Close()
	if err := ed.Init(true); err != nil {
		return h.internalError(c, err)
	}

	return c.JSON(fiber.Map{"key": state.Key, "name": state.Name, "html": doc.Render()})
}

type exportReq struct {
	HTML string `json:"html"`
}

// ExportPDF fits the document to the page, then prints it through the
// headless browser.
func (h *Handler) ExportPDF(c *fiber.Ctx) error {
	if h.renderer == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Eksport PDF jest niedostępny"})
	}

	var req exportReq
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Nieprawidłowy format żądania"})
	}
	if req.HTML == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Wymagane pole: html"})
	}

	doc, err := dom.ParseString(req.HTML)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Nieprawidłowy HTML"})
	}
	ed := editor.New(doc, editor.Options{
		Store:    h.store,
		Measurer: h.measurer(),
		Logger:   h.log,
	})
	defer ed.Close()

	printable, err := ed.PreparePrint(c.Context())
	if err != nil && !errors.Is(err, editor.ErrNoContainer) {
		return h.internalError(c, err)
	}
	if printable == "" {
		printable = req.HTML
	}

	pdf, err := h.renderer.RenderHTMLToPDF(c.Context(), printable)
	if err != nil {
		return h.internalError(c, err)
	}

	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="cv.pdf"`)
	return c.Send(pdf)
}

// measurer prefers real browser layout when a renderer is wired, falling
// back to the deterministic text-metrics estimate.
func (h *Handler) measurer() editor.Measurer {
	if h.renderer == nil {
		return editor.NewMetricsMeasurer()
	}
	return &browserMeasurer{renderer: h.renderer}
}

type browserMeasurer struct {
	renderer Renderer
}

func (b *browserMeasurer) Measure(ctx context.Context, doc *dom.Document, _ editor.Viewport) (editor.ContentSize, error) {
	w, hgt, err := b.renderer.MeasureHTML(ctx, doc.Render())
	if err != nil {
		return editor.ContentSize{}, err
	}
	return editor.ContentSize{Width: w, Height: hgt}, nil
}

func (h *Handler) internalError(c *fiber.Ctx, err error) error {
	h.log.Error("request failed", "path", c.Path(), "error", err)
	body := fiber.Map{"error": "Wystąpił błąd serwera"}
	if !h.production {
		body["error"] = err.Error()
		body["stack"] = string(debug.Stack())
	}
	return c.Status(fiber.StatusInternalServerError).JSON(body)
}
