package main

import (
	"context"
	"log"
	"os"

	httpadapter "cv-editor/internal/adapter/http"
	repo "cv-editor/internal/adapter/repository"
	"cv-editor/internal/infrastructure/migration"
	"cv-editor/internal/snapshot"
	"cv-editor/pkg/ai"
	infra "cv-editor/pkg/infrastructure"
	"cv-editor/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

func main() {
	ctx := context.Background()

	production := os.Getenv("APP_ENV") == "production"
	mode := "development"
	if production {
		mode = "production"
	}
	zl, err := logger.New(mode)
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer zl.Sync()

	// infra setup
	snapshotsPool, err := infra.NewSnapshotsPool(ctx)
	if err != nil {
		log.Printf("warning: snapshots DB not available: %v", err)
	}
	if snapshotsPool != nil {
		if err := migration.RunMigrations(ctx, snapshotsPool); err != nil {
			log.Printf("warning: migrations failed: %v", err)
		}
	}

	storePath := os.Getenv("EDITOR_STORE_PATH")
	if storePath == "" {
		storePath = "cv-editor.db"
	}
	kv, err := snapshot.OpenSQLiteKV(storePath)
	if err != nil {
		zl.Fatal("snapshot store init failed", "path", storePath, "error", err)
	}
	defer kv.Close()
	store := snapshot.NewStore(kv)

	renderer := infra.NewChromedpRenderer()
	snapshotsRepo := repo.NewSnapshotsRepo(snapshotsPool)
	aiClient := ai.NewClient()

	app := fiber.New(fiber.Config{
		BodyLimit: 10 * 1024 * 1024,
	})
	app.Use(recover.New())
	app.Use(cors.New(corsConfig(production)))

	h := httpadapter.NewHandler(httpadapter.Options{
		AI:         aiClient,
		Store:      store,
		Repo:       snapshotsRepo,
		Renderer:   renderer,
		Logger:     zl,
		Production: production,
	})

	app.Get("/api/health", h.Health)
	app.Post("/api/generate-cv", h.GenerateCV)
	app.Post("/api/snapshots", h.SaveSnapshot)
	app.Get("/api/snapshots", h.ListSnapshots)
	app.Get("/api/snapshots/:key", h.GetSnapshot)
	app.Delete("/api/snapshots/:key", h.DeleteSnapshot)
	app.Post("/api/snapshots/:key/restore", h.RestoreSnapshot)
	app.Post("/api/export-pdf", h.ExportPDF)
	app.Static("/", "./public")

	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
	}

	zl.Info("server starting", "port", port, "mode", mode)
	if err := app.Listen(":" + port); err != nil {
		zl.Fatal("server failed", "error", err)
	}
}

// corsConfig whitelists local dev origins plus ALLOWED_ORIGINS; outside
// production anything goes.
func corsConfig(production bool) cors.Config {
	if !production {
		return cors.Config{AllowOrigins: "*"}
	}
	origins := "http://localhost:3000, http://127.0.0.1:3000"
	if extra := os.Getenv("ALLOWED_ORIGINS"); extra != "" {
		origins = origins + ", " + extra
	}
	return cors.Config{
		AllowOrigins: origins,
		AllowMethods: "GET, POST, DELETE, OPTIONS",
	}
}
