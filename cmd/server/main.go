package main

import (
	"log"
	"os"
	"path/filepath"

	"github.com/geoseq/sequences-backend-go/internal/api"
	"github.com/geoseq/sequences-backend-go/internal/codec"
	"github.com/geoseq/sequences-backend-go/internal/config"
	"github.com/geoseq/sequences-backend-go/internal/database"
	"github.com/geoseq/sequences-backend-go/internal/handler"
	"github.com/geoseq/sequences-backend-go/internal/nadir"
	"github.com/geoseq/sequences-backend-go/internal/platform/mapillary"
	"github.com/geoseq/sequences-backend-go/internal/platform/mtpweb"
	"github.com/geoseq/sequences-backend-go/internal/repository"
	"github.com/geoseq/sequences-backend-go/internal/service"
	"github.com/geoseq/sequences-backend-go/internal/store"
	"github.com/geoseq/sequences-backend-go/internal/uploader"
)

func main() {
	cfg := config.Load()

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		log.Fatal("Failed to create data directory:", err)
	}
	if err := database.Init(database.Config{Path: cfg.DBPath}); err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	defer database.Close()

	editor := codec.NewDrawEditor()
	tagger := codec.NewSidecarTagger()

	sequenceStore := store.New(cfg.StoreRoot)
	coordinator := nadir.NewCoordinator(editor, editor, tagger, cfg.TempDir)
	orchestrator := uploader.New(
		mapillary.NewClient(cfg.MapillaryBaseURL, cfg.MapillaryClientID, cfg.UploadTimeout),
		mtpweb.NewClient(cfg.MTPBaseURL, cfg.UploadTimeout),
	)

	tokenService := service.NewTokenService(repository.NewTokenRepository(database.GetDB()))
	sequenceService := service.NewSequenceService(sequenceStore, coordinator, orchestrator, tokenService)

	router := api.SetupRouter(api.Handlers{
		Sequences: handler.NewSequenceHandler(sequenceService),
		Tokens:    handler.NewTokenHandler(tokenService),
		Nadir:     handler.NewNadirHandler(sequenceService),
	})

	log.Printf("Server starting on port %s", cfg.Port)
	if err := router.Run(cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
