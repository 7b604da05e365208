// Command generate renders the published posts into a static HTML tree.
package main

import (
	"context"

	"github.com/joho/godotenv"

	"github.com/lmarchetti/inkwell/internal/blog"
	"github.com/lmarchetti/inkwell/internal/config"
	"github.com/lmarchetti/inkwell/internal/db"
	"github.com/lmarchetti/inkwell/internal/logger"
	"github.com/lmarchetti/inkwell/internal/metadata"
	"github.com/lmarchetti/inkwell/internal/render"
	"github.com/lmarchetti/inkwell/internal/site"
	"github.com/lmarchetti/inkwell/internal/storage"
)

func main() {
	godotenv.Load()

	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		bootLogger := logger.New("info")
		bootLogger.Fatal().Err(err).Msg("Error loading config")
	}
	cfg.ApplyEnv()

	l := logger.New(cfg.Logging.Level)
	config.SetLogger(l)
	db.SetLogger(l)
	metadata.SetLogger(l)
	storage.SetLogger(l)
	blog.SetLogger(l)
	render.SetLogger(l)
	site.SetLogger(l)

	database := db.NewSQLite(cfg.Database.Path)
	if err := database.InitDB(); err != nil {
		l.Fatal().Err(err).Msg("Error initializing database")
	}
	defer database.Close()

	// Generation only reads from the metadata store; the local backend is
	// enough to satisfy the blog manager's wiring.
	local, err := storage.NewLocal(storage.LocalConfig{BaseDir: cfg.Storage.Local.BaseDir})
	if err != nil {
		l.Fatal().Err(err).Msg("Error initializing local storage")
	}
	storageManager := storage.NewManager(storage.KindLocal)
	storageManager.AddBackend(local)

	blogManager := blog.NewManager(storageManager, metadata.NewStore(database))

	generator, err := site.NewGenerator(blogManager, cfg)
	if err != nil {
		l.Fatal().Err(err).Msg("Error initializing site generator")
	}

	if err := generator.Generate(context.Background()); err != nil {
		l.Fatal().Err(err).Msg("Error generating site")
	}
}
