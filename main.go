package main

import (
	"net/http"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/lmarchetti/inkwell/internal/blog"
	"github.com/lmarchetti/inkwell/internal/config"
	"github.com/lmarchetti/inkwell/internal/db"
	"github.com/lmarchetti/inkwell/internal/logger"
	"github.com/lmarchetti/inkwell/internal/metadata"
	"github.com/lmarchetti/inkwell/internal/render"
	"github.com/lmarchetti/inkwell/internal/site"
	"github.com/lmarchetti/inkwell/internal/storage"
	"github.com/lmarchetti/inkwell/internal/web"
)

const defaultConfigPath = "config.yaml"

func setLoggers(l zerolog.Logger) {
	config.SetLogger(l)
	db.SetLogger(l)
	metadata.SetLogger(l)
	storage.SetLogger(l)
	blog.SetLogger(l)
	render.SetLogger(l)
	web.SetLogger(l)
	site.SetLogger(l)
}

// buildStorageManager registers every configured backend. The local filesystem
// is always available so the default backend can never be missing.
func buildStorageManager(cfg *config.Config, l zerolog.Logger) *storage.Manager {
	manager := storage.NewManager(storage.Kind(cfg.Storage.Default))

	local, err := storage.NewLocal(storage.LocalConfig{BaseDir: cfg.Storage.Local.BaseDir})
	if err != nil {
		l.Fatal().Err(err).Msg("Error initializing local storage")
	}
	manager.AddBackend(local)

	if cfg.Storage.IPFS.APIURL != "" {
		manager.AddBackend(storage.NewIPFS(storage.IPFSConfig{APIURL: cfg.Storage.IPFS.APIURL}))
	}

	if cfg.Storage.GitHub.Configured() {
		manager.AddBackend(storage.NewGitHub(storage.GitHubConfig{
			Owner:  cfg.Storage.GitHub.Owner,
			Repo:   cfg.Storage.GitHub.Repo,
			Branch: cfg.Storage.GitHub.Branch,
			Token:  cfg.Storage.GitHub.Token,
		}))
	}

	if cfg.Storage.S3.Configured() {
		s3Backend, err := storage.NewS3(storage.S3Config{
			AccessKeyID:     cfg.Storage.S3.AccessKeyID,
			AccessKeySecret: cfg.Storage.S3.AccessKeySecret,
			BaseEndpoint:    cfg.Storage.S3.Endpoint,
			Bucket:          cfg.Storage.S3.Bucket,
		})
		if err != nil {
			l.Fatal().Err(err).Msg("Error initializing s3 storage")
		}
		manager.AddBackend(s3Backend)
	}

	l.Info().
		Str("default", string(manager.DefaultKind())).
		Any("backends", manager.Kinds()).
		Msg("Storage backends registered")

	return manager
}

func main() {
	godotenv.Load()

	cfg, err := config.LoadConfig(defaultConfigPath)
	if err != nil {
		bootLogger := logger.New("info")
		bootLogger.Fatal().Err(err).Msg("Error loading config")
	}
	cfg.ApplyEnv()

	l := logger.New(cfg.Logging.Level)
	setLoggers(l)

	database := db.NewSQLite(cfg.Database.Path)
	if err := database.InitDB(); err != nil {
		l.Fatal().Err(err).Msg("Error initializing database")
	}
	defer database.Close()

	storageManager := buildStorageManager(cfg, l)
	blogManager := blog.NewManager(storageManager, metadata.NewStore(database))

	server := web.NewServer(blogManager, cfg)

	addr := cfg.Server.Host + ":" + cfg.Server.Port
	l.Info().Str("addr", addr).Str("site", cfg.Site.Name).Msg("Starting server")
	if err := http.ListenAndServe(addr, server.Routes()); err != nil {
		l.Fatal().Err(err).Msg("Server stopped")
	}
}
