// Command migrate creates or upgrades the database schema and exits. The
// schema statements are idempotent, so running it against an existing
// database is safe.
package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/lmarchetti/inkwell/internal/db"
	"github.com/lmarchetti/inkwell/internal/logger"
)

func main() {
	godotenv.Load()

	path := os.Getenv("DATABASE_PATH")
	if path == "" {
		path = "./inkwell.db"
	}

	l := logger.New("info")
	db.SetLogger(l)

	database := db.NewSQLite(path)
	if err := database.InitDB(); err != nil {
		l.Fatal().Err(err).Str("path", path).Msg("Migration failed")
	}
	defer database.Close()

	l.Info().Str("path", path).Msg("Schema up to date")
}
