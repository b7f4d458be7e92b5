package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/Gokhangurbuz92/sami-app-sub000/internal/database"
	"github.com/Gokhangurbuz92/sami-app-sub000/internal/jobqueue"
	"github.com/Gokhangurbuz92/sami-app-sub000/internal/logging"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	logging.Setup(os.Getenv("LOG_LEVEL"), "development")

	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found")
	}

	dbURL := os.Getenv("DB_URL")
	if dbURL == "" {
		log.Fatal().Msg("DB_URL environment variable is required")
	}

	migrationsPath, err := findMigrationsDir()
	if err != nil {
		log.Fatal().Err(err).Msg("locate migrations")
	}

	m, err := migrate.New("file://"+migrationsPath, dbURL)
	if err != nil {
		log.Fatal().Err(err).Msg("open migrations")
	}
	defer m.Close()

	cmd := "up"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "down":
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatal().Err(err).Msg("migration down failed")
		}
		log.Info().Msg("migration down successful")
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatal().Err(err).Msg("migration up failed")
		}

		ctx := context.Background()
		pool, err := database.Connect(ctx, dbURL)
		if err != nil {
			log.Fatal().Err(err).Msg("connect for job queue migrations")
		}
		defer pool.Close()
		if err := jobqueue.Migrate(ctx, pool); err != nil {
			log.Fatal().Err(err).Msg("job queue migration failed")
		}
		log.Info().Str("path", migrationsPath).Msg("migration up successful")
	default:
		log.Fatal().Str("command", cmd).Msg("unknown command, expected up or down")
	}
}

// findMigrationsDir walks up from the working directory, then tries the
// directories next to the binary.
func findMigrationsDir() (string, error) {
	var candidates []string

	if cwd, err := os.Getwd(); err == nil {
		current := cwd
		for range 6 {
			candidates = append(candidates, filepath.Join(current, "migrations"))
			parent := filepath.Dir(current)
			if parent == current {
				break
			}
			current = parent
		}
	}
	if exePath, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exePath)
		candidates = append(candidates,
			filepath.Join(exeDir, "migrations"),
			filepath.Join(exeDir, "..", "migrations"),
		)
	}

	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return filepath.Abs(candidate)
		}
	}
	return "", errors.New("migrations directory not found")
}
