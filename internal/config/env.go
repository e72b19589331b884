package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
)

var envFiles = []string{".env", ".env.local"}

// loadEnvFiles applies .env and .env.local from the working directory.
// Variables already present in the process environment are never overridden.
// Missing files are skipped; a malformed file is an error.
func loadEnvFiles() ([]string, error) {
	var loaded []string
	for _, name := range envFiles {
		if _, err := os.Stat(name); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(name); err != nil {
			return loaded, err
		}
		slog.Debug("Loaded environment variables", slog.String("file", name))
		loaded = append(loaded, name)
	}
	return loaded, nil
}
