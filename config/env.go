package config

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// LoadEnv finds the nearest .env file, starting in the working directory
// and walking up, and loads it without overriding variables that are
// already set. It returns the file it loaded, or "" if there was none.
func LoadEnv() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return loadEnvFrom(dir)
}

func loadEnvFrom(dir string) (string, error) {
	for {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			return envPath, godotenv.Load(envPath)
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", err
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}
