// Package env locates the llarhub work directory.
package env

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// HomeVar overrides the work directory.
const HomeVar = "LLARHUB_HOME"

// LoadDotEnv loads variables from .env files (default ./.env) without
// overriding ones already set. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

// WorkDir returns $LLARHUB_HOME, or <user cache dir>/.llar/hub, creating
// it if needed.
func WorkDir() (string, error) {
	dir := os.Getenv(HomeVar)
	if dir == "" {
		userCacheDir, err := os.UserCacheDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(userCacheDir, ".llar", "hub")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return dir, nil
}

func subdir(name string) (string, error) {
	home, err := WorkDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, name)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return dir, nil
}

// PackagesDir holds package workspaces, <name>/<version>/<package id>.
func PackagesDir() (string, error) {
	return subdir("packages")
}

// ProfilesDir holds named profiles, <name>.toml.
func ProfilesDir() (string, error) {
	return subdir("profiles")
}

// DownloadsDir caches verified source archives.
func DownloadsDir() (string, error) {
	return subdir("downloads")
}
