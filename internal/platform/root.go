package platform

import (
	"errors"
	"os"
	"path/filepath"
)

// ConfigNames are the config file names looked up, in order of preference.
var ConfigNames = []string{".notetaker.yaml", ".notetaker.yml", ".notetaker.toml"}

// ErrConfigNotFound is returned by FindConfig when no directory up to the
// filesystem root holds a config file.
var ErrConfigNotFound = errors.New("config file not found")

// FindConfig looks upwards from startDir for a config file and returns its
// absolute path.
func FindConfig(startDir string) (string, error) {
	abs, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	dir := abs
	for {
		for _, name := range ConfigNames {
			if hasFile(dir, name) {
				return filepath.Join(dir, name), nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", ErrConfigNotFound
}

func hasFile(dir, name string) bool {
	info, err := os.Stat(filepath.Join(dir, name))
	return err == nil && !info.IsDir()
}
