package app

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// removeTempDir clears leftovers of interrupted downloads. A missing
// directory is not an error, so calling it twice is the same as once.
func removeTempDir(dir string) error {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil
	}
	clean := filepath.Clean(dir)
	if clean == "." || clean == string(filepath.Separator) {
		return errors.New("refusing to remove " + clean)
	}
	return os.RemoveAll(clean)
}
