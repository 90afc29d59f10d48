package render

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Sink persists one rendered image and returns where it went.
type Sink interface {
	Save(filename string, data []byte) (string, error)
}

// FileSink writes images into Dir. Same-named files are overwritten.
type FileSink struct {
	Dir string
}

func (s FileSink) Save(filename string, data []byte) (string, error) {
	path := filepath.Join(s.Dir, filename)
	if rel, err := filepath.Rel(s.Dir, path); err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("refusing to write %q outside %s", filename, s.Dir)
	}
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}
