package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mkessel/trident/internal/models"
)

// textExtensions lists file types the filesystem producer will read. Other
// formats are expected to go through the document converter service.
var textExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".rst":      true,
	".html":     true,
	".htm":      true,
}

// Filesystem walks a directory (or reads a single file) and yields one
// document per readable text file.
type Filesystem struct{}

// Type implements Producer.
func (Filesystem) Type() models.SourceType { return models.SourceFilesystem }

// Iterate implements Producer.
func (Filesystem) Iterate(ctx context.Context, cfg Config, emit func(models.Document) error, progress Progress) error {
	if cfg.Path == "" {
		return fmt.Errorf("filesystem source requires a path")
	}

	info, err := os.Stat(cfg.Path)
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}

	var files []string
	if !info.IsDir() {
		files = []string{cfg.Path}
	} else {
		files, err = collectFiles(cfg.Path, cfg.Recursive)
		if err != nil {
			return err
		}
	}

	for i, path := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if progress != nil {
			progress(i+1, len(files), "reading files", path)
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		doc := models.Document{
			DocID:  DocIdentity(models.SourceFilesystem, map[string]any{"path": path}),
			Source: models.SourceFilesystem,
			Name:   filepath.Base(path),
			Path:   path,
			Text:   string(content),
			Metadata: map[string]any{
				"path": path,
				"ext":  filepath.Ext(path),
			},
		}
		if err := emit(doc); err != nil {
			return err
		}
	}

	return nil
}

// collectFiles walks a directory and returns all supported text files.
func collectFiles(dirPath string, recursive bool) ([]string, error) {
	var files []string
	walkFn := func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && !recursive && path != dirPath {
			return filepath.SkipDir
		}
		ext := strings.ToLower(filepath.Ext(path))
		if !d.IsDir() && textExtensions[ext] {
			files = append(files, path)
		}
		return nil
	}

	if err := filepath.WalkDir(dirPath, walkFn); err != nil {
		return nil, fmt.Errorf("scan directory: %w", err)
	}
	return files, nil
}
