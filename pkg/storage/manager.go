package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// ImageSubdir is the fixed subdirectory namespace under which all scraped
// images are materialized.
const ImageSubdir = "scraped_images"

// Manager handles file materialization for downloaded images. Filenames
// arriving here have already been deduplicated by the download gate, so the
// manager never overwrites one claimed file with another.
type Manager struct {
	imageDir string
	saved    int
	mu       sync.Mutex
}

// NewManager creates a storage manager rooted at baseDir. Images land in
// baseDir/scraped_images.
func NewManager(baseDir string) (*Manager, error) {
	imageDir := filepath.Join(baseDir, ImageSubdir)
	if err := os.MkdirAll(imageDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create image directory: %w", err)
	}

	return &Manager{imageDir: imageDir}, nil
}

// SaveFile writes the reader's contents to the named file inside the image
// subdirectory. The write goes to a temporary file first and is moved into
// place with an atomic rename, so a failed download never leaves a partial
// file under the claimed name.
func (m *Manager) SaveFile(r io.Reader, filename string) error {
	target := filepath.Join(m.imageDir, filepath.Base(filename))

	tempFile := target + ".tmp"
	out, err := os.Create(tempFile)
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}

	_, err = io.Copy(out, r)
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to write file data: %w", err)
	}
	if closeErr != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to close file: %w", closeErr)
	}

	if err := os.Rename(tempFile, target); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}

	m.mu.Lock()
	m.saved++
	m.mu.Unlock()

	return nil
}

// ImageDir returns the directory files are saved into.
func (m *Manager) ImageDir() string {
	return m.imageDir
}

// SavedCount returns the number of files saved by this manager.
func (m *Manager) SavedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saved
}
