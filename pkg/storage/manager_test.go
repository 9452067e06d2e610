package storage

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestManager(t *testing.T) {
	tempDir := t.TempDir()

	manager, err := NewManager(tempDir)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	// Image subdirectory is created eagerly
	expectedDir := filepath.Join(tempDir, ImageSubdir)
	if manager.ImageDir() != expectedDir {
		t.Errorf("Expected image dir %s, got %s", expectedDir, manager.ImageDir())
	}
	if _, err := os.Stat(expectedDir); err != nil {
		t.Fatalf("Expected image directory to exist: %v", err)
	}

	if manager.SavedCount() != 0 {
		t.Error("Expected initial saved count to be 0")
	}

	// Save a file and verify content
	testData := []byte("test image data")
	if err := manager.SaveFile(bytes.NewReader(testData), "photo.jpg"); err != nil {
		t.Fatalf("Failed to save file: %v", err)
	}

	content, err := os.ReadFile(filepath.Join(expectedDir, "photo.jpg"))
	if err != nil {
		t.Fatalf("Failed to read saved file: %v", err)
	}
	if !bytes.Equal(content, testData) {
		t.Error("File content does not match expected data")
	}

	if manager.SavedCount() != 1 {
		t.Errorf("Expected saved count 1, got %d", manager.SavedCount())
	}

	// No leftover temp files after a successful save
	entries, err := os.ReadDir(expectedDir)
	if err != nil {
		t.Fatalf("Failed to list image directory: %v", err)
	}
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".tmp") {
			t.Errorf("Found leftover temp file: %s", entry.Name())
		}
	}
}

func TestManagerStripsPathComponents(t *testing.T) {
	tempDir := t.TempDir()

	manager, err := NewManager(tempDir)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	// A filename with path separators must not escape the image directory
	if err := manager.SaveFile(bytes.NewReader([]byte("data")), "../escape.jpg"); err != nil {
		t.Fatalf("Failed to save file: %v", err)
	}

	if _, err := os.Stat(filepath.Join(manager.ImageDir(), "escape.jpg")); err != nil {
		t.Errorf("Expected file inside image directory: %v", err)
	}
	if _, err := os.Stat(filepath.Join(tempDir, "escape.jpg")); err == nil {
		t.Error("File escaped the image directory")
	}
}

func TestManagerFailedWriteLeavesNoPartialFile(t *testing.T) {
	tempDir := t.TempDir()

	manager, err := NewManager(tempDir)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	if err := manager.SaveFile(&failingReader{}, "broken.jpg"); err == nil {
		t.Fatal("Expected save to fail")
	}

	if _, err := os.Stat(filepath.Join(manager.ImageDir(), "broken.jpg")); err == nil {
		t.Error("Expected no file under the claimed name after failed write")
	}
	if manager.SavedCount() != 0 {
		t.Errorf("Expected saved count 0 after failure, got %d", manager.SavedCount())
	}
}

type failingReader struct{}

func (r *failingReader) Read(p []byte) (int, error) {
	return 0, os.ErrClosed
}
