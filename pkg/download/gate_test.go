package download

import (
	"testing"
)

func TestGateClaimUniqueNames(t *testing.T) {
	gate := NewGate()

	first := gate.Claim("https://cdn.example.com/images/photo.jpg")
	if first != "photo.jpg" {
		t.Errorf("Expected photo.jpg, got %s", first)
	}

	// Same filename from a different host still collides
	second := gate.Claim("https://mirror.example.com/gallery/photo.jpg")
	if second != "photo_1.jpg" {
		t.Errorf("Expected photo_1.jpg, got %s", second)
	}

	third := gate.Claim("https://cdn.example.com/other/photo.jpg")
	if third != "photo_2.jpg" {
		t.Errorf("Expected photo_2.jpg, got %s", third)
	}

	if gate.ClaimedCount() != 3 {
		t.Errorf("Expected 3 claimed names, got %d", gate.ClaimedCount())
	}
}

func TestGateSuffixBeforeExtension(t *testing.T) {
	gate := NewGate()

	gate.Claim("https://example.com/archive.tar.gz")
	second := gate.Claim("https://example.com/old/archive.tar.gz")

	// Suffix goes before the final extension
	if second != "archive.tar_1.gz" {
		t.Errorf("Expected archive.tar_1.gz, got %s", second)
	}
}

func TestGateStripsQueryParameters(t *testing.T) {
	gate := NewGate()

	name := gate.Claim("https://cdn.example.com/photo.jpg?width=1080&token=abc")
	if name != "photo.jpg" {
		t.Errorf("Expected query parameters stripped, got %s", name)
	}
}

func TestGateTrailingSlash(t *testing.T) {
	gate := NewGate()

	name := gate.Claim("https://example.com/images/banner.png/")
	if name != "banner.png" {
		t.Errorf("Expected banner.png, got %s", name)
	}
}

func TestGateNoExtension(t *testing.T) {
	gate := NewGate()

	first := gate.Claim("https://example.com/images/thumbnail")
	if first != "thumbnail" {
		t.Errorf("Expected thumbnail, got %s", first)
	}

	second := gate.Claim("https://other.example.com/thumbnail")
	if second != "thumbnail_1" {
		t.Errorf("Expected thumbnail_1, got %s", second)
	}
}

func TestGateFallbackFilename(t *testing.T) {
	gate := NewGate()

	name := gate.Claim("https://example.com/")
	if name != FallbackFilename {
		t.Errorf("Expected fallback filename, got %s", name)
	}

	// A second empty-path URL gets a suffixed fallback
	second := gate.Claim("https://example.com")
	if second == name {
		t.Errorf("Expected distinct name for second fallback claim, got %s twice", second)
	}
	if !gate.Claimed(second) {
		t.Error("Expected second fallback name to be claimed")
	}
}

func TestGateFreshGatePerRun(t *testing.T) {
	gate := NewGate()
	gate.Claim("https://example.com/photo.jpg")

	// A new gate has no memory of earlier claims
	fresh := NewGate()
	name := fresh.Claim("https://example.com/photo.jpg")
	if name != "photo.jpg" {
		t.Errorf("Expected fresh gate to grant photo.jpg, got %s", name)
	}
}
