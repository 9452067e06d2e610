// Package download provides the filename claim gate and the HTTP fetch
// capability used to materialize scraped images on disk.
package download

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// FallbackFilename is used when no usable filename can be derived from a URL.
const FallbackFilename = "unnamed_image.jpg"

// Gate reserves unique destination filenames before downloads begin. Claims
// must be strictly sequential within a run: the gate is owned by the
// coordinator and is not safe for concurrent use. Downloads themselves may
// proceed concurrently once their filename is claimed.
type Gate struct {
	claimed map[string]struct{}
}

// NewGate creates an empty gate. The coordinator creates a fresh gate on
// every scrape start, which is what resets the claimed set between runs.
func NewGate() *Gate {
	return &Gate{claimed: make(map[string]struct{})}
}

// Claim derives a destination filename from the URL's trailing path segment
// (query parameters stripped) and reserves it. When the candidate is already
// claimed, an incrementing numeric suffix is inserted before the extension
// (name_1.ext, name_2.ext, ...) until a free name is found.
func (g *Gate) Claim(rawURL string) string {
	base := filenameFromURL(rawURL)

	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	name := base
	for counter := 1; ; counter++ {
		if _, taken := g.claimed[name]; !taken {
			break
		}
		name = fmt.Sprintf("%s_%d%s", stem, counter, ext)
	}

	g.claimed[name] = struct{}{}
	return name
}

// Claimed reports whether a filename has been reserved in this run.
func (g *Gate) Claimed(name string) bool {
	_, ok := g.claimed[name]
	return ok
}

// ClaimedCount returns the number of filenames reserved in this run.
func (g *Gate) ClaimedCount() int {
	return len(g.claimed)
}

// filenameFromURL extracts the trailing path segment of a URL, without query
// parameters. Trailing slashes are skipped, so "/a/b/" yields "b".
func filenameFromURL(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil {
		segments := strings.Split(strings.TrimSuffix(u.Path, "/"), "/")
		if name := segments[len(segments)-1]; name != "" {
			return name
		}
		return FallbackFilename
	}

	// Unparsable URL: best-effort split on the raw string.
	name := rawURL
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}
	if idx := strings.Index(name, "?"); idx >= 0 {
		name = name[:idx]
	}
	if name == "" {
		return FallbackFilename
	}
	return name
}
