package agent

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"pagegrab/pkg/protocol"
)

// nextSelectors are the pagination heuristics, tried in order. The first
// selector that matches any element wins and no further heuristics are
// consulted.
var nextSelectors = []string{
	"a.next",
	`a[rel="next"]`,
	"button.next-page",
	".pagination a:last-child",
}

// ExtractPayload walks every image element in the rendered document and pairs
// its source URL with the resolved destination of its nearest enclosing link.
// Images inside no link get an empty-string destination so the two slices
// stay parallel. URLs are resolved absolute against base when one is given.
func ExtractPayload(html string, base *url.URL) (protocol.Payload, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return protocol.Payload{}, err
	}

	payload := protocol.Payload{
		Thumbnails:   []string{},
		Destinations: []string{},
	}

	doc.Find("img").Each(func(_ int, img *goquery.Selection) {
		src := strings.TrimSpace(img.AttrOr("src", ""))
		if src == "" {
			// An image with no source has nothing to download.
			return
		}

		destination := ""
		if link := img.Closest("a"); link.Length() > 0 {
			if href, ok := link.Attr("href"); ok {
				destination = resolveURL(base, strings.TrimSpace(href))
			}
		}

		payload.Thumbnails = append(payload.Thumbnails, resolveURL(base, src))
		payload.Destinations = append(payload.Destinations, destination)
	})

	return payload, nil
}

// FindNextSelector returns the first pagination heuristic that matches an
// element in the document, or false when the page has no next-page control.
func FindNextSelector(html string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", false
	}

	for _, selector := range nextSelectors {
		if doc.Find(selector).Length() > 0 {
			return selector, true
		}
	}

	return "", false
}

// resolveURL makes ref absolute against base. A nil base or an unparsable
// ref returns ref unchanged.
func resolveURL(base *url.URL, ref string) string {
	if base == nil || ref == "" {
		return ref
	}
	parsed, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(parsed).String()
}
