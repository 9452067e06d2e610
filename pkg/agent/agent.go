// Package agent implements the per-page half of the scrape cycle: waiting
// for a document to settle, forcing lazy-loaded content to render, extracting
// image/destination pairs, and clicking pagination controls. An agent holds
// no state across page loads; everything it knows about a page is re-derived
// from the live document when a directive arrives.
package agent

import (
	"context"

	"pagegrab/pkg/protocol"
)

// Agent consumes directives from the coordinator and emits events back.
// Run blocks until the directive channel closes, the context is cancelled,
// or the scrape cycle completes (a scrapeComplete event was emitted).
type Agent interface {
	Run(ctx context.Context, directives <-chan protocol.Directive, events chan<- protocol.Event) error
}
