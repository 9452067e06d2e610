// Package protocol defines the message contract between the coordinator and
// the page agent. The two sides communicate over a pair of unbuffered
// channels, one directive channel (coordinator to agent) and one event
// channel (agent to coordinator), so delivery is ordered and at most one
// message is in flight per direction.
package protocol

import "fmt"

// DirectiveKind identifies a coordinator-to-agent instruction.
type DirectiveKind int

const (
	// DirectiveBegin starts a scrape cycle on the current page.
	DirectiveBegin DirectiveKind = iota
	// DirectiveAdvance asks the agent to attempt pagination.
	DirectiveAdvance
)

// String returns the wire name of the directive kind.
func (k DirectiveKind) String() string {
	switch k {
	case DirectiveBegin:
		return "begin"
	case DirectiveAdvance:
		return "advance"
	default:
		return fmt.Sprintf("directive(%d)", int(k))
	}
}

// Directive is an instruction sent from the coordinator to the page agent.
type Directive struct {
	Kind DirectiveKind
}

// EventKind identifies an agent-to-coordinator message.
type EventKind int

const (
	// EventScrapedData carries the payload extracted from one page.
	EventScrapedData EventKind = iota
	// EventScrapeComplete signals that no pagination control was found and
	// the cycle is over. It is a normal termination signal, not an error.
	EventScrapeComplete
)

// String returns the wire name of the event kind.
func (k EventKind) String() string {
	switch k {
	case EventScrapedData:
		return "scrapedData"
	case EventScrapeComplete:
		return "scrapeComplete"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is a message sent from the page agent to the coordinator. Payload is
// only meaningful when Kind is EventScrapedData.
type Event struct {
	Kind    EventKind
	Payload Payload
}

// Payload is the data extracted from a single page: every image element's
// source URL paired with the resolved destination of its nearest enclosing
// link. An image with no enclosing link gets an empty-string destination,
// never a missing entry, so the two slices stay parallel.
type Payload struct {
	Thumbnails   []string `json:"thumbnails"`
	Destinations []string `json:"destinations"`
}

// Validate checks the parallel-length invariant.
func (p Payload) Validate() error {
	if len(p.Thumbnails) != len(p.Destinations) {
		return fmt.Errorf("payload length mismatch: %d thumbnails, %d destinations",
			len(p.Thumbnails), len(p.Destinations))
	}
	return nil
}

// Len returns the number of extracted items.
func (p Payload) Len() int {
	return len(p.Thumbnails)
}
