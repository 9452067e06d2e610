package protocol

import "testing"

func TestPayloadValidate(t *testing.T) {
	valid := Payload{
		Thumbnails:   []string{"a.jpg", "b.jpg"},
		Destinations: []string{"https://example.com/a", ""},
	}
	if err := valid.Validate(); err != nil {
		t.Errorf("Expected valid payload, got %v", err)
	}

	empty := Payload{}
	if err := empty.Validate(); err != nil {
		t.Errorf("Empty payload should be valid, got %v", err)
	}

	mismatched := Payload{
		Thumbnails:   []string{"a.jpg", "b.jpg"},
		Destinations: []string{"https://example.com/a"},
	}
	if err := mismatched.Validate(); err == nil {
		t.Error("Expected mismatched payload to fail validation")
	}
}

func TestKindWireNames(t *testing.T) {
	if got := DirectiveBegin.String(); got != "begin" {
		t.Errorf("Expected begin, got %s", got)
	}
	if got := DirectiveAdvance.String(); got != "advance" {
		t.Errorf("Expected advance, got %s", got)
	}
	if got := EventScrapedData.String(); got != "scrapedData" {
		t.Errorf("Expected scrapedData, got %s", got)
	}
	if got := EventScrapeComplete.String(); got != "scrapeComplete" {
		t.Errorf("Expected scrapeComplete, got %s", got)
	}
}
