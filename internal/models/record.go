package models

import "time"

// ScrapeRecord is one persisted capture of a web page: the URL that was
// requested, when it was fetched, and the visible text extracted from it.
// Records are written once and never modified.
type ScrapeRecord struct {
	SourceURL     string `json:"sourceUrl"`
	CapturedAt    string `json:"capturedAt"`
	ExtractedText string `json:"extractedText"`
}

// NewScrapeRecord builds a record stamped with the current UTC time.
func NewScrapeRecord(sourceURL, extractedText string) ScrapeRecord {
	return ScrapeRecord{
		SourceURL:     sourceURL,
		CapturedAt:    time.Now().UTC().Format(time.RFC3339),
		ExtractedText: extractedText,
	}
}
